package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/romanzh1/course-player/internal/gatewaytest"
	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"github.com/romanzh1/course-player/internal/service/navigation"
)

const (
	hostOrigin = "https://learn.example.com"
	userID     = 5
)

type notifier struct {
	mu      sync.Mutex
	chats   []int64
	prompts []navigation.CompletionPrompt
}

func (n *notifier) NotifyCompletion(ctx context.Context, chatID int64, p navigation.CompletionPrompt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, chatID)
	n.prompts = append(n.prompts, p)
	return nil
}

func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.chats)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newService(t *testing.T) (*Service, *gatewaytest.Gateway) {
	t.Helper()
	gw := gatewaytest.New()
	gw.Courses[1] = gatewaytest.TwoModuleCourse()
	gw.Users[userID] = &models.UserInfo{ID: userID}
	gw.Statuses = []models.UserStatus{{ID: 1, UserID: userID, CourseID: 1, ModuleID: 10, ChapterIndex: 1}}

	svc := NewService(gw, Config{HostOrigin: hostOrigin, ContentBaseURL: "https://learn.example.com/content"})
	t.Cleanup(svc.Shutdown)
	return svc, gw
}

func finishModule(moduleID string) bridge.Message {
	return bridge.Message{
		Origin: hostOrigin,
		Data:   []byte(`{"type":"qu_module_progression_finished","data":{"module_id":` + moduleID + `}}`),
	}
}

func TestOpenSession(t *testing.T) {
	svc, _ := newService(t)

	snap, err := svc.OpenSession(context.Background(), OpenParams{UserID: userID, CourseID: 1, Query: url.Values{"module": {"20"}}})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if snap.SessionID == "" {
		t.Fatalf("session id must be set")
	}
	if snap.Index != (progression.Index{Module: 1}) {
		t.Fatalf("deep link must win over the resume point, got=%+v", snap.Index)
	}

	if _, err := svc.Snapshot(snap.SessionID, userID+1); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("foreign user: want ErrSessionNotFound got=%v", err)
	}
}

func TestOpenSessionUnknownCourse(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.OpenSession(context.Background(), OpenParams{UserID: userID, CourseID: 42})
	if !errors.Is(err, models.ErrCourseNotFound) {
		t.Fatalf("want ErrCourseNotFound got=%v", err)
	}
}

func TestConfirmModuleCompletion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	snap, err := svc.OpenSession(ctx, OpenParams{UserID: userID, CourseID: 1})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	id := snap.SessionID

	if err := svc.Confirm(id, userID, true); !errors.Is(err, models.ErrNoPendingConfirmation) {
		t.Fatalf("want ErrNoPendingConfirmation got=%v", err)
	}

	delivered, err := svc.PushEvent(ctx, id, userID, finishModule("10"))
	if err != nil || !delivered {
		t.Fatalf("PushEvent: delivered=%v err=%v", delivered, err)
	}
	waitFor(t, "pending confirmation", func() bool { return svc.confirmations.Pending(id) })

	if err := svc.Confirm(id, userID, true); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitFor(t, "module transition", func() bool {
		s, _ := svc.Snapshot(id, userID)
		return s.Index == progression.Index{Module: 1}
	})
}

func TestDismissKeepsIndex(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	snap, err := svc.OpenSession(ctx, OpenParams{UserID: userID, CourseID: 1})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	id := snap.SessionID

	if _, err := svc.PushEvent(ctx, id, userID, finishModule("10")); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	waitFor(t, "pending confirmation", func() bool { return svc.confirmations.Pending(id) })

	if err := svc.Confirm(id, userID, false); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	waitFor(t, "prompt cleared", func() bool {
		s, _ := svc.Snapshot(id, userID)
		return s.Awaiting == nil
	})

	s, _ := svc.Snapshot(id, userID)
	if s.Index != (progression.Index{Module: 0, Chapter: 1}) {
		t.Fatalf("index: got=%+v", s.Index)
	}
}

func TestTelegramConfirmation(t *testing.T) {
	svc, _ := newService(t)
	n := &notifier{}
	svc.SetNotifier(n)
	ctx := context.Background()

	snap, err := svc.OpenSession(ctx, OpenParams{UserID: userID, CourseID: 1, TelegramChatID: 77})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	id := snap.SessionID

	if got := len(svc.ChatSessions(77)); got != 1 {
		t.Fatalf("chat sessions: want=1 got=%d", got)
	}

	if _, err := svc.PushEvent(ctx, id, userID, finishModule("10")); err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	waitFor(t, "pending confirmation", func() bool { return svc.confirmations.Pending(id) })

	if n.count() != 1 || n.chats[0] != 77 || n.prompts[0].NextModuleID != 20 {
		t.Fatalf("notifications: chats=%v prompts=%+v", n.chats, n.prompts)
	}

	if err := svc.ConfirmFromChat(id, 78, true); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("other chat: want ErrSessionNotFound got=%v", err)
	}
	if err := svc.ConfirmFromChat(id, 77, true); err != nil {
		t.Fatalf("ConfirmFromChat: %v", err)
	}
	waitFor(t, "module transition", func() bool {
		s, _ := svc.Snapshot(id, userID)
		return s.Index.Module == 1
	})
}

func TestNavigateAndCommit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	snap, err := svc.OpenSession(ctx, OpenParams{UserID: userID, CourseID: 1})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	snap, err = svc.Navigate(ctx, snap.SessionID, userID, 20, 200)
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if snap.Pending == nil {
		t.Fatalf("pending target must be staged")
	}

	snap, err = svc.CommitNavigation(ctx, snap.SessionID, userID)
	if err != nil {
		t.Fatalf("CommitNavigation: %v", err)
	}
	if snap.Index != (progression.Index{Module: 1}) {
		t.Fatalf("index: got=%+v", snap.Index)
	}

	if _, err := svc.Navigate(ctx, snap.SessionID, userID, 20, 999); !errors.Is(err, models.ErrUnknownTarget) {
		t.Fatalf("want ErrUnknownTarget got=%v", err)
	}
}

func TestCloseSession(t *testing.T) {
	svc, _ := newService(t)

	snap, err := svc.OpenSession(context.Background(), OpenParams{UserID: userID, CourseID: 1})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if err := svc.CloseSession(snap.SessionID, userID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := svc.Snapshot(snap.SessionID, userID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound got=%v", err)
	}
	if err := svc.CloseSession(snap.SessionID, userID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("second close: want ErrSessionNotFound got=%v", err)
	}
}

func TestConfirmationsAwaitHonorsContext(t *testing.T) {
	c := NewConfirmations()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ready := false
	accepted, err := c.Await(ctx, "s1", func() { ready = true })
	if accepted || !errors.Is(err, context.Canceled) {
		t.Fatalf("want dismissal by context, got accepted=%v err=%v", accepted, err)
	}
	if !ready {
		t.Fatalf("ready must run before waiting")
	}
	if c.Pending("s1") {
		t.Fatalf("cancelled wait must not stay pending")
	}
}

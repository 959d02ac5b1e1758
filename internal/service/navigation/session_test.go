package navigation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/progression"
	"github.com/romanzh1/course-player/internal/service/bridge"
)

const hostOrigin = "https://learn.example.com"

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

func openSession(t *testing.T, gw models.Gateway, p Prompter) *Session {
	t.Helper()
	s, err := OpenSession(context.Background(), Config{
		SessionID:      "s1",
		UserID:         learnerID,
		CourseID:       1,
		ContentBaseURL: "https://learn.example.com/content",
	}, gw, p, hostOrigin, DeepLink{})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// blockingPrompter hands every prompt to the test and waits for its answer.
type blockingPrompter struct {
	asked   chan CompletionPrompt
	answers chan bool
}

func newBlockingPrompter() *blockingPrompter {
	return &blockingPrompter{asked: make(chan CompletionPrompt, 1), answers: make(chan bool)}
}

func (p *blockingPrompter) ConfirmModuleCompletion(ctx context.Context, prompt CompletionPrompt, ready func()) (bool, error) {
	ready()
	p.asked <- prompt
	select {
	case ok := <-p.answers:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func moduleFinished(moduleID int64) bridge.Message {
	return bridge.Message{
		Origin: hostOrigin,
		Data:   []byte(fmt.Sprintf(`{"type":"qu_module_progression_finished","data":{"module_id":%d}}`, moduleID)),
	}
}

func TestSessionConfirmedModuleTransition(t *testing.T) {
	gw := newGateway()
	gw.Statuses = []models.UserStatus{{ID: 1, UserID: learnerID, CourseID: 1, ModuleID: 10, ChapterIndex: 1}}
	p := newBlockingPrompter()
	s := openSession(t, gw, p)

	if !s.Accept(context.Background(), moduleFinished(10)) {
		t.Fatalf("message from the host origin must be accepted")
	}

	prompt := <-p.asked
	if prompt.NextModuleID != 20 || prompt.SessionID != "s1" {
		t.Fatalf("prompt: got=%+v", prompt)
	}
	if s.Snapshot().Awaiting == nil {
		t.Fatalf("prompt must be published before the answer is awaited")
	}
	if got := s.Snapshot().Index; got != (progression.Index{Module: 0, Chapter: 1}) {
		t.Fatalf("index must not move before confirmation, got=%+v", got)
	}

	p.answers <- true

	waitFor(t, "module transition", func() bool {
		return s.Snapshot().Index == progression.Index{Module: 1}
	})
	snap := s.Snapshot()
	if snap.Awaiting != nil {
		t.Fatalf("prompt must be cleared")
	}
	if snap.Bridge.Delivered != 1 {
		t.Fatalf("bridge delivered: want=1 got=%d", snap.Bridge.Delivered)
	}
}

func TestSessionCloseDismissesPrompt(t *testing.T) {
	gw := newGateway()
	gw.Statuses = []models.UserStatus{{ID: 1, UserID: learnerID, CourseID: 1, ModuleID: 10, ChapterIndex: 1}}
	p := newBlockingPrompter()
	s := openSession(t, gw, p)

	s.Accept(context.Background(), moduleFinished(10))
	<-p.asked

	s.Close()

	select {
	case <-s.Done():
	default:
		t.Fatalf("session loop must stop on Close")
	}
	if got := s.Snapshot().Index; got != (progression.Index{Module: 0, Chapter: 1}) {
		t.Fatalf("dismissed prompt must leave the index, got=%+v", got)
	}
	if len(gw.Created()) != 0 {
		t.Fatalf("no status may be created")
	}

	err := s.Navigate(context.Background(), 20, 200)
	if !errors.Is(err, models.ErrSessionClosed) {
		t.Fatalf("Navigate after Close: want ErrSessionClosed got=%v", err)
	}
}

func TestSessionHandlesEventsInOrder(t *testing.T) {
	gw := newGateway()
	s := openSession(t, gw, nil)
	ctx := context.Background()

	for _, ci := range []int{1, 0, 1} {
		if err := s.Deliver(ctx, bridge.LearnNext{ChapterIndex: ci}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	// Commit queues behind the events, so its return means they were handled.
	committed, err := s.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed {
		t.Fatalf("nothing was staged")
	}
	if got := s.Snapshot().Index; got != (progression.Index{Module: 0, Chapter: 1}) {
		t.Fatalf("index: got=%+v", got)
	}
}

func TestSessionNavigateAndCommit(t *testing.T) {
	gw := newGateway()
	s := openSession(t, gw, nil)
	ctx := context.Background()

	if err := s.Navigate(ctx, 20, 200); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if s.Snapshot().Pending == nil {
		t.Fatalf("view mode must stage the target")
	}

	committed, err := s.Commit(ctx)
	if err != nil || !committed {
		t.Fatalf("Commit: committed=%v err=%v", committed, err)
	}
	snap := s.Snapshot()
	if snap.Index != (progression.Index{Module: 1}) || snap.ModuleID != 20 {
		t.Fatalf("snapshot after commit: index=%+v module=%d", snap.Index, snap.ModuleID)
	}

	if err := s.Navigate(ctx, 99, 1); !errors.Is(err, models.ErrUnknownTarget) {
		t.Fatalf("want ErrUnknownTarget got=%v", err)
	}
}

func TestSessionDropsForeignMessages(t *testing.T) {
	gw := newGateway()
	s := openSession(t, gw, nil)

	msg := moduleFinished(10)
	msg.Origin = "https://evil.example.com"
	if s.Accept(context.Background(), msg) {
		t.Fatalf("foreign origin must be dropped")
	}
	if got := s.Snapshot().Bridge.Foreign; got != 1 {
		t.Fatalf("foreign: want=1 got=%d", got)
	}
}

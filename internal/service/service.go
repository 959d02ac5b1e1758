package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"github.com/romanzh1/course-player/internal/service/navigation"
	"go.uber.org/zap"
)

// Notifier tells a learner outside the browser that a module is finished.
type Notifier interface {
	NotifyCompletion(ctx context.Context, chatID int64, p navigation.CompletionPrompt) error
}

type Config struct {
	HostOrigin     string
	ContentBaseURL string
}

type OpenParams struct {
	UserID         int64
	CourseID       int64
	Query          url.Values
	TelegramChatID int64
}

type session struct {
	*navigation.Session
	userID int64
	chatID int64
}

type Service struct {
	gw       models.Gateway
	cfg      Config
	notifier Notifier

	mu       sync.RWMutex
	sessions map[string]*session

	confirmations *Confirmations
}

func NewService(gw models.Gateway, cfg Config) *Service {
	return &Service{
		gw:            gw,
		cfg:           cfg,
		sessions:      make(map[string]*session),
		confirmations: NewConfirmations(),
	}
}

// SetNotifier installs the out-of-band prompt channel. The Telegram bot needs
// the service to exist first, so this is not a constructor argument.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Service) OpenSession(ctx context.Context, p OpenParams) (navigation.Snapshot, error) {
	id := uuid.NewString()

	ps, err := navigation.OpenSession(ctx, navigation.Config{
		SessionID:      id,
		UserID:         p.UserID,
		CourseID:       p.CourseID,
		ContentBaseURL: s.cfg.ContentBaseURL,
	}, s.gw, s.prompter(p.TelegramChatID), s.cfg.HostOrigin, navigation.ParseDeepLink(p.Query))
	if err != nil {
		if errors.Is(err, models.ErrResourceUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrCourseNotFound, err)
		}
		return navigation.Snapshot{}, fmt.Errorf("open session (user_id: %d, course_id: %d): %w", p.UserID, p.CourseID, err)
	}

	s.mu.Lock()
	s.sessions[id] = &session{Session: ps, userID: p.UserID, chatID: p.TelegramChatID}
	s.mu.Unlock()

	zap.L().Info("session opened",
		zap.String("session_id", id), zap.Int64("user_id", p.UserID), zap.Int64("course_id", p.CourseID))

	return ps.Snapshot(), nil
}

func (s *Service) Snapshot(sessionID string, userID int64) (navigation.Snapshot, error) {
	ss, err := s.session(sessionID, userID)
	if err != nil {
		return navigation.Snapshot{}, err
	}
	return ss.Snapshot(), nil
}

// PushEvent forwards a raw content-surface message. Dropped messages are
// reported through the bool, not as errors.
func (s *Service) PushEvent(ctx context.Context, sessionID string, userID int64, msg bridge.Message) (bool, error) {
	ss, err := s.session(sessionID, userID)
	if err != nil {
		return false, err
	}
	return ss.Accept(ctx, msg), nil
}

func (s *Service) Navigate(ctx context.Context, sessionID string, userID, moduleID, chapterID int64) (navigation.Snapshot, error) {
	ss, err := s.session(sessionID, userID)
	if err != nil {
		return navigation.Snapshot{}, err
	}
	if err := ss.Navigate(ctx, moduleID, chapterID); err != nil {
		return navigation.Snapshot{}, fmt.Errorf("navigate (session_id: %s): %w", sessionID, err)
	}
	return ss.Snapshot(), nil
}

func (s *Service) CommitNavigation(ctx context.Context, sessionID string, userID int64) (navigation.Snapshot, error) {
	ss, err := s.session(sessionID, userID)
	if err != nil {
		return navigation.Snapshot{}, err
	}
	if _, err := ss.Commit(ctx); err != nil {
		return navigation.Snapshot{}, fmt.Errorf("commit navigation (session_id: %s): %w", sessionID, err)
	}
	return ss.Snapshot(), nil
}

// Confirm answers the module-completion prompt of the session.
func (s *Service) Confirm(sessionID string, userID int64, accept bool) error {
	if _, err := s.session(sessionID, userID); err != nil {
		return err
	}
	return s.confirmations.Resolve(sessionID, accept)
}

// ConfirmFromChat answers a prompt from the Telegram chat the session was
// opened with.
func (s *Service) ConfirmFromChat(sessionID string, chatID int64, accept bool) error {
	s.mu.RLock()
	ss, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || ss.chatID == 0 || ss.chatID != chatID {
		return fmt.Errorf("confirm from chat (session_id: %s, chat_id: %d): %w", sessionID, chatID, models.ErrSessionNotFound)
	}
	return s.confirmations.Resolve(sessionID, accept)
}

// ChatSessions lists snapshots of the sessions linked to a Telegram chat.
func (s *Service) ChatSessions(chatID int64) []navigation.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []navigation.Snapshot
	for _, ss := range s.sessions {
		if chatID != 0 && ss.chatID == chatID {
			out = append(out, ss.Snapshot())
		}
	}
	return out
}

func (s *Service) CloseSession(sessionID string, userID int64) error {
	ss, err := s.session(sessionID, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	ss.Close()
	zap.L().Info("session closed", zap.String("session_id", sessionID))

	return nil
}

// Shutdown closes every session. Pending prompts count as dismissed.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, ss := range sessions {
		ss.Close()
	}
}

func (s *Service) session(sessionID string, userID int64) (*session, error) {
	s.mu.RLock()
	ss, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok || ss.userID != userID {
		return nil, fmt.Errorf("get session (session_id: %s): %w", sessionID, models.ErrSessionNotFound)
	}
	return ss, nil
}

func (s *Service) prompter(chatID int64) navigation.Prompter {
	return navigation.PrompterFunc(func(ctx context.Context, p navigation.CompletionPrompt, ready func()) (bool, error) {
		s.mu.RLock()
		notifier := s.notifier
		s.mu.RUnlock()

		return s.confirmations.Await(ctx, p.SessionID, func() {
			ready()
			if notifier == nil || chatID == 0 {
				return
			}
			if err := notifier.NotifyCompletion(ctx, chatID, p); err != nil {
				zap.L().Warn("notify module completion", zap.Error(err),
					zap.String("session_id", p.SessionID), zap.Int64("chat_id", chatID))
			}
		})
	})
}

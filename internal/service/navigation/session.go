package navigation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"go.uber.org/zap"
)

const inboxSize = 64

type command struct {
	name   string
	run    func(ctx context.Context) error
	result chan error
}

// Session owns one Controller and runs every command against it on a single
// goroutine, in arrival order. Readers use Snapshot and never touch the
// controller.
type Session struct {
	ctrl   *Controller
	bridge *bridge.Bridge

	inbox chan command
	snap  atomic.Pointer[Snapshot]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenSession loads the course and starts the command loop. The loop lives
// until Close; ctx only bounds the initial load.
func OpenSession(ctx context.Context, cfg Config, gw models.Gateway, prompter Prompter, hostOrigin string, link DeepLink) (*Session, error) {
	ctrl := NewController(cfg, gw, prompter)
	if err := ctrl.Open(ctx, link); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ctrl:   ctrl,
		inbox:  make(chan command, inboxSize),
		ctx:    loopCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ctrl.onChange = s.publish

	b, err := bridge.New(hostOrigin, s)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open session (session_id: %s): %w", cfg.SessionID, err)
	}
	s.bridge = b

	s.publish()
	go s.loop()

	return s, nil
}

func (s *Session) ID() string { return s.ctrl.cfg.SessionID }

// Accept runs a raw content-surface message through the origin check and
// decoder. Dropped messages are not errors.
func (s *Session) Accept(ctx context.Context, msg bridge.Message) bool {
	return s.bridge.Accept(ctx, msg)
}

// Deliver queues a decoded event without waiting for it to be handled.
func (s *Session) Deliver(ctx context.Context, ev bridge.Event) error {
	return s.enqueue(ctx, command{
		name: string(ev.Kind()),
		run: func(ctx context.Context) error {
			s.ctrl.Handle(ctx, ev)
			return nil
		},
	})
}

func (s *Session) Navigate(ctx context.Context, moduleID, chapterID int64) error {
	return s.call(ctx, "navigate", func(ctx context.Context) error {
		return s.ctrl.Navigate(ctx, moduleID, chapterID)
	})
}

// Commit applies the staged navigation target, reporting whether there was one.
func (s *Session) Commit(ctx context.Context) (bool, error) {
	var committed bool
	err := s.call(ctx, "commit", func(ctx context.Context) error {
		committed = s.ctrl.CommitNavigation(ctx)
		return nil
	})
	return committed, err
}

func (s *Session) Snapshot() Snapshot {
	snap := *s.snap.Load()
	snap.Bridge = s.bridge.Stats()
	return snap
}

// Close stops the loop. A pending completion prompt is dismissed.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) call(ctx context.Context, name string, run func(ctx context.Context) error) error {
	result := make(chan error, 1)
	if err := s.enqueue(ctx, command{name: name, run: run, result: result}); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return fmt.Errorf("%s (session_id: %s): %w", name, s.ID(), models.ErrSessionClosed)
	}
}

func (s *Session) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("%s (session_id: %s): %w", cmd.name, s.ID(), models.ErrSessionClosed)
	default:
	}

	select {
	case s.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("%s (session_id: %s): %w", cmd.name, s.ID(), models.ErrSessionClosed)
	}
}

func (s *Session) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			zap.L().Debug("session closed", zap.String("session_id", s.ID()))
			return
		case cmd := <-s.inbox:
			err := cmd.run(s.ctx)
			s.publish()
			if cmd.result != nil {
				cmd.result <- err
			}
		}
	}
}

func (s *Session) publish() {
	snap := s.ctrl.Snapshot()
	s.snap.Store(&snap)
}

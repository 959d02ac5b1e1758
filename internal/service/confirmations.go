package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/romanzh1/course-player/internal/models"
)

// Confirmations pairs a blocked completion prompt with the answer that
// arrives later over HTTP or Telegram. At most one prompt per session.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]chan bool
}

func NewConfirmations() *Confirmations {
	return &Confirmations{pending: make(map[string]chan bool)}
}

// Await blocks until Resolve is called for the session or ctx ends. ready,
// if set, runs once Resolve can find the prompt.
func (c *Confirmations) Await(ctx context.Context, sessionID string, ready func()) (bool, error) {
	answer := make(chan bool, 1)

	c.mu.Lock()
	c.pending[sessionID] = answer
	c.mu.Unlock()

	if ready != nil {
		ready()
	}

	defer func() {
		c.mu.Lock()
		if c.pending[sessionID] == answer {
			delete(c.pending, sessionID)
		}
		c.mu.Unlock()
	}()

	select {
	case accept := <-answer:
		return accept, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Confirmations) Resolve(sessionID string, accept bool) error {
	c.mu.Lock()
	answer, ok := c.pending[sessionID]
	delete(c.pending, sessionID)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("resolve confirmation (session_id: %s): %w", sessionID, models.ErrNoPendingConfirmation)
	}
	answer <- accept

	return nil
}

func (c *Confirmations) Pending(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[sessionID]
	return ok
}

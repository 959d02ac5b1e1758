package bridge

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Message is a raw notification as received from the content surface, along
// with the origin it claims to come from.
type Message struct {
	Origin string
	Data   []byte
}

// Sink receives validated events one at a time.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

type Stats struct {
	Delivered int64 `json:"delivered"`
	Foreign   int64 `json:"foreign"`
	Malformed int64 `json:"malformed"`
}

// Bridge admits same-origin messages only. It never returns an error for a
// rejected message: foreign origins and malformed payloads are dropped.
type Bridge struct {
	origin string
	sink   Sink

	// mu keeps delivery in arrival order when Accept is called concurrently.
	mu sync.Mutex

	delivered atomic.Int64
	foreign   atomic.Int64
	malformed atomic.Int64
}

func New(hostOrigin string, sink Sink) (*Bridge, error) {
	origin, ok := NormalizeOrigin(hostOrigin)
	if !ok {
		return nil, fmt.Errorf("invalid host origin (origin: %q)", hostOrigin)
	}
	return &Bridge{origin: origin, sink: sink}, nil
}

// Accept validates msg and hands it to the sink. It reports whether the event
// was delivered.
func (b *Bridge) Accept(ctx context.Context, msg Message) bool {
	origin, ok := NormalizeOrigin(msg.Origin)
	if !ok || origin != b.origin {
		b.foreign.Add(1)
		zap.L().Debug("drop message from foreign origin", zap.String("origin", msg.Origin))
		return false
	}

	ev, err := Parse(msg.Data)
	if err != nil {
		b.malformed.Add(1)
		zap.L().Warn("drop malformed content message", zap.Error(err), zap.ByteString("payload", msg.Data))
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.sink.Deliver(ctx, ev); err != nil {
		zap.L().Warn("deliver content message", zap.Error(err), zap.String("type", string(ev.Kind())))
		return false
	}
	b.delivered.Add(1)

	return true
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Delivered: b.delivered.Load(),
		Foreign:   b.foreign.Load(),
		Malformed: b.malformed.Load(),
	}
}

// NormalizeOrigin reduces an origin or URL to scheme://host[:port], dropping
// default ports. Opaque origins ("null") never normalize.
func NormalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	return scheme + "://" + host, true
}

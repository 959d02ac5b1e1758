// Package gatewaycache puts a shared read-through cache in front of the
// course and module documents of a models.Gateway.
package gatewaycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/romanzh1/course-player/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "course-player:"

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Gateway struct {
	next  models.Gateway
	store Store
	ttl   time.Duration
	group singleflight.Group
}

func New(next models.Gateway, store Store, ttl time.Duration) *Gateway {
	return &Gateway{next: next, store: store, ttl: ttl}
}

// Get serves learn_course and learn_module from the cache. Concurrent misses
// for the same document share one backend call.
func (g *Gateway) Get(ctx context.Context, path string, params map[string]any, dest any) error {
	key, ok := cacheKey(path, params)
	if !ok {
		return g.next.Get(ctx, path, params, dest)
	}

	raw, hit, err := g.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("read module cache", zap.Error(err), zap.String("key", key))
	}
	if hit {
		if err := json.Unmarshal(raw, dest); err == nil {
			return nil
		}
		zap.L().Warn("drop undecodable cache entry", zap.String("key", key))
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		doc := document(path)
		if err := g.next.Get(ctx, path, params, doc); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry (key: %s): %w", key, err)
		}
		if err := g.store.Set(ctx, key, raw, g.ttl); err != nil {
			zap.L().Warn("write module cache", zap.Error(err), zap.String("key", key))
		}
		return raw, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(v.([]byte), dest); err != nil {
		return fmt.Errorf("decode cache entry (key: %s): %w", key, err)
	}

	return nil
}

func (g *Gateway) Collect(ctx context.Context, q models.CollectQuery, dest any) error {
	return g.next.Collect(ctx, q, dest)
}

func (g *Gateway) Create(ctx context.Context, entity string, payload map[string]any) error {
	return g.next.Create(ctx, entity, payload)
}

// Invalidate drops a cached document after the content surface changed it.
func (g *Gateway) Invalidate(ctx context.Context, path string, params map[string]any) {
	key, ok := cacheKey(path, params)
	if !ok {
		return
	}
	g.group.Forget(key)
	if err := g.store.Del(ctx, key); err != nil {
		zap.L().Warn("invalidate module cache", zap.Error(err), zap.String("key", key))
	}
}

func cacheKey(path string, params map[string]any) (string, bool) {
	var name string
	switch path {
	case models.PathLearnCourse:
		name = "course"
	case models.PathLearnModule:
		name = "module"
	default:
		return "", false
	}

	id, ok := params["id"]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s%s:%v", keyPrefix, name, id), true
}

func document(path string) any {
	if path == models.PathLearnCourse {
		return &models.Course{}
	}
	return &models.Module{}
}

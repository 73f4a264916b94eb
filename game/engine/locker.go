package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/game/gameerr"
)

// Locker serialises mutations of user aggregates. Lock takes every id or
// none; the returned func releases them.
type Locker interface {
	Lock(ctx context.Context, userIDs ...int64) (func(), error)
}

// CacheLocker implements Locker with SetNX keys (Redis in production, the
// in-process cache otherwise). Keys are taken in ascending id order and
// released in reverse, so two mutual challenges cannot deadlock.
type CacheLocker struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCacheLocker(c cache.Cache, ttl time.Duration, logger *zap.Logger) *CacheLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheLocker{cache: c, ttl: ttl, logger: logger}
}

func userLockKey(id int64) string { return "lock:user:" + strconv.FormatInt(id, 10) }

func (l *CacheLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	token := uuid.NewString()
	held := make([]string, 0, len(ids))
	release := func() {
		// Detached so a cancelled request still frees its keys.
		rctx := context.WithoutCancel(ctx)
		for i := len(held) - 1; i >= 0; i-- {
			if _, err := l.cache.CompareAndDelete(rctx, held[i], token); err != nil {
				l.logger.Warn("release user lock", zap.String("key", held[i]), zap.Error(err))
			}
		}
	}

	for _, id := range ids {
		key := userLockKey(id)
		ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			release()
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if !ok {
			release()
			return nil, fmt.Errorf("%w: user %d is busy", gameerr.ErrConcurrencyConflict, id)
		}
		held = append(held, key)
	}
	return release, nil
}

// Package engine is the use-case layer over the pure rules packages. It is
// the only place that locks, persists, retries and falls back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/cache"
	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/combat"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/level"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/game/streak"
)

// Deps are the collaborators of a Service. DB is required; Locker falls
// back to a CacheLocker over Cache, so one of the two must be set.
type Deps struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Locker Locker
	Audit  audit.Logger
	Clock  clockwork.Clock
	Seeds  SeedSource
	RNG    combat.RNGFactory
	Logger *zap.Logger
}

// Service sequences streak, reward, level and badge rules for completions
// and combat, and applies the results atomically.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	locker Locker
	audit  audit.Logger
	clock  clockwork.Clock
	seeds  SeedSource
	logger *zap.Logger
	loc    *time.Location

	curve    *level.Curve
	tracker  *streak.Tracker
	calc     *reward.Calculator
	sim      *combat.Simulator
	badges   *badge.Evaluator
	fallback reward.Tier
}

func New(cfg *config.Config, catalog []badge.Definition, deps Deps) (*Service, error) {
	if deps.DB == nil {
		return nil, errors.New("engine: DB is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Locker == nil {
		if deps.Cache == nil {
			return nil, errors.New("engine: Locker or Cache is required")
		}
		deps.Locker = NewCacheLocker(deps.Cache, cfg.Engine.LockTTL, deps.Logger)
	}
	if deps.Seeds == nil {
		deps.Seeds = NewRandSeeds(deps.Clock.Now().UnixNano())
	}
	loc, err := time.LoadLocation(cfg.Streak.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	fallback, err := reward.ParseTier(cfg.Evaluator.FallbackTier)
	if err != nil {
		return nil, fmt.Errorf("engine: evaluator.fallback_tier: %w", err)
	}
	evaluator, err := badge.NewEvaluator(catalog, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Service{
		cfg:    cfg,
		db:     deps.DB,
		cache:  deps.Cache,
		pubsub: deps.PubSub,
		locker: deps.Locker,
		audit:  deps.Audit,
		clock:  deps.Clock,
		seeds:  deps.Seeds,
		logger: deps.Logger,
		loc:    loc,

		curve:    level.NewCurve(cfg.Level),
		tracker:  streak.NewTracker(deps.Clock, loc),
		calc:     reward.NewCalculator(cfg.Reward),
		sim:      combat.NewSimulator(combat.SimulatorConfig{Tuning: cfg.Combat, RNG: deps.RNG, Logger: deps.Logger}),
		badges:   evaluator,
		fallback: fallback,
	}, nil
}

func (s *Service) Curve() *level.Curve            { return s.curve }
func (s *Service) Tracker() *streak.Tracker       { return s.tracker }
func (s *Service) Calculator() *reward.Calculator { return s.calc }
func (s *Service) Badges() *badge.Evaluator       { return s.badges }
func (s *Service) Clock() clockwork.Clock         { return s.clock }

// Location is the timezone that defines streak days.
func (s *Service) Location() *time.Location { return s.loc }

// FallbackTier is the tier used for tasks without a usable evaluation.
func (s *Service) FallbackTier() reward.Tier { return s.fallback }

// withRetry reruns fn from scratch while it fails with a concurrency
// conflict, up to Engine.MaxRetries extra attempts.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.cfg.Engine.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, gameerr.ErrConcurrencyConflict) || attempt >= s.cfg.Engine.MaxRetries {
			return err
		}
		s.logger.Debug("retrying after conflict",
			zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
		if backoff > 0 {
			select {
			case <-s.clock.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// effects are applied after a transaction commits. They are best effort.
type effects struct {
	ranked []rankedUser
	notes  []Notification
	audits []audit.Entry
}

type rankedUser struct {
	id int64
	xp int64
}

func (s *Service) apply(ctx context.Context, fx *effects) {
	if fx == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, r := range fx.ranked {
		s.rank(ctx, r.id, r.xp)
	}
	for _, n := range fx.notes {
		s.notify(ctx, n)
	}
	if s.audit != nil {
		traceID := audit.TraceIDFrom(ctx)
		for _, e := range fx.audits {
			if e.TraceID == "" {
				e.TraceID = traceID
			}
			s.audit.Log(e)
		}
	}
}

func (s *Service) auditFailure(ctx context.Context, action string, userID int64, req interface{}, err error, started time.Time) {
	if s.audit == nil {
		return
	}
	s.audit.Log(audit.Entry{
		TraceID:    audit.TraceIDFrom(ctx),
		UserID:     &userID,
		Action:     action,
		Request:    req,
		Error:      err.Error(),
		DurationMs: int(s.clock.Since(started).Milliseconds()),
	})
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", gameerr.ErrNotFound, what, id)
	}
	return err
}

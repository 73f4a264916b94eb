package badge

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// Definition is a badge and its unlock rule.
type Definition struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Condition   Condition `json:"condition"`
	XPReward    int64     `json:"xp_reward"`
}

// NewDefinition derives the badge code from its name.
func NewDefinition(name, description string, cond Condition, xp int64) Definition {
	return Definition{
		Code:        slug.Make(name),
		Name:        name,
		Description: description,
		Condition:   cond,
		XPReward:    xp,
	}
}

func (d Definition) Hidden() bool { return d.Condition.Type == CondSecret }

// Event is a progression change to evaluate. Categories lists the
// condition types the triggering activity can affect.
type Event struct {
	UserID     int64
	Categories []ConditionType
	Snapshot   Snapshot
	At         time.Time
}

func (e Event) touches(c ConditionType) bool {
	for _, cat := range e.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// UnlockStore persists unlocks. Unlock must be a set-once transition: it
// reports true only for the call that moved the pair from locked to
// unlocked.
type UnlockStore interface {
	Unlock(ctx context.Context, userID int64, code string, at time.Time) (bool, error)
}

// Evaluator checks a fixed catalog against progression events.
type Evaluator struct {
	defs   []Definition
	logger *zap.Logger
}

func NewEvaluator(defs []Definition, logger *zap.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if d.Code == "" {
			return nil, fmt.Errorf("%w: badge %q has no code", gameerr.ErrValidation, d.Name)
		}
		if _, dup := seen[d.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate badge code %q", gameerr.ErrValidation, d.Code)
		}
		if d.XPReward < 0 {
			return nil, fmt.Errorf("%w: badge %q xp reward must be >= 0", gameerr.ErrValidation, d.Code)
		}
		if err := d.Condition.Validate(); err != nil {
			return nil, fmt.Errorf("badge %q: %w", d.Code, err)
		}
		seen[d.Code] = struct{}{}
	}
	return &Evaluator{defs: append([]Definition(nil), defs...), logger: logger}, nil
}

func (e *Evaluator) Definitions() []Definition {
	return append([]Definition(nil), e.defs...)
}

// Lookup returns the definition with the given code.
func (e *Evaluator) Lookup(code string) (Definition, bool) {
	for _, d := range e.defs {
		if d.Code == code {
			return d, true
		}
	}
	return Definition{}, false
}

// Evaluate unlocks every matching badge not yet held and returns the ones
// this call unlocked. Replaying an event yields nothing new.
func (e *Evaluator) Evaluate(ctx context.Context, ev Event, store UnlockStore) ([]Definition, error) {
	var unlocked []Definition
	for _, d := range e.defs {
		if !ev.touches(d.Condition.Type) || !d.Condition.Met(ev.Snapshot, ev.At) {
			continue
		}
		ok, err := store.Unlock(ctx, ev.UserID, d.Code, ev.At)
		if err != nil {
			return unlocked, fmt.Errorf("unlock %s: %w", d.Code, err)
		}
		if !ok {
			continue
		}
		e.logger.Info("badge unlocked", zap.Int64("user_id", ev.UserID), zap.String("badge", d.Code))
		unlocked = append(unlocked, d)
	}
	return unlocked, nil
}

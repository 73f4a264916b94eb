package streak

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// State is a user's daily-activity streak.
type State struct {
	Current          int        `json:"current_streak"`
	Best             int        `json:"best_streak"`
	LastActivity     *time.Time `json:"last_activity_date,omitempty"`
	FreezesAvailable int        `json:"freezes_available"`
}

func (s State) validate() error {
	if s.Current < 0 || s.Best < 0 || s.FreezesAvailable < 0 {
		return fmt.Errorf("%w: streak counters must be >= 0", gameerr.ErrValidation)
	}
	return nil
}

// Transition names the branch Record took.
type Transition int

const (
	Started   Transition = iota // first-ever activity
	SameDay                     // duplicate on the same day, no-op
	Continued                   // consecutive day
	Frozen                      // one missed day covered by a freeze
	Reset                       // lapse; streak restarts at 1
)

var transitionNames = [...]string{"started", "same_day", "continued", "frozen", "reset"}

func (t Transition) String() string {
	if t < 0 || int(t) >= len(transitionNames) {
		return "unknown"
	}
	return transitionNames[t]
}

// Advanced reports whether the transition counted today towards the streak.
func (t Transition) Advanced() bool { return t != SameDay }

// Date strips the clock from t, keeping its calendar day in its own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// Record applies one qualifying activity on day to s.
//
//	no prior activity        -> current = 1
//	gap 0                    -> no-op
//	gap 1                    -> current + 1
//	gap 2 with a freeze      -> freeze consumed, current + 1
//	gap 2 without, or gap >2 -> current = 1
//
// Best is raised to Current afterwards in every branch. A day earlier than
// the last recorded activity is rejected.
func Record(s State, day time.Time) (State, Transition, error) {
	if err := s.validate(); err != nil {
		return s, SameDay, err
	}
	day = Date(day)
	next := s
	var tr Transition

	if s.LastActivity == nil {
		next.Current = 1
		tr = Started
	} else {
		gap := DaysBetween(*s.LastActivity, day)
		switch {
		case gap < 0:
			return s, SameDay, fmt.Errorf("%w: activity day %s is before last activity %s",
				gameerr.ErrValidation, day.Format(time.DateOnly), s.LastActivity.Format(time.DateOnly))
		case gap == 0:
			return s, SameDay, nil
		case gap == 1:
			next.Current++
			tr = Continued
		case gap == 2 && s.FreezesAvailable > 0:
			next.FreezesAvailable--
			next.Current++
			tr = Frozen
		default:
			next.Current = 1
			tr = Reset
		}
	}

	next.LastActivity = &day
	if next.Current > next.Best {
		next.Best = next.Current
	}
	return next, tr, nil
}

// Replenish grants the weekly freeze allowance, capped at max.
func Replenish(s State, perWeek, max int) State {
	if perWeek <= 0 || s.FreezesAvailable >= max {
		return s
	}
	s.FreezesAvailable += perWeek
	if s.FreezesAvailable > max {
		s.FreezesAvailable = max
	}
	return s
}

// Tracker resolves instants to calendar days in the configured zone.
type Tracker struct {
	clock clockwork.Clock
	loc   *time.Location
}

func NewTracker(clock clockwork.Clock, loc *time.Location) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{clock: clock, loc: loc}
}

// DayOf returns the calendar day an instant falls on.
func (t *Tracker) DayOf(at time.Time) time.Time {
	return Date(at.In(t.loc))
}

// Today is DayOf(now).
func (t *Tracker) Today() time.Time {
	return t.DayOf(t.clock.Now())
}

// Record applies an activity at the given instant.
func (t *Tracker) Record(s State, at time.Time) (State, Transition, error) {
	return Record(s, t.DayOf(at))
}

// Broken reports whether the streak can no longer be continued today
// without a reset, used for display.
func (t *Tracker) Broken(s State) bool {
	if s.LastActivity == nil {
		return false
	}
	gap := DaysBetween(*s.LastActivity, t.Today())
	return gap > 2 || (gap == 2 && s.FreezesAvailable == 0)
}

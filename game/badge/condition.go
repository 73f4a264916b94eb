package badge

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// ConditionType is the closed set of unlock conditions. It doubles as the
// event category an activity can touch.
type ConditionType int

const (
	CondStreak ConditionType = iota
	CondCompletions
	CondLevel
	CondCombatWins
	CondSecret
	CondDateWindow
)

var condNames = [...]string{"streak", "completions", "level", "combat_wins", "secret", "date_window"}

func (c ConditionType) String() string {
	if c < 0 || int(c) >= len(condNames) {
		return "unknown"
	}
	return condNames[c]
}

func ParseConditionType(s string) (ConditionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range condNames {
		if name == s {
			return ConditionType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown condition type %q", gameerr.ErrValidation, s)
}

func (c ConditionType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ConditionType) UnmarshalText(b []byte) error {
	v, err := ParseConditionType(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Secret flags raised by the orchestrator.
const (
	FlagNightOwl    = "night_owl"
	FlagComeback    = "comeback"
	FlagGiantSlayer = "giant_slayer"
	FlagFreezeSaved = "freeze_saved"
)

// MonthDay is an annual calendar day, encoded "MM-DD".
type MonthDay struct {
	Month time.Month
	Day   int
}

func (m MonthDay) IsZero() bool { return m.Month == 0 && m.Day == 0 }

func (m MonthDay) valid() bool {
	if m.Month < time.January || m.Month > time.December || m.Day < 1 {
		return false
	}
	// 2024 is a leap year so 02-29 is accepted.
	return m.Day <= time.Date(2024, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m MonthDay) key() int { return int(m.Month)*100 + m.Day }

func (m MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(m.Month), m.Day) }

func (m MonthDay) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

func (m *MonthDay) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = MonthDay{}
		return nil
	}
	ms, ds, ok := strings.Cut(string(b), "-")
	mo, err1 := strconv.Atoi(ms)
	d, err2 := strconv.Atoi(ds)
	if !ok || err1 != nil || err2 != nil {
		return fmt.Errorf("%w: month-day %q, want MM-DD", gameerr.ErrValidation, string(b))
	}
	v := MonthDay{Month: time.Month(mo), Day: d}
	if !v.valid() {
		return fmt.Errorf("%w: month-day %q out of range", gameerr.ErrValidation, string(b))
	}
	*m = v
	return nil
}

// Snapshot is the user state a condition is tested against.
type Snapshot struct {
	CurrentStreak int             `json:"current_streak"`
	BestStreak    int             `json:"best_streak"`
	Completions   int64           `json:"completions"`
	Level         int             `json:"level"`
	CombatWins    int64           `json:"combat_wins"`
	Flags         map[string]bool `json:"flags,omitempty"`
}

// Condition parameterises one ConditionType. Only the fields relevant to
// Type are read.
type Condition struct {
	Type      ConditionType `json:"type"`
	Threshold int64         `json:"threshold,omitempty"`
	Secret    string        `json:"secret,omitempty"`
	From      MonthDay      `json:"from,omitempty"`
	To        MonthDay      `json:"to,omitempty"`
}

func (c Condition) Validate() error {
	switch c.Type {
	case CondStreak, CondCompletions, CondLevel, CondCombatWins:
		if c.Threshold <= 0 {
			return fmt.Errorf("%w: %s threshold must be > 0", gameerr.ErrValidation, c.Type)
		}
	case CondSecret:
		if c.Secret == "" {
			return fmt.Errorf("%w: secret condition needs a flag", gameerr.ErrValidation)
		}
	case CondDateWindow:
		if !c.From.valid() || !c.To.valid() {
			return fmt.Errorf("%w: date window needs valid from/to", gameerr.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: condition type %d", gameerr.ErrValidation, int(c.Type))
	}
	return nil
}

// Met tests the condition against the snapshot at the given instant.
func (c Condition) Met(s Snapshot, at time.Time) bool {
	switch c.Type {
	case CondStreak:
		best := s.BestStreak
		if s.CurrentStreak > best {
			best = s.CurrentStreak
		}
		return int64(best) >= c.Threshold
	case CondCompletions:
		return s.Completions >= c.Threshold
	case CondLevel:
		return int64(s.Level) >= c.Threshold
	case CondCombatWins:
		return s.CombatWins >= c.Threshold
	case CondSecret:
		return s.Flags[c.Secret]
	case CondDateWindow:
		return inWindow(MonthDay{Month: at.Month(), Day: at.Day()}, c.From, c.To)
	}
	return false
}

// inWindow is inclusive and wraps across the new year when from > to.
func inWindow(d, from, to MonthDay) bool {
	k, f, t := d.key(), from.key(), to.key()
	if f <= t {
		return k >= f && k <= t
	}
	return k >= f || k <= t
}

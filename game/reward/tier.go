package reward

import (
	"fmt"
	"strings"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// Tier is a difficulty bucket. Habits use trivial..hard, tasks the full range.
type Tier int

const (
	TierTrivial Tier = iota
	TierEasy
	TierMedium
	TierHard
	TierEpic
	TierLegendary
)

var tierNames = [...]string{"trivial", "easy", "medium", "hard", "epic", "legendary"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

func (t Tier) valid() bool { return t >= TierTrivial && t <= TierLegendary }

// HabitTier reports whether t may be assigned to a recurring habit.
func (t Tier) HabitTier() bool { return t >= TierTrivial && t <= TierHard }

func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierTrivial, fmt.Errorf("%w: unknown difficulty tier %q", gameerr.ErrValidation, s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("%w: tier %d", gameerr.ErrValidation, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Kind is the category of activity being rewarded.
type Kind int

const (
	KindHabit Kind = iota
	KindTask
	KindBadge
)

var kindNames = [...]string{"habit", "task", "badge"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return KindHabit, fmt.Errorf("%w: unknown activity kind %q", gameerr.ErrValidation, s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

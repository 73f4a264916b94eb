package character

import (
	"fmt"
	"strings"

	"github.com/Asuura666/game-habits/game/gameerr"
)

// Stats is a summed snapshot of a character's attributes: base values plus
// every equipped item bonus.
type Stats struct {
	Strength     int   `json:"strength"`
	Endurance    int   `json:"endurance"`
	Agility      int   `json:"agility"`
	Intelligence int   `json:"intelligence"`
	Charisma     int   `json:"charisma"`
	WeaponBonus  int   `json:"weapon_bonus"`
	ArmorBonus   int   `json:"armor_bonus"`
	Level        int   `json:"level"`
	Class        Class `json:"class"`
}

// Validate rejects negative attributes.
func (s Stats) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"strength", s.Strength}, {"endurance", s.Endurance}, {"agility", s.Agility},
		{"intelligence", s.Intelligence}, {"charisma", s.Charisma},
		{"weapon_bonus", s.WeaponBonus}, {"armor_bonus", s.ArmorBonus},
	} {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", gameerr.ErrValidation, f.name, f.v)
		}
	}
	return nil
}

// Bonus is the stat contribution of one equipped item.
type Bonus struct {
	Strength     int
	Endurance    int
	Agility      int
	Intelligence int
	Charisma     int
	Weapon       int
	Armor        int
}

// Compose adds equipment bonuses onto base stats.
func Compose(base Stats, equips ...Bonus) Stats {
	s := base
	for _, e := range equips {
		s.Strength += e.Strength
		s.Endurance += e.Endurance
		s.Agility += e.Agility
		s.Intelligence += e.Intelligence
		s.Charisma += e.Charisma
		s.WeaponBonus += e.Weapon
		s.ArmorBonus += e.Armor
	}
	return s
}

// Class is the closed set of character classes.
type Class int

const (
	ClassNone Class = iota
	ClassWarrior
	ClassMage
	ClassRogue
	ClassCleric
)

var classNames = [...]string{"none", "warrior", "mage", "rogue", "cleric"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "unknown"
	}
	return classNames[c]
}

// ParseClass maps a class name to its variant. The empty string is ClassNone.
func ParseClass(s string) (Class, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ClassNone, nil
	}
	for i, name := range classNames {
		if name == s {
			return Class(i), nil
		}
	}
	return ClassNone, fmt.Errorf("%w: unknown class %q", gameerr.ErrValidation, s)
}

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Class) UnmarshalText(b []byte) error {
	v, err := ParseClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

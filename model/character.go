package model

import (
	"time"

	"github.com/Asuura666/game-habits/game/character"
)

// Character holds a user's base attributes. Equipment bonuses are summed
// on top when a snapshot is taken.
type Character struct {
	UserID        int64     `gorm:"primaryKey" json:"user_id"`
	Class         string    `gorm:"size:16;not null;default:'none'" json:"class"`
	Strength      int       `gorm:"not null;default:0" json:"strength"`
	Endurance     int       `gorm:"not null;default:0" json:"endurance"`
	Agility       int       `gorm:"not null;default:0" json:"agility"`
	Intelligence  int       `gorm:"not null;default:0" json:"intelligence"`
	Charisma      int       `gorm:"not null;default:0" json:"charisma"`
	UnspentPoints int       `gorm:"not null;default:0" json:"unspent_points"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Stats builds the combat/reward snapshot for the given level.
func (c *Character) Stats(level int, equipped []Equipment) character.Stats {
	cl, _ := character.ParseClass(c.Class)
	base := character.Stats{
		Strength:     c.Strength,
		Endurance:    c.Endurance,
		Agility:      c.Agility,
		Intelligence: c.Intelligence,
		Charisma:     c.Charisma,
		Level:        level,
		Class:        cl,
	}
	bonuses := make([]character.Bonus, 0, len(equipped))
	for _, e := range equipped {
		if e.Equipped {
			bonuses = append(bonuses, e.Bonus())
		}
	}
	return character.Compose(base, bonuses...)
}

// Equipment is an owned item. Only equipped rows count towards stats.
type Equipment struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index:idx_equip_user;not null" json:"user_id"`
	Name         string    `gorm:"size:64;not null" json:"name"`
	Slot         string    `gorm:"size:16;not null" json:"slot"` // weapon, armor, accessory
	Equipped     bool      `gorm:"not null;default:false" json:"equipped"`
	Strength     int       `json:"strength"`
	Endurance    int       `json:"endurance"`
	Agility      int       `json:"agility"`
	Intelligence int       `json:"intelligence"`
	Charisma     int       `json:"charisma"`
	Weapon       int       `json:"weapon"`
	Armor        int       `json:"armor"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (e Equipment) Bonus() character.Bonus {
	return character.Bonus{
		Strength:     e.Strength,
		Endurance:    e.Endurance,
		Agility:      e.Agility,
		Intelligence: e.Intelligence,
		Charisma:     e.Charisma,
		Weapon:       e.Weapon,
		Armor:        e.Armor,
	}
}

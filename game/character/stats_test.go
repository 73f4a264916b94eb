package character

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	base := Stats{Strength: 10, Endurance: 5, Agility: 7, Intelligence: 3, Charisma: 1, Level: 4}
	got := Compose(base,
		Bonus{Strength: 2, Weapon: 5},
		Bonus{Endurance: 3, Armor: 10},
	)
	assert.Equal(t, 12, got.Strength)
	assert.Equal(t, 8, got.Endurance)
	assert.Equal(t, 5, got.WeaponBonus)
	assert.Equal(t, 10, got.ArmorBonus)
	assert.Equal(t, 4, got.Level)
	// base is a value; it is never mutated
	assert.Equal(t, 10, base.Strength)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Stats{}.Validate())
	err := Stats{Agility: -1}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, gameerr.ErrValidation))

	// the first bad field in declaration order is reported, every time
	for i := 0; i < 20; i++ {
		err = Stats{Endurance: -2, Charisma: -1, ArmorBonus: -3}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "endurance must be >= 0, got -2")
	}
}

func TestClassText(t *testing.T) {
	c, err := ParseClass("Mage")
	require.NoError(t, err)
	assert.Equal(t, ClassMage, c)

	c, err = ParseClass("")
	require.NoError(t, err)
	assert.Equal(t, ClassNone, c)

	_, err = ParseClass("bard")
	assert.True(t, errors.Is(err, gameerr.ErrValidation))

	b, err := json.Marshal(Stats{Class: ClassRogue})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"class":"rogue"`)

	var s Stats
	require.NoError(t, json.Unmarshal([]byte(`{"class":"cleric"}`), &s))
	assert.Equal(t, ClassCleric, s.Class)
}

package combat

import (
	"math"
	"math/rand"

	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/character"
)

// Side identifies one of the two combatants.
type Side string

const (
	SideChallenger Side = "challenger"
	SideDefender   Side = "defender"
)

// Snapshot is the read-only view of a combatant taken at combat start.
type Snapshot struct {
	Stats character.Stats `json:"stats"`
	MaxHP int             `json:"max_hp"`
}

type combatant struct {
	side  Side
	stats character.Stats
	hp    int
	maxHP int
}

func newCombatant(side Side, s character.Stats, cfg config.CombatConfig) *combatant {
	maxHP := cfg.BaseHP + s.Endurance*cfg.HPPerEndurance
	return &combatant{side: side, stats: s, hp: maxHP, maxHP: maxHP}
}

func (c *combatant) snapshot() Snapshot { return Snapshot{Stats: c.stats, MaxHP: c.maxHP} }

func (c *combatant) alive() bool { return c.hp > 0 }

// swing is the outcome of a single attack.
type swing struct {
	damage   int
	critical bool
	dodged   bool
}

// rollSwing resolves one attack. Rolls are drawn in a fixed order
// (dodge, variance, crit) so a seed always replays the same fight.
func rollSwing(att, def *combatant, cfg config.CombatConfig, rng *rand.Rand) swing {
	dodge := math.Min(float64(def.stats.Agility)*cfg.DodgeCoefficient, cfg.DodgeCap)
	if rng.Float64() < dodge {
		return swing{dodged: true}
	}

	variance := 1 - cfg.DamageVariance + rng.Float64()*2*cfg.DamageVariance
	dmg := float64(att.stats.Strength+att.stats.WeaponBonus) * variance

	crit := math.Min(float64(att.stats.Intelligence)*cfg.CritCoefficient, cfg.CritCap)
	isCrit := rng.Float64() < crit
	if isCrit {
		dmg *= cfg.CritMultiplier
	}

	mitigation := math.Min(cfg.MitigationCap, float64(def.stats.ArmorBonus)*cfg.MitigationCoefficient)
	dmg *= 1 - mitigation

	return swing{damage: int(math.Max(0, math.Floor(dmg))), critical: isCrit}
}

func (c *combatant) takeDamage(n int) {
	c.hp -= n
	if c.hp < 0 {
		c.hp = 0
	}
}

package reward

import (
	"fmt"
	"math"
	"time"

	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/streak"
)

// Reward is an xp/coin grant. Both values are floored, non-negative.
type Reward struct {
	XP         int64   `json:"xp"`
	Coins      int64   `json:"coins"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// Calculator turns activities into rewards using the configured tables.
// It holds no mutable state.
type Calculator struct {
	cfg config.RewardConfig
}

func NewCalculator(cfg config.RewardConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// StreakMultiplier is clamp(1 + streak*inc, 1, cap).
func StreakMultiplier(streak int, inc, cap float64) float64 {
	m := 1.0 + float64(streak)*inc
	if m < 1.0 {
		return 1.0
	}
	if cap < 1.0 {
		cap = 1.0
	}
	if m > cap {
		return cap
	}
	return m
}

func (c *Calculator) intelligenceBonus(s character.Stats) float64 {
	b := float64(s.Intelligence) * c.cfg.IntelligenceBonusPerPoint
	if b > c.cfg.IntelligenceBonusCap {
		b = c.cfg.IntelligenceBonusCap
	}
	if b < 0 {
		return 0
	}
	return b
}

func (c *Calculator) classBonus(cl character.Class) config.ClassBonus {
	return c.cfg.Classes[cl.String()]
}

// Habit rewards a recurring habit completion. st must already include
// today's transition.
func (c *Calculator) Habit(tier Tier, st streak.State, stats character.Stats) (Reward, error) {
	if !tier.HabitTier() {
		return Reward{}, fmt.Errorf("%w: tier %s not allowed for habits", gameerr.ErrValidation, tier)
	}
	if err := stats.Validate(); err != nil {
		return Reward{}, err
	}
	base, ok := c.cfg.Habit[tier.String()]
	if !ok {
		return Reward{}, fmt.Errorf("%w: no habit reward configured for %s", gameerr.ErrValidation, tier)
	}
	mult := StreakMultiplier(st.Current, c.cfg.StreakIncrement, c.cfg.StreakCap)
	cb := c.classBonus(stats.Class)
	xp := float64(base.XP) * mult * (1 + c.intelligenceBonus(stats)) * (1 + cb.XP)
	coins := float64(base.Coins) * mult * (1 + cb.Coins)
	return Reward{XP: floor(xp), Coins: floor(coins), Multiplier: mult}, nil
}

// Band returns the configured xp/coin band of a task tier.
func (c *Calculator) Band(tier Tier) (config.RewardBand, error) {
	if !tier.valid() {
		return config.RewardBand{}, fmt.Errorf("%w: tier %d", gameerr.ErrValidation, int(tier))
	}
	b, ok := c.cfg.Task[tier.String()]
	if !ok {
		return config.RewardBand{}, fmt.Errorf("%w: no task band configured for %s", gameerr.ErrValidation, tier)
	}
	return b, nil
}

// Task rewards a one-off task at the midpoint of its tier band. Completing
// before dueAt earns the early-completion bonus.
func (c *Calculator) Task(tier Tier, dueAt *time.Time, completedAt time.Time, stats character.Stats) (Reward, error) {
	b, err := c.Band(tier)
	if err != nil {
		return Reward{}, err
	}
	if err := stats.Validate(); err != nil {
		return Reward{}, err
	}
	mult := 1.0
	if dueAt != nil && completedAt.Before(*dueAt) {
		mult += c.cfg.EarlyCompletionBonus
	}
	cb := c.classBonus(stats.Class)
	xp := midpoint(b.MinXP, b.MaxXP) * mult * (1 + c.intelligenceBonus(stats)) * (1 + cb.XP)
	coins := midpoint(b.MinCoins, b.MaxCoins) * mult * (1 + cb.Coins)
	return Reward{XP: floor(xp), Coins: floor(coins), Multiplier: mult}, nil
}

// Preview is the unadjusted band midpoint, shown before completion.
func (c *Calculator) Preview(tier Tier) (Reward, error) {
	b, err := c.Band(tier)
	if err != nil {
		return Reward{}, err
	}
	return Reward{XP: floor(midpoint(b.MinXP, b.MaxXP)), Coins: floor(midpoint(b.MinCoins, b.MaxCoins)), Multiplier: 1}, nil
}

// Grant is a flat xp grant without streak or stat adjustment, used for badges.
func (c *Calculator) Grant(xp int64) (Reward, error) {
	if xp < 0 {
		return Reward{}, fmt.Errorf("%w: grant must be >= 0, got %d", gameerr.ErrValidation, xp)
	}
	return Reward{XP: xp, Multiplier: 1}, nil
}

// Outcome of a combat from the challenger's side.
type Outcome int

const (
	ChallengerWon Outcome = iota
	DefenderWon
	Draw
)

type CombatInput struct {
	Outcome         Outcome
	ChallengerLevel int
	DefenderLevel   int
	ChallengerCoins int64
	DefenderCoins   int64
	Bet             int64
}

// CombatReward splits xp and the bet between both sides. Coin deltas sum
// to zero.
type CombatReward struct {
	ChallengerXP         int64 `json:"challenger_xp"`
	DefenderXP           int64 `json:"defender_xp"`
	ChallengerCoinsDelta int64 `json:"challenger_coins_delta"`
	DefenderCoinsDelta   int64 `json:"defender_coins_delta"`
	BetTransferred       int64 `json:"bet_transferred"`
}

// Combat computes the reward split. Both sides must be able to cover the
// bet, otherwise nothing is granted.
func (c *Calculator) Combat(in CombatInput) (CombatReward, error) {
	if in.Bet < 0 {
		return CombatReward{}, fmt.Errorf("%w: bet must be >= 0, got %d", gameerr.ErrValidation, in.Bet)
	}
	if in.ChallengerCoins < in.Bet || in.DefenderCoins < in.Bet {
		return CombatReward{}, fmt.Errorf("%w: bet %d exceeds available coins", gameerr.ErrInsufficientResource, in.Bet)
	}
	rc := c.cfg.Combat
	winnerXP := func(opponentLevel int) int64 {
		if opponentLevel < 1 {
			opponentLevel = 1
		}
		return rc.WinnerBaseXP + rc.WinnerXPPerLevel*int64(opponentLevel)
	}

	var out CombatReward
	switch in.Outcome {
	case ChallengerWon:
		out.ChallengerXP = winnerXP(in.DefenderLevel)
		out.DefenderXP = rc.LoserXP
		out.ChallengerCoinsDelta = in.Bet
		out.DefenderCoinsDelta = -in.Bet
		out.BetTransferred = in.Bet
	case DefenderWon:
		out.DefenderXP = winnerXP(in.ChallengerLevel)
		out.ChallengerXP = rc.LoserXP
		out.DefenderCoinsDelta = in.Bet
		out.ChallengerCoinsDelta = -in.Bet
		out.BetTransferred = in.Bet
	case Draw:
		out.ChallengerXP = rc.LoserXP
		out.DefenderXP = rc.LoserXP
	default:
		return CombatReward{}, fmt.Errorf("%w: unknown combat outcome %d", gameerr.ErrValidation, int(in.Outcome))
	}
	return out, nil
}

func midpoint(lo, hi int64) float64 { return (float64(lo) + float64(hi)) / 2 }

func floor(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int64(math.Floor(v))
}

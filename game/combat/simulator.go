package combat

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Asuura666/game-habits/config"
	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
)

// Winner of a resolved combat.
type Winner string

const (
	WinnerChallenger Winner = "challenger"
	WinnerDefender   Winner = "defender"
	WinnerDraw       Winner = "draw"
)

// Outcome maps the winner onto the reward calculator's outcome.
func (w Winner) Outcome() reward.Outcome {
	switch w {
	case WinnerChallenger:
		return reward.ChallengerWon
	case WinnerDefender:
		return reward.DefenderWon
	default:
		return reward.Draw
	}
}

// TurnEvent is one swing in the combat log.
type TurnEvent struct {
	Turn          int  `json:"turn"`
	Actor         Side `json:"actor"`
	Target        Side `json:"target"`
	Damage        int  `json:"damage"`
	Critical      bool `json:"critical"`
	Dodged        bool `json:"dodged"`
	TargetHPAfter int  `json:"target_hp_after"`
}

// Result is the full, reproducible account of a combat.
type Result struct {
	Seed         int64       `json:"seed"`
	Bet          int64       `json:"bet"`
	Challenger   Snapshot    `json:"challenger"`
	Defender     Snapshot    `json:"defender"`
	FirstActor   Side        `json:"first_actor"`
	Log          []TurnEvent `json:"log"`
	Winner       Winner      `json:"winner"`
	ChallengerHP int         `json:"challenger_hp"`
	DefenderHP   int         `json:"defender_hp"`
	TotalTurns   int         `json:"total_turns"`
	KnockOut     bool        `json:"knock_out"`
}

// RNGFactory builds the random source for one combat from its seed.
type RNGFactory func(seed int64) *rand.Rand

// DefaultRNG is rand.New(rand.NewSource(seed)).
func DefaultRNG(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

type SimulatorConfig struct {
	Tuning config.CombatConfig
	RNG    RNGFactory  // nil = DefaultRNG
	Logger *zap.Logger // nil = no-op
}

// Simulator resolves 1v1 combats between stat snapshots. It is stateless
// and safe for concurrent use.
type Simulator struct {
	cfg    config.CombatConfig
	rng    RNGFactory
	logger *zap.Logger
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.RNG == nil {
		cfg.RNG = DefaultRNG
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg.Tuning, rng: cfg.RNG, logger: cfg.Logger}
}

// Simulate runs the combat to a knock-out or the turn cap. The result is a
// pure function of the arguments and the RNG factory.
func (s *Simulator) Simulate(challenger, defender character.Stats, bet, seed int64) (*Result, error) {
	if err := challenger.Validate(); err != nil {
		return nil, fmt.Errorf("challenger: %w", err)
	}
	if err := defender.Validate(); err != nil {
		return nil, fmt.Errorf("defender: %w", err)
	}
	if bet < 0 {
		return nil, fmt.Errorf("%w: bet must be >= 0, got %d", gameerr.ErrValidation, bet)
	}
	if s.cfg.MaxTurns <= 0 {
		return nil, fmt.Errorf("%w: max_turns must be > 0", gameerr.ErrValidation)
	}

	rng := s.rng(seed)
	c := newCombatant(SideChallenger, challenger, s.cfg)
	d := newCombatant(SideDefender, defender, s.cfg)

	att, def := c, d
	if d.stats.Agility > c.stats.Agility {
		att, def = d, c
	}

	res := &Result{
		Seed:       seed,
		Bet:        bet,
		Challenger: c.snapshot(),
		Defender:   d.snapshot(),
		FirstActor: att.side,
		Log:        make([]TurnEvent, 0, s.cfg.MaxTurns),
	}

	for turn := 1; turn <= s.cfg.MaxTurns; turn++ {
		sw := rollSwing(att, def, s.cfg, rng)
		def.takeDamage(sw.damage)
		res.Log = append(res.Log, TurnEvent{
			Turn:          turn,
			Actor:         att.side,
			Target:        def.side,
			Damage:        sw.damage,
			Critical:      sw.critical,
			Dodged:        sw.dodged,
			TargetHPAfter: def.hp,
		})
		res.TotalTurns = turn
		if !def.alive() {
			res.KnockOut = true
			break
		}
		att, def = def, att
	}

	res.ChallengerHP = c.hp
	res.DefenderHP = d.hp
	res.Winner = decide(c, d)

	s.logger.Debug("combat resolved",
		zap.Int64("seed", seed),
		zap.String("winner", string(res.Winner)),
		zap.Int("turns", res.TotalTurns),
		zap.Bool("ko", res.KnockOut))
	return res, nil
}

// decide picks the winner: a knocked-out side loses, otherwise the higher
// remaining HP fraction wins and an exact tie is a draw.
func decide(c, d *combatant) Winner {
	switch {
	case !d.alive():
		return WinnerChallenger
	case !c.alive():
		return WinnerDefender
	}
	// cross-multiplied to compare fractions exactly
	lhs := int64(c.hp) * int64(d.maxHP)
	rhs := int64(d.hp) * int64(c.maxHP)
	switch {
	case lhs > rhs:
		return WinnerChallenger
	case rhs > lhs:
		return WinnerDefender
	default:
		return WinnerDraw
	}
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/audit"
	"github.com/Asuura666/game-habits/game/badge"
	"github.com/Asuura666/game-habits/game/combat"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/game/reward"
	"github.com/Asuura666/game-habits/model"
)

var combatCategories = []badge.ConditionType{
	badge.CondCombatWins, badge.CondLevel, badge.CondSecret, badge.CondDateWindow,
}

type combatRequest struct {
	ChallengerID int64 `json:"challenger_id"`
	DefenderID   int64 `json:"defender_id"`
	Bet          int64 `json:"bet"`
}

// ResolveCombat simulates a challenge between two users and applies the
// reward split. Both users are locked for the whole operation; the bet is
// checked before anything is simulated.
func (s *Service) ResolveCombat(ctx context.Context, challengerID, defenderID, bet int64) (*model.CombatRecord, error) {
	req := combatRequest{ChallengerID: challengerID, DefenderID: defenderID, Bet: bet}
	started := s.clock.Now()
	if challengerID == defenderID {
		return nil, fmt.Errorf("%w: cannot challenge yourself", gameerr.ErrValidation)
	}
	if bet < 0 {
		return nil, fmt.Errorf("%w: bet must be >= 0, got %d", gameerr.ErrValidation, bet)
	}
	var (
		rec *model.CombatRecord
		fx  *effects
	)
	err := s.withRetry(ctx, "resolve_combat", func() error {
		var err error
		rec, fx, err = s.resolveCombat(ctx, req, started)
		return err
	})
	if err != nil {
		s.auditFailure(ctx, audit.ActionCombat, challengerID, req, err, started)
		return nil, err
	}
	s.apply(ctx, fx)
	return rec, nil
}

func (s *Service) resolveCombat(ctx context.Context, req combatRequest, started time.Time) (*model.CombatRecord, *effects, error) {
	unlock, err := s.locker.Lock(ctx, req.ChallengerID, req.DefenderID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	// Both users are locked, so the snapshots cannot move under us except
	// through writers that bypass the locker; saveUser's version check
	// catches those.
	var ch, df *aggregate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.loadAggregate(s.db.WithContext(gctx), req.ChallengerID)
		ch = a
		return err
	})
	g.Go(func() error {
		a, err := s.loadAggregate(s.db.WithContext(gctx), req.DefenderID)
		df = a
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if ch.user.Coins < req.Bet || df.user.Coins < req.Bet {
		return nil, nil, fmt.Errorf("%w: bet %d exceeds available coins (challenger %d, defender %d)",
			gameerr.ErrInsufficientResource, req.Bet, ch.user.Coins, df.user.Coins)
	}

	seed := s.seeds.Seed()
	result, err := s.sim.Simulate(ch.stats(), df.stats(), req.Bet, seed)
	if err != nil {
		return nil, nil, err
	}
	split, err := s.calc.Combat(reward.CombatInput{
		Outcome:         result.Winner.Outcome(),
		ChallengerLevel: ch.user.Level,
		DefenderLevel:   df.user.Level,
		ChallengerCoins: ch.user.Coins,
		DefenderCoins:   df.user.Coins,
		Bet:             req.Bet,
	})
	if err != nil {
		return nil, nil, err
	}

	rec, err := newCombatRecord(result, req, split, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}

	var fx effects
	at := s.clock.Now()
	chLevel, dfLevel := ch.user.Level, df.user.Level
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sides := []struct {
			agg      *aggregate
			xp       int64
			coins    int64
			won      bool
			lost     bool
			oldLevel int
			opponent int // opponent level before the fight
		}{
			{ch, split.ChallengerXP, split.ChallengerCoinsDelta, result.Winner == combat.WinnerChallenger, result.Winner == combat.WinnerDefender, chLevel, dfLevel},
			{df, split.DefenderXP, split.DefenderCoinsDelta, result.Winner == combat.WinnerDefender, result.Winner == combat.WinnerChallenger, dfLevel, chLevel},
		}
		for _, side := range sides {
			u := &side.agg.user
			oldLevel := side.oldLevel
			u.TotalXP += side.xp
			u.Coins += side.coins
			if side.won {
				u.CombatWins++
			}
			if side.lost {
				u.CombatLosses++
			}
			flags := map[string]bool{}
			if side.won && side.opponent > oldLevel {
				flags[badge.FlagGiantSlayer] = true
			}
			unlocked, badgeXP, err := s.evaluateBadges(ctx, tx, u, side.agg.streak.State(), flags, at, combatCategories)
			if err != nil {
				return err
			}
			points, err := s.grantStatPoints(tx, u.ID, u.Level-oldLevel)
			if err != nil {
				return err
			}
			if err := saveUser(tx, u); err != nil {
				return err
			}

			res := RewardResult{
				XP:             side.xp,
				Coins:          side.coins,
				BadgeXP:        badgeXP,
				StatPoints:     points,
				UnlockedBadges: codes(unlocked),
				Streak:         side.agg.streak.State(),
			}
			if u.Level > oldLevel {
				res.LeveledUp = true
				res.NewLevel = u.Level
			}
			fx.ranked = append(fx.ranked, rankedUser{id: u.ID, xp: u.TotalXP})
			fx.notes = append(fx.notes, Notification{
				Type:   NoteCombat,
				UserID: u.ID,
				Data:   map[string]interface{}{"combat_id": rec.ID, "winner": rec.Winner, "reward": res},
				At:     at,
			})
			for _, n := range s.progressNotes(u.ID, &res, unlocked) {
				if n.Type != NoteReward {
					fx.notes = append(fx.notes, n)
				}
			}
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, nil, err
	}

	fx.audits = append(fx.audits, audit.Entry{
		UserID:     &req.ChallengerID,
		Action:     audit.ActionCombat,
		Request:    req,
		Response:   map[string]interface{}{"combat_id": rec.ID, "winner": rec.Winner, "seed": seed, "turns": rec.TotalTurns},
		DurationMs: int(s.clock.Since(started).Milliseconds()),
	})
	s.logger.Info("combat resolved",
		zap.String("combat_id", rec.ID),
		zap.Int64("challenger_id", req.ChallengerID),
		zap.Int64("defender_id", req.DefenderID),
		zap.Int64("bet", req.Bet),
		zap.Int64("seed", seed),
		zap.String("winner", rec.Winner),
		zap.Int("turns", rec.TotalTurns))
	return rec, &fx, nil
}

func newCombatRecord(r *combat.Result, req combatRequest, split reward.CombatReward, at time.Time) (*model.CombatRecord, error) {
	chSnap, err := json.Marshal(r.Challenger)
	if err != nil {
		return nil, err
	}
	dfSnap, err := json.Marshal(r.Defender)
	if err != nil {
		return nil, err
	}
	log, err := json.Marshal(r.Log)
	if err != nil {
		return nil, err
	}
	return &model.CombatRecord{
		ID:                 uuid.NewString(),
		ChallengerID:       req.ChallengerID,
		DefenderID:         req.DefenderID,
		Seed:               r.Seed,
		Bet:                r.Bet,
		ChallengerSnapshot: datatypes.JSON(chSnap),
		DefenderSnapshot:   datatypes.JSON(dfSnap),
		TurnLog:            datatypes.JSON(log),
		Winner:             string(r.Winner),
		ChallengerHP:       r.ChallengerHP,
		DefenderHP:         r.DefenderHP,
		TotalTurns:         r.TotalTurns,
		ChallengerXP:       split.ChallengerXP,
		DefenderXP:         split.DefenderXP,
		BetTransferred:     split.BetTransferred,
		CreatedAt:          at,
	}, nil
}

// Combat loads a stored combat record.
func (s *Service) Combat(ctx context.Context, id string) (*model.CombatRecord, error) {
	var rec model.CombatRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: combat %s", gameerr.ErrNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

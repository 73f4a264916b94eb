package engine

import (
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/Asuura666/game-habits/game/character"
	"github.com/Asuura666/game-habits/game/gameerr"
	"github.com/Asuura666/game-habits/model"
)

// aggregate is everything one user owns that the rules read or write.
type aggregate struct {
	user   model.User
	char   model.Character
	streak model.Streak
	equips []model.Equipment
}

// loadAggregate reads a user's rows. The stored level column is only a
// denormalized copy; the level is recomputed from total XP on every load.
func (s *Service) loadAggregate(db *gorm.DB, userID int64) (*aggregate, error) {
	var a aggregate
	if err := db.First(&a.user, userID).Error; err != nil {
		return nil, notFound(err, "user", userID)
	}
	a.user.Level = s.curve.LevelForExperience(a.user.TotalXP)
	if err := db.Where("user_id = ?", userID).First(&a.char).Error; err != nil {
		return nil, notFound(err, "character of user", userID)
	}
	// Streak rows are created lazily for users registered before streaks.
	if err := db.Where(model.Streak{UserID: userID}).FirstOrInit(&a.streak).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ? AND equipped = ?", userID, true).Order("id").Find(&a.equips).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *aggregate) stats() character.Stats {
	return a.char.Stats(a.user.Level, a.equips)
}

// saveUser writes the progression counters only if nobody else bumped the
// version since the aggregate was read.
func saveUser(tx *gorm.DB, u *model.User) error {
	res := tx.Model(&model.User{}).
		Where("id = ? AND version = ?", u.ID, u.Version).
		Updates(map[string]interface{}{
			"total_xp":      u.TotalXP,
			"level":         u.Level,
			"coins":         u.Coins,
			"completions":   u.Completions,
			"combat_wins":   u.CombatWins,
			"combat_losses": u.CombatLosses,
			"version":       u.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d was modified concurrently", gameerr.ErrConcurrencyConflict, u.ID)
	}
	u.Version++
	return nil
}

// grantStatPoints adds points for every level gained.
func (s *Service) grantStatPoints(tx *gorm.DB, userID int64, levelsGained int) (int, error) {
	if levelsGained <= 0 || s.cfg.Reward.StatPointsPerLevel <= 0 {
		return 0, nil
	}
	pts := levelsGained * s.cfg.Reward.StatPointsPerLevel
	err := tx.Model(&model.Character{}).Where("user_id = ?", userID).
		Update("unspent_points", gorm.Expr("unspent_points + ?", pts)).Error
	return pts, err
}

func memberID(id int64) string { return strconv.FormatInt(id, 10) }

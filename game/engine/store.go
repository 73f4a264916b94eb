package engine

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Asuura666/game-habits/model"
)

// badgeStore is the gorm UnlockStore. It must run on the caller's
// transaction so an unlock rolls back with the rest of the mutation.
type badgeStore struct {
	tx *gorm.DB
}

// Unlock inserts the locked row if missing, then flips unlocked_at only
// while it is still NULL. RowsAffected tells whether this call won.
func (s badgeStore) Unlock(ctx context.Context, userID int64, code string, at time.Time) (bool, error) {
	tx := s.tx.WithContext(ctx)
	row := model.UserBadge{UserID: userID, BadgeCode: code}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return false, err
	}
	res := tx.Model(&model.UserBadge{}).
		Where("user_id = ? AND badge_code = ? AND unlocked_at IS NULL", userID, code).
		Update("unlocked_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

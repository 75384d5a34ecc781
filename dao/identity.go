package dao

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
)

// UpsertIdentityNonce creates the identity on first sight, otherwise replaces its nonce.
func (d *Dao) UpsertIdentityNonce(c context.Context, address, nonce string) error {
	identity := &avs.Identity{Address: address, Nonce: nonce}
	return d.DB.WithContext(c).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "updated_at"}),
	}).Create(identity).Error
}

func (d *Dao) GetIdentityByAddress(c context.Context, address string) (*avs.Identity, error) {
	var identity avs.Identity
	err := d.DB.WithContext(c).Where("address = ?", address).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (d *Dao) GetIdentityByID(c context.Context, id string) (*avs.Identity, error) {
	var identity avs.Identity
	err := d.DB.WithContext(c).Where("id = ?", id).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// RotateIdentityNonce swaps the nonce only if it still equals current, so two
// verifications racing on one signature cannot both succeed.
func (d *Dao) RotateIdentityNonce(c context.Context, id, current, next string, at time.Time) (bool, error) {
	res := d.DB.WithContext(c).Model(&avs.Identity{}).
		Where("id = ? AND nonce = ?", id, current).
		Updates(map[string]interface{}{
			"nonce":      next,
			"last_login": at,
		})
	return res.RowsAffected == 1, res.Error
}

// SetIdentityBan toggles the ban flag and returns the updated identity.
func (d *Dao) SetIdentityBan(c context.Context, address string, banned bool, reason string) (*avs.Identity, error) {
	err := d.DB.WithContext(c).Model(&avs.Identity{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"is_banned":  banned,
			"ban_reason": reason,
		}).Error
	if err != nil {
		return nil, err
	}
	// RowsAffected is 0 on mysql for an unchanged row, so existence is checked by reading back
	return d.GetIdentityByAddress(c, address)
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

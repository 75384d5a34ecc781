package avs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is a wallet keyed account. Address is always lowercase.
type Identity struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Address   string     `gorm:"size:42;not null;uniqueIndex" json:"address"`
	Nonce     string     `gorm:"size:128;not null" json:"-"`
	IsBanned  bool       `gorm:"not null;default:false" json:"is_banned"`
	BanReason string     `gorm:"size:500" json:"ban_reason,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func IdentityTableName() string {
	return "identity"
}

func (Identity) TableName() string { return IdentityTableName() }

func (i *Identity) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

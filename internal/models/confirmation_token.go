package models

import "time"

// ConfirmationToken is the credential mailed to a user to verify their account.
type ConfirmationToken struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ConfirmationToken string    `gorm:"uniqueIndex;size:64;not null" json:"confirmation_token"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	User              *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `gorm:"not null" json:"expires_at"`
}

// Expired reports whether the token can no longer confirm an account.
func (t *ConfirmationToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

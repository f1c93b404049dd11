package models

import "time"

// User is an account inside a team, keyed by provider, provider user id and team.
type User struct {
	BaseModel

	TeamID         string  `gorm:"size:36;not null;index;uniqueIndex:idx_users_provider_identity" json:"team_id"`
	Team           *Team   `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Provider       string  `gorm:"size:32;not null;uniqueIndex:idx_users_provider_identity" json:"provider"`
	ProviderUserID string  `gorm:"size:255;not null;uniqueIndex:idx_users_provider_identity" json:"provider_user_id"`
	Name           string  `json:"name"`
	Email          string  `gorm:"index" json:"email"`
	AvatarURL      *string `gorm:"size:2048" json:"avatar_url,omitempty"`

	IsAdmin       bool       `gorm:"not null;default:false" json:"is_admin"`
	SuspendedAt   *time.Time `json:"suspended_at,omitempty"`
	SuspendedByID *string    `gorm:"size:36" json:"suspended_by_id,omitempty"`

	LastSignedInAt *time.Time `json:"last_signed_in_at,omitempty"`
	LastSignedInIP string     `gorm:"size:64" json:"last_signed_in_ip,omitempty"`
}

// IsSuspended reports whether an administrator suspended the account.
func (u *User) IsSuspended() bool {
	return u.SuspendedAt != nil
}

package models

import "gorm.io/datatypes"

// AuditLog records administrative operations performed on a team.
type AuditLog struct {
	BaseModel

	TeamID    string         `gorm:"size:36;index" json:"team_id"`
	ActorID   *string        `gorm:"size:36;index" json:"actor_id"`
	Action    string         `gorm:"not null;index" json:"action"`
	Resource  string         `gorm:"index" json:"resource"`
	Result    string         `gorm:"not null" json:"result"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Metadata  datatypes.JSON `json:"metadata"`
}

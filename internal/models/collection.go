package models

const CollectionTypeAtlas = "atlas"

// Collection groups documents inside a team.
type Collection struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Type        string `gorm:"size:32;not null" json:"type"`
	TeamID      string `gorm:"size:36;not null;index" json:"team_id"`
	CreatorID   string `gorm:"size:36;not null" json:"creator_id"`
}

package models

// Team is a tenant. A team bound to a federated provider is keyed by the
// provider's tenant identifier (the Google hosted domain).
type Team struct {
	BaseModel

	Name             string  `gorm:"not null" json:"name"`
	Subdomain        *string `gorm:"size:32;uniqueIndex" json:"subdomain,omitempty"`
	Provider         string  `gorm:"size:32;not null;uniqueIndex:idx_teams_provider_tenant" json:"provider"`
	ExternalTenantID string  `gorm:"size:255;not null;uniqueIndex:idx_teams_provider_tenant" json:"external_tenant_id"`
	AvatarURL        *string `gorm:"size:2048" json:"avatar_url,omitempty"`
	Sharing          bool    `gorm:"not null;default:true" json:"sharing"`

	Users []User `gorm:"foreignKey:TeamID" json:"users,omitempty"`
}

// HasSubdomain reports whether the team claimed a subdomain.
func (t *Team) HasSubdomain() bool {
	return t.Subdomain != nil && *t.Subdomain != ""
}

// Avatar returns the avatar URL or an empty string.
func (t *Team) Avatar() string {
	if t.AvatarURL == nil {
		return ""
	}
	return *t.AvatarURL
}

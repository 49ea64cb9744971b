package models

import "gorm.io/datatypes"

// AuditLog records membership, invitation and quote events.
type AuditLog struct {
	BaseModel

	ActorID    *string        `gorm:"size:36;index" json:"actor_id,omitempty"`
	Username   string         `gorm:"size:50" json:"username,omitempty"`
	Action     string         `gorm:"size:64;not null;index" json:"action"`
	Resource   string         `gorm:"size:32;index" json:"resource"`
	ResourceID string         `gorm:"size:36;index" json:"resource_id,omitempty"`
	Result     string         `gorm:"size:16;not null" json:"result"`
	IPAddress  string         `gorm:"size:64" json:"ip_address,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
}

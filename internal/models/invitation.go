package models

import "time"

// InvitationStatus tracks a group invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// GroupInvitation is an e-mailed invite to join a group. Only the SHA-256
// digest of the token is stored.
type GroupInvitation struct {
	BaseModel

	GroupID    string           `gorm:"size:36;not null;index" json:"group_id"`
	InviterID  string           `gorm:"size:36;not null;index" json:"inviter_id"`
	Email      string           `gorm:"size:254;not null;index" json:"email"`
	TokenHash  string           `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Status     InvitationStatus `gorm:"size:16;not null;index" json:"status"`
	ExpiresAt  time.Time        `gorm:"not null;index" json:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy *string          `gorm:"size:36" json:"accepted_by,omitempty"`

	Group   *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
	Inviter *User  `gorm:"foreignKey:InviterID;constraint:OnDelete:CASCADE" json:"-"`
}

// ExpiredAt reports whether the invitation has lapsed at now.
func (i GroupInvitation) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

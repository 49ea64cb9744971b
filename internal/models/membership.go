package models

import "time"

// MembershipStatus is a user's role within one group.
type MembershipStatus string

const (
	StatusCreator MembershipStatus = "creator"
	StatusAdmin   MembershipStatus = "admin"
	StatusMember  MembershipStatus = "member"
	StatusPending MembershipStatus = "pending"
)

// Valid reports whether s is a known status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusCreator, StatusAdmin, StatusMember, StatusPending:
		return true
	}
	return false
}

// CanModerate is true for roles allowed to accept, reject and invite.
func (s MembershipStatus) CanModerate() bool {
	return s == StatusAdmin || s == StatusCreator
}

// CanView is true for roles allowed to see members, tradesmen and jobs.
func (s MembershipStatus) CanView() bool {
	return s == StatusMember || s.CanModerate()
}

// ViewerStatuses lists the statuses satisfying CanView, for IN queries.
func ViewerStatuses() []MembershipStatus {
	return []MembershipStatus{StatusMember, StatusAdmin, StatusCreator}
}

// ModeratorStatuses lists the statuses satisfying CanModerate.
func ModeratorStatuses() []MembershipStatus {
	return []MembershipStatus{StatusAdmin, StatusCreator}
}

// UserGroup is the membership row. The composite primary key allows at most
// one row per (user, group) pair.
type UserGroup struct {
	UserID    string           `gorm:"primaryKey;size:36" json:"user_id"`
	GroupID   string           `gorm:"primaryKey;size:36;index" json:"group_id"`
	Status    MembershipStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Group *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

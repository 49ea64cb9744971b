package models

import (
	"strings"
	"time"
)

// TradeTypes are the trades offered in forms. Stored trades are free text.
var TradeTypes = []string{
	"Carpenter",
	"Electrician",
	"Gardener",
	"General Builder",
	"HVAC",
	"Mason",
	"Painter / Plasterer",
	"Plumber",
	"Roofer",
	"Tiler",
}

// Tradesman is a service provider tracked independently of who added them.
type Tradesman struct {
	BaseModel

	Trade       string `gorm:"size:100;not null;index" json:"trade"`
	FirstName   string `gorm:"size:100" json:"first_name,omitempty"`
	FamilyName  string `gorm:"size:100" json:"family_name,omitempty"`
	CompanyName string `gorm:"size:200" json:"company_name,omitempty"`
	Address     string `gorm:"size:300" json:"address,omitempty"`
	Postcode    string `gorm:"size:20;index" json:"postcode,omitempty"`
	Phone       string `gorm:"size:40" json:"phone,omitempty"`
	Email       string `gorm:"size:254" json:"email,omitempty"`
}

// DisplayName prefers the person's name and falls back to the company.
func (t Tradesman) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(t.FirstName) + " " + strings.TrimSpace(t.FamilyName))
	if name != "" {
		return name
	}
	return t.CompanyName
}

// UserTradesman records that a user added a tradesman, granting edit rights.
type UserTradesman struct {
	UserID      string    `gorm:"primaryKey;size:36" json:"user_id"`
	TradesmanID string    `gorm:"primaryKey;size:36;index" json:"tradesman_id"`
	DateAdded   time.Time `gorm:"not null" json:"date_added"`

	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tradesman *Tradesman `gorm:"foreignKey:TradesmanID;constraint:OnDelete:CASCADE" json:"-"`
}

// GroupTradesman makes a tradesman visible inside a group.
type GroupTradesman struct {
	GroupID     string    `gorm:"primaryKey;size:36" json:"group_id"`
	TradesmanID string    `gorm:"primaryKey;size:36;index" json:"tradesman_id"`
	CreatedAt   time.Time `json:"created_at"`

	Group     *Group     `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Tradesman *Tradesman `gorm:"foreignKey:TradesmanID;constraint:OnDelete:CASCADE" json:"-"`
}

package models

import "time"

// User is a registered member of the directory.
type User struct {
	BaseModel

	Username  string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email     string `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	FirstName string `gorm:"size:100;not null" json:"firstname"`
	LastName  string `gorm:"size:100;not null" json:"lastname"`
	Postcode  string `gorm:"size:20;index" json:"postcode"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

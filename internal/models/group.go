package models

// Group is a postcode-scoped circle of users sharing tradesman recommendations.
type Group struct {
	BaseModel

	Name        string `gorm:"size:100;not null;index" json:"name"`
	Postcode    string `gorm:"size:20;not null;index" json:"postcode"`
	Description string `gorm:"size:500" json:"description,omitempty"`
	// CreatedBy is informational; the creator role lives on UserGroup.
	CreatedBy string `gorm:"size:36;index" json:"created_by"`
}

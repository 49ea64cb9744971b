package models

import "gorm.io/datatypes"

// JobType discriminates completed work from estimates in the jobs table.
type JobType string

const (
	TypeJob   JobType = "job"
	TypeQuote JobType = "quote"
)

// QuoteStatus tracks a quote. Jobs carry StatusAccepted.
type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteDeclined QuoteStatus = "declined"
)

// Job holds both jobs and quotes. Job fields and quote fields are mutually
// exclusive by Type.
type Job struct {
	BaseModel

	Type        JobType     `gorm:"size:8;not null;index" json:"type"`
	Status      QuoteStatus `gorm:"size:16;not null;index" json:"status"`
	UserID      string      `gorm:"size:36;not null;index" json:"user_id"`
	TradesmanID string      `gorm:"size:36;not null;index" json:"tradesman_id"`

	Title       string `gorm:"size:200;not null" json:"title"`
	Description string `gorm:"size:2000" json:"description,omitempty"`

	// job
	DateStarted  *datatypes.Date `json:"date_started,omitempty"`
	DateFinished *datatypes.Date `json:"date_finished,omitempty"`
	CallOutFee   *float64        `json:"call_out_fee,omitempty"`
	MaterialsFee *float64        `json:"materials_fee,omitempty"`
	HourlyRate   *float64        `json:"hourly_rate,omitempty"`
	HoursWorked  *float64        `json:"hours_worked,omitempty"`
	DailyRate    *float64        `json:"daily_rate,omitempty"`
	DaysWorked   *float64        `json:"days_worked,omitempty"`
	TotalCost    *float64        `json:"total_cost,omitempty"`
	Rating       *int            `json:"rating,omitempty"`

	// quote
	DateRequested  *datatypes.Date `json:"date_requested,omitempty"`
	DateReceived   *datatypes.Date `json:"date_received,omitempty"`
	HoursEstimated *float64        `json:"hours_estimated,omitempty"`
	DaysEstimated  *float64        `json:"days_estimated,omitempty"`
	TotalQuote     *float64        `json:"total_quote,omitempty"`

	Attachment string `gorm:"size:255" json:"attachment,omitempty"`

	User      *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tradesman *Tradesman `gorm:"foreignKey:TradesmanID;constraint:OnDelete:CASCADE" json:"tradesman,omitempty"`
}

// IsQuote reports whether the row is still an estimate.
func (j Job) IsQuote() bool { return j.Type == TypeQuote }

// TotalCostOrQuote returns the figure shown in listings: actual cost for
// jobs and the quoted total for quotes.
func (j Job) TotalCostOrQuote() *float64 {
	if j.Type == TypeQuote {
		return j.TotalQuote
	}
	return j.TotalCost
}

package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EntitlementRecord tracks trial state and credit balance for one user,
// keyed by normalized email. RegisteredAt is set once at first contact and
// never changes; TrialUsed only ever transitions false -> true.
type EntitlementRecord struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Email                string    `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,min=5,max=200"`
	RegisteredAt         time.Time `gorm:"type:timestamp;not null" json:"registered_at"`
	CreditBalance        int64     `gorm:"not null;default:0" json:"credit_balance"`
	PaidAmountCumulative int64     `gorm:"not null;default:0" json:"paid_amount_cumulative"`
	TrialUsed            bool      `gorm:"not null;default:false" json:"trial_used"`
	OriginIP             string    `gorm:"type:varchar(45);index" json:"-"`
	GenerationCount      int64     `gorm:"not null;default:0" json:"generation_count"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *EntitlementRecord) Validate() error {
	v := validator.New()

	return v.Struct(r)
}

// NormalizeEmail lowercases and trims an email so the same mailbox always
// resolves to the same record key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

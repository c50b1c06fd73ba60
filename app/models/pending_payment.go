package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Pending payment claim states.
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

// PendingPayment is a manually submitted payment claim waiting for an admin
// decision. Status transitions only pending -> approved or pending -> rejected,
// each exactly once; repeat decisions are no-ops.
type PendingPayment struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UUID                 string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	Email                string     `gorm:"type:varchar(200);not null;index" json:"email" validate:"required,email,min=5,max=200"`
	ClaimedTransactionID string     `gorm:"type:varchar(191);not null" json:"claimed_transaction_id" validate:"required,min=8,max=191"`
	ClaimedAmount        int64      `gorm:"not null" json:"claimed_amount" validate:"required,gt=0"`
	PlanType             string     `gorm:"type:varchar(50);not null;default:''" json:"plan_type" validate:"max=50"`
	Status               string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	SubmittedAt          time.Time  `gorm:"type:timestamp;not null" json:"submitted_at"`
	DecidedAt            *time.Time `gorm:"type:timestamp;default:null" json:"decided_at,omitempty"`
	DecidedBy            string     `gorm:"type:varchar(100);not null;default:''" json:"decided_by"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PendingPayment) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsDecided reports whether the claim already reached a terminal state.
func (p *PendingPayment) IsDecided() bool {
	return p.Status != ClaimStatusPending
}

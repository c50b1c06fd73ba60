package models

import "time"

// Transaction is the append-only record of every credit grant ever applied.
// The unique index on TransactionID is the idempotency anchor: a payment
// reference can be credited at most once, no matter how often the gateway
// retries or an admin re-approves a claim.
type Transaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"transaction_id"`
	Email         string    `gorm:"type:varchar(200);not null;index" json:"email"`
	Amount        int64     `gorm:"not null" json:"amount"`
	PlanType      string    `gorm:"type:varchar(50);not null;default:''" json:"plan_type"`
	AppliedAt     time.Time `gorm:"type:timestamp;not null" json:"applied_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

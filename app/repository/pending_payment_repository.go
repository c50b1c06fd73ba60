package repository

import (
	"time"

	"github.com/deckforge/DeckForge/app/models"
	"gorm.io/gorm"
)

// pendingPaymentRepository implements the PendingPaymentRepository interface
type pendingPaymentRepository struct {
	db *gorm.DB
}

// NewPendingPaymentRepository creates a new pending payment repository instance
func NewPendingPaymentRepository(db *gorm.DB) PendingPaymentRepository {
	return &pendingPaymentRepository{db: db}
}

// Create stores a newly submitted claim
func (r *pendingPaymentRepository) Create(claim *models.PendingPayment) error {
	return r.db.Create(claim).Error
}

// GetByUUID retrieves a claim by its public identifier
func (r *pendingPaymentRepository) GetByUUID(uuid string) (*models.PendingPayment, error) {
	var claim models.PendingPayment
	err := r.db.Where("uuid = ?", uuid).First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ListByStatus returns claims in one state, oldest first so the admin works
// through the backlog in submission order
func (r *pendingPaymentRepository) ListByStatus(status string, offset, limit int) ([]models.PendingPayment, error) {
	var claims []models.PendingPayment
	err := r.db.Where("status = ?", status).
		Order("submitted_at ASC").Offset(offset).Limit(limit).Find(&claims).Error
	return claims, err
}

// Decide moves a claim out of pending. The WHERE clause on the current status
// makes the transition single–shot: a second approve or reject matches zero
// rows and reports false instead of re-running the side effects.
func (r *pendingPaymentRepository) Decide(uuid, status, decidedBy string, decidedAt time.Time) (bool, error) {
	tx := r.db.Model(&models.PendingPayment{}).
		Where("uuid = ? AND status = ?", uuid, models.ClaimStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_at": &decidedAt,
			"decided_by": decidedBy,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// CountByStatus returns the number of claims in one state
func (r *pendingPaymentRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PendingPayment{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// DeleteAll clears all claims. Administrative reset only.
func (r *pendingPaymentRepository) DeleteAll() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.PendingPayment{}).Error
}

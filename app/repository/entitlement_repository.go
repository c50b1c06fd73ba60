package repository

import (
	"sort"
	"strings"

	"github.com/deckforge/DeckForge/app/models"
	"gorm.io/gorm"
)

// entitlementRepository implements the EntitlementRepository interface
type entitlementRepository struct {
	db *gorm.DB
}

// NewEntitlementRepository creates a new entitlement repository instance
func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

// Create creates a new entitlement record in the database
func (r *entitlementRepository) Create(record *models.EntitlementRecord) error {
	return r.db.Create(record).Error
}

// GetByEmail retrieves an entitlement record by its normalized email key
func (r *entitlementRepository) GetByEmail(email string) (*models.EntitlementRecord, error) {
	var record models.EntitlementRecord
	err := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Save persists the full record state
func (r *entitlementRepository) Save(record *models.EntitlementRecord) error {
	return r.db.Save(record).Error
}

// DeductIfSufficient spends credits with a single conditional UPDATE. The
// balance check and the decrement happen in one statement, so two concurrent
// deductions can never both succeed on the same credits and the balance can
// never go negative.
func (r *entitlementRepository) DeductIfSufficient(email string, cost int64) (*models.EntitlementRecord, bool, error) {
	normalized := models.NormalizeEmail(email)
	tx := r.db.Model(&models.EntitlementRecord{}).
		Where("email = ? AND credit_balance >= ?", normalized, cost).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance - ?", cost))
	if tx.Error != nil {
		return nil, false, tx.Error
	}
	applied := tx.RowsAffected > 0

	record, err := r.GetByEmail(normalized)
	if err != nil {
		return nil, applied, err
	}
	return record, applied, nil
}

// AddCredit applies a credit grant as one additive UPDATE.
func (r *entitlementRepository) AddCredit(email string, amount, paidIncrement int64) (*models.EntitlementRecord, error) {
	normalized := models.NormalizeEmail(email)
	err := r.db.Model(&models.EntitlementRecord{}).
		Where("email = ?", normalized).
		UpdateColumns(map[string]interface{}{
			"credit_balance":         gorm.Expr("credit_balance + ?", amount),
			"paid_amount_cumulative": gorm.Expr("paid_amount_cumulative + ?", paidIncrement),
		}).Error
	if err != nil {
		return nil, err
	}
	return r.GetByEmail(normalized)
}

// MarkTrialUsed flips the one-way trial_used flag.
func (r *entitlementRepository) MarkTrialUsed(email string) error {
	return r.db.Model(&models.EntitlementRecord{}).
		Where("email = ?", models.NormalizeEmail(email)).
		UpdateColumn("trial_used", true).Error
}

// TrialUsedByIP reports whether any record sharing the origin IP has consumed
// its trial. Used only when creating a brand-new record for an unseen email.
func (r *entitlementRepository) TrialUsedByIP(ip string) (bool, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.EntitlementRecord{}).
		Where("origin_ip = ? AND trial_used = ?", ip, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddGenerationCounts batches drained usage counters into generation_count
// with one CASE-based UPDATE per flush.
func (r *entitlementRepository) AddGenerationCounts(counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}

	emails := make([]string, 0, len(counts))
	for email, inc := range counts {
		if inc != 0 {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return nil
	}
	sort.Strings(emails)

	var builder strings.Builder
	args := make([]interface{}, 0, len(emails)*3)
	builder.WriteString("UPDATE entitlement_records SET generation_count = generation_count + CASE email")
	for _, email := range emails {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, email, counts[email])
	}
	builder.WriteString(" ELSE 0 END WHERE email IN (")
	for i, email := range emails {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, email)
	}
	builder.WriteString(")")

	return r.db.Exec(builder.String(), args...).Error
}

// Count returns the total number of entitlement records
func (r *entitlementRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.EntitlementRecord{}).Count(&count).Error
	return count, err
}

// List returns entitlement records with pagination
func (r *entitlementRepository) List(offset, limit int) ([]models.EntitlementRecord, error) {
	var records []models.EntitlementRecord
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&records).Error
	return records, err
}

// DeleteAll clears the whole store. Administrative reset only.
func (r *entitlementRepository) DeleteAll() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.EntitlementRecord{}).Error
}

package repository

import (
	"github.com/deckforge/DeckForge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction ledger repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// CreateIfNotExists inserts the transaction against the unique index on
// transaction_id. The conflict clause makes the duplicate case a clean no-op
// instead of an error, and RowsAffected tells the caller which case happened.
func (r *transactionRepository) CreateIfNotExists(tx *models.Transaction) (bool, *models.Transaction, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(tx)
	if res.Error != nil {
		return false, nil, res.Error
	}

	created := res.RowsAffected > 0
	var stored models.Transaction
	if err := r.db.Where("transaction_id = ?", tx.TransactionID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetByTransactionID retrieves a ledger entry by its gateway/claim identifier
func (r *transactionRepository) GetByTransactionID(transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("transaction_id = ?", transactionID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListByEmail returns all grants applied to one user, newest first
func (r *transactionRepository) ListByEmail(email string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Where("email = ?", models.NormalizeEmail(email)).
		Order("applied_at DESC").Find(&txs).Error
	return txs, err
}

// ListAll returns the full ledger ordered by application time
func (r *transactionRepository) ListAll() ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Order("applied_at ASC").Find(&txs).Error
	return txs, err
}

// CountAndSum returns the number of ledger entries and the total credited amount
func (r *transactionRepository) CountAndSum() (int64, int64, error) {
	var count int64
	if err := r.db.Model(&models.Transaction{}).Count(&count).Error; err != nil {
		return 0, 0, err
	}
	var sum struct {
		Total int64
	}
	if err := r.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").Scan(&sum).Error; err != nil {
		return 0, 0, err
	}
	return count, sum.Total, nil
}

// DeleteAll clears the ledger. Administrative reset only.
func (r *transactionRepository) DeleteAll() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Transaction{}).Error
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/transaction"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormTransactionReader implements transaction.Reader as a read-only view
// over whichever system of record writes captured payments; the engine
// never mutates this table.
type GormTransactionReader struct {
	db *gorm.DB
}

// NewGormTransactionReader builds a GormTransactionReader.
func NewGormTransactionReader(db *gorm.DB) *GormTransactionReader {
	return &GormTransactionReader{db: db}
}

func (r *GormTransactionReader) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	var m models.TransactionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

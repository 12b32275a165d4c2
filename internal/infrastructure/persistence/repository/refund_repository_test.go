package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
)

func newMockRefundRepository(t *testing.T) (*GormRefundRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormRefundRepository(gormDB), mock, mockDB
}

func newDraftRequest(t *testing.T) *refund.Request {
	r, err := refund.New("txn-1", "merchant-1", decimal.NewFromInt(10), "USD", refund.MethodOriginalPayment, "customer request", "", "idem-key-1")
	require.NoError(t, err)
	return r
}

func TestGormRefundRepository_Save_UniqueViolationOnCreateReturnsAlreadyExists(t *testing.T) {
	repo, mock, mockDB := newMockRefundRepository(t)
	defer mockDB.Close()

	r := newDraftRequest(t)

	mock.ExpectQuery(`SELECT \* FROM "refund_requests" WHERE id = \$1`).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec(`INSERT INTO "refund_requests"`).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, Message: "duplicate key value violates unique constraint \"idx_refund_idem\""})

	err := repo.Save(context.Background(), r)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists),
		"a concurrent create racing idx_refund_idem must surface as shared.ErrAlreadyExists, not the raw pg error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	t.Run("matches pg unique violation", func(t *testing.T) {
		assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	})
	t.Run("does not match other pg errors", func(t *testing.T) {
		assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	})
	t.Run("does not match unrelated errors", func(t *testing.T) {
		assert.False(t, isUniqueViolation(errors.New("boom")))
	})
}

// Package repository holds GORM-backed implementations of the domain
// repository interfaces: pagination, an optimistic-concurrency save
// pattern, and Sum/Count aggregates via decimal.NullDecimal.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// pgUniqueViolation is the SQLSTATE Postgres raises for a unique-constraint
// conflict, e.g. a concurrent duplicate create racing idx_refund_idem.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GormRefundRepository implements refund.Repository over GORM.
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository builds a GormRefundRepository.
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*refund.Request, error) {
	var m models.RefundModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormRefundRepository) FindByMerchantTransactionIdempotencyKey(ctx context.Context, merchantID, transactionID, idempotencyKey string) (*refund.Request, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var m models.RefundModel
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND transaction_id = ? AND client_idempotency_key = ?", merchantID, transactionID, idempotencyKey).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormRefundRepository) FindByGatewayReference(ctx context.Context, gatewayType, reference string) (*refund.Request, error) {
	if reference == "" {
		return nil, nil
	}
	var m models.RefundModel
	err := r.db.WithContext(ctx).
		Where("gateway_type = ? AND gateway_reference = ?", gatewayType, reference).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormRefundRepository) FindAll(ctx context.Context, filter shared.Filter, merchantID, status string) ([]refund.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RefundModel{})
	if merchantID != "" {
		query = query.Where("merchant_id = ?", merchantID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if v, ok := filter.Filters["startDate"]; ok {
		query = query.Where("created_at >= ?", v)
	}
	if v, ok := filter.Filters["endDate"]; ok {
		query = query.Where("created_at <= ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	var rows []models.RefundModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]refund.Request, 0, len(rows))
	for i := range rows {
		d, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, nil
}

func (r *GormRefundRepository) FindPending(ctx context.Context, statuses []refund.Status, limit int) ([]refund.Request, error) {
	strStatuses := make([]string, len(statuses))
	for i, s := range statuses {
		strStatuses[i] = string(s)
	}
	var rows []models.RefundModel
	q := r.db.WithContext(ctx).Where("status IN ?", strStatuses).Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]refund.Request, 0, len(rows))
	for i := range rows {
		d, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// Save performs an insert for a new aggregate (no row with its id yet) or
// an optimistic-concurrency update for an existing one: the UPDATE is
// conditioned on the previously-loaded version and fails with
// shared.ErrConcurrencyConflict if no row matched. A new aggregate may
// already carry a version above 1, since each Transition increments it.
func (r *GormRefundRepository) Save(ctx context.Context, agg *refund.Request) error {
	m, err := models.RefundModelFromDomain(agg)
	if err != nil {
		return err
	}

	var existing models.RefundModel
	err = r.db.WithContext(ctx).Where("id = ?", m.ID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		createErr := r.db.WithContext(ctx).Create(m).Error
		if createErr != nil && isUniqueViolation(createErr) {
			// Another request won the race on idx_refund_idem between our
			// caller's idempotency check and this insert.
			return shared.ErrAlreadyExists
		}
		return createErr
	}
	if err != nil {
		return err
	}

	priorVersion := m.Version - 1
	result := r.db.WithContext(ctx).
		Model(&models.RefundModel{}).
		Where("id = ? AND version = ?", m.ID, priorVersion).
		Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormRefundRepository) SumCompletedByTransaction(ctx context.Context, transactionID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.RefundModel{}).
		Where("transaction_id = ? AND status = ?", transactionID, string(refund.StatusCompleted)).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if sum.Valid {
		return sum.Decimal, nil
	}
	return decimal.Zero, nil
}

func (r *GormRefundRepository) SumByMerchant(ctx context.Context, merchantID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.RefundModel{}).
		Where("merchant_id = ? AND status = ?", merchantID, string(refund.StatusCompleted)).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if sum.Valid {
		return sum.Decimal, nil
	}
	return decimal.Zero, nil
}

func (r *GormRefundRepository) CountByStatus(ctx context.Context, merchantID string) (map[refund.Status]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	q := r.db.WithContext(ctx).Model(&models.RefundModel{}).Select("status, count(*) as count").Group("status")
	if merchantID != "" {
		q = q.Where("merchant_id = ?", merchantID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[refund.Status]int64, len(rows))
	for _, rr := range rows {
		out[refund.Status(rr.Status)] = rr.Count
	}
	return out, nil
}

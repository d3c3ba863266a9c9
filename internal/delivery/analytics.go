package delivery

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/broadwing/dispatch/internal/domain"
)

// Analytics summarizes delivery outcomes over a time window. Rates are
// fractions of Total, 0 when Total is 0.
type Analytics struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Total       int
	PerStatus   map[domain.DeliveryStatus]int
	DeliveryRate float64
	ReadRate     float64
	FailureRate  float64
	AvgDeliveryTime time.Duration
	AvgReadTime     time.Duration
	ErrorHistogram  map[string]int
}

// Analytics computes aggregate delivery statistics over the window
// [since, now]. It runs inside a single transaction so every figure is
// consistent with the same snapshot of the table even while writes
// continue to land.
func (s *Store) Analytics(ctx context.Context, since, now time.Time) (Analytics, error) {
	result := Analytics{
		WindowStart: since,
		WindowEnd:   now,
		PerStatus:   map[domain.DeliveryStatus]int{},
		ErrorHistogram: map[string]int{},
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics begin", Err: err}
	}
	defer tx.Rollback()

	statusQuery, args, err := psql.Select("status", "COUNT(*)").
		From("delivery_records").
		Where(sq.And{sq.GtOrEq{"created_at": since}, sq.LtOrEq{"created_at": now}}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}

	rows, err := tx.QueryContext(ctx, statusQuery, args...)
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return result, &domain.StorageError{Operation: "analytics", Err: err}
		}
		result.PerStatus[domain.DeliveryStatus(status)] = count
		result.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}

	if result.Total > 0 {
		result.DeliveryRate = float64(result.PerStatus[domain.StatusDelivered]) / float64(result.Total)
		result.ReadRate = float64(result.PerStatus[domain.StatusRead]) / float64(result.Total)
		result.FailureRate = float64(result.PerStatus[domain.StatusFailed]) / float64(result.Total)
	}

	avgQuery, args, err := psql.Select(
		"AVG(strftime('%s', delivered_at) - strftime('%s', sent_at))",
	).From("delivery_records").
		Where(sq.And{
			sq.GtOrEq{"created_at": since}, sq.LtOrEq{"created_at": now},
			sq.NotEq{"sent_at": nil}, sq.NotEq{"delivered_at": nil},
		}).ToSql()
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	var avgDeliverySecs sql.NullFloat64
	if err := tx.QueryRowContext(ctx, avgQuery, args...).Scan(&avgDeliverySecs); err != nil && err != sql.ErrNoRows {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	if avgDeliverySecs.Valid {
		result.AvgDeliveryTime = time.Duration(avgDeliverySecs.Float64) * time.Second
	}

	readQuery, args, err := psql.Select(
		"AVG(strftime('%s', read_at) - strftime('%s', delivered_at))",
	).From("delivery_records").
		Where(sq.And{
			sq.GtOrEq{"created_at": since}, sq.LtOrEq{"created_at": now},
			sq.NotEq{"delivered_at": nil}, sq.NotEq{"read_at": nil},
		}).ToSql()
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	var avgReadSecs sql.NullFloat64
	if err := tx.QueryRowContext(ctx, readQuery, args...).Scan(&avgReadSecs); err != nil && err != sql.ErrNoRows {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	if avgReadSecs.Valid {
		result.AvgReadTime = time.Duration(avgReadSecs.Float64) * time.Second
	}

	errQuery, args, err := psql.Select("error", "COUNT(*)").
		From("delivery_records").
		Where(sq.And{
			sq.GtOrEq{"created_at": since}, sq.LtOrEq{"created_at": now},
			sq.Eq{"status": string(domain.StatusFailed)},
			sq.NotEq{"error": ""},
		}).
		GroupBy("error").
		ToSql()
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	errRows, err := tx.QueryContext(ctx, errQuery, args...)
	if err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}
	for errRows.Next() {
		var code string
		var count int
		if err := errRows.Scan(&code, &count); err != nil {
			errRows.Close()
			return result, &domain.StorageError{Operation: "analytics", Err: err}
		}
		result.ErrorHistogram[code] = count
	}
	errRows.Close()
	if err := errRows.Err(); err != nil {
		return result, &domain.StorageError{Operation: "analytics", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return result, &domain.StorageError{Operation: "analytics commit", Err: err}
	}
	return result, nil
}

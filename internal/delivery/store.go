// Package delivery is the durable, single-node store for domain.DeliveryRecord
// values: an embedded SQLite table fronted by a bounded LRU of the most
// recently touched records, plus the analytics and retention-sweep queries
// that read it.
package delivery

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/cache"
	"github.com/broadwing/dispatch/pkg/logger"
)

// recentCacheSize is the size of the read-through LRU fronting the store.
const recentCacheSize = 1000

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store is the relational backing for delivery records, with an LRU read
// cache of the most recently touched ones.
type Store struct {
	db     *sql.DB
	cache  *cache.LRUCache[*domain.DeliveryRecord]
	logger logger.Logger
}

// Open creates (or attaches to) the SQLite file at path and ensures its
// schema exists.
func Open(path string, log logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		return nil, &domain.StorageError{Operation: "open", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, &domain.StorageError{Operation: "migrate", Err: err}
	}

	recent, err := cache.NewLRUCache[*domain.DeliveryRecord](recentCacheSize)
	if err != nil {
		return nil, &domain.StorageError{Operation: "init cache", Err: err}
	}

	return &Store{db: db, cache: recent, logger: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists a new record in StatusQueued and seeds the read cache.
func (s *Store) Insert(ctx context.Context, rec *domain.DeliveryRecord) error {
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	query, args, err := psql.Insert("delivery_records").
		Columns("id", "session_id", "recipient", "channel", "status", "provider_id",
			"error", "retry_count", "max_retries", "created_at", "updated_at",
			"sent_at", "delivered_at", "read_at").
		Values(rec.ID, rec.SessionID, rec.Recipient, string(rec.Channel), string(rec.Status),
			rec.ProviderID, rec.Error, rec.RetryCount, rec.MaxRetries, rec.CreatedAt, rec.UpdatedAt,
			nullTime(rec.SentAt), nullTime(rec.DeliveredAt), nullTime(rec.ReadAt)).
		ToSql()
	if err != nil {
		return &domain.StorageError{Operation: "insert", Err: err}
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageError{Operation: "insert", Err: err}
	}

	s.cache.Set(rec.ID, rec)
	return nil
}

// Get returns the record with id, reading through the LRU cache to the
// database on a miss.
func (s *Store) Get(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	return s.cache.GetOrSet(id, func() (*domain.DeliveryRecord, error) {
		return s.fetch(ctx, id)
	})
}

func (s *Store) fetch(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	query, args, err := psql.Select(
		"id", "session_id", "recipient", "channel", "status", "provider_id",
		"error", "retry_count", "max_retries", "created_at", "updated_at",
		"sent_at", "delivered_at", "read_at",
	).From("delivery_records").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Err: err}
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StorageError{Operation: "get", Err: err}
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	var channel, status string
	var sentAt, deliveredAt, readAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Recipient, &channel, &status, &rec.ProviderID,
		&rec.Error, &rec.RetryCount, &rec.MaxRetries, &rec.CreatedAt, &rec.UpdatedAt,
		&sentAt, &deliveredAt, &readAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Channel = domain.Channel(channel)
	rec.Status = domain.DeliveryStatus(status)
	rec.SentAt = fromNullTime(sentAt)
	rec.DeliveredAt = fromNullTime(deliveredAt)
	rec.ReadAt = fromNullTime(readAt)
	return &rec, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// Update persists a record whose fields have already been mutated by the
// caller (normally ApplyStatus) and refreshes the cache entry.
func (s *Store) update(ctx context.Context, rec *domain.DeliveryRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	query, args, err := psql.Update("delivery_records").
		Set("status", string(rec.Status)).
		Set("provider_id", rec.ProviderID).
		Set("error", rec.Error).
		Set("retry_count", rec.RetryCount).
		Set("updated_at", rec.UpdatedAt).
		Set("sent_at", nullTime(rec.SentAt)).
		Set("delivered_at", nullTime(rec.DeliveredAt)).
		Set("read_at", nullTime(rec.ReadAt)).
		Where(sq.Eq{"id": rec.ID}).
		ToSql()
	if err != nil {
		return &domain.StorageError{Operation: "update", Err: err}
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageError{Operation: "update", Err: err}
	}

	s.cache.Set(rec.ID, rec)
	return nil
}

// ApplyStatus moves the record id to status to at occurredAt, the time the
// provider reported the event. A one-step forward (or idempotent
// same-status) move applies normally. A move to a status that ranks behind the record's
// current status is treated as a late-arriving in-order update: the status
// itself is left alone and only the corresponding timestamp is filled in
// if it was still unset. Anything else is rejected as domain.InvalidTransition
// and logged without mutating the record.
func (s *Store) ApplyStatus(ctx context.Context, id string, to domain.DeliveryStatus, occurredAt time.Time, providerID, errMsg string) (*domain.DeliveryRecord, error) {
	rec, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.CanTransition(to) {
		rec.Status = to
		if providerID != "" {
			rec.ProviderID = providerID
		}
		switch to {
		case domain.StatusFailed:
			rec.Error = errMsg
		case domain.StatusQueued:
			rec.RetryCount++
			rec.Error = ""
		}
		stampTimestamp(rec, to, occurredAt)
		if err := s.update(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if isLateInOrderUpdate(rec.Status, to) {
		if stampTimestamp(rec, to, occurredAt) {
			if err := s.update(ctx, rec); err != nil {
				return nil, err
			}
		}
		if s.logger != nil {
			s.logger.WithFields(map[string]interface{}{"record_id": id, "from": rec.Status, "to": to}).
				Info("late delivery update recorded without status regression")
		}
		return rec, nil
	}

	if s.logger != nil {
		s.logger.WithFields(map[string]interface{}{"record_id": id, "from": rec.Status, "to": to}).
			Warn("rejected unknown delivery status transition")
	}
	return nil, &domain.InvalidTransition{From: rec.Status, To: to, Record: id}
}

// isLateInOrderUpdate reports whether moving from 'from' to 'to' represents
// a status the record has already passed, rather than an invalid jump.
func isLateInOrderUpdate(from, to domain.DeliveryStatus) bool {
	fr, ok1 := rankOf(from)
	tr, ok2 := rankOf(to)
	return ok1 && ok2 && fr >= 0 && tr >= 0 && tr < fr
}

func rankOf(s domain.DeliveryStatus) (int, bool) {
	switch s {
	case domain.StatusQueued:
		return 0, true
	case domain.StatusSending:
		return 1, true
	case domain.StatusSent:
		return 2, true
	case domain.StatusDelivered:
		return 3, true
	case domain.StatusRead:
		return 4, true
	default:
		return -1, false
	}
}

// stampTimestamp fills the timestamp column corresponding to status if it
// is still unset, reporting whether it changed anything.
func stampTimestamp(rec *domain.DeliveryRecord, status domain.DeliveryStatus, occurredAt time.Time) bool {
	switch status {
	case domain.StatusSent:
		if rec.SentAt == nil {
			t := occurredAt
			rec.SentAt = &t
			return true
		}
	case domain.StatusDelivered:
		if rec.DeliveredAt == nil {
			t := occurredAt
			rec.DeliveredAt = &t
			return true
		}
	case domain.StatusRead:
		if rec.ReadAt == nil {
			t := occurredAt
			rec.ReadAt = &t
			return true
		}
	}
	return false
}

// Delete tombstones a record: it is not physically removed, only marked
// deleted. CanTransition allows this from any non-deleted status.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if !rec.CanTransition(domain.StatusDeleted) {
		return &domain.InvalidTransition{From: rec.Status, To: domain.StatusDeleted, Record: id}
	}
	rec.Status = domain.StatusDeleted
	return s.update(ctx, rec)
}

// ListFilter narrows a List query. A zero value matches everything.
type ListFilter struct {
	SessionID string
	Status    domain.DeliveryStatus
	Recipient string
	Limit     int
}

// List returns records matching filter, most recently created first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*domain.DeliveryRecord, error) {
	builder := psql.Select(
		"id", "session_id", "recipient", "channel", "status", "provider_id",
		"error", "retry_count", "max_retries", "created_at", "updated_at",
		"sent_at", "delivered_at", "read_at",
	).From("delivery_records").OrderBy("created_at DESC")

	if filter.SessionID != "" {
		builder = builder.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Recipient != "" {
		builder = builder.Where(sq.Eq{"recipient": filter.Recipient})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	defer rows.Close()

	var out []*domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Err: err}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sweep physically deletes every record created before olderThan,
// whatever its status, and reports how many rows were deleted. Safe to call repeatedly: once a
// record is gone, a later sweep simply counts zero for it.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	query, args, err := psql.Delete("delivery_records").
		Where(sq.Lt{"created_at": olderThan}).
		ToSql()
	if err != nil {
		return 0, &domain.StorageError{Operation: "sweep", Err: err}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &domain.StorageError{Operation: "sweep", Err: err}
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Operation: "sweep", Err: err}
	}

	s.cache.Clear()
	return int(n), nil
}

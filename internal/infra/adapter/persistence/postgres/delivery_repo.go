package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/repository"
	"notify-dispatch/internal/resilience/circuitbreaker"
)

// deliveryColumns is the column list shared by every SELECT and RETURNING
// clause so scans stay in one shape.
const deliveryColumns = `idempotency_key, channel, state, attempt_count, last_error, provider_message_id, first_seen_at, updated_at`

// DeliveryRepo is the PostgreSQL delivery store. Queries route through a
// circuit breaker so a dead database fails fast instead of queueing workers.
type DeliveryRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

func NewDeliveryRepo(db *sql.DB) repository.DeliveryRepository {
	return &DeliveryRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// scanDelivery is a helper function to scan a delivery row.
func scanDelivery(scanner interface {
	Scan(dest ...interface{}) error
}) (*entity.DeliveryRecord, error) {
	var rec entity.DeliveryRecord
	var channel, state string
	if err := scanner.Scan(
		&rec.IdempotencyKey, &channel, &state, &rec.AttemptCount,
		&rec.LastError, &rec.ProviderMessageID, &rec.FirstSeenAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Channel = entity.Channel(channel)
	rec.State = entity.DeliveryState(state)
	return &rec, nil
}

func (repo *DeliveryRepo) GetOrCreate(ctx context.Context, rec *entity.DeliveryRecord) (*entity.DeliveryRecord, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_or_create_delivery", time.Since(start)) }()

	const query = `
INSERT INTO deliveries (idempotency_key, channel, state, attempt_count, last_error, provider_message_id, first_seen_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (idempotency_key) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query,
		rec.IdempotencyKey, rec.Channel.String(), rec.State.String(), rec.AttemptCount,
		rec.LastError, rec.ProviderMessageID, rec.FirstSeenAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreate: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 {
		created := *rec
		return &created, true, nil
	}

	// キーが既に存在する場合は既存レコードをそのまま返す
	existing, err := repo.Get(ctx, rec.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("GetOrCreate: %w", err)
	}
	return existing, false, nil
}

func (repo *DeliveryRepo) Get(ctx context.Context, key string) (*entity.DeliveryRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_delivery", time.Since(start)) }()

	const query = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE idempotency_key = $1
LIMIT 1`
	rec, err := scanDelivery(repo.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return rec, nil
}

func (repo *DeliveryRepo) MarkAttempt(ctx context.Context, key string) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("mark_attempt", time.Since(start)) }()

	// Single-statement compare-and-set: the WHERE clause enforces the legal
	// origin states so concurrent dispatchers cannot double-claim a record.
	const query = `
UPDATE deliveries
SET state         = $2,
    attempt_count = attempt_count + 1,
    updated_at    = $3
WHERE idempotency_key = $1
  AND state IN ($4, $5)
RETURNING attempt_count`
	var attempts int
	err := repo.db.QueryRowContext(ctx, query,
		key, entity.StateSending.String(), time.Now().UTC(),
		entity.StatePending.String(), entity.StatePendingRetry.String(),
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the key is unknown or the record sits in a state that
		// cannot start an attempt; look again to report which.
		if _, getErr := repo.Get(ctx, key); errors.Is(getErr, entity.ErrNotFound) {
			return 0, entity.ErrNotFound
		}
		return 0, entity.ErrInvalidTransition
	}
	if err != nil {
		return 0, fmt.Errorf("MarkAttempt: %w", err)
	}
	return attempts, nil
}

func (repo *DeliveryRepo) MarkResult(ctx context.Context, key string, outcome entity.AttemptOutcome) (*entity.DeliveryRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("mark_result", time.Since(start)) }()

	// The next state depends on the recorded attempt count, so the read and
	// write happen under one row lock.
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("MarkResult: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
SELECT ` + deliveryColumns + `
FROM deliveries
WHERE idempotency_key = $1
FOR UPDATE`
	rec, err := scanDelivery(tx.QueryRowContext(ctx, selectQuery, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("MarkResult: %w", err)
	}

	if rec.State != entity.StateSending {
		return nil, entity.ErrInvalidTransition
	}

	next, lastError := outcome.NextState(rec.AttemptCount)

	const updateQuery = `
UPDATE deliveries
SET state               = $2,
    last_error          = $3,
    provider_message_id = $4,
    updated_at          = $5
WHERE idempotency_key = $1`
	now := time.Now().UTC()
	providerMessageID := rec.ProviderMessageID
	if outcome.Succeeded {
		providerMessageID = outcome.ProviderMessageID
	}
	if _, err := tx.ExecContext(ctx, updateQuery,
		key, next.String(), lastError, providerMessageID, now,
	); err != nil {
		return nil, fmt.Errorf("MarkResult: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("MarkResult: commit: %w", err)
	}

	rec.State = next
	rec.LastError = lastError
	rec.ProviderMessageID = providerMessageID
	rec.UpdatedAt = now
	return rec, nil
}

// deliveryWhereClause builds the WHERE clause and arguments for the optional
// listing filters. Shared between COUNT and SELECT queries to eliminate
// duplication. Returns an empty clause when no filters are set.
func deliveryWhereClause(filters repository.DeliveryFilters) (clause string, args []interface{}) {
	var conditions []string
	paramIndex := 1

	if filters.Channel != nil {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", paramIndex))
		args = append(args, filters.Channel.String())
		paramIndex++
	}
	if filters.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", paramIndex))
		args = append(args, filters.State.String())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (repo *DeliveryRepo) ListDeliveries(ctx context.Context, filters repository.DeliveryFilters, offset, limit int) ([]*entity.DeliveryRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_deliveries", time.Since(start)) }()

	where, args := deliveryWhereClause(filters)
	query := fmt.Sprintf(`
SELECT `+deliveryColumns+`
FROM deliveries
%s
ORDER BY first_seen_at DESC
LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListDeliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	records := make([]*entity.DeliveryRecord, 0, limit)
	for rows.Next() {
		rec, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDeliveries: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (repo *DeliveryRepo) CountDeliveries(ctx context.Context, filters repository.DeliveryFilters) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_deliveries", time.Since(start)) }()

	where, args := deliveryWhereClause(filters)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM deliveries %s`, where)

	var count int64
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountDeliveries: %w", err)
	}
	return count, nil
}

func (repo *DeliveryRepo) CountByState(ctx context.Context) (map[entity.DeliveryState]int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("count_by_state", time.Since(start)) }()

	const query = `
SELECT state, COUNT(*)
FROM deliveries
GROUP BY state`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("CountByState: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[entity.DeliveryState]int64, 5)
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("CountByState: %w", err)
		}
		counts[entity.DeliveryState(state)] = count
	}
	return counts, rows.Err()
}

func (repo *DeliveryRepo) FailStale(ctx context.Context, olderThan time.Duration, reason string) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("fail_stale", time.Since(start)) }()

	now := time.Now().UTC()
	const query = `
UPDATE deliveries
SET state      = $1,
    last_error = $2,
    updated_at = $3
WHERE state IN ($4, $5, $6)
  AND updated_at < $7`
	res, err := repo.db.ExecContext(ctx, query,
		entity.StateFailed.String(), reason, now,
		entity.StatePending.String(), entity.StateSending.String(), entity.StatePendingRetry.String(),
		now.Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("FailStale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("FailStale: %w", err)
	}
	return n, nil
}

func (repo *DeliveryRepo) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("purge_terminal", time.Since(start)) }()

	const query = `
DELETE FROM deliveries
WHERE state IN ($1, $2)
  AND updated_at < $3`
	res, err := repo.db.ExecContext(ctx, query,
		entity.StateSucceeded.String(), entity.StateFailed.String(),
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("PurgeTerminal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PurgeTerminal: %w", err)
	}
	return n, nil
}

// Package memory provides the in-process delivery store used when no
// DATABASE_URL is configured. It enforces the same state machine as the
// postgres adapter and serializes mutations per key, so unrelated
// deliveries proceed fully in parallel.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

// lockedRecord pairs a record with its own mutex. The store-level RWMutex
// only guards the map; record mutation never contends across keys.
type lockedRecord struct {
	mu  sync.Mutex
	rec entity.DeliveryRecord
}

// DeliveryRepo is an in-memory implementation of repository.DeliveryRepository.
type DeliveryRepo struct {
	mu      sync.RWMutex
	records map[string]*lockedRecord
}

func NewDeliveryRepo() repository.DeliveryRepository {
	return &DeliveryRepo{records: make(map[string]*lockedRecord)}
}

func (m *DeliveryRepo) lookup(key string) (*lockedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lr, ok := m.records[key]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return lr, nil
}

func (m *DeliveryRepo) GetOrCreate(_ context.Context, rec *entity.DeliveryRecord) (*entity.DeliveryRecord, bool, error) {
	m.mu.RLock()
	existing, ok := m.records[rec.IdempotencyKey]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		existing, ok = m.records[rec.IdempotencyKey]
		if !ok {
			m.records[rec.IdempotencyKey] = &lockedRecord{rec: *rec}
			m.mu.Unlock()
			out := *rec
			return &out, true, nil
		}
		m.mu.Unlock()
	}

	existing.mu.Lock()
	out := existing.rec
	existing.mu.Unlock()
	return &out, false, nil
}

func (m *DeliveryRepo) Get(_ context.Context, key string) (*entity.DeliveryRecord, error) {
	lr, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	lr.mu.Lock()
	out := lr.rec
	lr.mu.Unlock()
	return &out, nil
}

func (m *DeliveryRepo) MarkAttempt(_ context.Context, key string) (int, error) {
	lr, err := m.lookup(key)
	if err != nil {
		return 0, err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	if !entity.CanTransition(lr.rec.State, entity.StateSending) {
		return 0, entity.ErrInvalidTransition
	}
	lr.rec.State = entity.StateSending
	lr.rec.AttemptCount++
	lr.rec.UpdatedAt = time.Now().UTC()
	return lr.rec.AttemptCount, nil
}

func (m *DeliveryRepo) MarkResult(_ context.Context, key string, outcome entity.AttemptOutcome) (*entity.DeliveryRecord, error) {
	lr, err := m.lookup(key)
	if err != nil {
		return nil, err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.rec.State != entity.StateSending {
		return nil, entity.ErrInvalidTransition
	}

	next, lastError := outcome.NextState(lr.rec.AttemptCount)
	lr.rec.State = next
	lr.rec.LastError = lastError
	if outcome.Succeeded {
		lr.rec.ProviderMessageID = outcome.ProviderMessageID
	}
	lr.rec.UpdatedAt = time.Now().UTC()

	out := lr.rec
	return &out, nil
}

// snapshot collects copies of every record matching the filters while
// holding only read locks.
func (m *DeliveryRepo) snapshot(filters repository.DeliveryFilters) []*entity.DeliveryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]*entity.DeliveryRecord, 0, len(m.records))
	for _, lr := range m.records {
		lr.mu.Lock()
		rec := lr.rec
		lr.mu.Unlock()

		if filters.Channel != nil && rec.Channel != *filters.Channel {
			continue
		}
		if filters.State != nil && rec.State != *filters.State {
			continue
		}
		matches = append(matches, &rec)
	}
	return matches
}

func (m *DeliveryRepo) ListDeliveries(_ context.Context, filters repository.DeliveryFilters, offset, limit int) ([]*entity.DeliveryRecord, error) {
	matches := m.snapshot(filters)
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].FirstSeenAt.Equal(matches[j].FirstSeenAt) {
			return matches[i].FirstSeenAt.After(matches[j].FirstSeenAt)
		}
		return matches[i].IdempotencyKey < matches[j].IdempotencyKey
	})

	if offset >= len(matches) {
		return []*entity.DeliveryRecord{}, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func (m *DeliveryRepo) CountDeliveries(_ context.Context, filters repository.DeliveryFilters) (int64, error) {
	return int64(len(m.snapshot(filters))), nil
}

func (m *DeliveryRepo) CountByState(_ context.Context) (map[entity.DeliveryState]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[entity.DeliveryState]int64, 5)
	for _, lr := range m.records {
		lr.mu.Lock()
		state := lr.rec.State
		lr.mu.Unlock()
		counts[state]++
	}
	return counts, nil
}

func (m *DeliveryRepo) FailStale(_ context.Context, olderThan time.Duration, reason string) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, lr := range m.records {
		lr.mu.Lock()
		// pending counts as in-flight too: a deferred first attempt whose
		// timer was dropped at shutdown would otherwise hold the key forever.
		inFlight := lr.rec.State == entity.StatePending ||
			lr.rec.State == entity.StateSending ||
			lr.rec.State == entity.StatePendingRetry
		if inFlight && lr.rec.UpdatedAt.Before(cutoff) {
			lr.rec.State = entity.StateFailed
			lr.rec.LastError = reason
			lr.rec.UpdatedAt = now
			n++
		}
		lr.mu.Unlock()
	}
	return n, nil
}

func (m *DeliveryRepo) PurgeTerminal(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, lr := range m.records {
		lr.mu.Lock()
		purge := lr.rec.State.Terminal() && lr.rec.UpdatedAt.Before(cutoff)
		lr.mu.Unlock()
		if purge {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

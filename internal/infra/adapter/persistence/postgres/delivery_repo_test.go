package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/infra/adapter/persistence/postgres"
	"notify-dispatch/internal/repository"
)

/* ──────────────────────────────── ヘルパ ──────────────────────────────── */

func deliveryRow(rec *entity.DeliveryRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"idempotency_key", "channel", "state", "attempt_count",
		"last_error", "provider_message_id", "first_seen_at", "updated_at",
	}).AddRow(
		rec.IdempotencyKey, rec.Channel.String(), rec.State.String(), rec.AttemptCount,
		rec.LastError, rec.ProviderMessageID, rec.FirstSeenAt, rec.UpdatedAt,
	)
}

func fixedDelivery(key string, state entity.DeliveryState) *entity.DeliveryRecord {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &entity.DeliveryRecord{
		IdempotencyKey: key,
		Channel:        entity.ChannelSMS,
		State:          state,
		AttemptCount:   0,
		FirstSeenAt:    at,
		UpdatedAt:      at,
	}
}

/* ──────────────────────────────── 1. GetOrCreate ──────────────────────────────── */

func TestDeliveryRepo_GetOrCreate_New(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rec := fixedDelivery("dlv-1", entity.StatePending)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WithArgs("dlv-1", "sms", "pending", 0, "", "", rec.FirstSeenAt, rec.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewDeliveryRepo(db)
	got, created, err := repo.GetOrCreate(context.Background(), rec)
	if err != nil {
		t.Fatalf("GetOrCreate err=%v", err)
	}
	if !created {
		t.Fatal("GetOrCreate should report created=true for a fresh key")
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_GetOrCreate_Duplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	existing := fixedDelivery("dlv-1", entity.StateSucceeded)
	existing.AttemptCount = 2
	existing.ProviderMessageID = "prov-99"

	// 既存キーの INSERT は 0 行、続く SELECT が既存行を返す
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idempotency_key`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(existing))

	repo := postgres.NewDeliveryRepo(db)
	got, created, err := repo.GetOrCreate(context.Background(), fixedDelivery("dlv-1", entity.StatePending))
	if err != nil {
		t.Fatalf("GetOrCreate err=%v", err)
	}
	if created {
		t.Fatal("GetOrCreate should report created=false for an existing key")
	}
	if diff := cmp.Diff(existing, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 2. Get ──────────────────────────────── */

func TestDeliveryRepo_Get(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := fixedDelivery("dlv-1", entity.StatePendingRetry)
	want.AttemptCount = 1
	want.LastError = "timeout talking to provider"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idempotency_key`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(want))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.Get(context.Background(), "dlv-1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_Get_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idempotency_key`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"idempotency_key", "channel", "state", "attempt_count",
			"last_error", "provider_message_id", "first_seen_at", "updated_at",
		}))

	repo := postgres.NewDeliveryRepo(db)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("Get err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 3. MarkAttempt ──────────────────────────────── */

func TestDeliveryRepo_MarkAttempt(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE deliveries`)).
		WithArgs("dlv-1", "sending", sqlmock.AnyArg(), "pending", "pending_retry").
		WillReturnRows(sqlmock.NewRows([]string{"attempt_count"}).AddRow(1))

	repo := postgres.NewDeliveryRepo(db)
	attempts, err := repo.MarkAttempt(context.Background(), "dlv-1")
	if err != nil {
		t.Fatalf("MarkAttempt err=%v", err)
	}
	if attempts != 1 {
		t.Fatalf("MarkAttempt attempts=%d, want 1", attempts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkAttempt_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE deliveries`)).
		WillReturnRows(sqlmock.NewRows([]string{"attempt_count"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idempotency_key`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"idempotency_key", "channel", "state", "attempt_count",
			"last_error", "provider_message_id", "first_seen_at", "updated_at",
		}))

	repo := postgres.NewDeliveryRepo(db)
	_, err := repo.MarkAttempt(context.Background(), "missing")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("MarkAttempt err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkAttempt_TerminalState(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	// CAS update misses because the record already succeeded.
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE deliveries`)).
		WillReturnRows(sqlmock.NewRows([]string{"attempt_count"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT idempotency_key`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(fixedDelivery("dlv-1", entity.StateSucceeded)))

	repo := postgres.NewDeliveryRepo(db)
	_, err := repo.MarkAttempt(context.Background(), "dlv-1")
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("MarkAttempt err=%v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 4. MarkResult ──────────────────────────────── */

func TestDeliveryRepo_MarkResult_Success(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	sending := fixedDelivery("dlv-1", entity.StateSending)
	sending.AttemptCount = 1

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(sending))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE deliveries`)).
		WithArgs("dlv-1", "succeeded", "", "prov-7", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.MarkResult(context.Background(), "dlv-1", entity.AttemptOutcome{
		Succeeded:         true,
		ProviderMessageID: "prov-7",
		MaxAttempts:       3,
	})
	if err != nil {
		t.Fatalf("MarkResult err=%v", err)
	}
	if got.State != entity.StateSucceeded {
		t.Fatalf("state=%s, want succeeded", got.State)
	}
	if got.ProviderMessageID != "prov-7" {
		t.Fatalf("provider_message_id=%q, want prov-7", got.ProviderMessageID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkResult_TransientSchedulesRetry(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	sending := fixedDelivery("dlv-1", entity.StateSending)
	sending.AttemptCount = 1

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(sending))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE deliveries`)).
		WithArgs("dlv-1", "pending_retry", "provider 503", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.MarkResult(context.Background(), "dlv-1", entity.AttemptOutcome{
		Class:        entity.ErrorClassTransient,
		ErrorMessage: "provider 503",
		MaxAttempts:  3,
	})
	if err != nil {
		t.Fatalf("MarkResult err=%v", err)
	}
	if got.State != entity.StatePendingRetry {
		t.Fatalf("state=%s, want pending_retry", got.State)
	}
	if got.LastError != "provider 503" {
		t.Fatalf("last_error=%q, want provider 503", got.LastError)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkResult_BudgetExhausted(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	sending := fixedDelivery("dlv-1", entity.StateSending)
	sending.AttemptCount = 3

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(sending))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE deliveries`)).
		WithArgs("dlv-1", "failed", sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.MarkResult(context.Background(), "dlv-1", entity.AttemptOutcome{
		Class:        entity.ErrorClassTransient,
		ErrorMessage: "still timing out",
		MaxAttempts:  3,
	})
	if err != nil {
		t.Fatalf("MarkResult err=%v", err)
	}
	if got.State != entity.StateFailed {
		t.Fatalf("state=%s, want failed", got.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkResult_NotSending(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("dlv-1").
		WillReturnRows(deliveryRow(fixedDelivery("dlv-1", entity.StateFailed)))
	mock.ExpectRollback()

	repo := postgres.NewDeliveryRepo(db)
	_, err := repo.MarkResult(context.Background(), "dlv-1", entity.AttemptOutcome{
		Succeeded:   true,
		MaxAttempts: 3,
	})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("MarkResult err=%v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 5. List / Count ──────────────────────────────── */

func TestDeliveryRepo_ListDeliveries_Filtered(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	channel := entity.ChannelSMS
	state := entity.StateFailed
	failed := fixedDelivery("dlv-1", entity.StateFailed)

	mock.ExpectQuery(`FROM deliveries`).
		WithArgs("sms", "failed", 20, 0).
		WillReturnRows(deliveryRow(failed))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.ListDeliveries(context.Background(), repository.DeliveryFilters{
		Channel: &channel,
		State:   &state,
	}, 0, 20)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListDeliveries err=%v len=%d", err, len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_ListDeliveries_NoFilters(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM deliveries`).
		WithArgs(10, 30).
		WillReturnRows(sqlmock.NewRows([]string{
			"idempotency_key", "channel", "state", "attempt_count",
			"last_error", "provider_message_id", "first_seen_at", "updated_at",
		})) // empty page OK

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.ListDeliveries(context.Background(), repository.DeliveryFilters{}, 30, 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("ListDeliveries err=%v len=%d", err, len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_CountDeliveries(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	state := entity.StatePendingRetry
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM deliveries`)).
		WithArgs("pending_retry").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.CountDeliveries(context.Background(), repository.DeliveryFilters{State: &state})
	if err != nil {
		t.Fatalf("CountDeliveries err=%v", err)
	}
	if got != 7 {
		t.Fatalf("count=%d, want 7", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_CountByState(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`GROUP BY state`).
		WillReturnRows(sqlmock.NewRows([]string{"state", "count"}).
			AddRow("pending", int64(3)).
			AddRow("succeeded", int64(12)).
			AddRow("failed", int64(1)))

	repo := postgres.NewDeliveryRepo(db)
	got, err := repo.CountByState(context.Background())
	if err != nil {
		t.Fatalf("CountByState err=%v", err)
	}
	want := map[entity.DeliveryState]int64{
		entity.StatePending:   3,
		entity.StateSucceeded: 12,
		entity.StateFailed:    1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 6. Sweeps ──────────────────────────────── */

func TestDeliveryRepo_FailStale(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	// pending も掃除対象(shutdown でタイマーを失った初回送信の救済)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE deliveries`)).
		WithArgs("failed", "delivery lease expired", sqlmock.AnyArg(),
			"pending", "sending", "pending_retry", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	repo := postgres.NewDeliveryRepo(db)
	n, err := repo.FailStale(context.Background(), 5*time.Minute, "delivery lease expired")
	if err != nil {
		t.Fatalf("FailStale err=%v", err)
	}
	if n != 4 {
		t.Fatalf("failed=%d, want 4", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_PurgeTerminal(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM deliveries`)).
		WithArgs("succeeded", "failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 9))

	repo := postgres.NewDeliveryRepo(db)
	n, err := repo.PurgeTerminal(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeTerminal err=%v", err)
	}
	if n != 9 {
		t.Fatalf("purged=%d, want 9", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────────── 7. Error Cases ──────────────────────────────── */

func TestDeliveryRepo_GetOrCreate_QueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO deliveries`)).
		WillReturnError(errors.New("connection refused"))

	repo := postgres.NewDeliveryRepo(db)
	_, _, err := repo.GetOrCreate(context.Background(), fixedDelivery("dlv-1", entity.StatePending))
	if err == nil {
		t.Fatal("GetOrCreate should surface query errors")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryRepo_MarkResult_BeginError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	repo := postgres.NewDeliveryRepo(db)
	_, err := repo.MarkResult(context.Background(), "dlv-1", entity.AttemptOutcome{Succeeded: true, MaxAttempts: 3})
	if err == nil {
		t.Fatal("MarkResult should surface begin errors")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

package db

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deliveryIndexNames = []string{
	"idx_deliveries_first_seen_at",
	"idx_deliveries_state",
	"idx_deliveries_channel_first_seen_at",
	"idx_deliveries_inflight_updated_at",
	"idx_deliveries_terminal_updated_at",
}

func migrationDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectSchemaCreation(mock sqlmock.Sqlmock) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS deliveries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, name := range deliveryIndexNames {
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS " + name).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	// 制約ブロックはエラーを無視するので期待値は任意
}

func TestMigrateUp_Success(t *testing.T) {
	db, mock := migrationDB(t)
	expectSchemaCreation(mock)

	require.NoError(t, MigrateUp(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_TableError(t *testing.T) {
	db, mock := migrationDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS deliveries").
		WillReturnError(sql.ErrConnDone)

	assert.Equal(t, sql.ErrConnDone, MigrateUp(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_IndexError(t *testing.T) {
	db, mock := migrationDB(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS deliveries").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_deliveries_first_seen_at").
		WillReturnError(sql.ErrNoRows)

	assert.Equal(t, sql.ErrNoRows, MigrateUp(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db, mock := migrationDB(t)
	expectSchemaCreation(mock)
	expectSchemaCreation(mock)

	require.NoError(t, MigrateUp(db))
	require.NoError(t, MigrateUp(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDown_Success(t *testing.T) {
	db, mock := migrationDB(t)

	// 作成と逆順で削除される
	for i := len(deliveryIndexNames) - 1; i >= 0; i-- {
		mock.ExpectExec("DROP INDEX IF EXISTS " + deliveryIndexNames[i]).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("DROP TABLE IF EXISTS deliveries").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, MigrateDown(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDown_DropError(t *testing.T) {
	db, mock := migrationDB(t)
	mock.ExpectExec("DROP INDEX IF EXISTS idx_deliveries_terminal_updated_at").
		WillReturnError(sql.ErrConnDone)

	assert.Equal(t, sql.ErrConnDone, MigrateDown(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

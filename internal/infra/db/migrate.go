package db

import (
	"database/sql"
)

func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS deliveries (
    idempotency_key     VARCHAR(255) PRIMARY KEY,
    channel             VARCHAR(20) NOT NULL,
    state               VARCHAR(20) NOT NULL,
    attempt_count       INTEGER NOT NULL DEFAULT 0,
    last_error          TEXT NOT NULL DEFAULT '',
    provider_message_id TEXT NOT NULL DEFAULT '',
    first_seen_at       TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	// パフォーマンス最適化: インデックス追加
	indexes := []string{
		// ORDER BY first_seen_at DESC で使用(一覧クエリで使用)
		`CREATE INDEX IF NOT EXISTS idx_deliveries_first_seen_at ON deliveries(first_seen_at DESC)`,
		// 状態別フィルタ・集計用(WHERE state = ... / GROUP BY state)
		`CREATE INDEX IF NOT EXISTS idx_deliveries_state ON deliveries(state)`,
		// チャネル別一覧取得用
		`CREATE INDEX IF NOT EXISTS idx_deliveries_channel_first_seen_at ON deliveries(channel, first_seen_at DESC)`,
		// 停滞スイープ用(非終端状態のみ対象の部分インデックス)
		`CREATE INDEX IF NOT EXISTS idx_deliveries_inflight_updated_at
    ON deliveries(updated_at) WHERE state IN ('pending', 'sending', 'pending_retry')`,
		// 保持期間パージ用(終端状態のみ対象の部分インデックス)
		`CREATE INDEX IF NOT EXISTS idx_deliveries_terminal_updated_at
    ON deliveries(updated_at) WHERE state IN ('succeeded', 'failed')`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// 状態列挙の制約追加
	// PostgreSQL特有の制約構文のため、エラーを無視(既に存在する場合)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_deliveries_state'
    ) THEN
        ALTER TABLE deliveries ADD CONSTRAINT chk_deliveries_state
        CHECK (state IN ('pending', 'sending', 'succeeded', 'pending_retry', 'failed'));
    END IF;
END $$;
`)

	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_deliveries_channel'
    ) THEN
        ALTER TABLE deliveries ADD CONSTRAINT chk_deliveries_channel
        CHECK (channel IN ('sms', 'email', 'whatsapp'));
    END IF;
END $$;
`)

	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_deliveries_attempt_count'
    ) THEN
        ALTER TABLE deliveries ADD CONSTRAINT chk_deliveries_attempt_count
        CHECK (attempt_count >= 0);
    END IF;
END $$;
`)

	return nil
}

// MigrateDown rolls back the database schema.
// This function removes tables and indexes in reverse order of creation.
// Use with caution: this will delete all delivery records.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_deliveries_terminal_updated_at`,
		`DROP INDEX IF EXISTS idx_deliveries_inflight_updated_at`,
		`DROP INDEX IF EXISTS idx_deliveries_channel_first_seen_at`,
		`DROP INDEX IF EXISTS idx_deliveries_state`,
		`DROP INDEX IF EXISTS idx_deliveries_first_seen_at`,
		`DROP TABLE IF EXISTS deliveries CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"aiguidepro/internal/ports"
)

// PostgresKV maps the key-value contract onto a single slot table. It is
// the durable medium for server-side deployments; failure semantics match
// the other backends (empty reads, dropped writes).
type PostgresKV struct {
	db      *sql.DB
	logger  *slog.Logger
	builder sq.StatementBuilderType
}

var _ ports.KV = (*PostgresKV)(nil)

// OpenPostgresKV connects, verifies reachability and ensures the schema.
func OpenPostgresKV(dsn string, logger *slog.Logger) (*PostgresKV, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	kv := &PostgresKV{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db),
	}
	if err := kv.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

func (p *PostgresKV) ensureSchema() error {
	const ddl = `CREATE TABLE IF NOT EXISTS kv_slots (
        slot_key   TEXT PRIMARY KEY,
        slot_value BYTEA NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`

	if _, err := p.db.Exec(ddl); err != nil {
		return fmt.Errorf("ensure kv_slots: %w", err)
	}
	return nil
}

// Get reads the slot row; any failure reads as absent.
func (p *PostgresKV) Get(key string) ([]byte, bool) {
	row := p.builder.
		Select("slot_value").
		From("kv_slots").
		Where(sq.Eq{"slot_key": key}).
		QueryRowContext(context.Background())

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err != sql.ErrNoRows && p.logger != nil {
			p.logger.Debug("slot read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return raw, true
}

// Set upserts the slot row; failures are dropped.
func (p *PostgresKV) Set(key string, value []byte) {
	_, err := p.builder.
		Insert("kv_slots").
		Columns("slot_key", "slot_value").
		Values(key, value).
		Suffix(`ON CONFLICT (slot_key) DO UPDATE
            SET slot_value = EXCLUDED.slot_value,
                updated_at = NOW()`).
		ExecContext(context.Background())
	if err != nil && p.logger != nil {
		p.logger.Debug("dropped write", "key", key, "error", err)
	}
}

// Close releases the underlying connection pool.
func (p *PostgresKV) Close() error {
	return p.db.Close()
}

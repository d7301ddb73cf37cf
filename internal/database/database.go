package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Connect opens a pgx pool and verifies it with a ping
func Connect(ctx context.Context, databaseURL string, log *zap.Logger) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database url")
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	log.Info("database connected", zap.String("driver", "postgres"), zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}

// schema creates the messages table and, for local setups, a minimal users
// table. In deployments the users table belongs to the account service.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            CHAR(24) PRIMARY KEY,
	name          TEXT NOT NULL,
	profile_photo TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id          CHAR(24) PRIMARY KEY,
	sender_id   CHAR(24) NOT NULL,
	receiver_id CHAR(24) NOT NULL,
	content     TEXT NOT NULL,
	is_read     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT messages_no_self CHECK (sender_id <> receiver_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_sender_receiver ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_receiver_sender ON messages (receiver_id, sender_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages (receiver_id, sender_id) WHERE is_read = FALSE;
`

// Migrate applies the schema idempotently
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

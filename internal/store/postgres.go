package store

import (
	"context"
	"time"

	"unisell/server/internal/models"
	"unisell/server/internal/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Postgres stores messages in the messages table
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const messageColumns = `id, sender_id, receiver_id, content, is_read, created_at`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &m.CreatedAt)
	return m, err
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = utils.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING `+messageColumns,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt)

	stored, err := scanMessage(row)
	if err != nil {
		return errors.Wrap(err, "insert message")
	}
	stored.ClientID = msg.ClientID
	*msg = stored
	return nil
}

func (s *Postgres) FindBetween(ctx context.Context, a, b string, page Page) ([]models.Message, error) {
	if page.Limit <= 0 && page.Before.IsZero() {
		rows, err := s.pool.Query(ctx, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at ASC, id ASC
		`, a, b)
		if err != nil {
			return nil, errors.Wrap(err, "query thread")
		}
		msgs, err := collectMessages(rows)
		return msgs, errors.Wrap(err, "scan thread")
	}

	// Newest page first, flipped back to ascending below.
	var limit *int
	if page.Limit > 0 {
		limit = &page.Limit
	}
	var before *time.Time
	if !page.Before.IsZero() {
		before = &page.Before
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, a, b, before, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query thread page")
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, errors.Wrap(err, "scan thread page")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Postgres) LatestPerCounterpart(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT DISTINCT ON (
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
			) `+messageColumns+`
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
			ORDER BY
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END,
				created_at DESC,
				id DESC
		) latest
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query latest per counterpart")
	}
	msgs, err := collectMessages(rows)
	return msgs, errors.Wrap(err, "scan latest per counterpart")
}

func (s *Postgres) UnreadBySender(ctx context.Context, userID string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE
		GROUP BY sender_id
	`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query unread counts")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sender string
		var n int64
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, errors.Wrap(err, "scan unread counts")
		}
		counts[sender] = n
	}
	return counts, errors.Wrap(rows.Err(), "scan unread counts")
}

func (s *Postgres) MarkRead(ctx context.Context, counterpartID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE
	`, userID, counterpartID)
	if err != nil {
		return 0, errors.Wrap(err, "mark read")
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PostgresDirectory reads accounts from the users table
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check account")
	}
	return exists, nil
}

func (d *PostgresDirectory) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT id FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query account ids")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan account id")
		}
		out[id] = true
	}
	return out, errors.Wrap(rows.Err(), "scan account ids")
}

func (d *PostgresDirectory) Lookup(ctx context.Context, ids []string) (map[string]models.Account, error) {
	out := make(map[string]models.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT id, name, profile_photo FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query accounts")
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.ProfilePhoto); err != nil {
			return nil, errors.Wrap(err, "scan account")
		}
		out[a.ID] = a
	}
	return out, errors.Wrap(rows.Err(), "scan accounts")
}

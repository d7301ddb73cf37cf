// Package store persists direct messages and resolves account metadata.
//
// Three backends share the same contract: Postgres (pgx), MongoDB and an
// in-memory store used by tests and local development. Messages are ordered
// by creation time; ties are broken by insertion order, so the message
// inserted last is treated as the most recent.
package store

import (
	"context"
	"time"

	"unisell/server/internal/models"

	"github.com/pkg/errors"
)

// ErrInvalidID is returned when an identifier cannot be decoded by the backend
var ErrInvalidID = errors.New("invalid identifier")

// Page narrows a thread listing to the newest Limit messages created
// strictly before Before. Zero values mean no bound.
type Page struct {
	Limit  int
	Before time.Time
}

// MessageStore is the persistence contract for messages
type MessageStore interface {
	// Create persists msg. The store assigns an ID when msg.ID is empty and
	// the current time when msg.CreatedAt is zero. IsRead is always stored false.
	Create(ctx context.Context, msg *models.Message) error

	// FindBetween returns messages exchanged in either direction between a
	// and b, ascending by creation time.
	FindBetween(ctx context.Context, a, b string, page Page) ([]models.Message, error)

	// LatestPerCounterpart returns, for every counterpart userID has
	// exchanged messages with, the most recent such message. The result is
	// sorted by creation time, newest first.
	LatestPerCounterpart(ctx context.Context, userID string) ([]models.Message, error)

	// UnreadBySender counts unread messages addressed to userID grouped by sender
	UnreadBySender(ctx context.Context, userID string) (map[string]int64, error)

	// MarkRead flips every unread message from counterpartID to userID to
	// read and returns how many records changed.
	MarkRead(ctx context.Context, counterpartID, userID string) (int64, error)

	Ping(ctx context.Context) error
}

// Directory resolves account metadata owned by the user service
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Existing reports which of ids belong to a live account, reading ids only
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
	// Lookup returns the accounts that resolve; unknown ids are absent from the map
	Lookup(ctx context.Context, ids []string) (map[string]models.Account, error)
}

package store

import (
	"context"
	"sync"
	"time"

	"unisell/server/internal/models"
	"unisell/server/internal/utils"
)

// Memory keeps messages in process memory in insertion order
type Memory struct {
	mu       sync.RWMutex
	messages []models.Message
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Create(ctx context.Context, msg *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = utils.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.IsRead = false

	stored := *msg
	stored.ClientID = ""
	s.messages = append(s.messages, stored)
	return nil
}

func (s *Memory) FindBetween(ctx context.Context, a, b string, page Page) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []models.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sortAscending(out)
	return applyPage(out, page), nil
}

func (s *Memory) LatestPerCounterpart(ctx context.Context, userID string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return LatestPerCounterpart(userID, s.messages), nil
}

func (s *Memory) UnreadBySender(ctx context.Context, userID string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, m := range s.messages {
		if m.ReceiverID == userID && !m.IsRead {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (s *Memory) MarkRead(ctx context.Context, counterpartID, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == userID && m.SenderID == counterpartID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// MemoryDirectory is a map-backed account directory
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryDirectory(accounts ...models.Account) *MemoryDirectory {
	d := &MemoryDirectory{accounts: make(map[string]models.Account)}
	for _, a := range accounts {
		d.accounts[a.ID] = a
	}
	return d
}

// Put adds or replaces an account
func (d *MemoryDirectory) Put(a models.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[a.ID] = a
}

// Remove deletes an account, leaving its messages dangling
func (d *MemoryDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accounts, id)
}

func (d *MemoryDirectory) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[id]
	return ok, nil
}

func (d *MemoryDirectory) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := d.accounts[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (d *MemoryDirectory) Lookup(ctx context.Context, ids []string) (map[string]models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]models.Account, len(ids))
	for _, id := range ids {
		if a, ok := d.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

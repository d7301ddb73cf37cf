package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrNotRetryable is returned when Retry targets a record that has not failed
	ErrNotRetryable = errors.New("message is not in a failed state")
	// ErrThreadNotOpen is returned when sending to someone other than the open thread
	ErrThreadNotOpen = errors.New("thread with receiver is not open")
)

// Messenger runs the request lifecycle for one signed-in user and records
// every step in its Store. Each Send is independent; callers may run
// several concurrently and every one is tracked by its own temporary id.
type Messenger struct {
	api   Transport
	store *Store
	self  string
	log   *zap.Logger
	now   func() time.Time
}

type MessengerOption func(*Messenger)

func WithLogger(log *zap.Logger) MessengerOption {
	return func(m *Messenger) { m.log = log }
}

func WithNow(now func() time.Time) MessengerOption {
	return func(m *Messenger) { m.now = now }
}

func NewMessenger(api Transport, self string, opts ...MessengerOption) *Messenger {
	m := &Messenger{
		api:   api,
		store: NewStore(),
		self:  self,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Messenger) Store() *Store {
	return m.store
}

func (m *Messenger) State() State {
	return m.store.State()
}

// LoadConversations fetches the inbox
func (m *Messenger) LoadConversations(ctx context.Context) error {
	m.store.Dispatch(ConversationsRequested{})

	convs, err := m.api.Conversations(ctx)
	if err != nil {
		m.store.Dispatch(ConversationsFailed{Err: err.Error()})
		return err
	}

	m.store.Dispatch(ConversationsLoaded{Conversations: convs, At: m.now()})
	return nil
}

// OpenThread loads the history with counterpartID and marks it read
func (m *Messenger) OpenThread(ctx context.Context, counterpartID string) error {
	m.store.Dispatch(ThreadRequested{CounterpartID: counterpartID})

	msgs, counterpart, err := m.api.Thread(ctx, counterpartID)
	if err != nil {
		m.store.Dispatch(ThreadFailed{Err: err.Error()})
		return err
	}
	m.store.Dispatch(ThreadLoaded{
		CounterpartID: counterpartID,
		Messages:      msgs,
		Counterpart:   counterpart,
		At:            m.now(),
	})

	return m.MarkRead(ctx, counterpartID)
}

// MarkRead tells the server the thread was seen and zeroes the local badge
// once it confirms.
func (m *Messenger) MarkRead(ctx context.Context, counterpartID string) error {
	if _, err := m.api.MarkRead(ctx, counterpartID); err != nil {
		m.log.Warn("mark read failed", zap.String("counterpart", counterpartID), zap.Error(err))
		return err
	}
	m.store.Dispatch(MarkedRead{CounterpartID: counterpartID})
	return nil
}

// Send appends a provisional message to the open thread and delivers it.
// The returned temp id identifies the record for Retry or Discard if
// delivery fails. The error is the delivery error; the record is kept as
// failed in that case. Sending outside the open thread makes no request.
func (m *Messenger) Send(ctx context.Context, receiverID, content string) (string, error) {
	tempID := "temp-" + uuid.NewString()
	clientID := uuid.NewString()

	_, next := m.store.Transition(SendStarted{
		TempID:     tempID,
		ClientID:   clientID,
		SenderID:   m.self,
		ReceiverID: receiverID,
		Content:    content,
		At:         m.now(),
	})
	if findTemp(next.Messages, tempID) < 0 {
		return "", ErrThreadNotOpen
	}

	return tempID, m.deliver(ctx, receiverID, content, clientID)
}

// Retry re-sends a failed message with its original correlation token.
// Only the call that moves the record out of failed delivers it.
func (m *Messenger) Retry(ctx context.Context, tempID string) error {
	prev, next := m.store.Transition(RetryStarted{TempID: tempID})

	i, j := findTemp(prev.Messages, tempID), findTemp(next.Messages, tempID)
	if i < 0 || j < 0 || prev.Messages[i].Status != StatusFailed || next.Messages[j].Status != StatusSending {
		return ErrNotRetryable
	}

	e := next.Messages[j]
	return m.deliver(ctx, e.ReceiverID, e.Content, e.ClientID)
}

// Discard drops a failed message from the view
func (m *Messenger) Discard(tempID string) bool {
	prev, next := m.store.Transition(Discarded{TempID: tempID})
	return findTemp(prev.Messages, tempID) >= 0 && findTemp(next.Messages, tempID) < 0
}

// Reset clears all state, as on sign-out
func (m *Messenger) Reset() {
	m.store.Dispatch(Reset{})
}

func (m *Messenger) deliver(ctx context.Context, receiverID, content, clientID string) error {
	msg, err := m.api.Send(ctx, receiverID, content, clientID)
	if err != nil {
		m.log.Debug("send failed", zap.String("client_id", clientID), zap.Error(err))
		m.store.Dispatch(SendFailed{ClientID: clientID, Content: content, Err: err.Error()})
		return err
	}

	// A server that does not echo the token is matched on content.
	if msg.ClientID != "" && msg.ClientID != clientID {
		m.log.Warn("server echoed a different correlation token",
			zap.String("sent", clientID), zap.String("echoed", msg.ClientID))
	}
	m.store.Dispatch(SendSucceeded{ClientID: clientID, Content: content, Message: *msg})
	return nil
}

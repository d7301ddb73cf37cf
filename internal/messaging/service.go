// Package messaging implements buyer-seller direct messaging: sending,
// thread listing, the per-user conversation inbox and read tracking.
package messaging

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"unisell/server/internal/models"
	"unisell/server/internal/store"
	"unisell/server/internal/utils"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultMaxLength = 2000

type Service struct {
	messages  store.MessageStore
	accounts  store.Directory
	clock     Clock
	maxLength int
	log       *zap.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMaxLength caps message content, counted in runes
func WithMaxLength(n int) Option {
	return func(s *Service) { s.maxLength = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(messages store.MessageStore, accounts store.Directory, opts ...Option) *Service {
	s := &Service{
		messages:  messages,
		accounts:  accounts,
		clock:     NewMonotonicClock(),
		maxLength: DefaultMaxLength,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thread is a message history plus the counterpart's public profile
type Thread struct {
	Messages    []models.Message
	Counterpart *models.Account
}

func normalizeID(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if !utils.IsObjectID(id) {
		return "", false
	}
	return strings.ToLower(id), true
}

func callerID(id string) (string, error) {
	v, ok := normalizeID(id)
	if !ok {
		return "", ErrUnauthorized
	}
	return v, nil
}

func participantID(id string) (string, error) {
	v, ok := normalizeID(id)
	if !ok {
		return "", errors.Wrapf(ErrInvalidIdentifier, "%q", id)
	}
	return v, nil
}

// storeErr maps backend errors to the service taxonomy
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrInvalidID) {
		return errors.Wrap(ErrInvalidIdentifier, err.Error())
	}
	return persistence(op, err)
}

// Send validates and persists a message from the caller. The sender is
// always the caller; clientID is echoed back on the returned message.
func (s *Service) Send(ctx context.Context, caller, receiverID, content, clientID string) (*models.Message, error) {
	sender, err := callerID(caller)
	if err != nil {
		return nil, err
	}
	receiver, err := participantID(receiverID)
	if err != nil {
		return nil, err
	}
	if sender == receiver {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, errors.Wrapf(ErrContentTooLong, "limit is %d characters", s.maxLength)
	}

	ok, err := s.accounts.Exists(ctx, sender)
	if err != nil {
		return nil, storeErr("check sender", err)
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	ok, err = s.accounts.Exists(ctx, receiver)
	if err != nil {
		return nil, storeErr("check receiver", err)
	}
	if !ok {
		return nil, ErrInvalidReceiver
	}

	msg := &models.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		CreatedAt:  s.clock.Now(),
		ClientID:   clientID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, storeErr("create message", err)
	}

	s.log.Debug("message sent",
		zap.String("id", msg.ID),
		zap.String("sender", sender),
		zap.String("receiver", receiver))
	return msg, nil
}

// ListBetween returns the caller's thread with counterpartID, oldest first
func (s *Service) ListBetween(ctx context.Context, caller, counterpartID string, page store.Page) ([]models.Message, error) {
	me, err := callerID(caller)
	if err != nil {
		return nil, err
	}
	other, err := participantID(counterpartID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.FindBetween(ctx, me, other, page)
	if err != nil {
		return nil, storeErr("find thread", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Thread is ListBetween plus the counterpart profile. A counterpart that
// no longer resolves, or a failed lookup, leaves Counterpart nil.
func (s *Service) Thread(ctx context.Context, caller, counterpartID string, page store.Page) (*Thread, error) {
	msgs, err := s.ListBetween(ctx, caller, counterpartID, page)
	if err != nil {
		return nil, err
	}

	other, _ := normalizeID(counterpartID)
	thread := &Thread{Messages: msgs}

	found, err := s.accounts.Lookup(ctx, []string{other})
	if err != nil {
		s.log.Warn("counterpart lookup failed", zap.String("counterpart", other), zap.Error(err))
		return thread, nil
	}
	if a, ok := found[other]; ok {
		thread.Counterpart = &a
	}
	return thread, nil
}

// ListConversations builds the caller's inbox: one row per counterpart
// carrying the latest message, newest first. Counterparts whose account no
// longer resolves are dropped. UnreadCount is counted separately from the
// representative message, so a row can show a read latest message while
// older messages are still unread.
func (s *Service) ListConversations(ctx context.Context, caller string) ([]models.Conversation, error) {
	me, err := callerID(caller)
	if err != nil {
		return nil, err
	}

	latest, err := s.messages.LatestPerCounterpart(ctx, me)
	if err != nil {
		return nil, storeErr("latest per counterpart", err)
	}
	if len(latest) == 0 {
		return []models.Conversation{}, nil
	}

	ids := make([]string, len(latest))
	for i := range latest {
		ids[i] = latest[i].CounterpartOf(me)
	}

	accounts, err := s.accounts.Lookup(ctx, ids)
	if err != nil {
		return nil, storeErr("lookup counterparts", err)
	}
	unread, err := s.messages.UnreadBySender(ctx, me)
	if err != nil {
		return nil, storeErr("count unread", err)
	}

	conversations := make([]models.Conversation, 0, len(latest))
	for i, m := range latest {
		account, ok := accounts[ids[i]]
		if !ok {
			s.log.Debug("dropping conversation with unresolved counterpart", zap.String("counterpart", ids[i]))
			continue
		}
		conversations = append(conversations, models.NewConversation(m, account, unread[ids[i]]))
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations, nil
}

// MarkRead marks everything counterpartID sent the caller as read and
// returns how many messages changed. Repeating it is a no-op.
func (s *Service) MarkRead(ctx context.Context, caller, counterpartID string) (int64, error) {
	me, err := callerID(caller)
	if err != nil {
		return 0, err
	}
	other, err := participantID(counterpartID)
	if err != nil {
		return 0, err
	}

	n, err := s.messages.MarkRead(ctx, other, me)
	if err != nil {
		return 0, storeErr("mark read", err)
	}
	return n, nil
}

// UnreadTotal counts every unread message addressed to the caller
func (s *Service) UnreadTotal(ctx context.Context, caller string) (int64, error) {
	me, err := callerID(caller)
	if err != nil {
		return 0, err
	}

	counts, err := s.messages.UnreadBySender(ctx, me)
	if err != nil {
		return 0, storeErr("count unread", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// Ping checks the message store
func (s *Service) Ping(ctx context.Context) error {
	if err := s.messages.Ping(ctx); err != nil {
		return persistence("ping", err)
	}
	return nil
}

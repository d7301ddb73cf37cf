// Package client is the messaging client used by the storefront: an
// explicit state container with pure transition functions, an HTTP API
// client and a Messenger that drives optimistic sends.
package client

import (
	"time"

	"unisell/server/internal/models"
)

// Status is the delivery state of a message held by the client
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// LoadStatus tracks the last fetch
type LoadStatus string

const (
	LoadIdle      LoadStatus = "idle"
	LoadLoading   LoadStatus = "loading"
	LoadSucceeded LoadStatus = "succeeded"
	LoadFailed    LoadStatus = "failed"
)

// Entry is a message as the client shows it. Provisional entries carry a
// TempID until the server confirms them.
type Entry struct {
	models.Message
	Status Status `json:"status"`
	TempID string `json:"tempId,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (e Entry) provisional() bool {
	return e.Status == StatusSending || e.Status == StatusFailed
}

// State is everything the messaging views render from.
// States are values: Reduce never mutates its input.
type State struct {
	Conversations []models.Conversation
	Messages      []Entry
	ThreadWith    string
	Counterpart   *models.Account
	Status        LoadStatus
	Error         string
	LastUpdated   time.Time
}

func InitialState() State {
	return State{Status: LoadIdle}
}

// Action is a state transition request
type Action interface {
	isAction()
}

type (
	Reset struct{}

	ConversationsRequested struct{}
	ConversationsLoaded    struct {
		Conversations []models.Conversation
		At            time.Time
	}
	ConversationsFailed struct{ Err string }

	ThreadRequested struct{ CounterpartID string }
	ThreadLoaded    struct {
		CounterpartID string
		Messages      []models.Message
		Counterpart   *models.Account
		At            time.Time
	}
	ThreadFailed struct{ Err string }

	// SendStarted appends a provisional record at the tail of the open
	// thread; it is ignored for any other receiver.
	SendStarted struct {
		TempID     string
		ClientID   string
		SenderID   string
		ReceiverID string
		Content    string
		At         time.Time
	}
	// SendSucceeded replaces the provisional record in place
	SendSucceeded struct {
		ClientID string
		Content  string
		Message  models.Message
	}
	// SendFailed flags the provisional record; it stays visible
	SendFailed struct {
		ClientID string
		Content  string
		Err      string
	}
	RetryStarted struct{ TempID string }
	Discarded    struct{ TempID string }

	MarkedRead struct{ CounterpartID string }
)

func (Reset) isAction()                  {}
func (ConversationsRequested) isAction() {}
func (ConversationsLoaded) isAction()    {}
func (ConversationsFailed) isAction()    {}
func (ThreadRequested) isAction()        {}
func (ThreadLoaded) isAction()           {}
func (ThreadFailed) isAction()           {}
func (SendStarted) isAction()            {}
func (SendSucceeded) isAction()          {}
func (SendFailed) isAction()             {}
func (RetryStarted) isAction()           {}
func (Discarded) isAction()              {}
func (MarkedRead) isAction()             {}

// Reduce returns the state that follows s after a
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Reset:
		return InitialState()

	case ConversationsRequested:
		s.Status = LoadLoading
	case ConversationsLoaded:
		s.Status = LoadSucceeded
		s.Error = ""
		s.Conversations = append([]models.Conversation(nil), a.Conversations...)
		s.LastUpdated = a.At
	case ConversationsFailed:
		s.Status = LoadFailed
		s.Error = a.Err

	case ThreadRequested:
		s.Status = LoadLoading
		if a.CounterpartID != s.ThreadWith {
			s.Messages = nil
			s.Counterpart = nil
		}
		s.ThreadWith = a.CounterpartID
	case ThreadLoaded:
		s = threadLoaded(s, a)
	case ThreadFailed:
		s.Status = LoadFailed
		s.Error = a.Err

	case SendStarted:
		if a.ReceiverID != s.ThreadWith {
			break
		}
		msgs := make([]Entry, len(s.Messages), len(s.Messages)+1)
		copy(msgs, s.Messages)
		s.Messages = append(msgs, Entry{
			Message: models.Message{
				ID:         a.TempID,
				SenderID:   a.SenderID,
				ReceiverID: a.ReceiverID,
				Content:    a.Content,
				CreatedAt:  a.At,
				ClientID:   a.ClientID,
			},
			Status: StatusSending,
			TempID: a.TempID,
		})
	case SendSucceeded:
		i := findSending(s.Messages, a.ClientID, a.Content)
		if i < 0 {
			break
		}
		// A refetch may already have delivered the stored copy.
		if j := findID(s.Messages, a.Message.ID); j >= 0 && j != i {
			msgs := make([]Entry, 0, len(s.Messages)-1)
			msgs = append(msgs, s.Messages[:i]...)
			s.Messages = append(msgs, s.Messages[i+1:]...)
			break
		}
		s.Messages = cloneEntries(s.Messages)
		s.Messages[i] = Entry{Message: a.Message, Status: StatusSent}
	case SendFailed:
		if i := findSending(s.Messages, a.ClientID, a.Content); i >= 0 {
			s.Messages = cloneEntries(s.Messages)
			s.Messages[i].Status = StatusFailed
			s.Messages[i].Error = a.Err
		}
	case RetryStarted:
		if i := findTemp(s.Messages, a.TempID); i >= 0 && s.Messages[i].Status == StatusFailed {
			s.Messages = cloneEntries(s.Messages)
			s.Messages[i].Status = StatusSending
			s.Messages[i].Error = ""
		}
	case Discarded:
		if i := findTemp(s.Messages, a.TempID); i >= 0 && s.Messages[i].Status == StatusFailed {
			msgs := make([]Entry, 0, len(s.Messages)-1)
			msgs = append(msgs, s.Messages[:i]...)
			s.Messages = append(msgs, s.Messages[i+1:]...)
		}

	case MarkedRead:
		s = markedRead(s, a.CounterpartID)
	}
	return s
}

// threadLoaded swaps in the server history. Provisional records for the
// same thread are kept at the tail so a pending or failed send never
// disappears on refresh.
func threadLoaded(s State, a ThreadLoaded) State {
	if a.CounterpartID != s.ThreadWith {
		return s
	}

	msgs := make([]Entry, 0, len(a.Messages))
	for _, m := range a.Messages {
		msgs = append(msgs, Entry{Message: m, Status: StatusSent})
	}
	for _, e := range s.Messages {
		if e.provisional() && e.ReceiverID == a.CounterpartID {
			msgs = append(msgs, e)
		}
	}

	s.Messages = msgs
	s.Counterpart = a.Counterpart
	s.Status = LoadSucceeded
	s.Error = ""
	s.LastUpdated = a.At
	return s
}

// markedRead zeroes the cached unread badge and flags the counterpart's
// messages as read without refetching.
func markedRead(s State, counterpartID string) State {
	for i, c := range s.Conversations {
		if c.User.ID != counterpartID {
			continue
		}
		convs := append([]models.Conversation(nil), s.Conversations...)
		convs[i].UnreadCount = 0
		s.Conversations = convs
		break
	}

	var msgs []Entry
	for i, e := range s.Messages {
		if e.SenderID == counterpartID && !e.IsRead {
			if msgs == nil {
				msgs = cloneEntries(s.Messages)
			}
			msgs[i].IsRead = true
		}
	}
	if msgs != nil {
		s.Messages = msgs
	}
	return s
}

// findSending locates the provisional record a send result belongs to. The
// correlation token decides; content equality is only a fallback for
// servers that do not echo the token.
func findSending(msgs []Entry, clientID, content string) int {
	if clientID != "" {
		for i, e := range msgs {
			if e.Status == StatusSending && e.ClientID == clientID {
				return i
			}
		}
		return -1
	}
	for i, e := range msgs {
		if e.Status == StatusSending && e.Content == content {
			return i
		}
	}
	return -1
}

func findTemp(msgs []Entry, tempID string) int {
	if tempID == "" {
		return -1
	}
	for i, e := range msgs {
		if e.TempID == tempID {
			return i
		}
	}
	return -1
}

func findID(msgs []Entry, id string) int {
	for i, e := range msgs {
		if e.Status == StatusSent && e.ID == id {
			return i
		}
	}
	return -1
}

func cloneEntries(msgs []Entry) []Entry {
	return append([]Entry(nil), msgs...)
}

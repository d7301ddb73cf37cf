package models

import "time"

// Message is a direct message between two accounts
type Message struct {
	ID         string    `json:"_id" db:"id"`
	SenderID   string    `json:"sender" db:"sender_id"`
	ReceiverID string    `json:"receiver" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`
	IsRead     bool      `json:"isRead" db:"is_read"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`

	// ClientID echoes the correlation token supplied by the sending client.
	// It is not persisted.
	ClientID string `json:"clientId,omitempty" db:"-"`
}

// CounterpartOf returns the other participant relative to userID
func (m *Message) CounterpartOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether userID sent or received the message
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// SendMessageRequest represents send message request body
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,objectid"`
	Content    string `json:"content" validate:"required"`
	ClientID   string `json:"clientId,omitempty" validate:"omitempty,max=64"`
}

package models

import "time"

// Conversation is one row of a user's inbox. It is derived from the message
// history on every request and never stored.
type Conversation struct {
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	IsRead      bool      `json:"isRead"`
	SenderID    string    `json:"sender"`
	ReceiverID  string    `json:"receiver"`
	User        Account   `json:"user"`
	UnreadCount int64     `json:"unreadCount"`
}

// NewConversation summarises a conversation by its representative message
func NewConversation(latest Message, counterpart Account, unread int64) Conversation {
	return Conversation{
		Content:     latest.Content,
		CreatedAt:   latest.CreatedAt,
		IsRead:      latest.IsRead,
		SenderID:    latest.SenderID,
		ReceiverID:  latest.ReceiverID,
		User:        counterpart,
		UnreadCount: unread,
	}
}

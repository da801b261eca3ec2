package domain

import "time"

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Image is a binary image attachment sent alongside a turn
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// ConversationTurn is a single message in a shopper conversation
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Image     *Image    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrailingWindow returns the most recent n turns, preserving order.
// The input slice is never modified.
func TrailingWindow(turns []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	start := 0
	if len(turns) > n {
		start = len(turns) - n
	}
	window := make([]ConversationTurn, len(turns)-start)
	copy(window, turns[start:])
	return window
}

package chat

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Message roles accepted by the provider's completion schema.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// DefaultTitle is the title of a conversation before its first user message.
const DefaultTitle = "New Chat"

// ErrNotFound reports an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// Message is an OpenAI-compatible chat message. Messages are immutable once
// created; ordering within a conversation is insertion order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation holds one titled, ordered message history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated id and the
// default title.
func NewConversation() *Conversation {
	return &Conversation{
		ID:        newConversationID(),
		Title:     DefaultTitle,
		CreatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}
}

// Clone returns a copy whose message slice is independent of the original.
func (c *Conversation) Clone() Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

// IsEmpty returns true when the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

func newConversationID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("conv_%d_%s", time.Now().UTC().UnixNano(), hex.EncodeToString(buf))
}

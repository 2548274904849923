package chat

import (
	"strings"
	"testing"
)

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if !strings.HasPrefix(conv.ID, "conv_") {
		t.Fatalf("ID=%q, want conv_ prefix", conv.ID)
	}
	if conv.Title != DefaultTitle {
		t.Fatalf("Title=%q, want %q", conv.Title, DefaultTitle)
	}
	if conv.Messages == nil || len(conv.Messages) != 0 {
		t.Fatalf("Messages=%v, want empty non-nil slice", conv.Messages)
	}
	if conv.CreatedAt.IsZero() {
		t.Fatal("CreatedAt is zero")
	}
}

func TestNewConversation_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewConversation().ID
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestClone_Independent(t *testing.T) {
	conv := NewConversation()
	conv.Messages = append(conv.Messages, Message{Role: RoleUser, Content: "original"})

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"

	if conv.Messages[0].Content != "original" {
		t.Fatal("Clone shares message backing array")
	}
}

func TestIsEmpty(t *testing.T) {
	conv := NewConversation()
	if !conv.IsEmpty() {
		t.Fatal("fresh conversation should be empty")
	}
	conv.Messages = append(conv.Messages, Message{Role: RoleUser, Content: "hi"})
	if conv.IsEmpty() {
		t.Fatal("conversation with messages should not be empty")
	}
}

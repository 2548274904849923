// Package session owns the conversation collection: ordering, active
// selection, title derivation, and persistence after every mutation.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"chatd/internal/chat"
	"chatd/internal/storage"
)

// maxTitleRunes is where a derived title is cut; longer first messages get
// an ellipsis marker appended.
const maxTitleRunes = 30

// ErrNotAppend reports a message sequence that does not extend the existing
// one. Only appends are permitted through Append.
var ErrNotAppend = errors.New("message sequence must extend the existing one")

// Store holds the ordered conversation collection, newest first. All access
// is serialized behind one mutex; every structural mutation is followed by a
// persist. Persistence failures are logged and swallowed: the in-memory
// state stays authoritative for the rest of the process.
type Store struct {
	mu            sync.Mutex
	storage       storage.Store
	log           *slog.Logger
	conversations []*chat.Conversation
	activeID      string
}

// NewStore creates a store backed by st. Call Load before anything else.
func NewStore(st storage.Store) *Store {
	return &Store{
		storage: st,
		log:     slog.Default(),
	}
}

// Load reads the persisted collection. Missing or malformed history starts
// from empty; an empty collection immediately gets one fresh conversation,
// so the collection is never empty after Load. The front conversation
// becomes active.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.storage.LoadCollection()
	if err != nil {
		s.log.Warn("load conversations failed, starting fresh", "error", err)
		loaded = nil
	}

	s.conversations = s.conversations[:0]
	for _, conv := range loaded {
		if conv == nil || conv.ID == "" {
			continue
		}
		if conv.Messages == nil {
			conv.Messages = []chat.Message{}
		}
		if conv.Title == "" {
			conv.Title = chat.DefaultTitle
		}
		s.conversations = append(s.conversations, conv)
	}

	if len(s.conversations) == 0 {
		s.createLocked()
		return
	}
	s.activeID = s.conversations[0].ID
}

// Create inserts a new conversation at the front of the collection, makes it
// active, and returns a copy of it.
func (s *Store) Create() chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked().Clone()
}

// Delete removes the conversation with the given id; unknown ids are a
// no-op. When the active conversation is deleted, the new front becomes
// active, or a fresh conversation is created if the collection emptied.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.activeID == id {
		if len(s.conversations) == 0 {
			s.createLocked()
			return
		}
		s.activeID = s.conversations[0].ID
	}
	s.persistLocked()
}

// Append replaces the target conversation's message sequence with msgs,
// which must extend the current sequence (only appends come through this
// path). The title is derived exactly once, when the sequence first becomes
// non-empty with a leading user message.
func (s *Store) Append(id string, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getLocked(id)
	if conv == nil {
		return chat.ErrNotFound
	}
	if len(msgs) < len(conv.Messages) {
		return ErrNotAppend
	}
	for i, existing := range conv.Messages {
		if msgs[i] != existing {
			return ErrNotAppend
		}
	}

	wasEmpty := len(conv.Messages) == 0
	conv.Messages = append([]chat.Message(nil), msgs...)
	if wasEmpty && len(conv.Messages) > 0 && conv.Title == chat.DefaultTitle {
		deriveTitle(conv)
	}
	s.persistLocked()
	return nil
}

// Clear empties the conversation's message sequence without touching its
// title or id. Unknown ids are a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getLocked(id)
	if conv == nil {
		return
	}
	conv.Messages = []chat.Message{}
	s.persistLocked()
}

// Get returns a copy of the conversation with the given id.
func (s *Store) Get(id string) (chat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getLocked(id)
	if conv == nil {
		return chat.Conversation{}, false
	}
	return conv.Clone(), true
}

// Conversations returns copies of the whole collection, newest first.
func (s *Store) Conversations() []chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, conv.Clone())
	}
	return out
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (chat.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getLocked(s.activeID)
	if conv == nil {
		return chat.Conversation{}, false
	}
	return conv.Clone(), true
}

// ActiveID returns the active conversation id.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetActive switches the active selection.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getLocked(id) == nil {
		return chat.ErrNotFound
	}
	s.activeID = id
	s.persistLocked()
	return nil
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

func (s *Store) createLocked() *chat.Conversation {
	conv := chat.NewConversation()
	s.conversations = append([]*chat.Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	s.persistLocked()
	return conv
}

func (s *Store) indexLocked(id string) int {
	for i, conv := range s.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) getLocked(id string) *chat.Conversation {
	if idx := s.indexLocked(id); idx >= 0 {
		return s.conversations[idx]
	}
	return nil
}

func (s *Store) persistLocked() {
	if err := s.storage.SaveCollection(s.conversations); err != nil {
		s.log.Warn("persist conversations failed, keeping in-memory state", "error", err)
	}
}

func deriveTitle(conv *chat.Conversation) {
	first := conv.Messages[0]
	if first.Role != chat.RoleUser {
		return
	}
	runes := []rune(first.Content)
	if len(runes) > maxTitleRunes {
		conv.Title = string(runes[:maxTitleRunes]) + "..."
		return
	}
	conv.Title = first.Content
}

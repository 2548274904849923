package storage

import "chatd/internal/chat"

// Store 持久化接口 / Store is the persistence interface for the session
// collection. The whole collection is written and read as one unit; partial
// updates are not part of the contract.
type Store interface {
	// LoadCollection returns the persisted collection, or (nil, nil) when no
	// usable history exists.
	LoadCollection() ([]*chat.Conversation, error)

	// SaveCollection replaces the persisted collection.
	SaveCollection(conversations []*chat.Conversation) error

	// Close releases the underlying resources.
	Close() error
}

// Package store provides pluggable persistence for collaborative documents
// and their operation logs. The engine itself never touches a store; the
// transport layer persists through one.
package store

import (
	"context"
	"time"

	"github.com/mfadel/go-collab-engine/collab"
)

// DocumentInfo holds document metadata and content.
type DocumentInfo struct {
	ID        string
	Content   string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore abstracts document persistence.
// Implementations: MemoryStore, FirestoreStore, CachedStore.
type DocumentStore interface {
	Create(ctx context.Context, id, content string) error
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	UpdateContent(ctx context.Context, id, content string, version int) error
	AppendOperation(ctx context.Context, id string, op collab.Operation, version int) error
	GetOperations(ctx context.Context, id string, fromVersion int) ([]collab.Operation, error)
}

package collab

import (
	"errors"
	"sync"
)

var (
	// ErrSessionNotFound reports an operation routed to a document with no
	// session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrApplyFailed reports an operation the document rejected. The apply
	// path does not distinguish why; callers must decode the operation to
	// find out.
	ErrApplyFailed = errors.New("failed to apply operation")
)

// Result reports a successfully processed operation.
type Result struct {
	NewVersion  int    `json:"newVersion"`
	OperationID string `json:"operationId"`
}

// QueuedOperation is an accepted operation awaiting broadcast to other
// agents. Version is the document version the apply produced, so a consumer
// draining several queued operations at once can label each with the
// revision it took effect at rather than the latest one.
type QueuedOperation struct {
	DocumentID string    `json:"documentId"`
	Op         Operation `json:"op"`
	Version    int       `json:"version"`
}

// Manager is a registry of sessions keyed by document id. Sessions are
// created lazily and never removed. Accepted operations are queued for an
// external broadcast consumer.
//
// The broadcast queue trails the document log: an operation is visible
// through PendingOperations (and the document version has advanced) before
// it appears in the queue. Consumers needing a view consistent with the
// version should read PendingOperations; the queue is only a delivery feed.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	queueMu sync.Mutex
	queue   []QueuedOperation
	notify  chan struct{}
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		notify:   make(chan struct{}, 1),
	}
}

// CreateSession returns the session for documentID, creating one seeded
// with initialContent if none exists. Creation is idempotent: the initial
// content is ignored for an existing session.
func (m *Manager) CreateSession(documentID, initialContent string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[documentID]; ok {
		return s
	}
	s := NewSession(documentID, initialContent)
	m.sessions[documentID] = s
	return s
}

// GetSession returns the session for documentID, or nil if none was ever
// created.
func (m *Manager) GetSession(documentID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[documentID]
}

// ProcessOperation applies op to documentID's document and queues it for
// broadcast. It returns ErrSessionNotFound for unknown documents and
// ErrApplyFailed when the document rejects the operation; in both cases the
// document is untouched and nothing is queued.
func (m *Manager) ProcessOperation(documentID string, op Operation) (Result, error) {
	s := m.GetSession(documentID)
	if s == nil {
		return Result{}, ErrSessionNotFound
	}

	version, ok := s.doc.applyVersioned(op)
	if !ok {
		return Result{}, ErrApplyFailed
	}

	m.queueMu.Lock()
	m.queue = append(m.queue, QueuedOperation{DocumentID: documentID, Op: op, Version: version})
	m.queueMu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}

	return Result{NewVersion: version, OperationID: op.ID}, nil
}

// PendingOperations returns the operations applied to documentID's log at
// or after sinceVersion, in application order. Unknown documents yield nil.
func (m *Manager) PendingOperations(documentID string, sinceVersion int) []Operation {
	s := m.GetSession(documentID)
	if s == nil {
		return nil
	}
	return s.doc.OperationsSince(sinceVersion)
}

// Drain removes and returns everything queued for broadcast, in acceptance
// order.
func (m *Manager) Drain() []QueuedOperation {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

// Notify pulses when operations are queued. The channel is buffered and
// coalescing: one receive may cover several queued operations, so consumers
// should Drain until empty.
func (m *Manager) Notify() <-chan struct{} { return m.notify }

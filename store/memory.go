package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mfadel/go-collab-engine/collab"
)

// MemoryStore keeps documents and their operation logs in process memory.
// It serves as the development store and as the cache half of CachedStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*docRecord
}

type docRecord struct {
	info DocumentInfo
	log  []collab.Operation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docRecord)}
}

func (s *MemoryStore) Create(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return fmt.Errorf("document %q already exists", id)
	}
	now := time.Now()
	s.docs[id] = &docRecord{info: DocumentInfo{
		ID:        id,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}
	info := rec.info
	return &info, nil
}

// List returns every document, ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DocumentInfo, 0, len(s.docs))
	for _, rec := range s.docs {
		out = append(out, rec.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id, content string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q not found", id)
	}
	rec.info.Content = content
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) AppendOperation(_ context.Context, id string, op collab.Operation, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q not found", id)
	}
	rec.log = append(rec.log, op)
	rec.info.Version = version
	rec.info.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetOperations(_ context.Context, id string, fromVersion int) ([]collab.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}
	if fromVersion < 0 || fromVersion > len(rec.log) {
		return nil, fmt.Errorf("operation index %d out of range", fromVersion)
	}
	ops := make([]collab.Operation, len(rec.log)-fromVersion)
	copy(ops, rec.log[fromVersion:])
	return ops, nil
}

// opCount reports how many operations are logged for id, 0 if unknown.
func (s *MemoryStore) opCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.docs[id]; ok {
		return len(rec.log)
	}
	return 0
}

// snapshot returns a copy of the document and its full log.
func (s *MemoryStore) snapshot(id string) (DocumentInfo, []collab.Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok {
		return DocumentInfo{}, nil, false
	}
	ops := make([]collab.Operation, len(rec.log))
	copy(ops, rec.log)
	return rec.info, ops, true
}

// seed installs a document loaded from elsewhere. An existing record is
// left untouched.
func (s *MemoryStore) seed(info DocumentInfo, ops []collab.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[info.ID]; !exists {
		s.docs[info.ID] = &docRecord{info: info, log: ops}
	}
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfadel/go-collab-engine/collab"
)

// CachedStore is a write-behind wrapper around another DocumentStore.
// Reads and writes hit an in-memory cache; a background loop pushes the
// accumulated changes through on an interval, so a crash loses at most one
// interval of writes.
type CachedStore struct {
	cache   *MemoryStore
	backing DocumentStore
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWrites

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// pendingWrites records what a document still owes the backing store.
type pendingWrites struct {
	create    bool // never written through at all
	content   bool // content/version changed since the last flush
	persisted int  // prefix of the log already written through
}

func NewCachedStore(backing DocumentStore, flushInterval time.Duration, log zerolog.Logger) *CachedStore {
	cs := &CachedStore{
		cache:    NewMemoryStore(),
		backing:  backing,
		log:      log,
		pending:  make(map[string]*pendingWrites),
		interval: flushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go cs.run()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, id, content string) error {
	if err := cs.cache.Create(ctx, id, content); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.pending[id] = &pendingWrites{create: true, content: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	if info, err := cs.cache.Get(ctx, id); err == nil {
		return info, nil
	}
	if err := cs.fault(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]DocumentInfo, error) {
	return cs.backing.List(ctx)
}

func (cs *CachedStore) UpdateContent(ctx context.Context, id, content string, version int) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.UpdateContent(ctx, id, content, version); err != nil {
		return err
	}
	cs.mu.Lock()
	pw := cs.pending[id]
	if pw == nil {
		// Clean documents have their whole log persisted, so the current
		// count is the right baseline.
		pw = &pendingWrites{persisted: cs.cache.opCount(id)}
		cs.pending[id] = pw
	}
	pw.content = true
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) AppendOperation(ctx context.Context, id string, op collab.Operation, version int) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	// The pre-append count is the persisted baseline if the document was
	// clean until now.
	before := cs.cache.opCount(id)
	if err := cs.cache.AppendOperation(ctx, id, op, version); err != nil {
		return err
	}
	cs.mu.Lock()
	if cs.pending[id] == nil {
		cs.pending[id] = &pendingWrites{persisted: before}
	}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]collab.Operation, error) {
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.GetOperations(ctx, id, fromVersion)
}

// fault pulls a document and its log from the backing store into the cache.
// Nothing is owed for it afterwards, so no pending entry is made.
func (cs *CachedStore) fault(ctx context.Context, id string) error {
	info, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	ops, err := cs.backing.GetOperations(ctx, id, 0)
	if err != nil {
		return err
	}
	cs.cache.seed(*info, ops)
	return nil
}

func (cs *CachedStore) run() {
	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush pushes every dirty document through to the backing store. A
// document whose writes fail keeps its pending entry and is retried on the
// next cycle.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	work := make(map[string]pendingWrites, len(cs.pending))
	for id, pw := range cs.pending {
		work[id] = *pw
	}
	cs.mu.Unlock()

	ctx := context.Background()
	for id, pw := range work {
		cs.flushDoc(ctx, id, pw)
	}
}

// flushDoc writes one document's outstanding changes: creation, then the
// unpersisted tail of the log, then the content. Operations go before
// content so a partial flush can still be replayed.
func (cs *CachedStore) flushDoc(ctx context.Context, id string, pw pendingWrites) {
	info, ops, ok := cs.cache.snapshot(id)
	if !ok {
		return
	}

	if pw.create {
		if err := cs.backing.Create(ctx, id, ""); err != nil {
			cs.log.Error().Err(err).Str("doc", id).Msg("write-behind create failed")
			return
		}
		pw.create = false
	}

	for pw.persisted < len(ops) {
		version := pw.persisted + 1
		if err := cs.backing.AppendOperation(ctx, id, ops[pw.persisted], version); err != nil {
			cs.log.Error().Err(err).Str("doc", id).Int("version", version).Msg("write-behind operation failed")
			break
		}
		pw.persisted++
	}

	if pw.content {
		if err := cs.backing.UpdateContent(ctx, id, info.Content, info.Version); err != nil {
			cs.log.Error().Err(err).Str("doc", id).Msg("write-behind content failed")
		} else {
			pw.content = false
		}
	}

	cs.settle(id, pw, len(ops))
}

// settle folds a flush outcome back into the live pending entry, dropping
// the entry once nothing is owed and nothing new arrived mid-flush.
func (cs *CachedStore) settle(id string, pw pendingWrites, seen int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cur := cs.pending[id]
	if cur == nil {
		return
	}
	cur.persisted = pw.persisted
	cur.create = pw.create
	if !pw.content {
		cur.content = false
	}
	if cur.create || cur.content || cur.persisted < seen {
		return
	}
	if cur.persisted >= cs.cache.opCount(id) {
		delete(cs.pending, id)
	}
}

// Close runs a final flush and waits for the loop to finish.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}

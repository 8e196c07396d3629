package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mfadel/go-collab-engine/collab"
	"github.com/mfadel/go-collab-engine/store"
)

type joinRequest struct {
	client *Client
	docID  string
	info   map[string]string
}

// Hub routes clients to per-document rooms and dispatches the manager's
// broadcast queue to them.
type Hub struct {
	manager *collab.Manager
	engine  collab.Engine
	store   store.DocumentStore
	log     zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*room

	joinDoc chan joinRequest
	stop    chan struct{}
}

func NewHub(manager *collab.Manager, engine collab.Engine, st store.DocumentStore, log zerolog.Logger) *Hub {
	return &Hub{
		manager: manager,
		engine:  engine,
		store:   st,
		log:     log,
		rooms:   make(map[string]*room),
		joinDoc: make(chan joinRequest, 64),
		stop:    make(chan struct{}),
	}
}

// Manager returns the hub's collaboration manager.
func (h *Hub) Manager() *collab.Manager { return h.manager }

// Run is the hub's main loop: it admits clients and dispatches accepted
// operations to rooms for broadcast.
func (h *Hub) Run() {
	for {
		select {
		case req := <-h.joinDoc:
			h.handleJoinDoc(req)
		case <-h.manager.Notify():
			h.dispatch()
		case <-h.stop:
			return
		}
	}
}

// Stop terminates the hub loop and every room loop.
func (h *Hub) Stop() {
	close(h.stop)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		close(r.stop)
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	h.mu.RLock()
	r, ok := h.rooms[req.docID]
	h.mu.RUnlock()

	if !ok {
		// Load (or create) the document before taking the write lock so a
		// slow store doesn't stall other joins.
		ctx := context.Background()
		info, err := h.store.Get(ctx, req.docID)
		if err != nil {
			// Another join may create it concurrently; the retried Get
			// settles it either way.
			if err := h.store.Create(ctx, req.docID, ""); err != nil {
				h.log.Debug().Err(err).Str("doc", req.docID).Msg("create document")
			}
			info, err = h.store.Get(ctx, req.docID)
			if err != nil {
				h.log.Error().Err(err).Str("doc", req.docID).Msg("load document failed")
				req.client.sendError("failed to load document")
				return
			}
		}

		h.mu.Lock()
		r, ok = h.rooms[req.docID]
		if !ok {
			session := h.manager.CreateSession(req.docID, info.Content)
			r = newRoom(req.docID, session, h.manager, h.engine, h.store, h.log)
			h.rooms[req.docID] = r
			go r.run()
		}
		h.mu.Unlock()
	}

	r.join <- joinMsg{client: req.client, info: req.info}
}

// dispatch drains the broadcast queue and hands each accepted operation to
// its room. Operations for documents without an active room (engine used
// directly, no connected clients) are dropped here; the document log still
// has them.
func (h *Hub) dispatch() {
	for _, q := range h.manager.Drain() {
		h.mu.RLock()
		r := h.rooms[q.DocumentID]
		h.mu.RUnlock()
		if r == nil {
			continue
		}
		select {
		case r.broadcast <- q:
		case <-r.stop:
		}
	}
}

package server

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mfadel/go-collab-engine/collab"
	"github.com/mfadel/go-collab-engine/store"
)

type inbound struct {
	client *Client
	msg    ClientMessage
}

type joinMsg struct {
	client *Client
	info   map[string]string
}

// room fans all traffic for one document through a single goroutine. The
// collaboration state itself lives in the manager's session; the room only
// owns the connections.
type room struct {
	docID   string
	session *collab.Session
	manager *collab.Manager
	engine  collab.Engine
	store   store.DocumentStore
	log     zerolog.Logger

	clients map[*Client]bool

	incoming  chan inbound
	join      chan joinMsg
	leave     chan *Client
	broadcast chan collab.QueuedOperation
	stop      chan struct{}
}

func newRoom(docID string, session *collab.Session, manager *collab.Manager, engine collab.Engine, st store.DocumentStore, log zerolog.Logger) *room {
	return &room{
		docID:     docID,
		session:   session,
		manager:   manager,
		engine:    engine,
		store:     st,
		log:       log.With().Str("doc", docID).Logger(),
		clients:   make(map[*Client]bool),
		incoming:  make(chan inbound, 64),
		join:      make(chan joinMsg, 16),
		leave:     make(chan *Client, 16),
		broadcast: make(chan collab.QueuedOperation, 64),
		stop:      make(chan struct{}),
	}
}

// run is the room's main loop. It serializes all document traffic.
func (r *room) run() {
	for {
		select {
		case jm := <-r.join:
			r.handleJoin(jm)
		case c := <-r.leave:
			r.handleLeave(c)
		case in := <-r.incoming:
			r.handleMessage(in)
		case q := <-r.broadcast:
			r.handleBroadcast(q)
		case <-r.stop:
			return
		}
	}
}

func (r *room) handleJoin(jm joinMsg) {
	c := jm.client
	r.clients[c] = true
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()

	r.session.AddAgent(c.ID, jm.info)

	// Send current document state to the joining client, including its
	// server-assigned agent id.
	snap := r.session.Document().Snapshot()
	c.sendMsg(ServerMessage{
		Type:     MsgDoc,
		DocID:    r.docID,
		Content:  snap.Content,
		Revision: snap.Version,
		AgentID:  c.ID,
		Agents:   r.session.Agents(),
	})

	// Notify other clients about the new agent.
	for other := range r.clients {
		if other != c {
			other.sendMsg(ServerMessage{Type: MsgJoin, DocID: r.docID, AgentID: c.ID})
		}
	}
}

func (r *room) handleLeave(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	c.mu.Lock()
	c.room = nil
	c.mu.Unlock()
	close(c.send)

	r.session.RemoveAgent(c.ID)

	for other := range r.clients {
		other.sendMsg(ServerMessage{Type: MsgLeave, DocID: r.docID, AgentID: c.ID})
	}
}

func (r *room) handleMessage(in inbound) {
	switch in.msg.Type {
	case MsgOp:
		r.handleOp(in)
	case MsgCursor:
		r.session.UpdateCursor(in.client.ID, in.msg.Position)
		r.relay(in.client, ServerMessage{
			Type:     MsgCursor,
			DocID:    r.docID,
			AgentID:  in.client.ID,
			Position: in.msg.Position,
		})
	case MsgSelection:
		r.session.UpdateSelection(in.client.ID, in.msg.Start, in.msg.End)
		r.relay(in.client, ServerMessage{
			Type:    MsgSelection,
			DocID:   r.docID,
			AgentID: in.client.ID,
			Start:   in.msg.Start,
			End:     in.msg.End,
		})
	}
}

func (r *room) handleOp(in inbound) {
	doc := r.session.Document()

	// The connection is authoritative for identity.
	op := in.msg.Op.WithAgent(in.client.ID)

	// Transform against everything the agent hasn't seen yet.
	transformed, err := r.engine.TransformIncoming(op, in.msg.Revision, doc.OperationsSince(0))
	if err != nil {
		r.log.Warn().Err(err).Str("agent", in.client.ID).Msg("transform failed")
		in.client.sendError("transform error: " + err.Error())
		return
	}

	res, err := r.manager.ProcessOperation(r.docID, transformed)
	if err != nil {
		r.log.Warn().Err(err).Str("agent", in.client.ID).Msg("operation rejected")
		in.client.sendError("apply error: " + err.Error())
		return
	}

	// Persist content and the accepted operation.
	ctx := context.Background()
	snap := doc.Snapshot()
	if err := r.store.UpdateContent(ctx, r.docID, snap.Content, snap.Version); err != nil {
		r.log.Error().Err(err).Msg("persist content failed")
	}
	if err := r.store.AppendOperation(ctx, r.docID, transformed, res.NewVersion); err != nil {
		r.log.Error().Err(err).Msg("persist operation failed")
	}

	// Ack the sender. Delivery to the other agents happens when the hub
	// drains the manager's broadcast queue.
	in.client.sendMsg(ServerMessage{
		Type:        MsgAck,
		DocID:       r.docID,
		Revision:    res.NewVersion,
		OperationID: res.OperationID,
	})
}

func (r *room) handleBroadcast(q collab.QueuedOperation) {
	op := q.Op
	for c := range r.clients {
		if c.ID != op.AgentID {
			c.sendMsg(ServerMessage{
				Type:     MsgOp,
				DocID:    r.docID,
				Revision: q.Version,
				Op:       &op,
				AgentID:  op.AgentID,
			})
		}
	}
}

// relay sends msg to every client except from.
func (r *room) relay(from *Client, msg ServerMessage) {
	for c := range r.clients {
		if c != from {
			c.sendMsg(msg)
		}
	}
}

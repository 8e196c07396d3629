package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfadel/go-collab-engine/collab"
	"github.com/mfadel/go-collab-engine/store"
)

func TestHub_CreatesDocumentOnFirstJoin(t *testing.T) {
	hub := setupHub(t, nil)

	c := mockClient("c1")
	msg := joinHub(t, hub, c, "fresh")
	assert.Equal(t, "", msg.Content)
	assert.Equal(t, 0, msg.Revision)

	// The document is created in the store and a session registered.
	info, err := hub.store.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", info.ID)
	require.NotNil(t, hub.Manager().GetSession("fresh"))
	require.NotNil(t, getRoom(hub, "fresh"))
}

func TestHub_JoinLoadsStoredContent(t *testing.T) {
	hub := setupHub(t, map[string]string{"existing": "stored text"})

	c := mockClient("c1")
	msg := joinHub(t, hub, c, "existing")
	assert.Equal(t, "stored text", msg.Content)
}

func TestHub_SecondJoinReusesRoom(t *testing.T) {
	hub := setupHub(t, map[string]string{"doc1": "abc"})

	c1 := mockClient("c1")
	c2 := mockClient("c2")
	joinHub(t, hub, c1, "doc1")
	r1 := getRoom(hub, "doc1")
	joinHub(t, hub, c2, "doc1")
	r2 := getRoom(hub, "doc1")

	assert.Same(t, r1, r2)
	assert.Equal(t, 2, hub.Manager().GetSession("doc1").Info().AgentCount)
}

// Simultaneous joins for the same new document must end up in one room:
// the document is loaded outside the lock, so the room map is re-checked
// after reacquiring it.
func TestHub_ConcurrentJoinsShareOneRoom(t *testing.T) {
	hub := NewHub(collab.NewManager(), &collab.SequentialEngine{}, store.NewMemoryStore(), zerolog.Nop())
	t.Cleanup(hub.Stop)

	c1 := mockClient("c1")
	c2 := mockClient("c2")
	var wg sync.WaitGroup
	for _, c := range []*Client{c1, c2} {
		c.hub = hub
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.handleJoinDoc(joinRequest{client: c, docID: "shared"})
		}(c)
	}
	wg.Wait()

	// Receiving the doc message confirms each join was processed.
	require.Equal(t, MsgDoc, recvMsg(t, c1).Type)
	require.Equal(t, MsgDoc, recvMsg(t, c2).Type)

	require.NotNil(t, getRoom(hub, "shared"))
	assert.Equal(t, 2, hub.Manager().GetSession("shared").Info().AgentCount)
}

// After Stop the room goroutines are gone; pending sends from dispatch and
// from a disconnecting client must not block forever.
func TestHub_StopUnblocksPendingSends(t *testing.T) {
	hub := NewHub(collab.NewManager(), &collab.SequentialEngine{}, store.NewMemoryStore(), zerolog.Nop())

	c := mockClient("c1")
	c.hub = hub
	hub.handleJoinDoc(joinRequest{client: c, docID: "doc1"})
	require.Equal(t, MsgDoc, recvMsg(t, c).Type)

	hub.Stop()
	r := getRoom(hub, "doc1")

	// Saturate the buffers so unguarded sends would block.
	for i := 0; i < cap(r.broadcast); i++ {
		r.broadcast <- collab.QueuedOperation{}
	}
	for i := 0; i < cap(r.leave); i++ {
		r.leave <- mockClient("filler")
	}
	_, err := hub.Manager().ProcessOperation("doc1", collab.NewInsert(0, "x", "c1"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		hub.dispatch()
		c.detach()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch or detach blocked after stop")
	}
}

func TestHub_SeparateDocumentsGetSeparateRooms(t *testing.T) {
	hub := setupHub(t, map[string]string{"a": "", "b": ""})

	joinHub(t, hub, mockClient("c1"), "a")
	joinHub(t, hub, mockClient("c2"), "b")

	assert.NotSame(t, getRoom(hub, "a"), getRoom(hub, "b"))
}

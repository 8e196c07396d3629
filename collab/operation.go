// Package collab implements the operation log, transform rules and session
// tracking for single-process collaborative editing of text documents.
package collab

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies what an operation does to a document.
type Kind string

const (
	KindInsert     Kind = "insert"
	KindDelete     Kind = "delete"
	KindFormat     Kind = "format"
	KindCursorMove Kind = "cursor"
)

// Operation describes a single edit intent. Only the fields relevant to its
// Kind are set: Content for inserts, Length for deletes, Attributes for
// formats. Positions are byte offsets into the document content.
//
// An Operation is immutable once constructed. Transform returns new values
// and never touches its inputs. Identity is by ID, not structure.
type Operation struct {
	Kind       Kind           `json:"kind"`
	Position   int            `json:"position"`
	Content    string         `json:"content,omitempty"`
	Length     int            `json:"length,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	AgentID    string         `json:"agentId"`
	Timestamp  time.Time      `json:"timestamp"`

	// ID is a fingerprint of kind, position, timestamp and agent. It is
	// advisory: stable for one operation but not guaranteed unique across
	// agents with skewed clocks.
	ID string `json:"id"`
}

// NewInsert creates an operation that inserts content at position.
func NewInsert(position int, content, agentID string) Operation {
	op := newOperation(KindInsert, position, agentID)
	op.Content = content
	return op
}

// NewDelete creates an operation that removes length bytes at position.
func NewDelete(position, length int, agentID string) Operation {
	op := newOperation(KindDelete, position, agentID)
	op.Length = length
	return op
}

// NewFormat creates an operation that records formatting attributes at
// position. The attributes are opaque to the engine.
func NewFormat(position int, attributes map[string]any, agentID string) Operation {
	op := newOperation(KindFormat, position, agentID)
	op.Attributes = attributes
	return op
}

// NewCursorMove creates an operation that records a cursor movement.
func NewCursorMove(position int, agentID string) Operation {
	return newOperation(KindCursorMove, position, agentID)
}

func newOperation(kind Kind, position int, agentID string) Operation {
	op := Operation{
		Kind:      kind,
		Position:  position,
		AgentID:   agentID,
		Timestamp: time.Now().UTC(),
	}
	op.ID = fingerprint(op)
	return op
}

// WithAgent returns a copy of op attributed to agentID, with the
// fingerprint recomputed. Transports use this to bind an operation to the
// connection that submitted it.
func (op Operation) WithAgent(agentID string) Operation {
	op.AgentID = agentID
	op.ID = fingerprint(op)
	return op
}

// Equal reports whether two operations are the same operation. Identity is
// carried by the fingerprint, not by field-wise comparison.
func (op Operation) Equal(other Operation) bool {
	return op.ID == other.ID
}

// at returns a copy of op relocated to position, with the fingerprint
// recomputed to match.
func (op Operation) at(position int) Operation {
	op.Position = position
	op.ID = fingerprint(op)
	return op
}

// fingerprint hashes the identity-bearing fields down to 8 hex characters.
func fingerprint(op Operation) string {
	var h xxhash.Digest
	h.WriteString(string(op.Kind))
	h.WriteString(strconv.Itoa(op.Position))
	h.WriteString(op.Timestamp.Format(time.RFC3339Nano))
	h.WriteString(op.AgentID)
	return fmt.Sprintf("%016x", h.Sum64())[:8]
}

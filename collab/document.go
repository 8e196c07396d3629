package collab

import "sync"

// Document owns the text content of one document together with the
// append-only log of operations that produced it. All access goes through a
// single mutex, so concurrent agents observe operations applied in one
// total order. The version counter always equals the log length, and
// replaying the log over the seed content always reproduces the live
// content.
type Document struct {
	id string

	mu      sync.Mutex
	content string
	version int
	log     []Operation
}

// NewDocument creates a document seeded with initial content at version 0.
func NewDocument(id, content string) *Document {
	return &Document{id: id, content: content}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Apply attempts to apply op to the document and reports whether it was
// applied. On false the content, version and log are untouched: there is no
// error detail at this layer, version simply does not advance.
func (d *Document) Apply(op Operation) bool {
	_, ok := d.applyVersioned(op)
	return ok
}

// applyVersioned applies op and reports the resulting version, so callers
// can pair the two without a second lock acquisition.
func (d *Document) applyVersioned(op Operation) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.apply(op) {
		return d.version, false
	}
	return d.version, true
}

func (d *Document) apply(op Operation) bool {
	switch op.Kind {
	case KindInsert:
		if op.Content == "" || op.Position < 0 || op.Position > len(d.content) {
			return false
		}
		d.content = d.content[:op.Position] + op.Content + d.content[op.Position:]
	case KindDelete:
		if op.Length <= 0 || op.Position < 0 || op.Position >= len(d.content) {
			return false
		}
		// A delete reaching past the end is clamped, never rejected.
		end := op.Position + op.Length
		if end > len(d.content) {
			end = len(d.content)
		}
		d.content = d.content[:op.Position] + d.content[end:]
	case KindFormat:
		// Formatting never touches the text; consumers interpret Attributes.
	case KindCursorMove:
		return false
	default:
		return false
	}
	d.version++
	d.log = append(d.log, op)
	return true
}

// Version returns the number of operations applied so far.
func (d *Document) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Snapshot is a point-in-time consistent view of a document.
type Snapshot struct {
	DocumentID    string     `json:"documentId"`
	Content       string     `json:"content"`
	Version       int        `json:"version"`
	Length        int        `json:"length"`
	LastOperation *Operation `json:"lastOperation,omitempty"`
}

// Snapshot returns the current state of the document, taken under the lock.
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Snapshot{
		DocumentID: d.id,
		Content:    d.content,
		Version:    d.version,
		Length:     len(d.content),
	}
	if n := len(d.log); n > 0 {
		last := d.log[n-1]
		s.LastOperation = &last
	}
	return s
}

// OperationsSince returns a copy of the log entries at index >= version, in
// application order. Because the version counter equals the log length,
// these are exactly the operations a consumer at that version has not seen.
func (d *Document) OperationsSince(version int) []Operation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if version < 0 {
		version = 0
	}
	if version >= len(d.log) {
		return nil
	}
	ops := make([]Operation, len(d.log)-version)
	copy(ops, d.log[version:])
	return ops
}

// Replay applies a log of operations over initial content and returns the
// resulting text. A document's log replayed over its seed content
// reproduces its live content exactly.
func Replay(initial string, ops []Operation) string {
	d := NewDocument("replay", initial)
	for _, op := range ops {
		d.Apply(op)
	}
	return d.Snapshot().Content
}

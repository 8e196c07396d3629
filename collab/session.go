package collab

import (
	"sort"
	"sync"
	"time"
)

// Agent is a connected participant in a session.
type Agent struct {
	ID       string            `json:"id"`
	Info     map[string]string `json:"info,omitempty"`
	JoinedAt time.Time         `json:"joinedAt"`
}

// Selection is a [Start, End) range of selected text.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Session associates one document with the agents currently editing it and
// their cursor state. A session persists with zero agents; there is no
// teardown.
type Session struct {
	documentID string
	doc        *Document

	mu         sync.Mutex
	agents     map[string]Agent
	cursors    map[string]int
	selections map[string]Selection
}

// NewSession creates a session owning a fresh document seeded with
// initialContent.
func NewSession(documentID, initialContent string) *Session {
	return &Session{
		documentID: documentID,
		doc:        NewDocument(documentID, initialContent),
		agents:     make(map[string]Agent),
		cursors:    make(map[string]int),
		selections: make(map[string]Selection),
	}
}

// Document returns the session's document.
func (s *Session) Document() *Document { return s.doc }

// AddAgent registers an agent, overwriting any previous registration with
// the same id. The agent's cursor starts at 0.
func (s *Session) AddAgent(id string, info map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[id] = Agent{ID: id, Info: info, JoinedAt: time.Now().UTC()}
	s.cursors[id] = 0
}

// RemoveAgent drops an agent and its cursor state. Unknown ids are ignored.
func (s *Session) RemoveAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, id)
	delete(s.cursors, id)
	delete(s.selections, id)
}

// UpdateCursor records an agent's cursor position. Positions are not
// bounds-checked against the document.
func (s *Session) UpdateCursor(id string, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[id] = position
}

// UpdateSelection records an agent's selection range.
func (s *Session) UpdateSelection(id string, start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[id] = Selection{Start: start, End: end}
}

// Agents returns the connected agents sorted by id.
func (s *Session) Agents() []Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	DocumentID      string               `json:"documentId"`
	AgentIDs        []string             `json:"connectedAgents"`
	AgentCount      int                  `json:"agentCount"`
	DocumentVersion int                  `json:"documentVersion"`
	Cursors         map[string]int       `json:"cursorPositions"`
	Selections      map[string]Selection `json:"selectionRanges"`
}

// Info returns a snapshot of the session. Agent ids are sorted and the
// returned maps are copies.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cursors := make(map[string]int, len(s.cursors))
	for id, p := range s.cursors {
		cursors[id] = p
	}
	selections := make(map[string]Selection, len(s.selections))
	for id, r := range s.selections {
		selections[id] = r
	}

	return SessionInfo{
		DocumentID:      s.documentID,
		AgentIDs:        ids,
		AgentCount:      len(s.agents),
		DocumentVersion: s.doc.Version(),
		Cursors:         cursors,
		Selections:      selections,
	}
}

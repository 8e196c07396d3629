package server

import (
	"encoding/json"

	"github.com/mfadel/go-collab-engine/collab"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin      = "join"
	MsgLeave     = "leave"
	MsgOp        = "op"
	MsgAck       = "ack"
	MsgDoc       = "doc"
	MsgCursor    = "cursor"
	MsgSelection = "selection"
	MsgError     = "error"
)

// ClientMessage is a message from client to server.
type ClientMessage struct {
	Type     string            `json:"type"`
	DocID    string            `json:"docId,omitempty"`
	Revision int               `json:"revision"`
	Op       collab.Operation  `json:"op,omitempty"`
	Position int               `json:"position,omitempty"`
	Start    int               `json:"start,omitempty"`
	End      int               `json:"end,omitempty"`
	Info     map[string]string `json:"info,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type        string            `json:"type"`
	DocID       string            `json:"docId,omitempty"`
	Content     string            `json:"content"`
	Revision    int               `json:"revision"`
	Op          *collab.Operation `json:"op,omitempty"`
	OperationID string            `json:"operationId,omitempty"`
	AgentID     string            `json:"agentId,omitempty"`
	Position    int               `json:"position,omitempty"`
	Start       int               `json:"start,omitempty"`
	End         int               `json:"end,omitempty"`
	Message     string            `json:"message,omitempty"`
	Agents      []collab.Agent    `json:"agents,omitempty"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

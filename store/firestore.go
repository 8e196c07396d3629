package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mfadel/go-collab-engine/collab"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
// Operations live in an "operations" subcollection per document, keyed by
// zero-padded log index so they iterate in application order.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) opsCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("operations")
}

func zeroPad(index int) string {
	return fmt.Sprintf("%010d", index)
}

func (s *FirestoreStore) Create(ctx context.Context, id, content string) error {
	now := time.Now()
	_, err := s.docRef(id).Create(ctx, map[string]interface{}{
		"content":   content,
		"version":   0,
		"createdAt": now,
		"updatedAt": now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q already exists", id)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocInfo(id, snap)
}

func snapshotToDocInfo(id string, snap *firestore.DocumentSnapshot) (*DocumentInfo, error) {
	data := snap.Data()
	content, _ := data["content"].(string)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return &DocumentInfo{
		ID:        id,
		Content:   content,
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *FirestoreStore) List(ctx context.Context) ([]DocumentInfo, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var result []DocumentInfo
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		info, err := snapshotToDocInfo(snap.Ref.ID, snap)
		if err != nil {
			return nil, err
		}
		result = append(result, *info)
	}
	return result, nil
}

func (s *FirestoreStore) UpdateContent(ctx context.Context, id, content string, version int) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "content", Value: content},
		{Path: "version", Value: version},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q not found", id)
	}
	return err
}

func (s *FirestoreStore) AppendOperation(ctx context.Context, id string, op collab.Operation, version int) error {
	// Store with 0-based index: version 1 → index 0, matching MemoryStore's
	// log slice semantics where GetOperations(fromVersion) returns log[fromVersion:].
	index := version - 1
	_, err := s.opsCollection(id).Doc(zeroPad(index)).Set(ctx, operationToFields(op, version))
	return err
}

func operationToFields(op collab.Operation, version int) map[string]interface{} {
	m := map[string]interface{}{
		"kind":      string(op.Kind),
		"position":  op.Position,
		"agentId":   op.AgentID,
		"timestamp": op.Timestamp,
		"id":        op.ID,
		"version":   version,
	}
	if op.Content != "" {
		m["content"] = op.Content
	}
	if op.Length > 0 {
		m["length"] = op.Length
	}
	if len(op.Attributes) > 0 {
		m["attributes"] = op.Attributes
	}
	return m
}

func (s *FirestoreStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]collab.Operation, error) {
	// Verify document exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q not found", id)
	}
	if err != nil {
		return nil, err
	}

	iter := s.opsCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var ops []collab.Operation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		op, err := snapshotToOperation(snap)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func snapshotToOperation(snap *firestore.DocumentSnapshot) (collab.Operation, error) {
	data := snap.Data()
	kind, ok := data["kind"].(string)
	if !ok {
		return collab.Operation{}, fmt.Errorf("invalid kind field in operation %s", snap.Ref.ID)
	}

	var op collab.Operation
	op.Kind = collab.Kind(kind)
	if v, ok := data["position"].(int64); ok {
		op.Position = int(v)
	}
	if v, ok := data["content"].(string); ok {
		op.Content = v
	}
	if v, ok := data["length"].(int64); ok {
		op.Length = int(v)
	}
	if v, ok := data["attributes"].(map[string]interface{}); ok {
		op.Attributes = v
	}
	if v, ok := data["agentId"].(string); ok {
		op.AgentID = v
	}
	if v, ok := data["timestamp"].(time.Time); ok {
		op.Timestamp = v
	}
	if v, ok := data["id"].(string); ok {
		op.ID = v
	}
	return op, nil
}

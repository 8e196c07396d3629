package collab

import "fmt"

// Engine reconciles operations that were generated against a stale revision
// of a document.
type Engine interface {
	// TransformIncoming transforms op, created at the given revision,
	// against every operation in history the originating agent has not yet
	// seen, returning the operation as it should apply to the current state.
	TransformIncoming(op Operation, revision int, history []Operation) (Operation, error)
}

// SequentialEngine transforms the incoming operation against each missed
// operation in log order.
type SequentialEngine struct{}

func (e *SequentialEngine) TransformIncoming(op Operation, revision int, history []Operation) (Operation, error) {
	if revision < 0 || revision > len(history) {
		return Operation{}, fmt.Errorf("invalid revision %d (history len %d)", revision, len(history))
	}
	transformed := op
	for i := revision; i < len(history); i++ {
		transformed = Transform(transformed, history[i])
	}
	return transformed, nil
}

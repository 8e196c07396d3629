package collab

// Transform rewrites a, generated concurrently with b against the same base
// state, so that it has a's intended effect when applied after b. Single
// step, no composition: the returned positions are in the space of the
// document after b is applied.
//
// Concurrent inserts at the same position are ordered by agent id: the
// lexicographically smaller agent is treated as having inserted first.
func Transform(a, b Operation) Operation {
	switch b.Kind {
	case KindInsert:
		return transformAgainstInsert(a, b)
	case KindDelete:
		return transformAgainstDelete(a, b)
	default:
		// Formats and cursor moves shift no text, so a is unaffected.
		return a
	}
}

func transformAgainstInsert(a, b Operation) Operation {
	shift := len(b.Content)
	switch a.Kind {
	case KindInsert:
		if a.Position < b.Position {
			return a
		}
		if a.Position == b.Position && a.AgentID < b.AgentID {
			return a
		}
		return a.at(a.Position + shift)
	case KindDelete, KindFormat, KindCursorMove:
		if a.Position < b.Position {
			return a
		}
		return a.at(a.Position + shift)
	default:
		return a
	}
}

func transformAgainstDelete(a, b Operation) Operation {
	start, end := b.Position, b.Position+b.Length
	switch a.Kind {
	case KindInsert:
		if a.Position <= start {
			return a
		}
		if a.Position > end {
			return a.at(a.Position - b.Length)
		}
		// Inside the deleted span: land where the deletion occurred.
		return a.at(start)
	case KindDelete:
		if a.Position+a.Length <= start {
			return a
		}
		if a.Position >= end {
			return a.at(a.Position - b.Length)
		}
		// Overlapping spans: drop the portion b already removed. A fully
		// shadowed delete shrinks to length 0 and no-ops at apply time.
		overlap := min(end, a.Position+a.Length) - max(start, a.Position)
		ap := a.at(min(a.Position, start))
		ap.Length -= overlap
		return ap
	case KindFormat, KindCursorMove:
		if a.Position <= start {
			return a
		}
		if a.Position > end {
			return a.at(a.Position - b.Length)
		}
		return a.at(start)
	default:
		return a
	}
}

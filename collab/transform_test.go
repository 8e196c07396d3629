package collab

import "testing"

// verifyConverges checks that both application orders of two concurrent
// operations reach the same content once each is transformed against the
// other.
func verifyConverges(t *testing.T, base string, a, b Operation) {
	t.Helper()

	d1 := NewDocument("d1", base)
	d1.Apply(a)
	d1.Apply(Transform(b, a))

	d2 := NewDocument("d2", base)
	d2.Apply(b)
	d2.Apply(Transform(a, b))

	c1, c2 := d1.Snapshot().Content, d2.Snapshot().Content
	if c1 != c2 {
		t.Errorf("divergence: a-then-b' = %q, b-then-a' = %q (a=%+v b=%+v)", c1, c2, a, b)
	}
}

func TestTransform_InsertInsert(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Operation
		wantPos int
	}{
		{"a before b unaffected", NewInsert(2, "X", "a1"), NewInsert(5, "Y", "a2"), 2},
		{"a after b shifts by content length", NewInsert(5, "X", "a1"), NewInsert(2, "YY", "a2"), 7},
		{"tie smaller agent unaffected", NewInsert(5, "X", "a1"), NewInsert(5, "YY", "a2"), 5},
		{"tie larger agent shifts", NewInsert(5, "YY", "a2"), NewInsert(5, "X", "a1"), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.a, tt.b)
			if got.Position != tt.wantPos {
				t.Errorf("position = %d, want %d", got.Position, tt.wantPos)
			}
			if got.Content != tt.a.Content || got.AgentID != tt.a.AgentID {
				t.Errorf("payload changed: %+v", got)
			}
			// Inputs untouched.
			if tt.a.Position == tt.wantPos && got.ID != tt.a.ID {
				t.Errorf("unchanged operation should keep its id")
			}
		})
	}
}

func TestTransform_InsertInsertConverges(t *testing.T) {
	tests := []struct {
		name string
		base string
		a, b Operation
	}{
		{"different positions", "hello", NewInsert(1, "X", "a1"), NewInsert(3, "Y", "a2")},
		{"same position", "hello", NewInsert(2, "A", "a1"), NewInsert(2, "B", "a2")},
		{"both at start", "hello", NewInsert(0, "X", "a2"), NewInsert(0, "Y", "a1")},
		{"both at end", "hello", NewInsert(5, "X", "a1"), NewInsert(5, "Y", "a2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifyConverges(t, tt.base, tt.a, tt.b)
		})
	}
}

func TestTransform_DeleteAgainstInsert(t *testing.T) {
	// Delete at 10 transformed against a 2-byte insert at 5 lands at 12.
	got := Transform(NewDelete(10, 3, "a1"), NewInsert(5, "xy", "a2"))
	if got.Position != 12 {
		t.Errorf("position = %d, want 12", got.Position)
	}
	if got.Length != 3 {
		t.Errorf("length = %d, want 3", got.Length)
	}

	// Delete before the insert point is unaffected.
	got = Transform(NewDelete(2, 3, "a1"), NewInsert(5, "xy", "a2"))
	if got.Position != 2 {
		t.Errorf("position = %d, want 2", got.Position)
	}

	verifyConverges(t, "abcdefgh", NewDelete(5, 3, "a1"), NewInsert(2, "XY", "a2"))
}

func TestTransform_InsertAgainstDelete(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Operation
		wantPos int
	}{
		{"at or before span unaffected", NewInsert(3, "X", "a1"), NewDelete(3, 4, "a2"), 3},
		{"before span unaffected", NewInsert(1, "X", "a1"), NewDelete(3, 4, "a2"), 1},
		{"past span shifts left", NewInsert(10, "X", "a1"), NewDelete(3, 4, "a2"), 6},
		{"inside span clamps to deletion point", NewInsert(5, "X", "a1"), NewDelete(3, 4, "a2"), 3},
		{"at span end clamps", NewInsert(7, "X", "a1"), NewDelete(3, 4, "a2"), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.a, tt.b)
			if got.Position != tt.wantPos {
				t.Errorf("position = %d, want %d", got.Position, tt.wantPos)
			}
		})
	}
}

func TestTransform_DeleteDelete(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Operation
		wantPos int
		wantLen int
	}{
		{"entirely before unaffected", NewDelete(0, 2, "a1"), NewDelete(5, 3, "a2"), 0, 2},
		{"entirely after shifts left", NewDelete(8, 2, "a1"), NewDelete(2, 3, "a2"), 5, 2},
		{"overlap tail shrinks", NewDelete(1, 3, "a1"), NewDelete(2, 3, "a2"), 1, 1},
		{"overlap head shrinks and clamps", NewDelete(4, 4, "a1"), NewDelete(2, 3, "a2"), 2, 3},
		{"fully shadowed becomes empty", NewDelete(3, 1, "a1"), NewDelete(2, 4, "a2"), 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.a, tt.b)
			if got.Position != tt.wantPos || got.Length != tt.wantLen {
				t.Errorf("got pos=%d len=%d, want pos=%d len=%d",
					got.Position, got.Length, tt.wantPos, tt.wantLen)
			}
		})
	}
}

func TestTransform_DeleteDeleteConverges(t *testing.T) {
	tests := []struct {
		name string
		base string
		a, b Operation
	}{
		{"disjoint", "abcdefgh", NewDelete(0, 2, "a1"), NewDelete(5, 2, "a2")},
		{"overlapping", "abcdef", NewDelete(1, 3, "a1"), NewDelete(2, 3, "a2")},
		{"identical spans", "abcdef", NewDelete(2, 2, "a1"), NewDelete(2, 2, "a2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifyConverges(t, tt.base, tt.a, tt.b)
		})
	}
}

func TestTransform_CursorAndFormatShift(t *testing.T) {
	// Cursor past an insert point shifts right.
	got := Transform(NewCursorMove(5, "a1"), NewInsert(2, "XY", "a2"))
	if got.Position != 7 {
		t.Errorf("cursor position = %d, want 7", got.Position)
	}

	// Cursor inside a deleted span clamps to the deletion point.
	got = Transform(NewCursorMove(4, "a1"), NewDelete(2, 4, "a2"))
	if got.Position != 2 {
		t.Errorf("cursor position = %d, want 2", got.Position)
	}

	// Format past a deleted span shifts left.
	got = Transform(NewFormat(10, map[string]any{"bold": true}, "a1"), NewDelete(2, 3, "a2"))
	if got.Position != 7 {
		t.Errorf("format position = %d, want 7", got.Position)
	}
	if got.Attributes["bold"] != true {
		t.Errorf("attributes lost: %v", got.Attributes)
	}
}

func TestTransform_AgainstFormatAndCursorUnchanged(t *testing.T) {
	a := NewInsert(5, "X", "a1")

	got := Transform(a, NewFormat(2, map[string]any{"bold": true}, "a2"))
	if got.Position != 5 || got.ID != a.ID {
		t.Errorf("insert changed by format: %+v", got)
	}

	got = Transform(a, NewCursorMove(2, "a2"))
	if got.Position != 5 || got.ID != a.ID {
		t.Errorf("insert changed by cursor move: %+v", got)
	}
}

func TestTransform_TieBreakIsConsistent(t *testing.T) {
	// Whichever order the two calls are made, exactly one side shifts.
	a := NewInsert(5, "AA", "a")
	b := NewInsert(5, "B", "b")

	aAfterB := Transform(a, b)
	bAfterA := Transform(b, a)

	if aAfterB.Position != 5 {
		t.Errorf("smaller agent should hold position, got %d", aAfterB.Position)
	}
	if bAfterA.Position != 7 {
		t.Errorf("larger agent should shift by len(%q), got %d", a.Content, bAfterA.Position)
	}
}

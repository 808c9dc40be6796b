package chat

import (
	"testing"
	"time"

	"github.com/fikricghuv/chat-talkvera-iframe/internal/domain"
)

func msgAt(id string, sec int) domain.ChatMessage {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.ChatMessage{
		ID:        id,
		Role:      domain.RoleUser,
		Message:   "m-" + id,
		CreatedAt: base.Add(time.Duration(sec) * time.Second),
	}
}

func ids(buf []domain.ChatMessage) []string {
	out := make([]string, len(buf))
	for i, m := range buf {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestChronologicalReversesPage(t *testing.T) {
	page := []domain.ChatMessage{msgAt("c", 3), msgAt("b", 2), msgAt("a", 1)}

	got := chronological(page)

	if !equalIDs(ids(got), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order: %v", ids(got))
	}
	// The input page must not be mutated.
	if page[0].ID != "c" {
		t.Fatalf("input page mutated: %v", ids(page))
	}
}

func TestChronologicalEmpty(t *testing.T) {
	if got := chronological(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestMergeOrderedInsertsSorted(t *testing.T) {
	buf := []domain.ChatMessage{msgAt("a", 1), msgAt("c", 3)}

	got := mergeOrdered(buf, msgAt("b", 2))

	if !equalIDs(ids(got), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order: %v", ids(got))
	}
}

func TestMergeOrderedReplacesByKey(t *testing.T) {
	buf := []domain.ChatMessage{msgAt("a", 1), msgAt("b", 2)}

	updated := msgAt("b", 2)
	updated.Message = "edited"
	fb := domain.FeedbackLike
	updated.Feedback = &fb

	got := mergeOrdered(buf, updated)

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[1].Message != "edited" {
		t.Errorf("incoming copy should win: %q", got[1].Message)
	}
	if got[1].Feedback == nil || *got[1].Feedback != domain.FeedbackLike {
		t.Errorf("feedback lost in replace")
	}
}

func TestMergeOrderedIdempotent(t *testing.T) {
	buf := []domain.ChatMessage{msgAt("a", 1), msgAt("b", 2)}

	once := mergeOrdered(buf, msgAt("b", 2), msgAt("c", 3))
	twice := mergeOrdered(once, msgAt("b", 2), msgAt("c", 3))

	if !equalIDs(ids(once), ids(twice)) {
		t.Fatalf("merge not idempotent: %v vs %v", ids(once), ids(twice))
	}
	if !equalIDs(ids(twice), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order: %v", ids(twice))
	}
}

func TestMergeOrderedTiebreaksByID(t *testing.T) {
	// Same timestamp: key order decides, so every interleaving converges.
	got := mergeOrdered(nil, msgAt("b", 5), msgAt("a", 5))
	if !equalIDs(ids(got), []string{"a", "b"}) {
		t.Fatalf("unexpected tiebreak order: %v", ids(got))
	}

	other := mergeOrdered(mergeOrdered(nil, msgAt("a", 5)), msgAt("b", 5))
	if !equalIDs(ids(got), ids(other)) {
		t.Fatalf("interleavings diverge: %v vs %v", ids(got), ids(other))
	}
}

func TestMergeOrderedDoesNotMutateInput(t *testing.T) {
	buf := []domain.ChatMessage{msgAt("a", 1)}
	_ = mergeOrdered(buf, msgAt("b", 0))
	if !equalIDs(ids(buf), []string{"a"}) {
		t.Fatalf("input buffer mutated: %v", ids(buf))
	}
}

func TestIndexOfAndContains(t *testing.T) {
	buf := []domain.ChatMessage{msgAt("a", 1), msgAt("b", 2)}

	if i := indexOf(buf, "b"); i != 1 {
		t.Errorf("indexOf(b) = %d, want 1", i)
	}
	if i := indexOf(buf, "zz"); i != -1 {
		t.Errorf("indexOf(zz) = %d, want -1", i)
	}
	if !containsID(buf, "a") {
		t.Errorf("containsID(a) = false")
	}
	if containsID(buf, "zz") {
		t.Errorf("containsID(zz) = true")
	}
}

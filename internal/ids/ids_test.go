package ids

import "testing"

func TestNew_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id after %d draws: %q", i, id)
		}
		seen[id] = true
		if !Valid(id) {
			t.Fatalf("expected uuid, got %q", id)
		}
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("l")
	if got := gen(); got != "l-1" {
		t.Fatalf("expected l-1, got %q", got)
	}
	if got := gen(); got != "l-2" {
		t.Fatalf("expected l-2, got %q", got)
	}
	if Valid("l-1") {
		t.Fatalf("expected sequence id to not parse as uuid")
	}
}

package idutil

import (
	"strings"
	"testing"
)

func TestRequestIDFormat(t *testing.T) {
	id := RequestID()
	if !strings.HasPrefix(id, "req_") {
		t.Errorf("id %q missing req_ prefix", id)
	}
	if len(id) != 16 {
		t.Errorf("id %q has length %d, want 16", id, len(id))
	}
}

func TestRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := RequestID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

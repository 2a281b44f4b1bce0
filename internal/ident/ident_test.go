package ident

import (
	"strings"
	"testing"
)

func TestUUIDGeneratorUnique(t *testing.T) {
	var g UUIDGenerator
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewID(PrefixDrug)
		if !strings.HasPrefix(id, "drug_") {
			t.Fatalf("missing prefix: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSequenceIsDeterministic(t *testing.T) {
	s := &Sequence{}
	if got := s.NewID("rx"); got != "rx_1" {
		t.Fatalf("unexpected first id %q", got)
	}
	if got := s.NewID("ship"); got != "ship_2" {
		t.Fatalf("unexpected second id %q", got)
	}
}

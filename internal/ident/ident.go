// Package ident generates client-chosen record identifiers.
package ident

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Prefixes used for each collection
const (
	PrefixDrug         = "drug"
	PrefixShipment     = "ship"
	PrefixPrescription = "rx"
	PrefixStatus       = "status"
)

// Generator produces unique ids of the form "<prefix>_<unique>".
type Generator interface {
	NewID(prefix string) string
}

// UUIDGenerator uses random (v4) UUIDs.
type UUIDGenerator struct{}

// NewID returns prefix_<uuid>.
func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Sequence is a deterministic generator for tests: prefix_1, prefix_2, ...
type Sequence struct {
	mu sync.Mutex
	n  int
}

func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s_%d", prefix, s.n)
}

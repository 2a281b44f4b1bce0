// Package filter narrows fetched record lists by free-text search, an
// inclusive date range, a lifecycle status and a verification state.
//
// The status parameter always means the record's own lifecycle: shipment
// status, prescription open/dispensed, user role. Drug rows carry no
// lifecycle column, so for drugs status is the verification state. The
// verification parameter means the verification state for every kind.
package filter

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/medchain/medchain-server/internal/models"
)

// Verification state values.
const (
	StatusVerified   = "verified"
	StatusPending    = "pending"
	StatusUnverified = "unverified"
)

// Criteria is what a dashboard table is filtered by. Zero fields match all.
type Criteria struct {
	Search       string
	From         models.Date
	To           models.Date
	Status       string
	Verification string
}

// ParseQuery reads q, from, to, status and verification from a request's
// query string.
func ParseQuery(v url.Values) (Criteria, error) {
	c := Criteria{
		Search:       strings.TrimSpace(v.Get("q")),
		Status:       strings.ToLower(strings.TrimSpace(v.Get("status"))),
		Verification: strings.ToLower(strings.TrimSpace(v.Get("verification"))),
	}
	switch c.Verification {
	case "", StatusVerified, StatusPending, StatusUnverified:
	default:
		return Criteria{}, fmt.Errorf("verification must be verified, pending or unverified")
	}
	var err error
	if s := v.Get("from"); s != "" {
		if c.From, err = models.ParseDate(s); err != nil {
			return Criteria{}, fmt.Errorf("invalid from date %q", s)
		}
	}
	if s := v.Get("to"); s != "" {
		if c.To, err = models.ParseDate(s); err != nil {
			return Criteria{}, fmt.Errorf("invalid to date %q", s)
		}
	}
	if !c.From.IsZero() && !c.To.IsZero() && c.To.Before(c.From.Time) {
		return Criteria{}, fmt.Errorf("date range ends before it starts")
	}
	return c, nil
}

// IsZero reports whether c filters nothing.
func (c Criteria) IsZero() bool {
	return c.Search == "" && c.From.IsZero() && c.To.IsZero() && c.Status == "" && c.Verification == ""
}

// Fields tells Apply how to read a record kind.
type Fields[T any] struct {
	// Text returns the values searched case-insensitively.
	Text func(T) []string
	// Date is the value the range applies to.
	Date func(T) time.Time
	// Statuses returns the lifecycle status values the record holds.
	Statuses func(T) []string
	// Verification reads the record's blockchain verification.
	Verification func(T) models.Verification
}

// Apply returns the items matching c, keeping their order.
func Apply[T any](items []T, c Criteria, f Fields[T]) []T {
	out := make([]T, 0, len(items))
	needle := strings.ToLower(c.Search)
	for _, item := range items {
		if needle != "" && f.Text != nil && !containsAny(f.Text(item), needle) {
			continue
		}
		if f.Date != nil && !inRange(f.Date(item), c.From, c.To) {
			continue
		}
		if c.Status != "" && f.Statuses != nil && !hasStatus(f.Statuses(item), c.Status) {
			continue
		}
		if c.Verification != "" && f.Verification != nil && verificationStatus(f.Verification(item)) != c.Verification {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Where returns the items satisfying pred, keeping their order.
func Where[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// Count returns how many items satisfy pred.
func Count[T any](items []T, pred func(T) bool) int {
	n := 0
	for _, item := range items {
		if pred(item) {
			n++
		}
	}
	return n
}

func containsAny(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// inRange compares calendar days; both bounds are inclusive.
func inRange(t time.Time, from, to models.Date) bool {
	if t.IsZero() {
		return from.IsZero() && to.IsZero()
	}
	day := models.NewDate(t)
	if !from.IsZero() && day.Before(from.Time) {
		return false
	}
	if !to.IsZero() && day.After(to.Time) {
		return false
	}
	return true
}

func hasStatus(statuses []string, want string) bool {
	for _, s := range statuses {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

func verificationStatus(v models.Verification) string {
	return v.State().String()
}

// Drugs filters by name, batch number and id, on manufacture date.
var Drugs = Fields[models.Drug]{
	Text: func(d models.Drug) []string { return []string{d.Name, d.BatchNumber, d.DrugID} },
	Date: func(d models.Drug) time.Time { return d.ManufactureDate.Time },
	Statuses: func(d models.Drug) []string {
		return []string{verificationStatus(d.BlockchainTxID)}
	},
	Verification: models.Drug.Verification,
}

// Shipments filters by id and parties, on ship date.
var Shipments = Fields[models.Shipment]{
	Text: func(s models.Shipment) []string {
		return append([]string{s.ShipmentID, s.Sender, s.Receiver}, s.DrugIDs...)
	},
	Date: func(s models.Shipment) time.Time { return s.ShipDate.Time },
	Statuses: func(s models.Shipment) []string {
		return []string{string(s.Status)}
	},
	Verification: models.Shipment.Verification,
}

// Prescriptions filters by id, patient and notes, on issue date. Status
// also accepts "dispensed" and "open".
var Prescriptions = Fields[models.Prescription]{
	Text: func(p models.Prescription) []string {
		return []string{p.PrescriptionID, p.PatientID, p.DoctorID, p.Notes}
	},
	Date: func(p models.Prescription) time.Time { return p.IssueDate.Time },
	Statuses: func(p models.Prescription) []string {
		state := "open"
		if p.Dispensed {
			state = "dispensed"
		}
		return []string{state}
	},
	Verification: models.Prescription.Verification,
}

// Users filters the directory by name, email and organisation.
var Users = Fields[models.User]{
	Text: func(u models.User) []string { return []string{u.Name, u.Email, u.Organization} },
	Statuses: func(u models.User) []string {
		return []string{string(u.Role)}
	},
}

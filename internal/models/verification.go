package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PendingTxID is the sentinel the backend stores until a record is verified.
const PendingTxID = "pending"

// VerificationState is the three-way status of a blockchain_tx_id column
type VerificationState int

const (
	Unverified VerificationState = iota
	Pending
	Verified
)

func (s VerificationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Verified:
		return "verified"
	default:
		return "unverified"
	}
}

// Verification is the blockchain_tx_id column as a state. The zero value
// is Unverified. On the wire it is null for unverified, "pending" for
// pending, and the transaction id otherwise.
type Verification struct {
	state VerificationState
	txID  string
}

// PendingVerification returns the state stamped on every freshly inserted row.
func PendingVerification() Verification {
	return Verification{state: Pending}
}

// VerifiedWith returns a verified state carrying txID.
func VerifiedWith(txID string) Verification {
	return ParseVerification(txID)
}

// ParseVerification maps a raw column value onto the tagged state.
func ParseVerification(raw string) Verification {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return Verification{}
	case PendingTxID:
		return Verification{state: Pending}
	default:
		return Verification{state: Verified, txID: raw}
	}
}

func (v Verification) State() VerificationState { return v.state }
func (v Verification) IsPending() bool          { return v.state == Pending }
func (v Verification) IsVerified() bool         { return v.state == Verified }

// TxID returns the transaction id, empty unless verified.
func (v Verification) TxID() string { return v.txID }

// Raw returns the column value to store, empty for unverified.
func (v Verification) Raw() string {
	switch v.state {
	case Pending:
		return PendingTxID
	case Verified:
		return v.txID
	default:
		return ""
	}
}

func (v Verification) String() string {
	if v.state == Verified {
		return "verified(" + v.txID + ")"
	}
	return v.state.String()
}

func (v Verification) MarshalJSON() ([]byte, error) {
	if v.state == Unverified {
		return []byte("null"), nil
	}
	return json.Marshal(v.Raw())
}

func (v *Verification) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Verification{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("blockchain_tx_id: %w", err)
	}
	*v = ParseVerification(raw)
	return nil
}

// Date is a calendar date serialized as YYYY-MM-DD, matching Postgres date columns.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or a full RFC3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

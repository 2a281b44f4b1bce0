// Package models defines the data structures used across the application.
// These map to the MedChain tables exposed by the Supabase PostgreSQL schema.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the business role a user signs up with
type Role string

const (
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RolePharmacist   Role = "pharmacist"
	RoleDoctor       Role = "doctor"
)

// Roles lists every role that may own an account, in sign-up order.
var Roles = []Role{RoleManufacturer, RoleDistributor, RolePharmacist, RoleDoctor}

// ParseRole validates a role string. Anything outside Roles is rejected,
// including the legacy "patient" value.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DrugStatus is a single step in a drug's handling history
type DrugStatus string

const (
	DrugManufactured DrugStatus = "manufactured"
	DrugInTransit    DrugStatus = "in_transit"
	DrugDelivered    DrugStatus = "delivered"
	DrugDispensed    DrugStatus = "dispensed"
)

var drugStatusOrder = map[DrugStatus]int{
	DrugManufactured: 0,
	DrugInTransit:    1,
	DrugDelivered:    2,
	DrugDispensed:    3,
}

// Valid reports whether s is a known drug status.
func (s DrugStatus) Valid() bool {
	_, ok := drugStatusOrder[s]
	return ok
}

// Precedes reports whether s comes strictly before next in the handling order.
func (s DrugStatus) Precedes(next DrugStatus) bool {
	a, ok1 := drugStatusOrder[s]
	b, ok2 := drugStatusOrder[next]
	return ok1 && ok2 && a < b
}

// ShipmentStatus tracks a shipment through pending -> in_transit -> delivered
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentDelivered ShipmentStatus = "delivered"
)

var shipmentStatusOrder = map[ShipmentStatus]int{
	ShipmentPending:   0,
	ShipmentInTransit: 1,
	ShipmentDelivered: 2,
}

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	_, ok := shipmentStatusOrder[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
func (s ShipmentStatus) CanAdvanceTo(next ShipmentStatus) bool {
	a, ok1 := shipmentStatusOrder[s]
	b, ok2 := shipmentStatusOrder[next]
	return ok1 && ok2 && b > a
}

// Drug is a registered drug batch
type Drug struct {
	DrugID          string       `json:"drug_id"`
	Name            string       `json:"name"`
	Manufacturer    string       `json:"manufacturer"`
	ManufactureDate Date         `json:"manufacture_date"`
	ExpiryDate      Date         `json:"expiry_date"`
	BatchNumber     string       `json:"batch_number"`
	Description     string       `json:"description,omitempty"`
	Quantity        int          `json:"quantity,omitempty"`
	BlockchainTxID  Verification `json:"blockchain_tx_id"`
	Timestamp       time.Time    `json:"timestamp"`
}

// DrugStatusUpdate is an append-only entry in a drug's status log
type DrugStatusUpdate struct {
	ID             string       `json:"id"`
	DrugID         string       `json:"drug_id"`
	Status         DrugStatus   `json:"status"`
	Location       string       `json:"location"`
	UpdatedBy      string       `json:"updated_by"`
	BlockchainTxID Verification `json:"blockchain_tx_id"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Shipment groups drug batches moving from a sender to a receiver
type Shipment struct {
	ShipmentID     string         `json:"shipment_id"`
	DrugIDs        []string       `json:"drug_ids"`
	Sender         string         `json:"sender"`
	Receiver       string         `json:"receiver"`
	Status         ShipmentStatus `json:"status"`
	ShipDate       Date           `json:"ship_date"`
	BlockchainTxID Verification   `json:"blockchain_tx_id"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ShipmentStatusUpdate is an append-only entry in a shipment's status log
type ShipmentStatusUpdate struct {
	ID             string         `json:"id"`
	ShipmentID     string         `json:"shipment_id"`
	Status         ShipmentStatus `json:"status"`
	Location       string         `json:"location"`
	UpdatedBy      string         `json:"updated_by"`
	BlockchainTxID Verification   `json:"blockchain_tx_id"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Prescription is issued by a doctor and dispensed once by a pharmacist
type Prescription struct {
	PrescriptionID string       `json:"prescription_id"`
	PatientID      string       `json:"patient_id"`
	DoctorID       string       `json:"doctor_id"`
	DrugIDs        []string     `json:"drug_ids"`
	IssueDate      Date         `json:"issue_date"`
	ExpiryDate     Date         `json:"expiry_date"`
	Notes          string       `json:"notes"`
	Dispensed      bool         `json:"dispensed"`
	DispensedBy    *string      `json:"dispensed_by"`
	DispensedAt    *time.Time   `json:"dispensed_at"`
	BlockchainTxID Verification `json:"blockchain_tx_id"`
	Timestamp      time.Time    `json:"timestamp"`
}

// User is the profile row stored alongside an auth account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	Organization string    `json:"organization,omitempty"`
	LicenseID    string    `json:"license_id,omitempty"`
	Address      string    `json:"address,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// MerkleProof contains the Merkle proof for a verified record
type MerkleProof struct {
	LeafHash string      `json:"leaf_hash"`
	Root     string      `json:"root"`
	Proof    []ProofStep `json:"proof"`
	Index    int         `json:"index"`
	Verified bool        `json:"verified"`
}

// ProofStep is a single step in a Merkle proof path
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"` // "left" | "right"
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Store      string `json:"store,omitempty"`
	LedgerRoot string `json:"ledger_root,omitempty"`
}

package models

// Record is implemented by every entity whose verification the poller can track.
type Record interface {
	RecordID() string
	Verification() Verification
}

func (d Drug) RecordID() string               { return d.DrugID }
func (d Drug) Verification() Verification     { return d.BlockchainTxID }
func (s Shipment) RecordID() string           { return s.ShipmentID }
func (s Shipment) Verification() Verification { return s.BlockchainTxID }

func (p Prescription) RecordID() string           { return p.PrescriptionID }
func (p Prescription) Verification() Verification { return p.BlockchainTxID }

// PendingIDs returns the ids of records still awaiting verification.
func PendingIDs[T Record](records []T) []string {
	ids := make([]string, 0)
	for _, r := range records {
		if r.Verification().IsPending() {
			ids = append(ids, r.RecordID())
		}
	}
	return ids
}

// ReplaceByID swaps the element with the same id as updated, in place.
// It reports whether a match was found.
func ReplaceByID[T Record](records []T, updated T) bool {
	for i := range records {
		if records[i].RecordID() == updated.RecordID() {
			records[i] = updated
			return true
		}
	}
	return false
}

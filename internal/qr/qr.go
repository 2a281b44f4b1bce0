// Package qr builds the verification QR codes printed on drug packs,
// shipment manifests and prescriptions.
package qr

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medchain/medchain-server/internal/models"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels
const DefaultSize = 256

// ErrEncode is returned for any failure turning a payload into an image.
var ErrEncode = errors.New("failed to generate QR code")

// Payload is the JSON object carried by the code. Only fields a scanner
// needs to look the record up and check its verification are included.
type Payload map[string]any

// PayloadFor selects the scannable fields of a drug, shipment or prescription.
func PayloadFor(record models.Record) (Payload, error) {
	switch r := record.(type) {
	case models.Drug:
		return Payload{
			"type":             "drug",
			"drug_id":          r.DrugID,
			"name":             r.Name,
			"batch_number":     r.BatchNumber,
			"manufacturer":     r.Manufacturer,
			"expiry_date":      r.ExpiryDate.String(),
			"blockchain_tx_id": r.BlockchainTxID,
		}, nil
	case models.Shipment:
		return Payload{
			"type":             "shipment",
			"shipment_id":      r.ShipmentID,
			"sender":           r.Sender,
			"receiver":         r.Receiver,
			"drug_ids":         r.DrugIDs,
			"status":           r.Status,
			"blockchain_tx_id": r.BlockchainTxID,
		}, nil
	case models.Prescription:
		return Payload{
			"type":             "prescription",
			"prescription_id":  r.PrescriptionID,
			"patient_id":       r.PatientID,
			"doctor_id":        r.DoctorID,
			"drug_ids":         r.DrugIDs,
			"expiry_date":      r.ExpiryDate.String(),
			"blockchain_tx_id": r.BlockchainTxID,
		}, nil
	default:
		return nil, fmt.Errorf("no QR payload for %T", record)
	}
}

// Encode renders the record's payload as a PNG. size <= 0 uses DefaultSize.
func Encode(record models.Record, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	payload, err := PayloadFor(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return png, nil
}

package qr

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/medchain/medchain-server/internal/models"
)

type otherRecord struct{}

func (otherRecord) RecordID() string                  { return "x" }
func (otherRecord) Verification() models.Verification { return models.Verification{} }

func TestPayloadForDrug(t *testing.T) {
	expiry, _ := models.ParseDate("2027-01-31")
	p, err := PayloadFor(models.Drug{
		DrugID:         "drug_1",
		Name:           "Amoxicillin",
		BatchNumber:    "AMX-01",
		Manufacturer:   "m1",
		ExpiryDate:     expiry,
		Description:    "not part of the code",
		BlockchainTxID: models.VerifiedWith("0xabc"),
	})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	data, _ := json.Marshal(p)
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["drug_id"] != "drug_1" || decoded["expiry_date"] != "2027-01-31" || decoded["blockchain_tx_id"] != "0xabc" {
		t.Fatalf("unexpected payload %v", decoded)
	}
	if _, ok := decoded["description"]; ok {
		t.Fatalf("payload should only carry the scannable subset")
	}
}

func TestPayloadPendingAndUnverified(t *testing.T) {
	p, _ := PayloadFor(models.Prescription{PrescriptionID: "rx_1", BlockchainTxID: models.PendingVerification()})
	data, _ := json.Marshal(p)
	if !bytes.Contains(data, []byte(`"blockchain_tx_id":"pending"`)) {
		t.Fatalf("pending not encoded: %s", data)
	}
	p, _ = PayloadFor(models.Shipment{ShipmentID: "ship_1"})
	data, _ = json.Marshal(p)
	if !bytes.Contains(data, []byte(`"blockchain_tx_id":null`)) {
		t.Fatalf("unverified not encoded as null: %s", data)
	}
}

func TestEncodeProducesPNG(t *testing.T) {
	png, err := Encode(models.Shipment{ShipmentID: "ship_1", DrugIDs: []string{"drug_1"}}, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a PNG")
	}
}

func TestEncodeUnknownRecord(t *testing.T) {
	if _, err := Encode(otherRecord{}, 128); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}

package filter

import (
	"net/url"
	"testing"

	"github.com/medchain/medchain-server/internal/models"
)

func date(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleDrugs() []models.Drug {
	return []models.Drug{
		{DrugID: "drug_1", Name: "Amoxicillin", BatchNumber: "AMX-01", ManufactureDate: date("2025-01-10"), BlockchainTxID: models.VerifiedWith("0x1")},
		{DrugID: "drug_2", Name: "Ibuprofen", BatchNumber: "IBU-07", ManufactureDate: date("2025-02-15"), BlockchainTxID: models.PendingVerification()},
		{DrugID: "drug_3", Name: "Paracetamol", BatchNumber: "PCM-amx", ManufactureDate: date("2025-03-01")},
	}
}

func ids(drugs []models.Drug) []string {
	out := make([]string, 0, len(drugs))
	for _, d := range drugs {
		out = append(out, d.DrugID)
	}
	return out
}

func TestApplySearchIsCaseInsensitive(t *testing.T) {
	got := ids(Apply(sampleDrugs(), Criteria{Search: "AMX"}, Drugs))
	if len(got) != 2 || got[0] != "drug_1" || got[1] != "drug_3" {
		t.Fatalf("unexpected matches %v", got)
	}
}

func TestApplyDateRangeInclusive(t *testing.T) {
	c := Criteria{From: date("2025-01-10"), To: date("2025-02-15")}
	got := ids(Apply(sampleDrugs(), c, Drugs))
	if len(got) != 2 || got[0] != "drug_1" || got[1] != "drug_2" {
		t.Fatalf("bounds should be inclusive, got %v", got)
	}
}

func TestApplyStatus(t *testing.T) {
	for status, want := range map[string]string{
		StatusVerified:   "drug_1",
		StatusPending:    "drug_2",
		StatusUnverified: "drug_3",
	} {
		got := ids(Apply(sampleDrugs(), Criteria{Status: status}, Drugs))
		if len(got) != 1 || got[0] != want {
			t.Errorf("status %s: got %v", status, got)
		}
	}

	shipments := []models.Shipment{
		{ShipmentID: "s1", Status: models.ShipmentInTransit},
		{ShipmentID: "s2", Status: models.ShipmentDelivered},
	}
	if got := Apply(shipments, Criteria{Status: "in_transit"}, Shipments); len(got) != 1 || got[0].ShipmentID != "s1" {
		t.Fatalf("unexpected shipments %+v", got)
	}
}

func TestShipmentStatusIsLifecycleOnly(t *testing.T) {
	shipments := []models.Shipment{
		{ShipmentID: "s1", Status: models.ShipmentPending, BlockchainTxID: models.VerifiedWith("0x1")},
		{ShipmentID: "s2", Status: models.ShipmentDelivered, BlockchainTxID: models.PendingVerification()},
	}
	got := Apply(shipments, Criteria{Status: StatusPending}, Shipments)
	if len(got) != 1 || got[0].ShipmentID != "s1" {
		t.Fatalf("status=pending should match the shipment status only, got %+v", got)
	}
	got = Apply(shipments, Criteria{Verification: StatusPending}, Shipments)
	if len(got) != 1 || got[0].ShipmentID != "s2" {
		t.Fatalf("verification=pending should match the verification state only, got %+v", got)
	}
	if got := Apply(shipments, Criteria{Status: StatusPending, Verification: StatusPending}, Shipments); len(got) != 0 {
		t.Fatalf("both criteria must hold, got %+v", got)
	}

	rxs := []models.Prescription{
		{PrescriptionID: "rx1", BlockchainTxID: models.PendingVerification()},
		{PrescriptionID: "rx2", Dispensed: true, BlockchainTxID: models.VerifiedWith("0x2")},
	}
	if got := Apply(rxs, Criteria{Verification: StatusVerified}, Prescriptions); len(got) != 1 || got[0].PrescriptionID != "rx2" {
		t.Fatalf("unexpected prescriptions %+v", got)
	}
	if got := Apply(rxs, Criteria{Status: StatusPending}, Prescriptions); len(got) != 0 {
		t.Fatalf("prescription status has no pending value, got %+v", got)
	}
}

func TestZeroCriteriaKeepsEverything(t *testing.T) {
	if got := Apply(sampleDrugs(), Criteria{}, Drugs); len(got) != 3 {
		t.Fatalf("expected all drugs, got %d", len(got))
	}
	if got := Apply([]models.Drug(nil), Criteria{}, Drugs); got == nil {
		t.Fatalf("result must be non-nil")
	}
}

func TestParseQuery(t *testing.T) {
	c, err := ParseQuery(url.Values{"q": {" ibu "}, "from": {"2025-01-01"}, "status": {"Pending"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Search != "ibu" || c.Status != "pending" || c.From.String() != "2025-01-01" || !c.To.IsZero() {
		t.Fatalf("unexpected criteria %+v", c)
	}
	if c, err := ParseQuery(url.Values{"verification": {" Verified "}}); err != nil || c.Verification != StatusVerified {
		t.Fatalf("verification not parsed: %+v %v", c, err)
	}
	if _, err := ParseQuery(url.Values{"verification": {"maybe"}}); err == nil {
		t.Fatalf("expected invalid verification error")
	}
	if _, err := ParseQuery(url.Values{"from": {"yesterday"}}); err == nil {
		t.Fatalf("expected invalid date error")
	}
	if _, err := ParseQuery(url.Values{"from": {"2025-02-01"}, "to": {"2025-01-01"}}); err == nil {
		t.Fatalf("expected inverted range error")
	}
}

func TestCount(t *testing.T) {
	n := Count(sampleDrugs(), func(d models.Drug) bool { return d.BlockchainTxID.IsVerified() })
	if n != 1 {
		t.Fatalf("expected 1 verified, got %d", n)
	}
}

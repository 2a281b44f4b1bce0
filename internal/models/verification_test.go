package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestVerificationWireForm(t *testing.T) {
	cases := []struct {
		raw   string
		state VerificationState
		tx    string
	}{
		{`null`, Unverified, ""},
		{`""`, Unverified, ""},
		{`"pending"`, Pending, ""},
		{`"0xabc"`, Verified, "0xabc"},
	}
	for _, tc := range cases {
		var v Verification
		if err := json.Unmarshal([]byte(tc.raw), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if v.State() != tc.state || v.TxID() != tc.tx {
			t.Fatalf("%s: got %v", tc.raw, v)
		}
	}

	out, _ := json.Marshal(Drug{DrugID: "d1", BlockchainTxID: PendingVerification()})
	var back map[string]any
	_ = json.Unmarshal(out, &back)
	if back["blockchain_tx_id"] != "pending" {
		t.Fatalf("pending should encode as sentinel, got %v", back["blockchain_tx_id"])
	}
	out, _ = json.Marshal(Drug{DrugID: "d1"})
	back = nil
	_ = json.Unmarshal(out, &back)
	if back["blockchain_tx_id"] != nil {
		t.Fatalf("unverified should encode as null, got %v", back["blockchain_tx_id"])
	}
}

func TestDateRoundTrip(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-01"`), &d); err != nil {
		t.Fatalf("unmarshal date: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.March || d.Day() != 1 {
		t.Fatalf("unexpected date %v", d)
	}
	if err := json.Unmarshal([]byte(`"2025-03-01T10:20:00+00:00"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp as date: %v", err)
	}
	if d.String() != "2025-03-01" {
		t.Fatalf("unexpected date string %q", d.String())
	}
}

func TestStatusOrdering(t *testing.T) {
	if !ShipmentPending.CanAdvanceTo(ShipmentInTransit) || !ShipmentInTransit.CanAdvanceTo(ShipmentDelivered) {
		t.Fatalf("forward transitions must be allowed")
	}
	if ShipmentDelivered.CanAdvanceTo(ShipmentPending) || ShipmentInTransit.CanAdvanceTo(ShipmentInTransit) {
		t.Fatalf("reverse or repeated transitions must be refused")
	}
	if !DrugManufactured.Precedes(DrugDispensed) || DrugDelivered.Precedes(DrugInTransit) {
		t.Fatalf("drug status order broken")
	}
}

func TestParseRoleRejectsPatient(t *testing.T) {
	if _, err := ParseRole("patient"); err == nil {
		t.Fatalf("patient is not an account role")
	}
	if r, err := ParseRole(" Doctor "); err != nil || r != RoleDoctor {
		t.Fatalf("expected doctor, got %q %v", r, err)
	}
}

func TestPendingIDsAndReplace(t *testing.T) {
	list := []Drug{
		{DrugID: "a", BlockchainTxID: PendingVerification()},
		{DrugID: "b", BlockchainTxID: VerifiedWith("0x1")},
		{DrugID: "c"},
	}
	ids := PendingIDs(list)
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("unexpected pending ids %v", ids)
	}
	if !ReplaceByID(list, Drug{DrugID: "a", BlockchainTxID: VerifiedWith("0x2")}) {
		t.Fatalf("expected replacement")
	}
	if !list[0].BlockchainTxID.IsVerified() {
		t.Fatalf("list not patched in place")
	}
}

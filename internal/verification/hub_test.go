package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/medchain/medchain-server/internal/models"
)

type drugTable struct {
	mu    sync.Mutex
	drugs map[string]models.Drug
}

func (d *drugTable) put(drug models.Drug) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drugs[drug.DrugID] = drug
}

func (d *drugTable) fetch(_ context.Context, id string) (models.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drugs[id], nil
}

func TestHubWatchPatchesListAndNotifies(t *testing.T) {
	table := &drugTable{drugs: map[string]models.Drug{}}
	pending := models.Drug{DrugID: "d1", Name: "Amoxicillin", BlockchainTxID: models.PendingVerification()}
	verified := models.Drug{DrugID: "d2", Name: "Ibuprofen", BlockchainTxID: models.VerifiedWith("0x2")}
	table.put(pending)
	table.put(verified)

	clock := newFakeClock()
	hub := NewHub(map[Kind]RecordFetcher{KindDrugs: table.fetch}, HubOptions{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loaded := []models.Record{pending, verified}
	w, err := hub.Open(ctx, "m1", KindDrugs, loaded)
	if err != nil {
		t.Fatalf("open watch: %v", err)
	}
	if ids := w.Pending(); len(ids) != 1 || ids[0] != "d1" {
		t.Fatalf("only pending records should be tracked, got %v", ids)
	}

	pending.BlockchainTxID = models.VerifiedWith("0x1")
	table.put(pending)
	clock.fire(t)

	select {
	case ev := <-w.Events:
		if ev.ID != "d1" || ev.Verification.TxID() != "0x1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no verification event")
	}
	records := w.Records()
	if !records[0].Verification().IsVerified() || records[0].RecordID() != "d1" {
		t.Fatalf("list not patched in place: %+v", records)
	}
	if !loaded[0].Verification().IsPending() {
		t.Fatalf("caller's slice was modified: %+v", loaded[0])
	}

	// A drug created after the watch opened joins the pending set.
	table.put(models.Drug{DrugID: "d3", BlockchainTxID: models.PendingVerification()})
	hub.Track("m1", KindDrugs, "d3")
	hub.Track("someone-else", KindDrugs, "d4")
	if ids := w.Pending(); len(ids) != 1 || ids[0] != "d3" {
		t.Fatalf("expected d3 tracked, got %v", ids)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("watch not closed after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParseKind(t *testing.T) {
	if _, err := ParseKind("users"); err == nil {
		t.Fatalf("users are not verifiable")
	}
	if k, err := ParseKind("prescriptions"); err != nil || k != KindPrescriptions {
		t.Fatalf("unexpected kind %q %v", k, err)
	}
}

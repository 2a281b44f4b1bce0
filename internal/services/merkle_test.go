package services

import (
	"context"
	"strings"
	"testing"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/store"
	"go.uber.org/zap"
)

func TestMerkleProofsVerify(t *testing.T) {
	m := NewMerkleService(zap.NewNop().Sugar())
	leaves := []string{"a", "b", "c", "d", "e"}
	root := m.Append(leaves)
	if root == "" || m.GetLeafCount() != 5 {
		t.Fatalf("unexpected tree: root %q leaves %d", root, m.GetLeafCount())
	}
	for i := range leaves {
		proof, err := m.GetProof(i)
		if err != nil {
			t.Fatalf("proof %d: %v", i, err)
		}
		if !proof.Verified {
			t.Fatalf("proof for leaf %d does not verify", i)
		}
	}
	if _, err := m.GetProof(5); err == nil {
		t.Fatalf("expected out of range error")
	}

	proof, _ := m.GetProof(2)
	proof.Proof[0].Hash = "tampered"
	if VerifyProof(proof.LeafHash, proof.Proof, proof.Root) {
		t.Fatalf("tampered proof verified")
	}
}

func TestMerkleServicePrunesOldestLeaves(t *testing.T) {
	m := NewMerkleService(zap.NewNop().Sugar()).WithMaxLeaves(4)
	m.Append([]string{"a", "b", "c"})
	m.Append([]string{"d", "e", "f"})

	if m.GetLeafCount() != 6 {
		t.Fatalf("leaf count should include pruned leaves, got %d", m.GetLeafCount())
	}
	for _, i := range []int{0, 1, 6} {
		if _, err := m.GetProof(i); err == nil {
			t.Fatalf("index %d should be out of range", i)
		}
	}
	for i := 2; i < 6; i++ {
		proof, err := m.GetProof(i)
		if err != nil {
			t.Fatalf("proof %d: %v", i, err)
		}
		if !proof.Verified || proof.Index != i {
			t.Fatalf("proof %d: %+v", i, proof)
		}
	}
	proof, _ := m.GetProof(2)
	if proof.LeafHash != "c" {
		t.Fatalf("index 2 should still address leaf c, got %q", proof.LeafHash)
	}
}

func TestLedgerWorkerStampsPendingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.drugs.Create(ctx, manufacturer, models.Drug{Name: "Amoxicillin", BatchNumber: "AMX"}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	merkle := NewMerkleService(zap.NewNop().Sugar())
	worker := NewLedgerWorker(merkle, f.store, zap.NewNop().Sugar())
	n, err := worker.Anchor(ctx)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	// the drug and its "manufactured" status entry
	if n != 2 {
		t.Fatalf("expected 2 rows stamped, got %d", n)
	}

	got, err := f.drugs.FetchByID(ctx, d.DrugID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !got.BlockchainTxID.IsVerified() || !strings.HasPrefix(got.BlockchainTxID.TxID(), "0x") {
		t.Fatalf("drug not verified: %v", got.BlockchainTxID)
	}

	if n, _ := worker.Anchor(ctx); n != 0 {
		t.Fatalf("second round should find nothing pending, stamped %d", n)
	}
	if merkle.GetLeafCount() != 2 {
		t.Fatalf("ledger should hold 2 leaves, has %d", merkle.GetLeafCount())
	}

	pending, _ := store.SelectAll[models.DrugStatusUpdate](ctx, f.store, store.TableDrugStatusUpdates,
		store.Where(store.Eq(store.ColumnBlockchainTxID, models.PendingTxID)))
	if len(pending) != 0 {
		t.Fatalf("status entries still pending: %+v", pending)
	}
}

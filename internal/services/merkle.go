// Package services - MerkleService and LedgerWorker stand in for the
// blockchain when the server owns its database: pending records are hashed
// into a Merkle tree and stamped with a transaction id derived from the root.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/store"
	"go.uber.org/zap"
)

// DefaultMaxLeaves bounds the in-memory tree.
const DefaultMaxLeaves = 100_000

// MerkleService manages the Merkle tree over the most recently anchored
// records. Leaf indexes are absolute; once more than maxLeaves have been
// appended the oldest are pruned and no longer provable.
type MerkleService struct {
	mu            sync.RWMutex
	leaves        []string
	pruned        int
	maxLeaves     int
	layers        [][]string
	root          string
	lastBuildTime time.Time
	logger        *zap.SugaredLogger
}

// NewMerkleService creates a new Merkle service
func NewMerkleService(logger *zap.SugaredLogger) *MerkleService {
	return &MerkleService{
		leaves:    make([]string, 0),
		layers:    make([][]string, 0),
		maxLeaves: DefaultMaxLeaves,
		logger:    logger,
	}
}

// WithMaxLeaves changes how many leaves are retained.
func (m *MerkleService) WithMaxLeaves(n int) *MerkleService {
	m.maxLeaves = n
	return m
}

// Append adds leaf hashes to the ledger, rebuilds the tree and returns the new root.
func (m *MerkleService) Append(hashes []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaves = append(m.leaves, hashes...)
	if m.maxLeaves > 0 && len(m.leaves) > m.maxLeaves {
		drop := len(m.leaves) - m.maxLeaves
		m.leaves = append(make([]string, 0, m.maxLeaves), m.leaves[drop:]...)
		m.pruned += drop
	}
	m.buildTree()
	m.lastBuildTime = time.Now()

	m.logger.Infow("Merkle tree rebuilt",
		"leaves", len(m.leaves),
		"pruned", m.pruned,
		"root", m.root,
	)
	return m.root
}

// GetRoot returns the current Merkle root
func (m *MerkleService) GetRoot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// GetLeafCount returns the number of leaves ever appended
func (m *MerkleService) GetLeafCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pruned + len(m.leaves)
}

// GetLastBuildTime returns when the tree was last rebuilt
func (m *MerkleService) GetLastBuildTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBuildTime
}

// GetProof generates a Merkle proof for the given leaf index
func (m *MerkleService) GetProof(index int) (*models.MerkleProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.pruned + len(m.leaves)
	if index < m.pruned || index >= total {
		return nil, fmt.Errorf("index %d out of range (%d-%d)", index, m.pruned, total-1)
	}

	proof := &models.MerkleProof{
		LeafHash: m.leaves[index-m.pruned],
		Root:     m.root,
		Index:    index,
		Proof:    make([]models.ProofStep, 0),
	}

	currentIndex := index - m.pruned
	for i := 0; i < len(m.layers)-1; i++ {
		layer := m.layers[i]
		isRight := currentIndex%2 == 1
		siblingIndex := currentIndex + 1
		if isRight {
			siblingIndex = currentIndex - 1
		}

		// an odd node at the end of a layer is paired with itself
		sibling := layer[currentIndex]
		if siblingIndex < len(layer) {
			sibling = layer[siblingIndex]
		}
		position := "right"
		if isRight {
			position = "left"
		}
		proof.Proof = append(proof.Proof, models.ProofStep{Hash: sibling, Position: position})

		currentIndex /= 2
	}

	proof.Verified = VerifyProof(proof.LeafHash, proof.Proof, proof.Root)
	return proof, nil
}

// VerifyProof folds the proof path over leaf and compares the result with root.
func VerifyProof(leaf string, steps []models.ProofStep, root string) bool {
	current := leaf
	for _, step := range steps {
		if step.Position == "left" {
			current = hashPair(step.Hash, current)
		} else {
			current = hashPair(current, step.Hash)
		}
	}
	return current != "" && current == root
}

// buildTree constructs the Merkle tree from leaves (internal, must hold write lock)
func (m *MerkleService) buildTree() {
	if len(m.leaves) == 0 {
		m.root = ""
		m.layers = nil
		return
	}

	currentLayer := make([]string, len(m.leaves))
	copy(currentLayer, m.leaves)
	m.layers = [][]string{currentLayer}

	for len(currentLayer) > 1 {
		nextLayer := make([]string, 0, (len(currentLayer)+1)/2)
		for i := 0; i < len(currentLayer); i += 2 {
			left := currentLayer[i]
			right := left
			if i+1 < len(currentLayer) {
				right = currentLayer[i+1]
			}
			nextLayer = append(nextLayer, hashPair(left, right))
		}
		m.layers = append(m.layers, nextLayer)
		currentLayer = nextLayer
	}

	m.root = currentLayer[0]
}

// hashPair combines and hashes two nodes
func hashPair(left, right string) string {
	h := sha256.New()
	h.Write([]byte(left + right))
	return hex.EncodeToString(h.Sum(nil))
}

// LedgerTables are the collections whose rows carry a blockchain_tx_id.
var LedgerTables = []string{
	store.TableDrugs,
	store.TableDrugStatusUpdates,
	store.TableShipments,
	store.TableShipmentStatusUpdates,
	store.TablePrescriptions,
}

// LedgerWorker periodically anchors pending records into the Merkle tree
// and writes their transaction ids back.
type LedgerWorker struct {
	merkleSvc *MerkleService
	store     store.RecordStore
	logger    *zap.SugaredLogger
}

// NewLedgerWorker creates a new background ledger worker
func NewLedgerWorker(ms *MerkleService, rs store.RecordStore, logger *zap.SugaredLogger) *LedgerWorker {
	return &LedgerWorker{merkleSvc: ms, store: rs, logger: logger}
}

// Start begins the periodic anchoring loop
func (w *LedgerWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Ledger worker stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *LedgerWorker) run(ctx context.Context) {
	if _, err := w.Anchor(ctx); err != nil && ctx.Err() == nil {
		w.logger.Errorw("Ledger round failed", "error", err)
	}
}

type pendingRow struct {
	table string
	id    string
	leaf  string
}

// Anchor runs one round: every pending row is hashed into the tree and
// assigned "0x" + sha256(root || leaf). It returns how many rows were stamped.
func (w *LedgerWorker) Anchor(ctx context.Context) (int, error) {
	pending := make([]pendingRow, 0)
	for _, table := range LedgerTables {
		var rows []map[string]any
		if err := w.store.Select(ctx, table,
			store.Where(store.Eq(store.ColumnBlockchainTxID, models.PendingTxID)), &rows); err != nil {
			return 0, fmt.Errorf("select pending %s: %w", table, err)
		}
		pk := store.PrimaryKeys[table]
		for _, row := range rows {
			id, _ := row[pk].(string)
			if id == "" {
				continue
			}
			leaf, err := recordHash(table, row)
			if err != nil {
				return 0, err
			}
			pending = append(pending, pendingRow{table: table, id: id, leaf: leaf})
		}
	}
	if len(pending) == 0 {
		w.logger.Debug("Ledger round: nothing pending")
		return 0, nil
	}

	leaves := make([]string, len(pending))
	for i, p := range pending {
		leaves[i] = p.leaf
	}
	root := w.merkleSvc.Append(leaves)

	stamped := 0
	for _, p := range pending {
		txID := "0x" + hashPair(root, p.leaf)
		err := w.store.Update(ctx, p.table,
			[]store.Filter{store.Eq(store.PrimaryKeys[p.table], p.id)},
			map[string]any{store.ColumnBlockchainTxID: txID})
		if err != nil {
			w.logger.Warnw("Failed to stamp transaction id", "table", p.table, "id", p.id, "error", err)
			continue
		}
		stamped++
	}

	w.logger.Infow("Ledger round complete",
		"anchored", stamped,
		"root", root,
		"leaves", w.merkleSvc.GetLeafCount(),
	)
	return stamped, nil
}

// recordHash hashes a row's canonical JSON without its verification column.
func recordHash(table string, row map[string]any) (string, error) {
	doc := make(map[string]any, len(row))
	for k, v := range row {
		if k != store.ColumnBlockchainTxID {
			doc[k] = v
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("hash %s row: %w", table, err)
	}
	sum := sha256.Sum256(append([]byte(table+":"), data...))
	return hex.EncodeToString(sum[:]), nil
}

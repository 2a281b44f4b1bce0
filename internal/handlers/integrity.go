package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"go.uber.org/zap"
)

// IntegrityHandler exposes the ledger simulator's Merkle tree
type IntegrityHandler struct {
	svc    *services.MerkleService
	logger *zap.SugaredLogger
}

// NewIntegrityHandler creates a new integrity handler
func NewIntegrityHandler(svc *services.MerkleService, logger *zap.SugaredLogger) *IntegrityHandler {
	return &IntegrityHandler{svc: svc, logger: logger}
}

// GetRoot handles GET /api/v1/integrity/root
func (h *IntegrityHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"root":       h.svc.GetRoot(),
		"leaf_count": h.svc.GetLeafCount(),
		"timestamp":  h.svc.GetLastBuildTime(),
	})
}

// GetProof handles GET /api/v1/integrity/proof/{index}
func (h *IntegrityHandler) GetProof(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid index")
		return
	}

	proof, err := h.svc.GetProof(index)
	if err != nil {
		respondError(w, http.StatusNotFound, "Proof not available for index")
		return
	}

	respondJSON(w, http.StatusOK, proof)
}

type verifyRequest struct {
	LeafHash string             `json:"leaf_hash"`
	Root     string             `json:"root"`
	Proof    []models.ProofStep `json:"proof"`
}

// Verify handles POST /api/v1/integrity/verify. The root defaults to the
// current one.
func (h *IntegrityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LeafHash == "" {
		respondError(w, http.StatusBadRequest, "leaf_hash is required")
		return
	}
	if req.Root == "" {
		req.Root = h.svc.GetRoot()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"root":     req.Root,
		"verified": services.VerifyProof(req.LeafHash, req.Proof, req.Root),
	})
}

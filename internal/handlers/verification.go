package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/verification"
	"go.uber.org/zap"
)

const defaultHeartbeat = 30 * time.Second

// VerificationHandler streams blockchain confirmations for the records a
// dashboard is showing.
type VerificationHandler struct {
	hub           *verification.Hub
	drugs         *services.DrugService
	shipments     *services.ShipmentService
	prescriptions *services.PrescriptionService
	heartbeat     time.Duration
	logger        *zap.SugaredLogger
}

// NewVerificationHandler creates a new verification stream handler
func NewVerificationHandler(hub *verification.Hub, drugs *services.DrugService, shipments *services.ShipmentService,
	prescriptions *services.PrescriptionService, logger *zap.SugaredLogger) *VerificationHandler {
	return &VerificationHandler{
		hub:           hub,
		drugs:         drugs,
		shipments:     shipments,
		prescriptions: prescriptions,
		heartbeat:     defaultHeartbeat,
		logger:        logger,
	}
}

// WithHeartbeat overrides the keepalive interval.
func (h *VerificationHandler) WithHeartbeat(d time.Duration) *VerificationHandler {
	h.heartbeat = d
	return h
}

// Stream handles GET /api/v1/verification/stream?kind=drugs|shipments|prescriptions
// The first event lists the pending ids; a "verified" event follows for
// each record as it resolves. Disconnecting closes the watch.
func (h *VerificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	kind, err := verification.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "kind must be drugs, shipments or prescriptions")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	sess := currentSession(r)
	if !canWatch(sess.Role, kind) {
		respondError(w, http.StatusForbidden, "Your role does not have access to this page")
		return
	}
	ctx := r.Context()
	watch, err := h.hub.Open(ctx, sess.UserID, kind, h.records(ctx, sess, kind))
	if err != nil {
		h.logger.Errorw("Failed to open verification watch", "user", sess.UserID, "kind", kind, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start verification stream")
		return
	}
	defer h.hub.Close(watch.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.writeEvent(w, "connected", map[string]interface{}{
		"watch":   watch.ID,
		"kind":    kind,
		"pending": watch.Pending(),
	})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watch.Events:
			h.writeEvent(w, "verified", ev)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *VerificationHandler) writeEvent(w http.ResponseWriter, name string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Warnw("Failed to encode stream event", "event", name, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}

// canWatch mirrors the role gates on the list endpoints.
func canWatch(role models.Role, kind verification.Kind) bool {
	if kind == verification.KindPrescriptions {
		return role == models.RoleDoctor || role == models.RolePharmacist
	}
	return true
}

// records loads the same list the caller's list endpoint returns for kind.
func (h *VerificationHandler) records(ctx context.Context, sess session.Session, kind verification.Kind) []models.Record {
	switch kind {
	case verification.KindDrugs:
		if sess.Role == models.RoleManufacturer {
			return asRecords(h.drugs.FetchByManufacturer(ctx, sess.UserID))
		}
		return asRecords(h.drugs.FetchAll(ctx))
	case verification.KindShipments:
		return asRecords(h.shipments.FetchForUser(ctx, sess.UserID))
	case verification.KindPrescriptions:
		switch sess.Role {
		case models.RoleDoctor:
			return asRecords(h.prescriptions.FetchByDoctor(ctx, sess.UserID))
		case models.RolePharmacist:
			return asRecords(h.prescriptions.FetchAll(ctx))
		}
	}
	return nil
}

func asRecords[T models.Record](items []T) []models.Record {
	out := make([]models.Record, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

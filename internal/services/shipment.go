package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
)

// ShipmentService handles shipments and their status log
type ShipmentService struct {
	Deps
	drugs *DrugService
}

// NewShipmentService creates a new shipment service
func NewShipmentService(deps Deps, drugs *DrugService) *ShipmentService {
	return &ShipmentService{Deps: deps, drugs: drugs}
}

// FetchBySender returns shipments sent by sender, newest first.
func (s *ShipmentService) FetchBySender(ctx context.Context, sender string) []models.Shipment {
	return s.fetch(ctx, "sender", sender)
}

// FetchByReceiver returns shipments addressed to receiver, newest first.
func (s *ShipmentService) FetchByReceiver(ctx context.Context, receiver string) []models.Shipment {
	return s.fetch(ctx, "receiver", receiver)
}

// FetchForUser merges sent and received shipments, newest first.
func (s *ShipmentService) FetchForUser(ctx context.Context, userID string) []models.Shipment {
	seen := make(map[string]bool)
	out := make([]models.Shipment, 0)
	for _, list := range [][]models.Shipment{s.FetchBySender(ctx, userID), s.FetchByReceiver(ctx, userID)} {
		for _, sh := range list {
			if seen[sh.ShipmentID] {
				continue
			}
			seen[sh.ShipmentID] = true
			out = append(out, sh)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// FetchByID looks up a single shipment
func (s *ShipmentService) FetchByID(ctx context.Context, shipmentID string) (*models.Shipment, error) {
	return store.SelectOne[models.Shipment](ctx, s.Store, store.TableShipments, store.Eq("shipment_id", shipmentID))
}

// Create records a new pending shipment from the signed-in user.
func (s *ShipmentService) Create(ctx context.Context, sess session.Session, shipment models.Shipment, location string) (*models.Shipment, error) {
	if sess.Role != models.RoleManufacturer && sess.Role != models.RoleDistributor {
		return nil, fmt.Errorf("create shipment as %s: %w", sess.Role, ErrForbidden)
	}
	if shipment.Sender != "" && !sess.Is(shipment.Sender) {
		return nil, fmt.Errorf("create shipment for %s: %w", shipment.Sender, ErrForbidden)
	}
	if len(shipment.DrugIDs) == 0 || strings.TrimSpace(shipment.Receiver) == "" {
		return nil, fmt.Errorf("shipment needs drugs and a receiver: %w", ErrInvalidInput)
	}
	if shipment.Receiver == sess.UserID {
		return nil, fmt.Errorf("shipment receiver must differ from sender: %w", ErrInvalidInput)
	}

	shipment.ShipmentID = s.newID(ident.PrefixShipment)
	shipment.Sender = sess.UserID
	shipment.Status = models.ShipmentPending
	shipment.BlockchainTxID = models.PendingVerification()
	shipment.Timestamp = s.now()
	if shipment.ShipDate.IsZero() {
		shipment.ShipDate = models.NewDate(shipment.Timestamp)
	}

	created, err := store.InsertRow(ctx, s.Store, store.TableShipments, shipment)
	if err != nil {
		s.Logger.Errorw("Failed to create shipment", "shipment_id", shipment.ShipmentID, "error", err)
		return nil, fmt.Errorf("insert shipment: %w", err)
	}
	if _, err := s.appendStatus(ctx, created.ShipmentID, models.ShipmentPending, location, sess.UserID); err != nil {
		s.Logger.Warnw("Shipment created without initial status update", "shipment_id", created.ShipmentID, "error", err)
	}

	s.Logger.Infow("Shipment created",
		"shipment_id", created.ShipmentID,
		"sender", created.Sender,
		"receiver", created.Receiver,
		"drugs", len(created.DrugIDs),
	)
	return created, nil
}

// UpdateStatus advances a shipment. Only the sender or receiver may do so,
// acting as themselves, and only forward along pending -> in_transit -> delivered.
// The drugs on board follow the shipment (best-effort).
func (s *ShipmentService) UpdateStatus(ctx context.Context, sess session.Session, shipmentID string, status models.ShipmentStatus, actorID, location string) (*models.Shipment, error) {
	if !sess.Is(actorID) {
		return nil, fmt.Errorf("shipment update by %s: %w", actorID, ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown shipment status %q: %w", status, ErrInvalidInput)
	}
	shipment, err := s.FetchByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.Sender != actorID && shipment.Receiver != actorID {
		return nil, fmt.Errorf("not a party to shipment %s: %w", shipmentID, ErrForbidden)
	}
	if !shipment.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%s -> %s: %w", shipment.Status, status, ErrInvalidTransition)
	}

	if err := s.Store.Update(ctx, store.TableShipments,
		[]store.Filter{store.Eq("shipment_id", shipmentID)},
		map[string]any{"status": string(status)}); err != nil {
		s.Logger.Errorw("Failed to update shipment", "shipment_id", shipmentID, "error", err)
		return nil, fmt.Errorf("update shipment: %w", err)
	}
	shipment.Status = status

	if _, err := s.appendStatus(ctx, shipmentID, status, location, actorID); err != nil {
		s.Logger.Warnw("Shipment status log entry failed", "shipment_id", shipmentID, "error", err)
	}

	if drugStatus, ok := drugStatusFor(status); ok && s.drugs != nil {
		for _, drugID := range shipment.DrugIDs {
			if _, err := s.drugs.appendStatus(ctx, drugID, drugStatus, location, actorID); err != nil {
				s.Logger.Warnw("Drug status not updated with shipment",
					"shipment_id", shipmentID,
					"drug_id", drugID,
					"error", err,
				)
			}
		}
	}

	s.Logger.Infow("Shipment status updated",
		"shipment_id", shipmentID,
		"status", status,
		"actor", actorID,
	)
	return shipment, nil
}

// FetchStatusHistory returns the shipment's status log, newest first.
func (s *ShipmentService) FetchStatusHistory(ctx context.Context, shipmentID string) []models.ShipmentStatusUpdate {
	updates, err := store.SelectAll[models.ShipmentStatusUpdate](ctx, s.Store, store.TableShipmentStatusUpdates,
		store.Where(store.Eq("shipment_id", shipmentID)).Newest())
	if err != nil {
		s.Logger.Errorw("Failed to fetch shipment history", "shipment_id", shipmentID, "error", err)
	}
	return updates
}

func (s *ShipmentService) fetch(ctx context.Context, column, userID string) []models.Shipment {
	shipments, err := store.SelectAll[models.Shipment](ctx, s.Store, store.TableShipments,
		store.Where(store.Eq(column, userID)).Newest())
	if err != nil {
		s.Logger.Errorw("Failed to fetch shipments", column, userID, "error", err)
	}
	return shipments
}

func (s *ShipmentService) appendStatus(ctx context.Context, shipmentID string, status models.ShipmentStatus, location, updatedBy string) (*models.ShipmentStatusUpdate, error) {
	update := models.ShipmentStatusUpdate{
		ID:             s.newID(ident.PrefixStatus),
		ShipmentID:     shipmentID,
		Status:         status,
		Location:       location,
		UpdatedBy:      updatedBy,
		BlockchainTxID: models.PendingVerification(),
		Timestamp:      s.now(),
	}
	return store.InsertRow(ctx, s.Store, store.TableShipmentStatusUpdates, update)
}

func drugStatusFor(status models.ShipmentStatus) (models.DrugStatus, bool) {
	switch status {
	case models.ShipmentInTransit:
		return models.DrugInTransit, true
	case models.ShipmentDelivered:
		return models.DrugDelivered, true
	default:
		return "", false
	}
}

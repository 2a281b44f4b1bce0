package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
)

// DrugService handles drug batch registration and the drug status log
type DrugService struct {
	Deps
}

// NewDrugService creates a new drug service
func NewDrugService(deps Deps) *DrugService {
	return &DrugService{Deps: deps}
}

// FetchByManufacturer returns the manufacturer's drugs, newest first.
func (s *DrugService) FetchByManufacturer(ctx context.Context, manufacturerID string) []models.Drug {
	drugs, err := store.SelectAll[models.Drug](ctx, s.Store, store.TableDrugs,
		store.Where(store.Eq("manufacturer", manufacturerID)).Newest())
	if err != nil {
		s.Logger.Errorw("Failed to fetch drugs", "manufacturer", manufacturerID, "error", err)
	}
	return drugs
}

// FetchAll returns every drug, newest first.
func (s *DrugService) FetchAll(ctx context.Context) []models.Drug {
	drugs, err := store.SelectAll[models.Drug](ctx, s.Store, store.TableDrugs, store.Query{}.Newest())
	if err != nil {
		s.Logger.Errorw("Failed to fetch drugs", "error", err)
	}
	return drugs
}

// FetchByID looks up a single drug
func (s *DrugService) FetchByID(ctx context.Context, drugID string) (*models.Drug, error) {
	return store.SelectOne[models.Drug](ctx, s.Store, store.TableDrugs, store.Eq("drug_id", drugID))
}

// Create registers a drug batch for the signed-in manufacturer and records
// its initial "manufactured" status. The status entry is best-effort: a
// failure there is logged and the drug is still returned.
func (s *DrugService) Create(ctx context.Context, sess session.Session, drug models.Drug, location string) (*models.Drug, error) {
	if sess.Role != models.RoleManufacturer {
		return nil, fmt.Errorf("register drug as %s: %w", sess.Role, ErrForbidden)
	}
	if drug.Manufacturer != "" && !sess.Is(drug.Manufacturer) {
		return nil, fmt.Errorf("register drug for %s: %w", drug.Manufacturer, ErrForbidden)
	}
	if strings.TrimSpace(drug.Name) == "" || strings.TrimSpace(drug.BatchNumber) == "" {
		return nil, fmt.Errorf("drug name and batch number are required: %w", ErrInvalidInput)
	}

	drug.DrugID = s.newID(ident.PrefixDrug)
	drug.Manufacturer = sess.UserID
	drug.BlockchainTxID = models.PendingVerification()
	drug.Timestamp = s.now()

	created, err := store.InsertRow(ctx, s.Store, store.TableDrugs, drug)
	if err != nil {
		s.Logger.Errorw("Failed to create drug", "drug_id", drug.DrugID, "error", err)
		return nil, fmt.Errorf("insert drug: %w", err)
	}

	if _, err := s.appendStatus(ctx, created.DrugID, models.DrugManufactured, location, sess.UserID); err != nil {
		s.Logger.Warnw("Drug created without initial status update",
			"drug_id", created.DrugID,
			"error", err,
		)
	}

	s.Logger.Infow("Drug registered",
		"drug_id", created.DrugID,
		"manufacturer", created.Manufacturer,
		"batch", created.BatchNumber,
	)
	return created, nil
}

// AddStatusUpdate appends a status to the drug's log. updatedBy must be the
// signed-in user and either the drug's manufacturer or a party to a
// shipment carrying it. "dispensed" is only recorded by dispensing a
// prescription.
func (s *DrugService) AddStatusUpdate(ctx context.Context, sess session.Session, drugID string, status models.DrugStatus, location, updatedBy string) (*models.DrugStatusUpdate, error) {
	if !sess.Is(updatedBy) {
		return nil, fmt.Errorf("status update by %s: %w", updatedBy, ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown drug status %q: %w", status, ErrInvalidInput)
	}
	if status == models.DrugDispensed {
		return nil, fmt.Errorf("drugs are marked dispensed through a prescription: %w", ErrForbidden)
	}
	drug, err := s.FetchByID(ctx, drugID)
	if err != nil {
		return nil, err
	}
	if drug.Manufacturer != updatedBy && !s.carriedBy(ctx, drugID, updatedBy) {
		return nil, fmt.Errorf("not a handler of drug %s: %w", drugID, ErrForbidden)
	}

	update, err := s.appendStatus(ctx, drugID, status, location, updatedBy)
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			s.Logger.Errorw("Failed to add drug status", "drug_id", drugID, "status", status, "error", err)
		}
		return nil, err
	}
	return update, nil
}

// FetchStatusHistory returns the drug's status log, newest first.
func (s *DrugService) FetchStatusHistory(ctx context.Context, drugID string) []models.DrugStatusUpdate {
	updates, err := store.SelectAll[models.DrugStatusUpdate](ctx, s.Store, store.TableDrugStatusUpdates,
		store.Where(store.Eq("drug_id", drugID)).Newest())
	if err != nil {
		s.Logger.Errorw("Failed to fetch drug history", "drug_id", drugID, "error", err)
	}
	return updates
}

// CurrentStatus is the most recent entry of the drug's status log.
func (s *DrugService) CurrentStatus(ctx context.Context, drugID string) (models.DrugStatus, bool) {
	history := s.FetchStatusHistory(ctx, drugID)
	if len(history) == 0 {
		return "", false
	}
	return history[0].Status, true
}

// carriedBy reports whether userID sent or received a shipment holding drugID.
func (s *DrugService) carriedBy(ctx context.Context, drugID, userID string) bool {
	for _, column := range []string{"sender", "receiver"} {
		shipments, err := store.SelectAll[models.Shipment](ctx, s.Store, store.TableShipments,
			store.Where(store.Eq(column, userID)))
		if err != nil {
			s.Logger.Warnw("Failed to check drug handlers", "drug_id", drugID, column, userID, "error", err)
			continue
		}
		for _, sh := range shipments {
			if slices.Contains(sh.DrugIDs, drugID) {
				return true
			}
		}
	}
	return false
}

// appendStatus is the only writer of the drug status log. The new status
// must come after the current one.
func (s *DrugService) appendStatus(ctx context.Context, drugID string, status models.DrugStatus, location, updatedBy string) (*models.DrugStatusUpdate, error) {
	if current, ok := s.CurrentStatus(ctx, drugID); ok && !current.Precedes(status) {
		return nil, fmt.Errorf("%s -> %s: %w", current, status, ErrInvalidTransition)
	}
	update := models.DrugStatusUpdate{
		ID:             s.newID(ident.PrefixStatus),
		DrugID:         drugID,
		Status:         status,
		Location:       location,
		UpdatedBy:      updatedBy,
		BlockchainTxID: models.PendingVerification(),
		Timestamp:      s.now(),
	}
	return store.InsertRow(ctx, s.Store, store.TableDrugStatusUpdates, update)
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/medchain/medchain-server/internal/filter"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/session"
)

// DashboardQuery narrows the table and optionally selects one row for the
// detail panel.
type DashboardQuery struct {
	Filter   filter.Criteria
	Selected string
}

// Detail is the panel shown for a selected row
type Detail struct {
	Record      models.Record `json:"record"`
	History     any           `json:"history,omitempty"`
	CanDispense *bool         `json:"can_dispense,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// Dashboard is the assembled view for one role. Only the lists relevant
// to the role are set.
type Dashboard struct {
	Role          models.Role           `json:"role"`
	Stats         map[string]int        `json:"stats"`
	Drugs         []models.Drug         `json:"drugs,omitempty"`
	Shipments     []models.Shipment     `json:"shipments,omitempty"`
	Prescriptions []models.Prescription `json:"prescriptions,omitempty"`
	Detail        *Detail               `json:"detail,omitempty"`
}

// DashboardService composes the per-role dashboards
type DashboardService struct {
	Deps
	drugs         *DrugService
	shipments     *ShipmentService
	prescriptions *PrescriptionService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(deps Deps, drugs *DrugService, shipments *ShipmentService, prescriptions *PrescriptionService) *DashboardService {
	return &DashboardService{Deps: deps, drugs: drugs, shipments: shipments, prescriptions: prescriptions}
}

// For builds the dashboard of the session's role.
func (s *DashboardService) For(ctx context.Context, sess session.Session, q DashboardQuery) (*Dashboard, error) {
	switch sess.Role {
	case models.RoleManufacturer:
		return s.Manufacturer(ctx, sess, q)
	case models.RoleDistributor:
		return s.Distributor(ctx, sess, q)
	case models.RolePharmacist:
		return s.Pharmacist(ctx, sess, q)
	case models.RoleDoctor:
		return s.Doctor(ctx, sess, q)
	default:
		return nil, fmt.Errorf("no dashboard for role %q: %w", sess.Role, ErrForbidden)
	}
}

// Manufacturer lists the manufacturer's drug batches and the shipments
// they sent.
func (s *DashboardService) Manufacturer(ctx context.Context, sess session.Session, q DashboardQuery) (*Dashboard, error) {
	if sess.Role != models.RoleManufacturer {
		return nil, ErrForbidden
	}
	drugs := s.drugs.FetchByManufacturer(ctx, sess.UserID)
	sent := s.shipments.FetchBySender(ctx, sess.UserID)

	stats := verificationStats(drugs)
	stats["total"] = len(drugs)
	stats["shipments"] = len(sent)
	stats["in_transit"] = countShipments(sent, models.ShipmentInTransit)
	stats["delivered"] = countShipments(sent, models.ShipmentDelivered)

	d := &Dashboard{
		Role:      sess.Role,
		Stats:     stats,
		Drugs:     filter.Apply(drugs, q.Filter, filter.Drugs),
		Shipments: sent,
	}
	if q.Selected != "" {
		for _, drug := range drugs {
			if drug.DrugID == q.Selected {
				d.Detail = &Detail{Record: drug, History: s.drugs.FetchStatusHistory(ctx, drug.DrugID)}
			}
		}
	}
	return d, nil
}

// Distributor lists shipments the distributor sent or received.
func (s *DashboardService) Distributor(ctx context.Context, sess session.Session, q DashboardQuery) (*Dashboard, error) {
	if sess.Role != models.RoleDistributor {
		return nil, ErrForbidden
	}
	shipments := s.shipments.FetchForUser(ctx, sess.UserID)

	stats := verificationStats(shipments)
	stats["total"] = len(shipments)
	stats["pending"] = countShipments(shipments, models.ShipmentPending)
	stats["in_transit"] = countShipments(shipments, models.ShipmentInTransit)
	stats["delivered"] = countShipments(shipments, models.ShipmentDelivered)
	stats["incoming"] = filter.Count(shipments, func(sh models.Shipment) bool { return sh.Receiver == sess.UserID })

	d := &Dashboard{
		Role:      sess.Role,
		Stats:     stats,
		Shipments: filter.Apply(shipments, q.Filter, filter.Shipments),
	}
	if q.Selected != "" {
		for _, sh := range shipments {
			if sh.ShipmentID == q.Selected {
				d.Detail = &Detail{Record: sh, History: s.shipments.FetchStatusHistory(ctx, sh.ShipmentID)}
			}
		}
	}
	return d, nil
}

// Pharmacist lists every prescription with its dispense readiness, plus
// the shipments delivered to the pharmacy.
func (s *DashboardService) Pharmacist(ctx context.Context, sess session.Session, q DashboardQuery) (*Dashboard, error) {
	if sess.Role != models.RolePharmacist {
		return nil, ErrForbidden
	}
	rxs := s.prescriptions.FetchAll(ctx)
	received := s.shipments.FetchByReceiver(ctx, sess.UserID)
	now := s.now()

	stats := verificationStats(rxs)
	stats["total"] = len(rxs)
	stats["dispensed"] = filter.Count(rxs, func(rx models.Prescription) bool { return rx.Dispensed })
	stats["ready"] = filter.Count(rxs, func(rx models.Prescription) bool { return CanDispense(rx, now) == nil })
	stats["expired"] = filter.Count(rxs, func(rx models.Prescription) bool {
		return !rx.Dispensed && !rx.ExpiryDate.IsZero() && !now.Before(rx.ExpiryDate.AddDate(0, 0, 1))
	})
	stats["incoming_shipments"] = len(received)

	d := &Dashboard{
		Role:          sess.Role,
		Stats:         stats,
		Prescriptions: filter.Apply(rxs, q.Filter, filter.Prescriptions),
		Shipments:     received,
	}
	if q.Selected != "" {
		for _, rx := range rxs {
			if rx.PrescriptionID == q.Selected {
				d.Detail = prescriptionDetail(rx, now)
			}
		}
	}
	return d, nil
}

// Doctor lists the prescriptions the doctor issued.
func (s *DashboardService) Doctor(ctx context.Context, sess session.Session, q DashboardQuery) (*Dashboard, error) {
	if sess.Role != models.RoleDoctor {
		return nil, ErrForbidden
	}
	rxs := s.prescriptions.FetchByDoctor(ctx, sess.UserID)

	stats := verificationStats(rxs)
	stats["total"] = len(rxs)
	stats["dispensed"] = filter.Count(rxs, func(rx models.Prescription) bool { return rx.Dispensed })

	d := &Dashboard{
		Role:          sess.Role,
		Stats:         stats,
		Prescriptions: filter.Apply(rxs, q.Filter, filter.Prescriptions),
	}
	if q.Selected != "" {
		for _, rx := range rxs {
			if rx.PrescriptionID == q.Selected {
				d.Detail = prescriptionDetail(rx, s.now())
			}
		}
	}
	return d, nil
}

func prescriptionDetail(rx models.Prescription, now time.Time) *Detail {
	ok := true
	detail := &Detail{Record: rx}
	if err := CanDispense(rx, now); err != nil {
		ok = false
		detail.Reason = err.Error()
	}
	detail.CanDispense = &ok
	return detail
}

func verificationStats[T models.Record](records []T) map[string]int {
	stats := map[string]int{"verified": 0, "pending_verification": 0, "unverified": 0}
	for _, r := range records {
		switch r.Verification().State() {
		case models.Verified:
			stats["verified"]++
		case models.Pending:
			stats["pending_verification"]++
		default:
			stats["unverified"]++
		}
	}
	return stats
}

func countShipments(shipments []models.Shipment, status models.ShipmentStatus) int {
	return filter.Count(shipments, func(sh models.Shipment) bool { return sh.Status == status })
}

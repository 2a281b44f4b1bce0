package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
)

// DefaultPrescriptionValidityMonths is applied when no expiry date is given.
const DefaultPrescriptionValidityMonths = 6

// PrescriptionService handles prescription issue and dispensing
type PrescriptionService struct {
	Deps
	drugs *DrugService
}

// NewPrescriptionService creates a new prescription service
func NewPrescriptionService(deps Deps, drugs *DrugService) *PrescriptionService {
	return &PrescriptionService{Deps: deps, drugs: drugs}
}

// FetchByDoctor returns prescriptions issued by doctorID, newest first.
func (s *PrescriptionService) FetchByDoctor(ctx context.Context, doctorID string) []models.Prescription {
	return s.fetch(ctx, store.Where(store.Eq("doctor_id", doctorID)).Newest())
}

// FetchByPatient returns prescriptions for patientID, newest first.
func (s *PrescriptionService) FetchByPatient(ctx context.Context, patientID string) []models.Prescription {
	return s.fetch(ctx, store.Where(store.Eq("patient_id", patientID)).Newest())
}

// FetchAll returns every prescription, newest first.
func (s *PrescriptionService) FetchAll(ctx context.Context) []models.Prescription {
	return s.fetch(ctx, store.Query{}.Newest())
}

// FetchByID looks up a single prescription
func (s *PrescriptionService) FetchByID(ctx context.Context, prescriptionID string) (*models.Prescription, error) {
	return store.SelectOne[models.Prescription](ctx, s.Store, store.TablePrescriptions,
		store.Eq("prescription_id", prescriptionID))
}

// Create issues a prescription from the signed-in doctor. Issue date
// defaults to today and expiry to six months after issue.
func (s *PrescriptionService) Create(ctx context.Context, sess session.Session, rx models.Prescription) (*models.Prescription, error) {
	if sess.Role != models.RoleDoctor {
		return nil, fmt.Errorf("issue prescription as %s: %w", sess.Role, ErrForbidden)
	}
	if rx.DoctorID != "" && !sess.Is(rx.DoctorID) {
		return nil, fmt.Errorf("issue prescription for %s: %w", rx.DoctorID, ErrForbidden)
	}
	if strings.TrimSpace(rx.PatientID) == "" || len(rx.DrugIDs) == 0 {
		return nil, fmt.Errorf("prescription needs a patient and drugs: %w", ErrInvalidInput)
	}

	now := s.now()
	rx.PrescriptionID = s.newID(ident.PrefixPrescription)
	rx.DoctorID = sess.UserID
	if rx.IssueDate.IsZero() {
		rx.IssueDate = models.NewDate(now)
	}
	if rx.ExpiryDate.IsZero() {
		rx.ExpiryDate = models.NewDate(rx.IssueDate.AddDate(0, DefaultPrescriptionValidityMonths, 0))
	}
	if !rx.ExpiryDate.After(rx.IssueDate.Time) {
		return nil, fmt.Errorf("expiry must be after issue date: %w", ErrInvalidInput)
	}
	rx.Dispensed = false
	rx.DispensedBy = nil
	rx.DispensedAt = nil
	rx.BlockchainTxID = models.PendingVerification()
	rx.Timestamp = now

	created, err := store.InsertRow(ctx, s.Store, store.TablePrescriptions, rx)
	if err != nil {
		s.Logger.Errorw("Failed to create prescription", "prescription_id", rx.PrescriptionID, "error", err)
		return nil, fmt.Errorf("insert prescription: %w", err)
	}

	s.Logger.Infow("Prescription issued",
		"prescription_id", created.PrescriptionID,
		"doctor", created.DoctorID,
		"drugs", len(created.DrugIDs),
	)
	return created, nil
}

// Dispense marks a prescription dispensed by the signed-in pharmacist.
// It is refused, before any write, unless the prescription is verified,
// not yet dispensed and not expired.
func (s *PrescriptionService) Dispense(ctx context.Context, sess session.Session, prescriptionID, pharmacistID, location string) (*models.Prescription, error) {
	if !sess.Is(pharmacistID) {
		return nil, fmt.Errorf("dispense by %s: %w", pharmacistID, ErrForbidden)
	}
	if sess.Role != models.RolePharmacist {
		return nil, fmt.Errorf("dispense as %s: %w", sess.Role, ErrForbidden)
	}
	rx, err := s.FetchByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if err := CanDispense(*rx, s.now()); err != nil {
		return nil, err
	}

	// The dispensed=false filter makes a concurrent second dispense match no rows.
	now := s.now()
	if err := s.Store.Update(ctx, store.TablePrescriptions,
		[]store.Filter{store.Eq("prescription_id", prescriptionID), store.Eq("dispensed", false)},
		map[string]any{
			"dispensed":    true,
			"dispensed_by": pharmacistID,
			"dispensed_at": now,
		}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyDispensed
		}
		s.Logger.Errorw("Failed to dispense prescription", "prescription_id", prescriptionID, "error", err)
		return nil, fmt.Errorf("update prescription: %w", err)
	}

	rx.Dispensed = true
	rx.DispensedBy = &pharmacistID
	rx.DispensedAt = &now

	if s.drugs != nil {
		for _, drugID := range rx.DrugIDs {
			if _, err := s.drugs.appendStatus(ctx, drugID, models.DrugDispensed, location, pharmacistID); err != nil {
				s.Logger.Warnw("Drug status not updated on dispense",
					"prescription_id", prescriptionID,
					"drug_id", drugID,
					"error", err,
				)
			}
		}
	}

	s.Logger.Infow("Prescription dispensed",
		"prescription_id", prescriptionID,
		"pharmacist", pharmacistID,
	)
	return rx, nil
}

// CanDispense is the dispense precondition, shared with the dashboards.
func CanDispense(rx models.Prescription, now time.Time) error {
	if rx.Dispensed {
		return ErrAlreadyDispensed
	}
	if !rx.BlockchainTxID.IsVerified() {
		return fmt.Errorf("prescription %s is %s: %w", rx.PrescriptionID, rx.BlockchainTxID.State(), ErrNotVerified)
	}
	if !rx.ExpiryDate.IsZero() && !now.Before(rx.ExpiryDate.AddDate(0, 0, 1)) {
		return ErrExpired
	}
	return nil
}

func (s *PrescriptionService) fetch(ctx context.Context, q store.Query) []models.Prescription {
	rxs, err := store.SelectAll[models.Prescription](ctx, s.Store, store.TablePrescriptions, q)
	if err != nil {
		s.Logger.Errorw("Failed to fetch prescriptions", "error", err)
	}
	return rxs
}

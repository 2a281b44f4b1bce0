package forms

import (
	"strings"

	"github.com/medchain/medchain-server/internal/models"
)

// DrugForm is the manufacturer's "register drug batch" form.
type DrugForm struct {
	Name            string `json:"name" validate:"required,min=2,max=120"`
	BatchNumber     string `json:"batch_number" validate:"required,min=2,max=64"`
	ManufactureDate string `json:"manufacture_date" validate:"required"`
	ExpiryDate      string `json:"expiry_date" validate:"required"`
	Description     string `json:"description" validate:"max=500"`
	Quantity        int    `json:"quantity" validate:"omitempty,min=1"`
	Location        string `json:"location" validate:"max=200"`
}

// Drug validates the form and builds the drug to register.
func (f DrugForm) Drug() (models.Drug, error) {
	verr := Validate(f)
	made := parseDate(verr, "manufacture_date", f.ManufactureDate)
	expiry := parseDate(verr, "expiry_date", f.ExpiryDate)
	if !made.IsZero() && !expiry.IsZero() && !expiry.After(made.Time) {
		verr.Add("expiry_date", "Expiry date must be after the manufacture date")
	}
	if err := verr.OrNil(); err != nil {
		return models.Drug{}, err
	}
	return models.Drug{
		Name:            strings.TrimSpace(f.Name),
		BatchNumber:     strings.TrimSpace(f.BatchNumber),
		ManufactureDate: made,
		ExpiryDate:      expiry,
		Description:     strings.TrimSpace(f.Description),
		Quantity:        f.Quantity,
	}, nil
}

// ShipmentForm is the "create shipment" form.
type ShipmentForm struct {
	DrugIDs  []string `json:"drug_ids" validate:"required,min=1,dive,required"`
	Receiver string   `json:"receiver" validate:"required"`
	ShipDate string   `json:"ship_date"`
	Location string   `json:"location" validate:"max=200"`
}

// Shipment validates the form and builds the shipment to create.
func (f ShipmentForm) Shipment() (models.Shipment, error) {
	verr := Validate(f)
	var shipDate models.Date
	if f.ShipDate != "" {
		shipDate = parseDate(verr, "ship_date", f.ShipDate)
	}
	if err := verr.OrNil(); err != nil {
		return models.Shipment{}, err
	}
	return models.Shipment{
		DrugIDs:  dedupe(f.DrugIDs),
		Receiver: strings.TrimSpace(f.Receiver),
		ShipDate: shipDate,
	}, nil
}

// PrescriptionForm is the doctor's "issue prescription" form. Both dates
// are optional.
type PrescriptionForm struct {
	PatientID  string   `json:"patient_id" validate:"required"`
	DrugIDs    []string `json:"drug_ids" validate:"required,min=1,dive,required"`
	IssueDate  string   `json:"issue_date"`
	ExpiryDate string   `json:"expiry_date"`
	Notes      string   `json:"notes" validate:"max=1000"`
}

// Prescription validates the form and builds the prescription to issue.
func (f PrescriptionForm) Prescription() (models.Prescription, error) {
	verr := Validate(f)
	var issue, expiry models.Date
	if f.IssueDate != "" {
		issue = parseDate(verr, "issue_date", f.IssueDate)
	}
	if f.ExpiryDate != "" {
		expiry = parseDate(verr, "expiry_date", f.ExpiryDate)
	}
	if !issue.IsZero() && !expiry.IsZero() && !expiry.After(issue.Time) {
		verr.Add("expiry_date", "Expiry date must be after the issue date")
	}
	if err := verr.OrNil(); err != nil {
		return models.Prescription{}, err
	}
	return models.Prescription{
		PatientID:  strings.TrimSpace(f.PatientID),
		DrugIDs:    dedupe(f.DrugIDs),
		IssueDate:  issue,
		ExpiryDate: expiry,
		Notes:      strings.TrimSpace(f.Notes),
	}, nil
}

// StatusForm advances a drug or shipment status.
type StatusForm struct {
	Status   string `json:"status" validate:"required"`
	Location string `json:"location" validate:"max=200"`
}

// DispenseForm is submitted by a pharmacist.
type DispenseForm struct {
	Location string `json:"location" validate:"max=200"`
}

func parseDate(verr *ValidationError, field, value string) models.Date {
	if value == "" {
		return models.Date{}
	}
	d, err := models.ParseDate(value)
	if err != nil {
		verr.Add(field, "Enter a date as YYYY-MM-DD")
		return models.Date{}
	}
	return d
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Package wizard implements the two-step sign-up flow: identity and role
// first, then the role's business details.
package wizard

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/medchain/medchain-server/internal/forms"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
)

// Step is the wizard page the user is on
type Step int

const (
	StepIdentity Step = 1
	StepBusiness Step = 2
)

// Identity is step one. Role is checked separately from the field rules.
type Identity struct {
	Name     string      `json:"name" validate:"required,min=2,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Phone    string      `json:"phone" validate:"required,min=10,max=20"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     models.Role `json:"role"`
}

// Business is step two; its labels depend on the role chosen in step one.
type Business struct {
	BusinessName string `json:"business_name" validate:"required,min=2,max=120"`
	CredentialID string `json:"credential_id" validate:"required,min=3,max=64"`
	Address      string `json:"address" validate:"max=200"`
}

// SignUp is the state of one wizard
type SignUp struct {
	ID        string    `json:"id"`
	Step      Step      `json:"step"`
	Identity  Identity  `json:"identity"`
	Business  Business  `json:"business"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New starts a wizard on step one.
func New(id string) *SignUp {
	return &SignUp{ID: id, Step: StepIdentity, UpdatedAt: time.Now().UTC()}
}

// SubmitIdentity stores the step-one values and advances only when they
// pass validation and a role is selected. The values are kept either way
// so the form can be redisplayed with its errors, but a failed submit
// always returns the wizard to step one.
func (w *SignUp) SubmitIdentity(in Identity) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	w.Identity = in
	w.touch()

	role, err := checkIdentity(in)
	if err != nil {
		w.Step = StepIdentity
		return err
	}
	w.Identity.Role = role
	w.Step = StepBusiness
	return nil
}

func checkIdentity(in Identity) (models.Role, error) {
	verr := forms.Validate(in)
	var role models.Role
	if in.Role == "" {
		verr.Add("role", "Please select a role")
	} else if r, err := models.ParseRole(string(in.Role)); err != nil {
		verr.Add("role", "Please select a valid role")
	} else {
		role = r
	}
	return role, verr.OrNil()
}

// Back returns to step one with every value intact.
func (w *SignUp) Back() {
	w.Step = StepIdentity
	w.touch()
}

// Progress is the completion percentage shown above the form.
func (w *SignUp) Progress() int {
	if w.Step == StepBusiness {
		return 100
	}
	return 50
}

// Request combines both steps into the sign-up payload.
func (w *SignUp) Request() services.SignUpRequest {
	return services.SignUpRequest{
		Name:         w.Identity.Name,
		Email:        w.Identity.Email,
		Phone:        w.Identity.Phone,
		Password:     w.Identity.Password,
		Role:         w.Identity.Role,
		Organization: strings.TrimSpace(w.Business.BusinessName),
		LicenseID:    strings.TrimSpace(w.Business.CredentialID),
		Address:      strings.TrimSpace(w.Business.Address),
	}
}

// SignUpFunc performs the registration
type SignUpFunc func(ctx context.Context, req services.SignUpRequest) (*models.User, error)

// Submit validates step two and registers the account. On success the
// wizard resets to an empty step one; on failure it stays where it is.
func (w *SignUp) Submit(ctx context.Context, in Business, signUp SignUpFunc) (*models.User, error) {
	if w.Step != StepBusiness {
		verr := &forms.ValidationError{}
		verr.Add("step", "Complete the first step before submitting")
		return nil, verr
	}
	if _, err := checkIdentity(w.Identity); err != nil {
		w.Step = StepIdentity
		return nil, err
	}
	w.Business = in
	w.touch()
	if err := forms.Validate(in).OrNil(); err != nil {
		return nil, err
	}

	user, err := signUp(ctx, w.Request())
	if err != nil {
		return nil, err
	}
	w.Reset()
	return user, nil
}

// Reset clears both steps and returns to step one.
func (w *SignUp) Reset() {
	*w = SignUp{ID: w.ID, Step: StepIdentity, UpdatedAt: time.Now().UTC()}
}

func (w *SignUp) touch() {
	w.UpdatedAt = time.Now().UTC()
}

// Labels are the role-specific captions for step two.
type Labels struct {
	Role         models.Role `json:"role"`
	BusinessName string      `json:"business_name"`
	CredentialID string      `json:"credential_id"`
}

// LabelsFor returns the step-two captions for role.
func LabelsFor(role models.Role) Labels {
	return Labels{Role: role, BusinessName: BusinessLabel(role), CredentialID: CredentialLabel(role)}
}

// BusinessLabel names the organisation field for role.
func BusinessLabel(role models.Role) string {
	switch role {
	case models.RoleManufacturer:
		return "Company Name"
	case models.RoleDistributor:
		return "Business Name"
	case models.RolePharmacist:
		return "Pharmacy Name"
	case models.RoleDoctor:
		return "Hospital/Clinic Name"
	default:
		return "Organization Name"
	}
}

// CredentialLabel names the licence field for role.
func CredentialLabel(role models.Role) string {
	switch role {
	case models.RoleManufacturer:
		return "Manufacturing License"
	case models.RoleDistributor:
		return "Distribution License"
	case models.RolePharmacist:
		return "Pharmacy License"
	case models.RoleDoctor:
		return "Medical License Number"
	default:
		return "License ID"
	}
}

// PasswordStrength scores a password 0-100, 25 points per satisfied check:
// length of at least 8, a digit, a lowercase letter, an uppercase letter or
// symbol. Advisory only.
func PasswordStrength(password string) int {
	var digit, lower, upperOrSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r), !unicode.IsLetter(r):
			upperOrSymbol = true
		}
	}
	score := 0
	for _, ok := range []bool{len([]rune(password)) >= 8, digit, lower, upperOrSymbol} {
		if ok {
			score += 25
		}
	}
	return score
}

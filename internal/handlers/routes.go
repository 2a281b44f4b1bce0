package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/medchain/medchain-server/internal/middleware"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/ratelimit"
)

// API bundles the endpoint groups mounted under /api/v1. Integrity is nil
// when the ledger simulator is off.
type API struct {
	Health        *HealthHandler
	Auth          *AuthHandler
	Wizard        *WizardHandler
	Drugs         *DrugHandler
	Shipments     *ShipmentHandler
	Prescriptions *PrescriptionHandler
	Users         *UserHandler
	Dashboard     *DashboardHandler
	Verification  *VerificationHandler
	Integrity     *IntegrityHandler

	Resolver middleware.SessionResolver
	// Limiter may be nil to disable rate limiting.
	Limiter ratelimit.Limiter
	// Timeout bounds every request except the verification stream.
	Timeout time.Duration
}

// Routes returns the /api/v1 sub-router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	// Public endpoints, limited per client address
	r.Group(func(r chi.Router) {
		a.limit(r)
		a.timeout(r)

		r.Get("/health", a.Health.Check)
		r.Get("/health/ready", a.Health.Ready)

		r.Post("/auth/signup", a.Auth.SignUp)
		r.Post("/auth/signin", a.Auth.SignIn)

		r.Route("/signup", func(r chi.Router) {
			r.Post("/wizard", a.Wizard.Create)
			r.Get("/wizard/{id}", a.Wizard.Get)
			r.Put("/wizard/{id}/step1", a.Wizard.SubmitIdentity)
			r.Post("/wizard/{id}/back", a.Wizard.Back)
			r.Post("/wizard/{id}/submit", a.Wizard.Submit)
			r.Get("/labels/{role}", a.Wizard.Labels)
			r.Post("/password-strength", a.Wizard.PasswordStrength)
		})

		if a.Integrity != nil {
			r.Route("/integrity", func(r chi.Router) {
				r.Get("/root", a.Integrity.GetRoot)
				r.Get("/proof/{index}", a.Integrity.GetProof)
				r.Post("/verify", a.Integrity.Verify)
			})
		}
	})

	// Signed-in endpoints, limited per user
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(a.Resolver))
		a.limit(r)

		// Long-lived; no request timeout
		r.Get("/verification/stream", a.Verification.Stream)

		r.Group(func(r chi.Router) {
			a.timeout(r)

			r.Post("/auth/signout", a.Auth.SignOut)
			r.Get("/auth/session", a.Auth.Session)

			r.Route("/drugs", func(r chi.Router) {
				r.Get("/", a.Drugs.List)
				r.With(middleware.RequireRole(models.RoleManufacturer)).Post("/", a.Drugs.Create)
				r.Get("/{id}", a.Drugs.Get)
				r.Get("/{id}/history", a.Drugs.History)
				r.Post("/{id}/status", a.Drugs.UpdateStatus)
				r.Get("/{id}/qr", a.Drugs.QR)
			})

			r.Route("/shipments", func(r chi.Router) {
				r.Get("/", a.Shipments.List)
				r.With(middleware.RequireRole(models.RoleManufacturer, models.RoleDistributor)).Post("/", a.Shipments.Create)
				r.Get("/{id}", a.Shipments.Get)
				r.Get("/{id}/history", a.Shipments.History)
				r.Post("/{id}/status", a.Shipments.UpdateStatus)
				r.Get("/{id}/qr", a.Shipments.QR)
			})

			r.Route("/prescriptions", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleDoctor, models.RolePharmacist))
				r.Get("/", a.Prescriptions.List)
				r.With(middleware.RequireRole(models.RoleDoctor)).Post("/", a.Prescriptions.Create)
				r.Get("/{id}", a.Prescriptions.Get)
				r.With(middleware.RequireRole(models.RolePharmacist)).Post("/{id}/dispense", a.Prescriptions.Dispense)
				r.Get("/{id}/qr", a.Prescriptions.QR)
			})

			r.Get("/users", a.Users.List)
			r.Get("/users/{id}", a.Users.Get)

			r.Get("/dashboard/{role}", a.Dashboard.Get)
		})
	})

	return r
}

func (a *API) limit(r chi.Router) {
	if a.Limiter != nil {
		r.Use(middleware.RateLimit(a.Limiter))
	}
}

func (a *API) timeout(r chi.Router) {
	if a.Timeout > 0 {
		r.Use(chimw.Timeout(a.Timeout))
	}
}

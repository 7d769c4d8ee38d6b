package server

import (
	"errors"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	hscmiddleware "github.com/horizonsante/hsc/cmd/hscapi/internal/middleware"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/repository"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/audit"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/validation"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/telemetry"
)

// RouterOptions controls the construction of the HTTP router.
type RouterOptions struct {
	Authenticator *iam.Authenticator
	Assigner      *iam.Assigner
	Synchronizer  *iam.Synchronizer
	Provisioner   *iam.Provisioner
	Enforcer      casbin.IEnforcer
	Audit         *audit.Recorder
	Patients      repository.PatientRepository
	LoginLimiter  *hscmiddleware.IPRateLimiter
	// Validator checks request bodies; nil uses the embedded schemas.
	Validator     *validation.SchemaValidator
	Metrics       *telemetry.Metrics
	Logger        zerolog.Logger
	CORSOptions   *cors.Options
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router: shared middleware, public auth
// routes, then the guarded admin, audit and patient routes.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	logger := opts.Logger
	if opts.Authenticator == nil {
		return nil, errors.New("router requires an authenticator")
	}
	if opts.Audit == nil {
		return nil, errors.New("router requires an audit recorder")
	}

	authz, err := hscmiddleware.NewAuthz(hscmiddleware.AuthzDependencies{
		Guard:    iam.NewGuard(),
		Enforcer: opts.Enforcer,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	validator := opts.Validator
	if validator == nil {
		validator, err = validation.NewSchemaValidator(16)
		if err != nil {
			return nil, err
		}
	}
	body := func(schema string) func(http.Handler) http.Handler {
		return validateBody(validator, schema, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hscmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Instrument)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthz", healthHandler)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(hscmiddleware.NewAuthnMiddleware(opts.Authenticator, logger))
		var patients hscmiddleware.PatientAccessToucher
		if opts.Patients != nil {
			patients = opts.Patients
		}
		r.Use(hscmiddleware.NewAuditMiddleware(hscmiddleware.AuditDependencies{
			Recorder: opts.Audit,
			Patients: patients,
			Logger:   logger,
		}))

		r.Route("/auth", func(r chi.Router) {
			login := body(validation.SchemaLogin)(HandleLogin(opts.Authenticator, opts.Audit, logger))
			if opts.LoginLimiter != nil {
				login = opts.LoginLimiter.Middleware(login)
			}
			r.Method(http.MethodPost, "/login", login)

			r.Group(func(r chi.Router) {
				r.Use(authz.RequireAuthenticated())
				r.Post("/logout", HandleLogout(opts.Authenticator, opts.Audit, logger))
				r.Get("/whoami", HandleWhoAmI(opts.Enforcer, logger))
			})
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(authz.RequireRole(auth.RoleAdmin))
			r.Get("/roles", HandleListRoles(opts.Enforcer, logger))
			r.Post("/iam/sync", HandleSync(opts.Synchronizer, logger))
			r.With(body(validation.SchemaUserCreate)).
				Post("/users", HandleCreateUser(opts.Provisioner, opts.Audit, logger))
			r.With(body(validation.SchemaUserRole)).
				Put("/users/{id}/role", HandleSetRole(opts.Assigner, opts.Audit, logger))
		})

		r.With(authz.RequirePermission(auth.ResourceAuditLog, auth.ActionRead)).
			Get("/api/audit", HandleListAudit(opts.Audit, logger))

		if opts.Patients != nil {
			r.Route("/api/patients", func(r chi.Router) {
				r.With(authz.RequirePermission(auth.ResourcePatient, auth.ActionRead)).
					Get("/", HandleListPatients(opts.Patients, logger))
				r.With(authz.RequirePermission(auth.ResourcePatient, auth.ActionCreate), body(validation.SchemaPatientCreate)).
					Post("/", HandleCreatePatient(opts.Patients, opts.Audit, logger))
				r.With(authz.RequirePermission(auth.ResourcePatient, auth.ActionRead)).
					Get("/{id}", HandleGetPatient(opts.Patients, logger))
			})
		}
	})

	return r, nil
}

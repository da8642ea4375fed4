package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/auth"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/availability"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/aretw0/arbor/pkg/employees"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// OrganizationHeader carries the caller's organisation when no authenticator
// is configured. Only meant for local development.
const OrganizationHeader = "X-Organization-ID"

//go:embed openapi.yaml
var rawSpec []byte

// Service is the part of arbor.Service served over HTTP.
type Service interface {
	CreateForm(ctx context.Context, organizationID string, in arbor.CreateFormInput) (*domain.Form, error)
	GetForm(ctx context.Context, organizationID, formID string) (*domain.Form, error)
	ListForms(ctx context.Context, organizationID string) ([]*domain.Form, error)
	ListDeletedForms(ctx context.Context, organizationID string) ([]*domain.Form, error)
	SaveForm(ctx context.Context, organizationID, formID string, data domain.BookingFlowData) (*domain.Form, error)
	DeleteForm(ctx context.Context, organizationID, formID string) error
	RestoreForm(ctx context.Context, organizationID, formID string) (*domain.Form, error)

	Dispatch(ctx context.Context, organizationID, formID string, action editor.Action) (domain.BookingFlowData, error)
	Draft(ctx context.Context, organizationID, formID string) (autosave.Snapshot, error)
	SaveDraft(ctx context.Context, organizationID, formID string) (autosave.Snapshot, error)
	Subscribe(ctx context.Context, organizationID, formID string) (<-chan arbor.DraftEvent, error)

	Availability(ctx context.Context, organizationID string, q arbor.AvailabilityQuery) (availability.Result, error)
	ListEmployees(ctx context.Context, organizationID string) ([]domain.Employee, error)
	SyncEmployees(ctx context.Context, organizationID string) (employees.Report, error)
	ToggleEmployee(ctx context.Context, organizationID, employeeID string) (domain.Employee, error)

	Templates(ctx context.Context) ([]domain.Template, error)
	Watch(ctx context.Context) (<-chan domain.ChangeEvent, error)
}

var _ Service = (*arbor.Service)(nil)

// Server holds the HTTP handlers of the Service.
type Server struct {
	svc      Service
	auth     *auth.Authenticator
	origins  []string
	validate bool
	metrics  http.Handler
	logger   *slog.Logger
	spec     *openapi3.T
}

// Option configures the Server.
type Option func(*Server)

// WithAuthenticator requires a bearer JWT on every API route.
// Without it the organisation is read from OrganizationHeader.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
// Defaults to any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithRequestValidation validates requests against the OpenAPI document.
func WithRequestValidation(enabled bool) Option {
	return func(s *Server) {
		s.validate = enabled
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Spec parses the embedded OpenAPI document.
func Spec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	return doc, nil
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc Service, opts ...Option) (http.Handler, error) {
	s := &Server{svc: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	spec, err := Spec()
	if err != nil {
		return nil, err
	}
	s.spec = spec

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		if s.validate {
			v, err := newRequestValidator(spec, s)
			if err != nil {
				s.logger.Error("request validation disabled", "err", err)
			} else {
				r.Use(v.middleware)
			}
		}

		r.Route("/forms", func(r chi.Router) {
			r.Get("/", s.listForms)
			r.Post("/", s.createForm)
			r.Route("/{formID}", func(r chi.Router) {
				r.Get("/", s.getForm)
				r.Put("/", s.saveForm)
				r.Delete("/", s.deleteForm)
				r.Post("/restore", s.restoreForm)
				r.Post("/actions", s.dispatchAction)
				r.Get("/draft", s.getDraft)
				r.Post("/draft/save", s.saveDraft)
				r.Get("/events", s.subscribeDraft)
				r.Get("/services/{serviceID}/availability", s.getAvailability)
			})
		})
		r.Get("/employees", s.listEmployees)
		r.Post("/employees/sync", s.syncEmployees)
		r.Post("/employees/{employeeID}/toggle", s.toggleEmployee)
		r.Get("/templates", s.listTemplates)
		r.Get("/events", s.watchStore)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", OrganizationHeader},
	})
	return c.Handler(r), nil
}

// authenticate puts the caller's claims in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.auth != nil {
		return s.auth.Middleware(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if org == "" {
			s.writeError(w, r, fmt.Errorf("%w: missing %s header", domain.ErrUnauthorized, OrganizationHeader))
			return
		}
		claims := &auth.Claims{OrganizationID: org}
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "arbor-http",
		"version":     strings.TrimSpace(arbor.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func organization(r *http.Request) string {
	return auth.OrganizationFrom(r.Context())
}

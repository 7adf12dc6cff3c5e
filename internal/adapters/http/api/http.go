// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/okian/circle/internal/adapters/repository"
	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/internal/domain/types"
	"github.com/okian/circle/pkg/logger"
)

// UserHeader carries the caller's user ID when no userId query parameter is set.
const UserHeader = "X-User-ID"

// IdempotencyHeader deduplicates interaction submissions.
const IdempotencyHeader = "Idempotency-Key"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RegisterUser(ctx context.Context, email, name string) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)

	ListContacts(ctx context.Context, f repository.ContactFilter, reconnect bool, limit int) ([]types.ContactView, error)
	GetContact(ctx context.Context, userID, id string) (types.ContactView, error)
	CreateContact(ctx context.Context, in repository.ContactInput) (types.ContactView, error)
	UpdateContact(ctx context.Context, userID, id string, p repository.ContactPatch) (types.ContactView, error)
	DeleteContact(ctx context.Context, userID, id string) error

	ListGroups(ctx context.Context, userID string) ([]model.Group, error)
	GetGroup(ctx context.Context, userID, id string) (model.Group, error)
	CreateGroup(ctx context.Context, in repository.GroupInput) (model.Group, error)
	UpdateGroup(ctx context.Context, userID, id string, p repository.GroupPatch) (model.Group, error)
	DeleteGroup(ctx context.Context, userID, id string) error

	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
	GetActivity(ctx context.Context, userID, id string) (model.Activity, error)
	CreateActivity(ctx context.Context, in repository.ActivityInput) (model.Activity, error)
	UpdateActivity(ctx context.Context, userID, id string, p repository.ActivityPatch) (model.Activity, error)
	DeleteActivity(ctx context.Context, userID, id string) error

	LogInteraction(ctx context.Context, idempotencyKey string, in repository.InteractionInput) (model.Interaction, bool, error)
	ListInteractions(ctx context.Context, f repository.InteractionFilter) ([]model.Interaction, error)

	Dashboard(ctx context.Context, userID string, limit int) (types.DashboardView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	validate *validator.Validate
	logger   logger.Logger
	limiter  *RateLimiter

	maxListLimit int

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxListLimit caps the limit accepted by GET /api/contacts.
func WithMaxListLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxListLimit = n
		}
	}
}

// WithRateLimit throttles write routes per caller. A non-positive rps
// disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = NewRateLimiter(rps, burst)
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.NewNop(),
		maxListLimit:  500,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	router.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/users", s.write(s.handleRegisterUser, "users")).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", MetricsMiddleware(s.handleGetUser, "users")).Methods(http.MethodGet)

	api.HandleFunc("/contacts", MetricsMiddleware(s.handleListContacts, "contacts")).Methods(http.MethodGet)
	api.HandleFunc("/contacts", s.write(s.handleCreateContact, "contacts")).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}", MetricsMiddleware(s.handleGetContact, "contact")).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}", s.write(s.handleUpdateContact, "contact")).Methods(http.MethodPatch)
	api.HandleFunc("/contacts/{id}", s.write(s.handleDeleteContact, "contact")).Methods(http.MethodDelete)

	api.HandleFunc("/groups", MetricsMiddleware(s.handleListGroups, "groups")).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.write(s.handleCreateGroup, "groups")).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id}", MetricsMiddleware(s.handleGetGroup, "group")).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}", s.write(s.handleUpdateGroup, "group")).Methods(http.MethodPatch)
	api.HandleFunc("/groups/{id}", s.write(s.handleDeleteGroup, "group")).Methods(http.MethodDelete)

	api.HandleFunc("/activities", MetricsMiddleware(s.handleListActivities, "activities")).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.write(s.handleCreateActivity, "activities")).Methods(http.MethodPost)
	api.HandleFunc("/activities/{id}", MetricsMiddleware(s.handleGetActivity, "activity")).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id}", s.write(s.handleUpdateActivity, "activity")).Methods(http.MethodPatch)
	api.HandleFunc("/activities/{id}", s.write(s.handleDeleteActivity, "activity")).Methods(http.MethodDelete)

	api.HandleFunc("/interactions", MetricsMiddleware(s.handleListInteractions, "interactions")).Methods(http.MethodGet)
	api.HandleFunc("/interactions", s.write(s.handleLogInteraction, "interactions")).Methods(http.MethodPost)

	api.HandleFunc("/dashboard", MetricsMiddleware(s.handleDashboard, "dashboard")).Methods(http.MethodGet)
}

// write wraps a mutating handler with rate limiting and metrics.
func (s *Server) write(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	if s.limiter != nil {
		h = s.limiter.Middleware(h, endpoint)
	}
	return MetricsMiddleware(h, endpoint)
}

// userID resolves the caller from the userId query parameter or the
// X-User-ID header.
func userID(r *http.Request) (string, error) {
	if id := strings.TrimSpace(r.URL.Query().Get("userId")); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
		return id, nil
	}
	return "", NewKind("api.user", ErrUnauthorized)
}

// decode reads a JSON body into dst and runs struct validation.
func (s *Server) decode(op string, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a status and writes it, logging server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/circle/internal/adapters/repository"
	"github.com/okian/circle/internal/domain/dedupe"
	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/internal/domain/reconnect"
	"github.com/okian/circle/internal/domain/scoring"
	"github.com/okian/circle/internal/domain/types"
	"github.com/okian/circle/pkg/logger"
	"github.com/okian/circle/pkg/metrics"
)

// Service composes the contact store with the relationship scorer.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	now     func() time.Time

	// Configuration
	dedupeSize     int
	scoreWorkers   int
	dashboardLimit int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the contact store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithClock sets the clock used as "now" for scoring.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDedupeSize sets the size of the idempotency-key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithScoreWorkers bounds the goroutines used to score a contact list.
func WithScoreWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoreWorkers = n
		}
	}
}

// WithDashboardLimit sets the default length of the dashboard reconnect list.
func WithDashboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dashboardLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		now:            time.Now,
		dedupeSize:     10_000,
		scoreWorkers:   runtime.NumCPU(),
		dashboardLimit: 5,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory contact store")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)

	s.started = true
	s.logger.Info(ctx, "circle service started",
		logger.Int("scoreWorkers", s.scoreWorkers),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("dashboardLimit", s.dashboardLimit),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "circle service stopped")
}

// ready returns the store once Start has run.
func (s *Service) ready() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Now returns the service clock reading in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

// --- Users ---

// RegisterUser creates the user for email or refreshes its name.
func (s *Service) RegisterUser(ctx context.Context, email, name string) (model.User, error) {
	store, err := s.ready()
	if err != nil {
		return model.User{}, err
	}
	u, err := store.UpsertUser(ctx, email, name)
	if err != nil {
		return model.User{}, fmt.Errorf("register user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	store, err := s.ready()
	if err != nil {
		return model.User{}, err
	}
	u, err := store.GetUser(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// --- Contacts ---

// ListContacts returns scored contacts. With reconnect set they are ordered
// by staleness (never-contacted first) before limit applies. A non-positive
// limit returns every contact.
func (s *Service) ListContacts(ctx context.Context, f repository.ContactFilter, reconnectOrder bool, limit int) ([]types.ContactView, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	contacts, err := store.ListContacts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if reconnectOrder {
		items := reconnect.Rank(contacts, s.Now(), limit)
		contacts = make([]model.Contact, len(items))
		for i, it := range items {
			contacts[i] = it.Contact
		}
	} else if limit > 0 && len(contacts) > limit {
		contacts = contacts[:limit]
	}
	metrics.UpdateContactsTotal(len(contacts))
	return s.ScoreContacts(ctx, contacts)
}

// ScoreContacts builds views for contacts concurrently, preserving order.
// All contacts are scored against the same instant.
func (s *Service) ScoreContacts(ctx context.Context, contacts []model.Contact) ([]types.ContactView, error) {
	start := time.Now()
	now := s.Now()
	views := make([]types.ContactView, len(contacts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.scoreWorkers)
	for i := range contacts {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			views[i] = View(contacts[i], now)
			metrics.RecordScore(views[i].Score, string(views[i].Label))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score contacts: %w", err)
	}
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	return views, nil
}

// View decorates a contact with its score, badge and staleness at now.
func View(c model.Contact, now time.Time) types.ContactView {
	b := scoring.Compute(c.Profile(), c.InteractionDates(), now)
	v := types.ContactView{
		Contact:   c,
		Score:     b.Total,
		Label:     scoring.LabelFor(b.Total),
		Color:     scoring.ColorFor(b.Total),
		Breakdown: b,
	}
	item := reconnect.Build([]model.Contact{c}, now)[0]
	v.LastInteraction = item.LastInteraction
	v.DaysSince = item.DaysSince
	return v
}

// GetContact returns one scored contact.
func (s *Service) GetContact(ctx context.Context, userID, id string) (types.ContactView, error) {
	store, err := s.ready()
	if err != nil {
		return types.ContactView{}, err
	}
	c, err := store.GetContact(ctx, userID, id)
	if err != nil {
		return types.ContactView{}, fmt.Errorf("get contact: %w", err)
	}
	return View(c, s.Now()), nil
}

// CreateContact stores a new contact and returns its view.
func (s *Service) CreateContact(ctx context.Context, in repository.ContactInput) (types.ContactView, error) {
	store, err := s.ready()
	if err != nil {
		return types.ContactView{}, err
	}
	c, err := store.CreateContact(ctx, in)
	if err != nil {
		return types.ContactView{}, fmt.Errorf("create contact: %w", err)
	}
	s.logger.Debug(ctx, "contact created", logger.String("contactID", c.ID), logger.String("userID", c.UserID))
	return View(c, s.Now()), nil
}

// UpdateContact patches a contact and returns its view.
func (s *Service) UpdateContact(ctx context.Context, userID, id string, p repository.ContactPatch) (types.ContactView, error) {
	store, err := s.ready()
	if err != nil {
		return types.ContactView{}, err
	}
	c, err := store.UpdateContact(ctx, userID, id, p)
	if err != nil {
		return types.ContactView{}, fmt.Errorf("update contact: %w", err)
	}
	return View(c, s.Now()), nil
}

// DeleteContact removes a contact.
func (s *Service) DeleteContact(ctx context.Context, userID, id string) error {
	store, err := s.ready()
	if err != nil {
		return err
	}
	if err := store.DeleteContact(ctx, userID, id); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

// --- Groups ---

// ListGroups returns the user's groups with member counts, by name.
func (s *Service) ListGroups(ctx context.Context, userID string) ([]model.Group, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	out, err := store.ListGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return out, nil
}

// GetGroup returns one group with its member contacts.
func (s *Service) GetGroup(ctx context.Context, userID, id string) (model.Group, error) {
	store, err := s.ready()
	if err != nil {
		return model.Group{}, err
	}
	out, err := store.GetGroup(ctx, userID, id)
	if err != nil {
		return model.Group{}, fmt.Errorf("get group: %w", err)
	}
	return out, nil
}

// CreateGroup stores a new group.
func (s *Service) CreateGroup(ctx context.Context, in repository.GroupInput) (model.Group, error) {
	store, err := s.ready()
	if err != nil {
		return model.Group{}, err
	}
	out, err := store.CreateGroup(ctx, in)
	if err != nil {
		return model.Group{}, fmt.Errorf("create group: %w", err)
	}
	return out, nil
}

// UpdateGroup renames or recolours a group.
func (s *Service) UpdateGroup(ctx context.Context, userID, id string, p repository.GroupPatch) (model.Group, error) {
	store, err := s.ready()
	if err != nil {
		return model.Group{}, err
	}
	out, err := store.UpdateGroup(ctx, userID, id, p)
	if err != nil {
		return model.Group{}, fmt.Errorf("update group: %w", err)
	}
	return out, nil
}

// DeleteGroup removes a group and its member links.
func (s *Service) DeleteGroup(ctx context.Context, userID, id string) error {
	store, err := s.ready()
	if err != nil {
		return err
	}
	if err := store.DeleteGroup(ctx, userID, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// --- Activities ---

// ListActivities returns the user's activities with member counts, by name.
func (s *Service) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	out, err := store.ListActivities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}

// GetActivity returns one activity with its member contacts.
func (s *Service) GetActivity(ctx context.Context, userID, id string) (model.Activity, error) {
	store, err := s.ready()
	if err != nil {
		return model.Activity{}, err
	}
	out, err := store.GetActivity(ctx, userID, id)
	if err != nil {
		return model.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return out, nil
}

// CreateActivity stores a new activity.
func (s *Service) CreateActivity(ctx context.Context, in repository.ActivityInput) (model.Activity, error) {
	store, err := s.ready()
	if err != nil {
		return model.Activity{}, err
	}
	out, err := store.CreateActivity(ctx, in)
	if err != nil {
		return model.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	return out, nil
}

// UpdateActivity renames an activity or changes its emoji.
func (s *Service) UpdateActivity(ctx context.Context, userID, id string, p repository.ActivityPatch) (model.Activity, error) {
	store, err := s.ready()
	if err != nil {
		return model.Activity{}, err
	}
	out, err := store.UpdateActivity(ctx, userID, id, p)
	if err != nil {
		return model.Activity{}, fmt.Errorf("update activity: %w", err)
	}
	return out, nil
}

// DeleteActivity removes an activity and its member links.
func (s *Service) DeleteActivity(ctx context.Context, userID, id string) error {
	store, err := s.ready()
	if err != nil {
		return err
	}
	if err := store.DeleteActivity(ctx, userID, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// --- Interactions ---

// LogInteraction stores an interaction. A non-empty idempotencyKey that was
// already used returns the earlier interaction's ID with duplicate=true and
// writes nothing. A zero date is taken from the service clock.
func (s *Service) LogInteraction(ctx context.Context, idempotencyKey string, in repository.InteractionInput) (it model.Interaction, duplicate bool, err error) {
	store, err := s.ready()
	if err != nil {
		return model.Interaction{}, false, err
	}
	if in.Date.IsZero() {
		in.Date = s.Now()
	}

	if idempotencyKey != "" {
		key := in.UserID + "/" + idempotencyKey
		if id, seen := s.deduper.Reserve(ctx, key); seen {
			metrics.RecordInteractionDuplicate()
			s.logger.Debug(ctx, "duplicate interaction skipped",
				logger.String("idempotencyKey", idempotencyKey),
				logger.String("interactionID", id),
			)
			if id == "" {
				return model.Interaction{}, true, ErrDuplicatePending
			}
			return model.Interaction{ID: id, UserID: in.UserID}, true, nil
		}
		defer func() {
			if err != nil {
				s.deduper.Unrecord(ctx, key)
				return
			}
			s.deduper.Complete(ctx, key, it.ID)
		}()
	}

	it, err = store.CreateInteraction(ctx, in)
	if err != nil {
		return model.Interaction{}, false, fmt.Errorf("log interaction: %w", err)
	}
	metrics.RecordInteractionLogged(string(it.Type))
	s.logger.Debug(ctx, "interaction logged",
		logger.String("interactionID", it.ID),
		logger.Int("contacts", len(it.ContactIDs)),
		logger.String("type", string(it.Type)),
	)
	return it, false, nil
}

// ListInteractions returns interactions newest first.
func (s *Service) ListInteractions(ctx context.Context, f repository.InteractionFilter) ([]model.Interaction, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	out, err := store.ListInteractions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return out, nil
}

// --- Dashboard ---

// Dashboard returns headline counts and the most overdue contacts. A
// non-positive limit uses the configured dashboard limit.
func (s *Service) Dashboard(ctx context.Context, userID string, limit int) (types.DashboardView, error) {
	store, err := s.ready()
	if err != nil {
		return types.DashboardView{}, err
	}
	if limit <= 0 {
		limit = s.dashboardLimit
	}
	contacts, err := store.ListContacts(ctx, repository.ContactFilter{UserID: userID})
	if err != nil {
		return types.DashboardView{}, fmt.Errorf("dashboard: %w", err)
	}

	stats := types.DashboardStats{TotalContacts: len(contacts)}
	for _, c := range contacts {
		if len(c.Interactions) > 0 {
			stats.RecentInteractions++
		} else {
			stats.ContactsToReconnect++
		}
	}
	metrics.UpdateReconnectWithoutInteraction(stats.ContactsToReconnect)

	items := reconnect.Rank(contacts, s.Now(), limit)
	top := make([]model.Contact, len(items))
	for i, it := range items {
		top[i] = it.Contact
	}
	views, err := s.ScoreContacts(ctx, top)
	if err != nil {
		return types.DashboardView{}, err
	}
	return types.DashboardView{Stats: stats, Reconnect: views}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started,
		"scoreWorkers":   s.scoreWorkers,
		"dedupeSize":     s.dedupeSize,
		"dashboardLimit": s.dashboardLimit,
	}
	if s.started {
		stats["dedupeEntries"] = s.deduper.Size()
		stats["store"] = fmt.Sprintf("%T", s.store)
	}
	return stats
}

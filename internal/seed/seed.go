// Package seed loads the demo data set into a contact store and inspects a
// running server's reconnect ordering.
package seed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/circle/internal/adapters/repository"
	"github.com/okian/circle/pkg/logger"
)

// Result summarises a seeding run.
type Result struct {
	UserID       string
	Skipped      bool
	Groups       map[string]string // name -> id
	Activities   map[string]string
	Contacts     map[string]string
	Interactions int
}

// Seeder writes the demo data set.
type Seeder struct {
	store   repository.Store
	now     func() time.Time
	workers int
	logger  logger.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithClock sets the reference time interactions are dated from.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWorkers bounds concurrent store writes.
func WithWorkers(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Seeder over store.
func New(store repository.Store, opts ...Option) *Seeder {
	s := &Seeder{store: store, now: time.Now, workers: 4, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run creates the demo user and, when it has no contacts yet, its groups,
// activities, contacts and interactions. A user that already has contacts
// is left untouched and reported as skipped.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	u, err := s.store.UpsertUser(ctx, DemoEmail, DemoName)
	if err != nil {
		return Result{}, fmt.Errorf("seed user: %w", err)
	}
	res := Result{
		UserID:     u.ID,
		Groups:     map[string]string{},
		Activities: map[string]string{},
		Contacts:   map[string]string{},
	}

	n, err := s.store.Count(ctx, u.ID)
	if err != nil {
		return Result{}, fmt.Errorf("seed count: %w", err)
	}
	if n > 0 {
		res.Skipped = true
		s.logger.Info(ctx, "demo user already seeded", logger.String("userID", u.ID), logger.Int("contacts", n))
		return res, nil
	}

	if err := s.createTags(ctx, u.ID, &res); err != nil {
		return Result{}, err
	}
	if err := s.createContacts(ctx, u.ID, &res); err != nil {
		return Result{}, err
	}
	if err := s.createInteractions(ctx, u.ID, &res); err != nil {
		return Result{}, err
	}

	s.logger.Info(ctx, "seed completed",
		logger.String("userID", u.ID),
		logger.Int("groups", len(res.Groups)),
		logger.Int("activities", len(res.Activities)),
		logger.Int("contacts", len(res.Contacts)),
		logger.Int("interactions", res.Interactions),
	)
	return res, nil
}

// createTags creates groups and activities concurrently.
func (s *Seeder) createTags(ctx context.Context, userID string, res *Result) error {
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, gs := range groupSeeds {
		g.Go(func() error {
			grp, err := s.store.CreateGroup(gCtx, repository.GroupInput{UserID: userID, Name: gs.name, Color: optional(gs.extra)})
			if err != nil {
				return fmt.Errorf("seed group %q: %w", gs.name, err)
			}
			mu.Lock()
			res.Groups[gs.name] = grp.ID
			mu.Unlock()
			return nil
		})
	}
	for _, as := range activitySeeds {
		g.Go(func() error {
			act, err := s.store.CreateActivity(gCtx, repository.ActivityInput{UserID: userID, Name: as.name, Emoji: optional(as.extra)})
			if err != nil {
				return fmt.Errorf("seed activity %q: %w", as.name, err)
			}
			mu.Lock()
			res.Activities[as.name] = act.ID
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// createContacts creates contacts with their group and activity links.
func (s *Seeder) createContacts(ctx context.Context, userID string, res *Result) error {
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, cs := range contactSeeds {
		in := repository.ContactInput{
			UserID:   userID,
			Name:     cs.name,
			Birthday: birthday(cs.birthday),
			Phone:    optional(cs.phone),
			Email:    optional(cs.email),
			Location: optional(cs.location),
			Job:      optional(cs.job),
			Company:  optional(cs.company),
			Socials:  cs.socials,
			HowWeMet: optional(cs.howWeMet),
			Notes:    optional(cs.notes),
		}
		for _, name := range cs.groups {
			in.GroupIDs = append(in.GroupIDs, res.Groups[name])
		}
		for _, name := range cs.activities {
			in.ActivityIDs = append(in.ActivityIDs, res.Activities[name])
		}
		g.Go(func() error {
			c, err := s.store.CreateContact(gCtx, in)
			if err != nil {
				return fmt.Errorf("seed contact %q: %w", in.Name, err)
			}
			mu.Lock()
			res.Contacts[in.Name] = c.ID
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// createInteractions logs the demo interactions relative to the clock.
func (s *Seeder) createInteractions(ctx context.Context, userID string, res *Result) error {
	now := s.now().UTC()
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, is := range interactionSeeds {
		g.Go(func() error {
			_, err := s.store.CreateInteraction(gCtx, repository.InteractionInput{
				UserID:     userID,
				ContactIDs: []string{res.Contacts[is.contact]},
				Date:       now.Add(-time.Duration(is.daysAgo) * 24 * time.Hour),
				Type:       is.kind,
				Note:       optional(is.note),
			})
			if err != nil {
				return fmt.Errorf("seed interaction with %q: %w", is.contact, err)
			}
			mu.Lock()
			res.Interactions++
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

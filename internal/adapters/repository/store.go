// Package repository defines the contact store interface, its inputs and its
// implementations.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/circle/internal/domain/model"
	"github.com/okian/circle/pkg/metrics"
)

// ContactFilter selects contacts of one user. Search matches name, email and
// notes case-insensitively.
type ContactFilter struct {
	UserID     string
	GroupID    string
	ActivityID string
	Search     string
	Archived   bool
}

// ContactInput creates a contact. Empty optional strings are stored as absent.
type ContactInput struct {
	UserID      string
	Name        string
	Birthday    *time.Time
	Phone       *string
	Email       *string
	Location    *string
	Job         *string
	Company     *string
	Socials     map[string]string
	PhotoURL    *string
	HowWeMet    *string
	Pronouns    *string
	Notes       *string
	GroupIDs    []string
	ActivityIDs []string
}

// ContactPatch updates a contact. Nil fields are left unchanged; a pointer to
// an empty string (or a zero birthday) clears the field. Non-nil GroupIDs and
// ActivityIDs replace the contact's links.
type ContactPatch struct {
	Name        *string
	Birthday    *time.Time
	Phone       *string
	Email       *string
	Location    *string
	Job         *string
	Company     *string
	Socials     map[string]string
	PhotoURL    *string
	HowWeMet    *string
	Pronouns    *string
	Notes       *string
	Archived    *bool
	GroupIDs    *[]string
	ActivityIDs *[]string
}

// GroupInput creates a group.
type GroupInput struct {
	UserID string
	Name   string
	Color  *string
}

// GroupPatch updates a group; nil fields are unchanged.
type GroupPatch struct {
	Name  *string
	Color *string
}

// ActivityInput creates an activity.
type ActivityInput struct {
	UserID string
	Name   string
	Emoji  *string
}

// ActivityPatch updates an activity; nil fields are unchanged.
type ActivityPatch struct {
	Name  *string
	Emoji *string
}

// InteractionInput logs one interaction with at least one contact.
type InteractionInput struct {
	UserID     string
	ContactIDs []string
	Date       time.Time
	Type       model.InteractionType
	Note       *string
}

// InteractionFilter selects interactions of one user. Start and End bound
// the date inclusively and only apply when both are set.
type InteractionFilter struct {
	UserID    string
	ContactID string
	Type      model.InteractionType
	Start     *time.Time
	End       *time.Time
}

// Store provides read/write access to a user's relationship data.
// Every method other than the user methods is scoped to a user ID; records
// of other users are reported as ErrNotFound.
type Store interface {
	UpsertUser(ctx context.Context, email, name string) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)

	// ListContacts returns contacts ordered by name, each with its groups,
	// activities and full interaction history (newest first).
	ListContacts(ctx context.Context, f ContactFilter) ([]model.Contact, error)
	GetContact(ctx context.Context, userID, id string) (model.Contact, error)
	CreateContact(ctx context.Context, in ContactInput) (model.Contact, error)
	UpdateContact(ctx context.Context, userID, id string, p ContactPatch) (model.Contact, error)
	DeleteContact(ctx context.Context, userID, id string) error

	// ListGroups returns groups ordered by name with their contact counts.
	ListGroups(ctx context.Context, userID string) ([]model.Group, error)
	// GetGroup returns a group with its member contacts.
	GetGroup(ctx context.Context, userID, id string) (model.Group, error)
	CreateGroup(ctx context.Context, in GroupInput) (model.Group, error)
	UpdateGroup(ctx context.Context, userID, id string, p GroupPatch) (model.Group, error)
	DeleteGroup(ctx context.Context, userID, id string) error

	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
	GetActivity(ctx context.Context, userID, id string) (model.Activity, error)
	CreateActivity(ctx context.Context, in ActivityInput) (model.Activity, error)
	UpdateActivity(ctx context.Context, userID, id string, p ActivityPatch) (model.Activity, error)
	DeleteActivity(ctx context.Context, userID, id string) error

	CreateInteraction(ctx context.Context, in InteractionInput) (model.Interaction, error)
	// ListInteractions returns interactions newest first with their contacts.
	ListInteractions(ctx context.Context, f InteractionFilter) ([]model.Interaction, error)

	// Count returns the number of non-archived contacts of a user.
	Count(ctx context.Context, userID string) (int, error)

	Close() error
}

// observe records latency and failures of a store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}

// nullable maps whitespace-only strings to nil.
func nullable(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// nullableTime maps the zero time to nil and normalizes to UTC.
func nullableTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}

func requireName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return n, nil
}

func (in ContactInput) normalize() (ContactInput, error) {
	if err := requireUser(in.UserID); err != nil {
		return in, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return in, err
	}
	in.Name = name
	in.Birthday = nullableTime(in.Birthday)
	in.Phone = nullable(in.Phone)
	in.Email = nullable(in.Email)
	in.Location = nullable(in.Location)
	in.Job = nullable(in.Job)
	in.Company = nullable(in.Company)
	in.PhotoURL = nullable(in.PhotoURL)
	in.HowWeMet = nullable(in.HowWeMet)
	in.Pronouns = nullable(in.Pronouns)
	in.Notes = nullable(in.Notes)
	in.GroupIDs = uniq(in.GroupIDs)
	in.ActivityIDs = uniq(in.ActivityIDs)
	return in, nil
}

// apply merges the patch into c.
func (p ContactPatch) apply(c *model.Contact) error {
	if p.Name != nil {
		name, err := requireName(*p.Name)
		if err != nil {
			return err
		}
		c.Name = name
	}
	if p.Birthday != nil {
		c.Birthday = nullableTime(p.Birthday)
	}
	for _, f := range []struct {
		src *string
		dst **string
	}{
		{p.Phone, &c.Phone},
		{p.Email, &c.Email},
		{p.Location, &c.Location},
		{p.Job, &c.Job},
		{p.Company, &c.Company},
		{p.PhotoURL, &c.PhotoURL},
		{p.HowWeMet, &c.HowWeMet},
		{p.Pronouns, &c.Pronouns},
		{p.Notes, &c.Notes},
	} {
		if f.src != nil {
			*f.dst = nullable(f.src)
		}
	}
	if p.Socials != nil {
		c.Socials = p.Socials
		if len(c.Socials) == 0 {
			c.Socials = nil
		}
	}
	if p.Archived != nil {
		c.Archived = *p.Archived
	}
	return nil
}

func (in InteractionInput) normalize() (InteractionInput, error) {
	if err := requireUser(in.UserID); err != nil {
		return in, err
	}
	in.ContactIDs = uniq(in.ContactIDs)
	if len(in.ContactIDs) == 0 {
		return in, fmt.Errorf("%w: at least one contact is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = model.InteractionOther
	}
	if !in.Type.Valid() {
		return in, fmt.Errorf("%w: unknown interaction type %q", ErrInvalidInput, in.Type)
	}
	if in.Date.IsZero() {
		return in, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	in.Date = in.Date.UTC()
	in.Note = nullable(in.Note)
	return in, nil
}

// uniq drops blanks and duplicates, keeping first occurrences.
func uniq(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// matchesSearch reports whether term occurs in the contact's name, email or
// notes, ignoring case.
func matchesSearch(c model.Contact, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Name), term) {
		return true
	}
	for _, s := range []*string{c.Email, c.Notes} {
		if s != nil && strings.Contains(strings.ToLower(*s), term) {
			return true
		}
	}
	return false
}

// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// User owns contacts, groups, activities and interactions.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact is a person tracked by a user. Optional profile fields are nil
// when absent.
type Contact struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Name      string            `json:"name"`
	Birthday  *time.Time        `json:"birthday,omitempty"`
	Phone     *string           `json:"phone,omitempty"`
	Email     *string           `json:"email,omitempty"`
	Location  *string           `json:"location,omitempty"`
	Job       *string           `json:"job,omitempty"`
	Company   *string           `json:"company,omitempty"`
	Socials   map[string]string `json:"socials,omitempty"`
	PhotoURL  *string           `json:"photoUrl,omitempty"`
	HowWeMet  *string           `json:"howWeMet,omitempty"`
	Pronouns  *string           `json:"pronouns,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	Archived  bool              `json:"archived"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`

	Groups       []Group       `json:"groups"`
	Activities   []Activity    `json:"activities"`
	Interactions []Interaction `json:"interactions"`
}

// Profile holds the ten profile fields that count towards completeness.
type Profile struct {
	Name     *string
	Birthday *time.Time
	Phone    *string
	Email    *string
	Location *string
	Job      *string
	Company  *string
	PhotoURL *string
	HowWeMet *string
	Notes    *string
}

// Profile projects the contact onto its scored profile fields.
func (c Contact) Profile() Profile {
	name := c.Name
	return Profile{
		Name:     &name,
		Birthday: c.Birthday,
		Phone:    c.Phone,
		Email:    c.Email,
		Location: c.Location,
		Job:      c.Job,
		Company:  c.Company,
		PhotoURL: c.PhotoURL,
		HowWeMet: c.HowWeMet,
		Notes:    c.Notes,
	}
}

// InteractionDates returns the timestamps of the contact's interactions in
// the order they were loaded.
func (c Contact) InteractionDates() []time.Time {
	out := make([]time.Time, len(c.Interactions))
	for i, in := range c.Interactions {
		out[i] = in.Date
	}
	return out
}

// LastInteraction returns the most recent interaction timestamp, if any.
func (c Contact) LastInteraction() (time.Time, bool) {
	var last time.Time
	found := false
	for _, in := range c.Interactions {
		if !found || in.Date.After(last) {
			last = in.Date
			found = true
		}
	}
	return last, found
}

// Group is a named, coloured collection of contacts.
type Group struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Color        *string   `json:"color,omitempty"`
	ContactCount int       `json:"contactCount"`
	Contacts     []Contact `json:"contacts,omitempty"`
}

// Activity is a shared-interest tag such as "Hiking".
type Activity struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Emoji        *string   `json:"emoji,omitempty"`
	ContactCount int       `json:"contactCount"`
	Contacts     []Contact `json:"contacts,omitempty"`
}

// InteractionType classifies an interaction.
type InteractionType string

// Interaction types.
const (
	InteractionCall  InteractionType = "CALL"
	InteractionText  InteractionType = "TEXT"
	InteractionMetUp InteractionType = "MET_UP"
	InteractionOther InteractionType = "OTHER"
)

// InteractionTypes lists every valid interaction type.
var InteractionTypes = []InteractionType{ //nolint:gochecknoglobals // enum listing
	InteractionCall, InteractionText, InteractionMetUp, InteractionOther,
}

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionCall, InteractionText, InteractionMetUp, InteractionOther:
		return true
	}
	return false
}

// ParseInteractionType parses s case-insensitively. "met up" and "met-up"
// are accepted for MET_UP.
func ParseInteractionType(s string) (InteractionType, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	t := InteractionType(norm)
	if !t.Valid() {
		return "", fmt.Errorf("unknown interaction type %q", s)
	}
	return t, nil
}

// Interaction is a timestamped record of contact with one or more people.
type Interaction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Date       time.Time       `json:"date"`
	Type       InteractionType `json:"type"`
	Note       *string         `json:"note,omitempty"`
	ContactIDs []string        `json:"contactIds"`
	Contacts   []Contact       `json:"contacts,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

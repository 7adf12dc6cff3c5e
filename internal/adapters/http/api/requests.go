package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/circle/internal/adapters/repository"
	"github.com/okian/circle/internal/domain/model"
)

var errNoContacts = errors.New("at least one contact is required")

type userRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=200"`
}

// contactRequest is the body of POST /api/contacts.
type contactRequest struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Birthday    *string           `json:"birthday"`
	Phone       *string           `json:"phone" validate:"omitempty,max=50"`
	Email       *string           `json:"email" validate:"omitempty,email"`
	Location    *string           `json:"location" validate:"omitempty,max=200"`
	Job         *string           `json:"job" validate:"omitempty,max=200"`
	Company     *string           `json:"company" validate:"omitempty,max=200"`
	Socials     map[string]string `json:"socials"`
	PhotoURL    *string           `json:"photoUrl" validate:"omitempty,url"`
	HowWeMet    *string           `json:"howWeMet" validate:"omitempty,max=2000"`
	Pronouns    *string           `json:"pronouns" validate:"omitempty,max=50"`
	Notes       *string           `json:"notes" validate:"omitempty,max=5000"`
	GroupIDs    []string          `json:"groupIds" validate:"omitempty,dive,required"`
	ActivityIDs []string          `json:"activityIds" validate:"omitempty,dive,required"`
}

func (c contactRequest) input(userID string) (repository.ContactInput, error) {
	in := repository.ContactInput{
		UserID:      userID,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Location:    c.Location,
		Job:         c.Job,
		Company:     c.Company,
		Socials:     c.Socials,
		PhotoURL:    c.PhotoURL,
		HowWeMet:    c.HowWeMet,
		Pronouns:    c.Pronouns,
		Notes:       c.Notes,
		GroupIDs:    c.GroupIDs,
		ActivityIDs: c.ActivityIDs,
	}
	if c.Birthday != nil && strings.TrimSpace(*c.Birthday) != "" {
		t, err := parseTime(*c.Birthday)
		if err != nil {
			return repository.ContactInput{}, fmt.Errorf("birthday: %w", err)
		}
		in.Birthday = &t
	}
	return in, nil
}

// contactPatchRequest is the body of PATCH /api/contacts/{id}. Absent fields
// are left unchanged; empty strings clear a field.
type contactPatchRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=200"`
	Birthday    *string           `json:"birthday"`
	Phone       *string           `json:"phone" validate:"omitempty,max=50"`
	Email       *string           `json:"email" validate:"omitempty,email"`
	Location    *string           `json:"location" validate:"omitempty,max=200"`
	Job         *string           `json:"job" validate:"omitempty,max=200"`
	Company     *string           `json:"company" validate:"omitempty,max=200"`
	Socials     map[string]string `json:"socials"`
	PhotoURL    *string           `json:"photoUrl" validate:"omitempty,url"`
	HowWeMet    *string           `json:"howWeMet" validate:"omitempty,max=2000"`
	Pronouns    *string           `json:"pronouns" validate:"omitempty,max=50"`
	Notes       *string           `json:"notes" validate:"omitempty,max=5000"`
	Archived    *bool             `json:"archived"`
	GroupIDs    *[]string         `json:"groupIds"`
	ActivityIDs *[]string         `json:"activityIds"`
}

func (c contactPatchRequest) patch() (repository.ContactPatch, error) {
	p := repository.ContactPatch{
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Location:    c.Location,
		Job:         c.Job,
		Company:     c.Company,
		Socials:     c.Socials,
		PhotoURL:    c.PhotoURL,
		HowWeMet:    c.HowWeMet,
		Pronouns:    c.Pronouns,
		Notes:       c.Notes,
		Archived:    c.Archived,
		GroupIDs:    c.GroupIDs,
		ActivityIDs: c.ActivityIDs,
	}
	if c.Birthday != nil {
		var t time.Time
		if strings.TrimSpace(*c.Birthday) != "" {
			var err error
			if t, err = parseTime(*c.Birthday); err != nil {
				return repository.ContactPatch{}, fmt.Errorf("birthday: %w", err)
			}
		}
		p.Birthday = &t
	}
	return p, nil
}

type groupRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

type groupPatchRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

type activityRequest struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Emoji *string `json:"emoji" validate:"omitempty,max=16"`
}

type activityPatchRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Emoji *string `json:"emoji" validate:"omitempty,max=16"`
}

// interactionRequest is the body of POST /api/interactions.
type interactionRequest struct {
	ContactIDs []string `json:"contactIds" validate:"dive,required"`
	Date       string   `json:"date"`
	Type       string   `json:"type"`
	Note       *string  `json:"note" validate:"omitempty,max=5000"`
}

func (i interactionRequest) input(userID string) (repository.InteractionInput, error) {
	in := repository.InteractionInput{
		UserID:     userID,
		ContactIDs: i.ContactIDs,
		Note:       i.Note,
	}
	// An absent date is filled in with the service clock.
	if strings.TrimSpace(i.Date) != "" {
		date, err := parseTime(i.Date)
		if err != nil {
			return repository.InteractionInput{}, fmt.Errorf("date: %w", err)
		}
		in.Date = date
	}
	if strings.TrimSpace(i.Type) != "" {
		var err error
		if in.Type, err = model.ParseInteractionType(i.Type); err != nil {
			return repository.InteractionInput{}, err
		}
	}
	return in, nil
}

// interactionResponse is returned by POST /api/interactions. Duplicate
// submissions carry only the original ID.
type interactionResponse struct {
	model.Interaction
	Duplicate bool `json:"duplicate"`
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q; must be RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// contactFilter reads the list filters of GET /api/contacts.
func contactFilter(userID string, q url.Values) (repository.ContactFilter, error) {
	f := repository.ContactFilter{
		UserID:     userID,
		GroupID:    q.Get("groupId"),
		ActivityID: q.Get("activityId"),
		Search:     strings.TrimSpace(q.Get("search")),
	}
	archived, err := boolParam(q, "archived")
	if err != nil {
		return repository.ContactFilter{}, err
	}
	f.Archived = archived
	return f, nil
}

// interactionFilter reads the filters of GET /api/interactions.
func interactionFilter(userID string, q url.Values) (repository.InteractionFilter, error) {
	f := repository.InteractionFilter{UserID: userID, ContactID: q.Get("contactId")}
	if t := q.Get("type"); t != "" {
		typ, err := model.ParseInteractionType(t)
		if err != nil {
			return repository.InteractionFilter{}, err
		}
		f.Type = typ
	}
	start, end := q.Get("startDate"), q.Get("endDate")
	if start != "" && end != "" {
		s, err := parseTime(start)
		if err != nil {
			return repository.InteractionFilter{}, fmt.Errorf("startDate: %w", err)
		}
		e, err := parseTime(end)
		if err != nil {
			return repository.InteractionFilter{}, fmt.Errorf("endDate: %w", err)
		}
		f.Start, f.End = &s, &e
	}
	return f, nil
}

func boolParam(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: must be a boolean", key)
	}
	return b, nil
}

// limitParam parses limit and clamps it to max. An absent limit yields max.
func limitParam(q url.Values, maxLimit int) (int, error) {
	v := q.Get("limit")
	if v == "" {
		return maxLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit: must be a positive integer")
	}
	return min(n, maxLimit), nil
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

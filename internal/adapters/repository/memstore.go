package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/circle/internal/domain/model"
)

// MemoryStore is an in-process Store guarded by a single RWMutex.
type MemoryStore struct {
	opts options

	mu           sync.RWMutex
	users        map[string]model.User
	usersByEmail map[string]string
	contacts     map[string]model.Contact // without relations
	contactGroup map[string][]string      // contact id -> group ids
	contactActiv map[string][]string      // contact id -> activity ids
	groups       map[string]model.Group
	activities   map[string]model.Activity
	interactions map[string]model.Interaction
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:         o,
		users:        make(map[string]model.User),
		usersByEmail: make(map[string]string),
		contacts:     make(map[string]model.Contact),
		contactGroup: make(map[string][]string),
		contactActiv: make(map[string][]string),
		groups:       make(map[string]model.Group),
		activities:   make(map[string]model.Activity),
		interactions: make(map[string]model.Interaction),
	}
}

func (s *MemoryStore) now() time.Time { return s.opts.now().UTC() }

func (s *MemoryStore) UpsertUser(_ context.Context, email, name string) (u model.User, err error) {
	defer func(start time.Time) { observe("upsert_user", start, err) }(time.Now())
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.usersByEmail[email]; ok {
		u = s.users[id]
		if name != "" {
			u.Name = name
			s.users[id] = u
		}
		return u, nil
	}
	u = model.User{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: s.now()}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) ListContacts(_ context.Context, f ContactFilter) (out []model.Contact, err error) {
	defer func(start time.Time) { observe("list_contacts", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out = []model.Contact{}
	for _, c := range s.contacts {
		if c.UserID != f.UserID || c.Archived != f.Archived {
			continue
		}
		if f.GroupID != "" && !slices.Contains(s.contactGroup[c.ID], f.GroupID) {
			continue
		}
		if f.ActivityID != "" && !slices.Contains(s.contactActiv[c.ID], f.ActivityID) {
			continue
		}
		if !matchesSearch(c, f.Search) {
			continue
		}
		out = append(out, s.hydrate(c))
	}
	sortContacts(out)
	return out, nil
}

func (s *MemoryStore) GetContact(_ context.Context, userID, id string) (c model.Contact, err error) {
	defer func(start time.Time) { observe("get_contact", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getContactLocked(userID, id)
}

func (s *MemoryStore) getContactLocked(userID, id string) (model.Contact, error) {
	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	return s.hydrate(c), nil
}

func (s *MemoryStore) CreateContact(_ context.Context, in ContactInput) (c model.Contact, err error) {
	defer func(start time.Time) { observe("create_contact", start, err) }(time.Now())
	in, err = in.normalize()
	if err != nil {
		return model.Contact{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.requireUserLocked(in.UserID); err != nil {
		return model.Contact{}, err
	}
	if err = s.checkLinksLocked(in.UserID, in.GroupIDs, in.ActivityIDs); err != nil {
		return model.Contact{}, err
	}
	now := s.now()
	c = model.Contact{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Name:      in.Name,
		Birthday:  in.Birthday,
		Phone:     in.Phone,
		Email:     in.Email,
		Location:  in.Location,
		Job:       in.Job,
		Company:   in.Company,
		Socials:   cloneSocials(in.Socials),
		PhotoURL:  in.PhotoURL,
		HowWeMet:  in.HowWeMet,
		Pronouns:  in.Pronouns,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.contacts[c.ID] = c
	s.contactGroup[c.ID] = slices.Clone(in.GroupIDs)
	s.contactActiv[c.ID] = slices.Clone(in.ActivityIDs)
	return s.hydrate(c), nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, userID, id string, p ContactPatch) (c model.Contact, err error) {
	defer func(start time.Time) { observe("update_contact", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	var groupIDs, activityIDs []string
	if p.GroupIDs != nil {
		groupIDs = uniq(*p.GroupIDs)
	}
	if p.ActivityIDs != nil {
		activityIDs = uniq(*p.ActivityIDs)
	}
	if err = s.checkLinksLocked(userID, groupIDs, activityIDs); err != nil {
		return model.Contact{}, err
	}
	if err = p.apply(&c); err != nil {
		return model.Contact{}, err
	}
	c.Socials = cloneSocials(c.Socials)
	c.UpdatedAt = s.now()
	s.contacts[id] = c
	if p.GroupIDs != nil {
		s.contactGroup[id] = groupIDs
	}
	if p.ActivityIDs != nil {
		s.contactActiv[id] = activityIDs
	}
	return s.hydrate(c), nil
}

func (s *MemoryStore) DeleteContact(_ context.Context, userID, id string) (err error) {
	defer func(start time.Time) { observe("delete_contact", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok || c.UserID != userID {
		return fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	delete(s.contacts, id)
	delete(s.contactGroup, id)
	delete(s.contactActiv, id)
	for iid, in := range s.interactions {
		if i := slices.Index(in.ContactIDs, id); i >= 0 {
			in.ContactIDs = slices.Delete(slices.Clone(in.ContactIDs), i, i+1)
			s.interactions[iid] = in
		}
	}
	return nil
}

func (s *MemoryStore) ListGroups(_ context.Context, userID string) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Group{}
	for _, g := range s.groups {
		if g.UserID != userID {
			continue
		}
		g.ContactCount = s.countLinksLocked(s.contactGroup, g.ID)
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b model.Group) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}

func (s *MemoryStore) GetGroup(_ context.Context, userID, id string) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok || g.UserID != userID {
		return model.Group{}, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	g.Contacts = s.membersLocked(s.contactGroup, id)
	g.ContactCount = len(g.Contacts)
	return g, nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, in GroupInput) (model.Group, error) {
	if err := requireUser(in.UserID); err != nil {
		return model.Group{}, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return model.Group{}, err
	}
	g := model.Group{ID: uuid.NewString(), UserID: in.UserID, Name: name, Color: nullable(in.Color)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUserLocked(in.UserID); err != nil {
		return model.Group{}, err
	}
	s.groups[g.ID] = g
	return g, nil
}

func (s *MemoryStore) UpdateGroup(_ context.Context, userID, id string, p GroupPatch) (model.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok || g.UserID != userID {
		return model.Group{}, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	if p.Name != nil {
		name, err := requireName(*p.Name)
		if err != nil {
			return model.Group{}, err
		}
		g.Name = name
	}
	if p.Color != nil {
		g.Color = nullable(p.Color)
	}
	s.groups[id] = g
	g.ContactCount = s.countLinksLocked(s.contactGroup, id)
	return g, nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok || g.UserID != userID {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)
	unlink(s.contactGroup, id)
	return nil
}

func (s *MemoryStore) ListActivities(_ context.Context, userID string) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Activity{}
	for _, a := range s.activities {
		if a.UserID != userID {
			continue
		}
		a.ContactCount = s.countLinksLocked(s.contactActiv, a.ID)
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Activity) int { return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}

func (s *MemoryStore) GetActivity(_ context.Context, userID, id string) (model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok || a.UserID != userID {
		return model.Activity{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	a.Contacts = s.membersLocked(s.contactActiv, id)
	a.ContactCount = len(a.Contacts)
	return a, nil
}

func (s *MemoryStore) CreateActivity(_ context.Context, in ActivityInput) (model.Activity, error) {
	if err := requireUser(in.UserID); err != nil {
		return model.Activity{}, err
	}
	name, err := requireName(in.Name)
	if err != nil {
		return model.Activity{}, err
	}
	a := model.Activity{ID: uuid.NewString(), UserID: in.UserID, Name: name, Emoji: nullable(in.Emoji)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireUserLocked(in.UserID); err != nil {
		return model.Activity{}, err
	}
	s.activities[a.ID] = a
	return a, nil
}

func (s *MemoryStore) UpdateActivity(_ context.Context, userID, id string, p ActivityPatch) (model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok || a.UserID != userID {
		return model.Activity{}, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if p.Name != nil {
		name, err := requireName(*p.Name)
		if err != nil {
			return model.Activity{}, err
		}
		a.Name = name
	}
	if p.Emoji != nil {
		a.Emoji = nullable(p.Emoji)
	}
	s.activities[id] = a
	a.ContactCount = s.countLinksLocked(s.contactActiv, id)
	return a, nil
}

func (s *MemoryStore) DeleteActivity(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok || a.UserID != userID {
		return fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	delete(s.activities, id)
	unlink(s.contactActiv, id)
	return nil
}

func (s *MemoryStore) CreateInteraction(_ context.Context, in InteractionInput) (it model.Interaction, err error) {
	defer func(start time.Time) { observe("create_interaction", start, err) }(time.Now())
	in, err = in.normalize()
	if err != nil {
		return model.Interaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.requireUserLocked(in.UserID); err != nil {
		return model.Interaction{}, err
	}
	for _, cid := range in.ContactIDs {
		if c, ok := s.contacts[cid]; !ok || c.UserID != in.UserID {
			return model.Interaction{}, fmt.Errorf("%w: unknown contact %s", ErrInvalidInput, cid)
		}
	}
	it = model.Interaction{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Date:       in.Date,
		Type:       in.Type,
		Note:       in.Note,
		ContactIDs: slices.Clone(in.ContactIDs),
		CreatedAt:  s.now(),
	}
	s.interactions[it.ID] = it
	return s.withContactsLocked(it), nil
}

func (s *MemoryStore) ListInteractions(_ context.Context, f InteractionFilter) (out []model.Interaction, err error) {
	defer func(start time.Time) { observe("list_interactions", start, err) }(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()

	out = []model.Interaction{}
	for _, it := range s.interactions {
		if it.UserID != f.UserID {
			continue
		}
		if f.ContactID != "" && !slices.Contains(it.ContactIDs, f.ContactID) {
			continue
		}
		if f.Type != "" && it.Type != f.Type {
			continue
		}
		if f.Start != nil && f.End != nil && (it.Date.Before(*f.Start) || it.Date.After(*f.End)) {
			continue
		}
		out = append(out, s.withContactsLocked(it))
	}
	sortInteractions(out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.contacts {
		if c.UserID == userID && !c.Archived {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// hydrate attaches relations to a stored contact. Callers hold s.mu.
func (s *MemoryStore) hydrate(c model.Contact) model.Contact {
	c.Socials = cloneSocials(c.Socials)
	c.Groups = []model.Group{}
	for _, gid := range s.contactGroup[c.ID] {
		if g, ok := s.groups[gid]; ok {
			c.Groups = append(c.Groups, g)
		}
	}
	slices.SortFunc(c.Groups, func(a, b model.Group) int { return cmp.Compare(a.Name, b.Name) })
	c.Activities = []model.Activity{}
	for _, aid := range s.contactActiv[c.ID] {
		if a, ok := s.activities[aid]; ok {
			c.Activities = append(c.Activities, a)
		}
	}
	slices.SortFunc(c.Activities, func(a, b model.Activity) int { return cmp.Compare(a.Name, b.Name) })
	c.Interactions = []model.Interaction{}
	for _, it := range s.interactions {
		if slices.Contains(it.ContactIDs, c.ID) {
			it.ContactIDs = slices.Clone(it.ContactIDs)
			c.Interactions = append(c.Interactions, it)
		}
	}
	sortInteractions(c.Interactions)
	return c
}

func (s *MemoryStore) withContactsLocked(it model.Interaction) model.Interaction {
	it.ContactIDs = slices.Clone(it.ContactIDs)
	it.Contacts = make([]model.Contact, 0, len(it.ContactIDs))
	for _, cid := range it.ContactIDs {
		if c, ok := s.contacts[cid]; ok {
			c.Socials = cloneSocials(c.Socials)
			it.Contacts = append(it.Contacts, c)
		}
	}
	return it
}

func (s *MemoryStore) requireUserLocked(userID string) error {
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("%w: unknown user %s", ErrInvalidInput, userID)
	}
	return nil
}

func (s *MemoryStore) checkLinksLocked(userID string, groupIDs, activityIDs []string) error {
	for _, gid := range groupIDs {
		if g, ok := s.groups[gid]; !ok || g.UserID != userID {
			return fmt.Errorf("%w: unknown group %s", ErrInvalidInput, gid)
		}
	}
	for _, aid := range activityIDs {
		if a, ok := s.activities[aid]; !ok || a.UserID != userID {
			return fmt.Errorf("%w: unknown activity %s", ErrInvalidInput, aid)
		}
	}
	return nil
}

// countLinksLocked counts non-archived contacts linked to target.
func (s *MemoryStore) countLinksLocked(links map[string][]string, target string) int {
	n := 0
	for cid, ids := range links {
		if slices.Contains(ids, target) && !s.contacts[cid].Archived {
			n++
		}
	}
	return n
}

func (s *MemoryStore) membersLocked(links map[string][]string, target string) []model.Contact {
	out := []model.Contact{}
	for cid, ids := range links {
		if c, ok := s.contacts[cid]; ok && !c.Archived && slices.Contains(ids, target) {
			c.Socials = cloneSocials(c.Socials)
			out = append(out, c)
		}
	}
	sortContacts(out)
	return out
}

func unlink(links map[string][]string, target string) {
	for cid, ids := range links {
		if i := slices.Index(ids, target); i >= 0 {
			links[cid] = slices.Delete(slices.Clone(ids), i, i+1)
		}
	}
}

func cloneSocials(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

func sortContacts(cs []model.Contact) {
	slices.SortFunc(cs, func(a, b model.Contact) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}

func sortInteractions(is []model.Interaction) {
	slices.SortFunc(is, func(a, b model.Interaction) int {
		return cmp.Or(b.Date.Compare(a.Date), cmp.Compare(a.ID, b.ID))
	})
}

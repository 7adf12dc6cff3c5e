package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/circle/internal/domain/model"
)

//go:embed schema.sql
var schemaDDL string

// SQLStore implements Store over database/sql. SQLite (modernc.org/sqlite)
// and PostgreSQL (pgx stdlib) share one schema; placeholders are rebound
// per driver.
type SQLStore struct {
	db     *sql.DB
	driver string
	opts   options
}

var _ Store = (*SQLStore)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenSQLStore opens the database behind driver/dsn and applies the schema.
func OpenSQLStore(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s, err := NewSQLStoreWithDB(ctx, db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStoreWithDB wires an existing connection and applies the schema.
func NewSQLStoreWithDB(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil db", ErrInvalidInput)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &SQLStore{db: db, driver: driver, opts: o}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the underlying connection.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) q(query string) string { return rebind(s.driver, query) }

func (s *SQLStore) now() time.Time { return s.opts.now().UTC() }

// inTx runs fn in a transaction, rolling back on error.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Users ---

func (s *SQLStore) UpsertUser(ctx context.Context, email, name string) (u model.User, err error) {
	defer func(start time.Time) { observe("upsert_user", start, err) }(time.Now())
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	var id string
	err = s.db.QueryRowContext(ctx, s.q(`SELECT id FROM users WHERE email = ?`), email).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u = model.User{ID: uuid.NewString(), Email: email, Name: name, CreatedAt: s.now()}
		_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`),
			u.ID, u.Email, nullable(&u.Name), u.CreatedAt)
		if err != nil {
			return model.User{}, err
		}
		return u, nil
	case err != nil:
		return model.User{}, err
	}
	if name != "" {
		if _, err = s.db.ExecContext(ctx, s.q(`UPDATE users SET name = ? WHERE id = ?`), name, id); err != nil {
			return model.User{}, err
		}
	}
	return s.GetUser(ctx, id)
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var (
		u    model.User
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, email, name, created_at FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Email, &name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, err
	}
	u.Name = name.String
	return u, nil
}

func (s *SQLStore) requireUser(ctx context.Context, db querier, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	var n int
	if err := db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM users WHERE id = ?`), userID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: unknown user %s", ErrInvalidInput, userID)
	}
	return nil
}

// --- Contacts ---

const contactColumns = `c.id, c.user_id, c.name, c.birthday, c.phone, c.email, c.location, c.job, c.company,
	c.socials, c.photo_url, c.how_we_met, c.pronouns, c.notes, c.archived, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner, extra ...any) (model.Contact, error) {
	var (
		c                                      model.Contact
		birthday                               sql.NullTime
		phone, email, location, job, company   sql.NullString
		socials, photo, howWeMet, pronouns, nt sql.NullString
	)
	dest := append(extra, &c.ID, &c.UserID, &c.Name, &birthday, &phone, &email, &location, &job, &company,
		&socials, &photo, &howWeMet, &pronouns, &nt, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return model.Contact{}, err
	}
	if birthday.Valid {
		b := birthday.Time.UTC()
		c.Birthday = &b
	}
	c.Phone = fromNull(phone)
	c.Email = fromNull(email)
	c.Location = fromNull(location)
	c.Job = fromNull(job)
	c.Company = fromNull(company)
	c.PhotoURL = fromNull(photo)
	c.HowWeMet = fromNull(howWeMet)
	c.Pronouns = fromNull(pronouns)
	c.Notes = fromNull(nt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if socials.Valid && socials.String != "" {
		if err := json.Unmarshal([]byte(socials.String), &c.Socials); err != nil {
			return model.Contact{}, fmt.Errorf("decode socials of %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func encodeSocials(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *SQLStore) queryContacts(ctx context.Context, db querier, query string, params ...any) ([]model.Contact, error) {
	rows, err := db.QueryContext(ctx, s.q(query), params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE wildcards using backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLStore) ListContacts(ctx context.Context, f ContactFilter) (out []model.Contact, err error) {
	defer func(start time.Time) { observe("list_contacts", start, err) }(time.Now())

	var (
		where  = []string{"c.user_id = ?", "c.archived = ?"}
		params = []any{f.UserID, f.Archived}
	)
	if f.GroupID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM contact_group_members m WHERE m.contact_id = c.id AND m.group_id = ?)")
		params = append(params, f.GroupID)
	}
	if f.ActivityID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM contact_activities a WHERE a.contact_id = c.id AND a.activity_id = ?)")
		params = append(params, f.ActivityID)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + escapeLike(term) + "%"
		where = append(where, `(LOWER(c.name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(c.email, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(c.notes, '')) LIKE ? ESCAPE '\')`)
		params = append(params, like, like, like)
	}
	query := `SELECT ` + contactColumns + ` FROM contacts c WHERE ` + strings.Join(where, " AND ") + ` ORDER BY c.name, c.id`

	out, err = s.queryContacts(ctx, s.db, query, params...)
	if err != nil {
		return nil, err
	}
	if err = s.loadRelations(ctx, s.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) GetContact(ctx context.Context, userID, id string) (c model.Contact, err error) {
	defer func(start time.Time) { observe("get_contact", start, err) }(time.Now())
	return s.getContact(ctx, s.db, userID, id)
}

func (s *SQLStore) getContact(ctx context.Context, db querier, userID, id string) (model.Contact, error) {
	row := db.QueryRowContext(ctx, s.q(`SELECT `+contactColumns+` FROM contacts c WHERE c.id = ? AND c.user_id = ?`), id, userID)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, fmt.Errorf("contact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Contact{}, err
	}
	one := []model.Contact{c}
	if err := s.loadRelations(ctx, db, one); err != nil {
		return model.Contact{}, err
	}
	return one[0], nil
}

// loadRelations attaches groups, activities and interactions to contacts.
func (s *SQLStore) loadRelations(ctx context.Context, db querier, contacts []model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	index := make(map[string]int, len(contacts))
	ids := make([]string, len(contacts))
	for i := range contacts {
		index[contacts[i].ID] = i
		ids[i] = contacts[i].ID
		contacts[i].Groups = []model.Group{}
		contacts[i].Activities = []model.Activity{}
		contacts[i].Interactions = []model.Interaction{}
	}
	in := placeholders(len(ids))

	rows, err := db.QueryContext(ctx, s.q(`SELECT m.contact_id, g.id, g.user_id, g.name, g.color
		FROM contact_group_members m JOIN contact_groups g ON g.id = m.group_id
		WHERE m.contact_id IN (`+in+`) ORDER BY g.name, g.id`), args(ids)...)
	if err != nil {
		return err
	}
	err = scanEach(rows, func(r *sql.Rows) error {
		var (
			cid   string
			g     model.Group
			color sql.NullString
		)
		if err := r.Scan(&cid, &g.ID, &g.UserID, &g.Name, &color); err != nil {
			return err
		}
		g.Color = fromNull(color)
		c := &contacts[index[cid]]
		c.Groups = append(c.Groups, g)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx, s.q(`SELECT m.contact_id, a.id, a.user_id, a.name, a.emoji
		FROM contact_activities m JOIN activities a ON a.id = m.activity_id
		WHERE m.contact_id IN (`+in+`) ORDER BY a.name, a.id`), args(ids)...)
	if err != nil {
		return err
	}
	err = scanEach(rows, func(r *sql.Rows) error {
		var (
			cid   string
			a     model.Activity
			emoji sql.NullString
		)
		if err := r.Scan(&cid, &a.ID, &a.UserID, &a.Name, &emoji); err != nil {
			return err
		}
		a.Emoji = fromNull(emoji)
		c := &contacts[index[cid]]
		c.Activities = append(c.Activities, a)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx, s.q(`SELECT ic.contact_id, `+interactionColumns+`
		FROM interaction_contacts ic JOIN interactions i ON i.id = ic.interaction_id
		WHERE ic.contact_id IN (`+in+`) ORDER BY i.occurred_at DESC, i.id`), args(ids)...)
	if err != nil {
		return err
	}
	var interactionIDs []string
	err = scanEach(rows, func(r *sql.Rows) error {
		var cid string
		it, err := scanInteraction(r, &cid)
		if err != nil {
			return err
		}
		interactionIDs = append(interactionIDs, it.ID)
		c := &contacts[index[cid]]
		c.Interactions = append(c.Interactions, it)
		return nil
	})
	if err != nil {
		return err
	}

	links, err := s.interactionLinks(ctx, db, uniq(interactionIDs))
	if err != nil {
		return err
	}
	for i := range contacts {
		for j := range contacts[i].Interactions {
			it := &contacts[i].Interactions[j]
			it.ContactIDs = links[it.ID]
		}
	}
	return nil
}

// scanEach iterates rows, closing them when done.
func scanEach(rows *sql.Rows, fn func(*sql.Rows) error) error {
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLStore) CreateContact(ctx context.Context, in ContactInput) (c model.Contact, err error) {
	defer func(start time.Time) { observe("create_contact", start, err) }(time.Now())
	in, err = in.normalize()
	if err != nil {
		return model.Contact{}, err
	}
	socials, err := encodeSocials(in.Socials)
	if err != nil {
		return model.Contact{}, fmt.Errorf("%w: socials: %w", ErrInvalidInput, err)
	}

	id := uuid.NewString()
	now := s.now()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO contacts (id, user_id, name, birthday, phone, email, location, job,
			company, socials, photo_url, how_we_met, pronouns, notes, archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, in.UserID, in.Name, nullTime(in.Birthday), nullString(in.Phone), nullString(in.Email),
			nullString(in.Location), nullString(in.Job), nullString(in.Company), socials, nullString(in.PhotoURL),
			nullString(in.HowWeMet), nullString(in.Pronouns), nullString(in.Notes), false, now, now)
		if err != nil {
			return err
		}
		return s.replaceLinks(ctx, tx, in.UserID, id, &in.GroupIDs, &in.ActivityIDs)
	})
	if err != nil {
		return model.Contact{}, err
	}
	return s.getContact(ctx, s.db, in.UserID, id)
}

func (s *SQLStore) UpdateContact(ctx context.Context, userID, id string, p ContactPatch) (c model.Contact, err error) {
	defer func(start time.Time) { observe("update_contact", start, err) }(time.Now())
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.q(`SELECT `+contactColumns+` FROM contacts c WHERE c.id = ? AND c.user_id = ?`), id, userID)
		cur, err := scanContact(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("contact %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := p.apply(&cur); err != nil {
			return err
		}
		socials, err := encodeSocials(cur.Socials)
		if err != nil {
			return fmt.Errorf("%w: socials: %w", ErrInvalidInput, err)
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE contacts SET name = ?, birthday = ?, phone = ?, email = ?, location = ?,
			job = ?, company = ?, socials = ?, photo_url = ?, how_we_met = ?, pronouns = ?, notes = ?, archived = ?,
			updated_at = ? WHERE id = ? AND user_id = ?`),
			cur.Name, nullTime(cur.Birthday), nullString(cur.Phone), nullString(cur.Email), nullString(cur.Location),
			nullString(cur.Job), nullString(cur.Company), socials, nullString(cur.PhotoURL), nullString(cur.HowWeMet),
			nullString(cur.Pronouns), nullString(cur.Notes), cur.Archived, s.now(), id, userID)
		if err != nil {
			return err
		}
		return s.replaceLinks(ctx, tx, userID, id, p.GroupIDs, p.ActivityIDs)
	})
	if err != nil {
		return model.Contact{}, err
	}
	return s.getContact(ctx, s.db, userID, id)
}

// replaceLinks replaces the contact's group and activity links for every
// non-nil id list. Ids must belong to userID.
func (s *SQLStore) replaceLinks(ctx context.Context, tx *sql.Tx, userID, contactID string, groupIDs, activityIDs *[]string) error {
	type link struct {
		ids         *[]string
		owner, tbl  string
		column      string
		description string
	}
	for _, l := range []link{
		{groupIDs, "contact_groups", "contact_group_members", "group_id", "group"},
		{activityIDs, "activities", "contact_activities", "activity_id", "activity"},
	} {
		if l.ids == nil {
			continue
		}
		ids := uniq(*l.ids)
		if len(ids) > 0 {
			var n int
			q := `SELECT COUNT(*) FROM ` + l.owner + ` WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
			if err := tx.QueryRowContext(ctx, s.q(q), append([]any{userID}, args(ids)...)...).Scan(&n); err != nil {
				return err
			}
			if n != len(ids) {
				return fmt.Errorf("%w: unknown %s in %v", ErrInvalidInput, l.description, ids)
			}
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+l.tbl+` WHERE contact_id = ?`), contactID); err != nil {
			return err
		}
		for _, id := range ids {
			q := `INSERT INTO ` + l.tbl + ` (contact_id, ` + l.column + `) VALUES (?, ?)`
			if _, err := tx.ExecContext(ctx, s.q(q), contactID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLStore) DeleteContact(ctx context.Context, userID, id string) (err error) {
	defer func(start time.Time) { observe("delete_contact", start, err) }(time.Now())
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM contacts WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, "contact", id)
}

func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM contacts WHERE user_id = ? AND archived = ?`), userID, false).Scan(&n)
	return n, err
}

// --- Groups and activities ---

// tagTable describes the two contact-tagging tables, which differ only in
// names and their decoration column.
type tagTable struct {
	kind   string // "group" or "activity"
	table  string
	link   string
	column string // link column referencing table
	extra  string // color or emoji
}

var (
	groupTable    = tagTable{kind: "group", table: "contact_groups", link: "contact_group_members", column: "group_id", extra: "color"}       //nolint:gochecknoglobals // table layout
	activityTable = tagTable{kind: "activity", table: "activities", link: "contact_activities", column: "activity_id", extra: "emoji"} //nolint:gochecknoglobals // table layout
)

type tag struct {
	ID, UserID, Name string
	Extra            *string
	Count            int
	Contacts         []model.Contact
}

func (s *SQLStore) listTags(ctx context.Context, t tagTable, userID string) ([]tag, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT t.id, t.user_id, t.name, t.`+t.extra+`,
		(SELECT COUNT(*) FROM `+t.link+` m JOIN contacts c ON c.id = m.contact_id
		 WHERE m.`+t.column+` = t.id AND c.archived = ?)
		FROM `+t.table+` t WHERE t.user_id = ? ORDER BY t.name, t.id`), false, userID)
	if err != nil {
		return nil, err
	}
	out := []tag{}
	err = scanEach(rows, func(r *sql.Rows) error {
		var (
			tg    tag
			extra sql.NullString
		)
		if err := r.Scan(&tg.ID, &tg.UserID, &tg.Name, &extra, &tg.Count); err != nil {
			return err
		}
		tg.Extra = fromNull(extra)
		out = append(out, tg)
		return nil
	})
	return out, err
}

func (s *SQLStore) getTag(ctx context.Context, t tagTable, userID, id string) (tag, error) {
	var (
		tg    tag
		extra sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, user_id, name, `+t.extra+` FROM `+t.table+` WHERE id = ? AND user_id = ?`), id, userID).
		Scan(&tg.ID, &tg.UserID, &tg.Name, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return tag{}, fmt.Errorf("%s %s: %w", t.kind, id, ErrNotFound)
	}
	if err != nil {
		return tag{}, err
	}
	tg.Extra = fromNull(extra)
	tg.Contacts, err = s.queryContacts(ctx, s.db, `SELECT `+contactColumns+` FROM contacts c
		JOIN `+t.link+` m ON m.contact_id = c.id
		WHERE m.`+t.column+` = ? AND c.archived = ? ORDER BY c.name, c.id`, id, false)
	if err != nil {
		return tag{}, err
	}
	tg.Count = len(tg.Contacts)
	return tg, nil
}

func (s *SQLStore) createTag(ctx context.Context, t tagTable, userID, name string, extra *string) (tag, error) {
	if err := s.requireUser(ctx, s.db, userID); err != nil {
		return tag{}, err
	}
	n, err := requireName(name)
	if err != nil {
		return tag{}, err
	}
	tg := tag{ID: uuid.NewString(), UserID: userID, Name: n, Extra: nullable(extra)}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO `+t.table+` (id, user_id, name, `+t.extra+`, created_at) VALUES (?, ?, ?, ?, ?)`),
		tg.ID, tg.UserID, tg.Name, nullString(tg.Extra), s.now())
	if err != nil {
		return tag{}, err
	}
	return tg, nil
}

func (s *SQLStore) updateTag(ctx context.Context, t tagTable, userID, id string, name, extra *string) (tag, error) {
	sets := []string{}
	params := []any{}
	if name != nil {
		n, err := requireName(*name)
		if err != nil {
			return tag{}, err
		}
		sets = append(sets, "name = ?")
		params = append(params, n)
	}
	if extra != nil {
		sets = append(sets, t.extra+" = ?")
		params = append(params, nullString(nullable(extra)))
	}
	if len(sets) > 0 {
		params = append(params, id, userID)
		res, err := s.db.ExecContext(ctx, s.q(`UPDATE `+t.table+` SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`), params...)
		if err != nil {
			return tag{}, err
		}
		if err := mustAffect(res, t.kind, id); err != nil {
			return tag{}, err
		}
	}
	tg, err := s.getTag(ctx, t, userID, id)
	tg.Contacts = nil
	return tg, err
}

func (s *SQLStore) deleteTag(ctx context.Context, t tagTable, userID, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM `+t.table+` WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return err
	}
	return mustAffect(res, t.kind, id)
}

func (tg tag) group() model.Group {
	return model.Group{ID: tg.ID, UserID: tg.UserID, Name: tg.Name, Color: tg.Extra, ContactCount: tg.Count, Contacts: tg.Contacts}
}

func (tg tag) activity() model.Activity {
	return model.Activity{ID: tg.ID, UserID: tg.UserID, Name: tg.Name, Emoji: tg.Extra, ContactCount: tg.Count, Contacts: tg.Contacts}
}

func (s *SQLStore) ListGroups(ctx context.Context, userID string) ([]model.Group, error) {
	tags, err := s.listTags(ctx, groupTable, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Group, len(tags))
	for i, tg := range tags {
		out[i] = tg.group()
	}
	return out, nil
}

func (s *SQLStore) GetGroup(ctx context.Context, userID, id string) (model.Group, error) {
	tg, err := s.getTag(ctx, groupTable, userID, id)
	return tg.group(), err
}

func (s *SQLStore) CreateGroup(ctx context.Context, in GroupInput) (model.Group, error) {
	tg, err := s.createTag(ctx, groupTable, in.UserID, in.Name, in.Color)
	return tg.group(), err
}

func (s *SQLStore) UpdateGroup(ctx context.Context, userID, id string, p GroupPatch) (model.Group, error) {
	tg, err := s.updateTag(ctx, groupTable, userID, id, p.Name, p.Color)
	return tg.group(), err
}

func (s *SQLStore) DeleteGroup(ctx context.Context, userID, id string) error {
	return s.deleteTag(ctx, groupTable, userID, id)
}

func (s *SQLStore) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	tags, err := s.listTags(ctx, activityTable, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Activity, len(tags))
	for i, tg := range tags {
		out[i] = tg.activity()
	}
	return out, nil
}

func (s *SQLStore) GetActivity(ctx context.Context, userID, id string) (model.Activity, error) {
	tg, err := s.getTag(ctx, activityTable, userID, id)
	return tg.activity(), err
}

func (s *SQLStore) CreateActivity(ctx context.Context, in ActivityInput) (model.Activity, error) {
	tg, err := s.createTag(ctx, activityTable, in.UserID, in.Name, in.Emoji)
	return tg.activity(), err
}

func (s *SQLStore) UpdateActivity(ctx context.Context, userID, id string, p ActivityPatch) (model.Activity, error) {
	tg, err := s.updateTag(ctx, activityTable, userID, id, p.Name, p.Emoji)
	return tg.activity(), err
}

func (s *SQLStore) DeleteActivity(ctx context.Context, userID, id string) error {
	return s.deleteTag(ctx, activityTable, userID, id)
}

// --- Interactions ---

const interactionColumns = `i.id, i.user_id, i.occurred_at, i.type, i.note, i.created_at`

func scanInteraction(row rowScanner, extra ...any) (model.Interaction, error) {
	var (
		it   model.Interaction
		typ  string
		note sql.NullString
	)
	dest := append(extra, &it.ID, &it.UserID, &it.Date, &typ, &note, &it.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return model.Interaction{}, err
	}
	it.Type = model.InteractionType(typ)
	it.Note = fromNull(note)
	it.Date = it.Date.UTC()
	it.CreatedAt = it.CreatedAt.UTC()
	return it, nil
}

// interactionLinks maps interaction ids to their contact ids.
func (s *SQLStore) interactionLinks(ctx context.Context, db querier, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx, s.q(`SELECT interaction_id, contact_id FROM interaction_contacts
		WHERE interaction_id IN (`+placeholders(len(ids))+`) ORDER BY interaction_id, contact_id`), args(ids)...)
	if err != nil {
		return nil, err
	}
	err = scanEach(rows, func(r *sql.Rows) error {
		var iid, cid string
		if err := r.Scan(&iid, &cid); err != nil {
			return err
		}
		out[iid] = append(out[iid], cid)
		return nil
	})
	return out, err
}

func (s *SQLStore) CreateInteraction(ctx context.Context, in InteractionInput) (it model.Interaction, err error) {
	defer func(start time.Time) { observe("create_interaction", start, err) }(time.Now())
	in, err = in.normalize()
	if err != nil {
		return model.Interaction{}, err
	}

	id := uuid.NewString()
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		var n int
		q := `SELECT COUNT(*) FROM contacts WHERE user_id = ? AND id IN (` + placeholders(len(in.ContactIDs)) + `)`
		if err := tx.QueryRowContext(ctx, s.q(q), append([]any{in.UserID}, args(in.ContactIDs)...)...).Scan(&n); err != nil {
			return err
		}
		if n != len(in.ContactIDs) {
			return fmt.Errorf("%w: unknown contact in %v", ErrInvalidInput, in.ContactIDs)
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO interactions (id, user_id, occurred_at, type, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			id, in.UserID, in.Date, string(in.Type), nullString(in.Note), s.now())
		if err != nil {
			return err
		}
		for _, cid := range in.ContactIDs {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO interaction_contacts (interaction_id, contact_id) VALUES (?, ?)`), id, cid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Interaction{}, err
	}

	out, err := s.listInteractions(ctx, `i.id = ?`, []any{id})
	if err != nil {
		return model.Interaction{}, err
	}
	if len(out) == 0 {
		return model.Interaction{}, fmt.Errorf("interaction %s: %w", id, ErrNotFound)
	}
	return out[0], nil
}

func (s *SQLStore) ListInteractions(ctx context.Context, f InteractionFilter) (out []model.Interaction, err error) {
	defer func(start time.Time) { observe("list_interactions", start, err) }(time.Now())

	where := []string{"i.user_id = ?"}
	params := []any{f.UserID}
	if f.ContactID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM interaction_contacts ic WHERE ic.interaction_id = i.id AND ic.contact_id = ?)")
		params = append(params, f.ContactID)
	}
	if f.Type != "" {
		where = append(where, "i.type = ?")
		params = append(params, string(f.Type))
	}
	if f.Start != nil && f.End != nil {
		where = append(where, "i.occurred_at >= ?", "i.occurred_at <= ?")
		params = append(params, f.Start.UTC(), f.End.UTC())
	}
	return s.listInteractions(ctx, strings.Join(where, " AND "), params)
}

// listInteractions loads interactions matching where, newest first, with
// their contacts.
func (s *SQLStore) listInteractions(ctx context.Context, where string, params []any) ([]model.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+interactionColumns+` FROM interactions i WHERE `+where+
		` ORDER BY i.occurred_at DESC, i.id`), params...)
	if err != nil {
		return nil, err
	}
	out := []model.Interaction{}
	index := map[string]int{}
	err = scanEach(rows, func(r *sql.Rows) error {
		it, err := scanInteraction(r)
		if err != nil {
			return err
		}
		index[it.ID] = len(out)
		it.ContactIDs = []string{}
		it.Contacts = []model.Contact{}
		out = append(out, it)
		return nil
	})
	if err != nil || len(out) == 0 {
		return out, err
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	rows, err = s.db.QueryContext(ctx, s.q(`SELECT ic.interaction_id, `+contactColumns+`
		FROM interaction_contacts ic JOIN contacts c ON c.id = ic.contact_id
		WHERE ic.interaction_id IN (`+placeholders(len(ids))+`) ORDER BY c.name, c.id`), args(ids)...)
	if err != nil {
		return nil, err
	}
	err = scanEach(rows, func(r *sql.Rows) error {
		var iid string
		c, err := scanContact(r, &iid)
		if err != nil {
			return err
		}
		it := &out[index[iid]]
		it.ContactIDs = append(it.ContactIDs, c.ID)
		it.Contacts = append(it.Contacts, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

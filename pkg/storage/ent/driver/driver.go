// Package entdriver implements storage.Driver on top of ent's SQL dialect
// layer. It is database-agnostic and is embedded by the sqlite and postgres
// drivers.
package entdriver

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
)

// EntDriver provides storage operations using an ent SQL driver.
type EntDriver struct {
	Driver dialect.Driver

	// IsConflict classifies uniqueness violations. Defaults to
	// sqlgraph.IsUniqueConstraintError.
	IsConflict func(error) bool
}

// New wraps drv and runs the idempotent schema auto-migration.
func New(ctx context.Context, drv dialect.Driver) (*EntDriver, error) {
	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrate.Create(ctx, Tables...); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &EntDriver{
		Driver:     drv,
		IsConflict: sqlgraph.IsUniqueConstraintError,
	}, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

func (ed *EntDriver) conflict(err error) bool {
	if ed.IsConflict != nil {
		return ed.IsConflict(err)
	}
	return sqlgraph.IsUniqueConstraintError(err)
}

// querier is satisfied by both dialect.Driver and dialect.Tx.
type querier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

type querySource interface {
	Query() (string, []any)
}

func exec(ctx context.Context, q querier, b querySource) error {
	query, args := b.Query()
	return q.Exec(ctx, query, args, nil)
}

// scanAll runs b and calls scan for each row. Rows are closed before it
// returns so callers may issue the next query on a single-connection pool.
func scanAll(ctx context.Context, q querier, b querySource, scan func(*entsql.Rows) error) error {
	query, args := b.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func count(ctx context.Context, q querier, b querySource) (int, error) {
	var n int
	err := scanAll(ctx, q, b, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

// withTx runs fn inside a transaction, rolling back on error.
func (ed *EntDriver) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := ed.Driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rerr))
		}
		return err
	}

	return tx.Commit()
}

var pictureColumns = []string{"id", "digest", "checksum", "data", "size", "created_at"}

func scanPicture(rows *entsql.Rows) (*picture.Record, error) {
	rec := &picture.Record{}
	if err := rows.Scan(&rec.ID, &rec.Digest, &rec.Checksum, &rec.Data, &rec.Size, &rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning picture: %w", err)
	}
	return rec, nil
}

// PicturesByDigest returns the records sharing digest, oldest first.
func (ed *EntDriver) PicturesByDigest(ctx context.Context, digest string) ([]*picture.Record, error) {
	b := ed.builder()
	q := b.Select(pictureColumns...).
		From(b.Table(PicturesTable.Name)).
		Where(entsql.EQ("digest", digest)).
		OrderBy("created_at", "id")

	recs := []*picture.Record{}
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		rec, err := scanPicture(rows)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pictures by digest: %w", err)
	}
	return recs, nil
}

// InsertPicture persists rec. Uniqueness violations surface as storage.ErrConflict.
func (ed *EntDriver) InsertPicture(ctx context.Context, rec *picture.Record) error {
	if rec == nil {
		return errors.New("cannot store nil picture")
	}

	q := ed.builder().Insert(PicturesTable.Name).
		Columns(pictureColumns...).
		Values(rec.ID, rec.Digest, rec.Checksum, rec.Data, rec.Size, rec.CreatedAt)

	if err := exec(ctx, ed.Driver, q); err != nil {
		if ed.conflict(err) {
			return fmt.Errorf("%w: %w", storage.ErrConflict, err)
		}
		return fmt.Errorf("could not execute picture creation: %w", err)
	}
	return nil
}

// GetPicture retrieves a record by identity.
func (ed *EntDriver) GetPicture(ctx context.Context, id string) (*picture.Record, error) {
	b := ed.builder()
	q := b.Select(pictureColumns...).
		From(b.Table(PicturesTable.Name)).
		Where(entsql.EQ("id", id))

	var rec *picture.Record
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		var err error
		rec, err = scanPicture(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get picture: %w", err)
	}
	if rec == nil {
		return nil, storage.NotFoundError{Kind: "picture", ID: id}
	}
	return rec, nil
}

// CountPictures returns the number of stored pictures.
func (ed *EntDriver) CountPictures(ctx context.Context) (int, error) {
	b := ed.builder()
	n, err := count(ctx, ed.Driver, b.Select(entsql.Count("*")).From(b.Table(PicturesTable.Name)))
	if err != nil {
		return 0, fmt.Errorf("failed to count pictures: %w", err)
	}
	return n, nil
}

var userColumns = []string{"username", "first_name", "last_name", "password_hash", "created_at"}

func scanUser(rows *entsql.Rows) (*account.User, error) {
	u := &account.User{}
	if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return u, nil
}

// CreateUser stores u. A taken username surfaces as storage.ErrAlreadyExists.
func (ed *EntDriver) CreateUser(ctx context.Context, u *account.User) error {
	if u == nil {
		return errors.New("cannot store nil user")
	}

	q := ed.builder().Insert(UsersTable.Name).
		Columns(userColumns...).
		Values(u.Username, u.FirstName, u.LastName, u.PasswordHash, u.CreatedAt)

	if err := exec(ctx, ed.Driver, q); err != nil {
		if ed.conflict(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("could not execute user creation: %w", err)
	}
	return nil
}

// GetUser retrieves a user by username.
func (ed *EntDriver) GetUser(ctx context.Context, username string) (*account.User, error) {
	b := ed.builder()
	q := b.Select(userColumns...).
		From(b.Table(UsersTable.Name)).
		Where(entsql.EQ("username", username))

	var u *account.User
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		var err error
		u, err = scanUser(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, storage.NotFoundError{Kind: "user", ID: username}
	}
	return u, nil
}

// ListUsers returns all users ordered by username.
func (ed *EntDriver) ListUsers(ctx context.Context) ([]*account.User, error) {
	b := ed.builder()
	q := b.Select(userColumns...).
		From(b.Table(UsersTable.Name)).
		OrderBy("username")

	users := []*account.User{}
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		u, err := scanUser(rows)
		if err != nil {
			return err
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateSession stores a login session.
func (ed *EntDriver) CreateSession(ctx context.Context, s *account.Session) error {
	if s == nil {
		return errors.New("cannot store nil session")
	}

	q := ed.builder().Insert(SessionsTable.Name).
		Columns("token", "username", "created_at", "expires_at").
		Values(s.Token, s.Username, s.CreatedAt, s.ExpiresAt)

	if err := exec(ctx, ed.Driver, q); err != nil {
		return fmt.Errorf("could not execute session creation: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (ed *EntDriver) GetSession(ctx context.Context, token string) (*account.Session, error) {
	b := ed.builder()
	q := b.Select("token", "username", "created_at", "expires_at").
		From(b.Table(SessionsTable.Name)).
		Where(entsql.EQ("token", token))

	var s *account.Session
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		s = &account.Session{}
		return rows.Scan(&s.Token, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, storage.NotFoundError{Kind: "session"}
	}
	return s, nil
}

// DeleteSession removes a session.
func (ed *EntDriver) DeleteSession(ctx context.Context, token string) error {
	q := ed.builder().Delete(SessionsTable.Name).Where(entsql.EQ("token", token))
	if err := exec(ctx, ed.Driver, q); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CreateDialogue stores d and its members in one transaction.
func (ed *EntDriver) CreateDialogue(ctx context.Context, d *dialogue.Dialogue) error {
	if d == nil || len(d.Users) != 2 {
		return errors.New("dialogue must have exactly two users")
	}

	b := ed.builder()
	err := ed.withTx(ctx, func(tx dialect.Tx) error {
		insert := b.Insert(DialoguesTable.Name).
			Columns("id", "pair_key", "created_at", "updated_at").
			Values(d.ID, dialogue.PairKey(d.Users[0], d.Users[1]), d.CreatedAt, d.UpdatedAt)
		if err := exec(ctx, tx, insert); err != nil {
			return err
		}

		members := b.Insert(DialogueMembersTable.Name).Columns("dialogue_id", "username")
		for _, u := range d.Users {
			members.Values(d.ID, u)
		}
		return exec(ctx, tx, members)
	})
	if err != nil {
		if ed.conflict(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("could not execute dialogue creation: %w", err)
	}
	return nil
}

// GetDialogue retrieves a dialogue by id.
func (ed *EntDriver) GetDialogue(ctx context.Context, id string) (*dialogue.Dialogue, error) {
	return ed.getDialogueWhere(ctx, entsql.EQ("id", id), id)
}

// FindPairDialogue returns the dialogue between a and b.
func (ed *EntDriver) FindPairDialogue(ctx context.Context, a, b string) (*dialogue.Dialogue, error) {
	return ed.getDialogueWhere(ctx, entsql.EQ("pair_key", dialogue.PairKey(a, b)), "")
}

func (ed *EntDriver) getDialogueWhere(ctx context.Context, p *entsql.Predicate, id string) (*dialogue.Dialogue, error) {
	b := ed.builder()
	q := b.Select("id", "created_at", "updated_at").
		From(b.Table(DialoguesTable.Name)).
		Where(p)

	ds, err := ed.loadDialogues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialogue: %w", err)
	}
	if len(ds) == 0 {
		return nil, storage.NotFoundError{Kind: "dialogue", ID: id}
	}
	return ds[0], nil
}

// DialoguesByUser returns a page of the user's dialogues, most recently updated first.
func (ed *EntDriver) DialoguesByUser(ctx context.Context, username string, page storage.Page) ([]*dialogue.Dialogue, int, error) {
	b := ed.builder()

	total, err := count(ctx, ed.Driver,
		b.Select(entsql.Count("*")).
			From(b.Table(DialogueMembersTable.Name)).
			Where(entsql.EQ("username", username)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dialogues: %w", err)
	}

	d := b.Table(DialoguesTable.Name)
	m := b.Table(DialogueMembersTable.Name)
	q := b.Select(d.C("id"), d.C("created_at"), d.C("updated_at")).
		From(d).
		Join(m).On(d.C("id"), m.C("dialogue_id")).
		Where(entsql.EQ(m.C("username"), username)).
		OrderBy(entsql.Desc(d.C("updated_at")), d.C("id"))
	if page.Limit > 0 {
		q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q.Offset(page.Offset)
	}

	ds, err := ed.loadDialogues(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query dialogues: %w", err)
	}
	return ds, total, nil
}

// loadDialogues runs a dialogue selection and attaches the members of each row.
func (ed *EntDriver) loadDialogues(ctx context.Context, q *entsql.Selector) ([]*dialogue.Dialogue, error) {
	ds := []*dialogue.Dialogue{}
	byID := map[string]*dialogue.Dialogue{}
	err := scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		d := &dialogue.Dialogue{}
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return err
		}
		ds = append(ds, d)
		byID[d.ID] = d
		return nil
	})
	if err != nil || len(ds) == 0 {
		return ds, err
	}

	ids := make([]any, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.ID)
	}

	b := ed.builder()
	members := b.Select("dialogue_id", "username").
		From(b.Table(DialogueMembersTable.Name)).
		Where(entsql.In("dialogue_id", ids...)).
		OrderBy("username")

	err = scanAll(ctx, ed.Driver, members, func(rows *entsql.Rows) error {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return err
		}
		byID[id].Users = append(byID[id].Users, username)
		return nil
	})
	return ds, err
}

// CreateMessage stores m and bumps the dialogue's updated_at in one transaction.
func (ed *EntDriver) CreateMessage(ctx context.Context, m *dialogue.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}

	b := ed.builder()
	err := ed.withTx(ctx, func(tx dialect.Tx) error {
		var exists int
		err := scanAll(ctx, tx,
			b.Select(entsql.Count("*")).From(b.Table(DialoguesTable.Name)).Where(entsql.EQ("id", m.DialogueID)),
			func(rows *entsql.Rows) error { return rows.Scan(&exists) },
		)
		if err != nil {
			return err
		}
		if exists == 0 {
			return storage.NotFoundError{Kind: "dialogue", ID: m.DialogueID}
		}

		insert := b.Insert(MessagesTable.Name).
			Columns("id", "dialogue_id", "from_user", "picture_id", "is_edited", "edited_at", "created_at").
			Values(m.ID, m.DialogueID, m.FromUser, m.PictureID, m.IsEdited, m.EditedAt, m.CreatedAt)
		if err := exec(ctx, tx, insert); err != nil {
			return err
		}

		bump := b.Update(DialoguesTable.Name).
			Set("updated_at", m.CreatedAt).
			Where(entsql.And(
				entsql.EQ("id", m.DialogueID),
				entsql.LT("updated_at", m.CreatedAt),
			))
		return exec(ctx, tx, bump)
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("could not execute message creation: %w", err)
	}
	return nil
}

// MessagesByDialogue returns a page of messages, newest first.
func (ed *EntDriver) MessagesByDialogue(ctx context.Context, dialogueID string, page storage.Page) ([]*dialogue.Message, int, error) {
	b := ed.builder()

	total, err := count(ctx, ed.Driver,
		b.Select(entsql.Count("*")).
			From(b.Table(MessagesTable.Name)).
			Where(entsql.EQ("dialogue_id", dialogueID)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	q := b.Select("id", "dialogue_id", "from_user", "picture_id", "is_edited", "edited_at", "created_at").
		From(b.Table(MessagesTable.Name)).
		Where(entsql.EQ("dialogue_id", dialogueID)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if page.Limit > 0 {
		q.Limit(page.Limit)
	}
	if page.Offset > 0 {
		q.Offset(page.Offset)
	}

	msgs := []*dialogue.Message{}
	err = scanAll(ctx, ed.Driver, q, func(rows *entsql.Rows) error {
		var (
			m         dialogue.Message
			from, pic *string
		)
		if err := rows.Scan(&m.ID, &m.DialogueID, &from, &pic, &m.IsEdited, &m.EditedAt, &m.CreatedAt); err != nil {
			return err
		}
		if from != nil {
			m.FromUser = *from
		}
		if pic != nil {
			m.PictureID = *pic
		}
		msgs = append(msgs, &m)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}
	return msgs, total, nil
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

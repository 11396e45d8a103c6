// Package profile persists questionnaire answers in a SQL table.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/fruitbot/internal/intake"
)

// ErrNotFound is returned when no record exists for the user.
var ErrNotFound = errors.New("profile: not found")

const table = "users"

// resetConflict keeps SetName a single statement that also clears later answers.
const resetConflict = `ON CONFLICT (user_id) DO UPDATE SET
    name = excluded.name,
    age = NULL,
    favorite_color = NULL,
    personality = NULL`

type row struct {
	UserID        int64          `db:"user_id"`
	Name          sql.NullString `db:"name"`
	Age           sql.NullInt64  `db:"age"`
	FavoriteColor sql.NullString `db:"favorite_color"`
	Personality   sql.NullString `db:"personality"`
}

func (r row) profile() intake.Profile {
	p := intake.Profile{UserID: r.UserID}
	if r.Name.Valid {
		p.Name = &r.Name.String
	}
	if r.Age.Valid {
		age := int(r.Age.Int64)
		p.Age = &age
	}
	if r.FavoriteColor.Valid {
		p.FavoriteColor = &r.FavoriteColor.String
	}
	if r.Personality.Valid {
		p.Personality = &r.Personality.String
	}
	return p
}

// Store implements intake.ProfileStore on top of sqlx.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewStore wraps an open database handle. Placeholders follow the driver.
func NewStore(db *sqlx.DB) *Store {
	var format sq.PlaceholderFormat = sq.Question
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		format = sq.Dollar
	}
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

// SetName creates the record or resets an existing one to just the name.
func (s *Store) SetName(ctx context.Context, userID int64, name string) error {
	query, args, err := s.sb.Insert(table).
		Columns("user_id", "name", "age", "favorite_color", "personality").
		Values(userID, name, nil, nil, nil).
		Suffix(resetConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("profile: build set name: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("profile: set name: %w", err)
	}
	return nil
}

func (s *Store) SetAge(ctx context.Context, userID int64, age int) error {
	return s.update(ctx, "age", age, userID)
}

func (s *Store) SetFavoriteColor(ctx context.Context, userID int64, color string) error {
	return s.update(ctx, "favorite_color", color, userID)
}

func (s *Store) SetPersonality(ctx context.Context, userID int64, personality string) error {
	return s.update(ctx, "personality", personality, userID)
}

// update sets one answer column on an existing record.
func (s *Store) update(ctx context.Context, field string, value any, userID int64) error {
	query, args, err := s.sb.Update(table).
		Set(field, value).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("profile: build set %s: %w", field, err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("profile: set %s: %w", field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profile: set %s: %w", field, err)
	}
	if n == 0 {
		return fmt.Errorf("profile: set %s for %d: %w", field, userID, ErrNotFound)
	}
	return nil
}

// Get returns the stored answers for userID.
func (s *Store) Get(ctx context.Context, userID int64) (intake.Profile, error) {
	query, args, err := s.sb.Select("user_id", "name", "age", "favorite_color", "personality").
		From(table).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return intake.Profile{}, fmt.Errorf("profile: build get: %w", err)
	}
	var r row
	err = s.db.GetContext(ctx, &r, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.Profile{}, fmt.Errorf("profile: get %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return intake.Profile{}, fmt.Errorf("profile: get %d: %w", userID, err)
	}
	return r.profile(), nil
}

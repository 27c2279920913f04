package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
	"github.com/devnotes/devnotes/internal/obs"
)

// User is a directory record. Credentials live with the authentication
// provider, never here.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

type userRow struct {
	ID          string `db:"id"`
	Email       string `db:"email"`
	DisplayName string `db:"display_name"`
	CreatedAt   int64  `db:"created_at"`
}

func (r userRow) toUser() User {
	return User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
	}
}

// Directory stores user records and answers existence checks for the sharing
// engine.
type Directory struct {
	db  *db.DB
	log *slog.Logger
}

// NewDirectory wires the user directory.
func NewDirectory(database *db.DB) *Directory {
	return &Directory{db: database, log: obs.Pkg("identity")}
}

// Create registers a user record.
func (d *Directory) Create(ctx context.Context, email, displayName string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.New(errs.InvalidArgument, "a valid email is required")
	}

	var created User
	err := d.db.InTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		created = User{
			ID:          uuid.New().String(),
			Email:       email,
			DisplayName: displayName,
			CreatedAt:   now,
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
			created.ID, created.Email, created.DisplayName, now.Unix())
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateName, "a user with this email already exists", err)
		}
		if err != nil {
			return fmt.Errorf("identity: insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.InfoContext(ctx, "user created", "user_id", created.ID)
	return &created, nil
}

// Get returns a user by id.
func (d *Directory) Get(ctx context.Context, userID string) (*User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, d.db.Pool(), &row,
		`SELECT id, email, display_name, created_at FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("identity: load user: %w", err)
	}
	user := row.toUser()
	return &user, nil
}

// UserExists reports whether userID is a known user. It runs on the caller's
// Queryer so the sharing engine can check inside its own transaction.
func (d *Directory) UserExists(ctx context.Context, q db.Queryer, userID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one, `SELECT 1 FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity: check user existence: %w", err)
	}
	return true, nil
}

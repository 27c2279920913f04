package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
)

type folderRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Name      string         `db:"name"`
	ParentID  sql.NullString `db:"parent_id"`
	CreatedAt int64          `db:"created_at"`
	UpdatedAt int64          `db:"updated_at"`
}

func (r folderRow) toFolder() Folder {
	f := Folder{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.ParentID.Valid {
		parent := r.ParentID.String
		f.ParentID = &parent
	}
	return f
}

type noteRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Title       string         `db:"title"`
	Context     string         `db:"context"`
	CodeSnippet sql.NullString `db:"code_snippet"`
	FolderID    sql.NullString `db:"folder_id"`
	CreatedAt   int64          `db:"created_at"`
	UpdatedAt   int64          `db:"updated_at"`
}

func (r noteRow) toNote() Note {
	n := Note{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Context:   r.Context,
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.CodeSnippet.Valid {
		snippet := r.CodeSnippet.String
		n.CodeSnippet = &snippet
	}
	if r.FolderID.Valid {
		folderID := r.FolderID.String
		n.FolderID = &folderID
	}
	return n
}

type imageRow struct {
	ID          string `db:"id"`
	NoteID      string `db:"note_id"`
	ImagePath   string `db:"image_path"`
	Description string `db:"description"`
	CreatedAt   int64  `db:"created_at"`
}

func (r imageRow) toImage() NoteImage {
	return NoteImage{
		ID:          r.ID,
		NoteID:      r.NoteID,
		ImagePath:   r.ImagePath,
		Description: r.Description,
		CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
	}
}

func getFolderRow(ctx context.Context, q db.Queryer, id string) (*folderRow, error) {
	var row folderRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT id, user_id, name, parent_id, created_at, updated_at FROM folders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hierarchy: load folder: %w", err)
	}
	return &row, nil
}

func getNoteRow(ctx context.Context, q db.Queryer, id string) (*noteRow, error) {
	var row noteRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT id, user_id, title, context, code_snippet, folder_id, created_at, updated_at FROM notes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hierarchy: load note: %w", err)
	}
	return &row, nil
}

func folderOwnedBy(ctx context.Context, q db.Queryer, folderID, userID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one, `SELECT 1 FROM folders WHERE id = ? AND user_id = ?`, folderID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hierarchy: check folder ownership: %w", err)
	}
	return true, nil
}

// siblingFolderExists reports whether owner already has a folder called name
// under parentID, other than excludeID. NULL parents are folded to '' the same
// way the unique index does.
func siblingFolderExists(ctx context.Context, q db.Queryer, ownerID string, parentID *string, name, excludeID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		`SELECT 1 FROM folders WHERE user_id = ? AND ifnull(parent_id, '') = ? AND name = ? AND id <> ?`,
		ownerID, derefOrEmpty(parentID), name, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hierarchy: check sibling folder name: %w", err)
	}
	return true, nil
}

func siblingNoteExists(ctx context.Context, q db.Queryer, ownerID string, folderID *string, title, excludeID string) (bool, error) {
	var one int
	err := sqlx.GetContext(ctx, q, &one,
		`SELECT 1 FROM notes WHERE user_id = ? AND ifnull(folder_id, '') = ? AND title = ? AND id <> ?`,
		ownerID, derefOrEmpty(folderID), title, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hierarchy: check sibling note title: %w", err)
	}
	return true, nil
}

// isAncestorOrSelf walks parent links from startID towards the roots and
// reports whether targetID is on that path. The seen set stops the walk if
// the stored tree already contains a cycle.
func isAncestorOrSelf(ctx context.Context, q db.Queryer, startID, targetID string) (bool, error) {
	seen := make(map[string]bool)
	cur := startID
	for cur != "" && !seen[cur] {
		if cur == targetID {
			return true, nil
		}
		seen[cur] = true

		var parent sql.NullString
		err := sqlx.GetContext(ctx, q, &parent, `SELECT parent_id FROM folders WHERE id = ?`, cur)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("hierarchy: walk folder ancestors: %w", err)
		}
		if !parent.Valid {
			return false, nil
		}
		cur = parent.String
	}
	return false, nil
}

func listImageRows(ctx context.Context, q db.Queryer, noteID string) ([]imageRow, error) {
	var rows []imageRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, note_id, image_path, description, created_at FROM note_images WHERE note_id = ? ORDER BY created_at, id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: list note images: %w", err)
	}
	return rows, nil
}

func derefOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ownership resolves entity owners for the access gate.
type Ownership struct{}

// EntityOwner returns the owning user id for a folder or note, or "" when the
// entity does not exist.
func (Ownership) EntityOwner(ctx context.Context, q db.Queryer, ref access.EntityRef) (string, error) {
	var query string
	switch ref.Kind {
	case access.KindFolder:
		query = `SELECT user_id FROM folders WHERE id = ?`
	case access.KindNote:
		query = `SELECT user_id FROM notes WHERE id = ?`
	default:
		return "", fmt.Errorf("hierarchy: unknown entity kind %q", ref.Kind)
	}

	var owner string
	err := sqlx.GetContext(ctx, q, &owner, query, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("hierarchy: resolve entity owner: %w", err)
	}
	return owner, nil
}

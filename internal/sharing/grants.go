package sharing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
)

// Grants resolves grant levels for the access gate.
type Grants struct{}

// GrantLevel returns the most permissive grant addressed to userID for the
// entity. Folder grants only ever confer read-only visibility; note grants
// carry the can_edit flag.
func (Grants) GrantLevel(ctx context.Context, q db.Queryer, ref access.EntityRef, userID string) (access.Level, error) {
	switch ref.Kind {
	case access.KindFolder:
		var one int
		err := sqlx.GetContext(ctx, q, &one,
			`SELECT 1 FROM shared_folders WHERE folder_id = ? AND receiver_id = ?`, ref.ID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return access.LevelNone, nil
		}
		if err != nil {
			return access.LevelNone, fmt.Errorf("sharing: resolve folder grant: %w", err)
		}
		return access.LevelSharedReadOnly, nil

	case access.KindNote:
		var canEdit bool
		err := sqlx.GetContext(ctx, q, &canEdit,
			`SELECT max(can_edit) FROM shared_notes WHERE note_id = ? AND to_user_id = ? GROUP BY note_id`, ref.ID, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return access.LevelNone, nil
		}
		if err != nil {
			return access.LevelNone, fmt.Errorf("sharing: resolve note grant: %w", err)
		}
		if canEdit {
			return access.LevelSharedReadWrite, nil
		}
		return access.LevelSharedReadOnly, nil

	default:
		return access.LevelNone, fmt.Errorf("sharing: unknown entity kind %q", ref.Kind)
	}
}

// RetireFolderGrants deletes all grants referencing the given folders. Runs
// on the caller's Queryer so deletions and retirement share one transaction.
func (s *Service) RetireFolderGrants(ctx context.Context, q db.Queryer, folderIDs []string) (int64, error) {
	return retireGrants(ctx, q, `DELETE FROM shared_folders WHERE folder_id IN (?)`, folderIDs)
}

// RetireNoteGrants deletes all grants referencing the given notes.
func (s *Service) RetireNoteGrants(ctx context.Context, q db.Queryer, noteIDs []string) (int64, error) {
	return retireGrants(ctx, q, `DELETE FROM shared_notes WHERE note_id IN (?)`, noteIDs)
}

func retireGrants(ctx context.Context, q db.Queryer, query string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	expanded, args, err := sqlx.In(query, ids)
	if err != nil {
		return 0, fmt.Errorf("sharing: expand grant retirement query: %w", err)
	}
	res, err := q.ExecContext(ctx, q.Rebind(expanded), args...)
	if err != nil {
		return 0, fmt.Errorf("sharing: retire grants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sharing: count retired grants: %w", err)
	}
	return n, nil
}

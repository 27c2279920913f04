package hierarchy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
)

// CreateFolder creates a folder for ownerID after validating the parent and
// sibling-name uniqueness. Nothing is written when any check fails.
func (s *Service) CreateFolder(ctx context.Context, ownerID string, params CreateFolderParams) (*Folder, error) {
	if err := validateFolderName(params.Name); err != nil {
		return nil, err
	}
	parentID := normalizeOptionalID(params.ParentID)

	var created Folder
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if parentID != nil {
			owned, err := folderOwnedBy(ctx, tx, *parentID, ownerID)
			if err != nil {
				return err
			}
			if !owned {
				return errs.New(errs.InvalidParent, "parent folder does not exist or is not yours")
			}
		}

		duplicate, err := siblingFolderExists(ctx, tx, ownerID, parentID, params.Name, "")
		if err != nil {
			return err
		}
		if duplicate {
			return errs.New(errs.DuplicateName, "a folder with this name already exists here")
		}

		now := time.Now().UTC()
		created = Folder{
			ID:        uuid.New().String(),
			UserID:    ownerID,
			Name:      params.Name,
			ParentID:  parentID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			created.ID, created.UserID, created.Name, parentID, now.Unix(), now.Unix())
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateName, "a folder with this name already exists here", err)
		}
		if err != nil {
			return fmt.Errorf("hierarchy: insert folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "folder created", "folder_id", created.ID, "user_id", ownerID)
	return &created, nil
}

// UpdateFolder renames and/or reparents a folder. Reparenting re-checks
// parent ownership, cycle-freedom via an ancestor walk, and sibling
// uniqueness under the new parent.
func (s *Service) UpdateFolder(ctx context.Context, callerID, folderID string, params UpdateFolderParams) (*Folder, error) {
	if err := validateFolderName(params.Name); err != nil {
		return nil, err
	}
	newParentID := normalizeOptionalID(params.ParentID)

	var updated Folder
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, callerID, access.FolderRef(folderID), access.CapabilityWrite); err != nil {
			return err
		}
		row, err := getFolderRow(ctx, tx, folderID)
		if err != nil {
			return err
		}
		if row == nil {
			return errs.New(errs.NotFound, "folder not found")
		}
		ownerID := row.UserID

		if newParentID != nil {
			owned, err := folderOwnedBy(ctx, tx, *newParentID, ownerID)
			if err != nil {
				return err
			}
			if !owned {
				return errs.New(errs.InvalidParent, "parent folder does not exist or is not yours")
			}
			cyclic, err := isAncestorOrSelf(ctx, tx, *newParentID, folderID)
			if err != nil {
				return err
			}
			if cyclic {
				return errs.New(errs.CycleDetected, "a folder cannot be moved under itself or its descendants")
			}
		}

		duplicate, err := siblingFolderExists(ctx, tx, ownerID, newParentID, params.Name, folderID)
		if err != nil {
			return err
		}
		if duplicate {
			return errs.New(errs.DuplicateName, "a folder with this name already exists here")
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE folders SET name = ?, parent_id = ?, updated_at = ? WHERE id = ?`,
			params.Name, newParentID, now.Unix(), folderID)
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateName, "a folder with this name already exists here", err)
		}
		if err != nil {
			return fmt.Errorf("hierarchy: update folder: %w", err)
		}

		updated = row.toFolder()
		updated.Name = params.Name
		updated.ParentID = newParentID
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "folder updated", "folder_id", folderID, "user_id", callerID)
	return &updated, nil
}

// ListFolders returns every folder owned by ownerID. Shared visibility is the
// gate's business; this query never crosses user boundaries.
func (s *Service) ListFolders(ctx context.Context, ownerID string) ([]Folder, error) {
	var rows []folderRow
	err := sqlx.SelectContext(ctx, s.db.Pool(), &rows,
		`SELECT id, user_id, name, parent_id, created_at, updated_at FROM folders WHERE user_id = ? ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: list folders: %w", err)
	}
	folders := make([]Folder, 0, len(rows))
	for _, row := range rows {
		folders = append(folders, row.toFolder())
	}
	return folders, nil
}

// GetFolder returns the folder with its direct subfolders and notes loaded.
// Owners and folder grantees may read it.
func (s *Service) GetFolder(ctx context.Context, callerID, folderID string) (*Folder, error) {
	pool := s.db.Pool()
	if err := s.gate.Authorize(ctx, pool, callerID, access.FolderRef(folderID), access.CapabilityRead); err != nil {
		return nil, err
	}
	row, err := getFolderRow(ctx, pool, folderID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.New(errs.NotFound, "folder not found")
	}
	folder := row.toFolder()

	var subRows []folderRow
	err = sqlx.SelectContext(ctx, pool, &subRows,
		`SELECT id, user_id, name, parent_id, created_at, updated_at FROM folders WHERE parent_id = ? ORDER BY name, id`, folderID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: list subfolders: %w", err)
	}
	for _, sub := range subRows {
		folder.SubFolders = append(folder.SubFolders, sub.toFolder())
	}

	var noteRows []noteRow
	err = sqlx.SelectContext(ctx, pool, &noteRows,
		`SELECT id, user_id, title, context, code_snippet, folder_id, created_at, updated_at FROM notes WHERE folder_id = ? ORDER BY title, id`, folderID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: list folder notes: %w", err)
	}
	for _, n := range noteRows {
		folder.Notes = append(folder.Notes, n.toNote())
	}
	return &folder, nil
}

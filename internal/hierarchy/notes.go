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

// CreateNote creates a note for ownerID, validating the target folder and
// title uniqueness among the folder's notes.
func (s *Service) CreateNote(ctx context.Context, ownerID string, params CreateNoteParams) (*Note, error) {
	if err := validateNoteFields(params.Title, params.Context, params.CodeSnippet); err != nil {
		return nil, err
	}
	folderID := normalizeOptionalID(params.FolderID)

	var created Note
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if folderID != nil {
			owned, err := folderOwnedBy(ctx, tx, *folderID, ownerID)
			if err != nil {
				return err
			}
			if !owned {
				return errs.New(errs.InvalidFolder, "folder does not exist or is not yours")
			}
		}

		duplicate, err := siblingNoteExists(ctx, tx, ownerID, folderID, params.Title, "")
		if err != nil {
			return err
		}
		if duplicate {
			return errs.New(errs.DuplicateName, "a note with this title already exists here")
		}

		now := time.Now().UTC()
		created = Note{
			ID:          uuid.New().String(),
			UserID:      ownerID,
			Title:       params.Title,
			Context:     params.Context,
			CodeSnippet: params.CodeSnippet,
			FolderID:    folderID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO notes (id, user_id, title, context, code_snippet, folder_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			created.ID, created.UserID, created.Title, created.Context, created.CodeSnippet, folderID, now.Unix(), now.Unix())
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateName, "a note with this title already exists here", err)
		}
		if err != nil {
			return fmt.Errorf("hierarchy: insert note: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "note created", "note_id", created.ID, "user_id", ownerID)
	return &created, nil
}

// UpdateNote replaces the note's content fields and folder assignment. The
// owner and read-write grantees may edit content; only the owner may move the
// note between folders, and only into folders the owner owns.
func (s *Service) UpdateNote(ctx context.Context, callerID, noteID string, params UpdateNoteParams) (*Note, error) {
	if err := validateNoteFields(params.Title, params.Context, params.CodeSnippet); err != nil {
		return nil, err
	}
	newFolderID := normalizeOptionalID(params.FolderID)

	var updated Note
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, callerID, access.NoteRef(noteID), access.CapabilityWrite); err != nil {
			return err
		}
		row, err := getNoteRow(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if row == nil {
			return errs.New(errs.NotFound, "note not found")
		}
		ownerID := row.UserID
		current := row.toNote()

		if !sameOptionalID(current.FolderID, newFolderID) {
			if callerID != ownerID {
				return errs.New(errs.Forbidden, "only the owner may move a note between folders")
			}
			if newFolderID != nil {
				owned, err := folderOwnedBy(ctx, tx, *newFolderID, ownerID)
				if err != nil {
					return err
				}
				if !owned {
					return errs.New(errs.InvalidFolder, "folder does not exist or is not yours")
				}
			}
		}

		duplicate, err := siblingNoteExists(ctx, tx, ownerID, newFolderID, params.Title, noteID)
		if err != nil {
			return err
		}
		if duplicate {
			return errs.New(errs.DuplicateName, "a note with this title already exists here")
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE notes SET title = ?, context = ?, code_snippet = ?, folder_id = ?, updated_at = ? WHERE id = ?`,
			params.Title, params.Context, params.CodeSnippet, newFolderID, now.Unix(), noteID)
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateName, "a note with this title already exists here", err)
		}
		if err != nil {
			return fmt.Errorf("hierarchy: update note: %w", err)
		}

		updated = current
		updated.Title = params.Title
		updated.Context = params.Context
		updated.CodeSnippet = params.CodeSnippet
		updated.FolderID = newFolderID
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "note updated", "note_id", noteID, "user_id", callerID)
	return &updated, nil
}

// DeleteNote removes the note, its image rows, and every grant referencing it
// in one transaction, then drops stored image blobs best-effort.
func (s *Service) DeleteNote(ctx context.Context, callerID, noteID string) error {
	var blobKeys []string
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, callerID, access.NoteRef(noteID), access.CapabilityDelete); err != nil {
			return err
		}

		images, err := listImageRows(ctx, tx, noteID)
		if err != nil {
			return err
		}
		for _, img := range images {
			if s.blobs != nil && s.blobs.ManagesPath(img.ImagePath) {
				blobKeys = append(blobKeys, img.ImagePath)
			}
		}

		if _, err := s.grants.RetireNoteGrants(ctx, tx, []string{noteID}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_images WHERE note_id = ?`, noteID); err != nil {
			return fmt.Errorf("hierarchy: delete note images: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID); err != nil {
			return fmt.Errorf("hierarchy: delete note: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, blobKeys)
	s.log.InfoContext(ctx, "note deleted", "note_id", noteID, "user_id", callerID)
	return nil
}

// GetNote returns the note with its images. Owners and note grantees (either
// level) may read it.
func (s *Service) GetNote(ctx context.Context, callerID, noteID string) (*Note, error) {
	pool := s.db.Pool()
	if err := s.gate.Authorize(ctx, pool, callerID, access.NoteRef(noteID), access.CapabilityRead); err != nil {
		return nil, err
	}
	row, err := getNoteRow(ctx, pool, noteID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.New(errs.NotFound, "note not found")
	}
	note := row.toNote()

	images, err := listImageRows(ctx, pool, noteID)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		note.Images = append(note.Images, img.toImage())
	}
	return &note, nil
}

// ListNotes returns ownerID's notes in the given folder (nil for unfiled).
func (s *Service) ListNotes(ctx context.Context, ownerID string, folderID *string) ([]Note, error) {
	var rows []noteRow
	err := sqlx.SelectContext(ctx, s.db.Pool(), &rows,
		`SELECT id, user_id, title, context, code_snippet, folder_id, created_at, updated_at
		 FROM notes WHERE user_id = ? AND ifnull(folder_id, '') = ? ORDER BY title, id`,
		ownerID, derefOrEmpty(normalizeOptionalID(folderID)))
	if err != nil {
		return nil, fmt.Errorf("hierarchy: list notes: %w", err)
	}
	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, row.toNote())
	}
	return notes, nil
}

func (s *Service) deleteBlobs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.WarnContext(ctx, "image blob cleanup failed", "key", key, "error", err)
		}
	}
}

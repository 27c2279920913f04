package hierarchy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/errs"
)

// AddImage attaches an image to a note. With Data set, the payload is
// uploaded to the blob store first and the transaction records the resulting
// key; if the transaction then fails the orphaned blob is removed
// best-effort. Owners and read-write grantees may attach images; the write
// check runs before any upload so denied callers never reach the object
// store.
func (s *Service) AddImage(ctx context.Context, callerID, noteID string, params AddImageParams) (*NoteImage, error) {
	if len(params.Description) > MaxImageDescriptionLen {
		return nil, errs.New(errs.InvalidArgument, "image description cannot exceed 100 characters")
	}
	if len(params.Data) == 0 && params.Path == "" {
		return nil, errs.New(errs.InvalidArgument, "image path or image data is required")
	}

	imageID := uuid.New().String()
	path := params.Path
	uploaded := false
	if len(params.Data) > 0 {
		if s.blobs == nil {
			return nil, errs.New(errs.InvalidArgument, "image uploads are not configured")
		}
		if err := s.gate.Authorize(ctx, s.db.Pool(), callerID, access.NoteRef(noteID), access.CapabilityWrite); err != nil {
			return nil, err
		}
		path = imageKey(noteID, imageID)
		if err := s.blobs.Put(ctx, path, params.Data, params.ContentType); err != nil {
			return nil, fmt.Errorf("hierarchy: store image blob: %w", err)
		}
		uploaded = true
	}

	var created NoteImage
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, callerID, access.NoteRef(noteID), access.CapabilityWrite); err != nil {
			return err
		}
		now := time.Now().UTC()
		created = NoteImage{
			ID:          imageID,
			NoteID:      noteID,
			ImagePath:   path,
			Description: params.Description,
			CreatedAt:   now,
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO note_images (id, note_id, image_path, description, created_at) VALUES (?, ?, ?, ?, ?)`,
			created.ID, created.NoteID, created.ImagePath, created.Description, now.Unix())
		if err != nil {
			return fmt.Errorf("hierarchy: insert note image: %w", err)
		}
		return nil
	})
	if err != nil {
		if uploaded {
			s.deleteBlobs(ctx, []string{path})
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "image added", "note_id", noteID, "image_id", imageID, "user_id", callerID)
	return &created, nil
}

// RemoveImage detaches and deletes one image of a note.
func (s *Service) RemoveImage(ctx context.Context, callerID, noteID, imageID string) error {
	var blobKeys []string
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, callerID, access.NoteRef(noteID), access.CapabilityWrite); err != nil {
			return err
		}

		var row imageRow
		err := sqlx.GetContext(ctx, tx, &row,
			`SELECT id, note_id, image_path, description, created_at FROM note_images WHERE id = ? AND note_id = ?`,
			imageID, noteID)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.NotFound, "image not found")
		}
		if err != nil {
			return fmt.Errorf("hierarchy: load note image: %w", err)
		}

		if s.blobs != nil && s.blobs.ManagesPath(row.ImagePath) {
			blobKeys = append(blobKeys, row.ImagePath)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_images WHERE id = ?`, imageID); err != nil {
			return fmt.Errorf("hierarchy: delete note image: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, blobKeys)
	s.log.InfoContext(ctx, "image removed", "note_id", noteID, "image_id", imageID, "user_id", callerID)
	return nil
}

func imageKey(noteID, imageID string) string {
	return "images/" + noteID + "/" + imageID
}

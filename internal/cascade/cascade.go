// Package cascade deletes folder subtrees. It is the only path that removes
// folders: the schema restricts parent references, so a folder can disappear
// only after everything beneath it has, and all of it happens inside one
// transaction together with grant retirement.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/obs"
)

// GrantRetirer removes grant rows for deleted entities inside the deleting
// transaction. Implemented by the sharing engine.
type GrantRetirer interface {
	RetireFolderGrants(ctx context.Context, q db.Queryer, folderIDs []string) (int64, error)
	RetireNoteGrants(ctx context.Context, q db.Queryer, noteIDs []string) (int64, error)
}

// BlobStore deletes stored image payloads after a subtree is gone. May be
// nil.
type BlobStore interface {
	Delete(ctx context.Context, key string) error
	ManagesPath(path string) bool
}

// Result summarizes one cascade.
type Result struct {
	FoldersDeleted int
	NotesDeleted   int
	ImagesDeleted  int
	GrantsRetired  int64
}

// Engine computes and applies folder deletion closures.
type Engine struct {
	db     *db.DB
	gate   *access.Gate
	grants GrantRetirer
	blobs  BlobStore
	log    *slog.Logger
}

// NewEngine wires the cascade engine. blobs may be nil.
func NewEngine(database *db.DB, gate *access.Gate, grants GrantRetirer, blobs BlobStore) *Engine {
	return &Engine{
		db:     database,
		gate:   gate,
		grants: grants,
		blobs:  blobs,
		log:    obs.Pkg("cascade"),
	}
}

// DeleteFolder removes folderID and the transitive closure of its contents:
// every descendant folder, those folders' notes, and those notes' images,
// plus every grant referencing a removed folder or note. The caller must own
// the folder; on any pre-check failure nothing is touched.
//
// The subtree is discovered with an explicit worklist, so arbitrarily deep
// trees cannot exhaust the call stack.
func (e *Engine) DeleteFolder(ctx context.Context, callerID, folderID string) (*Result, error) {
	var (
		result   Result
		blobKeys []string
	)
	err := e.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := e.gate.Authorize(ctx, tx, callerID, access.FolderRef(folderID), access.CapabilityDelete); err != nil {
			return err
		}

		// Breadth-first discovery; folderIDs ends up parents-before-children.
		// The seen set stops the walk if the stored tree already contains a
		// parent cycle.
		folderIDs := []string{folderID}
		seen := map[string]bool{folderID: true}
		for i := 0; i < len(folderIDs); i++ {
			var children []string
			err := sqlx.SelectContext(ctx, tx, &children,
				`SELECT id FROM folders WHERE parent_id = ? ORDER BY id`, folderIDs[i])
			if err != nil {
				return fmt.Errorf("cascade: list subfolders: %w", err)
			}
			for _, child := range children {
				if seen[child] {
					continue
				}
				seen[child] = true
				folderIDs = append(folderIDs, child)
			}
		}

		noteIDs, err := notesInFolders(ctx, tx, folderIDs)
		if err != nil {
			return err
		}
		imageIDs, paths, err := imagesOfNotes(ctx, tx, noteIDs)
		if err != nil {
			return err
		}
		for _, path := range paths {
			if e.blobs != nil && e.blobs.ManagesPath(path) {
				blobKeys = append(blobKeys, path)
			}
		}

		// Grants must be gone before their entity rows: the foreign keys
		// restrict, and a grant referencing a missing entity must never be
		// observable.
		retiredNotes, err := e.grants.RetireNoteGrants(ctx, tx, noteIDs)
		if err != nil {
			return err
		}
		retiredFolders, err := e.grants.RetireFolderGrants(ctx, tx, folderIDs)
		if err != nil {
			return err
		}

		if err := deleteByID(ctx, tx, `DELETE FROM note_images WHERE id IN (?)`, imageIDs); err != nil {
			return err
		}
		if err := deleteByID(ctx, tx, `DELETE FROM notes WHERE id IN (?)`, noteIDs); err != nil {
			return err
		}
		// Children before parents, one row at a time: the parent foreign key
		// is checked per row.
		for i := len(folderIDs) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, folderIDs[i]); err != nil {
				return fmt.Errorf("cascade: delete folder: %w", err)
			}
		}

		result = Result{
			FoldersDeleted: len(folderIDs),
			NotesDeleted:   len(noteIDs),
			ImagesDeleted:  len(imageIDs),
			GrantsRetired:  retiredNotes + retiredFolders,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.deleteBlobs(ctx, blobKeys)
	e.log.InfoContext(ctx, "folder cascade deleted",
		"folder_id", folderID,
		"user_id", callerID,
		"folders", result.FoldersDeleted,
		"notes", result.NotesDeleted,
		"images", result.ImagesDeleted,
		"grants", result.GrantsRetired)
	return &result, nil
}

func notesInFolders(ctx context.Context, q db.Queryer, folderIDs []string) ([]string, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM notes WHERE folder_id IN (?) ORDER BY id`, folderIDs)
	if err != nil {
		return nil, fmt.Errorf("cascade: expand note query: %w", err)
	}
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("cascade: list subtree notes: %w", err)
	}
	return ids, nil
}

func imagesOfNotes(ctx context.Context, q db.Queryer, noteIDs []string) (ids, paths []string, err error) {
	if len(noteIDs) == 0 {
		return nil, nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, image_path FROM note_images WHERE note_id IN (?) ORDER BY id`, noteIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("cascade: expand image query: %w", err)
	}
	var rows []struct {
		ID        string `db:"id"`
		ImagePath string `db:"image_path"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, nil, fmt.Errorf("cascade: list subtree images: %w", err)
	}
	for _, row := range rows {
		ids = append(ids, row.ID)
		paths = append(paths, row.ImagePath)
	}
	return ids, paths, nil
}

func deleteByID(ctx context.Context, q db.Queryer, query string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	expanded, args, err := sqlx.In(query, ids)
	if err != nil {
		return fmt.Errorf("cascade: expand delete query: %w", err)
	}
	if _, err := q.ExecContext(ctx, q.Rebind(expanded), args...); err != nil {
		return fmt.Errorf("cascade: delete rows: %w", err)
	}
	return nil
}

func (e *Engine) deleteBlobs(ctx context.Context, keys []string) {
	if e.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := e.blobs.Delete(ctx, key); err != nil {
			e.log.WarnContext(ctx, "image blob cleanup failed", "key", key, "error", err)
		}
	}
}

// Package hierarchy is the domain view over folders, notes and note images.
// It enforces tree shape (forest, sibling uniqueness, same-owner parenting)
// before any row is written; the schema's unique indexes and foreign keys
// back the same rules at the storage level.
package hierarchy

import (
	"context"
	"log/slog"
	"strings"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
	"github.com/devnotes/devnotes/internal/obs"
)

// GrantRetirer removes grant rows for deleted notes inside the deleting
// transaction. Implemented by the sharing engine.
type GrantRetirer interface {
	RetireNoteGrants(ctx context.Context, q db.Queryer, noteIDs []string) (int64, error)
}

// BlobStore stores image payloads outside the database. Implemented by
// imagestore; may be nil when the deployment keeps image files elsewhere.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	ManagesPath(path string) bool
}

// Service implements folder, note and image operations for one database.
type Service struct {
	db     *db.DB
	gate   *access.Gate
	grants GrantRetirer
	blobs  BlobStore
	log    *slog.Logger
}

// NewService wires the hierarchy store. blobs may be nil.
func NewService(database *db.DB, gate *access.Gate, grants GrantRetirer, blobs BlobStore) *Service {
	return &Service{
		db:     database,
		gate:   gate,
		grants: grants,
		blobs:  blobs,
		log:    obs.Pkg("hierarchy"),
	}
}

func validateFolderName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.New(errs.InvalidArgument, "folder name is required")
	}
	if len(name) > MaxFolderNameLen {
		return errs.New(errs.InvalidArgument, "folder name cannot exceed 100 characters")
	}
	return nil
}

func validateNoteFields(title, context string, snippet *string) error {
	if strings.TrimSpace(title) == "" {
		return errs.New(errs.InvalidArgument, "title is required")
	}
	if len(title) > MaxNoteTitleLen {
		return errs.New(errs.InvalidArgument, "title cannot exceed 250 characters")
	}
	if len(context) > MaxNoteContextLen {
		return errs.New(errs.InvalidArgument, "context is too long (max 10,000 characters)")
	}
	if snippet != nil && len(*snippet) > MaxCodeSnippetLen {
		return errs.New(errs.InvalidArgument, "code snippet is too long (max 10,000 characters)")
	}
	return nil
}

// normalizeOptionalID folds empty strings into nil so "" and absent mean the
// same thing everywhere.
func normalizeOptionalID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

func sameOptionalID(a, b *string) bool {
	return derefOrEmpty(a) == derefOrEmpty(b)
}

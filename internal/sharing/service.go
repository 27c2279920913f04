// Package sharing manages grant records between users and resolves the grant
// side of effective access. Grants reference folders and notes but do not own
// them: revoking a grant leaves the entity alone, and deleting the entity
// retires its grants inside the deleting transaction.
package sharing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
	"github.com/devnotes/devnotes/internal/obs"
)

// UserChecker answers whether a user id is known. Implemented by the identity
// directory.
type UserChecker interface {
	UserExists(ctx context.Context, q db.Queryer, userID string) (bool, error)
}

// Service implements folder and note sharing over one database.
type Service struct {
	db    *db.DB
	users UserChecker
	gate  *access.Gate
	log   *slog.Logger
}

// NewService wires the sharing engine. The gate must be built over this
// package's Grants resolver so share authorization and effective access agree.
func NewService(database *db.DB, users UserChecker, gate *access.Gate) *Service {
	return &Service{
		db:    database,
		users: users,
		gate:  gate,
		log:   obs.Pkg("sharing"),
	}
}

// ShareFolder grants receiverID visibility of senderID's folder. Checks run
// in a fixed order and the first failure wins: self-share, sender ownership,
// receiver existence, duplicate grant.
func (s *Service) ShareFolder(ctx context.Context, folderID, senderID, receiverID string) (*FolderShare, error) {
	if senderID == receiverID {
		return nil, errs.New(errs.SelfShare, "you cannot share a folder with yourself")
	}

	var created FolderShare
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, senderID, access.FolderRef(folderID), access.CapabilityShare); err != nil {
			switch errs.CodeOf(err) {
			case errs.NotFound, errs.Forbidden:
				return errs.New(errs.NotOwner, "you can only share folders you own")
			}
			return err
		}
		exists, err := s.users.UserExists(ctx, tx, receiverID)
		if err != nil {
			return err
		}
		if !exists {
			return errs.New(errs.UnknownReceiver, "receiver is not a known user")
		}

		var one int
		err = sqlx.GetContext(ctx, tx, &one,
			`SELECT 1 FROM shared_folders WHERE folder_id = ? AND sender_id = ? AND receiver_id = ?`,
			folderID, senderID, receiverID)
		if err == nil {
			return errs.New(errs.DuplicateGrant, "this folder is already shared with that user")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sharing: check duplicate folder grant: %w", err)
		}

		now := time.Now().UTC()
		created = FolderShare{
			ID:         uuid.New().String(),
			FolderID:   folderID,
			SenderID:   senderID,
			ReceiverID: receiverID,
			SharedAt:   now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO shared_folders (id, folder_id, sender_id, receiver_id, shared_at) VALUES (?, ?, ?, ?, ?)`,
			created.ID, created.FolderID, created.SenderID, created.ReceiverID, now.Unix())
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateGrant, "this folder is already shared with that user", err)
		}
		if err != nil {
			return fmt.Errorf("sharing: insert folder grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "folder shared", "folder_id", folderID, "sender_id", senderID, "receiver_id", receiverID)
	return &created, nil
}

// ShareNote grants toUserID access to fromUserID's note. canEdit selects
// read-write over read-only and is immutable once stored. Check order matches
// ShareFolder.
func (s *Service) ShareNote(ctx context.Context, noteID, fromUserID, toUserID string, canEdit bool) (*NoteShare, error) {
	if fromUserID == toUserID {
		return nil, errs.New(errs.SelfShare, "you cannot share a note with yourself")
	}

	var created NoteShare
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.gate.Authorize(ctx, tx, fromUserID, access.NoteRef(noteID), access.CapabilityShare); err != nil {
			switch errs.CodeOf(err) {
			case errs.NotFound, errs.Forbidden:
				return errs.New(errs.NotOwner, "you can only share notes you own")
			}
			return err
		}
		exists, err := s.users.UserExists(ctx, tx, toUserID)
		if err != nil {
			return err
		}
		if !exists {
			return errs.New(errs.UnknownReceiver, "receiver is not a known user")
		}

		var one int
		err = sqlx.GetContext(ctx, tx, &one,
			`SELECT 1 FROM shared_notes WHERE note_id = ? AND from_user_id = ? AND to_user_id = ?`,
			noteID, fromUserID, toUserID)
		if err == nil {
			return errs.New(errs.DuplicateGrant, "this note is already shared with that user")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sharing: check duplicate note grant: %w", err)
		}

		now := time.Now().UTC()
		created = NoteShare{
			ID:         uuid.New().String(),
			NoteID:     noteID,
			FromUserID: fromUserID,
			ToUserID:   toUserID,
			CanEdit:    canEdit,
			SharedAt:   now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO shared_notes (id, note_id, from_user_id, to_user_id, can_edit, shared_at) VALUES (?, ?, ?, ?, ?, ?)`,
			created.ID, created.NoteID, created.FromUserID, created.ToUserID, created.CanEdit, now.Unix())
		if db.IsUniqueViolation(err) {
			return errs.Wrap(errs.DuplicateGrant, "this note is already shared with that user", err)
		}
		if err != nil {
			return fmt.Errorf("sharing: insert note grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "note shared", "note_id", noteID, "from_user_id", fromUserID, "to_user_id", toUserID, "can_edit", canEdit)
	return &created, nil
}

// RevokeFolderShare deletes a folder grant. Either side of the grant may
// revoke it; anyone else gets forbidden.
func (s *Service) RevokeFolderShare(ctx context.Context, grantID, callerID string) (*FolderShare, error) {
	var revoked FolderShare
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var row folderShareRow
		err := sqlx.GetContext(ctx, tx, &row,
			`SELECT id, folder_id, sender_id, receiver_id, shared_at FROM shared_folders WHERE id = ?`, grantID)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.NotFound, "shared folder not found")
		}
		if err != nil {
			return fmt.Errorf("sharing: load folder grant: %w", err)
		}
		if row.SenderID != callerID && row.ReceiverID != callerID {
			return errs.New(errs.Forbidden, "only the sender or receiver may revoke a share")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shared_folders WHERE id = ?`, grantID); err != nil {
			return fmt.Errorf("sharing: delete folder grant: %w", err)
		}
		revoked = row.toShare()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "folder share revoked", "grant_id", grantID, "user_id", callerID)
	return &revoked, nil
}

// RevokeNoteShare deletes a note grant with the same symmetric rule.
func (s *Service) RevokeNoteShare(ctx context.Context, grantID, callerID string) (*NoteShare, error) {
	var revoked NoteShare
	err := s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var row noteShareRow
		err := sqlx.GetContext(ctx, tx, &row,
			`SELECT id, note_id, from_user_id, to_user_id, can_edit, shared_at FROM shared_notes WHERE id = ?`, grantID)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.New(errs.NotFound, "shared note not found")
		}
		if err != nil {
			return fmt.Errorf("sharing: load note grant: %w", err)
		}
		if row.FromUserID != callerID && row.ToUserID != callerID {
			return errs.New(errs.Forbidden, "only the sender or receiver may revoke a share")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shared_notes WHERE id = ?`, grantID); err != nil {
			return fmt.Errorf("sharing: delete note grant: %w", err)
		}
		revoked = row.toShare()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "note share revoked", "grant_id", grantID, "user_id", callerID)
	return &revoked, nil
}

// GetFolderShare returns a grant visible to its sender or receiver only.
func (s *Service) GetFolderShare(ctx context.Context, grantID, callerID string) (*FolderShare, error) {
	var row folderShareRow
	err := sqlx.GetContext(ctx, s.db.Pool(), &row,
		`SELECT id, folder_id, sender_id, receiver_id, shared_at FROM shared_folders WHERE id = ? AND (sender_id = ? OR receiver_id = ?)`,
		grantID, callerID, callerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "shared folder not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sharing: load folder grant: %w", err)
	}
	share := row.toShare()
	return &share, nil
}

// GetNoteShare returns a grant visible to its sender or receiver only.
func (s *Service) GetNoteShare(ctx context.Context, grantID, callerID string) (*NoteShare, error) {
	var row noteShareRow
	err := sqlx.GetContext(ctx, s.db.Pool(), &row,
		`SELECT id, note_id, from_user_id, to_user_id, can_edit, shared_at FROM shared_notes WHERE id = ? AND (from_user_id = ? OR to_user_id = ?)`,
		grantID, callerID, callerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "shared note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("sharing: load note grant: %w", err)
	}
	share := row.toShare()
	return &share, nil
}

// ListFolderSharesForUser returns every folder grant the user sent or
// received.
func (s *Service) ListFolderSharesForUser(ctx context.Context, userID string) ([]FolderShare, error) {
	var rows []folderShareRow
	err := sqlx.SelectContext(ctx, s.db.Pool(), &rows,
		`SELECT id, folder_id, sender_id, receiver_id, shared_at FROM shared_folders WHERE sender_id = ? OR receiver_id = ? ORDER BY shared_at, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("sharing: list folder grants: %w", err)
	}
	shares := make([]FolderShare, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, row.toShare())
	}
	return shares, nil
}

// ListNoteSharesForUser returns every note grant the user sent or received.
func (s *Service) ListNoteSharesForUser(ctx context.Context, userID string) ([]NoteShare, error) {
	var rows []noteShareRow
	err := sqlx.SelectContext(ctx, s.db.Pool(), &rows,
		`SELECT id, note_id, from_user_id, to_user_id, can_edit, shared_at FROM shared_notes WHERE from_user_id = ? OR to_user_id = ? ORDER BY shared_at, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("sharing: list note grants: %w", err)
	}
	shares := make([]NoteShare, 0, len(rows))
	for _, row := range rows {
		shares = append(shares, row.toShare())
	}
	return shares, nil
}

// EffectiveAccess resolves the user's level for an entity (owner, grant
// level, or none).
func (s *Service) EffectiveAccess(ctx context.Context, ref access.EntityRef, userID string) (access.Level, error) {
	return s.gate.EffectiveAccess(ctx, s.db.Pool(), ref, userID)
}

package sharing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devnotes/devnotes/internal/access"
	"github.com/devnotes/devnotes/internal/db"
	"github.com/devnotes/devnotes/internal/errs"
	"github.com/devnotes/devnotes/internal/hierarchy"
	"github.com/devnotes/devnotes/internal/identity"
	"github.com/devnotes/devnotes/internal/testdb"
)

type testEnv struct {
	db      *db.DB
	dir     *identity.Directory
	svc     *Service
	folders *hierarchy.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := testdb.New(t)
	gate := access.NewGate(hierarchy.Ownership{}, Grants{})
	dir := identity.NewDirectory(database)
	svc := NewService(database, dir, gate)
	return &testEnv{
		db:      database,
		dir:     dir,
		svc:     svc,
		folders: hierarchy.NewService(database, gate, svc, nil),
	}
}

func (e *testEnv) mustUser(t *testing.T, email string) string {
	t.Helper()
	user, err := e.dir.Create(context.Background(), email, "")
	require.NoError(t, err)
	return user.ID
}

func (e *testEnv) mustFolder(t *testing.T, ownerID, name string) string {
	t.Helper()
	folder, err := e.folders.CreateFolder(context.Background(), ownerID, hierarchy.CreateFolderParams{Name: name})
	require.NoError(t, err)
	return folder.ID
}

func (e *testEnv) mustNote(t *testing.T, ownerID, title string, folderID *string) string {
	t.Helper()
	note, err := e.folders.CreateNote(context.Background(), ownerID, hierarchy.CreateNoteParams{Title: title, FolderID: folderID})
	require.NoError(t, err)
	return note.ID
}

func TestShareNote_CheckOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	noteID := env.mustNote(t, owner, "Spec", nil)

	// Self-share wins over every other failure, even when the caller does
	// not own the note.
	_, err := env.svc.ShareNote(ctx, noteID, friend, friend, false)
	require.Equal(t, errs.SelfShare, errs.CodeOf(err))
	_, err = env.svc.ShareNote(ctx, noteID, owner, owner, false)
	require.Equal(t, errs.SelfShare, errs.CodeOf(err))

	// Ownership next: a non-owner cannot give the note away, and neither can
	// a grantee.
	_, err = env.svc.ShareNote(ctx, noteID, friend, owner, false)
	require.Equal(t, errs.NotOwner, errs.CodeOf(err))
	_, err = env.svc.ShareNote(ctx, "missing", owner, friend, false)
	require.Equal(t, errs.NotOwner, errs.CodeOf(err))

	// Then receiver existence.
	_, err = env.svc.ShareNote(ctx, noteID, owner, "nobody", false)
	require.Equal(t, errs.UnknownReceiver, errs.CodeOf(err))

	// Then duplicates, repeatably.
	_, err = env.svc.ShareNote(ctx, noteID, owner, friend, false)
	require.NoError(t, err)
	_, err = env.svc.ShareNote(ctx, noteID, owner, friend, true)
	require.Equal(t, errs.DuplicateGrant, errs.CodeOf(err))
	_, err = env.svc.ShareNote(ctx, noteID, owner, friend, false)
	require.Equal(t, errs.DuplicateGrant, errs.CodeOf(err))
}

func TestShareFolder_CheckOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	folderID := env.mustFolder(t, owner, "Work")

	_, err := env.svc.ShareFolder(ctx, folderID, owner, owner)
	require.Equal(t, errs.SelfShare, errs.CodeOf(err))
	_, err = env.svc.ShareFolder(ctx, folderID, friend, owner)
	require.Equal(t, errs.NotOwner, errs.CodeOf(err))
	_, err = env.svc.ShareFolder(ctx, folderID, owner, "nobody")
	require.Equal(t, errs.UnknownReceiver, errs.CodeOf(err))

	share, err := env.svc.ShareFolder(ctx, folderID, owner, friend)
	require.NoError(t, err)
	require.Equal(t, folderID, share.FolderID)

	_, err = env.svc.ShareFolder(ctx, folderID, owner, friend)
	require.Equal(t, errs.DuplicateGrant, errs.CodeOf(err))
}

func TestShareNote_StoreFailureSurfacesAsInternal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	noteID := env.mustNote(t, owner, "Spec", nil)

	// Break the store underneath the ownership lookup. The failure must come
	// back as an internal error, not as a business-rule denial.
	_, err := env.db.Pool().ExecContext(ctx, `DROP TABLE notes`)
	require.NoError(t, err)

	_, err = env.svc.ShareNote(ctx, noteID, owner, friend, false)
	require.Error(t, err)
	require.Equal(t, errs.Internal, errs.CodeOf(err))
}

func TestShareFolder_StoreFailureSurfacesAsInternal(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	folderID := env.mustFolder(t, owner, "Work")

	_, err := env.db.Pool().ExecContext(ctx, `DROP TABLE folders`)
	require.NoError(t, err)

	_, err = env.svc.ShareFolder(ctx, folderID, owner, friend)
	require.Error(t, err)
	require.Equal(t, errs.Internal, errs.CodeOf(err))
}

func TestRevokeIsSymmetric(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	third := env.mustUser(t, "third@example.com")
	folderID := env.mustFolder(t, owner, "Work")
	noteID := env.mustNote(t, owner, "Spec", nil)

	folderGrant, err := env.svc.ShareFolder(ctx, folderID, owner, friend)
	require.NoError(t, err)
	noteGrant, err := env.svc.ShareNote(ctx, noteID, owner, friend, true)
	require.NoError(t, err)

	// A third party cannot revoke, and the attempt changes nothing.
	_, err = env.svc.RevokeFolderShare(ctx, folderGrant.ID, third)
	require.Equal(t, errs.Forbidden, errs.CodeOf(err))
	_, err = env.svc.GetFolderShare(ctx, folderGrant.ID, friend)
	require.NoError(t, err)

	// The receiver may walk away from a share.
	revoked, err := env.svc.RevokeFolderShare(ctx, folderGrant.ID, friend)
	require.NoError(t, err)
	require.Equal(t, folderGrant.ID, revoked.ID)

	// The sender may take one back.
	_, err = env.svc.RevokeNoteShare(ctx, noteGrant.ID, owner)
	require.NoError(t, err)

	// Revoking again reports not found, as does a made-up id.
	_, err = env.svc.RevokeNoteShare(ctx, noteGrant.ID, owner)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
	_, err = env.svc.RevokeFolderShare(ctx, "missing", owner)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestRevoke_LeavesEntitiesAlone(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	noteID := env.mustNote(t, owner, "Spec", nil)

	grant, err := env.svc.ShareNote(ctx, noteID, owner, friend, false)
	require.NoError(t, err)
	_, err = env.svc.RevokeNoteShare(ctx, grant.ID, friend)
	require.NoError(t, err)

	// The note still exists for its owner; the ex-grantee lost visibility.
	_, err = env.folders.GetNote(ctx, owner, noteID)
	require.NoError(t, err)
	_, err = env.folders.GetNote(ctx, friend, noteID)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestGetShare_VisibleToParticipantsOnly(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	friend := env.mustUser(t, "friend@example.com")
	third := env.mustUser(t, "third@example.com")
	noteID := env.mustNote(t, owner, "Spec", nil)

	grant, err := env.svc.ShareNote(ctx, noteID, owner, friend, true)
	require.NoError(t, err)

	got, err := env.svc.GetNoteShare(ctx, grant.ID, owner)
	require.NoError(t, err)
	require.True(t, got.CanEdit)
	_, err = env.svc.GetNoteShare(ctx, grant.ID, friend)
	require.NoError(t, err)
	_, err = env.svc.GetNoteShare(ctx, grant.ID, third)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestListShares_SentAndReceived(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mustUser(t, "alice@example.com")
	bob := env.mustUser(t, "bob@example.com")
	carol := env.mustUser(t, "carol@example.com")

	aliceFolder := env.mustFolder(t, alice, "Work")
	bobNote := env.mustNote(t, bob, "Spec", nil)

	_, err := env.svc.ShareFolder(ctx, aliceFolder, alice, bob)
	require.NoError(t, err)
	_, err = env.svc.ShareNote(ctx, bobNote, bob, alice, false)
	require.NoError(t, err)

	folderShares, err := env.svc.ListFolderSharesForUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, folderShares, 1)
	require.Equal(t, alice, folderShares[0].SenderID)

	noteShares, err := env.svc.ListNoteSharesForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, noteShares, 1)
	require.Equal(t, bob, noteShares[0].FromUserID)

	folderShares, err = env.svc.ListFolderSharesForUser(ctx, carol)
	require.NoError(t, err)
	require.Empty(t, folderShares)
}

func TestEffectiveAccess_Levels(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.mustUser(t, "owner@example.com")
	viewer := env.mustUser(t, "viewer@example.com")
	editor := env.mustUser(t, "editor@example.com")

	folderID := env.mustFolder(t, owner, "Work")
	filed := env.mustNote(t, owner, "Filed", &folderID)
	loose := env.mustNote(t, owner, "Loose", nil)

	_, err := env.svc.ShareFolder(ctx, folderID, owner, viewer)
	require.NoError(t, err)
	_, err = env.svc.ShareNote(ctx, loose, owner, viewer, false)
	require.NoError(t, err)
	_, err = env.svc.ShareNote(ctx, loose, owner, editor, true)
	require.NoError(t, err)

	level, err := env.svc.EffectiveAccess(ctx, access.FolderRef(folderID), owner)
	require.NoError(t, err)
	require.Equal(t, access.LevelOwner, level)

	// Folder grants are read-only.
	level, err = env.svc.EffectiveAccess(ctx, access.FolderRef(folderID), viewer)
	require.NoError(t, err)
	require.Equal(t, access.LevelSharedReadOnly, level)

	// A folder grant does not extend to the notes inside the folder.
	level, err = env.svc.EffectiveAccess(ctx, access.NoteRef(filed), viewer)
	require.NoError(t, err)
	require.Equal(t, access.LevelNone, level)

	level, err = env.svc.EffectiveAccess(ctx, access.NoteRef(loose), viewer)
	require.NoError(t, err)
	require.Equal(t, access.LevelSharedReadOnly, level)

	level, err = env.svc.EffectiveAccess(ctx, access.NoteRef(loose), editor)
	require.NoError(t, err)
	require.Equal(t, access.LevelSharedReadWrite, level)

	level, err = env.svc.EffectiveAccess(ctx, access.NoteRef(loose), "stranger")
	require.NoError(t, err)
	require.Equal(t, access.LevelNone, level)
}

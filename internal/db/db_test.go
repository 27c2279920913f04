package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func openTestDB(t *testing.T, masterKey string) *DB {
	t.Helper()
	d, err := OpenInMemory(t.Name(), masterKey)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.ApplySchema(context.Background()))
	return d
}

func insertUser(t *testing.T, d *DB, id string) {
	t.Helper()
	_, err := d.Pool().Exec(
		`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, '', 0)`,
		id, id+"@example.com")
	require.NoError(t, err)
}

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	d, err := Open(path, testKey)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.ApplySchema(context.Background()))

	var n int
	require.NoError(t, d.Pool().QueryRow(`SELECT count(*) FROM users`).Scan(&n))
	require.Equal(t, 0, n)
}

func TestOpen_RejectsMalformedMasterKey(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "notes.db"), "not-hex")
	require.Error(t, err)
}

func TestApplySchema_Idempotent(t *testing.T) {
	d := openTestDB(t, "")
	require.NoError(t, d.ApplySchema(context.Background()))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	d := openTestDB(t, "")
	ctx := context.Background()
	insertUser(t, d, "u1")

	sentinel := errors.New("boom")
	err := d.InTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('f1', 'u1', 'Work', NULL, 0, 0)`)
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var n int
	require.NoError(t, d.Pool().QueryRow(`SELECT count(*) FROM folders`).Scan(&n))
	require.Equal(t, 0, n, "rolled-back insert must not be visible")
}

func TestSchema_SiblingNameUniqueIndexIsBackstop(t *testing.T) {
	d := openTestDB(t, "")
	ctx := context.Background()
	insertUser(t, d, "u1")
	insertUser(t, d, "u2")

	exec := func(query string, args ...any) error {
		_, err := d.Pool().ExecContext(ctx, query, args...)
		return err
	}

	require.NoError(t, exec(
		`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('f1', 'u1', 'Work', NULL, 0, 0)`))

	// Same owner, same (NULL) parent, same name: the expression index fires
	// even though SQLite treats NULLs as distinct in plain unique columns.
	err := exec(
		`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('f2', 'u1', 'Work', NULL, 0, 0)`)
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))

	// A different owner may reuse the name.
	require.NoError(t, exec(
		`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('f3', 'u2', 'Work', NULL, 0, 0)`))
}

func TestSchema_ParentDeleteRestricted(t *testing.T) {
	d := openTestDB(t, "")
	ctx := context.Background()
	insertUser(t, d, "u1")

	_, err := d.Pool().ExecContext(ctx,
		`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('parent', 'u1', 'Top', NULL, 0, 0)`)
	require.NoError(t, err)
	_, err = d.Pool().ExecContext(ctx,
		`INSERT INTO folders (id, user_id, name, parent_id, created_at, updated_at) VALUES ('child', 'u1', 'Sub', 'parent', 0, 0)`)
	require.NoError(t, err)

	_, err = d.Pool().ExecContext(ctx, `DELETE FROM folders WHERE id = 'parent'`)
	require.Error(t, err, "a folder still referenced as parent must not be deletable")
}

func TestSchema_NoteImagesCascadeWithNote(t *testing.T) {
	d := openTestDB(t, "")
	ctx := context.Background()
	insertUser(t, d, "u1")

	_, err := d.Pool().ExecContext(ctx,
		`INSERT INTO notes (id, user_id, title, context, created_at, updated_at) VALUES ('n1', 'u1', 'Spec', '', 0, 0)`)
	require.NoError(t, err)
	_, err = d.Pool().ExecContext(ctx,
		`INSERT INTO note_images (id, note_id, image_path, description, created_at) VALUES ('i1', 'n1', 'images/n1/i1', '', 0)`)
	require.NoError(t, err)

	_, err = d.Pool().ExecContext(ctx, `DELETE FROM notes WHERE id = 'n1'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, d.Pool().QueryRow(`SELECT count(*) FROM note_images`).Scan(&n))
	require.Equal(t, 0, n)
}

func TestOpenInMemory_Encrypted(t *testing.T) {
	d := openTestDB(t, testKey)
	insertUser(t, d, "u1")

	var got string
	require.NoError(t, d.Pool().QueryRow(`SELECT id FROM users`).Scan(&got))
	require.Equal(t, "u1", got)
}

package db

// Schema contains the full SQL schema for a notes database.
//
// The unique expression indexes on folders and notes are the storage-level
// backstop for sibling uniqueness: application code pre-checks before
// inserting, but two racing transactions land on these indexes. NULL
// container ids are folded to '' so top-level siblings are constrained too
// (SQLite treats NULLs as distinct inside a plain UNIQUE constraint).
//
// folders.parent_id is RESTRICT: a folder with children can only disappear
// through the cascade engine, which removes children first inside one
// transaction. note_images cascade with their note; grant rows restrict
// their entity so retirement has to happen explicitly before the entity row
// is removed.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    name TEXT NOT NULL,
    parent_id TEXT REFERENCES folders(id) ON DELETE RESTRICT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id);
CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_sibling_name
    ON folders(user_id, ifnull(parent_id, ''), name);

CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    title TEXT NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    code_snippet TEXT,
    folder_id TEXT REFERENCES folders(id) ON DELETE RESTRICT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_user_folder ON notes(user_id, folder_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_sibling_title
    ON notes(user_id, ifnull(folder_id, ''), title);

CREATE TABLE IF NOT EXISTS note_images (
    id TEXT PRIMARY KEY,
    note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
    image_path TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_note_images_note ON note_images(note_id);

CREATE TABLE IF NOT EXISTS shared_folders (
    id TEXT PRIMARY KEY,
    folder_id TEXT NOT NULL REFERENCES folders(id),
    sender_id TEXT NOT NULL REFERENCES users(id),
    receiver_id TEXT NOT NULL REFERENCES users(id),
    shared_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_shared_folders_triple
    ON shared_folders(folder_id, sender_id, receiver_id);
CREATE INDEX IF NOT EXISTS idx_shared_folders_receiver ON shared_folders(receiver_id);

CREATE TABLE IF NOT EXISTS shared_notes (
    id TEXT PRIMARY KEY,
    note_id TEXT NOT NULL REFERENCES notes(id),
    from_user_id TEXT NOT NULL REFERENCES users(id),
    to_user_id TEXT NOT NULL REFERENCES users(id),
    can_edit INTEGER NOT NULL DEFAULT 0,
    shared_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_shared_notes_triple
    ON shared_notes(note_id, from_user_id, to_user_id);
CREATE INDEX IF NOT EXISTS idx_shared_notes_to_user ON shared_notes(to_user_id);
`

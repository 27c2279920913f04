package hierarchy

import "time"

// Field limits carried over from the original API contract.
const (
	MaxFolderNameLen       = 100
	MaxNoteTitleLen        = 250
	MaxNoteContextLen      = 10000
	MaxCodeSnippetLen      = 10000
	MaxImageDescriptionLen = 100
)

// Folder is one node of a user's folder forest. SubFolders and Notes are
// populated by GetFolder only; list queries return bare folders.
type Folder struct {
	ID        string
	UserID    string
	Name      string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	SubFolders []Folder
	Notes      []Note
}

// Note belongs to exactly one user and optionally to one of that user's
// folders. The owner is immutable after creation.
type Note struct {
	ID          string
	UserID      string
	Title       string
	Context     string
	CodeSnippet *string
	FolderID    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Images []NoteImage
}

// NoteImage is owned by its note and never outlives it.
type NoteImage struct {
	ID          string
	NoteID      string
	ImagePath   string
	Description string
	CreatedAt   time.Time
}

// CreateFolderParams are the caller-supplied fields for a new folder.
type CreateFolderParams struct {
	Name     string
	ParentID *string
}

// UpdateFolderParams rename and/or reparent a folder. Both fields are applied
// as given; pass the current values to leave them unchanged.
type UpdateFolderParams struct {
	Name     string
	ParentID *string
}

// CreateNoteParams are the caller-supplied fields for a new note.
type CreateNoteParams struct {
	Title       string
	Context     string
	CodeSnippet *string
	FolderID    *string
}

// UpdateNoteParams replace a note's content fields and folder assignment.
type UpdateNoteParams struct {
	Title       string
	Context     string
	CodeSnippet *string
	FolderID    *string
}

// AddImageParams attach an image to a note. When Data is set the payload is
// stored in the blob store and the resulting key becomes the image path;
// otherwise Path must reference an already-stored object.
type AddImageParams struct {
	Path        string
	Description string
	Data        []byte
	ContentType string
}

package sharing

import "time"

// FolderShare grants the receiver read-style visibility of one folder. There
// is no edit flag at the folder level, and a folder share never implies
// access to the folder's notes or subfolders; each shared entity is
// evaluated independently.
type FolderShare struct {
	ID         string
	FolderID   string
	SenderID   string
	ReceiverID string
	SharedAt   time.Time
}

// NoteShare grants the recipient read or read-write access to one note.
// CanEdit is fixed at share time; changing it means revoke and share again.
type NoteShare struct {
	ID         string
	NoteID     string
	FromUserID string
	ToUserID   string
	CanEdit    bool
	SharedAt   time.Time
}

type folderShareRow struct {
	ID         string `db:"id"`
	FolderID   string `db:"folder_id"`
	SenderID   string `db:"sender_id"`
	ReceiverID string `db:"receiver_id"`
	SharedAt   int64  `db:"shared_at"`
}

func (r folderShareRow) toShare() FolderShare {
	return FolderShare{
		ID:         r.ID,
		FolderID:   r.FolderID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		SharedAt:   time.Unix(r.SharedAt, 0).UTC(),
	}
}

type noteShareRow struct {
	ID         string `db:"id"`
	NoteID     string `db:"note_id"`
	FromUserID string `db:"from_user_id"`
	ToUserID   string `db:"to_user_id"`
	CanEdit    bool   `db:"can_edit"`
	SharedAt   int64  `db:"shared_at"`
}

func (r noteShareRow) toShare() NoteShare {
	return NoteShare{
		ID:         r.ID,
		NoteID:     r.NoteID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		CanEdit:    r.CanEdit,
		SharedAt:   time.Unix(r.SharedAt, 0).UTC(),
	}
}

package db

import (
	"database/sql"
	"errors"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

// SQLiteDriverName is the project-specific SQLCipher driver name.
const SQLiteDriverName = "sqlite3_devnotes"

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{})
}

// IsUniqueViolation reports whether err is a unique-index constraint failure.
// Pre-checks normally catch duplicates first; this surfaces the storage
// backstop when two writers race.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint && se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

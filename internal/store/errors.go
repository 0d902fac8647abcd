package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNoResource is returned when a link is requested for a resource that does
// not exist.
var ErrNoResource = errors.New("resource does not exist")

// IsUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint, e.g. a taken email or username.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

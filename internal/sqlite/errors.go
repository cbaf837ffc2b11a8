package sqlite

import "strings"

// The modernc driver surfaces constraint violations as flat error strings
// with no typed error to unwrap, so classification matches the SQLite
// message text.

// isUniqueViolation reports whether err is a primary key or unique index
// collision, such as inserting a document code that already exists.
func isUniqueViolation(err error) bool {
	return errContains(err, "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err is a reference to a missing
// parent row, such as a group whose machine is not registered.
func isForeignKeyViolation(err error) bool {
	return errContains(err, "FOREIGN KEY constraint failed")
}

func errContains(err error, msg string) bool {
	return err != nil && strings.Contains(err.Error(), msg)
}

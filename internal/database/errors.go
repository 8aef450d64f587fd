// internal/database/errors.go
package database

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMemberConflict is returned when a write would seat a user in two lobbies at once.
	ErrMemberConflict = errors.New("user already belongs to another lobby")
)

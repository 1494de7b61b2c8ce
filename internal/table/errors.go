package table

import "errors"

var (
	// ErrRowNotFound is returned when a row key is not in the working collection.
	ErrRowNotFound = errors.New("row not found")

	// ErrMissingKey is returned when a row has no value for the key field.
	ErrMissingKey = errors.New("row is missing its key field")

	// ErrDuplicateKey is returned when two rows share a key.
	ErrDuplicateKey = errors.New("duplicate row key")

	// ErrKeyMismatch is returned when a server row carries a different key
	// than the row it answers for.
	ErrKeyMismatch = errors.New("row key changed")

	// ErrEditingDisabled is returned by edit operations when EnableEditing is off.
	ErrEditingDisabled = errors.New("editing is disabled")

	// ErrAddDisabled is returned by add-row operations when EnableAddRow is off.
	ErrAddDisabled = errors.New("adding rows is disabled")

	// ErrNotDrafting is returned when a draft operation runs outside add mode.
	ErrNotDrafting = errors.New("no row is being added")

	// ErrInvalidPageSize is returned for a non-positive page size.
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrPaginationCallback is returned when manual pagination has no host callback.
	ErrPaginationCallback = errors.New("manual pagination requires OnPaginationChange")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("controller is closed")
)

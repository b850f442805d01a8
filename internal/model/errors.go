package model

import "errors"

// Error kinds shared by repositories and services.  Callers wrap them with
// context using fmt.Errorf("...: %w", ErrX) and test with errors.Is.  The
// HTTP layer maps them onto 404, 403, 400 and 409 respectively.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("conflict")
)

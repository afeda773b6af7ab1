package store

import "errors"

var (
	// ErrValidation indicates a blank or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the id does not exist or is not owned by the
	// caller. The two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a delete was refused because another row still
	// references the target. The caller must reassign first; data loss is
	// never implicit.
	ErrConflict = errors.New("conflict")

	// ErrTagsPartial indicates a box row was committed but its tag rows
	// were not. The box exists with an empty tag set; the failure is a
	// warning, not a rollback.
	ErrTagsPartial = errors.New("box created but tags failed")
)

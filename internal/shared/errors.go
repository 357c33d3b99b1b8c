package shared

import "errors"

// Error taxonomy shared by every domain package. Domain sentinels wrap one of
// these so the HTTP layer can classify them with errors.Is.
var (
	// ErrNotFound indicates a missing resource or one owned by another company.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request collides with current state.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the actor lacks permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates no actor could be resolved.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage returns err's text when it belongs to the taxonomy and a
// generic message otherwise, so driver errors never reach end users.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return "An unexpected error occurred. Please try again."
}

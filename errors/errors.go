package errors

import "fmt"

var (
	// Request taxonomy. Each sentinel maps to exactly one error condition
	// reported back to the requesting client by the transport layer.
	ErrForbidden          = fmt.Errorf("forbidden: actor lacks the required affiliation")
	ErrConflict           = fmt.Errorf("conflict")
	ErrNotAllowed         = fmt.Errorf("not allowed")
	ErrItemNotFound       = fmt.Errorf("item not found")
	ErrUnsupportedFeature = fmt.Errorf("feature not offered by this deployment")
	ErrRequestTimeout     = fmt.Errorf("request timed out before commit")

	// ErrNicknameTaken is a conflict: errors.Is(err, ErrConflict) holds.
	ErrNicknameTaken    = fmt.Errorf("%w: nickname already in use", ErrConflict)
	ErrNicknameCensored = fmt.Errorf("nickname contains a censored word")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

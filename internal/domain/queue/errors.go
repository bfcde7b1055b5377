package queue

import "errors"

// Error kinds returned by engine operations. Callers classify with errors.Is;
// the HTTP handler maps each kind to a response status. Degraded-but-successful
// paths (window fallback, preferred-staff fallback) are logged warnings, not
// errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoEligibleStaff   = errors.New("no eligible staff")
	ErrValidation        = errors.New("validation failed")
)

package ledger

import "errors"

var (
	// ErrNotFound means no ledger entry exists for the customer/product pair.
	ErrNotFound = errors.New("lead entry not found")
	// ErrConflict means a conditional update lost the race: the entry's
	// version or state changed under the caller. Reload and re-decide.
	ErrConflict = errors.New("lead entry conflict")
	// ErrInvalidTransition rejects state changes outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid lead state transition")
)

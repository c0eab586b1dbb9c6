package ledger

import "errors"

var (
	// ErrInvalidOrder is returned by CreateOrder when a request fails
	// validation. Nothing is recorded in the ledger in that case.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrCorruptState is returned when a snapshot fails validation during
	// restore. The ledger keeps its previous state untouched.
	ErrCorruptState = errors.New("corrupt ledger state")
)

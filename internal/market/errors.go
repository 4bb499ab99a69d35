package market

import "errors"

var (
	// ErrNotFound means no snapshot has ever been recorded for the product.
	ErrNotFound = errors.New("market snapshot not found")
	// ErrStale means the newest snapshot is older than the staleness horizon.
	ErrStale = errors.New("market snapshot stale")
	// ErrInvalidSnapshot rejects malformed ingest payloads.
	ErrInvalidSnapshot = errors.New("invalid market snapshot")
)

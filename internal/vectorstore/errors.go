package vectorstore

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector does not match
	// the store's configured dimension. Raised before any mutation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCapacityExceeded is returned when an insert would exceed the
	// configured maximum element capacity.
	ErrCapacityExceeded = errors.New("index capacity exceeded")

	// ErrInvalidTopK is returned for a non-positive topK.
	ErrInvalidTopK = errors.New("topK must be positive")
)

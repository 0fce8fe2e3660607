package nn

import "errors"

var (
	// ErrShapeMismatch is returned when a batch, label matrix or parameter does not
	// have the shape the network was built for. Inputs are never broadcast or truncated.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrConfiguration is returned for invalid layer specs, unknown activation,
	// initialisation or optimizer names, and invalid training hyper-parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrStaleCache is returned by Backward when there is no fresh forward cache
	// for the given batch.
	ErrStaleCache = errors.New("stale forward cache")
)

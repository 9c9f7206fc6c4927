package upscale

import (
	"errors"
	"fmt"
)

// Sentinel errors of the orchestration layer.
var (
	// ErrUnsupportedAlgorithm is reported when a descriptor's live support
	// check fails. The view moves on to the next fallback candidate.
	ErrUnsupportedAlgorithm = errors.New("upscale: algorithm not supported on this device")

	// ErrCreationFailure is reported when an algorithm factory or its
	// initialization fails. It is treated like ErrUnsupportedAlgorithm.
	ErrCreationFailure = errors.New("upscale: algorithm creation failed")

	// ErrNoAlgorithmAvailable is reported once when the fallback chain is
	// exhausted. The view keeps running in fallback-resize mode.
	ErrNoAlgorithmAvailable = errors.New("upscale: no upscaling algorithm available")

	// ErrUndersizedRenderTarget is recorded when the render size is below the
	// active algorithm's minimum. The frame falls back to a plain resize.
	ErrUndersizedRenderTarget = errors.New("upscale: render size below algorithm minimum")

	// ErrViewDestroyed is returned by operations on a destroyed view.
	ErrViewDestroyed = errors.New("upscale: view destroyed")

	// ErrNotInitialized is returned by Execute before Initialize.
	ErrNotInitialized = errors.New("upscale: view not initialized")

	// ErrInvalidParams is returned when init or dispatch parameters are
	// unusable.
	ErrInvalidParams = errors.New("upscale: invalid parameters")
)

// AlgorithmNotFoundError is returned when an identifier has no registered
// descriptor.
type AlgorithmNotFoundError struct {
	Identifier string
}

func (e *AlgorithmNotFoundError) Error() string {
	return "upscale: algorithm not found: " + e.Identifier
}

// AlgorithmError describes a failure of one algorithm operation.
// Err is one of the sentinel errors above or the backend's own error.
type AlgorithmError struct {
	Identifier string
	Op         string
	Err        error
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("upscale: %s %s: %v", e.Op, e.Identifier, e.Err)
}

func (e *AlgorithmError) Unwrap() error {
	return e.Err
}

// panicError converts a recovered panic value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}

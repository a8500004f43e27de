// Package extractor defines the feature-extraction capability consumed by the
// matching engine: raw image bytes in, fixed-length feature vector out.
//
// The extraction algorithm itself is an external capability (typically a
// model-serving sidecar); this package holds the interface, its failure
// contract, and two implementations — a remote HTTP client and a
// deterministic hash-based extractor for tests and development.
package extractor

import (
	"context"
	"errors"

	"github.com/hupe1980/biomatch/model"
)

// ErrNoBiometricDetected is returned when the extractor finds no usable
// biometric in the input image. It is a distinct, caller-visible condition
// and must never be collapsed into "no match".
var ErrNoBiometricDetected = errors.New("no biometric detected in image")

// Extractor converts an image into a feature vector for the given type.
type Extractor interface {
	// Extract returns the feature vector, or ErrNoBiometricDetected if the
	// image contains no usable sample of the requested type.
	Extract(ctx context.Context, t model.Type, image []byte) ([]float32, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, t model.Type, image []byte) ([]float32, error)

// Extract implements Extractor.
func (f Func) Extract(ctx context.Context, t model.Type, image []byte) ([]float32, error) {
	return f(ctx, t, image)
}

package biomatch

import (
	"errors"
	"fmt"

	"github.com/hupe1980/biomatch/extractor"
	"github.com/hupe1980/biomatch/idgen"
	"github.com/hupe1980/biomatch/metric"
	"github.com/hupe1980/biomatch/store"
)

var (
	// ErrNotFound is returned when a lookup or delete names a record that
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoMatch is the negative comparison result: no stored record scored
	// at or above the match threshold. It is not a fault.
	ErrNoMatch = errors.New("no match found")

	// ErrUnprocessableBiometric is returned when the extractor found no
	// usable biometric in the input image.
	ErrUnprocessableBiometric = errors.New("unprocessable biometric sample")

	// ErrStoreUnavailable is returned when the persistence layer could not
	// be reached. The engine never retries internally.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIDSpaceExhausted is returned when ID minting keeps colliding, which
	// indicates a deeper fault.
	ErrIDSpaceExhausted = errors.New("id space exhausted")

	// ErrInvalidType is returned for unknown biometric types.
	ErrInvalidType = errors.New("invalid biometric type")
)

// ErrDuplicateBiometric is returned by Register when a sufficiently similar
// record of the same type already exists. The new vector is never persisted.
type ErrDuplicateBiometric struct {
	// ConflictID is the existing record the sample collided with.
	ConflictID string
	// Score is the similarity between the new sample and the conflict.
	Score float64
}

func (e *ErrDuplicateBiometric) Error() string {
	return fmt.Sprintf("duplicate biometric: matches existing record %s (score %.4f)", e.ConflictID, e.Score)
}

// ErrDimensionMismatch indicates stored and incoming vector lengths disagree.
// This is a data-integrity fault, never a user input error.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidThresholds indicates a threshold configuration that would let
// registration and comparison disagree about identity.
type ErrInvalidThresholds struct {
	Dedup float64
	Match float64
}

func (e *ErrInvalidThresholds) Error() string {
	return fmt.Sprintf("invalid thresholds: dedup %.4f must be >= match %.4f", e.Dedup, e.Match)
}

// translateError classifies collaborator errors into the engine's taxonomy.
// Meaning is preserved; the original error stays reachable via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if errors.Is(err, extractor.ErrNoBiometricDetected) {
		return fmt.Errorf("%w: %w", ErrUnprocessableBiometric, err)
	}
	if errors.Is(err, idgen.ErrSpaceExhausted) {
		return fmt.Errorf("%w: %w", ErrIDSpaceExhausted, err)
	}

	var mdm *metric.ErrDimensionMismatch
	if errors.As(err, &mdm) {
		return &ErrDimensionMismatch{Expected: mdm.Expected, Actual: mdm.Actual, cause: err}
	}
	var sdm *store.ErrVectorDimension
	if errors.As(err, &sdm) {
		return &ErrDimensionMismatch{Expected: sdm.Expected, Actual: sdm.Actual, cause: err}
	}

	return err
}

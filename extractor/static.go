package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/hupe1980/biomatch/model"
)

// Static derives feature vectors deterministically from the image bytes via
// SHA-256 expansion. Identical inputs always yield identical vectors, which
// makes dedup and match behavior fully reproducible without a model server.
// Useful for tests, demos, and wiring checks; useless for real biometrics.
type Static struct {
	dims map[model.Type]int
}

// NewStatic creates a deterministic extractor emitting vectors of the given
// per-type dimensionality.
func NewStatic(dims map[model.Type]int) *Static {
	return &Static{dims: dims}
}

// Extract implements Extractor. Empty input counts as "no biometric".
func (s *Static) Extract(ctx context.Context, t model.Type, image []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrNoBiometricDetected
	}

	dim := s.dims[t]
	if dim <= 0 {
		dim = 128
	}

	vec := make([]float32, dim)
	seed := sha256.Sum256(image)
	block := seed[:]
	for i := range vec {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		bits := binary.LittleEndian.Uint32(block[(i%8)*4:])
		// Map to [-1, 1).
		vec[i] = float32(int32(bits)) / (1 << 31)
	}
	return vec, nil
}

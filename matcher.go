package biomatch

import (
	"context"
	"errors"

	"github.com/hupe1980/biomatch/metric"
	"github.com/hupe1980/biomatch/model"
)

// findBestMatch scores vec against every stored record of type t and returns
// the highest-scoring candidate together with the population size. Ties on
// score resolve to the lexicographically smallest ID so repeated calls over
// the same population are stable. Returns a nil match for an empty
// population.
func (e *Engine) findBestMatch(ctx context.Context, t model.Type, vec []float32) (*model.Match, int, error) {
	records, err := e.store.Scan(ctx, t)
	if err != nil {
		return nil, 0, translateError(err)
	}

	var best *model.Match

	for i, rec := range records {
		if i%scanCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			default:
			}
		}

		score, err := metric.Similarity(vec, rec.Vector)
		if err != nil {
			var dim *metric.ErrDimensionMismatch
			if errors.As(err, &dim) {
				return nil, 0, &ErrDimensionMismatch{Expected: dim.Expected, Actual: dim.Actual, cause: err}
			}

			return nil, 0, err
		}

		if best == nil || score > best.Score || (score == best.Score && rec.ID < best.ID) {
			best = &model.Match{ID: rec.ID, Score: score, Record: rec}
		}
	}

	return best, len(records), nil
}

// scanCheckInterval controls how often a scan polls for cancellation.
const scanCheckInterval = 256

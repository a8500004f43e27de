// Package biomatch implements a biometric identity matching engine.
//
// The engine turns raw biometric images (face or palm) into embedding
// vectors via an Extractor, persists them in a Store, and answers
// identification queries by cosine-similarity scan over the stored
// population. Registration deduplicates: a sample scoring at or above the
// dedup threshold against an existing record of the same type is rejected
// with the conflicting ID instead of creating a second identity.
package biomatch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/hupe1980/biomatch/extractor"
	"github.com/hupe1980/biomatch/idgen"
	"github.com/hupe1980/biomatch/journal"
	"github.com/hupe1980/biomatch/metric"
	"github.com/hupe1980/biomatch/model"
	"github.com/hupe1980/biomatch/resource"
	"github.com/hupe1980/biomatch/store"
)

// Engine is the biometric matching engine. It is safe for concurrent use.
type Engine struct {
	extractor  extractor.Extractor
	store      store.Store
	logger     *Logger
	metrics    MetricsCollector
	thresholds map[model.Type]Thresholds
	dims       store.Dimensions
	controller *resource.Controller
	archive    *sampleArchive
	journal    *journal.Journal

	// regMu serializes register per type so the dedup scan and the insert
	// are atomic with respect to concurrent registrations of the same
	// biometric.
	regMu map[model.Type]*sync.Mutex

	// opMu fences mutations (read side) against Checkpoint (write side):
	// a record committed between the snapshot scan and the log truncation
	// would otherwise survive in neither.
	opMu sync.RWMutex
}

// New creates an Engine over the given extractor and store.
func New(ext extractor.Extractor, st store.Store, optFns ...Option) (*Engine, error) {
	if ext == nil {
		return nil, fmt.Errorf("biomatch: nil extractor")
	}
	if st == nil {
		return nil, fmt.Errorf("biomatch: nil store")
	}

	opts := applyOptions(optFns)

	thresholds := make(map[model.Type]Thresholds, len(model.Types()))
	for _, t := range model.Types() {
		th, ok := opts.thresholds[t]
		if !ok {
			th = DefaultThresholds
		}
		if err := th.validate(); err != nil {
			return nil, fmt.Errorf("biomatch: %s thresholds: %w", t, err)
		}
		thresholds[t] = th
	}

	regMu := make(map[model.Type]*sync.Mutex, len(model.Types()))
	for _, t := range model.Types() {
		regMu[t] = &sync.Mutex{}
	}

	return &Engine{
		extractor:  ext,
		store:      st,
		logger:     opts.logger,
		metrics:    opts.metrics,
		thresholds: thresholds,
		dims:       opts.dims,
		controller: opts.controller,
		archive:    &sampleArchive{bs: opts.archive},
		journal:    opts.journal,
		regMu:      regMu,
	}, nil
}

// Thresholds returns the active thresholds for the given type.
func (e *Engine) Thresholds(t model.Type) Thresholds {
	return e.thresholds[t]
}

// Register extracts an embedding from image, checks it against the existing
// population of the same type, and persists a new record with a freshly
// minted ID. It fails with *ErrDuplicateBiometric when an existing record
// scores at or above the dedup threshold, naming the conflicting ID.
func (e *Engine) Register(ctx context.Context, t model.Type, image []byte, metadata map[string]string) (*model.Record, error) {
	start := time.Now()

	rec, err := e.register(ctx, t, image, metadata)

	duration := time.Since(start)
	e.metrics.RecordRegister(duration, err)

	id := ""
	if rec != nil {
		id = rec.ID
	}
	e.logger.LogRegister(ctx, t, id, duration, err)

	return rec, err
}

func (e *Engine) register(ctx context.Context, t model.Type, image []byte, metadata map[string]string) (*model.Record, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}

	vec, err := e.extract(ctx, t, image)
	if err != nil {
		return nil, err
	}

	e.opMu.RLock()
	defer e.opMu.RUnlock()

	mu := e.regMu[t]
	mu.Lock()
	defer mu.Unlock()

	best, _, err := e.findBestMatch(ctx, t, vec)
	if err != nil {
		return nil, err
	}

	if best != nil && best.Score >= e.thresholds[t].Dedup {
		return nil, &ErrDuplicateBiometric{ConflictID: best.ID, Score: best.Score}
	}

	id, err := idgen.Mint(ctx, t, func(ctx context.Context, id string) (bool, error) {
		_, err := e.store.Get(ctx, id)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, translateError(err)
	})
	if err != nil {
		return nil, translateError(err)
	}

	rec := &model.Record{
		ID:        id,
		Type:      t,
		Vector:    vec,
		Metadata:  cloneMetadata(metadata),
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, translateError(err)
	}

	if e.journal != nil {
		if _, err := e.journal.Append(journal.Entry{Op: journal.OpInsert, Record: rec}); err != nil {
			// The journal is the recovery source for the memory backend; a
			// record missing from it would silently vanish on restart.
			if _, delErr := e.store.Delete(ctx, rec.ID); delErr != nil {
				e.logger.Error("journal rollback failed", "id", rec.ID, "error", delErr)
			}
			return nil, fmt.Errorf("biomatch: journal append: %w", err)
		}
	}

	e.archive.put(ctx, e.logger, rec, image)

	return rec.Clone(), nil
}

// Compare extracts an embedding from image and scores it against every
// stored record of the same type. It returns the best match at or above the
// match threshold, or ErrNoMatch when the population is empty or nothing
// clears the threshold. Ties resolve to the smallest ID.
func (e *Engine) Compare(ctx context.Context, t model.Type, image []byte) (*model.Match, error) {
	start := time.Now()

	match, population, err := e.compare(ctx, t, image)

	duration := time.Since(start)
	e.metrics.RecordCompare(population, duration, err)

	matchID, score := "", 0.0
	if match != nil {
		matchID, score = match.ID, match.Score
	}
	e.logger.LogCompare(ctx, t, matchID, score, population, err)

	return match, err
}

func (e *Engine) compare(ctx context.Context, t model.Type, image []byte) (*model.Match, int, error) {
	if !t.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}

	vec, err := e.extract(ctx, t, image)
	if err != nil {
		return nil, 0, err
	}

	best, population, err := e.findBestMatch(ctx, t, vec)
	if err != nil {
		return nil, 0, err
	}

	if best == nil || best.Score < e.thresholds[t].Match {
		return nil, population, ErrNoMatch
	}

	best.Record = best.Record.Clone()

	return best, population, nil
}

// Get returns the stored record with the given ID or ErrNotFound.
func (e *Engine) Get(ctx context.Context, id string) (*model.Record, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, translateError(err)
	}

	return rec, nil
}

// List returns one page of records plus the total count matching the
// options.
func (e *Engine) List(ctx context.Context, opts store.ListOptions) ([]*model.Record, int, error) {
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidType, string(opts.Type))
	}

	recs, total, err := e.store.List(ctx, opts)
	if err != nil {
		return nil, 0, translateError(err)
	}

	return recs, total, nil
}

// Count returns the number of stored records of the given type.
func (e *Engine) Count(ctx context.Context, t model.Type) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}

	n, err := e.store.Count(ctx, t)
	if err != nil {
		return 0, translateError(err)
	}

	return n, nil
}

// Delete removes the record with the given ID. The vector is gone
// afterwards; the identity can be re-registered. Returns ErrNotFound when
// no record exists.
func (e *Engine) Delete(ctx context.Context, id string) error {
	start := time.Now()

	err := e.delete(ctx, id)

	e.metrics.RecordDelete(time.Since(start), err)
	e.logger.LogDelete(ctx, id, err)

	return err
}

func (e *Engine) delete(ctx context.Context, id string) error {
	e.opMu.RLock()
	defer e.opMu.RUnlock()

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return translateError(err)
	}

	existed, err := e.store.Delete(ctx, id)
	if err != nil {
		return translateError(err)
	}
	if !existed {
		return ErrNotFound
	}

	if e.journal != nil {
		if _, err := e.journal.Append(journal.Entry{Op: journal.OpDelete, ID: id}); err != nil {
			// An un-journaled delete would resurrect the record on
			// restart. Put it back so live and replayed state agree.
			if insErr := e.store.Insert(ctx, rec); insErr != nil {
				e.logger.Error("journal rollback failed", "id", id, "error", insErr)
			}
			return fmt.Errorf("biomatch: journal append: %w", err)
		}
	}

	e.archive.remove(ctx, e.logger, rec)

	return nil
}

// Checkpoint writes a snapshot of the full population to the journal and
// truncates the log. Mutations are held off for the duration so the snapshot
// plus the emptied log always describe a consistent population. No-op
// without a journal.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if e.journal == nil {
		return nil
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	var records []*model.Record

	for _, t := range model.Types() {
		recs, err := e.store.Scan(ctx, t)
		if err != nil {
			return translateError(err)
		}
		records = append(records, recs...)
	}

	if err := e.journal.Checkpoint(records); err != nil {
		return fmt.Errorf("biomatch: checkpoint: %w", err)
	}

	return nil
}

// Close releases the store and the journal.
func (e *Engine) Close() error {
	var firstErr error

	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			firstErr = err
		}
	}

	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// extract runs the extractor under the resource controller and validates the
// embedding against the configured dimensionality.
func (e *Engine) extract(ctx context.Context, t model.Type, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnprocessableBiometric)
	}

	if err := e.controller.Acquire(ctx); err != nil {
		return nil, err
	}
	defer e.controller.Release()

	vec, err := e.extractor.Extract(ctx, t, image)
	if err != nil {
		return nil, translateError(err)
	}

	if want, ok := e.dims[t]; ok && want > 0 && len(vec) != want {
		return nil, &ErrDimensionMismatch{Expected: want, Actual: len(vec)}
	}

	// A zero-norm embedding has no direction and would score MinScore
	// against everything, silently passing every dedup check.
	if metric.Magnitude(vec) == 0 {
		return nil, fmt.Errorf("%w: zero-norm embedding", ErrUnprocessableBiometric)
	}

	return vec, nil
}

// RestoreStore loads the journal snapshot (if any) from dir and replays j
// into st, rebuilding the population after a restart. It returns the number
// of snapshot records loaded and journal entries replayed.
func RestoreStore(ctx context.Context, st store.Store, dir string, j *journal.Journal) (int, int, error) {
	snap, err := journal.LoadSnapshot(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("biomatch: load snapshot: %w", err)
	}

	for _, rec := range snap {
		if err := st.Insert(ctx, rec); err != nil {
			return 0, 0, translateError(err)
		}
	}

	replayed := 0

	err = j.Replay(func(entry journal.Entry) error {
		replayed++

		switch entry.Op {
		case journal.OpInsert:
			if entry.Record == nil {
				return nil
			}
			return st.Insert(ctx, entry.Record)
		case journal.OpDelete:
			_, err := st.Delete(ctx, entry.ID)
			return err
		default:
			return nil
		}
	})
	if err != nil {
		return len(snap), replayed, fmt.Errorf("biomatch: replay: %w", err)
	}

	return len(snap), replayed, nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func sampleKey(rec *model.Record) string {
	return path.Join(rec.Type.Tag(), rec.ID)
}

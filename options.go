package biomatch

import (
	"log/slog"

	"github.com/hupe1980/biomatch/blobstore"
	"github.com/hupe1980/biomatch/journal"
	"github.com/hupe1980/biomatch/model"
	"github.com/hupe1980/biomatch/resource"
	"github.com/hupe1980/biomatch/store"
)

// Thresholds holds the two similarity cut-offs for one biometric type.
// Both boundaries are inclusive: a score equal to the threshold counts.
type Thresholds struct {
	// Dedup is the level at/above which a new sample is considered the same
	// physical biometric as an existing record, blocking registration.
	Dedup float64
	// Match is the level at/above which a comparison is considered a
	// successful identification. Must not exceed Dedup.
	Match float64
}

func (t Thresholds) validate() error {
	if t.Dedup < 0 || t.Dedup > 1 || t.Match < 0 || t.Match > 1 {
		return &ErrInvalidThresholds{Dedup: t.Dedup, Match: t.Match}
	}
	if t.Dedup < t.Match {
		return &ErrInvalidThresholds{Dedup: t.Dedup, Match: t.Match}
	}
	return nil
}

// DefaultThresholds applies when a type has no explicit configuration.
var DefaultThresholds = Thresholds{Dedup: 0.9, Match: 0.8}

type options struct {
	logger     *Logger
	metrics    MetricsCollector
	thresholds map[model.Type]Thresholds
	dims       store.Dimensions
	controller *resource.Controller
	archive    blobstore.BlobStore
	journal    *journal.Journal
}

// Option configures Engine construction.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the given level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithThresholds sets the similarity thresholds for one biometric type.
// Types without explicit thresholds use DefaultThresholds. Validation
// happens in New: dedup >= match, both within [0,1].
func WithThresholds(t model.Type, th Thresholds) Option {
	return func(o *options) {
		o.thresholds[t] = th
	}
}

// WithDimensions fixes the expected vector length per type. Extractor output
// and stored vectors are checked against it; mismatches are data-integrity
// faults.
func WithDimensions(dims store.Dimensions) Option {
	return func(o *options) {
		o.dims = dims
	}
}

// WithResourceController bounds concurrent extractions and extraction rate.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithSampleArchive configures a blob store that receives the raw image of
// every successful registration (keyed "{type}/{id}"). Archive failures are
// logged, not fatal: the record is already durable at that point.
func WithSampleArchive(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.archive = bs
	}
}

// WithJournal configures an operation journal. Every successful insert and
// delete is appended; replay the journal into a fresh store at startup via
// RestoreStore.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:     NoopLogger(),
		metrics:    NoopMetricsCollector{},
		thresholds: make(map[model.Type]Thresholds),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

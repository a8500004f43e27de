// Package store defines the vector store consumed by the matching engine and
// provides in-memory, Badger-backed, and DynamoDB-backed implementations.
//
// The store is the sole source of truth for biometric records. The matcher
// performs no caching across calls; every compare and register re-scans
// current state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/biomatch/model"
)

var (
	// ErrNotFound is returned when no record exists for the given ID.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by Insert when the record ID already exists.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrUnavailable is returned when the backing storage cannot be reached.
	// Backend errors that are not ErrNotFound/ErrDuplicateID wrap this.
	ErrUnavailable = errors.New("store unavailable")
)

// ErrVectorDimension is returned by Insert when a record's vector length
// disagrees with the configured dimensionality for its type. Mismatched
// vectors are corrupt data and are never persisted.
type ErrVectorDimension struct {
	Type     model.Type
	Expected int
	Actual   int
}

func (e *ErrVectorDimension) Error() string {
	return fmt.Sprintf("store: %s vector has %d dimensions, expected %d", e.Type, e.Actual, e.Expected)
}

// Filter selects records whose metadata contains every listed key/value pair.
// An empty or nil filter matches everything.
type Filter map[string]string

// ListOptions controls pagination for List.
type ListOptions struct {
	// Type restricts the listing to one biometric type. Empty means all types.
	Type model.Type
	// Filter restricts the listing by metadata equality.
	Filter Filter
	// Page is 1-based. Values < 1 are treated as 1.
	Page int
	// Limit is the page size. Values < 1 fall back to DefaultPageSize.
	Limit int
}

// DefaultPageSize is used when ListOptions.Limit is not positive.
const DefaultPageSize = 20

// Store holds (id, type, vector, metadata) tuples.
//
// Implementations must be safe for concurrent use. All returned records are
// copies; mutating them never affects stored state.
type Store interface {
	// Insert persists a new record. It fails with ErrDuplicateID if the ID is
	// taken and with *ErrVectorDimension if the vector length is wrong for
	// the record's type.
	Insert(ctx context.Context, rec *model.Record) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Record, error)

	// Delete removes the record with the given ID, reporting whether it
	// existed. Deletes are hard: the vector is gone afterwards.
	Delete(ctx context.Context, id string) (bool, error)

	// Scan returns all records of the given type. Ordering is not
	// guaranteed; the matcher applies its own tie-break.
	Scan(ctx context.Context, t model.Type) ([]*model.Record, error)

	// List returns one page of records plus the total count of records
	// matching the options (across all pages). Ordering is stable:
	// CreatedAt ascending, then ID.
	List(ctx context.Context, opts ListOptions) ([]*model.Record, int, error)

	// Count returns the number of records of the given type.
	Count(ctx context.Context, t model.Type) (int, error)

	// Close releases backend resources.
	Close() error
}

// Dimensions maps each biometric type to its fixed vector length.
type Dimensions map[model.Type]int

// check validates a record against the configured dimensions.
// A nil/empty Dimensions map disables the check for that type.
func (d Dimensions) check(rec *model.Record) error {
	want, ok := d[rec.Type]
	if !ok || want <= 0 {
		return nil
	}
	if len(rec.Vector) != want {
		return &ErrVectorDimension{Type: rec.Type, Expected: want, Actual: len(rec.Vector)}
	}
	return nil
}

func normalizePage(opts *ListOptions) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultPageSize
	}
}

// paginate slices records (already sorted) into the requested page.
func paginate(recs []*model.Record, opts ListOptions) []*model.Record {
	start := (opts.Page - 1) * opts.Limit
	if start >= len(recs) {
		return []*model.Record{}
	}
	end := start + opts.Limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[start:end]
}

// Matches reports whether the record's metadata satisfies the filter.
func (f Filter) Matches(rec *model.Record) bool {
	for k, v := range f {
		if rec.Metadata[k] != v {
			return false
		}
	}
	return true
}

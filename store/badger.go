package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/biomatch/codec"
	"github.com/hupe1980/biomatch/model"
)

var recordPrefix = []byte("rec/")

// BadgerStore is a persistent Store backed by BadgerDB. Records are encoded
// with the configured codec (CBOR by default).
type BadgerStore struct {
	db    *badger.DB
	dims  Dimensions
	codec codec.Codec
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string
	// InMemory runs Badger without touching disk (tests).
	InMemory bool
	// Codec encodes record values. Defaults to codec.Default.
	Codec codec.Codec
	// Dimensions enables per-type vector length enforcement.
	Dimensions Dimensions
}

// NewBadgerStore opens (or creates) a Badger-backed store.
func NewBadgerStore(optFns ...func(o *BadgerOptions)) (*BadgerStore, error) {
	opts := BadgerOptions{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", ErrUnavailable, err)
	}

	return &BadgerStore{db: db, dims: opts.Dimensions, codec: opts.Codec}, nil
}

func recordKey(id string) []byte {
	return append(append([]byte{}, recordPrefix...), id...)
}

// Insert persists a new record. The existence check and the write share one
// transaction, so concurrent inserts of the same ID cannot both succeed.
func (s *BadgerStore) Insert(ctx context.Context, rec *model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dims.check(rec); err != nil {
		return err
	}

	val, err := s.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	key := recordKey(rec.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateID
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return ErrDuplicateID
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the record with the given ID or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, id string) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec model.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return s.codec.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &rec, nil
}

// Delete removes the record with the given ID, reporting whether it existed.
func (s *BadgerStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	existed := false
	key := recordKey(id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return existed, nil
}

// Scan returns all records of the given type.
func (s *BadgerStore) Scan(ctx context.Context, t model.Type) ([]*model.Record, error) {
	return s.collect(ctx, func(rec *model.Record) bool {
		return rec.Type == t
	})
}

// List returns one page of records plus the total matching count.
func (s *BadgerStore) List(ctx context.Context, opts ListOptions) ([]*model.Record, int, error) {
	normalizePage(&opts)

	recs, err := s.collect(ctx, func(rec *model.Record) bool {
		if opts.Type != "" && rec.Type != opts.Type {
			return false
		}
		return opts.Filter.Matches(rec)
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})

	total := len(recs)
	return paginate(recs, opts), total, nil
}

// Count returns the number of records of the given type.
func (s *BadgerStore) Count(ctx context.Context, t model.Type) (int, error) {
	recs, err := s.Scan(ctx, t)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (s *BadgerStore) collect(ctx context.Context, keep func(*model.Record) bool) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []*model.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   128,
			Prefix:         recordPrefix,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.Record
			err := it.Item().Value(func(val []byte) error {
				return s.codec.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if keep(&rec) {
				recs = append(recs, &rec)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return recs, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/biomatch/model"
)

// MemoryStore is an in-memory Store backed by a Go map. It is the default
// backend for tests and single-node deployments (pair it with a journal for
// durability).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.Record
	rows    map[string]uint32 // id -> row, feeds the metadata index
	nextRow uint32
	dims    Dimensions
	meta    *metadataIndex
}

// NewMemoryStore creates an empty in-memory store. dims may be nil to disable
// per-type dimension enforcement (tests only; production configs set it).
func NewMemoryStore(dims Dimensions) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.Record),
		rows:    make(map[string]uint32),
		dims:    dims,
		meta:    newMetadataIndex(),
	}
}

// Insert persists a new record.
func (m *MemoryStore) Insert(ctx context.Context, rec *model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dims.check(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; ok {
		return ErrDuplicateID
	}

	row := m.nextRow
	m.nextRow++

	m.records[rec.ID] = rec.Clone()
	m.rows[rec.ID] = row
	m.meta.Add(row, rec.Metadata)

	return nil
}

// Get returns the record with the given ID or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Delete removes the record with the given ID, reporting whether it existed.
func (m *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false, nil
	}

	m.meta.Remove(m.rows[id], rec.Metadata)
	delete(m.rows, id)
	delete(m.records, id)

	return true, nil
}

// Scan returns all records of the given type.
func (m *MemoryStore) Scan(ctx context.Context, t model.Type) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*model.Record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Type == t {
			recs = append(recs, rec.Clone())
		}
	}
	return recs, nil
}

// List returns one page of records plus the total matching count.
func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*model.Record, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	normalizePage(&opts)

	m.mu.RLock()

	var allowed map[string]struct{}
	if bm := m.meta.Match(opts.Filter); bm != nil {
		allowed = make(map[string]struct{}, bm.GetCardinality())
		for id, row := range m.rows {
			if bm.Contains(row) {
				allowed[id] = struct{}{}
			}
		}
	}

	recs := make([]*model.Record, 0, len(m.records))
	for id, rec := range m.records {
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		recs = append(recs, rec.Clone())
	}
	m.mu.RUnlock()

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
func (m *MemoryStore) Count(ctx context.Context, t model.Type) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.records {
		if rec.Type == t {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

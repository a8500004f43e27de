package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/biomatch/model"
)

func testRecord(id string, t model.Type, vec []float32, created time.Time) *model.Record {
	return &model.Record{
		ID:        id,
		Type:      t,
		Vector:    vec,
		Metadata:  map[string]string{"owner": "alice"},
		CreatedAt: created,
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)

	rec := testRecord("FACE-AAAA0000BBBB", model.TypeFace, []float32{1, 2, 3}, time.Now())
	require.NoError(t, st.Insert(ctx, rec))

	got, err := st.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Vector, got.Vector)

	// Mutating the returned record must not leak into the store.
	got.Vector[0] = 99
	again, err := st.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])

	// Duplicate ID rejected.
	assert.ErrorIs(t, st.Insert(ctx, rec), ErrDuplicateID)

	existed, err := st.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = st.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	existed, err = st.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStoreDimensionCheck(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(Dimensions{model.TypeFace: 4})

	err := st.Insert(ctx, testRecord("FACE-AAAA0000BBBB", model.TypeFace, []float32{1, 2, 3}, time.Now()))
	var dim *ErrVectorDimension
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 4, dim.Expected)
	assert.Equal(t, 3, dim.Actual)

	// Unconfigured types pass through.
	require.NoError(t, st.Insert(ctx, testRecord("PALM-AAAA0000BBBB", model.TypePalm, []float32{1}, time.Now())))
}

func TestMemoryStoreScanByType(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)
	base := time.Now()

	require.NoError(t, st.Insert(ctx, testRecord("FACE-A", model.TypeFace, []float32{1}, base)))
	require.NoError(t, st.Insert(ctx, testRecord("FACE-B", model.TypeFace, []float32{2}, base)))
	require.NoError(t, st.Insert(ctx, testRecord("PALM-A", model.TypePalm, []float32{3}, base)))

	faces, err := st.Scan(ctx, model.TypeFace)
	require.NoError(t, err)
	assert.Len(t, faces, 2)

	n, err := st.Count(ctx, model.TypePalm)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStoreListPagination(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("FACE-%04d", i), model.TypeFace, []float32{float32(i)}, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, st.Insert(ctx, rec))
	}

	page1, total, err := st.List(ctx, ListOptions{Type: model.TypeFace, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "FACE-0000", page1[0].ID)
	assert.Equal(t, "FACE-0001", page1[1].ID)

	page3, total, err := st.List(ctx, ListOptions{Type: model.TypeFace, Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page3, 1)
	assert.Equal(t, "FACE-0004", page3[0].ID)

	empty, total, err := st.List(ctx, ListOptions{Type: model.TypeFace, Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, empty)
}

func TestMemoryStoreListMetadataFilter(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)
	base := time.Now()

	a := testRecord("FACE-A", model.TypeFace, []float32{1}, base)
	a.Metadata = map[string]string{"owner": "alice", "site": "hq"}
	b := testRecord("FACE-B", model.TypeFace, []float32{2}, base)
	b.Metadata = map[string]string{"owner": "bob", "site": "hq"}

	require.NoError(t, st.Insert(ctx, a))
	require.NoError(t, st.Insert(ctx, b))

	recs, total, err := st.List(ctx, ListOptions{Filter: Filter{"owner": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, recs, 1)
	assert.Equal(t, "FACE-A", recs[0].ID)

	recs, total, err = st.List(ctx, ListOptions{Filter: Filter{"site": "hq"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, recs, 2)

	// Filter entries must all match, and deleted rows leave the index.
	_, err = st.Delete(ctx, "FACE-A")
	require.NoError(t, err)

	recs, total, err = st.List(ctx, ListOptions{Filter: Filter{"owner": "alice"}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("FACE-%04d", i), model.TypeFace, []float32{float32(i)}, time.Now())
			_ = st.Insert(ctx, rec)
		}(i)
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = st.Scan(ctx, model.TypeFace)
		}()
	}
	wg.Wait()

	n, err := st.Count(ctx, model.TypeFace)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestMemoryStoreContextCancelled(t *testing.T) {
	st := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.Insert(ctx, testRecord("FACE-A", model.TypeFace, []float32{1}, time.Now()))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = st.Scan(ctx, model.TypeFace)
	assert.ErrorIs(t, err, context.Canceled)
}

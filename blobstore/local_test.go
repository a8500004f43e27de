package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "face/FACE-A", []byte("image-bytes")))

	data, err := st.Get(ctx, "face/FACE-A")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	// Overwrite replaces contents.
	require.NoError(t, st.Put(ctx, "face/FACE-A", []byte("newer")))
	data, err = st.Get(ctx, "face/FACE-A")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), data)

	require.NoError(t, st.Delete(ctx, "face/FACE-A"))
	_, err = st.Get(ctx, "face/FACE-A")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine.
	require.NoError(t, st.Delete(ctx, "face/FACE-A"))
}

func TestLocalStoreList(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Put(ctx, "face/FACE-A", []byte("a")))
	require.NoError(t, st.Put(ctx, "face/FACE-B", []byte("b")))
	require.NoError(t, st.Put(ctx, "palm/PALM-A", []byte("c")))

	names, err := st.List(ctx, "face/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"face/FACE-A", "face/FACE-B"}, names)

	all, err := st.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Put(ctx, "palm/PALM-A", []byte("img")))

	data, err := st.Get(ctx, "palm/PALM-A")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	// Returned slice is a copy.
	data[0] = 'X'
	again, err := st.Get(ctx, "palm/PALM-A")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), again)

	names, err := st.List(ctx, "palm/")
	require.NoError(t, err)
	assert.Equal(t, []string{"palm/PALM-A"}, names)

	require.NoError(t, st.Delete(ctx, "palm/PALM-A"))
	_, err = st.Get(ctx, "palm/PALM-A")
	assert.ErrorIs(t, err, ErrNotFound)
}

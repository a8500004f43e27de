package store

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// metadataIndex is an inverted index from metadata key=value pairs to record
// rows, backed by Roaring bitmaps. It lets the memory store answer filtered
// listings without touching every record.
type metadataIndex struct {
	mu      sync.RWMutex
	bitmaps map[string]*roaring.Bitmap
}

func newMetadataIndex() *metadataIndex {
	return &metadataIndex{
		bitmaps: make(map[string]*roaring.Bitmap),
	}
}

func metaKey(k, v string) string {
	return k + "\x00" + v
}

// Add indexes the metadata of the record stored at row.
func (mi *metadataIndex) Add(row uint32, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()

	for k, v := range metadata {
		key := metaKey(k, v)
		bm, ok := mi.bitmaps[key]
		if !ok {
			bm = roaring.NewBitmap()
			mi.bitmaps[key] = bm
		}
		bm.Add(row)
	}
}

// Remove drops the row from all posting lists it appears in.
func (mi *metadataIndex) Remove(row uint32, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}

	mi.mu.Lock()
	defer mi.mu.Unlock()

	for k, v := range metadata {
		key := metaKey(k, v)
		if bm, ok := mi.bitmaps[key]; ok {
			bm.Remove(row)
			if bm.IsEmpty() {
				delete(mi.bitmaps, key)
			}
		}
	}
}

// Match returns the rows whose metadata contains every filter pair, or nil if
// the filter is empty (meaning: no restriction).
func (mi *metadataIndex) Match(f Filter) *roaring.Bitmap {
	if len(f) == 0 {
		return nil
	}

	mi.mu.RLock()
	defer mi.mu.RUnlock()

	var result *roaring.Bitmap
	for k, v := range f {
		bm, ok := mi.bitmaps[metaKey(k, v)]
		if !ok {
			return roaring.NewBitmap()
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
	}
	return result
}

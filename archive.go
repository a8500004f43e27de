package biomatch

import (
	"context"
	"errors"

	"github.com/hupe1980/biomatch/blobstore"
	"github.com/hupe1980/biomatch/model"
)

// sampleArchive writes raw registration images to a blob store. The archive
// is best-effort: the registered record is already durable when the archive
// write happens, so failures are logged and swallowed.
type sampleArchive struct {
	bs blobstore.BlobStore
}

func (a *sampleArchive) put(ctx context.Context, logger *Logger, rec *model.Record, image []byte) {
	if a.bs == nil {
		return
	}

	if err := a.bs.Put(ctx, sampleKey(rec), image); err != nil {
		logger.Warn("sample archive write failed", "id", rec.ID, "error", err)
	}
}

func (a *sampleArchive) remove(ctx context.Context, logger *Logger, rec *model.Record) {
	if a.bs == nil {
		return
	}

	err := a.bs.Delete(ctx, sampleKey(rec))
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		logger.Warn("sample archive delete failed", "id", rec.ID, "error", err)
	}
}

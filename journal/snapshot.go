package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/biomatch/codec"
	"github.com/hupe1980/biomatch/model"
)

// snapshot is the encoded snapshot payload.
type snapshot struct {
	Records []*model.Record `cbor:"records" json:"records"`
}

func writeSnapshot(path string, c codec.Codec, records []*model.Record) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("journal: create snapshot: %w", err)
	}

	err = func() error {
		if _, err := fmt.Fprintf(f, "%s %s\n", snapshotMagic, c.Name()); err != nil {
			return err
		}

		payload, err := c.Marshal(&snapshot{Records: records})
		if err != nil {
			return err
		}

		zw := lz4.NewWriter(f)
		if _, err := zw.Write(payload); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		return f.Sync()
	}()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: write snapshot: %w", err)
	}

	// Rename makes the snapshot visible atomically.
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("journal: publish snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the snapshot in dir, if one exists. A missing snapshot
// returns an empty slice and no error.
func LoadSnapshot(dir string) ([]*model.Record, error) {
	f, err := os.Open(filepath.Join(dir, snapshotFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: open snapshot: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot missing header", ErrCorrupt)
	}

	var magic, codecName string
	if _, err := fmt.Sscanf(line, "%s %s", &magic, &codecName); err != nil || magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad snapshot header %q", ErrCorrupt, line)
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, codecName)
	}

	payload, err := io.ReadAll(lz4.NewReader(br))
	if err != nil {
		return nil, fmt.Errorf("journal: read snapshot: %w", err)
	}

	var snap snapshot
	if err := c.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", ErrCorrupt, err)
	}
	return snap.Records, nil
}

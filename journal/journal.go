// Package journal provides an append-only operation log plus snapshots for
// the in-memory store backend.
//
// Every successful insert and delete is appended to a zstd-compressed log;
// replaying the snapshot (if any) followed by the log rebuilds the store
// after a restart. Checkpoint writes an lz4-framed snapshot of the full
// population and truncates the log.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/biomatch/codec"
	"github.com/hupe1980/biomatch/model"
)

// Op is the kind of logged operation.
type Op string

const (
	// OpInsert records a successful registration.
	OpInsert Op = "insert"
	// OpDelete records a hard delete.
	OpDelete Op = "delete"
)

// Entry is one logged operation.
type Entry struct {
	Seq    uint64        `cbor:"seq" json:"seq"`
	Op     Op            `cbor:"op" json:"op"`
	Record *model.Record `cbor:"record,omitempty" json:"record,omitempty"` // insert only
	ID     string        `cbor:"id,omitempty" json:"id,omitempty"`         // delete only
	At     time.Time     `cbor:"at" json:"at"`
}

const (
	journalMagic  = "BMJL1"
	snapshotMagic = "BMSN1"
	journalFile   = "biomatch.journal"
	snapshotFile  = "biomatch.snap"

	// maxEntrySize guards replay against corrupt length prefixes.
	maxEntrySize = 64 << 20
)

// ErrCorrupt indicates the journal or snapshot file failed validation.
var ErrCorrupt = errors.New("journal: corrupt file")

// Options configures a Journal.
type Options struct {
	// Codec encodes entries and snapshot records. Defaults to codec.Default.
	// Reopening an existing journal selects the codec recorded in its header.
	Codec codec.Codec
	// SyncEach fsyncs the log after every append. Slower, but an acknowledged
	// write survives power loss.
	SyncEach bool
}

// Journal is an append-only operation log rooted at a directory.
type Journal struct {
	mu       sync.Mutex
	dir      string
	file     *os.File
	enc      *zstd.Encoder
	bw       *bufio.Writer
	seq      uint64
	codec    codec.Codec
	syncEach bool
	dataOff  int64
}

// Open opens (or creates) the journal in dir.
func Open(dir string, optFns ...func(o *Options)) (*Journal, error) {
	opts := Options{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	path := filepath.Join(dir, journalFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	j := &Journal{
		dir:      dir,
		file:     file,
		codec:    opts.Codec,
		syncEach: opts.SyncEach,
	}

	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: stat: %w", err)
	}

	if st.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	} else {
		if err := j.readHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
		// Recover the sequence counter before appending anything new.
		if err := j.Replay(func(e Entry) error {
			j.seq = e.Seq
			return nil
		}); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("journal: seek: %w", err)
	}
	if err := j.resetWriter(); err != nil {
		_ = file.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) writeHeader() error {
	header := fmt.Sprintf("%s %s\n", journalMagic, j.codec.Name())
	n, err := j.file.WriteString(header)
	if err != nil {
		return fmt.Errorf("journal: write header: %w", err)
	}
	j.dataOff = int64(n)
	return nil
}

func (j *Journal) readHeader() error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	br := bufio.NewReader(j.file)
	line, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("%w: missing header", ErrCorrupt)
	}

	var magic, codecName string
	if _, err := fmt.Sscanf(line, "%s %s", &magic, &codecName); err != nil || magic != journalMagic {
		return fmt.Errorf("%w: bad header %q", ErrCorrupt, line)
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrCorrupt, codecName)
	}
	j.codec = c
	j.dataOff = int64(len(line))
	return nil
}

func (j *Journal) resetWriter() error {
	enc, err := zstd.NewWriter(j.file)
	if err != nil {
		return fmt.Errorf("journal: create compressor: %w", err)
	}
	j.enc = enc
	j.bw = bufio.NewWriter(enc)
	return nil
}

// Append logs one entry, assigning it the next sequence number. The entry is
// readable by Replay once Append returns.
func (j *Journal) Append(e Entry) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e.Seq = j.seq
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	payload, err := j.codec.Marshal(&e)
	if err != nil {
		return 0, fmt.Errorf("journal: encode entry: %w", err)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := j.bw.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("journal: append: %w", err)
	}
	if _, err := j.bw.Write(payload); err != nil {
		return 0, fmt.Errorf("journal: append: %w", err)
	}
	if err := j.bw.Flush(); err != nil {
		return 0, fmt.Errorf("journal: flush: %w", err)
	}
	if err := j.enc.Flush(); err != nil {
		return 0, fmt.Errorf("journal: flush compressor: %w", err)
	}
	if j.syncEach {
		if err := j.file.Sync(); err != nil {
			return 0, fmt.Errorf("journal: fsync: %w", err)
		}
	}

	return e.Seq, nil
}

// Replay calls fn for every logged entry in order. It reads through a
// separate file handle, so it is safe at startup before writes begin.
func (j *Journal) Replay(fn func(Entry) error) error {
	f, err := os.Open(filepath.Join(j.dir, journalFile))
	if err != nil {
		return fmt.Errorf("journal: open for replay: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(j.dataOff, io.SeekStart); err != nil {
		return fmt.Errorf("journal: seek: %w", err)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("journal: create decompressor: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// Torn tail write; everything before it replayed fine.
				return nil
			}
			return fmt.Errorf("journal: replay: %w", err)
		}

		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n == 0 || n > maxEntrySize {
			return fmt.Errorf("%w: entry size %d", ErrCorrupt, n)
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(br, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("journal: replay: %w", err)
		}

		var e Entry
		if err := j.codec.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("%w: decode entry: %w", ErrCorrupt, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// Checkpoint writes a snapshot of the full population and truncates the log.
// Restart cost becomes proportional to the snapshot plus the post-checkpoint
// tail instead of the full operation history.
func (j *Journal) Checkpoint(records []*model.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := writeSnapshot(filepath.Join(j.dir, snapshotFile), j.codec, records); err != nil {
		return err
	}

	if err := j.enc.Close(); err != nil {
		return fmt.Errorf("journal: close compressor: %w", err)
	}
	if err := j.file.Truncate(j.dataOff); err != nil {
		return fmt.Errorf("journal: truncate: %w", err)
	}
	if _, err := j.file.Seek(j.dataOff, io.SeekStart); err != nil {
		return fmt.Errorf("journal: seek: %w", err)
	}
	return j.resetWriter()
}

// Close flushes and closes the log.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.bw.Flush(); err != nil {
		return err
	}
	if err := j.enc.Close(); err != nil {
		return err
	}
	return j.file.Close()
}

// Package backup streams the committed prefix of a log in and out of zstd archives.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"ordwal/pkg/wal"
)

var ErrNotALog = errors.New("backup: archive does not hold a log")

// Result describes one export or restore.
type Result struct {
	OriginalSize   int64
	CompressedSize int64
	Elapsed        time.Duration
}

func (r Result) Ratio() float64 {
	if r.CompressedSize == 0 {
		return 0
	}
	return float64(r.OriginalSize) / float64(r.CompressedSize)
}

// Export compresses src into w. Pass a wal handle to archive its committed records.
func Export(w io.Writer, src io.WriterTo) (Result, error) {
	start := time.Now()
	counter := &byteCounter{w: w}
	enc, err := zstd.NewWriter(counter)
	if err != nil {
		return Result{}, err
	}

	n, err := src.WriteTo(enc)
	if err != nil {
		_ = enc.Close()
		return Result{}, fmt.Errorf("failed to compress log: %w", err)
	}
	if err := enc.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to finish archive: %w", err)
	}

	return Result{OriginalSize: n, CompressedSize: counter.Count(), Elapsed: time.Since(start)}, nil
}

// Restore decompresses an archive made by Export into a new log file at path. The file
// must not exist yet; it is written under a temporary name and renamed when complete.
func Restore(r io.Reader, path string) (Result, error) {
	start := time.Now()
	counter := &byteReader{r: r}
	dec, err := zstd.NewReader(counter)
	if err != nil {
		return Result{}, err
	}
	defer dec.Close()

	if _, err := os.Stat(path); err == nil {
		return Result{}, fmt.Errorf("failed to restore: %s already exists", path)
	}

	tmp := path + ".restore"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	done := false
	defer func() {
		if !done {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	magic := make([]byte, len(wal.MagicText))
	if _, err := io.ReadFull(dec, magic); err != nil || !bytes.Equal(magic, []byte(wal.MagicText)) {
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return Result{}, fmt.Errorf("failed to read archive: %w", err)
		}
		return Result{}, ErrNotALog
	}
	if _, err := f.Write(magic); err != nil {
		return Result{}, err
	}
	n, err := io.Copy(f, dec)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decompress archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return Result{}, fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	done = true

	return Result{
		OriginalSize:   n + int64(len(magic)),
		CompressedSize: counter.count,
		Elapsed:        time.Since(start),
	}, nil
}

package backup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ordwal/pkg/config"
	"ordwal/pkg/wal"
)

func TestExportRestore(t *testing.T) {
	dir := t.TempDir()
	opts := config.DefaultOptions()
	opts.Capacity = 1 << 20
	opts.Reserved = 16
	opts.Path = filepath.Join(dir, "source.wal")

	l, err := wal.OpenVersioned(opts)
	if err != nil {
		t.Fatalf("OpenVersioned: %v", err)
	}
	defer l.Close()
	for v := uint64(1); v <= 100; v++ {
		if err := l.Insert(v, []byte(fmt.Sprintf("key-%03d", v%10)), bytes.Repeat([]byte{'v'}, int(v))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := l.WriteReserved([]byte("instance")); err != nil {
		t.Fatalf("WriteReserved: %v", err)
	}

	var archive bytes.Buffer
	res, err := Export(&archive, l)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.OriginalSize != int64(l.Committed()) || res.CompressedSize != int64(archive.Len()) {
		t.Fatalf("unexpected export result %+v", res)
	}
	if res.Ratio() <= 1 {
		t.Fatalf("repetitive values should compress, ratio %.2f", res.Ratio())
	}

	target := filepath.Join(dir, "restored.wal")
	restored, err := Restore(bytes.NewReader(archive.Bytes()), target)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.OriginalSize != res.OriginalSize {
		t.Fatalf("restored %d bytes, exported %d", restored.OriginalSize, res.OriginalSize)
	}

	ropts := opts
	ropts.Path = target
	r, err := wal.OpenVersioned(ropts)
	if err != nil {
		t.Fatalf("OpenVersioned(restored): %v", err)
	}
	defer r.Close()
	if r.Len() != l.Len() || r.MaximumVersion() != 100 {
		t.Fatalf("restored Len = %d, max version %d", r.Len(), r.MaximumVersion())
	}
	for v := uint64(1); v <= 100; v++ {
		got, ok := r.Get(v, []byte(fmt.Sprintf("key-%03d", v%10)))
		if !ok || len(got) != int(v) {
			t.Fatalf("Get at %d = %d bytes, %t", v, len(got), ok)
		}
	}
	if !bytes.HasPrefix(r.Reserved(), []byte("instance")) {
		t.Fatalf("reserved bytes lost: %q", r.Reserved())
	}
	if err := r.Insert(101, []byte("after"), []byte("restore")); err != nil {
		t.Fatalf("append to restored log: %v", err)
	}
}

func TestRestoreRefusesExistingFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "taken.wal")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var archive bytes.Buffer
	if _, err := Export(&archive, bytes.NewReader([]byte(wal.MagicText))); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := Restore(&archive, target); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestRestoreRejectsForeignArchive(t *testing.T) {
	var archive bytes.Buffer
	if _, err := Export(&archive, bytes.NewReader([]byte("not a log at all"))); err != nil {
		t.Fatalf("Export: %v", err)
	}
	target := filepath.Join(t.TempDir(), "foreign.wal")
	if _, err := Restore(&archive, target); !errors.Is(err, ErrNotALog) {
		t.Fatalf("expected ErrNotALog, got %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target should not exist")
	}
	if _, err := os.Stat(target + ".restore"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}

	if _, err := Restore(bytes.NewReader([]byte("garbage")), target); err == nil {
		t.Fatalf("expected an error for a non-zstd stream")
	}
}

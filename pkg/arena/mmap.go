//go:build unix

package arena

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"ordwal/pkg/dberrors"
)

// OpenFile maps path into memory. A writable arena takes an exclusive lock and grows
// the file to capacity; a read-only arena takes a shared lock and maps the file as is.
func OpenFile(path string, capacity uint32, readOnly bool) (*Arena, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	how := unix.LOCK_EX | unix.LOCK_NB
	if readOnly {
		how = unix.LOCK_SH | unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, dberrors.ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	a, err := mapFile(f, capacity, readOnly)
	if err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return nil, err
	}
	a.path = path
	return a, nil
}

func mapFile(f *os.File, capacity uint32, readOnly bool) (*Arena, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", f.Name(), err)
	}
	size := info.Size()
	if size > int64(^uint32(0)) {
		return nil, fmt.Errorf("%s: file size %d exceeds the addressable log size", f.Name(), size)
	}

	prot := unix.PROT_READ
	if readOnly {
		if size == 0 {
			return nil, fmt.Errorf("%s: %w", f.Name(), dberrors.ErrCorrupted)
		}
	} else {
		prot |= unix.PROT_WRITE
		if size < int64(capacity) {
			if err := f.Truncate(int64(capacity)); err != nil {
				return nil, fmt.Errorf("failed to grow %s: %w", f.Name(), err)
			}
			// Only a brand new file is fresh. A smaller existing file keeps its records.
		} else {
			capacity = uint32(size)
		}
	}
	length := int(capacity)
	if readOnly {
		length = int(size)
	}

	buf, err := unix.Mmap(int(f.Fd()), 0, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", f.Name(), err)
	}

	return &Arena{
		buf:      buf,
		readOnly: readOnly,
		file:     f,
		mapped:   true,
		fresh:    size == 0,
	}, nil
}

func (a *Arena) msync(offset, size uint32, async bool) error {
	page := uint32(os.Getpagesize())
	start := offset &^ (page - 1)
	end := uint64(offset) + uint64(size)
	if end > uint64(len(a.buf)) {
		end = uint64(len(a.buf))
	}
	if uint64(start) >= end {
		return nil
	}
	flags := unix.MS_SYNC
	if async {
		flags = unix.MS_ASYNC
	}
	if err := unix.Msync(a.buf[start:end], flags); err != nil {
		return fmt.Errorf("failed to msync [%d, %d): %w", start, end, err)
	}
	return nil
}

func (a *Arena) unmap() error {
	var errs []error
	if err := unix.Munmap(a.buf); err != nil {
		errs = append(errs, fmt.Errorf("failed to munmap: %w", err))
	}
	a.buf = nil
	if err := unix.Flock(int(a.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Warn("failed to release file lock", "path", a.path, "error", err)
	}
	if err := a.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", a.path, err))
	}
	return errors.Join(errs...)
}

package wal

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"ordwal/pkg/arena"
	"ordwal/pkg/checksum"
	"ordwal/pkg/config"
	"ordwal/pkg/dberrors"
	"ordwal/pkg/memtable"
)

// Entry is what a read observes. Key and Value alias the log and stay valid while the
// handle they were read from is open.
type Entry = memtable.Item

// core is the log and its indexes, shared by the writer and every reader handle.
type core struct {
	opts      config.Options
	versioned bool
	logger    *slog.Logger

	arena *arena.Arena
	table *memtable.Table
	// sum is used by the writer and by recovery only.
	sum checksum.Checksumer
	// sync writes a range of the arena back to its file.
	sync func(offset, size uint32) error

	// committed is the end of the last committed record.
	committed atomic.Uint32
	refs      atomic.Int64
}

func open(opts config.Options, versioned bool) (*core, error) {
	opts.Versioned = versioned
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", dberrors.ErrInvalidArgument, err)
	}

	sum, err := checksum.New(opts.Checksum)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dberrors.ErrInvalidArgument, err)
	}

	var a *arena.Arena
	if opts.Path == "" {
		a = arena.NewMemory(opts.Capacity)
	} else {
		a, err = arena.OpenFile(opts.Path, opts.Capacity, opts.ReadOnly)
		if err != nil {
			return nil, err
		}
	}

	c := &core{
		opts:      opts,
		versioned: versioned,
		logger:    opts.Log(),
		arena:     a,
		sum:       sum,
		sync:      a.Flush,
	}

	table, err := memtable.New(memtable.Backend(opts.IndexBackend), a.Bytes(), versioned)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%w: %w", dberrors.ErrInvalidArgument, err)
	}
	c.table = table

	if a.Fresh() {
		err = c.initHeader()
	} else {
		err = c.replay()
	}
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	c.refs.Store(1)
	c.logger.Info("wal opened",
		"path", a.Path(),
		"versioned", versioned,
		"entries", c.table.Entries(),
		"capacity", a.Capacity(),
		"remaining", a.Remaining(),
	)
	return c, nil
}

func (c *core) acquire() {
	c.refs.Add(1)
}

func (c *core) release() error {
	if c.refs.Add(-1) != 0 {
		return nil
	}
	if err := c.arena.Close(); err != nil {
		return fmt.Errorf("failed to close wal: %w", err)
	}
	return nil
}

package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"ordwal/pkg/config"
	"ordwal/pkg/dberrors"
)

// MagicText opens every log.
const MagicText = "ordwal"

const magicVersionOffset = len(MagicText)

func (c *core) initHeader() error {
	if c.arena.ReadOnly() {
		return fmt.Errorf("%w: empty log", dberrors.ErrCorrupted)
	}
	size := c.opts.DataOffset()
	_, hdr, err := c.arena.Allocate(uint64(size))
	if err != nil {
		return fmt.Errorf("failed to allocate header: %w", err)
	}
	copy(hdr, MagicText)
	binary.LittleEndian.PutUint16(hdr[magicVersionOffset:], c.opts.MagicVersion)
	c.committed.Store(size)

	if err := c.arena.Flush(0, size); err != nil {
		return fmt.Errorf("failed to flush header: %w", err)
	}
	return nil
}

func (c *core) checkHeader() error {
	buf := c.arena.Bytes()
	if uint64(len(buf)) < uint64(c.opts.DataOffset()) {
		return dberrors.NewCorrupted(0, "log is shorter than its header")
	}
	if !bytes.Equal(buf[:magicVersionOffset], []byte(MagicText)) {
		return dberrors.ErrMagicTextMismatch
	}
	if v := binary.LittleEndian.Uint16(buf[magicVersionOffset:config.HeaderSize]); v != c.opts.MagicVersion {
		return fmt.Errorf("%w: found %d, want %d", dberrors.ErrMagicVersionMismatch, v, c.opts.MagicVersion)
	}
	return nil
}

// reserved returns the caller-defined header bytes.
func (c *core) reserved() []byte {
	start := uint32(config.HeaderSize)
	end := c.opts.DataOffset()
	return c.arena.Bytes()[start:end:end]
}

func (c *core) writeReserved(p []byte) error {
	if c.arena.ReadOnly() {
		return dberrors.ErrReadOnly
	}
	dst := c.reserved()
	if len(p) > len(dst) {
		return dberrors.NewTooLarge("buffer", uint64(len(p)), uint64(len(dst)))
	}
	copy(dst, p)
	if c.opts.SyncOnWrite {
		return c.sync(config.HeaderSize, uint32(len(p)))
	}
	return nil
}

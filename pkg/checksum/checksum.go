// Package checksum provides the 64-bit record checksums used by the log.
package checksum

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc64"

	"github.com/cespare/xxhash/v2"
)

// Size is the encoded length of a digest in a record.
const Size = 8

// Checksumer is a resettable streaming 64-bit checksum.
type Checksumer interface {
	Reset()
	Update(p []byte)
	Digest() uint64
}

// New returns the checksumer registered under name. Empty selects xxhash.
func New(name string) (Checksumer, error) {
	switch name {
	case "", "xxhash":
		return NewXXHash(), nil
	case "crc64":
		return NewCRC64(), nil
	default:
		return nil, fmt.Errorf("unknown checksum %q", name)
	}
}

type xxh struct {
	d *xxhash.Digest
}

func NewXXHash() Checksumer {
	return &xxh{d: xxhash.New()}
}

func (x *xxh) Reset()          { x.d.Reset() }
func (x *xxh) Update(p []byte) { _, _ = x.d.Write(p) }
func (x *xxh) Digest() uint64  { return x.d.Sum64() }

var ecma = crc64.MakeTable(crc64.ECMA)

type crc struct {
	h hash.Hash64
}

func NewCRC64() Checksumer {
	return &crc{h: crc64.New(ecma)}
}

func (c *crc) Reset()          { c.h.Reset() }
func (c *crc) Update(p []byte) { _, _ = c.h.Write(p) }
func (c *crc) Digest() uint64  { return c.h.Sum64() }

// Sum computes the digest of the concatenation of parts in one go.
func Sum(c Checksumer, parts ...[]byte) uint64 {
	c.Reset()
	for _, p := range parts {
		c.Update(p)
	}
	return c.Digest()
}

func Put(dst []byte, sum uint64) {
	binary.LittleEndian.PutUint64(dst, sum)
}

func Read(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

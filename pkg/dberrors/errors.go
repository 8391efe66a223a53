package dberrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("ordwal: not found")
	ErrClosed               = errors.New("ordwal: closed")
	ErrInvalidArgument      = errors.New("ordwal: invalid argument")
	ErrReadOnly             = errors.New("ordwal: log is read-only")
	ErrCorrupted            = errors.New("ordwal: corrupted write-ahead log")
	ErrMagicTextMismatch    = errors.New("ordwal: magic text does not match")
	ErrMagicVersionMismatch = errors.New("ordwal: magic version does not match")
	ErrInsufficientSpace    = errors.New("ordwal: insufficient space")
	ErrTooLarge             = errors.New("ordwal: too large")
	ErrLocked               = errors.New("ordwal: log is locked by another process")
)

// InsufficientSpaceError is returned when the arena cannot hand out the requested bytes.
type InsufficientSpaceError struct {
	Requested uint64
	Available uint64
}

func NewInsufficientSpace(requested, available uint64) *InsufficientSpaceError {
	return &InsufficientSpaceError{Requested: requested, Available: available}
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("ordwal: insufficient space in the log (requested: %d, available: %d)", e.Requested, e.Available)
}

func (e *InsufficientSpaceError) Is(target error) bool {
	return target == ErrInsufficientSpace
}

// TooLargeError reports a write that exceeds a configured or structural limit.
// Kind is one of "key", "value", "entry" or "buffer".
type TooLargeError struct {
	Kind    string
	Size    uint64
	Maximum uint64
}

func NewTooLarge(kind string, size, maximum uint64) *TooLargeError {
	return &TooLargeError{Kind: kind, Size: size, Maximum: maximum}
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("ordwal: the %s size %d is larger than the maximum %s size %d", e.Kind, e.Size, e.Kind, e.Maximum)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// CorruptedError carries where recovery found damage.
type CorruptedError struct {
	Offset uint32
	Reason string
}

func NewCorrupted(offset uint32, reason string) *CorruptedError {
	return &CorruptedError{Offset: offset, Reason: reason}
}

func (e *CorruptedError) Error() string {
	return fmt.Sprintf("ordwal: corrupted write-ahead log at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptedError) Is(target error) bool {
	return target == ErrCorrupted
}

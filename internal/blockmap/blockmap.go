// Package blockmap parses on-disk filesystem structures to produce a
// used-block bitset, so that image backups can skip blocks that are
// provably free. Only XFS has a reader; the EXT, FAT and ReiserFS Type
// values are declared but no probe is registered for them, so Probe
// reports such devices as unrecognized.
package blockmap

import (
	"errors"
	"fmt"
	"io"

	"github.com/torvald-bar/bargo/internal/bitset"
)

// Type identifies a probed filesystem type.
type Type int

const (
	TypeUnknown Type = iota
	TypeXFS
	TypeEXT
	TypeFAT
	TypeReiserFS
)

func (t Type) String() string {
	switch t {
	case TypeXFS:
		return "xfs"
	case TypeEXT:
		return "ext"
	case TypeFAT:
		return "fat"
	case TypeReiserFS:
		return "reiserfs"
	default:
		return "unknown"
	}
}

// ErrUnsupportedFilesystem reports a filesystem type that was identified
// but has no reader. Probe does not return it: only registered probes are
// tried, and a device matching none of them yields ErrUnrecognizedFilesystem.
var ErrUnsupportedFilesystem = errors.New("blockmap: filesystem type recognized but unsupported")

// ErrUnrecognizedFilesystem is returned when none of the registered probes
// match the device's leading sectors.
var ErrUnrecognizedFilesystem = errors.New("blockmap: filesystem type not recognized")

// Device is the minimal random-access surface Probe and a Reader need.
// *os.File and any block-device wrapper satisfy it.
type Device interface {
	io.ReaderAt
}

// Reader produces a used-block bitset for an opened, probed filesystem.
type Reader interface {
	// Type reports the filesystem type this reader handles.
	Type() Type
	// BlockSize is the filesystem's block size in bytes.
	BlockSize() uint32
	// UsedBlocks returns the conservative used-block bitset: bit i is 1
	// iff block i is in use or its state could not be proven free.
	UsedBlocks() *bitset.BitSet
	// BlockIsUsed is a convenience wrapper translating a byte offset into
	// the device to a block-map lookup.
	BlockIsUsed(byteOffset uint64) bool
	// Close releases any resources held by the reader.
	Close() error
}

// probeFunc attempts to recognize and open dev as its filesystem type.
// It returns (nil, nil) when the magic does not match, so Probe can try
// the next candidate.
type probeFunc func(dev Device) (Reader, error)

var probes = map[Type]probeFunc{}

// Register wires a filesystem-specific probe into the dispatch table. It
// is called from each filesystem subpackage's init().
func Register(t Type, fn probeFunc) {
	probes[t] = fn
}

// probeOrder controls which magic numbers are tried first; more specific
// signatures (checked at a fixed small offset) go first.
var probeOrder = []Type{TypeXFS, TypeEXT, TypeFAT, TypeReiserFS}

// Probe reads enough of device's leading sectors to classify its
// filesystem and, on success, returns a Reader usable for block-map
// queries.
func Probe(dev Device) (Reader, error) {
	for _, t := range probeOrder {
		fn, ok := probes[t]
		if !ok {
			continue
		}
		r, err := fn(dev)
		if err != nil {
			return nil, fmt.Errorf("blockmap: probing %s: %w", t, err)
		}
		if r != nil {
			return r, nil
		}
	}
	return nil, ErrUnrecognizedFilesystem
}

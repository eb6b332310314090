package xfs

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/torvald-bar/bargo/internal/blockmap"
)

// memDevice is an in-memory blockmap.Device backed by a byte slice, used to
// synthesize a tiny single-AG XFS image for testing.
type memDevice struct {
	data []byte
}

func (d *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, d.data[off:])
	return n, nil
}

func putU32(b []byte, off int, v uint32) { binary.BigEndian.PutUint32(b[off:], v) }
func putU16(b []byte, off int, v uint16) { binary.BigEndian.PutUint16(b[off:], v) }
func putU64(b []byte, off int, v uint64) { binary.BigEndian.PutUint64(b[off:], v) }

const testBlockSize = 512

// buildImage synthesizes: block 0 = superblock, block 1 (AG 0's AGF) = AGF +
// overlapping header, block 2 = AGFL with one free entry, block 3 = BNOBT
// leaf root with one free extent record.
func buildImage(t *testing.T, agBlocks, agCount uint32, totalBlocks uint64) []byte {
	t.Helper()
	img := make([]byte, int(agBlocks)*int(agCount)*testBlockSize)

	// superblock
	putU32(img, 0, sbMagic)
	putU32(img, 4, testBlockSize)
	putU64(img, 8, totalBlocks)
	putU64(img, 48, 1) // logstart != 0
	putU32(img, 84, agBlocks)
	putU32(img, 88, agCount)
	// InProgress (byte 126) and RealtimeExtents (bytes 24-31) left zero.

	// AGF at block 1
	agfOff := testBlockSize
	putU32(img, agfOff+0, agfMagic)
	putU32(img, agfOff+16, 3)  // BNORoot -> block 3 (AG-relative)
	putU32(img, agfOff+28, 0) // BNOLevel 0 == leaf
	putU32(img, agfOff+40, 0) // FLFirst
	putU32(img, agfOff+44, 0) // FLLast
	putU32(img, agfOff+48, 1) // FLCount = 1

	// AGFL at block 2: reserved 4 bytes header then entries
	agflOff := 2 * testBlockSize
	putU32(img, agflOff+4, 10) // first free entry: AG-relative block 10

	// BNOBT leaf root at block 3
	bnoOff := 3 * testBlockSize
	putU32(img, bnoOff+0, bnoMagic)
	putU16(img, bnoOff+4, 0) // level 0 (leaf)
	putU16(img, bnoOff+6, 1) // numrecs 1
	// record: startblock=20, blockcount=5
	putU32(img, bnoOff+16+0, 20)
	putU32(img, bnoOff+16+4, 5)

	return img
}

func TestProbeAndScan(t *testing.T) {
	const agBlocks = 64
	const agCount = 1
	totalBlocks := uint64(agBlocks) * uint64(agCount)

	dev := &memDevice{data: buildImage(t, agBlocks, agCount, totalBlocks)}

	r, err := blockmap.Probe(dev)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if r.Type() != blockmap.TypeXFS {
		t.Fatalf("want TypeXFS, got %v", r.Type())
	}

	used := r.UsedBlocks()
	for _, freeBlock := range []uint64{10, 20, 21, 22, 23, 24} {
		if used.IsSet(freeBlock) {
			t.Errorf("block %d should have been cleared (free)", freeBlock)
		}
	}
	if !used.IsSet(0) {
		t.Errorf("block 0 (superblock) should remain marked used")
	}
	if !used.IsSet(25) {
		t.Errorf("block 25 outside the free extent should remain marked used")
	}
}

func TestProbeRejectsNonXFS(t *testing.T) {
	dev := &memDevice{data: bytes.Repeat([]byte{0}, sbSize)}
	if _, err := blockmap.Probe(dev); err == nil {
		t.Fatal("expected Probe to fail for an all-zero image")
	}
}

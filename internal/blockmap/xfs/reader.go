package xfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/torvald-bar/bargo/internal/bitset"
	"github.com/torvald-bar/bargo/internal/blockmap"
)

func init() {
	blockmap.Register(blockmap.TypeXFS, probe)
}

// initLock serializes the single-call-at-a-time mount/unmount section the
// underlying on-disk-format library requires; the original C reader wraps
// libxfs mount/unmount in a process-wide semaphore for the same reason.
var initLock sync.Mutex

// reader implements blockmap.Reader for an XFS filesystem.
type reader struct {
	blockSize   uint32
	totalBlocks uint64
	agCount     uint32
	agBlocks    uint32
	used        *bitset.BitSet
}

// probe reads the primary superblock and, if it looks like XFS, builds the
// conservative used-block bitset by walking each allocation group's free
// list and by-block-number free-space B+tree.
func probe(dev blockmap.Device) (blockmap.Reader, error) {
	initLock.Lock()
	defer initLock.Unlock()

	buf := make([]byte, sbSize)
	if _, err := dev.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("xfs: reading superblock: %w", err)
	}

	var sb superBlock
	if err := binary.Read(bytes.NewReader(buf), binary.BigEndian, &sb); err != nil {
		return nil, fmt.Errorf("xfs: decoding superblock: %w", err)
	}
	if sb.Magic != sbMagic {
		return nil, nil // not XFS, let Probe try the next type
	}
	if sb.InProgress != 0 {
		return nil, fmt.Errorf("xfs: superblock marked in-progress (mkfs interrupted)")
	}
	if sb.LogStart == 0 {
		return nil, fmt.Errorf("xfs: external log not supported")
	}
	if sb.RealtimeExtents != 0 {
		return nil, fmt.Errorf("xfs: realtime sections not supported")
	}

	r := &reader{
		blockSize:   sb.BlockSize,
		totalBlocks: sb.DataBlocks,
		agCount:     sb.AGCount,
		agBlocks:    sb.AGBlocks,
	}

	used, err := bitset.New(sb.DataBlocks)
	if err != nil {
		return nil, err
	}
	used.SetAll() // conservative: assume used until proven free
	r.used = used

	for agno := uint32(0); agno < r.agCount; agno++ {
		if err := r.scanAllocationGroup(dev, agno); err != nil {
			// Conservative completeness: on any structural error, leave
			// remaining bits set and stop; the caller still gets a
			// (over-)conservative bitset rather than an error that
			// discards what was already learned.
			return r, nil //nolint:nilerr
		}
	}

	return r, nil
}

func (r *reader) scanAllocationGroup(dev blockmap.Device, agno uint32) error {
	agfOffset := uint64(agno)*uint64(r.agBlocks)*uint64(r.blockSize) + uint64(r.blockSize)
	buf := make([]byte, agfSize)
	if _, err := dev.ReadAt(buf, int64(agfOffset)); err != nil {
		return fmt.Errorf("xfs: ag %d: reading AGF: %w", agno, err)
	}
	var h agf
	if err := binary.Read(bytes.NewReader(buf), binary.BigEndian, &h); err != nil {
		return fmt.Errorf("xfs: ag %d: decoding AGF: %w", agno, err)
	}
	if h.Magic != agfMagic {
		return fmt.Errorf("xfs: ag %d: bad AGF magic", agno)
	}

	if err := r.scanFreeList(dev, agno, &h); err != nil {
		return err
	}
	if h.BNORoot != 0 {
		if err := r.scanBTree(dev, agno, h.BNORoot, int(h.BNOLevel)); err != nil {
			return err
		}
	}
	return nil
}

// scanFreeList walks the AGFL (allocation group free list), a small block
// holding a circular buffer of free block numbers maintained outside the
// free-space B+trees, clearing each listed block.
func (r *reader) scanFreeList(dev blockmap.Device, agno uint32, h *agf) error {
	if h.FLCount == 0 {
		return nil
	}
	aglFirstBlock := uint64(agno)*uint64(r.agBlocks) + 2
	aglOffset := aglFirstBlock * uint64(r.blockSize)
	slots := (uint64(r.blockSize) - 4) / 4 // reserved header then uint32 entries
	buf := make([]byte, r.blockSize)
	if _, err := dev.ReadAt(buf, int64(aglOffset)); err != nil {
		return fmt.Errorf("xfs: ag %d: reading AGFL: %w", agno, err)
	}
	if uint64(h.FLFirst) >= slots || uint64(h.FLLast) >= slots {
		return fmt.Errorf("xfs: ag %d: AGFL indices out of range", agno)
	}

	i := h.FLFirst
	for n := uint32(0); n < h.FLCount; n++ {
		entryOff := 4 + i*4
		agbno := binary.BigEndian.Uint32(buf[entryOff : entryOff+4])
		absolute := uint64(agno)*uint64(r.agBlocks) + uint64(agbno)
		r.used.Clear(absolute, 1)
		i = (i + 1) % uint32(slots)
	}
	return nil
}

// scanBTree recurses the by-block-number free-space B+tree from root,
// clearing the bitset range for every leaf record's free extent.
func (r *reader) scanBTree(dev blockmap.Device, agno, root uint32, level int) error {
	offset := (uint64(agno)*uint64(r.agBlocks) + uint64(root)) * uint64(r.blockSize)
	buf := make([]byte, r.blockSize)
	if _, err := dev.ReadAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("xfs: ag %d: reading btree block %d: %w", agno, root, err)
	}
	var hdr btreeBlock
	if err := binary.Read(bytes.NewReader(buf[:btreeBlockHeaderSize]), binary.BigEndian, &hdr); err != nil {
		return fmt.Errorf("xfs: ag %d: decoding btree header: %w", agno, err)
	}
	if hdr.Magic != bnoMagic {
		return fmt.Errorf("xfs: ag %d: bad BNOBT magic at block %d", agno, root)
	}

	body := buf[btreeBlockHeaderSize:]
	if hdr.Level == 0 {
		// leaf: records are (startblock, blockcount) free extents
		for i := uint16(0); i < hdr.NumRecs; i++ {
			off := uint32(i) * allocRecordSize
			var rec allocRecord
			if err := binary.Read(bytes.NewReader(body[off:off+allocRecordSize]), binary.BigEndian, &rec); err != nil {
				return fmt.Errorf("xfs: ag %d: decoding free extent record: %w", agno, err)
			}
			absolute := uint64(agno)*uint64(r.agBlocks) + uint64(rec.StartBlock)
			if rec.BlockCount > 0 {
				r.used.Clear(absolute, uint64(rec.BlockCount))
			}
		}
		return nil
	}

	// inner node: NumRecs key/pointer pairs; pointers follow all keys
	keysSize := uint32(hdr.NumRecs) * 4 // each key is a single uint32 startblock
	for i := uint16(0); i < hdr.NumRecs; i++ {
		ptrOff := keysSize + uint32(i)*btreePtrSize
		child := binary.BigEndian.Uint32(body[ptrOff : ptrOff+btreePtrSize])
		if err := r.scanBTree(dev, agno, child, int(hdr.Level)-1); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) Type() blockmap.Type { return blockmap.TypeXFS }

func (r *reader) BlockSize() uint32 { return r.blockSize }

func (r *reader) UsedBlocks() *bitset.BitSet { return r.used }

func (r *reader) BlockIsUsed(byteOffset uint64) bool {
	block := byteOffset / uint64(r.blockSize)
	return r.used.IsSet(block)
}

func (r *reader) Close() error {
	r.used = nil
	return nil
}

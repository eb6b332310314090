// Package xfs reads XFS on-disk structures to produce a conservative
// used-block bitset for the filesystem block map (blockmap.Reader).
//
// Field layouts are taken from the on-disk XFS superblock/AG format;
// offsets are annotated for the fields this reader actually consumes.
package xfs

const (
	sbMagic  = 0x58465342 // "XFSB"
	agfMagic = 0x58414746 // "XAGF"
	bnoMagic = 0x41425442 // "ABTB" (by-block-number free space B+tree)

	sbSize  = 264 // bytes of the v4/v5 common superblock prefix we read
	agfSize = 64
)

// superBlock mirrors the leading, version-independent portion of the XFS
// primary superblock (sector 0 of the device).
type superBlock struct {
	Magic            uint32   // 0  "XFSB"
	BlockSize        uint32   // 4
	DataBlocks       uint64   // 8
	RealtimeBlocks   uint64   // 16
	RealtimeExtents  uint64   // 24
	UUID             [16]byte // 32
	LogStart         uint64   // 48
	RootInode        uint64   // 56
	_                uint64   // 64 realtime bitmap inode
	_                uint64   // 72 realtime summary inode
	_                uint32   // 80 realtime extent blocks
	AGBlocks         uint32   // 84
	AGCount          uint32   // 88
	_                uint32   // 92 realtime bitmap blocks
	_                uint32   // 96 log blocks
	_                uint16   // 100 version
	_                uint16   // 102 sector size
	_                uint16   // 104 inode size
	_                uint16   // 106 inodes per block
	_                [12]byte // 108 fsname
	_                uint8    // 120
	_                uint8    // 121
	_                uint8    // 122
	_                uint8    // 123
	_                uint8    // 124
	_                uint8    // 125
	InProgress       uint8    // 126
	_                uint8    // 127
}

// agf mirrors the per-allocation-group free-space header (AGF).
type agf struct {
	Magic       uint32    // 0  "XAGF"
	Version     uint32    // 4
	SeqNo       uint32    // 8
	Length      uint32    // 12
	BNORoot     uint32    // 16 roots[0]: by-block-number free-space btree root
	CNTRoot     uint32    // 20 roots[1]: by-block-count free-space btree root
	Spare0      uint32    // 24
	BNOLevel    uint32    // 28 levels[0]
	CNTLevel    uint32    // 32 levels[1]
	Spare1      uint32    // 36
	FLFirst     uint32    // 40 index of first AGFL entry in use
	FLLast      uint32    // 44 index of last AGFL entry in use
	FLCount     uint32    // 48 number of blocks in the free list
	FreeBlocks  uint32    // 52
	Longest     uint32    // 56
	BTreeBlocks uint32    // 60
}

// btreeBlock is the common header of a free-space B+tree node (inner or
// leaf) in the by-block-number (BNOBT) tree.
type btreeBlock struct {
	Magic    uint32 // 0
	Level    uint16 // 4  0 == leaf
	NumRecs  uint16 // 6
	LeftSIB  uint32 // 8
	RightSIB uint32 // 12
}

// allocRecord is a BNOBT leaf record: a free extent of BlockCount blocks
// starting at StartBlock (both AG-relative).
type allocRecord struct {
	StartBlock uint32
	BlockCount uint32
}

// btreeBlockHeaderSize is sizeof(btreeBlock) on disk.
const btreeBlockHeaderSize = 16

// btreePtrSize is the size of a child block pointer following inner-node
// records in the short (AG-relative) B+tree format used within an AG.
const btreePtrSize = 4

const allocRecordSize = 8

package sffs

import (
	"encoding/binary"
	"sort"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
)

// NumSlots is the fixed number of file slots a FAT copy holds, spec.md §3.
const NumSlots = 128

// fatHeaderSize is the length of the FAT header: slot i's 4-byte record
// starts at fatHeaderSize + i*4, slots follow packed.
const fatHeaderSize = 4

// Info is the fully parsed filesystem table: the selected FAT copy plus
// its active entries and the free-space map, spec.md §3. Grounded on
// cc.py's CC3x00SffsInfo.
type Info struct {
	CommitRevision int     `json:"commit"`
	Files          []Entry `json:"files"`
	Holes          []Hole  `json:"holes"`
	UsedBlocks     int     `json:"used_blocks"`
	BlockSize      int     `json:"-"`
	BlockCount     int     `json:"-"`
}

// SelectFAT picks the live FAT copy out of the two candidates, spec.md
// §3: the larger commit_revision wins; a tie is broken by the first
// copy; an all-invalid pair is a CorruptFat. Grounded on cc.py's
// CC3x00SffsInfo.from_two_fats.
func SelectFAT(a, b Header) (Header, error) {
	switch {
	case a.Valid && b.Valid:
		if b.CommitRevision > a.CommitRevision {
			return b, nil
		}
		return a, nil
	case a.Valid:
		return a, nil
	case b.Valid:
		return b, nil
	default:
		return Header{}, &ccerr.CorruptFat{Reason: "no valid FAT copy found"}
	}
}

// BuildInfo scans a selected FAT copy's 128 slots into an Info, spec.md
// §3: entries, the hole list, and used_blocks = 5 (header+metadata
// blocks) + sum of every active entry's total_blocks. Overlapping
// entries are a CorruptFat. Grounded on cc.py's CC3x00SffsInfo.__init__.
func BuildInfo(fat Header, blockSize, blockCount int) (Info, error) {
	info := Info{
		CommitRevision: int(fat.CommitRevision),
		BlockSize:      blockSize,
		BlockCount:     blockCount,
	}

	for i := 0; i < NumSlots; i++ {
		off := fatHeaderSize + i*4
		var meta [4]byte
		copy(meta[:], fat.Bytes[off:off+4])
		if slotIsEmpty(meta, i) {
			continue
		}
		entry, err := parseSlot(meta, i)
		if err != nil {
			return Info{}, &ccerr.CorruptFat{Reason: err.Error(), Block: i}
		}
		info.Files = append(info.Files, entry)
	}

	holes, used, err := computeHoles(info.Files, blockCount)
	if err != nil {
		return Info{}, err
	}
	info.Holes = holes
	info.UsedBlocks = used
	return info, nil
}

// computeHoles sweeps the occupied-block ranges sorted by start and
// returns the gaps between them (and before the first / after the
// last), plus total used blocks. Overlap between two entries is a
// CorruptFat. Grounded on cc.py's CC3x00SffsInfo.holes property.
func computeHoles(files []Entry, blockCount int) ([]Hole, int, error) {
	// Reserved: the first five blocks hold the two FAT copies (blocks 0
	// and 1) and metadata — five blocks used before any file.
	type span struct {
		start, size int
	}
	spans := []span{{0, 5}}
	used := 5
	for _, f := range files {
		spans = append(spans, span{f.StartBlock, f.TotalBlocks()})
		used += f.TotalBlocks()
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var holes []Hole
	cursor := 0
	for _, s := range spans {
		if s.start < cursor {
			return nil, 0, &ccerr.CorruptFat{Reason: "overlapping FAT entries", Block: s.start}
		}
		if s.start > cursor {
			holes = append(holes, Hole{StartBlock: cursor, SizeBlocks: s.start - cursor})
		}
		cursor = s.start + s.size
	}
	if cursor < blockCount {
		holes = append(holes, Hole{StartBlock: cursor, SizeBlocks: blockCount - cursor})
	}
	return holes, used, nil
}

// slotBytes renders a slot's on-disk 4-byte record, the inverse of
// parseSlot — used by fsops when rewriting a FAT copy after a mutation.
func slotBytes(e Entry) [4]byte {
	startMSB := byte((e.StartBlock >> 8) & 0x0F)
	startLSB := byte(e.StartBlock & 0xFF)
	flags := e.Flags & 0x0F
	if e.Mirrored {
		flags &^= 0x4
	} else {
		flags |= 0x4
	}
	flagsMSB := byte(flags<<4) | startMSB
	return [4]byte{byte(e.Index), byte(e.SizeBlocks), startLSB, flagsMSB}
}

// EncodeHeader rebuilds a FAT copy's first 4 header bytes for the given
// commit revision, leaving the rest of fatBytes (slots + padding)
// untouched. Grounded on cc.py's fat-commit step in _format_flash /
// _write_file's FAT rewrite.
func EncodeHeader(fatBytes []byte, commitRevision uint16) {
	binary.LittleEndian.PutUint16(fatBytes[0:2], commitRevision)
	binary.LittleEndian.PutUint16(fatBytes[2:4], HeaderSignature)
}

// PutSlot writes entry e's slot record into fatBytes in place.
func PutSlot(fatBytes []byte, e Entry) {
	off := fatHeaderSize + e.Index*4
	rec := slotBytes(e)
	copy(fatBytes[off:off+4], rec[:])
}

// ClearSlot marks slot i unused in fatBytes using the canonical pattern.
func ClearSlot(fatBytes []byte, i int) {
	off := fatHeaderSize + i*4
	pat := slotEmptyPattern(i)
	copy(fatBytes[off:off+4], pat[:])
}

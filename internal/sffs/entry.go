package sffs

import (
	"encoding/json"
	"fmt"
)

// FileHeader models the first 8 bytes of a file's payload region,
// spec.md §3/§9. cc.py leaves this as a dynamically-set-or-None
// attribute (populated only for "extended" listings); here it's the sum
// type spec.md §9 asks for instead.
type FileHeader struct {
	present bool
	Length  uint32  // 24-bit logical file length, bytes [0:3] little-endian
	Magic   [5]byte // bytes [3:8], opaque display value
}

// Absent is the zero value: no header has been read for this entry yet.
var Absent = FileHeader{}

// Present reports whether this entry's header has been populated.
func (h FileHeader) Present() bool { return h.present }

// ParseFileHeader decodes the 8-byte on-flash file header, spec.md §3.
func ParseFileHeader(raw []byte) FileHeader {
	var h FileHeader
	h.present = true
	h.Length = uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16
	copy(h.Magic[:], raw[3:8])
	return h
}

// MagicHex renders Magic the way cc.py's get_magic() does: lowercase hex,
// no separators.
func (h FileHeader) MagicHex() string {
	return fmt.Sprintf("%02x%02x%02x%02x%02x", h.Magic[0], h.Magic[1], h.Magic[2], h.Magic[3], h.Magic[4])
}

// Entry is one active FAT slot, spec.md §3. Grounded on cc.py's
// CC3x00SffsStatsFileEntry.
type Entry struct {
	Index      int
	StartBlock int
	SizeBlocks int
	Mirrored   bool
	Flags      int
	Name       string
	Header     FileHeader
}

// TotalBlocks is size_blocks doubled when mirrored, spec.md §3.
func (e Entry) TotalBlocks() int {
	if e.Mirrored {
		return e.SizeBlocks * 2
	}
	return e.SizeBlocks
}

// PayloadLength returns the 24-bit logical length from the file's header,
// or 0 if the header hasn't been read (extended listing not requested).
func (e Entry) PayloadLength() uint32 {
	if !e.Header.Present() {
		return 0
	}
	return e.Header.Length
}

// MarshalJSON reproduces cc.py's CustomJsonEncoder shape for a file
// entry: the stored fields plus the derived total_blocks, and (when a
// header was read) length/magic.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := struct {
		Index       int    `json:"index"`
		Name        string `json:"fname"`
		StartBlock  int    `json:"start_block"`
		SizeBlocks  int    `json:"size_blocks"`
		TotalBlocks int    `json:"total_blocks"`
		Mirrored    bool   `json:"mirrored"`
		Flags       int    `json:"flags"`
		Length      uint32 `json:"length,omitempty"`
		Magic       string `json:"magic,omitempty"`
	}{
		Index:       e.Index,
		Name:        e.Name,
		StartBlock:  e.StartBlock,
		SizeBlocks:  e.SizeBlocks,
		TotalBlocks: e.TotalBlocks(),
		Mirrored:    e.Mirrored,
		Flags:       e.Flags,
	}
	if e.Header.Present() {
		out.Length = e.Header.Length
		out.Magic = e.Header.MagicHex()
	}
	return json.Marshal(out)
}

// slotEmptyPattern is the canonical-unused 4-byte pattern for slot i,
// spec.md §3: [i, 0xFF, i, 0x7F]. This differs byte-for-byte from cc.py's
// own struct.pack("BBBB", 0xff, i, 0xff, 0x7f) ([0xFF, i, 0xFF, 0x7F]) —
// spec.md states its own byte order explicitly, so that's what's
// implemented; see DESIGN.md.
func slotEmptyPattern(i int) [4]byte {
	return [4]byte{byte(i), 0xFF, byte(i), 0x7F}
}

// slotIsEmpty reports whether a raw 4-byte slot record is unused.
func slotIsEmpty(meta [4]byte, i int) bool {
	if meta == ([4]byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		return true
	}
	return meta == slotEmptyPattern(i)
}

// parseSlot decodes one non-empty 4-byte FAT slot record, spec.md §3.
func parseSlot(meta [4]byte, i int) (Entry, error) {
	index, sizeBlocks, startLSB, flagsMSB := int(meta[0]), int(meta[1]), int(meta[2]), meta[3]
	if index != i {
		return Entry{}, fmt.Errorf("incorrect FAT entry (index %d != %d)", index, i)
	}

	flags := int(flagsMSB >> 4)
	startMSB := int(flagsMSB & 0x0F)
	mirrored := flags&0x4 == 0
	startBlock := (startMSB << 8) + startLSB

	return Entry{
		Index:      i,
		StartBlock: startBlock,
		SizeBlocks: sizeBlocks,
		Mirrored:   mirrored,
		Flags:      flags,
	}, nil
}

// Hole is a run of free blocks, spec.md §3.
type Hole struct {
	StartBlock int `json:"start_block"`
	SizeBlocks int `json:"size_blocks"`
}

package sffs

import "encoding/binary"

// Device distinguishes the two layout variants spec.md §3 names for
// metadata-block-2 offsets.
type Device int

const (
	CC3200 Device = iota
	CC32xx
)

// Layout constants, spec.md §3.
const (
	MetadataLength = 0x1000

	nameArrayOffsetCC3200 = 0x200
	nameArrayOffsetCC32xx = 0x3C0

	metadataBaseCC3200 = 0x774
	metadataBaseCC32xx = 0x2000

	secondFATMetadataDelta = 0x1000
)

// MetadataOffset returns the SFLASH byte offset of metadata block 2 for
// the given device and FAT copy index (0 or 1), spec.md §3.
func MetadataOffset(dev Device, fatCopy int) uint32 {
	var base uint32
	if dev == CC3200 {
		base = metadataBaseCC3200
	} else {
		base = metadataBaseCC32xx
	}
	if fatCopy == 1 {
		base += secondFATMetadataDelta
	}
	return base
}

// MetadataReadLength is the length argument spec.md §9's open question
// flags as a likely-bug: cc.py passes metadata2_offset + METADATA2_LENGTH
// rather than METADATA2_LENGTH alone, so the actual raw-read spans far
// more than one block. Reproduced verbatim here rather than "fixed" —
// see DESIGN.md's open-questions section.
func MetadataReadLength(dev Device, fatCopy int) uint32 {
	return MetadataOffset(dev, fatCopy) + MetadataLength
}

func nameArrayOffset(dev Device) int {
	if dev == CC3200 {
		return nameArrayOffsetCC3200
	}
	return nameArrayOffsetCC32xx
}

// ResolveNames fills in Name for every active entry in files, reading
// each slot's (fname_offset, fname_len) descriptor from meta2 at offset
// i*4 and extracting the ASCII bytes at
// file_name_array_offset+fname_offset. Grounded on cc.py's
// CC3x00SffsInfo filename-resolution loop.
func ResolveNames(files []Entry, meta2 []byte, dev Device) []Entry {
	base := nameArrayOffset(dev)
	out := make([]Entry, len(files))
	for idx, f := range files {
		descOff := f.Index * 4
		if descOff+4 > len(meta2) {
			out[idx] = f
			continue
		}
		fnameOffset := binary.LittleEndian.Uint16(meta2[descOff : descOff+2])
		fnameLen := binary.LittleEndian.Uint16(meta2[descOff+2 : descOff+4])

		start := base + int(fnameOffset)
		end := start + int(fnameLen)
		if start < 0 || end > len(meta2) || start > end {
			out[idx] = f
			continue
		}
		f.Name = string(meta2[start:end])
		out[idx] = f
	}
	return out
}

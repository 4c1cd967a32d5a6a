// Package sffs implements spec.md §4.5: the dual-FAT serial flash file
// system codec. It is purely in-memory — it takes already-read FAT bytes
// and metadata-block-2 bytes and returns a fully populated Info; it does
// no I/O of its own (that's internal/fsops's job, via internal/transport).
//
// Grounded field-for-field on cc.py's CC3x00SffsHeader/CC3x00SffsInfo/
// CC3x00SffsStatsFileEntry/CC3x00SffsHole.
package sffs

import (
	"encoding/binary"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
)

// HeaderSignature is the magic value a valid FAT copy's header carries,
// spec.md §3.
const HeaderSignature = 0x534C

// Header is one parsed FAT copy: its commit revision, the raw 4096-byte
// FAT bytes, and whether it parsed as valid.
type Header struct {
	CommitRevision uint16
	Bytes          []byte
	Valid          bool
}

// ParseHeader performs the "basic parsing" cc.py's CC3x00SffsHeader
// constructor does: just enough to tell whether this copy is empty,
// broken, or a candidate for selection. blockSize is the storage's
// reported block size; fatBytes must be exactly that long.
func ParseHeader(fatBytes []byte, blockSize int) (Header, error) {
	if len(fatBytes) != blockSize {
		return Header{}, &ccerr.CorruptFat{Reason: "incorrect FAT size", Block: -1}
	}
	commitRevision := binary.LittleEndian.Uint16(fatBytes[0:2])
	signature := binary.LittleEndian.Uint16(fatBytes[2:4])

	if commitRevision == 0xFFFF || signature == 0xFFFF {
		// Empty FAT copy: never committed.
		return Header{Valid: false}, nil
	}
	if signature != HeaderSignature {
		return Header{Valid: false}, nil
	}
	return Header{CommitRevision: commitRevision, Bytes: fatBytes, Valid: true}, nil
}

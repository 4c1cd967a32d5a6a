package fsops

import (
	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/sffs"
)

// fatCopyCount is the number of redundant FAT copies SFFS keeps,
// spec.md §3 — one at SFLASH offset 0, the other at offset block_size.
const fatCopyCount = 2

// GetFatInfo reads both FAT copies plus metadata block 2 from SFLASH,
// selects the active copy, and returns a fully populated sffs.Info with
// filenames resolved. When extended is true, each entry's 8-byte
// FileHeader is additionally fetched. inactive selects the
// lower-commit-revision copy instead of the active one (for diagnostics
// / --inactive listings), spec.md §4.6/§6.
//
// Grounded on cc.py's CC3200Connection.get_fat_info.
func (o *Ops) GetFatInfo(inactive, extended bool) (sffs.Info, error) {
	sinfo, err := o.Transport.StorageInfo(bootproto.StorageSFLASH)
	if err != nil {
		return sffs.Info{}, err
	}
	blockSize := int(sinfo.BlockSize)
	blockCount := int(sinfo.BlockCount)

	fatBytes, err := o.Transport.RawRead(bootproto.StorageSFLASH, 0, uint32(fatCopyCount*blockSize))
	if err != nil {
		return sffs.Info{}, err
	}
	copies := [fatCopyCount]sffs.Header{}
	for i := 0; i < fatCopyCount; i++ {
		copies[i], err = sffs.ParseHeader(fatBytes[i*blockSize:(i+1)*blockSize], blockSize)
		if err != nil {
			return sffs.Info{}, err
		}
	}

	fatCopyIndex, err := selectCopyIndex(copies, inactive)
	if err != nil {
		return sffs.Info{}, err
	}
	selected := copies[fatCopyIndex]

	info, err := sffs.BuildInfo(selected, blockSize, blockCount)
	if err != nil {
		return sffs.Info{}, err
	}

	// The metadata-block-2 shift tracks whether the physical second FAT
	// copy exists at all, not which copy ended up selected: cc.py's
	// get_fat_info computes metadata2_offset once, from fat_hdr2.valid,
	// before any active/inactive selection happens.
	metaCopy := 0
	if copies[1].Valid {
		metaCopy = 1
	}
	metaOffset := sffs.MetadataOffset(o.Device, metaCopy)
	metaLen := sffs.MetadataReadLength(o.Device, metaCopy)
	meta2, err := o.Transport.RawRead(bootproto.StorageSFLASH, metaOffset, metaLen)
	if err != nil {
		return sffs.Info{}, err
	}
	info.Files = sffs.ResolveNames(info.Files, meta2, o.Device)

	if extended {
		for i, f := range info.Files {
			fatfsOffset := uint32(f.StartBlock) * uint32(blockSize)
			hdr, err := o.Transport.RawRead(bootproto.StorageSFLASH, fatfsOffset, fatFileHeaderSize)
			if err != nil {
				return sffs.Info{}, err
			}
			info.Files[i].Header = sffs.ParseFileHeader(hdr)
		}
	}

	return info, nil
}

// selectCopyIndex picks which of the two FAT copies to use: the one with
// the greatest commit revision (sffs.SelectFAT's rule, re-applied here
// with the index tracked explicitly), or — for --inactive diagnostics —
// the other one.
func selectCopyIndex(copies [fatCopyCount]sffs.Header, inactive bool) (int, error) {
	// Reuses sffs.SelectFAT purely to validate the pair (no valid copy is
	// a CorruptFat; equal revisions pick the first copy); the winning index is
	// then re-derived directly from copies, since Header carries no
	// identity of its own once returned by value.
	if _, err := sffs.SelectFAT(copies[0], copies[1]); err != nil {
		return 0, err
	}

	activeIdx := 0
	switch {
	case copies[0].Valid && copies[1].Valid:
		if copies[1].CommitRevision > copies[0].CommitRevision {
			activeIdx = 1
		}
	case copies[1].Valid:
		activeIdx = 1
	}

	if !inactive {
		return activeIdx, nil
	}
	inactiveIdx := 1 - activeIdx
	if !copies[inactiveIdx].Valid {
		return 0, &ccerr.CorruptFat{Reason: "no inactive FAT copy to show", Block: -1}
	}
	return inactiveIdx, nil
}

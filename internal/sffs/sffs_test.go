package sffs

import "testing"

func makeFAT(blockSize int, commit uint16) []byte {
	b := make([]byte, blockSize)
	for i := range b {
		b[i] = 0xFF
	}
	EncodeHeader(b, commit)
	for i := 0; i < NumSlots; i++ {
		ClearSlot(b, i)
	}
	return b
}

func TestParseHeaderEmpty(t *testing.T) {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = 0xFF
	}
	h, err := ParseHeader(b, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Valid {
		t.Fatalf("expected empty FAT to be invalid")
	}
}

func TestParseHeaderWrongSize(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 10), 4096); err == nil {
		t.Fatalf("expected error for wrong-sized FAT")
	}
}

func TestParseHeaderValid(t *testing.T) {
	b := makeFAT(4096, 7)
	h, err := ParseHeader(b, 4096)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Valid || h.CommitRevision != 7 {
		t.Fatalf("got %+v", h)
	}
}

func TestSelectFATPicksHigherCommit(t *testing.T) {
	a, _ := ParseHeader(makeFAT(4096, 3), 4096)
	b, _ := ParseHeader(makeFAT(4096, 9), 4096)
	sel, err := SelectFAT(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.CommitRevision != 9 {
		t.Fatalf("expected commit 9, got %d", sel.CommitRevision)
	}
}

func TestSelectFATEqualCommitPicksFirst(t *testing.T) {
	a, _ := ParseHeader(makeFAT(4096, 5), 4096)
	b, _ := ParseHeader(makeFAT(4096, 5), 4096)
	sel, err := SelectFAT(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if &sel.Bytes[0] != &a.Bytes[0] {
		t.Fatalf("expected tie to be broken by the first copy")
	}
}

func TestSelectFATNoneValid(t *testing.T) {
	empty := Header{Valid: false}
	if _, err := SelectFAT(empty, empty); err == nil {
		t.Fatalf("expected CorruptFat when no copy is valid")
	}
}

func TestBuildInfoEmptyFAT(t *testing.T) {
	b := makeFAT(4096, 1)
	h, _ := ParseHeader(b, 4096)
	info, err := BuildInfo(h, 4096, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Files) != 0 {
		t.Fatalf("expected no files, got %d", len(info.Files))
	}
	if info.UsedBlocks != 5 {
		t.Fatalf("expected used_blocks=5, got %d", info.UsedBlocks)
	}
	if len(info.Holes) != 1 || info.Holes[0].StartBlock != 5 || info.Holes[0].SizeBlocks != 1019 {
		t.Fatalf("unexpected holes: %+v", info.Holes)
	}
}

func TestBuildInfoOneFile(t *testing.T) {
	b := makeFAT(4096, 1)
	entry := Entry{Index: 0, StartBlock: 10, SizeBlocks: 4, Mirrored: false, Flags: 0}
	PutSlot(b, entry)
	h, _ := ParseHeader(b, 4096)

	info, err := BuildInfo(h, 4096, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(info.Files))
	}
	got := info.Files[0]
	if got.StartBlock != 10 || got.SizeBlocks != 4 || got.Mirrored {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if info.UsedBlocks != 5+4 {
		t.Fatalf("expected used_blocks=9, got %d", info.UsedBlocks)
	}
	// holes: [5,10) gap before file at 10, then [14, 1024) after.
	if len(info.Holes) != 2 {
		t.Fatalf("expected 2 holes, got %+v", info.Holes)
	}
	if info.Holes[0].StartBlock != 5 || info.Holes[0].SizeBlocks != 5 {
		t.Fatalf("unexpected first hole: %+v", info.Holes[0])
	}
	if info.Holes[1].StartBlock != 14 || info.Holes[1].SizeBlocks != 1010 {
		t.Fatalf("unexpected second hole: %+v", info.Holes[1])
	}
}

func TestBuildInfoMirroredDoublesTotalBlocks(t *testing.T) {
	b := makeFAT(4096, 1)
	entry := Entry{Index: 3, StartBlock: 20, SizeBlocks: 2, Mirrored: true, Flags: 0}
	PutSlot(b, entry)
	h, _ := ParseHeader(b, 4096)

	info, err := BuildInfo(h, 4096, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Files[0].TotalBlocks() != 4 {
		t.Fatalf("expected total_blocks=4 for mirrored 2-block file, got %d", info.Files[0].TotalBlocks())
	}
	if info.UsedBlocks != 5+4 {
		t.Fatalf("expected used_blocks=9, got %d", info.UsedBlocks)
	}
}

func TestBuildInfoOverlapIsCorrupt(t *testing.T) {
	b := makeFAT(4096, 1)
	PutSlot(b, Entry{Index: 0, StartBlock: 5, SizeBlocks: 10, Mirrored: false})
	PutSlot(b, Entry{Index: 1, StartBlock: 8, SizeBlocks: 4, Mirrored: false})
	h, _ := ParseHeader(b, 4096)

	if _, err := BuildInfo(h, 4096, 1024); err == nil {
		t.Fatalf("expected CorruptFat for overlapping entries")
	}
}

func TestBuildInfoIndexMismatchIsCorrupt(t *testing.T) {
	b := makeFAT(4096, 1)
	// Write a slot at position 0 whose stored index claims to be 1.
	rec := slotBytes(Entry{Index: 1, StartBlock: 10, SizeBlocks: 1})
	copy(b[fatHeaderSize:fatHeaderSize+4], rec[:])

	h, _ := ParseHeader(b, 4096)
	if _, err := BuildInfo(h, 4096, 1024); err == nil {
		t.Fatalf("expected CorruptFat for index mismatch")
	}
}

func TestSlotEmptyPatternMatchesSpecLiteralOrder(t *testing.T) {
	pat := slotEmptyPattern(5)
	want := [4]byte{5, 0xFF, 5, 0x7F}
	if pat != want {
		t.Fatalf("got %v, want %v", pat, want)
	}
}

func TestResolveNames(t *testing.T) {
	meta2 := make([]byte, MetadataLength)
	name := "hello.bin"
	base := nameArrayOffset(CC3200)
	copy(meta2[base:], name)
	// slot 2 descriptor: offset=0, len=len(name)
	meta2[2*4] = 0
	meta2[2*4+1] = 0
	meta2[2*4+2] = byte(len(name))
	meta2[2*4+3] = 0

	files := []Entry{{Index: 2, StartBlock: 10, SizeBlocks: 1}}
	resolved := ResolveNames(files, meta2, CC3200)
	if resolved[0].Name != name {
		t.Fatalf("got name %q, want %q", resolved[0].Name, name)
	}
}

func TestMetadataOffsetSecondFATAddsDelta(t *testing.T) {
	if got := MetadataOffset(CC3200, 1) - MetadataOffset(CC3200, 0); got != secondFATMetadataDelta {
		t.Fatalf("expected delta %d, got %d", secondFATMetadataDelta, got)
	}
	if got := MetadataOffset(CC32xx, 0); got != metadataBaseCC32xx {
		t.Fatalf("got %d, want %d", got, metadataBaseCC32xx)
	}
}

func TestFileHeaderRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	h := ParseFileHeader(raw)
	if !h.Present() {
		t.Fatalf("expected header to be present")
	}
	if h.Length != 0x030201 {
		t.Fatalf("got length 0x%x, want 0x030201", h.Length)
	}
	if h.MagicHex() != "aabbccddee" {
		t.Fatalf("got magic %q", h.MagicHex())
	}
	if Absent.Present() {
		t.Fatalf("Absent must report Present()==false")
	}
}

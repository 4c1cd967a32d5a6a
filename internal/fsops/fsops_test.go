package fsops

import (
	"bytes"
	"testing"
	"time"

	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/sffs"
)

// fakeTransport is a minimal in-memory transport.Transport for fsops
// tests: a flat byte buffer standing in for SFLASH.
type fakeTransport struct {
	data       []byte
	blockSize  uint16
	blockCount uint16
	writes     []uint32 // offset of every RawWrite, in call order
}

func newFakeTransport(blockSize, blockCount uint16) *fakeTransport {
	return &fakeTransport{
		data:       make([]byte, int(blockSize)*int(blockCount)),
		blockSize:  blockSize,
		blockCount: blockCount,
	}
}

func (f *fakeTransport) RawRead(storageID uint32, offset, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	copy(buf, f.data[offset:])
	return buf, nil
}

func (f *fakeTransport) RawWrite(storageID uint32, offset uint32, data []byte) error {
	f.writes = append(f.writes, offset)
	copy(f.data[offset:], data)
	return nil
}

func (f *fakeTransport) StorageList() (bootproto.StorageList, error) {
	return bootproto.StorageList{Value: bootproto.StorageBitSflash}, nil
}

func (f *fakeTransport) StorageInfo(storageID uint32) (bootproto.StorageInfo, error) {
	return bootproto.StorageInfo{BlockSize: f.blockSize, BlockCount: f.blockCount}, nil
}

func (f *fakeTransport) EraseBlocks(storageID, startBlock, count uint32, timeout time.Duration) error {
	return nil
}

func writeFAT(t *testing.T, ft *fakeTransport, commit uint16, entries ...sffs.Entry) {
	t.Helper()
	bs := int(ft.blockSize)
	fat := make([]byte, bs)
	for i := range fat {
		fat[i] = 0xFF
	}
	sffs.EncodeHeader(fat, commit)
	for i := 0; i < sffs.NumSlots; i++ {
		sffs.ClearSlot(fat, i)
	}
	for _, e := range entries {
		sffs.PutSlot(fat, e)
	}
	copy(ft.data, fat)
}

func TestGetFatInfoSelectsActiveCopyAndResolvesNames(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	writeFAT(t, ft, 3, sffs.Entry{Index: 0, StartBlock: 10, SizeBlocks: 1})

	// Resolve name "a.txt" for slot 0 via metadata block 2.
	metaOffset := sffs.MetadataOffset(sffs.CC3200, 0)
	meta2 := ft.data[metaOffset:]
	name := "a.txt"
	base := 0x200
	copy(meta2[base:], name)
	meta2[0] = 0
	meta2[1] = 0
	meta2[2] = byte(len(name))
	meta2[3] = 0

	ops := New(ft, nil, sffs.CC3200, 0)
	info, err := ops.GetFatInfo(false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Files) != 1 || info.Files[0].Name != name {
		t.Fatalf("got %+v", info.Files)
	}
}

func TestWriteFileRawRejectsGrowthBeyondAllocation(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	entry := sffs.Entry{Index: 0, StartBlock: 10, SizeBlocks: 1}
	writeFAT(t, ft, 1, entry)

	info := sffs.Info{BlockSize: 4096, BlockCount: 256}
	entry.Header = sffs.ParseFileHeader(make([]byte, 8))
	info.Files = []sffs.Entry{entry}

	ops := New(ft, nil, sffs.CC3200, 0)
	tooBig := bytes.Repeat([]byte{0x41}, 5000)
	err := ops.WriteFileRaw(info, bytes.NewReader(tooBig), "", WriteOpts{FileID: 0})
	if err == nil {
		t.Fatalf("expected FileTooLarge error")
	}
}

func TestWriteFileRawOverwritesInPlace(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	entry := sffs.Entry{Index: 0, StartBlock: 10, SizeBlocks: 2}
	writeFAT(t, ft, 1, entry)
	entry.Header = sffs.ParseFileHeader([]byte{0, 0, 0, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE})

	info := sffs.Info{BlockSize: 4096, BlockCount: 256, Files: []sffs.Entry{entry}}

	ops := New(ft, nil, sffs.CC3200, 0)
	payload := []byte("hello world")
	if err := ops.WriteFileRaw(info, bytes.NewReader(payload), "", WriteOpts{FileID: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fatfsOffset := 10 * 4096
	header := ft.data[fatfsOffset : fatfsOffset+8]
	gotLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	if gotLen != len(payload) {
		t.Fatalf("header length = %d, want %d", gotLen, len(payload))
	}
	if header[3] != 0xAA {
		t.Fatalf("expected magic byte preserved, got 0x%02x", header[3])
	}
	got := ft.data[fatfsOffset+8 : fatfsOffset+8+len(payload)]
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}
}

func TestWriteFlashSkipsHeaderUntilLast(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	ops := New(ft, nil, sffs.CC3200, 0)

	image := bytes.Repeat([]byte{0x99}, 4096*2)
	copy(image[:8], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	if err := ops.WriteFlash(image, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.writes) != 2 || ft.writes[0] != 8 || ft.writes[1] != 0 {
		t.Fatalf("expected bytes 8.. written before bytes 0..8, got write offsets %v", ft.writes)
	}
	if !bytes.Equal(ft.data[:len(image)], image) {
		t.Fatalf("image round-trip mismatch")
	}
}

// fakeLink is a scripted Endpoint: each SendPacket call is recorded, and
// RecvPacket hands back the next queued response (the last one repeats
// once exhausted).
type fakeLink struct {
	responses [][]byte
	idx       int
	sent      [][]byte
}

func (f *fakeLink) SendPacket(payload []byte, timeout time.Duration) error {
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeLink) RecvPacket(timeout time.Duration) ([]byte, error) {
	r := f.responses[f.idx]
	if f.idx < len(f.responses)-1 {
		f.idx++
	}
	return r, nil
}

func fileInfoResponse(exists bool, size uint32) []byte {
	b := make([]byte, 8)
	if exists {
		b[0] = 0x01
	}
	b[4] = byte(size >> 24)
	b[5] = byte(size >> 16)
	b[6] = byte(size >> 8)
	b[7] = byte(size)
	return b
}

func statusResponse(ok bool) []byte {
	b := make([]byte, 4)
	if ok {
		b[3] = 0x40
	} else {
		b[3] = 0x00
	}
	return b
}

func TestEraseSkipsMissingFile(t *testing.T) {
	link := &fakeLink{responses: [][]byte{fileInfoResponse(false, 0)}}
	ops := New(newFakeTransport(4096, 256), link, sffs.CC3200, 0)

	if err := ops.Erase("missing.bin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(link.sent) != 1 {
		t.Fatalf("expected only GET_FILE_INFO to be sent, got %d packets", len(link.sent))
	}
	if link.sent[0][0] != byte(bootproto.OpGetFileInfo) {
		t.Fatalf("expected GET_FILE_INFO, got opcode 0x%02x", link.sent[0][0])
	}
}

func TestEraseExistingFileSendsEraseAndChecksStatus(t *testing.T) {
	link := &fakeLink{responses: [][]byte{fileInfoResponse(true, 10), statusResponse(true)}}
	ops := New(newFakeTransport(4096, 256), link, sffs.CC3200, 0)

	if err := ops.Erase("a.bin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(link.sent) != 3 {
		t.Fatalf("expected GET_FILE_INFO, ERASE_FILE, GET_LAST_STATUS, got %d packets", len(link.sent))
	}
	if link.sent[1][0] != byte(bootproto.OpEraseFile) {
		t.Fatalf("expected ERASE_FILE as second packet, got opcode 0x%02x", link.sent[1][0])
	}
}

func TestEraseExistingFilePropagatesDeviceError(t *testing.T) {
	link := &fakeLink{responses: [][]byte{fileInfoResponse(true, 10), statusResponse(false)}}
	ops := New(newFakeTransport(4096, 256), link, sffs.CC3200, 0)

	if err := ops.Erase("a.bin"); err == nil {
		t.Fatalf("expected a hard error when erasing an existing file fails")
	}
}

func TestReadFlash(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	copy(ft.data[100:], []byte("payload-bytes"))
	ops := New(ft, nil, sffs.CC3200, 0)

	var buf bytes.Buffer
	if err := ops.ReadFlash(100, 13, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "payload-bytes" {
		t.Fatalf("got %q", buf.String())
	}
}

package orchestrator

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/fsops"
	"github.com/bluenazgul/cc3200tool/internal/sffs"
)

// fakeTransport is a flat in-memory SFLASH standing in for transport.Live
// / transport.ImageFile in orchestrator dispatch tests — the same
// fixture shape as internal/fsops's own unit tests use.
type fakeTransport struct {
	data       []byte
	blockSize  uint16
	blockCount uint16
}

func newFakeTransport(blockSize, blockCount uint16) *fakeTransport {
	return &fakeTransport{data: make([]byte, int(blockSize)*int(blockCount)), blockSize: blockSize, blockCount: blockCount}
}

func (f *fakeTransport) RawRead(storageID uint32, offset, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	copy(buf, f.data[offset:])
	return buf, nil
}

func (f *fakeTransport) RawWrite(storageID uint32, offset uint32, data []byte) error {
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

type fakeReset struct{ pulses int }

func (r *fakeReset) AssertSOP2(bool) error { return nil }
func (r *fakeReset) PulseReset() error     { r.pulses++; return nil }

func TestExecuteWriteAllFilesSimulateDoesNotWrite(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	entry := sffs.Entry{Index: 0, StartBlock: 10, SizeBlocks: 2}
	writeFAT(t, ft, 1, entry)
	entry.Header = sffs.ParseFileHeader([]byte{0, 0, 0, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	ops := fsops.New(ft, nil, sffs.CC3200, 0)
	reset := &fakeReset{}
	var out bytes.Buffer
	orc := New(ops, reset, &out, false)

	cmds := []Command{{Name: "write_all_files", WriteAllFiles: &WriteAllFilesCmd{Dir: dir, Simulate: true}}}
	if err := orc.Execute(cmds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fatfsOffset := 10 * 4096
	header := ft.data[fatfsOffset : fatfsOffset+8]
	gotLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	if gotLen != 0 {
		t.Fatalf("simulate should not have written, got length %d", gotLen)
	}
}

func TestExecuteListFilesystemJSON(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	writeFAT(t, ft, 3, sffs.Entry{Index: 0, StartBlock: 10, SizeBlocks: 1})

	ops := fsops.New(ft, nil, sffs.CC3200, 0)
	var out bytes.Buffer
	orc := New(ops, &fakeReset{}, &out, false)

	cmds := []Command{{Name: "list_filesystem", ListFilesystem: &ListFilesystemCmd{JSONOutput: true}}}
	if err := orc.Execute(cmds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"commit"`)) {
		t.Fatalf("expected JSON output, got %q", out.String())
	}
}

func TestRebootToAppPulsesResetAndClosesState(t *testing.T) {
	ft := newFakeTransport(4096, 256)
	ops := fsops.New(ft, nil, sffs.CC3200, 0)
	reset := &fakeReset{}
	orc := New(ops, reset, nil, true)

	if err := orc.RebootToApp(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reset.pulses != 1 {
		t.Fatalf("expected one reset pulse, got %d", reset.pulses)
	}
	if orc.state != StateClosed {
		t.Fatalf("expected StateClosed, got %v", orc.state)
	}
}

package transport

import (
	"io"
	"os"
	"time"

	"github.com/bluenazgul/cc3200tool/internal/bootproto"
)

// ImageFile is the Transport backed by a flat SFLASH dump, spec.md §4.2 —
// a random-access file standing in for the device. Grounded on cc.py's
// image_file/output_file branch of _raw_read/_send_chunk.
type ImageFile struct {
	f          *os.File
	blockSize  uint16
	blockCount uint16
}

// OpenImageFile opens path read-write (so it can be seeked and patched in
// place by the raw-overwrite write path) and reports blockCount*blockSize
// as its synthetic storage size.
func OpenImageFile(path string, blockSize uint16, blockCount uint16) (*ImageFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &ImageFile{f: f, blockSize: blockSize, blockCount: blockCount}, nil
}

func (i *ImageFile) Close() error { return i.f.Close() }

// CloneFrom copies src byte-for-byte into the image file, matching
// cc.py's copy_input_file_to_output_file step run before any raw
// overwrite when both -if and -of are given.
func (i *ImageFile) CloneFrom(src *os.File) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if _, err := i.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = i.f.Write(data)
	return err
}

func (i *ImageFile) StorageList() (bootproto.StorageList, error) {
	return bootproto.StorageList{Value: bootproto.StorageBitFlash | bootproto.StorageBitSflash | bootproto.StorageBitSram}, nil
}

func (i *ImageFile) StorageInfo(storageID uint32) (bootproto.StorageInfo, error) {
	return bootproto.StorageInfo{BlockSize: i.blockSize, BlockCount: i.blockCount}, nil
}

func (i *ImageFile) RawRead(storageID uint32, offset, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := i.f.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (i *ImageFile) RawWrite(storageID uint32, offset uint32, data []byte) error {
	_, err := i.f.WriteAt(data, int64(offset))
	return err
}

// EraseBlocks is a no-op: an image file is patched in place, it has no
// separate erase cycle.
func (i *ImageFile) EraseBlocks(storageID, startBlock, count uint32, timeout time.Duration) error {
	return nil
}

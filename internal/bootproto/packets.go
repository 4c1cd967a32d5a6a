package bootproto

import (
	"encoding/binary"
	"math"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
)

// appendU32 appends a big-endian uint32, the width every multi-byte field
// in this protocol uses (spec.md §4.3).
func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// StartUploadRequest builds the START_UPLOAD (0x21) request body.
func StartUploadRequest(flags uint32, filename string) []byte {
	req := []byte{byte(OpStartUpload)}
	req = appendU32(req, flags)
	req = appendU32(req, 0)
	req = append(req, filename...)
	req = append(req, 0x00, 0x00)
	return req
}

// FinishUploadRequest builds the FINISH_UPLOAD (0x22) request body. A nil
// signature is replaced by 256 bytes of 0x46, the unsigned-file filler
// cc.py uses.
func FinishUploadRequest(signature []byte) ([]byte, error) {
	if signature == nil {
		signature = make([]byte, 256)
		for i := range signature {
			signature[i] = 0x46
		}
	}
	if len(signature) != 256 {
		return nil, &ccerr.InvalidArgument{Reason: "signature must be 256 bytes"}
	}
	req := []byte{byte(OpFinishUpload)}
	req = append(req, make([]byte, 63)...)
	req = append(req, signature...)
	req = append(req, 0x00)
	return req, nil
}

// GetLastStatusRequest builds the GET_LAST_STATUS (0x23) request.
func GetLastStatusRequest() []byte { return []byte{byte(OpGetLastStatus)} }

// FileChunkRequest builds a FILE_CHUNK (0x24) request carrying data at
// the given file offset.
func FileChunkRequest(offset uint32, data []byte) []byte {
	req := []byte{byte(OpFileChunk)}
	req = appendU32(req, offset)
	req = append(req, data...)
	return req
}

// GetStorageListRequest builds the GET_STORAGE_LIST (0x27) request.
func GetStorageListRequest() []byte { return []byte{byte(OpGetStorageList)} }

// FormatFlashRequest builds the FORMAT_FLASH (0x28) request for a given
// size in KiB, spec.md §4.3/§4.6.
func FormatFlashRequest(sizeKiB int) []byte {
	req := []byte{byte(OpFormatFlash)}
	req = appendU32(req, 2)
	req = appendU32(req, uint32(sizeKiB/4))
	req = appendU32(req, 0)
	req = appendU32(req, 0)
	req = appendU32(req, 2)
	return req
}

// GetFileInfoRequest builds the GET_FILE_INFO (0x2A) request.
func GetFileInfoRequest(filename string) []byte {
	req := []byte{byte(OpGetFileInfo)}
	req = appendU32(req, uint32(len(filename)))
	req = append(req, filename...)
	return req
}

// ReadFileChunkRequest builds the READ_FILE_CHUNK (0x2B) request.
func ReadFileChunkRequest(offset, length uint32) []byte {
	req := []byte{byte(OpReadFileChunk)}
	req = appendU32(req, offset)
	req = appendU32(req, length)
	return req
}

// RawStorageReadRequest builds the RAW_STORAGE_READ (0x2C) request.
func RawStorageReadRequest(storageID, offset, length uint32) []byte {
	req := []byte{byte(OpRawStorageRead)}
	req = appendU32(req, storageID)
	req = appendU32(req, offset)
	req = appendU32(req, length)
	return req
}

// RawStorageWriteRequest builds the RAW_STORAGE_WRITE (0x2D) request.
func RawStorageWriteRequest(storageID, offset uint32, data []byte) []byte {
	req := []byte{byte(OpRawStorageWrite)}
	req = appendU32(req, storageID)
	req = appendU32(req, offset)
	req = appendU32(req, uint32(len(data)))
	req = append(req, data...)
	return req
}

// EraseFileRequest builds the ERASE_FILE (0x2E) request.
func EraseFileRequest(filename string) []byte {
	req := []byte{byte(OpEraseFile)}
	req = appendU32(req, 0)
	req = append(req, filename...)
	req = append(req, 0x00)
	return req
}

// GetVersionInfoRequest builds the GET_VERSION_INFO (0x2F) request.
func GetVersionInfoRequest() []byte { return []byte{byte(OpGetVersionInfo)} }

// RawStorageEraseRequest builds the RAW_STORAGE_ERASE (0x30) request.
func RawStorageEraseRequest(storageID, startBlock, count uint32) []byte {
	req := []byte{byte(OpRawStorageErase)}
	req = appendU32(req, storageID)
	req = appendU32(req, startBlock)
	req = appendU32(req, count)
	return req
}

// GetStorageInfoRequest builds the GET_STORAGE_INFO (0x31) request.
func GetStorageInfoRequest(storageID uint32) []byte {
	req := []byte{byte(OpGetStorageInfo)}
	req = appendU32(req, storageID)
	return req
}

// ExecFromRAMRequest builds the EXEC_FROM_RAM (0x32) request.
func ExecFromRAMRequest() []byte { return []byte{byte(OpExecFromRAM)} }

// Switch2AppsRequest builds the SWITCH_2_APPS (0x33) request, with the
// fixed clock constant cc.py hardcodes.
func Switch2AppsRequest() []byte {
	req := []byte{byte(OpSwitch2Apps)}
	req = appendU32(req, 26666667)
	return req
}

// OpenFlags builds the 32-bit flags word START_UPLOAD needs for a write,
// spec.md §4.3: access mode in bits 12-15, block-size class index in bits
// 8-11, block count in bits 0-7, optional SLFS flags in bits 16-23.
func OpenFlags(fileLen int, fsFlags *uint32) (flags uint32, err error) {
	bsizeIdx := -1
	var blocks uint32
	for i, bsize := range FlashBlockSizes {
		if uint64(bsize)*255 >= uint64(fileLen) {
			bsizeIdx = i
			blocks = uint32(math.Ceil(float64(fileLen) / float64(bsize)))
			break
		}
	}
	if bsizeIdx == -1 {
		return 0, &ccerr.FileTooLarge{Reason: "no block-size class fits file length"}
	}

	flags = (uint32(SlfsModeOpenWriteCreateNotExist) & 0x0f << 12) |
		(uint32(bsizeIdx) & 0x0f << 8) |
		(blocks & 0xff)

	if fsFlags != nil {
		flags |= (*fsFlags & 0xff) << 16
	}
	return flags, nil
}

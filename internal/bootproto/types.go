package bootproto

import (
	"encoding/binary"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
)

// VersionInfo is the decoded GET_VERSION_INFO response, spec.md §3.
type VersionInfo struct {
	Bootloader [4]byte
	NWP        [4]byte
	MAC        [4]byte
	PHY        [4]byte
	ChipType   [4]byte
}

// IsCC3200 reports whether the part is CC3200-class, spec.md §3.
func (v VersionInfo) IsCC3200() bool {
	return v.ChipType[0]&0x10 != 0
}

// VersionInfoFromPacket decodes the 28-byte GET_VERSION_INFO response.
func VersionInfoFromPacket(data []byte) (VersionInfo, error) {
	if len(data) != 28 {
		return VersionInfo{}, &ccerr.ProtocolError{Msg: "version info must be 28 bytes"}
	}
	var v VersionInfo
	copy(v.Bootloader[:], data[0:4])
	copy(v.NWP[:], data[4:8])
	copy(v.MAC[:], data[8:12])
	copy(v.PHY[:], data[12:16])
	copy(v.ChipType[:], data[16:20])
	return v, nil
}

// StorageList is the GET_STORAGE_LIST bitmask, spec.md §3.
type StorageList struct {
	Value byte
}

func (s StorageList) Flash() bool  { return s.Value&StorageBitFlash != 0 }
func (s StorageList) Sflash() bool { return s.Value&StorageBitSflash != 0 }
func (s StorageList) Sram() bool   { return s.Value&StorageBitSram != 0 }

// StorageInfo is the GET_STORAGE_INFO response, spec.md §3.
type StorageInfo struct {
	BlockSize  uint16
	BlockCount uint16
}

func StorageInfoFromPacket(data []byte) (StorageInfo, error) {
	if len(data) < 4 {
		return StorageInfo{}, &ccerr.ProtocolError{Msg: "storage info must be >= 4 bytes"}
	}
	return StorageInfo{
		BlockSize:  binary.BigEndian.Uint16(data[0:2]),
		BlockCount: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// Status is the device's GET_LAST_STATUS reply, spec.md §4.3.
type Status struct {
	Value byte
}

const statusOK = 0x40

func (s Status) IsOK() bool { return s.Value == statusOK }

func StatusFromPacket(data []byte) (Status, error) {
	if len(data) < 4 {
		return Status{}, &ccerr.ProtocolError{Msg: "status packet must be >= 4 bytes"}
	}
	return Status{Value: data[3]}, nil
}

// FileInfo is the GET_FILE_INFO response, spec.md §3.
type FileInfo struct {
	Exists bool
	Size   uint32
}

func FileInfoFromPacket(data []byte) (FileInfo, error) {
	if len(data) < 8 {
		return FileInfo{}, &ccerr.ProtocolError{Msg: "file info must be >= 8 bytes"}
	}
	return FileInfo{
		Exists: data[0] == 0x01,
		Size:   binary.BigEndian.Uint32(data[4:8]),
	}, nil
}

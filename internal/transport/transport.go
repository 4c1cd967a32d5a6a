// Package transport implements the capability of spec.md §4.2: raw
// storage read/write over either a live device (via internal/serial and
// internal/bootproto) or an offline image file, behind one interface —
// per spec.md §9's explicit instruction not to branch on an optional
// "are we live" field.
//
// Grounded on cc.py's CC3200Connection._raw_read/_raw_write/_send_chunk/
// _read_chunk, which branch on `self.port is None`; that branch is what
// this package turns into two concrete Transport implementations.
package transport

import (
	"time"

	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/logging"
)

// Chunk sizes, spec.md §4.2.
const (
	WriteChunkSize = 4080
	ReadChunkSize  = 4096
)

// Transport is the raw storage capability FilesystemOps and SffsCodec's
// caller consume. Both Live and ImageFile implementations satisfy it.
type Transport interface {
	// RawRead reads length bytes at offset from storageID, chunked to
	// ReadChunkSize internally when live.
	RawRead(storageID uint32, offset, length uint32) ([]byte, error)
	// RawWrite writes data at offset on storageID, chunked to
	// WriteChunkSize internally when live.
	RawWrite(storageID uint32, offset uint32, data []byte) error
	// StorageList reports which media the device exposes. An
	// ImageFile transport reports everything present (it has no way
	// to ask a device, and cc.py's image-file code path never
	// refuses a storage id).
	StorageList() (bootproto.StorageList, error)
	// StorageInfo reports block size/count for storageID.
	StorageInfo(storageID uint32) (bootproto.StorageInfo, error)
	// EraseBlocks erases count blocks starting at startBlock on
	// storageID. No-op for an ImageFile (nothing to pre-erase when
	// patching bytes in place).
	EraseBlocks(storageID, startBlock, count uint32, timeout time.Duration) error
}

// Endpoint is the request/response primitive both live and send-chunk
// paths are built on: send a framed packet, optionally read one back.
type Endpoint interface {
	SendPacket(payload []byte, timeout time.Duration) error
	RecvPacket(timeout time.Duration) ([]byte, error)
}

// Live is the Transport backed by a real device over the bootloader wire
// protocol, spec.md §4.2.
type Live struct {
	Link Endpoint
}

func NewLive(link Endpoint) *Live { return &Live{Link: link} }

func (l *Live) StorageList() (bootproto.StorageList, error) {
	if err := l.Link.SendPacket(bootproto.GetStorageListRequest(), 0); err != nil {
		return bootproto.StorageList{}, err
	}
	data, err := l.Link.RecvPacket(500 * time.Millisecond)
	if err != nil {
		return bootproto.StorageList{}, err
	}
	if len(data) != 1 {
		return bootproto.StorageList{}, &ccerr.ProtocolError{Msg: "did not receive storage list byte"}
	}
	return bootproto.StorageList{Value: data[0]}, nil
}

func (l *Live) StorageInfo(storageID uint32) (bootproto.StorageInfo, error) {
	if err := l.Link.SendPacket(bootproto.GetStorageInfoRequest(storageID), 0); err != nil {
		return bootproto.StorageInfo{}, err
	}
	data, err := l.Link.RecvPacket(0)
	if err != nil {
		return bootproto.StorageInfo{}, err
	}
	return bootproto.StorageInfoFromPacket(data)
}

func (l *Live) checkMedium(storageID uint32) error {
	slist, err := l.StorageList()
	if err != nil {
		return err
	}
	switch storageID {
	case bootproto.StorageSFLASH:
		if !slist.Sflash() {
			return &ccerr.ProtocolError{Msg: "no serial flash?!"}
		}
	case bootproto.StorageSRAM:
		if !slist.Sram() {
			return &ccerr.ProtocolError{Msg: "no sram?!"}
		}
	}
	return nil
}

func (l *Live) RawRead(storageID uint32, offset, length uint32) ([]byte, error) {
	if err := l.checkMedium(storageID); err != nil {
		return nil, err
	}
	out := make([]byte, 0, length)
	for uint32(len(out)) < length {
		remaining := length - uint32(len(out))
		toRead := remaining
		if toRead > ReadChunkSize {
			toRead = ReadChunkSize
		}
		req := bootproto.RawStorageReadRequest(storageID, offset+uint32(len(out)), toRead)
		if err := l.Link.SendPacket(req, 0); err != nil {
			return nil, err
		}
		data, err := l.Link.RecvPacket(0)
		if err != nil {
			return nil, err
		}
		if uint32(len(data)) != toRead {
			return nil, &ccerr.ProtocolError{Msg: "invalid received size"}
		}
		out = append(out, data...)
		logging.Debug("raw read progress", "offset", offset, "read", len(out), "total", length)
	}
	return out, nil
}

func (l *Live) RawWrite(storageID uint32, offset uint32, data []byte) error {
	if err := l.checkMedium(storageID); err != nil {
		return err
	}
	sent := 0
	for sent < len(data) {
		end := sent + WriteChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[sent:end]
		req := bootproto.RawStorageWriteRequest(storageID, offset+uint32(sent), chunk)
		if err := l.Link.SendPacket(req, 0); err != nil {
			return err
		}
		sent = end
		logging.Debug("raw write progress", "offset", offset, "sent", sent, "total", len(data))
	}
	return nil
}

func (l *Live) EraseBlocks(storageID, startBlock, count uint32, timeout time.Duration) error {
	req := bootproto.RawStorageEraseRequest(storageID, startBlock, count)
	return l.Link.SendPacket(req, timeout)
}

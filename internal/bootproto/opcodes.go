// Package bootproto encodes and decodes the CC3200/CC32xx bootloader's
// opcode set: the typed request/response pairs of spec.md §4.3, lifted
// field-for-field from cc.py's OPCODE_* constants and CC3x00* wrapper
// classes.
package bootproto

// Opcode is the first byte of every outgoing packet.
type Opcode byte

const (
	OpStartUpload     Opcode = 0x21
	OpFinishUpload    Opcode = 0x22
	OpGetLastStatus   Opcode = 0x23
	OpFileChunk       Opcode = 0x24
	OpGetStorageList  Opcode = 0x27
	OpFormatFlash     Opcode = 0x28
	OpGetFileInfo     Opcode = 0x2A
	OpReadFileChunk   Opcode = 0x2B
	OpRawStorageRead  Opcode = 0x2C
	OpRawStorageWrite Opcode = 0x2D
	OpEraseFile       Opcode = 0x2E
	OpGetVersionInfo  Opcode = 0x2F
	OpRawStorageErase Opcode = 0x30
	OpGetStorageInfo  Opcode = 0x31
	OpExecFromRAM     Opcode = 0x32
	OpSwitch2Apps     Opcode = 0x33
)

// Storage ids, spec.md §4.2.
const (
	StorageSRAM   uint32 = 0x00
	StorageSFLASH uint32 = 0x02
)

// StorageList bitmask bits, spec.md §3.
const (
	StorageBitFlash  = 0x02
	StorageBitSflash = 0x04
	StorageBitSram   = 0x80
)

// SLFS file-open flag bits, spec.md §4.3.
const (
	SlfsFlagCommit      = 0x01
	SlfsFlagSecure      = 0x02
	SlfsFlagNoSigTest   = 0x04
	SlfsFlagStatic      = 0x08
	SlfsFlagVendor      = 0x10
	SlfsFlagPublicWrite = 0x20
	SlfsFlagPublicRead  = 0x40
)

// SLFS open-mode values. OpenFlags always uses
// SlfsModeOpenWriteCreateNotExist; the read path's START_UPLOAD sends
// flags 0, i.e. SlfsModeOpenRead. The others exist for completeness of
// the bitfield.
const (
	SlfsModeOpenRead                = 0
	SlfsModeOpenWrite               = 1
	SlfsModeOpenCreate              = 2
	SlfsModeOpenWriteCreateNotExist = 3
)

// FlashBlockSizes is the block-size class ladder used to pick a SLFS
// allocation size, spec.md §4.3.
var FlashBlockSizes = [5]uint32{0x100, 0x400, 0x1000, 0x4000, 0x10000}

// SlfsSizeMap converts the CLI's size enumerator to a KiB count, spec.md
// §4.6.
var SlfsSizeMap = map[string]int{
	"512": 512,
	"1M":  1024,
	"2M":  2 * 1024,
	"4M":  4 * 1024,
	"8M":  8 * 1024,
	"16M": 16 * 1024,
}

// SlfsBlockSize is the SFFS flash block size, spec.md §3.
const SlfsBlockSize = 4096

// DefaultEraseTimeoutSeconds is spec.md §4.4/ERASE_TIMEOUT in cc.py.
const DefaultEraseTimeoutSeconds = 120

// Package ccerr defines the named error kinds a cc3200tool operation can
// fail with, so callers can recover the kind with errors.As instead of
// string-matching a message.
package ccerr

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// SerialOpenError reports that the UART device could not be opened.
type SerialOpenError struct {
	Port string
	Err  error
}

func (e *SerialOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Port, e.Err)
}

func (e *SerialOpenError) Unwrap() error { return e.Err }

// ProtocolError reports a framing failure: timeout, short read, checksum
// mismatch, missing ACK, or an unexpected response size.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// DeviceStatusError reports that an operation reached the device, which
// replied with a non-OK status byte.
type DeviceStatusError struct {
	Op     string
	Status byte
}

func (e *DeviceStatusError) Error() string {
	return fmt.Sprintf("%s: device status 0x%02x", e.Op, e.Status)
}

// UnsupportedDevice reports a bootloader version or chip class this tool
// refuses to drive.
type UnsupportedDevice struct {
	Reason string
}

func (e *UnsupportedDevice) Error() string {
	return fmt.Sprintf("unsupported device: %s", e.Reason)
}

// CorruptFat reports a structurally invalid SFFS FAT: no valid copy,
// overlapping file entries, or a slot whose index field doesn't match its
// position.
type CorruptFat struct {
	Reason string
	Block  int
}

func (e *CorruptFat) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("corrupt FAT: %s (block %d)", e.Reason, e.Block)
	}
	return fmt.Sprintf("corrupt FAT: %s", e.Reason)
}

// FileNotFound reports that a name or file-id wasn't present in the
// selected FAT.
type FileNotFound struct {
	Name string
	ID   int
}

func (e *FileNotFound) Error() string {
	if e.ID >= 0 {
		return fmt.Sprintf("file id %d not found", e.ID)
	}
	return fmt.Sprintf("file %q not found", e.Name)
}

// FileTooLarge reports that no block-size class could hold a requested
// length, or that a raw-overwrite would exceed the file's allocated
// blocks.
type FileTooLarge struct {
	Reason string
}

func (e *FileTooLarge) Error() string {
	return fmt.Sprintf("file too large: %s", e.Reason)
}

// InvalidArgument reports a bad CLI combination or enumerator value.
type InvalidArgument struct {
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// Wrap attaches which subcommand an error came from while keeping the
// underlying typed kind recoverable via errors.As, distr1-distri's
// xerrors.Errorf("%w", ...) idiom.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Errorf("%s: %w", op, err)
}

// Exit codes per spec.md §6.
const (
	ExitOK               = 0
	ExitNoSubcommand     = -1
	ExitSerialOpenFailed = -2
	ExitConnectionFailed = -3
)

// ExitCode maps an error returned from the top of the orchestrator to the
// CLI exit code spec.md §6 requires.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var serialErr *SerialOpenError
	if errors.As(err, &serialErr) {
		return ExitSerialOpenFailed
	}
	return ExitConnectionFailed
}

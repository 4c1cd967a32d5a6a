// Package serial implements the framed, acknowledged wire transport of
// spec.md §4.1 (SerialLink) on top of a 921600-8N1 UART, plus the
// ResetDriver capability spec.md §4.4 needs for session bring-up.
//
// Grounded on qftool.go's QF type: open with github.com/pkg/term,
// single-threaded blocking Read/Write, request/response framing.
package serial

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"
	"zappem.net/pub/debug/xxd"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/logging"
)

// Baud and default timeout, spec.md §4.1.
const (
	Baud           = 921600
	DefaultTimeout = 5 * time.Second
)

var ackBytes = [2]byte{0x00, 0xCC}

// Port is the minimal surface Link needs from the open tty. *term.Term
// satisfies it; tests substitute a fake.
type Port interface {
	io.ReadWriter
	SetReadTimeout(time.Duration) error
}

// Link is the framed transport of spec.md §4.1. It is never shared:
// ownership is exclusive and all operations are single-threaded.
type Link struct {
	port    Port
	timeout time.Duration
}

// Open opens tty at 921600 8N1 and returns a Link with the default 5s
// read timeout.
func Open(tty string) (*Link, error) {
	t, err := term.Open(tty, term.Speed(Baud), term.RawMode)
	if err != nil {
		return nil, &ccerr.SerialOpenError{Port: tty, Err: err}
	}
	p := &termPort{t: t}
	if err := p.SetReadTimeout(DefaultTimeout); err != nil {
		t.Close()
		return nil, &ccerr.SerialOpenError{Port: tty, Err: err}
	}
	return &Link{port: p, timeout: DefaultTimeout}, nil
}

// NewLink wraps an already-open Port, for tests and for ResetDriver
// implementations that share the underlying fd.
func NewLink(p Port) *Link {
	return &Link{port: p, timeout: DefaultTimeout}
}

// Close releases the underlying port.
func (l *Link) Close() error {
	if c, ok := l.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// withTimeout scopes timeout to the duration of fn, restoring the prior
// value on exit, matching cc.py's _serial_timeout context manager.
func (l *Link) withTimeout(timeout time.Duration, fn func() error) error {
	if timeout == 0 || timeout == l.timeout {
		return fn()
	}
	prior := l.timeout
	if err := l.port.SetReadTimeout(timeout); err != nil {
		return err
	}
	l.timeout = timeout
	defer func() {
		l.port.SetReadTimeout(prior)
		l.timeout = prior
	}()
	return fn()
}

// SendPacket frames payload as len_be16(=len+2) | checksum_u8 | payload,
// writes it, and waits for the 00 CC ACK. An optional per-call timeout
// scopes only this call, per spec.md §4.1.
func (l *Link) SendPacket(payload []byte, timeout time.Duration) error {
	if len(payload) == 0 {
		return &ccerr.ProtocolError{Msg: "refusing to send empty packet"}
	}
	checksum := byte(0)
	for _, b := range payload {
		checksum += b
	}
	frame := make([]byte, 0, 3+len(payload))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)+2))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, checksum)
	frame = append(frame, payload...)

	if logging.DebugEnabled() {
		logging.Debug("tx frame", "opcode", fmt.Sprintf("0x%02x", payload[0]), "len", len(payload))
		xxd.Print(0, frame)
	}

	if _, err := l.port.Write(frame); err != nil {
		return &ccerr.ProtocolError{Msg: "write failed", Err: err}
	}

	var ackErr error
	err := l.withTimeout(timeout, func() error {
		ok, err := l.readAck()
		if err != nil {
			ackErr = err
			return nil
		}
		if !ok {
			ackErr = &ccerr.ProtocolError{Msg: fmt.Sprintf("no ack for packet opcode=0x%02x", payload[0])}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ackErr
}

// RecvPacket reads a framed packet: a 3-byte header (len_be16, checksum),
// then exactly len-2 payload bytes, verifies the checksum, sends the ACK,
// and returns the payload.
func (l *Link) RecvPacket(timeout time.Duration) ([]byte, error) {
	var payload []byte
	err := l.withTimeout(timeout, func() error {
		header := make([]byte, 3)
		n, err := io.ReadFull(l.port, header)
		if err != nil || n != 3 {
			return &ccerr.ProtocolError{Msg: "read_packet timed out on header", Err: err}
		}
		dataLen := int(binary.BigEndian.Uint16(header[0:2])) - 2
		csumByte := header[2]

		data := make([]byte, dataLen)
		if dataLen > 0 {
			n, err := io.ReadFull(l.port, data)
			if err != nil || n != dataLen {
				return &ccerr.ProtocolError{Msg: "did not get entire response", Err: err}
			}
		}

		sum := byte(0)
		for _, b := range data {
			sum += b
		}
		if sum != csumByte {
			return &ccerr.ProtocolError{Msg: "rx checksum failed"}
		}

		if logging.DebugEnabled() {
			xxd.Print(0, append(append([]byte{}, header...), data...))
		}

		payload = data
		return l.sendAck()
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (l *Link) sendAck() error {
	_, err := l.port.Write(ackBytes[:])
	return err
}

func (l *Link) readAck() (bool, error) {
	var seen [2]byte
	for {
		b := make([]byte, 1)
		n, err := l.port.Read(b)
		if n == 0 || err != nil {
			return false, nil
		}
		seen[0], seen[1] = seen[1], b[0]
		if seen[0] == ackBytes[0] && seen[1] == ackBytes[1] {
			return true, nil
		}
	}
}

// BreakIn issues a ~200ms UART BREAK and waits for the ACK pair, retrying
// up to tries times. Fails with a ProtocolError when exhausted.
func (l *Link) BreakIn(tries int, perTryTimeout time.Duration) error {
	if tries <= 0 {
		tries = 5
	}
	if perTryTimeout <= 0 {
		perTryTimeout = 2 * time.Second
	}
	for i := 0; i < tries; i++ {
		ok, err := l.doBreak(perTryTimeout)
		if err == nil && ok {
			return nil
		}
	}
	return &ccerr.ProtocolError{Msg: "no ACK on break"}
}

func (l *Link) doBreak(timeout time.Duration) (bool, error) {
	breaker, ok := l.port.(Breaker)
	if !ok {
		return false, &ccerr.ProtocolError{Msg: "port does not support sending BREAK"}
	}
	if err := breaker.SendBreak(200 * time.Millisecond); err != nil {
		return false, err
	}
	var ok2 bool
	err := l.withTimeout(timeout, func() error {
		var err error
		ok2, err = l.readAck()
		return err
	})
	return ok2, err
}

// Breaker is implemented by ports that can assert a UART BREAK condition.
type Breaker interface {
	SendBreak(time.Duration) error
}

// Lines returns the Link's underlying port as a ModemLines, for building
// a ResetDriver that shares the same open fd. ok is false for ports
// (e.g. test fakes) that don't implement DTR/RTS control.
func (l *Link) Lines() (lines ModemLines, ok bool) {
	lines, ok = l.port.(ModemLines)
	return lines, ok
}

// Flush drains whatever is sitting in the receive buffer, spec.md §4.4
// step 1, by reading with a short timeout until a read comes back empty.
// Grounded on cc.py's serial_port.flushInput() call at bring-up.
func (l *Link) Flush() error {
	return l.withTimeout(50*time.Millisecond, func() error {
		buf := make([]byte, 256)
		for {
			n, err := l.port.Read(buf)
			if n == 0 || err != nil {
				return nil
			}
		}
	})
}

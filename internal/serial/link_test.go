package serial

import (
	"bytes"
	"io"
	"testing"
	"time"
)

// fakePort is an in-memory Port: writes land in tx, reads drain from a
// pre-seeded rx buffer. Good enough to drive Link's framing without a
// real tty.
type fakePort struct {
	tx  bytes.Buffer
	rx  bytes.Buffer
	eof bool
}

func (p *fakePort) Write(b []byte) (int, error) { return p.tx.Write(b) }

func (p *fakePort) Read(b []byte) (int, error) {
	if p.rx.Len() == 0 {
		if p.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	return p.rx.Read(b)
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) feed(b []byte) { p.rx.Write(b) }

func checksum(payload []byte) byte {
	var s byte
	for _, b := range payload {
		s += b
	}
	return s
}

func frame(payload []byte) []byte {
	n := len(payload) + 2
	return append([]byte{byte(n >> 8), byte(n), checksum(payload)}, payload...)
}

func TestSendPacketFramesAndWaitsForAck(t *testing.T) {
	p := &fakePort{}
	p.feed(ackBytes[:])
	l := NewLink(p)

	payload := []byte{0x21, 0x01, 0x02}
	if err := l.SendPacket(payload, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(p.tx.Bytes(), frame(payload)) {
		t.Fatalf("tx frame = % x, want % x", p.tx.Bytes(), frame(payload))
	}
}

func TestSendPacketNoAckFails(t *testing.T) {
	p := &fakePort{eof: true}
	l := NewLink(p)
	if err := l.SendPacket([]byte{0x21}, 0); err == nil {
		t.Fatalf("expected error when no ACK arrives")
	}
}

func TestSendPacketRejectsEmptyPayload(t *testing.T) {
	l := NewLink(&fakePort{})
	if err := l.SendPacket(nil, 0); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestRecvPacketRoundTrip(t *testing.T) {
	p := &fakePort{}
	payload := []byte{0xAA, 0xBB, 0xCC}
	p.feed(frame(payload))
	l := NewLink(p)

	got, err := l.RecvPacket(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got % x, want % x", got, payload)
	}
	if !bytes.Equal(p.tx.Bytes(), ackBytes[:]) {
		t.Fatalf("expected ACK to be sent, got % x", p.tx.Bytes())
	}
}

func TestRecvPacketChecksumMismatch(t *testing.T) {
	p := &fakePort{}
	payload := []byte{0x01, 0x02}
	bad := frame(payload)
	bad[2] ^= 0xFF // corrupt the checksum byte
	p.feed(bad)
	l := NewLink(p)

	if _, err := l.RecvPacket(0); err == nil {
		t.Fatalf("expected checksum mismatch error")
	}
}

func TestRecvPacketShortHeaderFails(t *testing.T) {
	p := &fakePort{eof: true}
	l := NewLink(p)
	if _, err := l.RecvPacket(0); err == nil {
		t.Fatalf("expected error on truncated header")
	}
}

func TestFlushDrainsPendingBytes(t *testing.T) {
	p := &fakePort{}
	p.feed([]byte{0x01, 0x02, 0x03})
	l := NewLink(p)
	if err := l.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.rx.Len() != 0 {
		t.Fatalf("expected rx drained, %d bytes remain", p.rx.Len())
	}
}

func TestLinesFalseWhenUnsupported(t *testing.T) {
	l := NewLink(&fakePort{})
	if _, ok := l.Lines(); ok {
		t.Fatalf("fakePort does not implement ModemLines, expected ok=false")
	}
}

//go:build unix

package serial

import (
	"time"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// termPort adapts *term.Term (opened at 921600 8N1 raw mode, per
// qftool.go's term.Open(tty, term.Speed(...), term.RawMode) idiom) to the
// Port and Breaker interfaces, using direct golang.org/x/sys/unix ioctls
// for BREAK and modem-control lines that pkg/term itself has no portable
// API for (see SPEC_FULL.md Domain Stack).
type termPort struct {
	t *term.Term
}

func (p *termPort) Read(b []byte) (int, error)  { return p.t.Read(b) }
func (p *termPort) Write(b []byte) (int, error) { return p.t.Write(b) }
func (p *termPort) Close() error                { return p.t.Close() }

func (p *termPort) SetReadTimeout(d time.Duration) error {
	return p.t.SetReadTimeout(d)
}

// SendBreak asserts a UART BREAK condition for d, then clears it,
// matching cc.py's port.send_break(.2) (pyserial's BSD-style TIOCSBRK /
// TIOCCBRK pair).
func (p *termPort) SendBreak(d time.Duration) error {
	fd := int(p.t.Fd())
	if err := unix.IoctlSetInt(fd, unix.TIOCSBRK, 0); err != nil {
		return err
	}
	time.Sleep(d)
	return unix.IoctlSetInt(fd, unix.TIOCCBRK, 0)
}

// setModemLine raises or lowers a single modem-control output (DTR or
// RTS) via TIOCMBIS/TIOCMBIC, the ioctl pair pyserial itself uses under
// the hood for port.dtr/port.rts assignment.
func (p *termPort) setModemLine(bit int, assert bool) error {
	fd := int(p.t.Fd())
	if assert {
		return unix.IoctlSetInt(fd, unix.TIOCMBIS, bit)
	}
	return unix.IoctlSetInt(fd, unix.TIOCMBIC, bit)
}

func (p *termPort) SetDTR(assert bool) error { return p.setModemLine(unix.TIOCM_DTR, assert) }
func (p *termPort) SetRTS(assert bool) error { return p.setModemLine(unix.TIOCM_RTS, assert) }

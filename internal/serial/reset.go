package serial

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
)

// PinConfig names one output pin (or "none"/"prompt") a logical signal is
// driven through, optionally inverted. Mirrors cc.py's Pincfg namedtuple
// and its '~'-prefix convention.
type PinConfig struct {
	Pin    string // "dtr", "rts", "none", or (reset only) "prompt"
	Invert bool
}

// ParsePin parses a --reset/--sop2 style CLI argument. allowPrompt is true
// only for --reset, matching cc.py's pinarg(extra=['prompt']) for reset
// and pinarg() (no extra) for sop2.
func ParsePin(s string, allowPrompt bool) (PinConfig, error) {
	invert := false
	if strings.HasPrefix(s, "~") {
		invert = true
		s = s[1:]
	}
	choices := []string{"dtr", "rts", "none"}
	if allowPrompt {
		choices = append(choices, "prompt")
	}
	for _, c := range choices {
		if s == c {
			return PinConfig{Pin: s, Invert: invert}, nil
		}
	}
	return PinConfig{}, &ccerr.InvalidArgument{Reason: fmt.Sprintf("%q not one of %v", s, choices)}
}

// ModemLines is the pin-toggle surface a ResetDriver drives. termPort
// implements it via TIOCMBIS/TIOCMBIC ioctls.
type ModemLines interface {
	SetDTR(assert bool) error
	SetRTS(assert bool) error
}

// ResetDriver is the capability spec.md §4.4 requires of session
// bring-up: assert SOP2 at a given level, then pulse reset. Out of scope
// per spec.md §1 for design purposes, but still needs a concrete,
// working implementation — this one drives DTR/RTS the way cc.py's
// _set_sop2/_do_reset do, or prompts interactively.
type ResetDriver struct {
	lines ModemLines
	sop2  PinConfig
	reset PinConfig
	in    io.Reader
	out   io.Writer

	lastSOP2Level bool
}

// NewResetDriver builds a ResetDriver over lines (typically the same
// termPort the Link reads/writes through).
func NewResetDriver(lines ModemLines, sop2, reset PinConfig, in io.Reader, out io.Writer) *ResetDriver {
	if in == nil {
		in = strings.NewReader("\n")
	}
	return &ResetDriver{lines: lines, sop2: sop2, reset: reset, in: in, out: out}
}

// AssertSOP2 drives the configured SOP2 pin to level (true = asserted),
// respecting the pin's invert flag. A "none" pin is a no-op, matching
// cc.py's _set_sop2.
func (d *ResetDriver) AssertSOP2(level bool) error {
	d.lastSOP2Level = level
	if d.sop2.Pin == "none" {
		return nil
	}
	toSet := level != d.sop2.Invert
	switch d.sop2.Pin {
	case "dtr":
		return d.lines.SetDTR(toSet)
	case "rts":
		return d.lines.SetRTS(toSet)
	}
	return nil
}

// PulseReset drives the configured reset pin into reset and back out
// after 100ms, or — for "prompt" — asks the operator to do it by hand.
// "none" is a no-op, matching cc.py's _do_reset.
func (d *ResetDriver) PulseReset() error {
	switch d.reset.Pin {
	case "none":
		return nil
	case "prompt":
		state := "de"
		if d.lastSOP2Level {
			state = ""
		}
		fmt.Fprintf(d.out, "Reset the device with SOP2 %sasserted and press Enter\n", state)
		bufio.NewReader(d.in).ReadString('\n')
		return nil
	}

	inReset := true != d.reset.Invert
	var set func(bool) error
	switch d.reset.Pin {
	case "dtr":
		set = d.lines.SetDTR
	case "rts":
		set = d.lines.SetRTS
	default:
		return nil
	}
	if err := set(inReset); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return set(!inReset)
}

// ValidatePins enforces spec.md §6's "conflicting pin assignment" check:
// sop2 and reset cannot both be driven through the same non-"none" pin.
func ValidatePins(sop2, reset PinConfig) error {
	if sop2.Pin == reset.Pin && reset.Pin != "none" {
		return &ccerr.InvalidArgument{Reason: "sop2 and reset methods cannot be the same output pin"}
	}
	return nil
}

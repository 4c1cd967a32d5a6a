// Command cc3200tool drives a CC3200/CC32xx serial bootloader: format,
// erase, read, and write files in its Serial Flash File System, and
// gang-read/write the whole flash image — live over a UART, or offline
// against a previously captured image file.
//
// Grounded on cc.py's main()/split_argv dispatch loop, spec.md §6.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/bringup"
	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/fsops"
	"github.com/bluenazgul/cc3200tool/internal/logging"
	"github.com/bluenazgul/cc3200tool/internal/orchestrator"
	"github.com/bluenazgul/cc3200tool/internal/serial"
	"github.com/bluenazgul/cc3200tool/internal/sffs"
	"github.com/bluenazgul/cc3200tool/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	segments := orchestrator.SplitArgv(argv)
	if len(segments) == 0 {
		fmt.Fprintln(os.Stderr, "cc3200tool: no subcommand given")
		return ccerr.ExitNoSubcommand
	}

	global, rest, err := orchestrator.ParseGlobal(segments[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitNoSubcommand
	}
	segments[0] = rest

	if err := orchestrator.ValidateGlobal(global); err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitNoSubcommand
	}

	commands, err := orchestrator.ParseCommands(segments)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitNoSubcommand
	}
	if len(commands) == 0 {
		fmt.Fprintln(os.Stderr, "cc3200tool: no subcommand given")
		return ccerr.ExitNoSubcommand
	}

	dev := sffs.CC3200
	if global.Device == "cc32xx" {
		dev = sffs.CC32xx
	}

	if global.ImageFile != "" {
		return runOffline(global, dev, commands)
	}
	return runLive(global, dev, commands)
}

// runOffline operates against an image file instead of a live device,
// spec.md §4.2. Writes land on --output_file when given (first cloned
// byte-for-byte from --image_file); with no output file, --image_file is
// opened read-write and patched in place.
func runOffline(global orchestrator.Global, dev sffs.Device, commands []orchestrator.Command) int {
	path := global.ImageFile
	if global.OutputFile != "" {
		if err := cloneFile(global.ImageFile, global.OutputFile); err != nil {
			fmt.Fprintln(os.Stderr, "cc3200tool:", err)
			return ccerr.ExitCode(err)
		}
		path = global.OutputFile
	}

	st, err := os.Stat(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitCode(err)
	}
	blockCount := uint16(st.Size() / bootproto.SlfsBlockSize)

	img, err := transport.OpenImageFile(path, bootproto.SlfsBlockSize, blockCount)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitCode(err)
	}
	defer img.Close()

	ops := fsops.New(img, nil, dev, 0)
	orc := orchestrator.New(ops, noopReset{}, os.Stdout, false)

	if err := orc.Execute(commands); err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitCode(err)
	}
	return ccerr.ExitOK
}

func cloneFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func runLive(global orchestrator.Global, dev sffs.Device, commands []orchestrator.Command) int {
	link, err := serial.Open(global.Port)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitSerialOpenFailed
	}
	defer link.Close()

	sop2, err := serial.ParsePin(global.Sop2, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitNoSubcommand
	}
	resetPin, err := serial.ParsePin(global.Reset, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitNoSubcommand
	}
	lines, _ := link.Lines()
	reset := serial.NewResetDriver(lines, sop2, resetPin, os.Stdin, os.Stdout)

	result, err := bringup.Run(link, reset)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", err)
		return ccerr.ExitConnectionFailed
	}
	logging.Info("connected", "bootloader", result.Initial.Bootloader, "did_switch", result.DidSwitch)

	t := transport.NewLive(link)
	ops := fsops.New(t, link, dev, time.Duration(global.EraseTimeout)*time.Second)
	orc := orchestrator.New(ops, reset, os.Stdout, result.DidSwitch)

	runErr := orc.Execute(commands)
	if runErr == nil && global.RebootToApp {
		runErr = orc.RebootToApp()
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "cc3200tool:", runErr)
		return ccerr.ExitCode(runErr)
	}
	return ccerr.ExitOK
}

// noopReset stands in for the pin-toggle capability on an offline run,
// where there is no device to reset.
type noopReset struct{}

func (noopReset) AssertSOP2(bool) error { return nil }
func (noopReset) PulseReset() error     { return nil }

// Package orchestrator binds a parsed command-line subcommand sequence
// to FilesystemOps calls, spec.md §4.7. Grounded on cc.py's argparse
// parser tree and its split_argv/main dispatch loop, re-expressed as a
// switch over the subcommand name with a per-verb flag.NewFlagSet, after
// distr1-distri's cmd/distri/distri.go — CLI parsing is out of scope for design per
// spec.md §1, but still needs a concrete, idiomatic implementation.
package orchestrator

import (
	"flag"
	"fmt"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/serial"
)

// Global holds the flags that precede the first subcommand, spec.md §6.
type Global struct {
	Port         string
	ImageFile    string
	OutputFile   string
	Reset        string
	Sop2         string
	EraseTimeout int
	RebootToApp  bool
	Device       string
}

// subcommandNames is the recognized-token set SplitArgv partitions on,
// matching argparse's subparsers.choices.
var subcommandNames = map[string]bool{
	"format_flash":    true,
	"erase_file":      true,
	"write_file":      true,
	"read_file":       true,
	"write_flash":     true,
	"read_flash":      true,
	"list_filesystem": true,
	"read_all_files":  true,
	"write_all_files": true,
}

// SplitArgv partitions argv into one segment per subcommand occurrence,
// spec.md §4.7: the first segment carries every global flag plus the
// first subcommand's own flags; each subsequent segment carries only one
// subcommand's own flags. Grounded on cc.py's split_argv generator.
func SplitArgv(argv []string) [][]string {
	var segments [][]string
	var cur []string
	haveCmd := false
	for _, a := range argv {
		if subcommandNames[a] {
			if haveCmd {
				segments = append(segments, cur)
				cur = nil
			}
			haveCmd = true
		}
		cur = append(cur, a)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// FormatFlashCmd is format_flash's parsed flags.
type FormatFlashCmd struct{ Size string }

// EraseFileCmd is erase_file's parsed flags.
type EraseFileCmd struct{ Name string }

// WriteFileCmd is write_file's parsed flags.
type WriteFileCmd struct {
	Local      string
	CCName     string
	Signature  string
	FileSize   int
	CommitFlag bool
	FileID     int
}

// ReadFileCmd is read_file's parsed flags.
type ReadFileCmd struct {
	CCName string
	Local  string
	FileID int
}

// WriteFlashCmd is write_flash's parsed flags.
type WriteFlashCmd struct {
	Image   string
	NoErase bool
}

// ReadFlashCmd is read_flash's parsed flags.
type ReadFlashCmd struct {
	Dump   string
	Offset int
	Size   int
}

// ListFilesystemCmd is list_filesystem's parsed flags.
type ListFilesystemCmd struct {
	JSONOutput bool
	Inactive   bool
	Extended   bool
}

// ReadAllFilesCmd is read_all_files's parsed flags.
type ReadAllFilesCmd struct {
	Dir      string
	ByFileID bool
}

// WriteAllFilesCmd is write_all_files's parsed flags. Simulate's sense
// is the corrected one (true = do not write), spec.md §9's explicit
// fix-this-one instruction — see DESIGN.md.
type WriteAllFilesCmd struct {
	Dir      string
	Simulate bool
}

// Command is one parsed subcommand segment; exactly one of the typed
// fields is non-nil, selected by Name.
type Command struct {
	Name           string
	FormatFlash    *FormatFlashCmd
	EraseFile      *EraseFileCmd
	WriteFile      *WriteFileCmd
	ReadFile       *ReadFileCmd
	WriteFlash     *WriteFlashCmd
	ReadFlash      *ReadFlashCmd
	ListFilesystem *ListFilesystemCmd
	ReadAllFiles   *ReadAllFilesCmd
	WriteAllFiles  *WriteAllFilesCmd
}

// ParseGlobal parses the leading global flags out of argv (the first
// SplitArgv segment), returning the Global and the remaining args
// starting at the first subcommand token.
func ParseGlobal(argv []string) (Global, []string, error) {
	g := Global{Port: "/dev/ttyUSB0", Reset: "none", Sop2: "none", EraseTimeout: 120, Device: "cc3200"}

	fs := flag.NewFlagSet("cc3200tool", flag.ContinueOnError)
	fs.StringVar(&g.Port, "p", g.Port, "serial port")
	fs.StringVar(&g.Port, "port", g.Port, "serial port")
	fs.StringVar(&g.ImageFile, "if", "", "offline image file (read)")
	fs.StringVar(&g.ImageFile, "image_file", "", "offline image file (read)")
	fs.StringVar(&g.OutputFile, "of", "", "offline image file (write)")
	fs.StringVar(&g.OutputFile, "output_file", "", "offline image file (write)")
	fs.StringVar(&g.Reset, "reset", g.Reset, "dtr|rts|none|prompt, optional ~ prefix")
	fs.StringVar(&g.Sop2, "sop2", g.Sop2, "dtr|rts|none, optional ~ prefix")
	fs.IntVar(&g.EraseTimeout, "erase_timeout", g.EraseTimeout, "block erase timeout in seconds")
	fs.BoolVar(&g.RebootToApp, "reboot-to-app", false, "reboot to application when finished")
	fs.StringVar(&g.Device, "d", g.Device, "cc3200|cc32xx")
	fs.StringVar(&g.Device, "device", g.Device, "cc3200|cc32xx")

	if err := fs.Parse(argv); err != nil {
		return Global{}, nil, &ccerr.InvalidArgument{Reason: err.Error()}
	}
	return g, fs.Args(), nil
}

// ParseCommands parses every SplitArgv segment after the first flag run
// into a Command. segments[0] still has its global flags at the front;
// the caller is expected to have already stripped those via ParseGlobal
// and to pass the remaining tokens here as segments[0].
func ParseCommands(segments [][]string) ([]Command, error) {
	var commands []Command
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		cmd, err := parseOne(seg)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func parseOne(seg []string) (Command, error) {
	name := seg[0]
	rest := seg[1:]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	switch name {
	case "format_flash":
		c := &FormatFlashCmd{Size: "1M"}
		fs.StringVar(&c.Size, "s", c.Size, "512|1M|2M|4M|8M|16M")
		fs.StringVar(&c.Size, "size", c.Size, "512|1M|2M|4M|8M|16M")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		return Command{Name: name, FormatFlash: c}, nil

	case "erase_file":
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 1 {
			return Command{}, missingPositional(name, "filename")
		}
		return Command{Name: name, EraseFile: &EraseFileCmd{Name: fs.Arg(0)}}, nil

	case "write_file":
		c := &WriteFileCmd{FileID: -1}
		fs.StringVar(&c.Signature, "signature", "", "signature file (256 bytes)")
		fs.IntVar(&c.FileSize, "file-size", 0, "allocate more space than the upload needs")
		fs.BoolVar(&c.CommitFlag, "commit-flag", false, "enable MIRROR fail-safe")
		fs.IntVar(&c.FileID, "file-id", -1, "write by file id (image file only)")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 2 {
			return Command{}, missingPositional(name, "local_file cc_filename")
		}
		c.Local, c.CCName = fs.Arg(0), fs.Arg(1)
		return Command{Name: name, WriteFile: c}, nil

	case "read_file":
		c := &ReadFileCmd{FileID: -1}
		fs.IntVar(&c.FileID, "file-id", -1, "read by file id")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 2 {
			return Command{}, missingPositional(name, "cc_filename local_file")
		}
		c.CCName, c.Local = fs.Arg(0), fs.Arg(1)
		return Command{Name: name, ReadFile: c}, nil

	case "write_flash":
		c := &WriteFlashCmd{}
		fs.BoolVar(&c.NoErase, "no-erase", false, "skip the pre-write erase")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 1 {
			return Command{}, missingPositional(name, "image_file")
		}
		c.Image = fs.Arg(0)
		return Command{Name: name, WriteFlash: c}, nil

	case "read_flash":
		c := &ReadFlashCmd{Size: -1}
		fs.IntVar(&c.Offset, "offset", 0, "starting offset")
		fs.IntVar(&c.Size, "size", -1, "dump size (-1 = whole SFFS)")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 1 {
			return Command{}, missingPositional(name, "dump_file")
		}
		c.Dump = fs.Arg(0)
		return Command{Name: name, ReadFlash: c}, nil

	case "list_filesystem":
		c := &ListFilesystemCmd{}
		fs.BoolVar(&c.JSONOutput, "json-output", false, "emit JSON")
		fs.BoolVar(&c.Inactive, "inactive", false, "show the inactive FAT copy")
		fs.BoolVar(&c.Extended, "extended", false, "read file headers, show size")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		return Command{Name: name, ListFilesystem: c}, nil

	case "read_all_files":
		c := &ReadAllFilesCmd{}
		fs.BoolVar(&c.ByFileID, "by-file-id", false, "read unknown filenames by id")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 1 {
			return Command{}, missingPositional(name, "local_dir")
		}
		c.Dir = fs.Arg(0)
		return Command{Name: name, ReadAllFiles: c}, nil

	case "write_all_files":
		c := &WriteAllFilesCmd{}
		fs.BoolVar(&c.Simulate, "simulate", false, "list files to be written without writing them")
		if err := fs.Parse(rest); err != nil {
			return Command{}, invalidArg(name, err)
		}
		if fs.NArg() < 1 {
			return Command{}, missingPositional(name, "local_dir")
		}
		c.Dir = fs.Arg(0)
		return Command{Name: name, WriteAllFiles: c}, nil
	}

	return Command{}, &ccerr.InvalidArgument{Reason: fmt.Sprintf("unknown subcommand %q", name)}
}

func invalidArg(cmd string, err error) error {
	return &ccerr.InvalidArgument{Reason: fmt.Sprintf("%s: %v", cmd, err)}
}

func missingPositional(cmd, want string) error {
	return &ccerr.InvalidArgument{Reason: fmt.Sprintf("%s: missing required argument(s): %s", cmd, want)}
}

// ValidateGlobal enforces spec.md §6's sop2/reset conflicting-pin rule.
func ValidateGlobal(g Global) error {
	sop2, err := serial.ParsePin(g.Sop2, false)
	if err != nil {
		return err
	}
	reset, err := serial.ParsePin(g.Reset, true)
	if err != nil {
		return err
	}
	return serial.ValidatePins(sop2, reset)
}

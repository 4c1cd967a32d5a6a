package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/fsops"
	"github.com/bluenazgul/cc3200tool/internal/logging"
	"github.com/bluenazgul/cc3200tool/internal/sffs"
)

// State is the session lifecycle spec.md §4.7 names:
// New -> Connected -> AppsBootloader -> Idle <-> Busy -> Closed.
type State int

const (
	StateNew State = iota
	StateConnected
	StateAppsBootloader
	StateIdle
	StateBusy
	StateClosed
)

// Reset is the pin-toggle capability reboot_to_app drives.
type Reset interface {
	AssertSOP2(level bool) error
	PulseReset() error
}

// Orchestrator binds parsed Commands to fsops.Ops calls, spec.md §4.7.
// Grounded on cc.py's main() dispatch loop.
type Orchestrator struct {
	Ops   *fsops.Ops
	Reset Reset
	Out   io.Writer

	state State
}

// New builds an Orchestrator already past bring-up (StateConnected or
// StateAppsBootloader — the caller has already run internal/bringup).
func New(ops *fsops.Ops, reset Reset, out io.Writer, appsBootloader bool) *Orchestrator {
	st := StateConnected
	if appsBootloader {
		st = StateAppsBootloader
	}
	if out == nil {
		out = os.Stdout
	}
	return &Orchestrator{Ops: ops, Reset: reset, Out: out, state: st}
}

// Execute runs every command in order, spec.md §4.7: a post-write FAT
// re-read and short-form print after any file-mutating command.
func (o *Orchestrator) Execute(commands []Command) error {
	if o.state != StateConnected && o.state != StateAppsBootloader && o.state != StateIdle {
		return &ccerr.InvalidArgument{Reason: "orchestrator is not ready to execute commands"}
	}
	o.state = StateIdle

	checkFAT := false
	for _, cmd := range commands {
		o.state = StateBusy
		mutated, err := o.dispatch(cmd)
		if err != nil {
			return ccerr.Wrap(cmd.Name, err)
		}
		checkFAT = checkFAT || mutated
		o.state = StateIdle
	}

	if checkFAT {
		info, err := o.Ops.GetFatInfo(false, false)
		if err != nil {
			return err
		}
		o.printShort(info)
	}
	return nil
}

// RebootToApp re-pulses reset with SOP2 de-asserted, spec.md §4.7. This
// is a terminal transition: no further commands may run afterward.
func (o *Orchestrator) RebootToApp() error {
	logging.Info("rebooting to application")
	if err := o.Reset.AssertSOP2(false); err != nil {
		return err
	}
	if err := o.Reset.PulseReset(); err != nil {
		return err
	}
	o.state = StateClosed
	return nil
}

func (o *Orchestrator) dispatch(cmd Command) (mutated bool, err error) {
	switch cmd.Name {
	case "format_flash":
		return false, o.Ops.Format(cmd.FormatFlash.Size)

	case "erase_file":
		logging.Info("erasing file", "name", cmd.EraseFile.Name)
		return true, o.Ops.Erase(cmd.EraseFile.Name)

	case "write_file":
		return true, o.writeFile(cmd.WriteFile)

	case "read_file":
		return false, o.readFile(cmd.ReadFile)

	case "write_flash":
		return false, o.writeFlash(cmd.WriteFlash)

	case "read_flash":
		return false, o.readFlash(cmd.ReadFlash)

	case "list_filesystem":
		return false, o.listFilesystem(cmd.ListFilesystem)

	case "read_all_files":
		return false, o.readAllFiles(cmd.ReadAllFiles)

	case "write_all_files":
		return true, o.writeAllFiles(cmd.WriteAllFiles)
	}
	return false, &ccerr.InvalidArgument{Reason: fmt.Sprintf("unknown subcommand %q", cmd.Name)}
}

func (o *Orchestrator) writeFile(c *WriteFileCmd) error {
	f, err := os.Open(c.Local)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := fsops.WriteOpts{FileSize: c.FileSize, CommitFlag: c.CommitFlag, FileID: c.FileID}
	if c.Signature != "" {
		sig, err := os.ReadFile(c.Signature)
		if err != nil {
			return err
		}
		opts.Signature = sig
	}

	if o.Ops.Link != nil {
		return o.Ops.WriteFileAPI(f, c.CCName, opts)
	}
	info, err := o.Ops.GetFatInfo(false, true)
	if err != nil {
		return err
	}
	return o.Ops.WriteFileRaw(info, f, c.CCName, opts)
}

func (o *Orchestrator) readFile(c *ReadFileCmd) error {
	f, err := os.Create(c.Local)
	if err != nil {
		return err
	}
	defer f.Close()

	var info sffs.Info
	if o.Ops.Link == nil || c.FileID != -1 {
		info, err = o.Ops.GetFatInfo(false, true)
		if err != nil {
			return err
		}
	}
	return o.Ops.ReadFile(info, c.CCName, c.FileID, f)
}

func (o *Orchestrator) writeFlash(c *WriteFlashCmd) error {
	data, err := os.ReadFile(c.Image)
	if err != nil {
		return err
	}
	return o.Ops.WriteFlash(data, !c.NoErase)
}

func (o *Orchestrator) readFlash(c *ReadFlashCmd) error {
	size := c.Size
	if size < 0 {
		info, err := o.Ops.GetFatInfo(false, false)
		if err != nil {
			return err
		}
		size = info.BlockSize * info.BlockCount
	}
	f, err := os.Create(c.Dump)
	if err != nil {
		return err
	}
	defer f.Close()
	return o.Ops.ReadFlash(uint32(c.Offset), uint32(size), f)
}

func (o *Orchestrator) listFilesystem(c *ListFilesystemCmd) error {
	info, err := o.Ops.GetFatInfo(c.Inactive, c.Extended)
	if err != nil {
		return err
	}
	o.printShort(info)
	if c.JSONOutput {
		enc, err := json.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Fprintln(o.Out, string(enc))
	}
	return nil
}

func (o *Orchestrator) readAllFiles(c *ReadAllFilesCmd) error {
	info, err := o.Ops.GetFatInfo(false, false)
	if err != nil {
		return err
	}
	o.printShort(info)

	for _, f := range info.Files {
		ccname := f.Name
		fileID := -1
		if c.ByFileID && ccname == "" {
			ccname = strconv.Itoa(f.Index)
			fileID = f.Index
		}
		rel := strings.TrimPrefix(ccname, "/")
		target := filepath.Join(c.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			logging.Error("could not create directory for file", "name", f.Name, "err", err)
			continue
		}
		if err := o.readFile(&ReadFileCmd{CCName: f.Name, Local: target, FileID: fileID}); err != nil {
			logging.Error("file could not be read", "name", f.Name, "err", err)
		}
	}
	return nil
}

func (o *Orchestrator) writeAllFiles(c *WriteAllFilesCmd) error {
	return filepath.Walk(c.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.Dir, path)
		if err != nil {
			return err
		}
		ccpath := "/" + filepath.ToSlash(rel)

		if c.Simulate {
			logging.Info("simulation: would copy local file", "path", path, "target", ccpath)
			return nil
		}
		return o.writeFile(&WriteFileCmd{Local: path, CCName: ccpath, FileID: -1})
	})
}

func (o *Orchestrator) printShort(info sffs.Info) {
	logging.Info("FAT snapshot",
		"commit_revision", info.CommitRevision,
		"num_files", len(info.Files),
		"used_blocks", info.UsedBlocks,
		"free_blocks", info.BlockCount-info.UsedBlocks,
	)
}

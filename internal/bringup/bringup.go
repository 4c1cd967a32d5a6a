// Package bringup implements the SessionBringup capability of spec.md
// §4.4: the once-per-run sequence that gets a live device from its ROM
// bootloader into the NWP bootloader, ready to take BootProtocol
// commands.
//
// Grounded on cc.py's CC3200Connection.connect(), trimmed to the exact
// ordered steps spec.md §4.4 names.
package bringup

import (
	"time"

	"github.com/bluenazgul/cc3200tool/internal/assets"
	"github.com/bluenazgul/cc3200tool/internal/bootproto"
	"github.com/bluenazgul/cc3200tool/internal/ccerr"
	"github.com/bluenazgul/cc3200tool/internal/logging"
)

// minSupportedBootloaderMinor is the floor spec.md §4.4 step 4a enforces
// for CC3200-class parts: bootloader[1] >= 4.
const minSupportedBootloaderMinor = 4

// ramHelperLoadOffset is where rbtl3100s.dll lands in SRAM before
// EXEC_FROM_RAM, spec.md §4.4 step 4c.
const ramHelperLoadOffset = 0

// Endpoint is the wire primitive bringup needs: send a framed request,
// read one response back.
type Endpoint interface {
	SendPacket(payload []byte, timeout time.Duration) error
	RecvPacket(timeout time.Duration) ([]byte, error)
	BreakIn(tries int, perTryTimeout time.Duration) error
	Flush() error
}

// Reset is the pin-toggle capability spec.md §4.4 step 2 delegates to.
type Reset interface {
	AssertSOP2(level bool) error
	PulseReset() error
}

// Result is what a successful bring-up hands back to the orchestrator:
// the version seen before and (for CC3200-class parts) after the switch
// to the APPS/NWP bootloader.
type Result struct {
	Initial   bootproto.VersionInfo
	Switched  bootproto.VersionInfo
	DidSwitch bool
}

// Run executes spec.md §4.4's ordered bring-up sequence against link,
// using reset to assert SOP2 and pulse the reset line.
func Run(link Endpoint, reset Reset) (Result, error) {
	if err := link.Flush(); err != nil {
		return Result{}, err
	}

	if err := reset.AssertSOP2(true); err != nil {
		return Result{}, err
	}
	if err := reset.PulseReset(); err != nil {
		return Result{}, err
	}

	if err := link.BreakIn(5, 2*time.Second); err != nil {
		return Result{}, err
	}

	vinfo, err := getVersionInfo(link)
	if err != nil {
		return Result{}, err
	}
	result := Result{Initial: vinfo}

	if !vinfo.IsCC3200() {
		// Non-CC3200-class parts never go through the NWP-bootloader
		// switch; this tool leaves them in their own bootloader. See
		// DESIGN.md's open-questions entry for this decision.
		logging.Info("non-CC3200-class chip_type, skipping APPS switch", "chip_type", vinfo.ChipType)
		return result, nil
	}

	if vinfo.Bootloader[1] < minSupportedBootloaderMinor-1 {
		return Result{}, &ccerr.UnsupportedDevice{Reason: "unsupported device"}
	}
	if vinfo.Bootloader[1] == minSupportedBootloaderMinor-1 {
		return Result{}, &ccerr.UnsupportedDevice{Reason: "not yet supported device (bootloader=3)"}
	}

	if err := link.SendPacket(bootproto.Switch2AppsRequest(), 0); err != nil {
		return Result{}, err
	}
	time.Sleep(1 * time.Second)
	if err := link.BreakIn(5, 2*time.Second); err != nil {
		return Result{}, err
	}

	vinfoApps, err := getVersionInfo(link)
	if err != nil {
		return Result{}, err
	}
	result.Switched = vinfoApps
	result.DidSwitch = true

	if vinfoApps.Bootloader[1] == minSupportedBootloaderMinor-1 {
		return Result{}, &ccerr.UnsupportedDevice{Reason: "not yet supported device (nwp_bootloader=3)"}
	}

	if err := uploadHelper(link); err != nil {
		return Result{}, err
	}

	if err := link.SendPacket(bootproto.ExecFromRAMRequest(), 0); err != nil {
		return Result{}, &ccerr.UnsupportedDevice{Reason: "device did not ACK EXEC_FROM_RAM: " + err.Error()}
	}

	return result, nil
}

func getVersionInfo(link Endpoint) (bootproto.VersionInfo, error) {
	if err := link.SendPacket(bootproto.GetVersionInfoRequest(), 0); err != nil {
		return bootproto.VersionInfo{}, err
	}
	data, err := link.RecvPacket(0)
	if err != nil {
		return bootproto.VersionInfo{}, err
	}
	return bootproto.VersionInfoFromPacket(data)
}

// uploadHelper writes the packaged rbtl3100s.dll image to SRAM offset 0
// via RAW_STORAGE_WRITE, chunked the same way internal/transport chunks
// any other raw write.
func uploadHelper(link Endpoint) error {
	blob := assets.RBTL3100S
	const chunkSize = 4080
	offset := uint32(ramHelperLoadOffset)
	for sent := 0; sent < len(blob); {
		end := sent + chunkSize
		if end > len(blob) {
			end = len(blob)
		}
		req := bootproto.RawStorageWriteRequest(bootproto.StorageSRAM, offset+uint32(sent), blob[sent:end])
		if err := link.SendPacket(req, 0); err != nil {
			return err
		}
		sent = end
		logging.Debug("helper image upload progress", "sent", sent, "total", len(blob))
	}
	return nil
}

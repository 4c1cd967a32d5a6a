// Package assets packages the NWP bootloader helper image SessionBringup
// uploads to SRAM, spec.md §4.4 step 4c / §6's "packaged resources".
//
// rbtl3100s.dll here is a synthetic placeholder, not TI's proprietary
// helper image — that binary isn't redistributable. See DESIGN.md.
package assets

import _ "embed"

//go:embed rbtl3100s.dll
var RBTL3100S []byte

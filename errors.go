// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace

// Error handling in grace follows two tracks, per the package's design
// notes:
//
//   - Allocation failure. Go's allocator panics rather than returning a
//     recoverable error, so Create/Register operations here return the
//     constructed value directly (never an error), exactly as
//     [code.hybscloud.com/lfq]'s NewSPSC/NewMPMC etc. do. There is no
//     grace-specific equivalent of [code.hybscloud.com/iox]'s
//     ErrWouldBlock: none of QSBR, EBR, or the G/C facade's operations
//     have a "try again later" outcome in the way a bounded queue does.
//
//   - Contract violation. Destroying an instance with pending readers or
//     pending reclaim work, calling EBR.Sync concurrently from two
//     goroutines, or unbalanced Enter/Exit are programmer errors. They
//     are surfaced as panics compiled in only under the grace_debug build
//     tag (see assert_debug.go / assert_release.go), the same toggle
//     shape [code.hybscloud.com/lfq] uses for its race.go/race_off.go
//     pair. Release builds omit the checks entirely for performance.

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build grace_debug

package grace

import "fmt"

// DebugAssertions is true when contract-violation checks are compiled in.
//
// Destroying with pending work, concurrent Sync callers, or an Exit
// without a matching Enter are programmer errors, not recoverable runtime
// conditions. Release builds may omit the checks for performance; debug
// builds (build tag grace_debug) surface them as panics.
const DebugAssertions = true

// assertf panics with a formatted message if cond is false. Only present
// in builds tagged grace_debug — see assert_release.go for the no-op twin.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("grace: contract violation: "+format, args...))
	}
}

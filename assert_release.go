// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !grace_debug

package grace

// DebugAssertions is false when contract-violation checks are compiled out.
const DebugAssertions = false

// assertf is a no-op outside grace_debug builds. cond and args are still
// evaluated by the caller's expression, but the check itself costs nothing
// beyond that — see assert_debug.go for the enforcing twin.
func assertf(cond bool, format string, args ...any) {}

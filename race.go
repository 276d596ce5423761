// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package grace

// RaceEnabled is true when the race detector is active.
// Used by tests to skip stress tests whose lock-free synchronization
// relies on cross-variable memory ordering the race detector cannot see.
const RaceEnabled = true

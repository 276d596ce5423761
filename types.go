// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package grace

import "unsafe"

// EBREpochs is the number of epochs the EBR core and the G/C facade
// cycle through. Exposed so callers can size their own pending queues
// or per-epoch bookkeeping to match.
const EBREpochs = 3

// Node is the linkage header a reclaimable object embeds. The object
// address and the linkage address are related by the fixed byte offset
// passed to NewGC as entryOffset. grace treats the enclosing object as an
// opaque token: it never dereferences it except through a ReclaimFunc.
//
// A Node must not be reused or mutated by the caller once passed to
// GC.Limbo; ownership of the node (and transitively, of its chain
// pointer) belongs to the G/C facade until the reclaim callback runs.
type Node struct {
	next *Node
}

// Next returns the next linkage node in a reclaim chain, or nil at the
// end of the chain. Reclaim callbacks use Next to walk the chain handed
// to them; application code should not otherwise need it.
func (n *Node) Next() *Node {
	if n == nil {
		return nil
	}
	return n.next
}

// ReclaimFunc is invoked by GC.Cycle/GC.Full once an epoch's bucket
// becomes safe to destroy. chain is the head of a singly linked list of
// Nodes retired in that epoch; arg is the opaque value supplied via
// WithCallbackArg. Implementations must not fail: a panicking reclaim
// callback leaves the instance in an undefined state.
type ReclaimFunc func(chain *Node, arg unsafe.Pointer)

// nodeOf recovers the Node embedded in obj at off bytes, mirroring the
// pointer arithmetic [code.hybscloud.com/lfq]'s SPSCPtr/MPMCPtr variants
// use in their own hot paths to avoid bounds-checked slice indexing.
func nodeOf(obj unsafe.Pointer, off uintptr) *Node {
	return (*Node)(unsafe.Add(obj, off))
}

// objOf is the inverse of nodeOf: it recovers the enclosing object's
// address from a linkage node's address and the same fixed offset.
func objOf(n *Node, off uintptr) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(n), -int(off))
}

package heap

import "sync/atomic"

// RemoteInbox is the MPSC intrusive stack attached to every Heap (§4.5):
// any thread may Push a freed block destined for this heap's owner; only
// the owner ever calls TakeAll, draining the whole stack at once. There is
// deliberately no Pop — push/take-all only, which the spec notes makes the
// structure ABA-free by construction.
type RemoteInbox struct {
	head atomic.Pointer[UnusedBlock]
}

// Push adds blk to the inbox. Safe for any number of concurrent callers.
func (r *RemoteInbox) Push(blk *UnusedBlock) {
	for {
		old := r.head.Load()
		blk.next = old
		if r.head.CompareAndSwap(old, blk) {
			return
		}
	}
}

// TakeAll atomically empties the inbox and returns the private
// singly-linked list of everything that was pending, in LIFO (most
// recently pushed first) order. Safe to call repeatedly; draining an empty
// inbox is a no-op that returns nil.
func (r *RemoteInbox) TakeAll() *UnusedBlock {
	return r.head.Swap(nil)
}

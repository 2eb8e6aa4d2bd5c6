package heap

// UnusedBlock represents one block handed to a remote thread's inbox for
// deferred freeing (§3 "Unused Block", §4.5). Unlike the C++ original,
// which places this node in-band at the freed address, each UnusedBlock
// here is its own small Go-heap allocation: storing a live *SuperpageBlock
// pointer inside raw mmap'd memory would leave the garbage collector unable
// to see it, so the link node is kept off the arena entirely (see
// DESIGN.md, "UnusedBlock as an off-arena allocation").
type UnusedBlock struct {
	next *UnusedBlock // RemoteInbox intrusive LIFO link
	spb  *SuperpageBlock
	addr uintptr // the freed block's address, for medium/huge frees
	// blockIdx/pageBlock let a Small free route straight back to
	// putSmallBlock without re-deriving the page index.
	pageBlock *PageBlockHeader
	blockIdx  int
}

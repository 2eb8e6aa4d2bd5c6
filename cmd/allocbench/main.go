// Command allocbench drives the allocator from the outside: it initializes
// one process-wide Allocator from the environment (config.FromEnviron) and
// runs allocate/deallocate workloads against it, for manual exercising of
// the paths a unit test can't easily reach (multi-goroutine remote frees,
// huge-allocation growth/shrink, sustained fragmentation).
package main

func main() {
	execute()
}

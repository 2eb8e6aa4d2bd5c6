// Package fault implements the allocator's fatal-error discipline.
//
// Per the error-handling design, the allocator never returns a failure
// result from its hot-path API: out-of-space, OS-mapping failure, and
// invariant violations are all unrecoverable and terminate the calling
// goroutine immediately. Recoverable, programmer-facing mistakes (bad
// Init arguments) are reported with ordinary errors by their callers
// instead of going through this package.
package fault

import "fmt"

// Fatalf aborts the program with a formatted message. It is used for the
// conditions that the allocator defines as unrecoverable: running out of
// space in a search interval, a failed OS mapping call, or an alignment
// request above one page.
func Fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

// safeEnabled is flipped by the "safe" build tag (see tags_safe.go /
// tags_unsafe.go). It gates the extra invariant checks that the original
// reserved for ASSERT_SAFE-style debug builds.
var safeEnabled = safeBuild

// Assert panics with msg if cond is false, but only when the binary was
// built with the "safe" tag. Use it for invariant checks that are too
// expensive, or too internal, to run unconditionally — the equivalent of
// the original's ASSERT_SAFE.
func Assert(cond bool, format string, args ...any) {
	if safeEnabled && !cond {
		Fatalf(format, args...)
	}
}

// AssertAlways panics with msg if cond is false regardless of build tags —
// the equivalent of the original's ASSERT_STD, for checks cheap enough (or
// important enough) to always run.
func AssertAlways(cond bool, format string, args ...any) {
	if !cond {
		Fatalf(format, args...)
	}
}

// SafeEnabled reports whether the binary was built with extra invariant
// checking enabled.
func SafeEnabled() bool { return safeEnabled }

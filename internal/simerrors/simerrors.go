// Package simerrors defines the sentinel error kinds of the error taxonomy
// (spec 7 "Error handling design") so callers can classify a failure with
// errors.Is without parsing message text.
package simerrors

import "errors"

var (
	// ErrConfig covers fail-fast configuration errors: HPP not summing to
	// 1, an unknown strategy id, a missing bootstrap file.
	ErrConfig = errors.New("config error")

	// ErrBootstrap covers malformed or too-short difficulty_bootstrap input.
	ErrBootstrap = errors.New("bootstrap error")

	// ErrRuntimeInvariant covers a violated invariant discovered mid-round:
	// an agent returning a chaintip not present in the block table, or a
	// scoreBlock walk that cannot resolve a parent. Fatal to the round that
	// raised it; other rounds continue.
	ErrRuntimeInvariant = errors.New("runtime invariant violated")

	// ErrResource covers a worker exceeding its configured RAM cap.
	ErrResource = errors.New("resource limit exceeded")
)

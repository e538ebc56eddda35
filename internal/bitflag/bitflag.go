// Package bitflag manipulates integer bitmasks.
package bitflag

import "golang.org/x/exp/constraints"

// Set adds flag to *flags when on is true and removes it otherwise.
// Removing only clears the bits of flag that are currently set.
func Set[T constraints.Integer](flags *T, flag T, on bool) {
	if on {
		*flags |= flag
		return
	}
	*flags -= *flags & flag
}

// Has reports whether every bit of flag is present in flags.
// A zero flag is never reported as present.
func Has[T constraints.Integer](flags, flag T) bool {
	return flag != 0 && flags&flag == flag
}

// Any reports whether at least one bit of flag is present in flags.
func Any[T constraints.Integer](flags, flag T) bool {
	return flags&flag != 0
}

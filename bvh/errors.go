package bvh

import "errors"

var (
	// Returned by Build when the primitive list contains unusable bounds.
	ErrInvalidInput = errors.New("bvh: invalid input")

	// Returned by Validate when the node store violates a tree invariant.
	ErrCorruptTree = errors.New("bvh: corrupt tree")
)

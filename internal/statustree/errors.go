package statustree

import "fmt"

// BadPathError is a syntactically invalid status URL, or an attempt to
// traverse through a non-mapping node. A caller bug; never converted to a
// default value.
type BadPathError struct {
	Path   string
	Reason string
}

func (e *BadPathError) Error() string {
	return fmt.Sprintf("statustree: bad path %q: %s", e.Path, e.Reason)
}

// UnknownPathError is a legal traversal that finds no node. Get converts
// this to the caller's default; Revision and Set(expected_revision) surface
// it.
type UnknownPathError struct {
	Path string
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("statustree: unknown path %q", e.Path)
}

// RevisionMismatchError is an optimistic-concurrency failure on Set: the
// caller's expected revision matched neither the target node nor any of its
// ancestors.
type RevisionMismatchError struct {
	Path     string
	Expected int64
}

func (e *RevisionMismatchError) Error() string {
	return fmt.Sprintf("statustree: revision mismatch at %q: expected %d not found on root-to-target path", e.Path, e.Expected)
}

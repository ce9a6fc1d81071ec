package actions

import "fmt"

// InvalidActionError is an action value that does not match any of the
// four dispatchable shapes, or a map action missing a required field.
type InvalidActionError struct {
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("actions: invalid action: %s", e.Reason)
}

// UnknownActionTagError is a map action whose "action" tag does not match
// any entry in the tag table.
type UnknownActionTagError struct {
	Tag string
}

func (e *UnknownActionTagError) Error() string {
	return fmt.Sprintf("actions: unknown action tag %q", e.Tag)
}

// ExternalFailureError wraps a failure from an outbound collaborator (HTTP
// fetch, SMTP send, ICMP probe, Wake-on-LAN send).
type ExternalFailureError struct {
	Op  string
	Err error
}

func (e *ExternalFailureError) Error() string {
	return fmt.Sprintf("actions: %s failed: %v", e.Op, e.Err)
}

func (e *ExternalFailureError) Unwrap() error { return e.Err }

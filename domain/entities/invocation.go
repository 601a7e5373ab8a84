package entities

import "time"

// Invocation is the outcome of one guest run: the fragments decoded from the
// value returned by the guest entry point, in guest array order.
type Invocation struct {
	// ID correlates log lines of a single run.
	ID string `json:"id"`

	// Digest is the hex BLAKE3 digest of the executed artifact.
	Digest string `json:"digest"`

	// Fragments are the decoded guest strings.
	Fragments []string `json:"fragments"`

	// Elapsed covers compile, instantiate, invoke, decode and deallocate.
	Elapsed time.Duration `json:"elapsed_ns"`
}

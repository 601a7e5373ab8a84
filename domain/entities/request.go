package entities

import (
	"context"
	"encoding/json"
	"strings"
)

// TargetFunc produces the text handed to the guest each time it calls back
// into the host. A returned error aborts the whole invocation.
type TargetFunc func(ctx context.Context) (string, error)

// CallerContext describes who issued a request and how.
// Administrative actions are only honoured for a direct call made by the
// owner of the script.
type CallerContext struct {
	CallerID     string
	OwnerID      string
	IsDirectCall bool
}

// Privileged reports whether administrative actions may run for this caller.
func (c CallerContext) Privileged() bool {
	return c.IsDirectCall && c.OwnerID != "" && c.CallerID == c.OwnerID
}

// ScriptOwner returns the owner portion of a fully qualified script name
// such as "owner.divine".
func ScriptOwner(script string) string {
	owner, _, _ := strings.Cut(script, ".")
	return owner
}

// Request carries a target generator plus optional administrative actions.
type Request struct {
	// Target generates the text for each guest callback. Nil means no target.
	Target TargetFunc `json:"-"`

	// Upload is a hex fragment to append to the stored artifact.
	Upload string `json:"upload,omitempty" validate:"omitempty,hexchunk"`

	// Clear removes the stored artifact.
	Clear bool `json:"clear,omitempty"`
}

// Response is the caller-facing result of a Request.
//
// A non-empty Text marks a plain instructional reply and marshals to a bare
// JSON string; every other response marshals as an object. A successful run
// (OK without Msg) always carries fragments and time, even when empty.
type Response struct {
	Error     *ErrorDetail `json:"error,omitempty"`
	Text      string       `json:"-"`
	Msg       string       `json:"msg,omitempty"`
	Fragments []string     `json:"fragments,omitempty"`
	Time      int64        `json:"time,omitempty" jsonschema:"description=Elapsed milliseconds"`
	OK        bool         `json:"ok"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Text != "" {
		return json.Marshal(r.Text)
	}
	if r.OK && r.Msg == "" && r.Error == nil {
		fragments := r.Fragments
		if fragments == nil {
			fragments = []string{}
		}
		return json.Marshal(runResult{OK: true, Fragments: fragments, Time: r.Time})
	}
	type plain Response
	return json.Marshal(plain(r))
}

// runResult is the wire shape of a successful run.
type runResult struct {
	Fragments []string `json:"fragments"`
	Time      int64    `json:"time"`
	OK        bool     `json:"ok"`
}

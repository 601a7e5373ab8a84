// Package errors provides the typed errors raised while running a guest
// artifact and while maintaining the stored artifact.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/ast-ral/divine/domain/entities"
)

// Phase names a state of the guest lifecycle.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseCompiled      Phase = "compiled"
	PhaseInstantiated  Phase = "instantiated"
	PhaseEntryInvoked  Phase = "entry_invoked"
	PhaseDecoded       Phase = "decoded"
	PhaseDeallocated   Phase = "deallocated"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// DetailedError is implemented by errors that can describe themselves as a
// structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to a structured ErrorDetail.
// Unrecognised errors are reported as "internal".
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return entities.NewErrorDetail("internal", err.Error())
}

// ConfigurationError reports a request that cannot run as given, such as one
// without a target. It is surfaced to callers as guidance text.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
	}
	return "configuration: " + e.Message
}

// ToErrorDetail implements DetailedError.
func (e *ConfigurationError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("configuration", e.Message).WithCode(e.Field)
}

// EndiannessError is raised when the host byte order cannot be identified.
type EndiannessError struct {
	Observed uint32
}

func (e *EndiannessError) Error() string {
	return fmt.Sprintf("unknown host byte order: sentinel reinterpreted as %#08x", e.Observed)
}

// ToErrorDetail implements DetailedError.
func (e *EndiannessError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "endianness", Phase: string(PhaseUninitialized)}
}

// CompileError reports a malformed artifact.
type CompileError struct {
	Err    error
	Digest string
}

func (e *CompileError) Error() string {
	if e.Digest != "" {
		return fmt.Sprintf("compile artifact %s: %v", e.Digest, e.Err)
	}
	return fmt.Sprintf("compile artifact: %v", e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *CompileError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "compile", Code: e.Digest, Phase: string(PhaseUninitialized)}
}

// LinkError reports a guest whose imports or exports do not match the ABI.
type LinkError struct {
	Err    error
	Module string
	Name   string
}

func (e *LinkError) Error() string {
	switch {
	case e.Module != "" && e.Name != "":
		return fmt.Sprintf("link %s.%s: %v", e.Module, e.Name, e.Err)
	case e.Name != "":
		return fmt.Sprintf("link export %s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("link: %v", e.Err)
	}
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LinkError) ToErrorDetail() *entities.ErrorDetail {
	code := e.Name
	if e.Module != "" {
		code = e.Module + "." + e.Name
	}
	return &entities.ErrorDetail{Message: e.Error(), Type: "link", Code: code, Phase: string(PhaseCompiled)}
}

// CallbackError reports a failed target generator. The invocation that
// triggered the callback is aborted without a partial result.
type CallbackError struct {
	Err   error
	Calls int
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("target callback %d failed: %v", e.Calls, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *CallbackError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "callback", Phase: string(PhaseInstantiated)}
}

// DecodeError reports an ABI record that points outside guest memory or is
// otherwise inconsistent. It signals ABI corruption and is never retried.
type DecodeError struct {
	Err    error
	Phase  Phase
	Record string
	Offset uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at %#x: %v", e.Record, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "decode",
		Code:    e.Record,
		Phase:   string(e.Phase),
		Details: map[string]any{"offset": e.Offset},
	}
}

// TrapError reports a guest export that trapped or was interrupted by the
// invocation's time budget.
type TrapError struct {
	Err    error
	Export string
	Phase  Phase
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("guest %s trapped: %v", e.Export, e.Err)
}

func (e *TrapError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *TrapError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "trap", Code: e.Export, Phase: string(e.Phase)}
}

// StoreError wraps a failure of the persisted record store.
type StoreError struct {
	Err error
	Op  string
	ID  string
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *StoreError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("store", e.Error()).WithCode(e.Op)
}

// ValidationError reports a malformed administrative request.
type ValidationError struct {
	Err   error
	Field string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("validation", e.Error()).WithCode(e.Field)
}

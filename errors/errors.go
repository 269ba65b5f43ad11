package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in module processing the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // specifier to canonical name
	PhaseLoad     Phase = "load"     // canonical name to engine module
	PhaseDecode   Phase = "decode"   // bytecode container parsing
	PhaseHook     Phase = "hook"     // user resolve/load hooks
	PhaseRegistry Phase = "registry" // embedded artifact registry
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInvalidSignatureLength Kind = "invalid_signature_length"
	KindInvalidVersion         Kind = "invalid_version"
	KindInvalidCompressionFlag Kind = "invalid_compression_flag"
	KindDecompress             Kind = "decompress"
	KindInvalidData            Kind = "invalid_data"
	KindMalformedPackage       Kind = "malformed_package"
	KindSealed                 Kind = "sealed"
	KindUnsupported            Kind = "unsupported"
	KindInvalidInput           Kind = "invalid_input"
	KindNotInitialized         Kind = "not_initialized"
)

// Error is the structured error type used throughout the module loader
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Name      string
	Specifier string
	Base      string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" for ")
		b.WriteString(e.Name)
	}

	if e.Specifier != "" || e.Base != "" {
		b.WriteString(": ")
		b.WriteString(fmt.Sprintf("%q", e.Specifier))
		if e.Base != "" {
			b.WriteString(" from ")
			b.WriteString(fmt.Sprintf("%q", e.Base))
		}
	}

	if e.Detail != "" {
		if e.Specifier != "" || e.Base != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Name sets the canonical module name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Specifier sets the requested specifier
func (b *Builder) Specifier(s string) *Builder {
	b.err.Specifier = s
	return b
}

// Base sets the importing module
func (b *Builder) Base(s string) *Builder {
	b.err.Base = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for common error patterns

// Unresolved creates the reference-style error returned when every resolver
// declined a specifier.
func Unresolved(base, specifier string) *Error {
	return &Error{
		Phase:     PhaseResolve,
		Kind:      KindNotFound,
		Specifier: specifier,
		Base:      base,
		Detail:    "cannot find module",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Name:   name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Load creates a module loading error
func Load(name, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Name:   name,
		Detail: detail,
		Cause:  cause,
	}
}

// MalformedPackage creates an error for an unreadable or non-object package.json
func MalformedPackage(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMalformedPackage,
		Name:   path,
		Detail: "package.json is not a JSON object",
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotInitialized creates a not-initialized error for a missing collaborator
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsNotFound reports whether err is a not-found error of any phase.
func IsNotFound(err error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindNotFound {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

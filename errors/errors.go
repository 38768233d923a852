package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // class file to model
	PhaseEncode   Phase = "encode"   // model to class file
	PhaseAnalyze  Phase = "analyze"  // stack-effect oracle and height analysis
	PhaseBuffer   Phase = "buffer"   // delayed emission
	PhaseEnhance  Phase = "enhance"  // instruction enhancers
	PhaseMetadata Phase = "metadata" // per-method state/slot bookkeeping
	PhaseWeave    Phase = "weave"    // state machine construction
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	// KindUsage marks a violated caller precondition.
	KindUsage Kind = "usage"
	// KindInvariant marks internal bookkeeping that reached an impossible state.
	KindInvariant   Kind = "invariant"
	KindUnsupported Kind = "unsupported"
	KindInvalidData Kind = "invalid_data"
	KindOutOfBounds Kind = "out_of_bounds"
	KindNotFound    Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Method string
	Insn   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Method != "" {
		b.WriteString(" in ")
		b.WriteString(e.Method)
	}

	if e.Insn != "" {
		b.WriteString(" at ")
		b.WriteString(e.Insn)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Method sets the method the error belongs to
func (b *Builder) Method(m string) *Builder {
	b.err.Method = m
	return b
}

// Insn sets the rendered offending instruction
func (b *Builder) Insn(s string) *Builder {
	b.err.Insn = s
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
	return &b.err
}

// Convenience constructors for common error patterns

// Usage creates a precondition-violation fault
func Usage(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUsage,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Invariant creates an impossible-state fault
func Invariant(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsUsage reports whether err carries a usage fault anywhere in its chain
func IsUsage(err error) bool {
	return hasKind(err, KindUsage)
}

// IsInvariant reports whether err carries an invariant fault anywhere in its chain
func IsInvariant(err error) bool {
	return hasKind(err, KindInvariant)
}

func hasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
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

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, what string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s index %d out of bounds (length %d)", what, index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// InMethod attaches a method name to err when it is an *Error without one.
// Other errors are wrapped as weave-phase errors of the same kind as their cause.
func InMethod(err error, method string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Method == "" {
			e.Method = method
		}
		return e
	}
	return &Error{
		Phase:  PhaseWeave,
		Kind:   KindInvalidData,
		Method: method,
		Cause:  err,
	}
}

// SkippedMethod represents a single method whose transformation failed
type SkippedMethod struct {
	Cause error
	Owner string // internal name, e.g. "com/acme/Numbers"
	Name  string // method name plus descriptor, e.g. "next()Z"
}

// SkippedMethodsError is returned when one or more methods could not be woven
type SkippedMethodsError struct {
	Methods []SkippedMethod
}

// NewSkippedMethodsError creates an error from a list of "owner.name(desc)" keys
func NewSkippedMethodsError(keys []string, causes []error) *SkippedMethodsError {
	result := &SkippedMethodsError{
		Methods: make([]SkippedMethod, 0, len(keys)),
	}
	for i, key := range keys {
		owner, name := parseMethodKey(key)
		var cause error
		if i < len(causes) {
			cause = causes[i]
		}
		result.Methods = append(result.Methods, SkippedMethod{
			Owner: owner,
			Name:  name,
			Cause: cause,
		})
	}
	return result
}

func parseMethodKey(key string) (owner, name string) {
	paren := strings.IndexByte(key, '(')
	head := key
	if paren >= 0 {
		head = key[:paren]
	}
	dot := strings.LastIndexByte(head, '.')
	if dot < 0 {
		return "", key
	}
	return key[:dot], key[dot+1:]
}

// javaName turns an internal class name into its source form
func javaName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

func (e *SkippedMethodsError) Error() string {
	if len(e.Methods) == 0 {
		return "[weave] usage: no methods specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("skipped %d method(s):\n", len(e.Methods)))

	// Group by owner for cleaner output
	byOwner := make(map[string][]SkippedMethod)
	var order []string
	for _, m := range e.Methods {
		if _, exists := byOwner[m.Owner]; !exists {
			order = append(order, m.Owner)
		}
		byOwner[m.Owner] = append(byOwner[m.Owner], m)
	}

	for _, owner := range order {
		b.WriteString("\n  ")
		b.WriteString(javaName(owner))
		b.WriteString(":\n")
		for _, m := range byOwner[owner] {
			b.WriteString("    - ")
			b.WriteString(m.Name)
			if m.Cause != nil {
				b.WriteString(": ")
				b.WriteString(m.Cause.Error())
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *SkippedMethodsError) Is(target error) bool {
	_, ok := target.(*SkippedMethodsError)
	return ok
}

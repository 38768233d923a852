// Package errors provides structured error types for the jvm-yield module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Two kinds carry the engine's fault model:
//
//   - KindUsage: a caller violated a precondition (non-positive flush count,
//     inadmissible instruction inside a region, exhausted state counter).
//   - KindInvariant: internal bookkeeping detected an impossible state
//     (negative simulated stack height, an opcode without a known delta).
//
// Both abort the transformation of the current method. Nothing is retried: a
// method's transformation is deterministic, so re-running reproduces the fault.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuffer, errors.KindUsage).
//		Method("com/acme/Numbers.next()Z").
//		Insn("istore 3").
//		Detail("local store inside a region").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

// Package enhance rewrites single instructions whose meaning depends on
// type information the bytecode no longer carries.
//
// An Enhancer pairs a predicate with a rewrite. Run scans a method's
// instruction list once and hands each node to the first enhancer of the
// chain whose predicate matches; the enhancer edits the list in place and
// returns the node after which scanning resumes, so code it inserted is
// not scanned again.
//
// The default chain resolves the bastore/baload ambiguity (one opcode
// serves both byte[] and boolean[]) with a runtime component-type check,
// and narrows the other array stores with a checkcast right after the
// instruction that produced the array reference. Loads other than baload
// pass through unchanged.
package enhance

// Package stack is the operand-stack oracle for JVM instruction lists.
//
// Every value counts as one unit regardless of its width, so long and double
// occupy one unit and the dup2/pop2 family is counted in its single-value
// form (dup2 pushes two, pop2 pops two).
//
//	delta, err := stack.Change(insn)
//	anchor, err := stack.BackUntilStackSizedAt(list, store, -1, false, nil)
//	heights, err := stack.Analyze(list)
//
// Faults follow the errors package: a return asked for its delta is a usage
// fault; athrow, wide, unknown opcodes, underflow and mismatched joins are
// invariant faults.
package stack

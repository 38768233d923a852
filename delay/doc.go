// Package delay implements the delayed-emission buffer.
//
// A Buffer is an instruction filter. While closed it forwards every
// instruction unchanged. StartRegion opens a region (a mini-frame): each
// admissible instruction is queued with its push and pop counts and the
// region's simulated height moves by pushes minus pops. When the height
// returns to exactly zero the neutral hook runs; this is the point where a
// suspend/resume sequence can be spliced between two complete expressions.
//
//	buf := delay.New(out, delay.WithNeutralHook(func(b *delay.Buffer) error {
//	    return b.EmitAll(out)
//	}))
//	buf.StartRegion(0)
//	_ = buf.Visit(classfile.VarOp(classfile.OpALoad, 0))
//	_ = buf.Visit(classfile.InvokeOp(classfile.OpInvokeVirtual, owner, "yieldReturn", "(Ljava/lang/Object;)V"))
//	_ = buf.EndRegion()
//
// Control-flow-sensitive instructions (labels, jumps, local stores, type
// instructions, metadata) are usage faults inside a region. A height below
// zero is an invariant fault and the offending instruction is dropped.
//
// A Buffer belongs to one method transformation and is not safe for
// concurrent use.
package delay

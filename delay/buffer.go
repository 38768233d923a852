package delay

import (
	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/stack"
)

// Hook runs each time the region height returns to zero after an
// instruction is buffered. It may flush the queue with Emit or EmitAll.
type Hook func(b *Buffer) error

// Option configures a Buffer.
type Option func(*Buffer)

// WithNeutralHook sets the stack-neutral hook.
func WithNeutralHook(h Hook) Option {
	return func(b *Buffer) { b.hook = h }
}

// WithStrictClose makes EndRegion fail unless the height is back at zero.
func WithStrictClose() Option {
	return func(b *Buffer) { b.strict = true }
}

// emitter is one buffered instruction with its stack counts.
type emitter struct {
	insn   classfile.Insn
	pops   int
	pushes int
}

// region is the mini-frame of an open region.
type region struct {
	queue  []emitter
	height int
}

// Buffer sits in front of a Visitor. While a region is open, admissible
// instructions are queued instead of forwarded so code can be spliced in at
// the points where the queued expression leaves the stack empty.
type Buffer struct {
	next   classfile.Visitor
	hook   Hook
	cur    *region
	strict bool
}

var _ classfile.Visitor = (*Buffer)(nil)

// New creates a closed buffer forwarding to next.
func New(next classfile.Visitor, opts ...Option) *Buffer {
	b := &Buffer{next: next}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// StartRegion opens a region with the given initial height. It does nothing
// when a region is already open.
func (b *Buffer) StartRegion(initial int) {
	if b.cur == nil {
		b.cur = &region{height: initial}
	}
}

// InsideRegion reports whether a region is open.
func (b *Buffer) InsideRegion() bool {
	return b.cur != nil
}

// Height returns the simulated height of the open region, 0 when closed.
func (b *Buffer) Height() int {
	if b.cur == nil {
		return 0
	}
	return b.cur.height
}

// Pending returns the number of queued instructions.
func (b *Buffer) Pending() int {
	if b.cur == nil {
		return 0
	}
	return len(b.cur.queue)
}

// EndRegion closes the open region. Queued instructions would be lost, so
// closing with a non-empty queue is a usage fault; so is a nonzero height
// under WithStrictClose.
func (b *Buffer) EndRegion() error {
	if b.cur == nil {
		return nil
	}
	if n := len(b.cur.queue); n > 0 {
		return errors.Usage(errors.PhaseBuffer, "closing region with %d queued instructions", n)
	}
	if b.strict && b.cur.height != 0 {
		return errors.Usage(errors.PhaseBuffer, "closing region at height %d", b.cur.height)
	}
	b.cur = nil
	return nil
}

// Visit forwards insn when closed and queues it when a region is open.
func (b *Buffer) Visit(insn classfile.Insn) error {
	if b.cur == nil {
		return b.next.Visit(insn)
	}
	if !Admissible(insn) {
		return errors.New(errors.PhaseBuffer, errors.KindUsage).
			Insn(insn.String()).
			Detail("%s is not allowed inside a region", insn.Kind()).
			Build()
	}
	pops, pushes, err := stack.Effect(insn)
	if err != nil {
		return err
	}
	height := b.cur.height + pushes - pops
	if height < 0 {
		return errors.New(errors.PhaseBuffer, errors.KindInvariant).
			Insn(insn.String()).
			Value(height).
			Detail("region height would drop to %d", height).
			Build()
	}
	b.cur.queue = append(b.cur.queue, emitter{insn: insn, pops: pops, pushes: pushes})
	b.cur.height = height
	if height == 0 && b.hook != nil {
		return b.hook(b)
	}
	return nil
}

// Emit writes the n oldest queued instructions to out in order.
func (b *Buffer) Emit(out classfile.Visitor, n int) error {
	if n <= 0 {
		return errors.New(errors.PhaseBuffer, errors.KindUsage).
			Value(n).
			Detail("emit count %d <= 0", n).
			Build()
	}
	if n > b.Pending() {
		return errors.New(errors.PhaseBuffer, errors.KindUsage).
			Value(n).
			Detail("emit count %d exceeds %d queued", n, b.Pending()).
			Build()
	}
	for ; n > 0; n-- {
		e := b.cur.queue[0]
		b.cur.queue = b.cur.queue[1:]
		if err := out.Visit(e.insn); err != nil {
			return err
		}
	}
	return nil
}

// EmitAll flushes the whole queue to out. An empty queue is not an error.
func (b *Buffer) EmitAll(out classfile.Visitor) error {
	if n := b.Pending(); n > 0 {
		return b.Emit(out, n)
	}
	return nil
}

// Peek returns the queued instructions, oldest first, without flushing.
func (b *Buffer) Peek() []classfile.Insn {
	if b.cur == nil {
		return nil
	}
	out := make([]classfile.Insn, len(b.cur.queue))
	for i, e := range b.cur.queue {
		out[i] = e.insn
	}
	return out
}

// Admissible reports whether insn may be queued inside a region: member
// calls, field access, constants, basic stack and arithmetic instructions,
// array element access, local loads and tableswitch.
func Admissible(insn classfile.Insn) bool {
	op := insn.Opcode
	switch insn.Kind() {
	case classfile.KindMethod, classfile.KindInvokeDynamic, classfile.KindField,
		classfile.KindLdc, classfile.KindTableSwitch:
		return true
	case classfile.KindInt:
		return op == classfile.OpBIPush || op == classfile.OpSIPush
	case classfile.KindVar:
		return op.IsLocalLoad()
	case classfile.KindInsn:
		if op.IsLocalLoad() {
			return true
		}
		if op.IsLocalStore() || op.IsReturn() {
			return false
		}
		switch op {
		case classfile.OpAThrow, classfile.OpWide,
			classfile.OpMonitorEnter, classfile.OpMonitorExit:
			return false
		}
		return op.Valid()
	}
	return false
}

package weave

import (
	"go.uber.org/zap"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/delay"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/meta"
	"github.com/wippyai/jvm-yield/stack"
)

type callKind int

const (
	callPlain callKind = iota
	callYield
	callBreak
)

// Builder turns a generator body into a resumable state machine.
//
// The body is streamed through a delay.Buffer into a fresh list. Regions
// open at admissible instructions that start on an empty stack and close at
// the first inadmissible one. Every yield call must complete an expression
// statement; right after it the builder splices a suspend point:
//
//	aload_0; <load slot>; putfield <slot field>     for every captured slot
//	aload_0; <state id>; putfield <state field>
//	iconst_1; ireturn
//	Lresume:
//	aload_0; getfield <slot field>; <store slot>     for every captured slot
//
// Break calls are followed by iconst_0; ireturn. The head of the method
// initializes the captured locals and jumps to the resume label of the
// recorded state with a tableswitch, falling through to the body for any
// other value.
type Builder struct {
	cfg        Config
	src        *classfile.InsnList
	meta       *meta.Container
	out        *classfile.InsnList
	buf        *delay.Buffer
	heights    *stack.Heights
	boundaries map[classfile.Ref]bool
	owner      string
	method     string
	state      string
	paramEnd   uint16
}

// NewBuilder prepares to weave the body list of method owner.name+desc.
// m must allocate its labels from list, as the container from Discover does.
func NewBuilder(owner, name, desc string, list *classfile.InsnList, m *meta.Container, cfg Config) (*Builder, error) {
	params, err := classfile.ParamSlots(desc)
	if err != nil {
		return nil, errors.New(errors.PhaseWeave, errors.KindInvalidData).
			Method(name + desc).
			Cause(err).
			Build()
	}
	return &Builder{
		cfg:        cfg.withDefaults(),
		src:        list,
		meta:       m,
		owner:      owner,
		method:     name + desc,
		state:      cfg.StateFieldName(name),
		paramEnd:   uint16(params + 1),
		boundaries: make(map[classfile.Ref]bool),
	}, nil
}

// Boundaries returns the resume labels placed in the woven list. Backward
// scans must not cross them.
func (b *Builder) Boundaries() map[classfile.Ref]bool { return b.boundaries }

// Build produces the woven list. The source list is left unchanged.
func (b *Builder) Build() (*classfile.InsnList, error) {
	heights, err := stack.Analyze(b.src)
	if err != nil {
		return nil, errors.InMethod(err, b.method)
	}
	b.heights = heights

	// Every label the head needs is allocated from the source list before
	// forking, so labels allocated later on the fork cannot collide.
	start := b.src.NewLabel()
	targets := make([]classfile.Label, b.meta.Count())
	for i := range targets {
		if targets[i], err = b.meta.StateLabel(i + 1); err != nil {
			return nil, errors.InMethod(err, b.method)
		}
	}
	b.out = b.src.Fork()

	var opts []delay.Option
	opts = append(opts, delay.WithNeutralHook(func(buf *delay.Buffer) error {
		return buf.EmitAll(b.out)
	}))
	if b.cfg.StrictClose {
		opts = append(opts, delay.WithStrictClose())
	}
	b.buf = delay.New(b.out, opts...)

	b.head(start, targets)
	for r := b.src.First(); r != classfile.NoRef; r = b.src.Next(r) {
		if err := b.visit(r); err != nil {
			return nil, errors.InMethod(err, b.method)
		}
	}
	if err := b.close(); err != nil {
		return nil, errors.InMethod(err, b.method)
	}
	if b.meta.Remaining() != 0 {
		return nil, errors.New(errors.PhaseWeave, errors.KindInvariant).
			Method(b.method).
			Value(b.meta.Remaining()).
			Detail("%d of %d yield calls were not woven", b.meta.Remaining(), b.meta.Count()).
			Build()
	}
	return b.out, nil
}

func (b *Builder) head(start classfile.Label, targets []classfile.Label) {
	for _, s := range b.meta.Slots() {
		if s.Index < b.paramEnd {
			continue
		}
		b.out.Append(zeroValue(s.Desc))
		b.out.Append(classfile.VarOp(s.StoreOpcode(), s.Index))
	}
	if len(targets) > 0 {
		b.out.Append(classfile.VarOp(classfile.OpALoad, 0))
		b.out.Append(classfile.FieldOp(classfile.OpGetField, b.owner, b.state, "I"))
		b.out.Append(classfile.TableSwitchOp(1, start, targets...))
	}
	b.out.Append(classfile.LabelOp(start))
}

func (b *Builder) close() error {
	if err := b.buf.EmitAll(b.out); err != nil {
		return err
	}
	return b.buf.EndRegion()
}

func (b *Builder) classify(insn classfile.Insn) callKind {
	switch {
	case b.cfg.Yield.Match(insn):
		return callYield
	case b.cfg.Break.Match(insn):
		return callBreak
	}
	return callPlain
}

func (b *Builder) visit(r classfile.Ref) error {
	insn := b.src.At(r)
	height, reachable := b.heights.At(r)
	admissible := delay.Admissible(insn)

	if b.buf.InsideRegion() && !admissible {
		if err := b.close(); err != nil {
			return err
		}
	}

	kind := b.classify(insn)
	if kind != callPlain && reachable {
		delta, err := stack.Change(insn)
		if err != nil {
			return err
		}
		if after := height + delta; after != 0 {
			return errors.New(errors.PhaseWeave, errors.KindUsage).
				Insn(insn.String()).
				Value(after).
				Detail("call leaves %d values on the stack; it must be a statement of its own", after).
				Build()
		}
	}

	if !b.buf.InsideRegion() && admissible && reachable && height == 0 {
		b.buf.StartRegion(0)
	}
	if err := b.buf.Visit(insn); err != nil {
		return err
	}

	if !reachable {
		return nil
	}
	switch kind {
	case callYield:
		return b.suspend()
	case callBreak:
		b.out.Append(classfile.Op(classfile.OpIConst0))
		b.out.Append(classfile.Op(classfile.OpIReturn))
	}
	return nil
}

// suspend splices a save, return and restore sequence at the current
// stack-neutral point. The hook has already flushed the region.
func (b *Builder) suspend() error {
	if n := b.buf.Pending(); n != 0 {
		return errors.Invariant(errors.PhaseWeave, "suspending with %d buffered instructions", n)
	}
	id, err := b.meta.TakeState()
	if err != nil {
		return err
	}
	resume, err := b.meta.StateLabel(id)
	if err != nil {
		return err
	}

	slots := b.meta.Slots()
	for _, s := range slots {
		b.out.Append(classfile.VarOp(classfile.OpALoad, 0))
		b.out.Append(classfile.VarOp(s.LoadOpcode(), s.Index))
		b.out.Append(classfile.FieldOp(classfile.OpPutField, b.owner, s.Name, s.Desc))
	}
	b.out.Append(classfile.VarOp(classfile.OpALoad, 0))
	b.out.Append(pushInt(int32(id)))
	b.out.Append(classfile.FieldOp(classfile.OpPutField, b.owner, b.state, "I"))
	b.out.Append(classfile.Op(classfile.OpIConst1))
	b.out.Append(classfile.Op(classfile.OpIReturn))

	b.boundaries[b.out.Append(classfile.LabelOp(resume))] = true
	for _, s := range slots {
		b.out.Append(classfile.VarOp(classfile.OpALoad, 0))
		b.out.Append(classfile.FieldOp(classfile.OpGetField, b.owner, s.Name, s.Desc))
		b.out.Append(classfile.VarOp(s.StoreOpcode(), s.Index))
	}

	Logger().Debug("suspend point",
		zap.String("class", b.owner),
		zap.String("method", b.method),
		zap.Int("state", id),
		zap.Int("slots", len(slots)))
	return nil
}

func zeroValue(desc string) classfile.Insn {
	switch classfile.LoadOpcode(desc) {
	case classfile.OpLLoad:
		return classfile.Op(classfile.OpLConst0)
	case classfile.OpFLoad:
		return classfile.Op(classfile.OpFConst0)
	case classfile.OpDLoad:
		return classfile.Op(classfile.OpDConst0)
	case classfile.OpALoad:
		return classfile.Op(classfile.OpAConstNull)
	}
	return classfile.Op(classfile.OpIConst0)
}

func pushInt(v int32) classfile.Insn {
	switch {
	case v >= -1 && v <= 5:
		return classfile.Op(classfile.OpIConst0 + classfile.Opcode(v))
	case v >= -128 && v <= 127:
		return classfile.IntOp(classfile.OpBIPush, v)
	case v >= -32768 && v <= 32767:
		return classfile.IntOp(classfile.OpSIPush, v)
	}
	return classfile.LdcOp(v)
}

package weave

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/enhance"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/meta"
	"github.com/wippyai/jvm-yield/stack"
)

// Result describes a woven method.
type Result struct {
	Method     string
	StateField string
	Slots      []meta.Slot
	States   int
	MaxStack int
}

// Fields returns the fields the owning class must declare for the woven
// method: the state field followed by one field per captured slot.
func (r *Result) Fields() []classfile.Field {
	fields := []classfile.Field{{Name: r.StateField, Desc: "I", Access: classfile.AccPrivate}}
	for _, s := range r.Slots {
		fields = append(fields, classfile.Field{Name: s.Name, Desc: s.Desc, Access: classfile.AccPrivate})
	}
	return fields
}

// Weave rewrites the generator method m of class into a state machine.
//
// m must be a non-static method returning boolean. The woven method returns
// true after each yield and false once the body breaks or finishes. The work
// happens on a copy of the code: on any error m and class are unchanged.
// On success m gets the new code and stack size, its uninterpreted code
// attributes (StackMapTable among them) are dropped, and the state and slot
// fields are added to class. Every generator owns its fields, named after
// the method.
//
// Woven code carries no stack map frames, so a class above version 50 is
// lowered to 50, where the JVM verifies by type inference. A class using
// constructs that need a later version (invokedynamic, nest attributes,
// interface method bodies) is unsupported.
//
// A method without yield calls is left untouched and reports zero states.
func Weave(class *classfile.Class, m *classfile.Method, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	key := m.Key()
	if err := check(m); err != nil {
		return nil, errors.InMethod(err, key)
	}

	work := m.Code.Clone()
	if err := rejectSubroutines(work); err != nil {
		return nil, errors.InMethod(err, key)
	}
	container, err := Discover(work, m.Name, m.Desc, cfg)
	if err != nil {
		return nil, errors.InMethod(err, key)
	}
	res := &Result{
		Method:     key,
		StateField: cfg.StateFieldName(m.Name),
		States:     container.Count(),
		Slots:      container.Slots(),
	}
	if res.States == 0 {
		return res, nil
	}
	if class.Major >= classfile.MajorJava7 {
		if features := class.Post6Features(); len(features) > 0 {
			return nil, errors.New(errors.PhaseWeave, errors.KindUnsupported).
				Method(key).
				Value(int(class.Major)).
				Detail("class version %d needs stack map frames: %s", class.Major, strings.Join(features, ", ")).
				Build()
		}
	}

	b, err := NewBuilder(class.Name, m.Name, m.Desc, work, container, cfg)
	if err != nil {
		return nil, err
	}
	out, err := b.Build()
	if err != nil {
		return nil, err
	}

	ctx := &enhance.Context{
		List:       out,
		Boundaries: b.Boundaries(),
		Meta:       container,
		Logger:     Logger(),
		Class:      class.Name,
		Method:     key,
	}
	if err := enhance.Run(ctx, cfg.Enhancers); err != nil {
		return nil, err
	}

	heights, err := stack.Analyze(out)
	if err != nil {
		return nil, errors.InMethod(err, key)
	}
	if err := out.Resolve(); err != nil {
		return nil, errors.InMethod(err, key)
	}
	if err := container.CheckBound(out); err != nil {
		return nil, errors.InMethod(err, key)
	}

	// category-2 values count once in the analysis
	maxStack := 2 * heights.Max()
	if int(m.MaxStack) > maxStack {
		maxStack = int(m.MaxStack)
	}
	if maxStack > 0xFFFF {
		return nil, errors.New(errors.PhaseWeave, errors.KindOutOfBounds).
			Method(key).
			Value(maxStack).
			Detail("max stack %d does not fit u2", maxStack).
			Build()
	}
	res.MaxStack = maxStack

	// an existing field means another generator (an overload) or the
	// class itself already claimed the name
	fields := res.Fields()
	for _, f := range fields {
		if existing := class.Field(f.Name); existing != nil {
			return nil, errors.New(errors.PhaseWeave, errors.KindUsage).
				Method(key).
				Value(f.Name).
				Detail("field %s %s already declared", f.Name, existing.Desc).
				Build()
		}
	}

	m.Code = out
	m.MaxStack = uint16(maxStack)
	m.CodeAttributes = nil
	for _, f := range fields {
		class.AddField(f.Access, f.Name, f.Desc)
	}
	if class.Major > classfile.MajorJava6 {
		Logger().Debug("lowering class version",
			zap.String("class", class.Name),
			zap.Uint16("from", class.Major))
		class.LowerToJava6()
	}

	Logger().Info("woven method",
		zap.String("class", class.Name),
		zap.String("method", key),
		zap.Int("states", res.States),
		zap.Int("slots", len(res.Slots)),
		zap.Int("max_stack", maxStack))
	return res, nil
}

func check(m *classfile.Method) error {
	if m.Code == nil {
		return errors.Usage(errors.PhaseWeave, "method has no code")
	}
	if m.IsStatic() {
		return errors.Unsupported(errors.PhaseWeave, "static generator methods")
	}
	mt, err := classfile.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return errors.New(errors.PhaseWeave, errors.KindInvalidData).
			Value(m.Desc).
			Cause(err).
			Build()
	}
	if mt.Return != "Z" {
		return errors.New(errors.PhaseWeave, errors.KindUsage).
			Value(m.Desc).
			Detail("generator method must return boolean, returns %s", mt.Return).
			Build()
	}
	return nil
}

func rejectSubroutines(list *classfile.InsnList) error {
	for r := list.First(); r != classfile.NoRef; r = list.Next(r) {
		switch op := list.At(r).Opcode; op {
		case classfile.OpJsr, classfile.OpJsrW, classfile.OpRet:
			return errors.Unsupported(errors.PhaseWeave, op.String()+" subroutines")
		}
	}
	return nil
}

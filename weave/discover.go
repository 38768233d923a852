package weave

import (
	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/meta"
)

// Discover counts the yield calls of an instance method body and collects
// the locals it writes. Slot 0 (this) is never captured. Parameter slots are
// captured only when the body assigns them. Reference slots take their
// descriptor from the local variable table when it names a single type,
// java/lang/Object otherwise.
//
// Slots are named after method (see Config.SlotFieldName) so generators of
// one class never share fields. The returned container allocates its
// labels from list.
func Discover(list *classfile.InsnList, method, desc string, cfg Config) (*meta.Container, error) {
	cfg = cfg.withDefaults()
	if _, err := classfile.ParseMethodDescriptor(desc); err != nil {
		return nil, errors.New(errors.PhaseWeave, errors.KindInvalidData).
			Value(desc).
			Cause(err).
			Build()
	}

	descs := make(map[uint16]string)
	declared := make(map[uint16]string)
	yields := 0
	var conflict error

	for r := list.First(); r != classfile.NoRef; r = list.Next(r) {
		insn := list.At(r)
		op := insn.Opcode
		switch {
		case cfg.Yield.Match(insn):
			yields++
			continue
		case op == classfile.OpLocalVariable:
			lv := insn.Imm.(classfile.LocalVariableImm)
			if prev, ok := declared[lv.Index]; ok && prev != lv.Desc {
				declared[lv.Index] = ""
			} else if !ok {
				declared[lv.Index] = lv.Desc
			}
			continue
		case op == classfile.OpIInc:
		case op.IsLocalStore():
		default:
			continue
		}

		idx, _ := insn.VarIndex()
		if idx == 0 {
			continue
		}
		d := classfile.DescForLoad(op)
		if op == classfile.OpIInc {
			d = "I"
		}
		if prev, ok := descs[idx]; ok && classfile.StoreOpcode(prev) != classfile.StoreOpcode(d) {
			if conflict == nil {
				conflict = errors.New(errors.PhaseWeave, errors.KindUnsupported).
					Insn(insn.String()).
					Value(int(idx)).
					Detail("local %d holds both %s and %s", idx, prev, d).
					Build()
			}
			continue
		}
		descs[idx] = d
	}

	// a body that never yields needs no slots
	if conflict != nil && yields > 0 {
		return nil, conflict
	}

	slots := make([]meta.Slot, 0, len(descs))
	for idx, d := range descs {
		if lv := declared[idx]; lv != "" && classfile.IsReference(d) && classfile.IsReference(lv) {
			d = lv
		}
		slots = append(slots, meta.Slot{
			Index: idx,
			Desc:  d,
			Name:  cfg.SlotFieldName(method, idx),
		})
	}
	return meta.New(list, yields, slots...), nil
}

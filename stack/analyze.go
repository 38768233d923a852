package stack

import (
	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

// Heights holds the entry stack height of every reachable node.
type Heights struct {
	in  map[classfile.Ref]int
	max int
}

// At returns the height on entry to ref; ok is false for unreachable nodes.
func (h *Heights) At(ref classfile.Ref) (height int, ok bool) {
	height, ok = h.in[ref]
	return
}

// Max returns the deepest stack observed, in value units.
func (h *Heights) Max() int { return h.max }

// Len returns the number of reachable nodes.
func (h *Heights) Len() int { return len(h.in) }

// Analyze propagates stack heights along every control-flow path of list.
// The method entry and exception handlers start at heights 0 and 1.
// A path reaching a node with a different height than another path, a
// negative height, or a path falling off the end is an invariant fault.
func Analyze(list *classfile.InsnList) (*Heights, error) {
	h := &Heights{in: make(map[classfile.Ref]int, list.Len())}
	var work []classfile.Ref

	reach := func(from classfile.Ref, to classfile.Ref, height int) error {
		if to == classfile.NoRef {
			return errors.New(errors.PhaseAnalyze, errors.KindInvariant).
				Insn(list.At(from).String()).
				Detail("control falls off the end of the code").
				Build()
		}
		if prev, seen := h.in[to]; seen {
			if prev != height {
				return errors.New(errors.PhaseAnalyze, errors.KindInvariant).
					Insn(list.At(to).String()).
					Value(height).
					Detail("stack height %d meets height %d", height, prev).
					Build()
			}
			return nil
		}
		h.in[to] = height
		if height > h.max {
			h.max = height
		}
		work = append(work, to)
		return nil
	}

	target := func(from classfile.Ref, lbl classfile.Label) (classfile.Ref, error) {
		r := list.Bound(lbl)
		if r == classfile.NoRef {
			return r, errors.New(errors.PhaseAnalyze, errors.KindUsage).
				Insn(list.At(from).String()).
				Detail("label %s is not bound", lbl).
				Build()
		}
		return r, nil
	}

	if list.First() == classfile.NoRef {
		return h, nil
	}
	h.in[list.First()] = 0
	work = append(work, list.First())
	for r := list.First(); r != classfile.NoRef; r = list.Next(r) {
		insn := list.At(r)
		if insn.Opcode != classfile.OpTryCatch {
			continue
		}
		handler, err := target(r, insn.Imm.(classfile.TryCatchImm).Handler)
		if err != nil {
			return nil, err
		}
		if err := reach(r, handler, 1); err != nil {
			return nil, err
		}
	}

	for len(work) > 0 {
		r := work[len(work)-1]
		work = work[:len(work)-1]
		insn := list.At(r)
		op := insn.Opcode
		height := h.in[r]

		switch {
		case op.IsReturn():
			need := 1
			if op == classfile.OpReturn {
				need = 0
			}
			if height < need {
				return nil, underflow(insn, height)
			}
			continue
		case op == classfile.OpAThrow:
			if height < 1 {
				return nil, underflow(insn, height)
			}
			continue
		}

		pops, pushes, err := Effect(insn)
		if err != nil {
			return nil, err
		}
		if height < pops {
			return nil, underflow(insn, height)
		}
		out := height - pops + pushes
		if out > h.max {
			h.max = out
		}

		switch imm := insn.Imm.(type) {
		case classfile.JumpImm:
			t, err := target(r, imm.Target)
			if err != nil {
				return nil, err
			}
			if err := reach(r, t, out); err != nil {
				return nil, err
			}
			switch op {
			case classfile.OpGoto, classfile.OpGotoW:
			case classfile.OpJsr, classfile.OpJsrW:
				// the subroutine consumes the return address before ret
				if err := reach(r, list.Next(r), height); err != nil {
					return nil, err
				}
			default:
				if err := reach(r, list.Next(r), out); err != nil {
					return nil, err
				}
			}
		case classfile.TableSwitchImm:
			for _, lbl := range append([]classfile.Label{imm.Default}, imm.Targets...) {
				t, err := target(r, lbl)
				if err != nil {
					return nil, err
				}
				if err := reach(r, t, out); err != nil {
					return nil, err
				}
			}
		case classfile.LookupSwitchImm:
			for _, lbl := range append([]classfile.Label{imm.Default}, imm.Targets...) {
				t, err := target(r, lbl)
				if err != nil {
					return nil, err
				}
				if err := reach(r, t, out); err != nil {
					return nil, err
				}
			}
		default:
			if op == classfile.OpRet {
				continue
			}
			if err := reach(r, list.Next(r), out); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

// Verify checks that list is stack-consistent.
func Verify(list *classfile.InsnList) error {
	_, err := Analyze(list)
	return err
}

func underflow(insn classfile.Insn, height int) error {
	return errors.New(errors.PhaseAnalyze, errors.KindInvariant).
		Insn(insn.String()).
		Value(height).
		Detail("stack underflow at height %d", height).
		Build()
}

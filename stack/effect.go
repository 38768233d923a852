package stack

import (
	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

// effect is one row of the opcode table. Every value counts as one unit,
// long and double included.
type effect struct {
	pops   int8
	pushes int8
	known  bool
}

// table holds the fixed effects of every opcode whose effect does not depend
// on its operand. Calls, multianewarray, returns, athrow and wide are absent.
var table = buildTable()

func buildTable() [256]effect {
	var t [256]effect
	set := func(pops, pushes int8, ops ...classfile.Opcode) {
		for _, op := range ops {
			t[op] = effect{pops: pops, pushes: pushes, known: true}
		}
	}
	span := func(pops, pushes int8, from, to classfile.Opcode) {
		for op := from; op <= to; op++ {
			set(pops, pushes, op)
		}
	}

	set(0, 0, classfile.OpNop)

	// constants
	span(0, 1, classfile.OpAConstNull, classfile.OpDConst1)
	set(0, 1, classfile.OpBIPush, classfile.OpSIPush)
	set(0, 1, classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W)

	// locals
	span(0, 1, classfile.OpILoad, classfile.OpALoad3)
	span(1, 0, classfile.OpIStore, classfile.OpAStore3)
	set(0, 0, classfile.OpIInc)

	// arrays
	span(2, 1, classfile.OpIALoad, classfile.OpSALoad)
	span(3, 0, classfile.OpIAStore, classfile.OpSAStore)
	set(1, 1, classfile.OpArrayLength)

	// stack manipulation
	set(1, 0, classfile.OpPop)
	set(2, 0, classfile.OpPop2)
	set(1, 2, classfile.OpDup)
	set(2, 3, classfile.OpDupX1)
	set(3, 4, classfile.OpDupX2)
	set(2, 4, classfile.OpDup2)
	set(3, 5, classfile.OpDup2X1)
	set(4, 6, classfile.OpDup2X2)
	set(2, 2, classfile.OpSwap)

	// arithmetic, shifts and bitwise
	span(2, 1, classfile.OpIAdd, classfile.OpDRem)
	span(1, 1, classfile.OpINeg, classfile.OpDNeg)
	span(2, 1, classfile.OpIShl, classfile.OpLXor)

	// conversions and comparisons
	span(1, 1, classfile.OpI2L, classfile.OpI2S)
	span(2, 1, classfile.OpLCmp, classfile.OpDCmpG)

	// control flow
	span(1, 0, classfile.OpIfEq, classfile.OpIfLe)
	span(2, 0, classfile.OpIfICmpEq, classfile.OpIfACmpNe)
	set(1, 0, classfile.OpIfNull, classfile.OpIfNonNull)
	set(0, 0, classfile.OpGoto, classfile.OpGotoW, classfile.OpRet)
	set(0, 1, classfile.OpJsr, classfile.OpJsrW)
	set(1, 0, classfile.OpTableSwitch, classfile.OpLookupSwitch)

	// fields
	set(0, 1, classfile.OpGetStatic)
	set(1, 0, classfile.OpPutStatic)
	set(1, 1, classfile.OpGetField)
	set(2, 0, classfile.OpPutField)

	// objects
	set(0, 1, classfile.OpNew)
	set(1, 1, classfile.OpNewArray, classfile.OpANewArray)
	set(1, 1, classfile.OpCheckCast, classfile.OpInstanceOf)
	set(1, 0, classfile.OpMonitorEnter, classfile.OpMonitorExit)

	return t
}

// Effect returns how many values insn pops and pushes.
// Pseudo nodes (labels, line numbers, frames, table entries) have no effect.
// Returns are usage faults: nothing may follow them on the stack.
// athrow, wide and unknown opcodes are invariant faults.
func Effect(insn classfile.Insn) (pops, pushes int, err error) {
	op := insn.Opcode
	if op.IsPseudo() {
		return 0, 0, nil
	}
	if op.IsReturn() {
		return 0, 0, errors.New(errors.PhaseAnalyze, errors.KindUsage).
			Insn(insn.String()).
			Detail("return has no stack delta").
			Build()
	}

	switch op {
	case classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeInterface,
		classfile.OpInvokeStatic, classfile.OpInvokeDynamic:
		return invokeEffect(insn)
	case classfile.OpMultiANewArray:
		imm, ok := insn.Imm.(classfile.MultiANewArrayImm)
		if !ok {
			return 0, 0, badOperand(insn)
		}
		return int(imm.Dims), 1, nil
	}

	if op >= 0 && int(op) < len(table) && table[op].known {
		e := table[op]
		return int(e.pops), int(e.pushes), nil
	}
	return 0, 0, errors.New(errors.PhaseAnalyze, errors.KindInvariant).
		Insn(insn.String()).
		Value(int(op)).
		Detail("no stack delta for %s", op).
		Build()
}

// Change returns the net stack delta of insn.
func Change(insn classfile.Insn) (int, error) {
	pops, pushes, err := Effect(insn)
	if err != nil {
		return 0, err
	}
	return pushes - pops, nil
}

func invokeEffect(insn classfile.Insn) (pops, pushes int, err error) {
	_, _, desc, ok := insn.Member()
	if !ok {
		return 0, 0, badOperand(insn)
	}
	mt, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseAnalyze, errors.KindInvalidData).
			Insn(insn.String()).
			Cause(err).
			Build()
	}
	pops = len(mt.Params)
	if insn.Opcode != classfile.OpInvokeStatic && insn.Opcode != classfile.OpInvokeDynamic {
		pops++ // receiver
	}
	if mt.Return != "V" {
		pushes = 1
	}
	return pops, pushes, nil
}

func badOperand(insn classfile.Insn) error {
	return errors.New(errors.PhaseAnalyze, errors.KindInvariant).
		Insn(insn.String()).
		Detail("operand %T does not match %s", insn.Imm, insn.Opcode).
		Build()
}

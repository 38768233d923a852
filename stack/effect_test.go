package stack

import (
	"testing"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

func TestEffect_Table(t *testing.T) {
	tests := []struct {
		insn   classfile.Insn
		pops   int
		pushes int
	}{
		{classfile.Op(classfile.OpNop), 0, 0},
		{classfile.Op(classfile.OpAConstNull), 0, 1},
		{classfile.Op(classfile.OpLConst1), 0, 1},
		{classfile.IntOp(classfile.OpBIPush, 3), 0, 1},
		{classfile.LdcOp(2.5), 0, 1},
		{classfile.VarOp(classfile.OpDLoad, 4), 0, 1},
		{classfile.Op(classfile.OpALoad0), 0, 1},
		{classfile.VarOp(classfile.OpAStore, 2), 1, 0},
		{classfile.IincOp(1, 1), 0, 0},
		{classfile.Op(classfile.OpIALoad), 2, 1},
		{classfile.Op(classfile.OpBAStore), 3, 0},
		{classfile.Op(classfile.OpPop), 1, 0},
		{classfile.Op(classfile.OpPop2), 2, 0},
		{classfile.Op(classfile.OpDup), 1, 2},
		{classfile.Op(classfile.OpDupX1), 2, 3},
		{classfile.Op(classfile.OpDupX2), 3, 4},
		{classfile.Op(classfile.OpDup2), 2, 4},
		{classfile.Op(classfile.OpSwap), 2, 2},
		{classfile.Op(classfile.OpLAdd), 2, 1},
		{classfile.Op(classfile.OpDNeg), 1, 1},
		{classfile.Op(classfile.OpLUShr), 2, 1},
		{classfile.Op(classfile.OpI2L), 1, 1},
		{classfile.Op(classfile.OpFCmpG), 2, 1},
		{classfile.JumpOp(classfile.OpIfNe, 0), 1, 0},
		{classfile.JumpOp(classfile.OpIfACmpEq, 0), 2, 0},
		{classfile.JumpOp(classfile.OpIfNonNull, 0), 1, 0},
		{classfile.JumpOp(classfile.OpGoto, 0), 0, 0},
		{classfile.JumpOp(classfile.OpJsr, 0), 0, 1},
		{classfile.JumpOp(classfile.OpJsrW, 0), 0, 1},
		{classfile.TableSwitchOp(0, 0, 1), 1, 0},
		{classfile.FieldOp(classfile.OpGetStatic, "A", "x", "J"), 0, 1},
		{classfile.FieldOp(classfile.OpPutStatic, "A", "x", "J"), 1, 0},
		{classfile.FieldOp(classfile.OpGetField, "A", "x", "I"), 1, 1},
		{classfile.FieldOp(classfile.OpPutField, "A", "x", "I"), 2, 0},
		{classfile.TypeOp(classfile.OpNew, "A"), 0, 1},
		{classfile.IntOp(classfile.OpNewArray, classfile.TInt), 1, 1},
		{classfile.TypeOp(classfile.OpCheckCast, "[I"), 1, 1},
		{classfile.Op(classfile.OpArrayLength), 1, 1},
		{classfile.Op(classfile.OpMonitorExit), 1, 0},
		{classfile.MultiANewArrayOp("[[[I", 3), 3, 1},
		{classfile.LabelOp(0), 0, 0},
		{classfile.LineOp(3, 0), 0, 0},
		{classfile.FrameOp(nil), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.insn.String(), func(t *testing.T) {
			pops, pushes, err := Effect(tt.insn)
			if err != nil {
				t.Fatalf("Effect: %v", err)
			}
			if pops != tt.pops || pushes != tt.pushes {
				t.Errorf("Effect = (%d, %d), want (%d, %d)", pops, pushes, tt.pops, tt.pushes)
			}
		})
	}
}

func TestEffect_Invokes(t *testing.T) {
	tests := []struct {
		insn classfile.Insn
		want int
	}{
		{classfile.InvokeOp(classfile.OpInvokeVirtual, "A", "f", "(IJLjava/lang/String;)V"), -4},
		{classfile.InvokeOp(classfile.OpInvokeVirtual, "A", "f", "()I"), 0},
		{classfile.InvokeOp(classfile.OpInvokeSpecial, "A", "<init>", "(I)V"), -2},
		{classfile.InterfaceOp("A", "f", "(I)I"), -1},
		{classfile.InvokeOp(classfile.OpInvokeStatic, "A", "f", "(I)I"), 0},
		{classfile.InvokeOp(classfile.OpInvokeStatic, "A", "f", "()V"), 0},
		{classfile.InvokeOp(classfile.OpInvokeStatic, "java/lang/reflect/Array", "setByte", "(Ljava/lang/Object;IB)V"), -3},
		{classfile.InvokeDynamicOp("run", "(I)Ljava/lang/Runnable;", 0), 0},
		{classfile.InvokeDynamicOp("run", "()Ljava/lang/Runnable;", 0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.insn.String(), func(t *testing.T) {
			got, err := Change(tt.insn)
			if err != nil {
				t.Fatalf("Change: %v", err)
			}
			if got != tt.want {
				t.Errorf("Change = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEffect_Faults(t *testing.T) {
	usage := []classfile.Opcode{
		classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn,
		classfile.OpDReturn, classfile.OpAReturn, classfile.OpReturn,
	}
	for _, op := range usage {
		if _, err := Change(classfile.Op(op)); !errors.IsUsage(err) {
			t.Errorf("%s: got %v, want usage fault", op, err)
		}
	}

	invariant := []classfile.Insn{
		classfile.Op(classfile.OpAThrow),
		classfile.Op(classfile.OpWide),
		{Opcode: 0xCA},
		classfile.Op(classfile.OpInvokeStatic), // no member operand
	}
	for _, insn := range invariant {
		if _, err := Change(insn); !errors.IsInvariant(err) {
			t.Errorf("%s: got %v, want invariant fault", insn, err)
		}
	}

	if _, err := Change(classfile.InvokeOp(classfile.OpInvokeStatic, "A", "f", "(I")); err == nil || errors.IsUsage(err) {
		t.Errorf("malformed descriptor: got %v", err)
	}
}

func TestTableIsComplete(t *testing.T) {
	// Every real opcode is either tabled or computed from its operand.
	computed := map[classfile.Opcode]bool{
		classfile.OpInvokeVirtual:   true,
		classfile.OpInvokeSpecial:   true,
		classfile.OpInvokeStatic:    true,
		classfile.OpInvokeInterface: true,
		classfile.OpInvokeDynamic:   true,
		classfile.OpMultiANewArray:  true,
		classfile.OpAThrow:          true,
		classfile.OpWide:            true,
	}
	for op := classfile.OpNop; op <= classfile.OpJsrW; op++ {
		if op.IsReturn() || computed[op] {
			if table[op].known {
				t.Errorf("%s should not be tabled", op)
			}
			continue
		}
		if !table[op].known {
			t.Errorf("%s missing from table", op)
		}
	}
}

package stack

import (
	"testing"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

func TestAnalyze_StraightLine(t *testing.T) {
	l := classfile.NewList()
	a := l.Append(classfile.Op(classfile.OpIConst1))
	b := l.Append(classfile.Op(classfile.OpIConst2))
	c := l.Append(classfile.Op(classfile.OpDup2))
	d := l.Append(classfile.Op(classfile.OpPop2))
	e := l.Append(classfile.Op(classfile.OpIAdd))
	f := l.Append(classfile.Op(classfile.OpIReturn))

	h, err := Analyze(l)
	if err != nil {
		t.Fatal(err)
	}
	want := map[classfile.Ref]int{a: 0, b: 1, c: 2, d: 4, e: 2, f: 1}
	for ref, height := range want {
		if got, ok := h.At(ref); !ok || got != height {
			t.Errorf("%s: height %d (reachable %v), want %d", l.At(ref), got, ok, height)
		}
	}
	if h.Max() != 4 {
		t.Errorf("Max = %d, want 4", h.Max())
	}
}

func TestAnalyze_BranchesAndJoins(t *testing.T) {
	l := classfile.NewList()
	elseL, join := l.NewLabel(), l.NewLabel()
	l.Append(classfile.VarOp(classfile.OpILoad, 1))
	l.Append(classfile.JumpOp(classfile.OpIfEq, elseL))
	l.Append(classfile.Op(classfile.OpIConst1))
	l.Append(classfile.JumpOp(classfile.OpGoto, join))
	l.Append(classfile.LabelOp(elseL))
	l.Append(classfile.Op(classfile.OpIConst0))
	j := l.Append(classfile.LabelOp(join))
	l.Append(classfile.Op(classfile.OpIReturn))

	h, err := Analyze(l)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := h.At(j); got != 1 {
		t.Errorf("join height %d, want 1", got)
	}
}

func TestAnalyze_Faults(t *testing.T) {
	t.Run("mismatched join", func(t *testing.T) {
		l := classfile.NewList()
		join := l.NewLabel()
		l.Append(classfile.VarOp(classfile.OpILoad, 1))
		l.Append(classfile.JumpOp(classfile.OpIfEq, join))
		l.Append(classfile.Op(classfile.OpIConst1))
		l.Append(classfile.LabelOp(join))
		l.Append(classfile.Op(classfile.OpReturn))
		if _, err := Analyze(l); !errors.IsInvariant(err) {
			t.Errorf("got %v, want invariant fault", err)
		}
	})

	t.Run("underflow", func(t *testing.T) {
		l := classfile.NewList()
		l.Append(classfile.Op(classfile.OpIConst1))
		l.Append(classfile.Op(classfile.OpIAdd))
		l.Append(classfile.Op(classfile.OpIReturn))
		if _, err := Analyze(l); !errors.IsInvariant(err) {
			t.Errorf("got %v, want invariant fault", err)
		}
	})

	t.Run("falls off end", func(t *testing.T) {
		l := classfile.NewList()
		l.Append(classfile.Op(classfile.OpNop))
		if err := Verify(l); !errors.IsInvariant(err) {
			t.Errorf("got %v, want invariant fault", err)
		}
	})

	t.Run("unbound target", func(t *testing.T) {
		l := classfile.NewList()
		l.Append(classfile.JumpOp(classfile.OpGoto, l.NewLabel()))
		if err := Verify(l); !errors.IsUsage(err) {
			t.Errorf("got %v, want usage fault", err)
		}
	})
}

func TestAnalyze_HandlersAndSwitches(t *testing.T) {
	l := classfile.NewList()
	start, end, handler := l.NewLabel(), l.NewLabel(), l.NewLabel()
	one, two, dflt := l.NewLabel(), l.NewLabel(), l.NewLabel()

	l.Append(classfile.TryCatchOp(start, end, handler, ""))
	l.Append(classfile.LabelOp(start))
	l.Append(classfile.VarOp(classfile.OpILoad, 1))
	l.Append(classfile.TableSwitchOp(1, dflt, one, two))
	l.Append(classfile.LabelOp(one))
	l.Append(classfile.Op(classfile.OpIConst1))
	l.Append(classfile.Op(classfile.OpIReturn))
	l.Append(classfile.LabelOp(two))
	l.Append(classfile.Op(classfile.OpIConst2))
	l.Append(classfile.Op(classfile.OpIReturn))
	l.Append(classfile.LabelOp(end))
	l.Append(classfile.LabelOp(dflt))
	l.Append(classfile.Op(classfile.OpIConst0))
	l.Append(classfile.Op(classfile.OpIReturn))
	h := l.Append(classfile.LabelOp(handler))
	l.Append(classfile.Op(classfile.OpAThrow))

	heights, err := Analyze(l)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := heights.At(h); !ok || got != 1 {
		t.Errorf("handler height %d (reachable %v), want 1", got, ok)
	}
	if got, ok := heights.At(l.Bound(two)); !ok || got != 0 {
		t.Errorf("switch target height %d (reachable %v), want 0", got, ok)
	}
	if _, ok := heights.At(l.Bound(end)); ok {
		t.Error("label after returns should be unreachable")
	}
}

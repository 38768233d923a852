package weave

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/meta"
)

func TestDiscover_Slots(t *testing.T) {
	l := classfile.NewList()
	start, end := l.NewLabel(), l.NewLabel()
	l.Append(classfile.LabelOp(start))
	l.Append(classfile.Op(classfile.OpLConst1))
	l.Append(classfile.Op(classfile.OpLStore3))
	l.Append(classfile.Op(classfile.OpAConstNull))
	l.Append(classfile.VarOp(classfile.OpAStore, 5))
	l.Append(classfile.Op(classfile.OpFConst0))
	l.Append(classfile.VarOp(classfile.OpFStore, 6))
	l.Append(classfile.IincOp(1, 1)) // parameter written by the body
	l.Append(classfile.Op(classfile.OpAConstNull))
	l.Append(classfile.Op(classfile.OpAStore0)) // this is never captured
	l.Append(classfile.VarOp(classfile.OpALoad, 0))
	l.Append(classfile.Op(classfile.OpIConst1))
	l.Append(yieldInt)
	l.Append(classfile.Op(classfile.OpIConst0))
	l.Append(classfile.Op(classfile.OpIReturn))
	l.Append(classfile.LabelOp(end))
	l.Append(classfile.LocalVariableOp("name", "Ljava/lang/String;", start, end, 5))
	l.Append(classfile.LocalVariableOp("ratio", "F", start, end, 6))

	c, err := Discover(l, "next", "(II)Z", Config{})
	if err != nil {
		t.Fatal(err)
	}
	want := []meta.Slot{
		{Index: 1, Desc: "I", Name: "$slot$next$1"},
		{Index: 3, Desc: "J", Name: "$slot$next$3"},
		{Index: 5, Desc: "Ljava/lang/String;", Name: "$slot$next$5"},
		{Index: 6, Desc: "F", Name: "$slot$next$6"},
	}
	if diff := cmp.Diff(want, c.Slots()); diff != "" {
		t.Errorf("slots (-want +got):\n%s", diff)
	}
	if c.Count() != 1 {
		t.Errorf("Count = %d, want 1", c.Count())
	}
}

func TestDiscover_AmbiguousLocalTable(t *testing.T) {
	l := classfile.NewList()
	a, b := l.NewLabel(), l.NewLabel()
	l.Append(classfile.Op(classfile.OpAConstNull))
	l.Append(classfile.Op(classfile.OpAStore2))
	l.Append(classfile.LocalVariableOp("s", "Ljava/lang/String;", a, b, 2))
	l.Append(classfile.LocalVariableOp("o", "Ljava/util/List;", a, b, 2))

	c, err := Discover(l, "next", "()Z", Config{})
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := c.Slot(2); s.Desc != "Ljava/lang/Object;" {
		t.Errorf("slot 2 desc = %q, want java/lang/Object", s.Desc)
	}
}

func TestDiscover_TypeConflict(t *testing.T) {
	l := classfile.NewList()
	l.Append(classfile.Op(classfile.OpIConst0))
	l.Append(classfile.VarOp(classfile.OpIStore, 2))
	l.Append(classfile.Op(classfile.OpAConstNull))
	l.Append(classfile.VarOp(classfile.OpAStore, 2))
	if _, err := Discover(l, "next", "()Z", Config{}); err != nil {
		t.Fatalf("body without yields: %v", err)
	}

	l.Append(yieldInt)
	_, err := Discover(l, "next", "()Z", Config{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseWeave, Kind: errors.KindUnsupported}) {
		t.Errorf("got %v, want unsupported", err)
	}
}

func TestDiscover_CustomCallSite(t *testing.T) {
	l := classfile.NewList()
	other := classfile.InvokeOp(classfile.OpInvokeVirtual, "com/acme/Other", "emit", "(I)V")
	mine := classfile.InvokeOp(classfile.OpInvokeVirtual, owner, "emit", "(I)V")
	l.Append(other)
	l.Append(mine)
	l.Append(mine)
	l.Append(yieldInt)

	c, err := Discover(l, "next", "()Z", Config{Yield: CallSite{Owner: owner, Name: "emit"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Count() != 2 {
		t.Errorf("Count = %d, want 2", c.Count())
	}
}

func TestDiscover_BadDescriptor(t *testing.T) {
	if _, err := Discover(classfile.NewList(), "next", "(Q)Z", Config{}); err == nil {
		t.Error("expected error for malformed descriptor")
	}
}

func TestCallSite_Match(t *testing.T) {
	site := CallSite{Owner: owner, Name: "yieldReturn", Desc: "(I)V"}
	tests := []struct {
		insn classfile.Insn
		want bool
	}{
		{yieldInt, true},
		{classfile.InterfaceOp(owner, "yieldReturn", "(I)V"), true},
		{classfile.InvokeOp(classfile.OpInvokeStatic, owner, "yieldReturn", "(I)V"), false},
		{classfile.InvokeOp(classfile.OpInvokeVirtual, owner, "yieldReturn", "(J)V"), false},
		{classfile.FieldOp(classfile.OpGetField, owner, "yieldReturn", "I"), false},
		{classfile.Op(classfile.OpNop), false},
	}
	for _, tt := range tests {
		t.Run(tt.insn.String(), func(t *testing.T) {
			if got := site.Match(tt.insn); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

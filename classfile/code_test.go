package classfile

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jvm-yield/errors"
)

// canonical renders a list with labels renumbered by placement order so
// lists built independently can be compared.
func canonical(l *InsnList) []string {
	names := make(map[Label]string)
	for _, insn := range l.Insns() {
		if lbl, ok := insn.LabelOf(); ok {
			names[lbl] = fmt.Sprintf("L%d", len(names))
		}
	}
	var out []string
	for _, insn := range l.Insns() {
		switch imm := insn.Imm.(type) {
		case LabelImm:
			out = append(out, names[imm.Label]+":")
		case JumpImm:
			out = append(out, insn.Opcode.String()+" "+names[imm.Target])
		case TableSwitchImm:
			s := fmt.Sprintf("tableswitch %d..%d default %s", imm.Low, imm.High, names[imm.Default])
			for _, t := range imm.Targets {
				s += " " + names[t]
			}
			out = append(out, s)
		case LookupSwitchImm:
			s := "lookupswitch default " + names[imm.Default]
			for i, k := range imm.Keys {
				s += fmt.Sprintf(" %d:%s", k, names[imm.Targets[i]])
			}
			out = append(out, s)
		case LineNumberImm:
			out = append(out, fmt.Sprintf("line %d %s", imm.Line, names[imm.Start]))
		case TryCatchImm:
			out = append(out, fmt.Sprintf("trycatch %s %s %s %s", names[imm.Start], names[imm.End], names[imm.Handler], imm.Type))
		case LocalVariableImm:
			out = append(out, fmt.Sprintf("localvar %d %s %s %s %s", imm.Index, imm.Name, imm.Desc, names[imm.Start], names[imm.End]))
		default:
			out = append(out, insn.String())
		}
	}
	return out
}

func testClass(m *Method) *Class {
	return &Class{
		Major:  52,
		Access: AccPublic | AccSuper,
		Name:   "com/acme/Numbers",
		Super:  "java/lang/Object",
		Fields: []*Field{{Access: AccPrivate, Name: "state", Desc: "I"}},
		Methods: []*Method{
			m,
			{Access: AccPublic | AccAbstract, Name: "peek", Desc: "()I"},
		},
	}
}

func roundTrip(t *testing.T, c *Class) *Class {
	t.Helper()
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := ParseClass(data)
	if err != nil {
		t.Fatalf("ParseClass: %v", err)
	}
	again, err := back.Encode()
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("encode(decode(encode(c))) is not byte-stable")
	}
	return back
}

func TestCodeRoundTrip(t *testing.T) {
	l := NewList()
	start, end, handler := l.NewLabel(), l.NewLabel(), l.NewLabel()
	loop, exit, other := l.NewLabel(), l.NewLabel(), l.NewLabel()

	l.Append(TryCatchOp(start, end, handler, "java/lang/RuntimeException"))
	l.Append(LabelOp(start))
	l.Append(LineOp(10, start))
	l.Append(VarOp(OpALoad, 0))
	l.Append(FieldOp(OpGetField, "com/acme/Numbers", "state", "I"))
	l.Append(TableSwitchOp(1, exit, loop, other))
	l.Append(LabelOp(loop))
	l.Append(IntOp(OpSIPush, 1000))
	l.Append(VarOp(OpIStore, 300))
	l.Append(IincOp(300, 1000))
	l.Append(LdcOp(int64(1) << 40))
	l.Append(VarOp(OpLStore, 4))
	l.Append(LdcOp("hello"))
	l.Append(VarOp(OpAStore, 6))
	l.Append(VarOp(OpALoad, 6))
	l.Append(InterfaceOp("java/lang/CharSequence", "charAt", "(I)C"))
	l.Append(VarOp(OpILoad, 1))
	l.Append(LookupSwitchOp(exit, []int32{-5, 7}, []Label{other, loop}))
	l.Append(LabelOp(other))
	l.Append(IntOp(OpBIPush, -3))
	l.Append(JumpOp(OpIfLt, exit))
	l.Append(InvokeDynamicOp("run", "()Ljava/lang/Runnable;", 0))
	l.Append(Op(OpPop))
	l.Append(LabelOp(end))
	l.Append(JumpOp(OpGoto, exit))
	l.Append(LabelOp(handler))
	l.Append(Op(OpAThrow))
	l.Append(LabelOp(exit))
	l.Append(Op(OpIConst0))
	l.Append(Op(OpIReturn))
	l.Append(LocalVariableOp("this", "Lcom/acme/Numbers;", start, exit, 0))

	m := &Method{Access: AccPublic, Name: "next", Desc: "(I)Z", MaxStack: 4, MaxLocals: 301, Code: l}
	back := roundTrip(t, testClass(m))

	got := back.Method("next", "(I)Z")
	if got == nil || got.Code == nil {
		t.Fatal("method lost in round trip")
	}
	if diff := cmp.Diff(canonical(l), canonical(got.Code)); diff != "" {
		t.Errorf("code mismatch (-want +got):\n%s", diff)
	}
	if got.MaxStack != 4 || got.MaxLocals != 301 {
		t.Errorf("MaxStack=%d MaxLocals=%d", got.MaxStack, got.MaxLocals)
	}
	if back.Method("peek", "").Code != nil {
		t.Error("abstract method gained code")
	}
	if back.Field("state") == nil || back.Super != "java/lang/Object" {
		t.Error("class header lost in round trip")
	}
}

func TestCodeRoundTrip_GotoWidening(t *testing.T) {
	l := NewList()
	far := l.NewLabel()
	l.Append(JumpOp(OpGoto, far))
	for i := 0; i < 40000; i++ {
		l.Append(Op(OpNop))
	}
	l.Append(LabelOp(far))
	l.Append(Op(OpReturn))

	c := testClass(&Method{Access: AccPublic | AccStatic, Name: "spin", Desc: "()V", Code: l})
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(data, []byte{byte(OpGotoW), 0x00, 0x00, 0x9c, 0x45}) {
		t.Error("far goto was not widened to goto_w with offset 40005")
	}

	back, err := ParseClass(data)
	if err != nil {
		t.Fatalf("ParseClass: %v", err)
	}
	first := back.Method("spin", "()V").Code
	if op := first.At(first.First()).Opcode; op != OpGoto {
		t.Errorf("goto_w should decode as goto, got %s", op)
	}
}

func TestEncode_ConditionalOutOfRange(t *testing.T) {
	l := NewList()
	far := l.NewLabel()
	l.Append(VarOp(OpILoad, 0))
	l.Append(JumpOp(OpIfEq, far))
	for i := 0; i < 40000; i++ {
		l.Append(Op(OpNop))
	}
	l.Append(LabelOp(far))
	l.Append(Op(OpReturn))

	c := testClass(&Method{Access: AccStatic, Name: "f", Desc: "(I)V", Code: l})
	if _, err := c.Encode(); !errors.IsUsage(err) {
		t.Fatalf("got %v, want usage fault", err)
	}
}

func TestEncode_UnboundLabel(t *testing.T) {
	l := NewList()
	l.Append(JumpOp(OpGoto, l.NewLabel()))
	c := testClass(&Method{Access: AccStatic, Name: "f", Desc: "()V", Code: l})
	if _, err := c.Encode(); !errors.IsUsage(err) {
		t.Fatalf("got %v, want usage fault", err)
	}
}

func TestDecode_CompactForms(t *testing.T) {
	// iload_1 istore_2 aload_0 astore_3 return
	code := []byte{0x1b, 0x3d, 0x2a, 0x4e, 0xb1}
	insns, err := decodeInsns(code, NewPool(), func(int) Label { return NoLabel })
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"iload 1", "istore 2", "aload 0", "astore 3", "return"}
	var got []string
	for _, d := range insns {
		got = append(got, d.insn.String())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseClass_Errors(t *testing.T) {
	if _, err := ParseClass([]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 52}); !stderrors.Is(err, ErrInvalidMagic) {
		t.Errorf("bad magic: got %v", err)
	}
	if _, err := ParseClass([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 99}); !stderrors.Is(err, ErrInvalidVersion) {
		t.Errorf("bad version: got %v", err)
	}
	if _, err := ParseClass([]byte{0xca, 0xfe}); err == nil {
		t.Error("truncated header should fail")
	}
}

func TestPool_Dedup(t *testing.T) {
	p := NewPool()
	a := p.AddMember(TagMethodref, "java/lang/Object", "getClass", "()Ljava/lang/Class;")
	b := p.AddMember(TagMethodref, "java/lang/Object", "getClass", "()Ljava/lang/Class;")
	if a != b {
		t.Errorf("duplicate member ref got two indices: %d, %d", a, b)
	}
	l, err := p.AddLoadable(int64(7))
	if err != nil {
		t.Fatal(err)
	}
	next := p.AddUtf8("after")
	if next != l+2 {
		t.Errorf("long constant should occupy two slots: %d then %d", l, next)
	}
	owner, name, desc, tag, err := p.MemberRef(a)
	if err != nil || owner != "java/lang/Object" || name != "getClass" || desc != "()Ljava/lang/Class;" || tag != TagMethodref {
		t.Errorf("MemberRef = %s %s %s %d %v", owner, name, desc, tag, err)
	}
	if _, err := p.Get(l + 1); err == nil {
		t.Error("upper half of a long must not be addressable")
	}
}

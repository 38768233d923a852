package classfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func codeOf(insns ...Insn) *InsnList {
	l := NewList()
	for _, insn := range insns {
		l.Append(insn)
	}
	return l
}

func TestPool_HasTag(t *testing.T) {
	var nilPool *Pool
	if nilPool.HasTag(TagUtf8) {
		t.Error("nil pool has a tag")
	}
	p := NewPool()
	p.AddClass("com/acme/Gen")
	if !p.HasTag(TagClass) || !p.HasTag(TagMethodType, TagUtf8) {
		t.Error("added tags not found")
	}
	if p.HasTag(TagMethodType, TagInvokeDynamic) {
		t.Error("reported a tag the pool does not hold")
	}
	if _, err := p.AddLoadable(MethodTypeConst{Desc: "()V"}); err != nil {
		t.Fatal(err)
	}
	if !p.HasTag(TagMethodType) {
		t.Error("method type not found")
	}
}

func TestClass_Post6Features(t *testing.T) {
	plain := func() *Class {
		return &Class{
			Major: 52,
			Name:  "com/acme/Gen",
			Methods: []*Method{{
				Name: "next", Desc: "()Z",
				Code: codeOf(Op(OpIConst1), Op(OpIReturn)),
			}},
		}
	}
	mh := NewPool()
	mh.add(Constant{Tag: TagMethodHandle, Kind: 6, Index1: 1})

	tests := []struct {
		name  string
		setup func(c *Class)
		want  []string
	}{
		{"plain", func(*Class) {}, nil},
		{"method handle in pool", func(c *Class) { c.Pool = mh }, []string{"method handle or dynamic constants"}},
		{"nest host", func(c *Class) {
			c.Attributes = []Attribute{{Name: "SourceFile"}, {Name: "NestHost"}}
		}, []string{"NestHost attribute"}},
		{"invokedynamic", func(c *Class) {
			c.Methods[0].Code = codeOf(InvokeDynamicOp("run", "()Ljava/lang/Runnable;", 0), Op(OpPop), Op(OpIConst1), Op(OpIReturn))
		}, []string{"invokedynamic or method handle constant in next()Z"}},
		{"ldc method type", func(c *Class) {
			c.Methods[0].Code = codeOf(LdcOp(MethodTypeConst{Desc: "()V"}), Op(OpPop), Op(OpIConst1), Op(OpIReturn))
		}, []string{"invokedynamic or method handle constant in next()Z"}},
		{"interface body", func(c *Class) {
			c.Access = AccInterface | AccAbstract
			c.Methods = append(c.Methods, &Method{Name: "<clinit>", Desc: "()V", Code: codeOf(Op(OpReturn))})
		}, []string{"interface method body next()Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := plain()
			tt.setup(c)
			if diff := cmp.Diff(tt.want, c.Post6Features()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestClass_LowerToJava6(t *testing.T) {
	for _, tt := range []struct{ major, minor, wantMajor, wantMinor uint16 }{
		{61, 0, 50, 0},
		{51, 3, 50, 0},
		{50, 0, 50, 0},
		{49, 3, 49, 3},
	} {
		c := &Class{Major: tt.major, Minor: tt.minor}
		c.LowerToJava6()
		if c.Major != tt.wantMajor || c.Minor != tt.wantMinor {
			t.Errorf("%d.%d lowered to %d.%d, want %d.%d", tt.major, tt.minor, c.Major, c.Minor, tt.wantMajor, tt.wantMinor)
		}
	}
}

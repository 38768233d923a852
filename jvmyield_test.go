package jvmyield

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
	"github.com/wippyai/jvm-yield/stack"
	"github.com/wippyai/jvm-yield/weave"
)

const owner = "com/acme/Letters"

// generator builds "boolean name() { yieldReturn("a"); yieldReturn("b"); return false; }".
func generator(name string, access uint16) *classfile.Method {
	l := classfile.NewList()
	for _, s := range []string{"a", "b"} {
		l.Append(classfile.VarOp(classfile.OpALoad, 0))
		l.Append(classfile.LdcOp(s))
		l.Append(classfile.InvokeOp(classfile.OpInvokeVirtual, owner, "yieldReturn", "(Ljava/lang/Object;)V"))
	}
	l.Append(classfile.Op(classfile.OpIConst0))
	l.Append(classfile.Op(classfile.OpIReturn))
	return &classfile.Method{Access: access, Name: name, Desc: "()Z", Code: l, MaxStack: 2, MaxLocals: 1}
}

func plain(name, desc string) *classfile.Method {
	l := classfile.NewList()
	l.Append(classfile.Op(classfile.OpIConst1))
	l.Append(classfile.Op(classfile.OpIReturn))
	return &classfile.Method{Access: classfile.AccPublic, Name: name, Desc: desc, Code: l, MaxStack: 1, MaxLocals: 1}
}

func encode(t *testing.T, methods ...*classfile.Method) []byte {
	t.Helper()
	c := &classfile.Class{
		Major:   52,
		Access:  classfile.AccPublic | classfile.AccSuper,
		Name:    owner,
		Super:   "com/acme/Yielder",
		Methods: methods,
	}
	data, err := c.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestTransform(t *testing.T) {
	data := encode(t, generator("next", classfile.AccPublic), plain("hasNext", "()Z"), plain("size", "()I"))

	out, report, err := Transform(data, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Woven) != 1 || report.Woven[0].Method != "next()Z" || report.Woven[0].States != 2 {
		t.Fatalf("report = %+v", report.Woven)
	}
	if report.Skipped != nil {
		t.Errorf("unexpected skips: %v", report.Skipped)
	}

	c, err := classfile.ParseClass(out)
	if err != nil {
		t.Fatal(err)
	}
	if !IsWoven(c, weave.Config{}) {
		t.Error("state field missing")
	}
	if err := stack.Verify(c.Method("next", "()Z").Code); err != nil {
		t.Errorf("woven next: %v", err)
	}
	if n := c.Method("hasNext", "()Z").Code.Len(); n != 2 {
		t.Errorf("hasNext changed: %d instructions", n)
	}
}

func TestTransform_GeneratorsOwnTheirFields(t *testing.T) {
	data := encode(t, generator("first", classfile.AccPublic), generator("second", classfile.AccPublic))

	out, report, err := Transform(data, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Woven) != 2 || report.Skipped != nil {
		t.Fatalf("woven = %+v, skipped = %v", report.Woven, report.Skipped)
	}
	c, err := classfile.ParseClass(out)
	if err != nil {
		t.Fatal(err)
	}
	if c.Field("$state$first") == nil || c.Field("$state$second") == nil {
		t.Fatalf("fields = %+v", c.Fields)
	}
	if c.Field(weave.DefaultStateField) != nil {
		t.Error("a class-wide state field was declared")
	}

	for _, name := range []string{"first", "second"} {
		for _, insn := range c.Method(name, "()Z").Code.Insns() {
			if _, field, _, ok := insn.Member(); ok && insn.Kind() == classfile.KindField && field != "$state$"+name {
				t.Errorf("%s touches %s", name, field)
			}
		}
	}
}

func TestTransform_OverloadedGenerators(t *testing.T) {
	overload := generator("next", classfile.AccPublic)
	overload.Desc = "(I)Z"
	data := encode(t, generator("next", classfile.AccPublic), overload)

	_, report, err := Transform(data, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Woven) != 1 || report.Skipped == nil || len(report.Skipped.Methods) != 1 {
		t.Fatalf("woven = %+v, skipped = %v", report.Woven, report.Skipped)
	}
	if cause := report.Skipped.Methods[0].Cause; !errors.IsUsage(cause) {
		t.Errorf("got %v, want usage fault", cause)
	}
}

func TestTransform_RejectsWovenClass(t *testing.T) {
	out, _, err := Transform(encode(t, generator("next", classfile.AccPublic)), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Transform(out, Config{}); !errors.IsUsage(err) {
		t.Errorf("got %v, want usage fault", err)
	}
}

func TestTransform_OnError(t *testing.T) {
	data := encode(t,
		generator("broken", classfile.AccPublic|classfile.AccStatic),
		generator("next", classfile.AccPublic),
	)
	cfg := Config{Methods: weave.MustSelector("broken", "next")}

	t.Run("skip", func(t *testing.T) {
		out, report, err := Transform(data, cfg)
		if err != nil {
			t.Fatal(err)
		}
		if out == nil || len(report.Woven) != 1 {
			t.Fatalf("woven = %+v", report.Woven)
		}
		if report.Skipped == nil || len(report.Skipped.Methods) != 1 {
			t.Fatalf("skipped = %v", report.Skipped)
		}
		got := report.Skipped.Methods[0]
		if got.Owner != owner || got.Name != "broken()Z" {
			t.Errorf("skipped %s.%s", got.Owner, got.Name)
		}
	})

	t.Run("abort", func(t *testing.T) {
		cfg := cfg
		cfg.OnError = Abort
		out, _, err := Transform(data, cfg)
		if err == nil || out != nil {
			t.Fatalf("got %d bytes, err %v", len(out), err)
		}
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseWeave, Kind: errors.KindUnsupported}) {
			t.Errorf("got %v, want unsupported", err)
		}
	})
}

func TestTransform_BadInput(t *testing.T) {
	_, _, err := Transform([]byte{0xCA, 0xFE}, Config{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidData}) {
		t.Errorf("got %v, want decode error", err)
	}
}

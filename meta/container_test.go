package meta

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

func TestContainer_TakeStateCountsDown(t *testing.T) {
	c := New(classfile.NewList(), 3)
	var got []int
	for i := 0; i < 3; i++ {
		id, err := c.TakeState()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, id)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, got); diff != "" {
		t.Errorf("state order (-want +got):\n%s", diff)
	}
	if _, err := c.TakeState(); !errors.IsUsage(err) {
		t.Errorf("fourth TakeState: got %v, want usage fault", err)
	}
	if c.Remaining() != 0 || c.Count() != 3 {
		t.Errorf("Remaining=%d Count=%d", c.Remaining(), c.Count())
	}
}

func TestContainer_ZeroStates(t *testing.T) {
	c := New(classfile.NewList(), 0)
	if _, err := c.TakeState(); !errors.IsUsage(err) {
		t.Errorf("got %v, want usage fault", err)
	}
	if _, err := c.StateLabel(1); !errors.IsUsage(err) {
		t.Errorf("got %v, want usage fault", err)
	}
}

func TestContainer_StateLabelIsLazyAndStable(t *testing.T) {
	list := classfile.NewList()
	c := New(list, 2)
	if n := len(c.StateLabels()); n != 0 {
		t.Fatalf("%d labels before first use", n)
	}
	a, err := c.StateLabel(2)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.StateLabel(2)
	if a != b {
		t.Errorf("StateLabel(2) returned %s then %s", a, b)
	}
	if list.NumLabels() != 1 {
		t.Errorf("allocated %d labels, want 1", list.NumLabels())
	}
	if diff := cmp.Diff(map[int]classfile.Label{2: a}, c.StateLabels()); diff != "" {
		t.Errorf("StateLabels (-want +got):\n%s", diff)
	}
}

func TestContainer_StateRange(t *testing.T) {
	c := New(classfile.NewList(), 2)
	for _, id := range []int{-1, 0, 3} {
		if _, err := c.StateLabel(id); !errors.IsUsage(err) {
			t.Errorf("StateLabel(%d): got %v, want usage fault", id, err)
		}
		if err := c.SetStateLabel(id, 0); !errors.IsUsage(err) {
			t.Errorf("SetStateLabel(%d): got %v, want usage fault", id, err)
		}
	}
}

func TestContainer_SetStateLabel(t *testing.T) {
	list := classfile.NewList()
	l := list.NewLabel()
	c := New(list, 1)
	if err := c.SetStateLabel(1, l); err != nil {
		t.Fatal(err)
	}
	got, _ := c.StateLabel(1)
	if got != l {
		t.Errorf("StateLabel(1) = %s, want %s", got, l)
	}
	if list.NumLabels() != 1 {
		t.Error("StateLabel allocated a label despite SetStateLabel")
	}
}

func TestContainer_Slots(t *testing.T) {
	c := New(classfile.NewList(), 1,
		Slot{Index: 4, Desc: "J", Name: "slot4"},
		Slot{Index: 1, Desc: "I", Name: "slot1"},
		Slot{Index: 3, Desc: "Ljava/lang/String;", Name: "slot3"},
	)
	var idx []uint16
	for _, s := range c.Slots() {
		idx = append(idx, s.Index)
	}
	if diff := cmp.Diff([]uint16{1, 3, 4}, idx); diff != "" {
		t.Errorf("slot order (-want +got):\n%s", diff)
	}
	if s, ok := c.Slot(3); !ok || s.Name != "slot3" {
		t.Errorf("Slot(3) = %+v, %v", s, ok)
	}
	if _, ok := c.Slot(2); ok {
		t.Error("Slot(2) should be absent")
	}
}

func TestSlot_Opcodes(t *testing.T) {
	tests := []struct {
		desc        string
		load, store classfile.Opcode
	}{
		{"Z", classfile.OpILoad, classfile.OpIStore},
		{"B", classfile.OpILoad, classfile.OpIStore},
		{"C", classfile.OpILoad, classfile.OpIStore},
		{"S", classfile.OpILoad, classfile.OpIStore},
		{"I", classfile.OpILoad, classfile.OpIStore},
		{"J", classfile.OpLLoad, classfile.OpLStore},
		{"F", classfile.OpFLoad, classfile.OpFStore},
		{"D", classfile.OpDLoad, classfile.OpDStore},
		{"Ljava/lang/Object;", classfile.OpALoad, classfile.OpAStore},
		{"[I", classfile.OpALoad, classfile.OpAStore},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			s := Slot{Desc: tt.desc}
			if s.LoadOpcode() != tt.load || s.StoreOpcode() != tt.store {
				t.Errorf("got %s/%s, want %s/%s", s.LoadOpcode(), s.StoreOpcode(), tt.load, tt.store)
			}
		})
	}
}

func TestContainer_CheckBound(t *testing.T) {
	list := classfile.NewList()
	c := New(list, 2)
	if err := c.CheckBound(list); err != nil {
		t.Fatalf("no labels assigned: %v", err)
	}
	l, _ := c.StateLabel(1)
	if err := c.CheckBound(list); !errors.IsUsage(err) {
		t.Fatalf("got %v, want usage fault", err)
	}
	list.Append(classfile.LabelOp(l))
	if err := c.CheckBound(list); err != nil {
		t.Errorf("CheckBound after placing label: %v", err)
	}
}

package classfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is a jump target handle. It indexes the label table of the
// InsnList that allocated it and is bound once its OpLabel node is linked.
type Label int32

// NoLabel is the zero-value-safe "no label" marker.
const NoLabel Label = -1

func (l Label) String() string {
	if l < 0 {
		return "L?"
	}
	return "L" + strconv.Itoa(int(l))
}

// Insn is one instruction or list-resident metadata entry.
// Values are immutable once created; identity lives in the list handle (Ref).
type Insn struct {
	Imm    any
	Opcode Opcode
}

// IntImm holds the operand of bipush, sipush and newarray.
type IntImm struct {
	Value int32
}

// VarImm holds the local slot of load, store and ret instructions.
type VarImm struct {
	Index uint16
}

// IincImm holds the operands of iinc.
type IincImm struct {
	Index uint16
	Delta int16
}

// TypeImm holds the class operand of new, anewarray, checkcast and instanceof.
// Desc is an internal name ("java/lang/String") or an array descriptor ("[I").
type TypeImm struct {
	Desc string
}

// FieldImm holds the field reference of get/put instructions.
type FieldImm struct {
	Owner string
	Name  string
	Desc  string
}

// MethodImm holds the method reference of invoke instructions.
type MethodImm struct {
	Owner     string
	Name      string
	Desc      string
	Interface bool
}

// InvokeDynamicImm holds the call site of invokedynamic.
type InvokeDynamicImm struct {
	Name      string
	Desc      string
	Bootstrap uint16 // BootstrapMethods attribute index
}

// JumpImm holds the target of a branch instruction.
type JumpImm struct {
	Target Label
}

// LdcImm holds a loadable constant: int32, float32, int64, float64, string,
// ClassConst, MethodTypeConst or PoolConst.
type LdcImm struct {
	Value any
}

// ClassConst is a class literal constant.
type ClassConst struct {
	Name string
}

// MethodTypeConst is a method type constant.
type MethodTypeConst struct {
	Desc string
}

// PoolConst is a loadable constant kept by its pool index (method handles,
// dynamic constants).
type PoolConst struct {
	Index uint16
}

// TableSwitchImm holds the operands of tableswitch.
type TableSwitchImm struct {
	Targets []Label
	Low     int32
	High    int32
	Default Label
}

// LookupSwitchImm holds the operands of lookupswitch.
type LookupSwitchImm struct {
	Keys    []int32
	Targets []Label
	Default Label
}

// MultiANewArrayImm holds the operands of multianewarray.
type MultiANewArrayImm struct {
	Desc string
	Dims uint8
}

// LabelImm marks the position of a label.
type LabelImm struct {
	Label Label
}

// LineNumberImm maps a source line to the position of Start.
type LineNumberImm struct {
	Start Label
	Line  uint16
}

// FrameImm carries an opaque stack map frame.
type FrameImm struct {
	Raw []byte
}

// TryCatchImm is an exception table entry. Type is empty for catch-all.
type TryCatchImm struct {
	Type    string
	Start   Label
	End     Label
	Handler Label
}

// LocalVariableImm is a LocalVariableTable entry.
type LocalVariableImm struct {
	Name  string
	Desc  string
	Start Label
	End   Label
	Index uint16
}

// Kind classifies instructions by operand shape.
type Kind byte

const (
	KindInsn Kind = iota // no operand
	KindInt
	KindVar
	KindIinc
	KindType
	KindField
	KindMethod
	KindInvokeDynamic
	KindJump
	KindLdc
	KindTableSwitch
	KindLookupSwitch
	KindMultiANewArray
	KindLabel
	KindLineNumber
	KindFrame
	KindTryCatch
	KindLocalVariable
)

var kindNames = [...]string{
	KindInsn:           "insn",
	KindInt:            "int",
	KindVar:            "var",
	KindIinc:           "iinc",
	KindType:           "type",
	KindField:          "field",
	KindMethod:         "method",
	KindInvokeDynamic:  "invokedynamic",
	KindJump:           "jump",
	KindLdc:            "ldc",
	KindTableSwitch:    "tableswitch",
	KindLookupSwitch:   "lookupswitch",
	KindMultiANewArray: "multianewarray",
	KindLabel:          "label",
	KindLineNumber:     "line",
	KindFrame:          "frame",
	KindTryCatch:       "trycatch",
	KindLocalVariable:  "localvar",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// KindOf returns the operand shape of op.
func KindOf(op Opcode) Kind {
	switch {
	case op == OpLabel:
		return KindLabel
	case op == OpLineNumber:
		return KindLineNumber
	case op == OpFrame:
		return KindFrame
	case op == OpTryCatch:
		return KindTryCatch
	case op == OpLocalVariable:
		return KindLocalVariable
	case op == OpBIPush || op == OpSIPush || op == OpNewArray:
		return KindInt
	case op == OpLdc || op == OpLdcW || op == OpLdc2W:
		return KindLdc
	case op.IsLocalLoad() || op.IsLocalStore() || op == OpRet:
		return KindVar
	case op == OpIInc:
		return KindIinc
	case op.IsJump():
		return KindJump
	case op == OpTableSwitch:
		return KindTableSwitch
	case op == OpLookupSwitch:
		return KindLookupSwitch
	case op >= OpGetStatic && op <= OpPutField:
		return KindField
	case op >= OpInvokeVirtual && op <= OpInvokeInterface:
		return KindMethod
	case op == OpInvokeDynamic:
		return KindInvokeDynamic
	case op == OpNew || op == OpANewArray || op == OpCheckCast || op == OpInstanceOf:
		return KindType
	case op == OpMultiANewArray:
		return KindMultiANewArray
	}
	return KindInsn
}

// Kind returns the operand shape of the instruction.
func (i Insn) Kind() Kind {
	return KindOf(i.Opcode)
}

// Constructors. They do not validate that the opcode matches the shape;
// the encoder and the stack oracle reject mismatches.

// Op creates a zero-operand instruction.
func Op(op Opcode) Insn { return Insn{Opcode: op} }

// IntOp creates bipush, sipush or newarray.
func IntOp(op Opcode, v int32) Insn { return Insn{Opcode: op, Imm: IntImm{Value: v}} }

// VarOp creates a local load, store or ret.
func VarOp(op Opcode, index uint16) Insn { return Insn{Opcode: op, Imm: VarImm{Index: index}} }

// IincOp creates iinc.
func IincOp(index uint16, delta int16) Insn {
	return Insn{Opcode: OpIInc, Imm: IincImm{Index: index, Delta: delta}}
}

// TypeOp creates new, anewarray, checkcast or instanceof.
func TypeOp(op Opcode, desc string) Insn { return Insn{Opcode: op, Imm: TypeImm{Desc: desc}} }

// FieldOp creates getstatic, putstatic, getfield or putfield.
func FieldOp(op Opcode, owner, name, desc string) Insn {
	return Insn{Opcode: op, Imm: FieldImm{Owner: owner, Name: name, Desc: desc}}
}

// InvokeOp creates invokevirtual, invokespecial or invokestatic on a class.
func InvokeOp(op Opcode, owner, name, desc string) Insn {
	return Insn{Opcode: op, Imm: MethodImm{Owner: owner, Name: name, Desc: desc}}
}

// InterfaceOp creates invokeinterface.
func InterfaceOp(owner, name, desc string) Insn {
	return Insn{Opcode: OpInvokeInterface, Imm: MethodImm{Owner: owner, Name: name, Desc: desc, Interface: true}}
}

// InvokeDynamicOp creates invokedynamic.
func InvokeDynamicOp(name, desc string, bootstrap uint16) Insn {
	return Insn{Opcode: OpInvokeDynamic, Imm: InvokeDynamicImm{Name: name, Desc: desc, Bootstrap: bootstrap}}
}

// JumpOp creates a branch to target.
func JumpOp(op Opcode, target Label) Insn { return Insn{Opcode: op, Imm: JumpImm{Target: target}} }

// LdcOp creates ldc for a constant value.
func LdcOp(v any) Insn { return Insn{Opcode: OpLdc, Imm: LdcImm{Value: v}} }

// TableSwitchOp creates tableswitch over [low, low+len(targets)-1].
func TableSwitchOp(low int32, dflt Label, targets ...Label) Insn {
	return Insn{Opcode: OpTableSwitch, Imm: TableSwitchImm{
		Low:     low,
		High:    low + int32(len(targets)) - 1,
		Default: dflt,
		Targets: targets,
	}}
}

// LookupSwitchOp creates lookupswitch. Keys must be sorted ascending.
func LookupSwitchOp(dflt Label, keys []int32, targets []Label) Insn {
	return Insn{Opcode: OpLookupSwitch, Imm: LookupSwitchImm{Default: dflt, Keys: keys, Targets: targets}}
}

// MultiANewArrayOp creates multianewarray.
func MultiANewArrayOp(desc string, dims uint8) Insn {
	return Insn{Opcode: OpMultiANewArray, Imm: MultiANewArrayImm{Desc: desc, Dims: dims}}
}

// LabelOp creates the placement node for l.
func LabelOp(l Label) Insn { return Insn{Opcode: OpLabel, Imm: LabelImm{Label: l}} }

// LineOp creates a line number entry.
func LineOp(line uint16, start Label) Insn {
	return Insn{Opcode: OpLineNumber, Imm: LineNumberImm{Line: line, Start: start}}
}

// FrameOp creates an opaque frame entry.
func FrameOp(raw []byte) Insn { return Insn{Opcode: OpFrame, Imm: FrameImm{Raw: raw}} }

// TryCatchOp creates an exception table entry.
func TryCatchOp(start, end, handler Label, typ string) Insn {
	return Insn{Opcode: OpTryCatch, Imm: TryCatchImm{Start: start, End: end, Handler: handler, Type: typ}}
}

// LocalVariableOp creates a local variable table entry.
func LocalVariableOp(name, desc string, start, end Label, index uint16) Insn {
	return Insn{Opcode: OpLocalVariable, Imm: LocalVariableImm{Name: name, Desc: desc, Start: start, End: end, Index: index}}
}

// Member returns the owner, name and descriptor of field and method instructions.
func (i Insn) Member() (owner, name, desc string, ok bool) {
	switch imm := i.Imm.(type) {
	case MethodImm:
		return imm.Owner, imm.Name, imm.Desc, true
	case FieldImm:
		return imm.Owner, imm.Name, imm.Desc, true
	case InvokeDynamicImm:
		return "", imm.Name, imm.Desc, true
	}
	return "", "", "", false
}

// VarIndex returns the local slot a variable instruction addresses,
// including the implicit slot of the compact _0.._3 forms.
func (i Insn) VarIndex() (uint16, bool) {
	if imm, ok := i.Imm.(VarImm); ok {
		return imm.Index, true
	}
	if imm, ok := i.Imm.(IincImm); ok {
		return imm.Index, true
	}
	op := i.Opcode
	switch {
	case op >= OpILoad0 && op <= OpALoad3:
		return uint16((op - OpILoad0) % 4), true
	case op >= OpIStore0 && op <= OpAStore3:
		return uint16((op - OpIStore0) % 4), true
	}
	return 0, false
}

// LabelOf returns the label placed by an OpLabel node.
func (i Insn) LabelOf() (Label, bool) {
	if imm, ok := i.Imm.(LabelImm); ok && i.Opcode == OpLabel {
		return imm.Label, true
	}
	return NoLabel, false
}

// Labels returns every label the instruction references (not places).
func (i Insn) Labels() []Label {
	switch imm := i.Imm.(type) {
	case JumpImm:
		return []Label{imm.Target}
	case TableSwitchImm:
		return append([]Label{imm.Default}, imm.Targets...)
	case LookupSwitchImm:
		return append([]Label{imm.Default}, imm.Targets...)
	case LineNumberImm:
		return []Label{imm.Start}
	case TryCatchImm:
		return []Label{imm.Start, imm.End, imm.Handler}
	case LocalVariableImm:
		return []Label{imm.Start, imm.End}
	}
	return nil
}

// String renders the instruction in a javap-like syntax.
func (i Insn) String() string {
	switch imm := i.Imm.(type) {
	case LabelImm:
		return imm.Label.String() + ":"
	case IntImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.Value)
	case VarImm:
		return fmt.Sprintf("%s %d", i.Opcode, imm.Index)
	case IincImm:
		return fmt.Sprintf("iinc %d %d", imm.Index, imm.Delta)
	case TypeImm:
		return i.Opcode.String() + " " + imm.Desc
	case FieldImm:
		return fmt.Sprintf("%s %s.%s:%s", i.Opcode, imm.Owner, imm.Name, imm.Desc)
	case MethodImm:
		return fmt.Sprintf("%s %s.%s%s", i.Opcode, imm.Owner, imm.Name, imm.Desc)
	case InvokeDynamicImm:
		return fmt.Sprintf("invokedynamic #%d:%s%s", imm.Bootstrap, imm.Name, imm.Desc)
	case JumpImm:
		return i.Opcode.String() + " " + imm.Target.String()
	case LdcImm:
		return "ldc " + constString(imm.Value)
	case TableSwitchImm:
		var b strings.Builder
		fmt.Fprintf(&b, "tableswitch %d..%d [", imm.Low, imm.High)
		for n, t := range imm.Targets {
			if n > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.String())
		}
		b.WriteString("] default " + imm.Default.String())
		return b.String()
	case LookupSwitchImm:
		var b strings.Builder
		b.WriteString("lookupswitch [")
		for n, k := range imm.Keys {
			if n > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d:%s", k, imm.Targets[n])
		}
		b.WriteString("] default " + imm.Default.String())
		return b.String()
	case MultiANewArrayImm:
		return fmt.Sprintf("multianewarray %s %d", imm.Desc, imm.Dims)
	case LineNumberImm:
		return fmt.Sprintf("line %d %s", imm.Line, imm.Start)
	case FrameImm:
		return fmt.Sprintf("frame (%d bytes)", len(imm.Raw))
	case TryCatchImm:
		typ := imm.Type
		if typ == "" {
			typ = "any"
		}
		return fmt.Sprintf("trycatch %s %s %s %s", imm.Start, imm.End, imm.Handler, typ)
	case LocalVariableImm:
		return fmt.Sprintf("localvar %d %s %s %s %s", imm.Index, imm.Name, imm.Desc, imm.Start, imm.End)
	}
	return i.Opcode.String()
}

func constString(v any) string {
	switch c := v.(type) {
	case string:
		return strconv.Quote(c)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case int64:
		return strconv.FormatInt(c, 10) + "L"
	case float32:
		return strconv.FormatFloat(float64(c), 'g', -1, 32) + "f"
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64) + "d"
	case ClassConst:
		return c.Name + ".class"
	case MethodTypeConst:
		return c.Desc
	case PoolConst:
		return "#" + strconv.Itoa(int(c.Index))
	}
	return fmt.Sprintf("%v", v)
}

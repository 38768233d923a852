package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/jvm-yield/classfile/internal/binary"
	"github.com/wippyai/jvm-yield/errors"
)

type decodedInsn struct {
	insn Insn
	pc   int
}

// decodeCode fills m.Code, m.MaxStack, m.MaxLocals and m.CodeAttributes
// from a Code attribute body.
func decodeCode(m *Method, data []byte, p *Pool) error {
	r := binary.NewReader(data)
	var err error
	if m.MaxStack, err = r.ReadU2(); err != nil {
		return err
	}
	if m.MaxLocals, err = r.ReadU2(); err != nil {
		return err
	}
	codeLen, err := r.ReadU4()
	if err != nil {
		return err
	}
	code, err := r.ReadBytes(int(codeLen))
	if err != nil {
		return fmt.Errorf("code: %w", err)
	}

	list := NewList()
	labels := make(map[int]Label)
	labelAt := func(pc int) Label {
		if l, ok := labels[pc]; ok {
			return l
		}
		l := list.NewLabel()
		labels[pc] = l
		return l
	}

	insns, err := decodeInsns(code, p, labelAt)
	if err != nil {
		return err
	}

	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	var handlers []Insn
	for i := 0; i < int(n); i++ {
		var start, end, handler, typ uint16
		for _, dst := range []*uint16{&start, &end, &handler, &typ} {
			if *dst, err = r.ReadU2(); err != nil {
				return fmt.Errorf("exception table: %w", err)
			}
		}
		var name string
		if typ != 0 {
			if name, err = p.ClassName(typ); err != nil {
				return fmt.Errorf("exception table %d: %w", i, err)
			}
		}
		handlers = append(handlers, TryCatchOp(labelAt(int(start)), labelAt(int(end)), labelAt(int(handler)), name))
	}

	attrs, err := readAttributes(r, p)
	if err != nil {
		return err
	}
	lines := make(map[int][]uint16)
	var locals []Insn
	for _, a := range attrs {
		switch a.Name {
		case AttrLineNumberTable:
			if err := decodeLineNumbers(a.Data, lines); err != nil {
				return fmt.Errorf("%s: %w", a.Name, err)
			}
			for pc := range lines {
				labelAt(pc)
			}
		case AttrLocalVariableTable:
			lv, err := decodeLocalVariables(a.Data, p, labelAt)
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name, err)
			}
			locals = append(locals, lv...)
		default:
			m.CodeAttributes = append(m.CodeAttributes, a)
		}
	}

	boundaries := make(map[int]bool, len(insns)+1)
	for _, d := range insns {
		boundaries[d.pc] = true
	}
	boundaries[len(code)] = true
	for pc := range labels {
		if !boundaries[pc] {
			return fmt.Errorf("offset %d is not an instruction boundary", pc)
		}
	}

	for _, h := range handlers {
		list.Append(h)
	}
	place := func(pc int) {
		if l, ok := labels[pc]; ok {
			list.Append(LabelOp(l))
			for _, line := range lines[pc] {
				list.Append(LineOp(line, l))
			}
		}
	}
	for _, d := range insns {
		place(d.pc)
		list.Append(d.insn)
	}
	place(len(code))
	for _, lv := range locals {
		list.Append(lv)
	}
	m.Code = list
	return nil
}

func decodeLineNumbers(data []byte, lines map[int][]uint16) error {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		pc, err := r.ReadU2()
		if err != nil {
			return err
		}
		line, err := r.ReadU2()
		if err != nil {
			return err
		}
		lines[int(pc)] = append(lines[int(pc)], line)
	}
	return nil
}

func decodeLocalVariables(data []byte, p *Pool, labelAt func(int) Label) ([]Insn, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	var out []Insn
	for i := 0; i < int(n); i++ {
		var start, length, ni, di, index uint16
		for _, dst := range []*uint16{&start, &length, &ni, &di, &index} {
			if *dst, err = r.ReadU2(); err != nil {
				return nil, err
			}
		}
		name, err := p.Utf8(ni)
		if err != nil {
			return nil, err
		}
		desc, err := p.Utf8(di)
		if err != nil {
			return nil, err
		}
		out = append(out, LocalVariableOp(name, desc, labelAt(int(start)), labelAt(int(start)+int(length)), index))
	}
	return out, nil
}

// decodeInsns decodes a code array. Compact and wide encodings are
// normalized: xload_n/xstore_n become VarOp, ldc_w/ldc2_w become ldc,
// goto_w/jsr_w become goto/jsr.
func decodeInsns(code []byte, p *Pool, labelAt func(int) Label) ([]decodedInsn, error) {
	r := binary.NewReader(code)
	var out []decodedInsn
	for r.Len() > 0 {
		pc := r.Position()
		b, _ := r.ReadU1()
		op := Opcode(b)
		insn, err := decodeOne(r, op, pc, p, labelAt)
		if err != nil {
			return nil, fmt.Errorf("%s at offset %d: %w", op, pc, err)
		}
		out = append(out, decodedInsn{insn: insn, pc: pc})
	}
	return out, nil
}

func decodeOne(r *binary.Reader, op Opcode, pc int, p *Pool, labelAt func(int) Label) (Insn, error) {
	switch {
	case !op.Valid():
		return Insn{}, fmt.Errorf("unknown opcode 0x%02x", int(op))

	case op == OpWide:
		b, err := r.ReadU1()
		if err != nil {
			return Insn{}, err
		}
		inner := Opcode(b)
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		if inner == OpIInc {
			delta, err := r.ReadI2()
			if err != nil {
				return Insn{}, err
			}
			return IincOp(idx, delta), nil
		}
		if (inner >= OpILoad && inner <= OpALoad) || (inner >= OpIStore && inner <= OpAStore) || inner == OpRet {
			return VarOp(inner, idx), nil
		}
		return Insn{}, fmt.Errorf("wide cannot modify %s", inner)

	case op == OpBIPush:
		v, err := r.ReadI1()
		return IntOp(op, int32(v)), err
	case op == OpSIPush:
		v, err := r.ReadI2()
		return IntOp(op, int32(v)), err
	case op == OpNewArray:
		v, err := r.ReadU1()
		return IntOp(op, int32(v)), err

	case op == OpLdc:
		idx, err := r.ReadU1()
		if err != nil {
			return Insn{}, err
		}
		v, err := p.Loadable(uint16(idx))
		return LdcOp(v), err
	case op == OpLdcW || op == OpLdc2W:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		v, err := p.Loadable(idx)
		return LdcOp(v), err

	case (op >= OpILoad && op <= OpALoad) || (op >= OpIStore && op <= OpAStore) || op == OpRet:
		idx, err := r.ReadU1()
		return VarOp(op, uint16(idx)), err
	case op >= OpILoad0 && op <= OpALoad3:
		n := op - OpILoad0
		return VarOp(OpILoad+n/4, uint16(n%4)), nil
	case op >= OpIStore0 && op <= OpAStore3:
		n := op - OpIStore0
		return VarOp(OpIStore+n/4, uint16(n%4)), nil

	case op == OpIInc:
		idx, err := r.ReadU1()
		if err != nil {
			return Insn{}, err
		}
		delta, err := r.ReadI1()
		return IincOp(uint16(idx), int16(delta)), err

	case op == OpGotoW || op == OpJsrW:
		off, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		base := OpGoto
		if op == OpJsrW {
			base = OpJsr
		}
		return JumpOp(base, labelAt(pc+int(off))), nil
	case op.IsJump():
		off, err := r.ReadI2()
		return JumpOp(op, labelAt(pc+int(off))), err

	case op == OpTableSwitch:
		if err := r.Skip(switchPadding(pc)); err != nil {
			return Insn{}, err
		}
		dflt, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		low, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		high, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		if high < low || int64(high)-int64(low) >= 1<<16 {
			return Insn{}, fmt.Errorf("bad tableswitch range %d..%d", low, high)
		}
		targets := make([]Label, 0, int(high-low)+1)
		for k := low; ; k++ {
			off, err := r.ReadI4()
			if err != nil {
				return Insn{}, err
			}
			targets = append(targets, labelAt(pc+int(off)))
			if k == high {
				break
			}
		}
		return Insn{Opcode: op, Imm: TableSwitchImm{Low: low, High: high, Default: labelAt(pc + int(dflt)), Targets: targets}}, nil

	case op == OpLookupSwitch:
		if err := r.Skip(switchPadding(pc)); err != nil {
			return Insn{}, err
		}
		dflt, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		n, err := r.ReadI4()
		if err != nil {
			return Insn{}, err
		}
		if n < 0 || n > 1<<16 {
			return Insn{}, fmt.Errorf("bad lookupswitch pair count %d", n)
		}
		keys := make([]int32, n)
		targets := make([]Label, n)
		for i := range keys {
			if keys[i], err = r.ReadI4(); err != nil {
				return Insn{}, err
			}
			off, err := r.ReadI4()
			if err != nil {
				return Insn{}, err
			}
			targets[i] = labelAt(pc + int(off))
		}
		return LookupSwitchOp(labelAt(pc+int(dflt)), keys, targets), nil

	case op >= OpGetStatic && op <= OpPutField:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		owner, name, desc, _, err := p.MemberRef(idx)
		return FieldOp(op, owner, name, desc), err

	case op >= OpInvokeVirtual && op <= OpInvokeInterface:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		if op == OpInvokeInterface {
			if err := r.Skip(2); err != nil {
				return Insn{}, err
			}
		}
		owner, name, desc, tag, err := p.MemberRef(idx)
		if err != nil {
			return Insn{}, err
		}
		return Insn{Opcode: op, Imm: MethodImm{Owner: owner, Name: name, Desc: desc, Interface: tag == TagInterfaceMethodref}}, nil

	case op == OpInvokeDynamic:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		if err := r.Skip(2); err != nil {
			return Insn{}, err
		}
		c, err := p.expect(idx, TagInvokeDynamic)
		if err != nil {
			return Insn{}, err
		}
		name, desc, err := p.NameAndType(c.Index2)
		return InvokeDynamicOp(name, desc, c.Index1), err

	case op == OpNew || op == OpANewArray || op == OpCheckCast || op == OpInstanceOf:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		name, err := p.ClassName(idx)
		return TypeOp(op, name), err

	case op == OpMultiANewArray:
		idx, err := r.ReadU2()
		if err != nil {
			return Insn{}, err
		}
		dims, err := r.ReadU1()
		if err != nil {
			return Insn{}, err
		}
		name, err := p.ClassName(idx)
		return MultiANewArrayOp(name, dims), err
	}
	return Op(op), nil
}

// switchPadding returns the 0-3 alignment bytes after a switch opcode at pc.
func switchPadding(pc int) int {
	return (4 - (pc+1)%4) % 4
}

// encodeCode rebuilds the Code attribute body of m.
func encodeCode(m *Method, p *Pool) ([]byte, error) {
	list := m.Code
	if err := list.Resolve(); err != nil {
		return nil, err
	}
	insns := list.Insns()

	// pool operands are fixed before layout: ldc vs ldc_w depends on them
	cpi := make([]uint16, len(insns))
	for i, insn := range insns {
		idx, err := poolOperand(insn, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", insn, err)
		}
		cpi[i] = idx
	}

	wide := make([]bool, len(insns))
	offsets := make([]int, len(insns))
	labelPC := make([]int, list.NumLabels())
	var codeLen int
	for {
		pc := 0
		for i, insn := range insns {
			offsets[i] = pc
			if lbl, ok := insn.LabelOf(); ok {
				labelPC[lbl] = pc
			}
			pc += insnSize(insn, pc, cpi[i], wide[i], p)
		}
		codeLen = pc

		changed := false
		for i, insn := range insns {
			imm, ok := insn.Imm.(JumpImm)
			if !ok || wide[i] {
				continue
			}
			delta := labelPC[imm.Target] - offsets[i]
			if delta >= math.MinInt16 && delta <= math.MaxInt16 {
				continue
			}
			if !isUnconditional(insn.Opcode) {
				return nil, errors.New(errors.PhaseEncode, errors.KindUsage).
					Insn(insn.String()).
					Value(delta).
					Detail("branch offset %d does not fit 16 bits", delta).
					Build()
			}
			wide[i] = true
			changed = true
		}
		if !changed {
			break
		}
	}
	if codeLen == 0 || codeLen > math.MaxUint16 {
		return nil, fmt.Errorf("code length %d out of range", codeLen)
	}

	code := binary.NewWriter()
	for i, insn := range insns {
		if err := writeInsn(code, insn, offsets[i], cpi[i], wide[i], labelPC, p); err != nil {
			return nil, fmt.Errorf("%s: %w", insn, err)
		}
	}

	w := binary.NewWriter()
	w.U2(m.MaxStack)
	w.U2(m.MaxLocals)
	w.U4(uint32(codeLen))
	w.WriteBytes(code.Bytes())

	var handlers, lines, locals []Insn
	for _, insn := range insns {
		switch insn.Opcode {
		case OpTryCatch:
			handlers = append(handlers, insn)
		case OpLineNumber:
			lines = append(lines, insn)
		case OpLocalVariable:
			locals = append(locals, insn)
		}
	}

	w.U2(uint16(len(handlers)))
	for _, h := range handlers {
		tc := h.Imm.(TryCatchImm)
		w.U2(uint16(labelPC[tc.Start]))
		w.U2(uint16(labelPC[tc.End]))
		w.U2(uint16(labelPC[tc.Handler]))
		if tc.Type == "" {
			w.U2(0)
		} else {
			w.U2(p.AddClass(tc.Type))
		}
	}

	attrs := make([]Attribute, 0, len(m.CodeAttributes)+2)
	if len(lines) > 0 {
		a := binary.NewWriter()
		a.U2(uint16(len(lines)))
		for _, insn := range lines {
			ln := insn.Imm.(LineNumberImm)
			a.U2(uint16(labelPC[ln.Start]))
			a.U2(ln.Line)
		}
		attrs = append(attrs, Attribute{Name: AttrLineNumberTable, Data: a.Bytes()})
	}
	if len(locals) > 0 {
		a := binary.NewWriter()
		a.U2(uint16(len(locals)))
		for _, insn := range locals {
			lv := insn.Imm.(LocalVariableImm)
			start := labelPC[lv.Start]
			a.U2(uint16(start))
			a.U2(uint16(labelPC[lv.End] - start))
			a.U2(p.AddUtf8(lv.Name))
			a.U2(p.AddUtf8(lv.Desc))
			a.U2(lv.Index)
		}
		attrs = append(attrs, Attribute{Name: AttrLocalVariableTable, Data: a.Bytes()})
	}
	attrs = append(attrs, m.CodeAttributes...)
	writeAttributes(w, p, attrs)
	return w.Bytes(), nil
}

func isUnconditional(op Opcode) bool {
	return op == OpGoto || op == OpJsr || op == OpGotoW || op == OpJsrW
}

func poolOperand(insn Insn, p *Pool) (uint16, error) {
	switch imm := insn.Imm.(type) {
	case LdcImm:
		return p.AddLoadable(imm.Value)
	case FieldImm:
		return p.AddMember(TagFieldref, imm.Owner, imm.Name, imm.Desc), nil
	case MethodImm:
		tag := TagMethodref
		if imm.Interface || insn.Opcode == OpInvokeInterface {
			tag = TagInterfaceMethodref
		}
		return p.AddMember(tag, imm.Owner, imm.Name, imm.Desc), nil
	case InvokeDynamicImm:
		return p.add(Constant{Tag: TagInvokeDynamic, Index1: imm.Bootstrap, Index2: p.AddNameAndType(imm.Name, imm.Desc)}), nil
	case TypeImm:
		return p.AddClass(imm.Desc), nil
	case MultiANewArrayImm:
		return p.AddClass(imm.Desc), nil
	}
	return 0, nil
}

// wideConst reports whether the constant at idx needs ldc2_w.
func wideConst(p *Pool, idx uint16) bool {
	c, err := p.Get(idx)
	if err != nil {
		return false
	}
	switch c.Tag {
	case TagLong, TagDouble:
		return true
	case TagDynamic:
		_, desc, err := p.NameAndType(c.Index2)
		return err == nil && (desc == "J" || desc == "D")
	}
	return false
}

func isTypedVar(op Opcode) bool {
	return (op >= OpILoad && op <= OpALoad) || (op >= OpIStore && op <= OpAStore)
}

func insnSize(insn Insn, pc int, idx uint16, wide bool, p *Pool) int {
	if insn.Opcode.IsPseudo() {
		return 0
	}
	switch imm := insn.Imm.(type) {
	case IntImm:
		if insn.Opcode == OpSIPush {
			return 3
		}
		return 2
	case VarImm:
		switch {
		case isTypedVar(insn.Opcode) && imm.Index <= 3:
			return 1
		case imm.Index <= math.MaxUint8:
			return 2
		}
		return 4
	case IincImm:
		if imm.Index <= math.MaxUint8 && imm.Delta >= math.MinInt8 && imm.Delta <= math.MaxInt8 {
			return 3
		}
		return 6
	case LdcImm:
		if idx <= math.MaxUint8 && !wideConst(p, idx) {
			return 2
		}
		return 3
	case JumpImm:
		if wide || insn.Opcode == OpGotoW || insn.Opcode == OpJsrW {
			return 5
		}
		return 3
	case TableSwitchImm:
		return 1 + switchPadding(pc) + 12 + 4*len(imm.Targets)
	case LookupSwitchImm:
		return 1 + switchPadding(pc) + 8 + 8*len(imm.Keys)
	case FieldImm, TypeImm:
		return 3
	case MethodImm:
		if insn.Opcode == OpInvokeInterface {
			return 5
		}
		return 3
	case InvokeDynamicImm:
		return 5
	case MultiANewArrayImm:
		return 4
	}
	return 1
}

func writeInsn(w *binary.Writer, insn Insn, pc int, idx uint16, wide bool, labelPC []int, p *Pool) error {
	op := insn.Opcode
	if op.IsPseudo() {
		return nil
	}
	switch imm := insn.Imm.(type) {
	case IntImm:
		w.U1(uint8(op))
		if op == OpSIPush {
			w.I2(int16(imm.Value))
		} else {
			w.U1(uint8(imm.Value))
		}
	case VarImm:
		switch {
		case isTypedVar(op) && imm.Index <= 3:
			if op <= OpALoad {
				w.U1(uint8(OpILoad0 + (op-OpILoad)*4 + Opcode(imm.Index)))
			} else {
				w.U1(uint8(OpIStore0 + (op-OpIStore)*4 + Opcode(imm.Index)))
			}
		case imm.Index <= math.MaxUint8:
			w.U1(uint8(op))
			w.U1(uint8(imm.Index))
		default:
			w.U1(uint8(OpWide))
			w.U1(uint8(op))
			w.U2(imm.Index)
		}
	case IincImm:
		if imm.Index <= math.MaxUint8 && imm.Delta >= math.MinInt8 && imm.Delta <= math.MaxInt8 {
			w.U1(uint8(OpIInc))
			w.U1(uint8(imm.Index))
			w.U1(uint8(int8(imm.Delta)))
		} else {
			w.U1(uint8(OpWide))
			w.U1(uint8(OpIInc))
			w.U2(imm.Index)
			w.I2(imm.Delta)
		}
	case LdcImm:
		switch {
		case wideConst(p, idx):
			w.U1(uint8(OpLdc2W))
			w.U2(idx)
		case idx <= math.MaxUint8:
			w.U1(uint8(OpLdc))
			w.U1(uint8(idx))
		default:
			w.U1(uint8(OpLdcW))
			w.U2(idx)
		}
	case JumpImm:
		delta := labelPC[imm.Target] - pc
		if wide || op == OpGotoW || op == OpJsrW {
			if op == OpJsr || op == OpJsrW {
				w.U1(uint8(OpJsrW))
			} else {
				w.U1(uint8(OpGotoW))
			}
			w.I4(int32(delta))
		} else {
			w.U1(uint8(op))
			w.I2(int16(delta))
		}
	case TableSwitchImm:
		if int(imm.High-imm.Low)+1 != len(imm.Targets) {
			return fmt.Errorf("tableswitch %d..%d has %d targets", imm.Low, imm.High, len(imm.Targets))
		}
		w.U1(uint8(op))
		w.WriteBytes(make([]byte, switchPadding(pc)))
		w.I4(int32(labelPC[imm.Default] - pc))
		w.I4(imm.Low)
		w.I4(imm.High)
		for _, t := range imm.Targets {
			w.I4(int32(labelPC[t] - pc))
		}
	case LookupSwitchImm:
		if len(imm.Keys) != len(imm.Targets) {
			return fmt.Errorf("lookupswitch has %d keys and %d targets", len(imm.Keys), len(imm.Targets))
		}
		w.U1(uint8(op))
		w.WriteBytes(make([]byte, switchPadding(pc)))
		w.I4(int32(labelPC[imm.Default] - pc))
		w.I4(int32(len(imm.Keys)))
		for i, k := range imm.Keys {
			w.I4(k)
			w.I4(int32(labelPC[imm.Targets[i]] - pc))
		}
	case FieldImm, TypeImm:
		w.U1(uint8(op))
		w.U2(idx)
	case MethodImm:
		w.U1(uint8(op))
		w.U2(idx)
		if op == OpInvokeInterface {
			slots, err := ParamSlots(imm.Desc)
			if err != nil {
				return err
			}
			w.U1(uint8(slots + 1))
			w.U1(0)
		}
	case InvokeDynamicImm:
		w.U1(uint8(op))
		w.U2(idx)
		w.U2(0)
	case MultiANewArrayImm:
		w.U1(uint8(op))
		w.U2(idx)
		w.U1(imm.Dims)
	default:
		if !op.Valid() {
			return fmt.Errorf("invalid opcode %d", int(op))
		}
		w.U1(uint8(op))
	}
	return nil
}

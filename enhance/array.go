package enhance

import (
	"go.uber.org/zap"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/stack"
)

const (
	objectClass = "java/lang/Object"
	classClass  = "java/lang/Class"
	arrayClass  = "java/lang/reflect/Array"
)

// arrayCasts maps op - iastore to the array type the store narrows to.
// The byte/boolean entry is unused.
var arrayCasts = [8]string{
	"[I",
	"[J",
	"[F",
	"[D",
	"[Ljava/lang/Object;",
	"",
	"[C",
	"[S",
}

// ArrayStore rewrites array element stores.
//
// bastore becomes a runtime dispatch on the array's component type:
//
//	dup_x2; pop; dup_x2; pop; dup_x2
//	invokevirtual Object.getClass; invokevirtual Class.getComponentType
//	getstatic Boolean.TYPE
//	if_acmpne Lbyte
//	invokestatic Array.setBoolean(Object, int, boolean)
//	goto Ljoin
//	Lbyte: invokestatic Array.setByte(Object, int, byte)
//	Ljoin:
//
// The other stores get a checkcast to their array type right after the
// instruction that pushed the array reference.
type ArrayStore struct{}

// ShouldEnhance implements Enhancer.
func (ArrayStore) ShouldEnhance(insn classfile.Insn) bool {
	return insn.Opcode.IsArrayStore()
}

// Enhance implements Enhancer.
func (ArrayStore) Enhance(ctx *Context, ref classfile.Ref) (classfile.Ref, error) {
	op := ctx.List.At(ref).Opcode
	if op == classfile.OpBAStore {
		// [arr idx val] -> [arr idx val arr]
		return dispatch(ctx, ref, []classfile.Insn{
			classfile.Op(classfile.OpDupX2),
			classfile.Op(classfile.OpPop),
			classfile.Op(classfile.OpDupX2),
			classfile.Op(classfile.OpPop),
			classfile.Op(classfile.OpDupX2),
		},
			classfile.InvokeOp(classfile.OpInvokeStatic, arrayClass, "setBoolean", "(Ljava/lang/Object;IZ)V"),
			classfile.InvokeOp(classfile.OpInvokeStatic, arrayClass, "setByte", "(Ljava/lang/Object;IB)V"),
		)
	}
	return ref, narrow(ctx, ref, arrayCasts[op-classfile.OpIAStore], -1)
}

// ArrayLoad resolves baload to Array.getBoolean or Array.getByte with the
// same component-type check ArrayStore uses for bastore. Other loads are
// left alone: a checkcast on the array would widen what the verifier knows
// about the element (String[] to Object[]) and break its typed uses.
type ArrayLoad struct{}

// ShouldEnhance implements Enhancer.
func (ArrayLoad) ShouldEnhance(insn classfile.Insn) bool {
	return insn.Opcode == classfile.OpBALoad
}

// Enhance implements Enhancer.
func (ArrayLoad) Enhance(ctx *Context, ref classfile.Ref) (classfile.Ref, error) {
	// [arr idx] -> [arr idx arr]
	return dispatch(ctx, ref, []classfile.Insn{
		classfile.Op(classfile.OpSwap),
		classfile.Op(classfile.OpDupX1),
	},
		classfile.InvokeOp(classfile.OpInvokeStatic, arrayClass, "getBoolean", "(Ljava/lang/Object;I)Z"),
		classfile.InvokeOp(classfile.OpInvokeStatic, arrayClass, "getByte", "(Ljava/lang/Object;I)B"),
	)
}

// dispatch replaces the node at ref with a component-type check choosing
// between the boolean and the byte accessor. arrange must leave a copy of
// the array reference on top of the original operands. It returns the
// rejoin label, so scanning continues after the inserted code.
func dispatch(ctx *Context, ref classfile.Ref, arrange []classfile.Insn, boolCall, byteCall classfile.Insn) (classfile.Ref, error) {
	list := ctx.List
	original := list.At(ref)
	byteL, join := list.NewLabel(), list.NewLabel()

	seq := append(arrange,
		classfile.InvokeOp(classfile.OpInvokeVirtual, objectClass, "getClass", "()Ljava/lang/Class;"),
		classfile.InvokeOp(classfile.OpInvokeVirtual, classClass, "getComponentType", "()Ljava/lang/Class;"),
		classfile.FieldOp(classfile.OpGetStatic, "java/lang/Boolean", "TYPE", "Ljava/lang/Class;"),
		classfile.JumpOp(classfile.OpIfACmpNe, byteL),
		boolCall,
		classfile.JumpOp(classfile.OpGoto, join),
		classfile.LabelOp(byteL),
		byteCall,
		classfile.LabelOp(join),
	)
	last := list.InsertListAfter(ref, seq...)
	list.Remove(ref)

	ctx.logger().Debug("dispatching byte/boolean array access",
		zap.String("method", ctx.Method),
		zap.Stringer("insn", original))
	return last, nil
}

// narrow inserts checkcast desc after the node that produced the array
// reference consumed by the access at ref. When the backward scan cannot
// reach the producer inside the current block the access is left alone.
func narrow(ctx *Context, ref classfile.Ref, desc string, target int) error {
	list := ctx.List
	at, err := stack.BackUntilStackSizedAt(list, ref, target, false, ctx.Boundaries)
	if err != nil {
		return err
	}
	ok, err := reaches(list, at, ref, target)
	if err != nil {
		return err
	}
	if !ok {
		ctx.logger().Debug("array producer not found, skipping checkcast",
			zap.String("method", ctx.Method),
			zap.Stringer("insn", list.At(ref)))
		return nil
	}
	cast := classfile.TypeOp(classfile.OpCheckCast, desc)
	if list.At(at) == cast {
		return nil
	}
	list.InsertAfter(at, cast)
	return nil
}

// reaches reports whether the nodes after at, up to and including end,
// change the stack by exactly target.
func reaches(list *classfile.InsnList, at, end classfile.Ref, target int) (bool, error) {
	if at == classfile.NoRef {
		return false, nil
	}
	sum := 0
	for r := list.Next(at); ; r = list.Next(r) {
		if r == classfile.NoRef {
			return false, nil
		}
		delta, err := stack.Change(list.At(r))
		if err != nil {
			return false, err
		}
		sum += delta
		if r == end {
			return sum == target, nil
		}
	}
}

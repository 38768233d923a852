package classfile

import "strconv"

// Class file magic number and the version range the codec accepts.
const (
	Magic uint32 = 0xCAFEBABE

	MinMajorVersion uint16 = 45
	MaxMajorVersion uint16 = 69
)

// Opcode is a JVM instruction opcode. Real opcodes occupy 0x00-0xC9;
// negative values are pseudo-opcodes for list-resident metadata that never
// occupies a code-array position.
type Opcode int

// Pseudo-opcodes.
const (
	OpLabel         Opcode = -1 // jump target marker
	OpLineNumber    Opcode = -2 // LineNumberTable entry
	OpFrame         Opcode = -3 // StackMapTable entry
	OpTryCatch      Opcode = -4 // exception table entry
	OpLocalVariable Opcode = -5 // LocalVariableTable entry
)

// JVM opcodes, Java SE 8+ (JVMS chapter 6).
const (
	OpNop             Opcode = 0x00
	OpAConstNull      Opcode = 0x01
	OpIConstM1        Opcode = 0x02
	OpIConst0         Opcode = 0x03
	OpIConst1         Opcode = 0x04
	OpIConst2         Opcode = 0x05
	OpIConst3         Opcode = 0x06
	OpIConst4         Opcode = 0x07
	OpIConst5         Opcode = 0x08
	OpLConst0         Opcode = 0x09
	OpLConst1         Opcode = 0x0A
	OpFConst0         Opcode = 0x0B
	OpFConst1         Opcode = 0x0C
	OpFConst2         Opcode = 0x0D
	OpDConst0         Opcode = 0x0E
	OpDConst1         Opcode = 0x0F
	OpBIPush          Opcode = 0x10
	OpSIPush          Opcode = 0x11
	OpLdc             Opcode = 0x12
	OpLdcW            Opcode = 0x13
	OpLdc2W           Opcode = 0x14
	OpILoad           Opcode = 0x15
	OpLLoad           Opcode = 0x16
	OpFLoad           Opcode = 0x17
	OpDLoad           Opcode = 0x18
	OpALoad           Opcode = 0x19
	OpILoad0          Opcode = 0x1A
	OpILoad1          Opcode = 0x1B
	OpILoad2          Opcode = 0x1C
	OpILoad3          Opcode = 0x1D
	OpLLoad0          Opcode = 0x1E
	OpLLoad1          Opcode = 0x1F
	OpLLoad2          Opcode = 0x20
	OpLLoad3          Opcode = 0x21
	OpFLoad0          Opcode = 0x22
	OpFLoad1          Opcode = 0x23
	OpFLoad2          Opcode = 0x24
	OpFLoad3          Opcode = 0x25
	OpDLoad0          Opcode = 0x26
	OpDLoad1          Opcode = 0x27
	OpDLoad2          Opcode = 0x28
	OpDLoad3          Opcode = 0x29
	OpALoad0          Opcode = 0x2A
	OpALoad1          Opcode = 0x2B
	OpALoad2          Opcode = 0x2C
	OpALoad3          Opcode = 0x2D
	OpIALoad          Opcode = 0x2E
	OpLALoad          Opcode = 0x2F
	OpFALoad          Opcode = 0x30
	OpDALoad          Opcode = 0x31
	OpAALoad          Opcode = 0x32
	OpBALoad          Opcode = 0x33
	OpCALoad          Opcode = 0x34
	OpSALoad          Opcode = 0x35
	OpIStore          Opcode = 0x36
	OpLStore          Opcode = 0x37
	OpFStore          Opcode = 0x38
	OpDStore          Opcode = 0x39
	OpAStore          Opcode = 0x3A
	OpIStore0         Opcode = 0x3B
	OpIStore1         Opcode = 0x3C
	OpIStore2         Opcode = 0x3D
	OpIStore3         Opcode = 0x3E
	OpLStore0         Opcode = 0x3F
	OpLStore1         Opcode = 0x40
	OpLStore2         Opcode = 0x41
	OpLStore3         Opcode = 0x42
	OpFStore0         Opcode = 0x43
	OpFStore1         Opcode = 0x44
	OpFStore2         Opcode = 0x45
	OpFStore3         Opcode = 0x46
	OpDStore0         Opcode = 0x47
	OpDStore1         Opcode = 0x48
	OpDStore2         Opcode = 0x49
	OpDStore3         Opcode = 0x4A
	OpAStore0         Opcode = 0x4B
	OpAStore1         Opcode = 0x4C
	OpAStore2         Opcode = 0x4D
	OpAStore3         Opcode = 0x4E
	OpIAStore         Opcode = 0x4F
	OpLAStore         Opcode = 0x50
	OpFAStore         Opcode = 0x51
	OpDAStore         Opcode = 0x52
	OpAAStore         Opcode = 0x53
	OpBAStore         Opcode = 0x54
	OpCAStore         Opcode = 0x55
	OpSAStore         Opcode = 0x56
	OpPop             Opcode = 0x57
	OpPop2            Opcode = 0x58
	OpDup             Opcode = 0x59
	OpDupX1           Opcode = 0x5A
	OpDupX2           Opcode = 0x5B
	OpDup2            Opcode = 0x5C
	OpDup2X1          Opcode = 0x5D
	OpDup2X2          Opcode = 0x5E
	OpSwap            Opcode = 0x5F
	OpIAdd            Opcode = 0x60
	OpLAdd            Opcode = 0x61
	OpFAdd            Opcode = 0x62
	OpDAdd            Opcode = 0x63
	OpISub            Opcode = 0x64
	OpLSub            Opcode = 0x65
	OpFSub            Opcode = 0x66
	OpDSub            Opcode = 0x67
	OpIMul            Opcode = 0x68
	OpLMul            Opcode = 0x69
	OpFMul            Opcode = 0x6A
	OpDMul            Opcode = 0x6B
	OpIDiv            Opcode = 0x6C
	OpLDiv            Opcode = 0x6D
	OpFDiv            Opcode = 0x6E
	OpDDiv            Opcode = 0x6F
	OpIRem            Opcode = 0x70
	OpLRem            Opcode = 0x71
	OpFRem            Opcode = 0x72
	OpDRem            Opcode = 0x73
	OpINeg            Opcode = 0x74
	OpLNeg            Opcode = 0x75
	OpFNeg            Opcode = 0x76
	OpDNeg            Opcode = 0x77
	OpIShl            Opcode = 0x78
	OpLShl            Opcode = 0x79
	OpIShr            Opcode = 0x7A
	OpLShr            Opcode = 0x7B
	OpIUShr           Opcode = 0x7C
	OpLUShr           Opcode = 0x7D
	OpIAnd            Opcode = 0x7E
	OpLAnd            Opcode = 0x7F
	OpIOr             Opcode = 0x80
	OpLOr             Opcode = 0x81
	OpIXor            Opcode = 0x82
	OpLXor            Opcode = 0x83
	OpIInc            Opcode = 0x84
	OpI2L             Opcode = 0x85
	OpI2F             Opcode = 0x86
	OpI2D             Opcode = 0x87
	OpL2I             Opcode = 0x88
	OpL2F             Opcode = 0x89
	OpL2D             Opcode = 0x8A
	OpF2I             Opcode = 0x8B
	OpF2L             Opcode = 0x8C
	OpF2D             Opcode = 0x8D
	OpD2I             Opcode = 0x8E
	OpD2L             Opcode = 0x8F
	OpD2F             Opcode = 0x90
	OpI2B             Opcode = 0x91
	OpI2C             Opcode = 0x92
	OpI2S             Opcode = 0x93
	OpLCmp            Opcode = 0x94
	OpFCmpL           Opcode = 0x95
	OpFCmpG           Opcode = 0x96
	OpDCmpL           Opcode = 0x97
	OpDCmpG           Opcode = 0x98
	OpIfEq            Opcode = 0x99
	OpIfNe            Opcode = 0x9A
	OpIfLt            Opcode = 0x9B
	OpIfGe            Opcode = 0x9C
	OpIfGt            Opcode = 0x9D
	OpIfLe            Opcode = 0x9E
	OpIfICmpEq        Opcode = 0x9F
	OpIfICmpNe        Opcode = 0xA0
	OpIfICmpLt        Opcode = 0xA1
	OpIfICmpGe        Opcode = 0xA2
	OpIfICmpGt        Opcode = 0xA3
	OpIfICmpLe        Opcode = 0xA4
	OpIfACmpEq        Opcode = 0xA5
	OpIfACmpNe        Opcode = 0xA6
	OpGoto            Opcode = 0xA7
	OpJsr             Opcode = 0xA8
	OpRet             Opcode = 0xA9
	OpTableSwitch     Opcode = 0xAA
	OpLookupSwitch    Opcode = 0xAB
	OpIReturn         Opcode = 0xAC
	OpLReturn         Opcode = 0xAD
	OpFReturn         Opcode = 0xAE
	OpDReturn         Opcode = 0xAF
	OpAReturn         Opcode = 0xB0
	OpReturn          Opcode = 0xB1
	OpGetStatic       Opcode = 0xB2
	OpPutStatic       Opcode = 0xB3
	OpGetField        Opcode = 0xB4
	OpPutField        Opcode = 0xB5
	OpInvokeVirtual   Opcode = 0xB6
	OpInvokeSpecial   Opcode = 0xB7
	OpInvokeStatic    Opcode = 0xB8
	OpInvokeInterface Opcode = 0xB9
	OpInvokeDynamic   Opcode = 0xBA
	OpNew             Opcode = 0xBB
	OpNewArray        Opcode = 0xBC
	OpANewArray       Opcode = 0xBD
	OpArrayLength     Opcode = 0xBE
	OpAThrow          Opcode = 0xBF
	OpCheckCast       Opcode = 0xC0
	OpInstanceOf      Opcode = 0xC1
	OpMonitorEnter    Opcode = 0xC2
	OpMonitorExit     Opcode = 0xC3
	OpWide            Opcode = 0xC4
	OpMultiANewArray  Opcode = 0xC5
	OpIfNull          Opcode = 0xC6
	OpIfNonNull       Opcode = 0xC7
	OpGotoW           Opcode = 0xC8
	OpJsrW            Opcode = 0xC9
)

var opcodeNames = [...]string{
	OpNop:             "nop",
	OpAConstNull:      "aconst_null",
	OpIConstM1:        "iconst_m1",
	OpIConst0:         "iconst_0",
	OpIConst1:         "iconst_1",
	OpIConst2:         "iconst_2",
	OpIConst3:         "iconst_3",
	OpIConst4:         "iconst_4",
	OpIConst5:         "iconst_5",
	OpLConst0:         "lconst_0",
	OpLConst1:         "lconst_1",
	OpFConst0:         "fconst_0",
	OpFConst1:         "fconst_1",
	OpFConst2:         "fconst_2",
	OpDConst0:         "dconst_0",
	OpDConst1:         "dconst_1",
	OpBIPush:          "bipush",
	OpSIPush:          "sipush",
	OpLdc:             "ldc",
	OpLdcW:            "ldc_w",
	OpLdc2W:           "ldc2_w",
	OpILoad:           "iload",
	OpLLoad:           "lload",
	OpFLoad:           "fload",
	OpDLoad:           "dload",
	OpALoad:           "aload",
	OpILoad0:          "iload_0",
	OpILoad1:          "iload_1",
	OpILoad2:          "iload_2",
	OpILoad3:          "iload_3",
	OpLLoad0:          "lload_0",
	OpLLoad1:          "lload_1",
	OpLLoad2:          "lload_2",
	OpLLoad3:          "lload_3",
	OpFLoad0:          "fload_0",
	OpFLoad1:          "fload_1",
	OpFLoad2:          "fload_2",
	OpFLoad3:          "fload_3",
	OpDLoad0:          "dload_0",
	OpDLoad1:          "dload_1",
	OpDLoad2:          "dload_2",
	OpDLoad3:          "dload_3",
	OpALoad0:          "aload_0",
	OpALoad1:          "aload_1",
	OpALoad2:          "aload_2",
	OpALoad3:          "aload_3",
	OpIALoad:          "iaload",
	OpLALoad:          "laload",
	OpFALoad:          "faload",
	OpDALoad:          "daload",
	OpAALoad:          "aaload",
	OpBALoad:          "baload",
	OpCALoad:          "caload",
	OpSALoad:          "saload",
	OpIStore:          "istore",
	OpLStore:          "lstore",
	OpFStore:          "fstore",
	OpDStore:          "dstore",
	OpAStore:          "astore",
	OpIStore0:         "istore_0",
	OpIStore1:         "istore_1",
	OpIStore2:         "istore_2",
	OpIStore3:         "istore_3",
	OpLStore0:         "lstore_0",
	OpLStore1:         "lstore_1",
	OpLStore2:         "lstore_2",
	OpLStore3:         "lstore_3",
	OpFStore0:         "fstore_0",
	OpFStore1:         "fstore_1",
	OpFStore2:         "fstore_2",
	OpFStore3:         "fstore_3",
	OpDStore0:         "dstore_0",
	OpDStore1:         "dstore_1",
	OpDStore2:         "dstore_2",
	OpDStore3:         "dstore_3",
	OpAStore0:         "astore_0",
	OpAStore1:         "astore_1",
	OpAStore2:         "astore_2",
	OpAStore3:         "astore_3",
	OpIAStore:         "iastore",
	OpLAStore:         "lastore",
	OpFAStore:         "fastore",
	OpDAStore:         "dastore",
	OpAAStore:         "aastore",
	OpBAStore:         "bastore",
	OpCAStore:         "castore",
	OpSAStore:         "sastore",
	OpPop:             "pop",
	OpPop2:            "pop2",
	OpDup:             "dup",
	OpDupX1:           "dup_x1",
	OpDupX2:           "dup_x2",
	OpDup2:            "dup2",
	OpDup2X1:          "dup2_x1",
	OpDup2X2:          "dup2_x2",
	OpSwap:            "swap",
	OpIAdd:            "iadd",
	OpLAdd:            "ladd",
	OpFAdd:            "fadd",
	OpDAdd:            "dadd",
	OpISub:            "isub",
	OpLSub:            "lsub",
	OpFSub:            "fsub",
	OpDSub:            "dsub",
	OpIMul:            "imul",
	OpLMul:            "lmul",
	OpFMul:            "fmul",
	OpDMul:            "dmul",
	OpIDiv:            "idiv",
	OpLDiv:            "ldiv",
	OpFDiv:            "fdiv",
	OpDDiv:            "ddiv",
	OpIRem:            "irem",
	OpLRem:            "lrem",
	OpFRem:            "frem",
	OpDRem:            "drem",
	OpINeg:            "ineg",
	OpLNeg:            "lneg",
	OpFNeg:            "fneg",
	OpDNeg:            "dneg",
	OpIShl:            "ishl",
	OpLShl:            "lshl",
	OpIShr:            "ishr",
	OpLShr:            "lshr",
	OpIUShr:           "iushr",
	OpLUShr:           "lushr",
	OpIAnd:            "iand",
	OpLAnd:            "land",
	OpIOr:             "ior",
	OpLOr:             "lor",
	OpIXor:            "ixor",
	OpLXor:            "lxor",
	OpIInc:            "iinc",
	OpI2L:             "i2l",
	OpI2F:             "i2f",
	OpI2D:             "i2d",
	OpL2I:             "l2i",
	OpL2F:             "l2f",
	OpL2D:             "l2d",
	OpF2I:             "f2i",
	OpF2L:             "f2l",
	OpF2D:             "f2d",
	OpD2I:             "d2i",
	OpD2L:             "d2l",
	OpD2F:             "d2f",
	OpI2B:             "i2b",
	OpI2C:             "i2c",
	OpI2S:             "i2s",
	OpLCmp:            "lcmp",
	OpFCmpL:           "fcmpl",
	OpFCmpG:           "fcmpg",
	OpDCmpL:           "dcmpl",
	OpDCmpG:           "dcmpg",
	OpIfEq:            "ifeq",
	OpIfNe:            "ifne",
	OpIfLt:            "iflt",
	OpIfGe:            "ifge",
	OpIfGt:            "ifgt",
	OpIfLe:            "ifle",
	OpIfICmpEq:        "if_icmpeq",
	OpIfICmpNe:        "if_icmpne",
	OpIfICmpLt:        "if_icmplt",
	OpIfICmpGe:        "if_icmpge",
	OpIfICmpGt:        "if_icmpgt",
	OpIfICmpLe:        "if_icmple",
	OpIfACmpEq:        "if_acmpeq",
	OpIfACmpNe:        "if_acmpne",
	OpGoto:            "goto",
	OpJsr:             "jsr",
	OpRet:             "ret",
	OpTableSwitch:     "tableswitch",
	OpLookupSwitch:    "lookupswitch",
	OpIReturn:         "ireturn",
	OpLReturn:         "lreturn",
	OpFReturn:         "freturn",
	OpDReturn:         "dreturn",
	OpAReturn:         "areturn",
	OpReturn:          "return",
	OpGetStatic:       "getstatic",
	OpPutStatic:       "putstatic",
	OpGetField:        "getfield",
	OpPutField:        "putfield",
	OpInvokeVirtual:   "invokevirtual",
	OpInvokeSpecial:   "invokespecial",
	OpInvokeStatic:    "invokestatic",
	OpInvokeInterface: "invokeinterface",
	OpInvokeDynamic:   "invokedynamic",
	OpNew:             "new",
	OpNewArray:        "newarray",
	OpANewArray:       "anewarray",
	OpArrayLength:     "arraylength",
	OpAThrow:          "athrow",
	OpCheckCast:       "checkcast",
	OpInstanceOf:      "instanceof",
	OpMonitorEnter:    "monitorenter",
	OpMonitorExit:     "monitorexit",
	OpWide:            "wide",
	OpMultiANewArray:  "multianewarray",
	OpIfNull:          "ifnull",
	OpIfNonNull:       "ifnonnull",
	OpGotoW:           "goto_w",
	OpJsrW:            "jsr_w",
}

var pseudoNames = map[Opcode]string{
	OpLabel:         "label",
	OpLineNumber:    "line",
	OpFrame:         "frame",
	OpTryCatch:      "trycatch",
	OpLocalVariable: "localvar",
}

// String returns the mnemonic of the opcode.
func (op Opcode) String() string {
	if op >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	if name, ok := pseudoNames[op]; ok {
		return name
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// Valid reports whether op is a real JVM opcode.
func (op Opcode) Valid() bool {
	return op >= OpNop && op <= OpJsrW
}

// IsPseudo reports whether op is a pseudo-opcode.
func (op Opcode) IsPseudo() bool {
	return op < 0
}

// IsReturn reports whether op is one of the six typed method-return opcodes.
func (op Opcode) IsReturn() bool {
	return op >= OpIReturn && op <= OpReturn
}

// IsConditionalJump reports whether op is a conditional branch.
func (op Opcode) IsConditionalJump() bool {
	return (op >= OpIfEq && op <= OpIfACmpNe) || op == OpIfNull || op == OpIfNonNull
}

// IsJump reports whether op transfers control to a label operand.
func (op Opcode) IsJump() bool {
	return op.IsConditionalJump() || op == OpGoto || op == OpJsr || op == OpGotoW || op == OpJsrW
}

// IsSwitch reports whether op is tableswitch or lookupswitch.
func (op Opcode) IsSwitch() bool {
	return op == OpTableSwitch || op == OpLookupSwitch
}

// IsArrayStore reports whether op stores into an array element.
func (op Opcode) IsArrayStore() bool {
	return op >= OpIAStore && op <= OpSAStore
}

// IsArrayLoad reports whether op loads an array element.
func (op Opcode) IsArrayLoad() bool {
	return op >= OpIALoad && op <= OpSALoad
}

// IsLocalLoad reports whether op reads a local variable slot.
func (op Opcode) IsLocalLoad() bool {
	return op >= OpILoad && op <= OpALoad3
}

// IsLocalStore reports whether op writes a local variable slot.
func (op Opcode) IsLocalStore() bool {
	return op >= OpIStore && op <= OpAStore3
}

// IsInvoke reports whether op is one of the invoke family.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokeVirtual && op <= OpInvokeDynamic
}

// Access flags for classes, fields and methods.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020 // classes
	AccSynchronized uint16 = 0x0020 // methods
	AccBridge       uint16 = 0x0040
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
)

// Constant pool tags.
const (
	TagUtf8               byte = 1
	TagInteger            byte = 3
	TagFloat              byte = 4
	TagLong               byte = 5
	TagDouble             byte = 6
	TagClass              byte = 7
	TagString             byte = 8
	TagFieldref           byte = 9
	TagMethodref          byte = 10
	TagInterfaceMethodref byte = 11
	TagNameAndType        byte = 12
	TagMethodHandle       byte = 15
	TagMethodType         byte = 16
	TagDynamic            byte = 17
	TagInvokeDynamic      byte = 18
	TagModule             byte = 19
	TagPackage            byte = 20
)

// Array element type codes used by newarray.
const (
	TBoolean = 4
	TChar    = 5
	TFloat   = 6
	TDouble  = 7
	TByte    = 8
	TShort   = 9
	TInt     = 10
	TLong    = 11
)

// Attribute names the codec interprets.
const (
	AttrCode               = "Code"
	AttrLineNumberTable    = "LineNumberTable"
	AttrLocalVariableTable = "LocalVariableTable"
	AttrStackMapTable      = "StackMapTable"
)

package classfile

// Class file major versions around the switch to type-checking
// verification.
const (
	// MajorJava6 is the last version the JVM verifies by type inference,
	// without StackMapTable frames.
	MajorJava6 uint16 = 50
	// MajorJava7 makes StackMapTable frames mandatory.
	MajorJava7 uint16 = 51
)

// class attributes that only exist from version 51 on
var post6Attributes = map[string]bool{
	"BootstrapMethods":    true,
	"Module":              true,
	"NestHost":            true,
	"NestMembers":         true,
	"PermittedSubclasses": true,
	"Record":              true,
}

// HasTag reports whether the pool holds an entry with one of tags.
func (p *Pool) HasTag(tags ...byte) bool {
	if p == nil {
		return false
	}
	for _, c := range p.entries {
		for _, t := range tags {
			if c.Tag == t {
				return true
			}
		}
	}
	return false
}

// Post6Features lists the constructs of c that need a class file version
// above MajorJava6. An empty result means c can be lowered with
// LowerToJava6.
func (c *Class) Post6Features() []string {
	var found []string
	if c.Pool.HasTag(TagMethodHandle, TagMethodType, TagDynamic, TagInvokeDynamic, TagModule, TagPackage) {
		found = append(found, "method handle or dynamic constants")
	}
	for _, a := range c.Attributes {
		if post6Attributes[a.Name] {
			found = append(found, a.Name+" attribute")
		}
	}
	for _, m := range c.Methods {
		if c.Access&AccInterface != 0 && m.Code != nil && m.Name != "<clinit>" {
			found = append(found, "interface method body "+m.Key())
		}
		if m.Code != nil && usesDynamic(m.Code) {
			found = append(found, "invokedynamic or method handle constant in "+m.Key())
		}
	}
	return found
}

// LowerToJava6 sets the class file version to MajorJava6. Callers check
// Post6Features first.
func (c *Class) LowerToJava6() {
	if c.Major > MajorJava6 {
		c.Major, c.Minor = MajorJava6, 0
	}
}

func usesDynamic(l *InsnList) bool {
	for r := l.First(); r != NoRef; r = l.Next(r) {
		insn := l.At(r)
		if insn.Opcode == OpInvokeDynamic {
			return true
		}
		if imm, ok := insn.Imm.(LdcImm); ok {
			switch imm.Value.(type) {
			case MethodTypeConst, PoolConst:
				return true
			}
		}
	}
	return false
}

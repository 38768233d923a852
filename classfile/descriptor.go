package classfile

import (
	"fmt"
)

// MethodType is a parsed method descriptor.
type MethodType struct {
	Return string
	Params []string
}

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return field descriptors.
func ParseMethodDescriptor(desc string) (MethodType, error) {
	var mt MethodType
	if len(desc) < 3 || desc[0] != '(' {
		return mt, fmt.Errorf("invalid method descriptor %q", desc)
	}
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		end, err := fieldTypeEnd(desc, pos)
		if err != nil {
			return mt, err
		}
		mt.Params = append(mt.Params, desc[pos:end])
		pos = end
	}
	if pos >= len(desc) {
		return mt, fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	pos++
	if pos < len(desc) && desc[pos] == 'V' && pos+1 == len(desc) {
		mt.Return = "V"
		return mt, nil
	}
	end, err := fieldTypeEnd(desc, pos)
	if err != nil {
		return mt, err
	}
	if end != len(desc) {
		return mt, fmt.Errorf("invalid method descriptor %q: trailing data", desc)
	}
	mt.Return = desc[pos:end]
	return mt, nil
}

// fieldTypeEnd returns the index just past the field descriptor starting at pos.
func fieldTypeEnd(desc string, pos int) (int, error) {
	start := pos
	for pos < len(desc) && desc[pos] == '[' {
		pos++
	}
	if pos >= len(desc) {
		return 0, fmt.Errorf("invalid descriptor %q at %d", desc, start)
	}
	switch desc[pos] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return pos + 1, nil
	case 'L':
		for i := pos + 1; i < len(desc); i++ {
			switch desc[i] {
			case ';':
				if i == pos+1 {
					return 0, fmt.Errorf("invalid descriptor %q: empty class name", desc)
				}
				return i + 1, nil
			case '(', ')', '[':
				return 0, fmt.Errorf("invalid descriptor %q at %d", desc, i)
			}
		}
		return 0, fmt.Errorf("invalid descriptor %q: unterminated class name", desc)
	}
	return 0, fmt.Errorf("invalid descriptor %q: unexpected %q at %d", desc, desc[pos], pos)
}

// ValidFieldDescriptor reports whether desc is exactly one field descriptor.
func ValidFieldDescriptor(desc string) bool {
	end, err := fieldTypeEnd(desc, 0)
	return err == nil && end == len(desc)
}

// ParamCount returns the number of declared parameters of a method
// descriptor. Every parameter counts once regardless of its width.
func ParamCount(desc string) (int, error) {
	mt, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	return len(mt.Params), nil
}

// ParamSlots returns the number of local slots the parameters occupy
// (long and double take two).
func ParamSlots(desc string) (int, error) {
	mt, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range mt.Params {
		n += SlotSize(p)
	}
	return n, nil
}

// ReturnsValue reports whether the method descriptor has a non-void return.
func ReturnsValue(desc string) (bool, error) {
	mt, err := ParseMethodDescriptor(desc)
	if err != nil {
		return false, err
	}
	return mt.Return != "V", nil
}

// SlotSize returns 2 for long and double descriptors, 1 otherwise.
func SlotSize(desc string) int {
	if desc == "J" || desc == "D" {
		return 2
	}
	return 1
}

// IsReference reports whether desc names an object or array type.
func IsReference(desc string) bool {
	return len(desc) > 0 && (desc[0] == 'L' || desc[0] == '[')
}

// family maps a field descriptor to the offset of its typed instruction
// within a load/store/return group: I, L, F, D, A.
func family(desc string) int {
	if desc == "" {
		return 4
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return 0
	case 'J':
		return 1
	case 'F':
		return 2
	case 'D':
		return 3
	}
	return 4
}

// LoadOpcode returns the typed local load for a field descriptor.
func LoadOpcode(desc string) Opcode {
	return OpILoad + Opcode(family(desc))
}

// StoreOpcode returns the typed local store for a field descriptor.
func StoreOpcode(desc string) Opcode {
	return OpIStore + Opcode(family(desc))
}

// ReturnOpcode returns the typed return for a method return descriptor.
func ReturnOpcode(desc string) Opcode {
	if desc == "V" {
		return OpReturn
	}
	return OpIReturn + Opcode(family(desc))
}

// DescForLoad returns the widest field descriptor a typed load or store
// opcode can address; references report java/lang/Object.
func DescForLoad(op Opcode) string {
	var base Opcode
	switch {
	case op >= OpILoad && op <= OpALoad:
		base = op - OpILoad
	case op >= OpIStore && op <= OpAStore:
		base = op - OpIStore
	case op >= OpILoad0 && op <= OpALoad3:
		base = (op - OpILoad0) / 4
	case op >= OpIStore0 && op <= OpAStore3:
		base = (op - OpIStore0) / 4
	default:
		return ""
	}
	return [...]string{"I", "J", "F", "D", "Ljava/lang/Object;"}[base]
}

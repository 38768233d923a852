package classfile

import (
	"fmt"
	"math"

	"github.com/wippyai/jvm-yield/classfile/internal/binary"
)

// Constant is one constant pool entry. Which fields are meaningful depends
// on Tag; the second slot of a long or double entry has Tag 0.
type Constant struct {
	Str    string
	Long   int64
	Double float64
	Int    int32
	Float  float32
	Index1 uint16
	Index2 uint16
	Kind   byte // reference kind of CONSTANT_MethodHandle
	Tag    byte
}

// Pool is a class constant pool. Index 0 is unused.
type Pool struct {
	entries []Constant
	index   map[Constant]uint16
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make([]Constant, 1)}
}

// Count returns constant_pool_count (entries plus one).
func (p *Pool) Count() int { return len(p.entries) }

// Get returns the entry at i.
func (p *Pool) Get(i uint16) (Constant, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range (count %d)", i, len(p.entries))
	}
	c := p.entries[i]
	if c.Tag == 0 {
		return Constant{}, fmt.Errorf("constant pool index %d is the upper half of a wide entry", i)
	}
	return c, nil
}

func (p *Pool) expect(i uint16, tag byte) (Constant, error) {
	c, err := p.Get(i)
	if err != nil {
		return c, err
	}
	if c.Tag != tag {
		return c, fmt.Errorf("constant pool index %d: tag %d, want %d", i, c.Tag, tag)
	}
	return c, nil
}

// Utf8 returns the string of a CONSTANT_Utf8 entry.
func (p *Pool) Utf8(i uint16) (string, error) {
	c, err := p.expect(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Str, nil
}

// ClassName returns the internal name of a CONSTANT_Class entry.
func (p *Pool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Index1)
}

// NameAndType returns the name and descriptor of a CONSTANT_NameAndType entry.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.Index1); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(c.Index2)
	return name, desc, err
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) MemberRef(i uint16) (owner, name, desc string, tag byte, err error) {
	c, err := p.Get(i)
	if err != nil {
		return "", "", "", 0, err
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return "", "", "", 0, fmt.Errorf("constant pool index %d: tag %d is not a member reference", i, c.Tag)
	}
	if owner, err = p.ClassName(c.Index1); err != nil {
		return "", "", "", 0, err
	}
	name, desc, err = p.NameAndType(c.Index2)
	return owner, name, desc, c.Tag, err
}

// Loadable converts an ldc operand to its LdcImm value.
func (p *Pool) Loadable(i uint16) (any, error) {
	c, err := p.Get(i)
	if err != nil {
		return nil, err
	}
	switch c.Tag {
	case TagInteger:
		return c.Int, nil
	case TagFloat:
		return c.Float, nil
	case TagLong:
		return c.Long, nil
	case TagDouble:
		return c.Double, nil
	case TagString:
		return p.Utf8(c.Index1)
	case TagClass:
		name, err := p.Utf8(c.Index1)
		return ClassConst{Name: name}, err
	case TagMethodType:
		desc, err := p.Utf8(c.Index1)
		return MethodTypeConst{Desc: desc}, err
	case TagMethodHandle, TagDynamic:
		return PoolConst{Index: i}, nil
	}
	return nil, fmt.Errorf("constant pool index %d: tag %d is not loadable", i, c.Tag)
}

func (p *Pool) add(c Constant) uint16 {
	if p.index == nil {
		p.index = make(map[Constant]uint16, len(p.entries))
		for n := 1; n < len(p.entries); n++ {
			if e := p.entries[n]; e.Tag != 0 {
				if _, ok := p.index[e]; !ok {
					p.index[e] = uint16(n)
				}
			}
		}
	}
	if idx, ok := p.index[c]; ok {
		return idx
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if c.Tag == TagLong || c.Tag == TagDouble {
		p.entries = append(p.entries, Constant{})
	}
	p.index[c] = idx
	return idx
}

// AddUtf8 returns the index of a Utf8 entry for s, adding it if needed.
func (p *Pool) AddUtf8(s string) uint16 {
	return p.add(Constant{Tag: TagUtf8, Str: s})
}

// AddClass returns the index of a Class entry.
func (p *Pool) AddClass(name string) uint16 {
	return p.add(Constant{Tag: TagClass, Index1: p.AddUtf8(name)})
}

// AddString returns the index of a String entry.
func (p *Pool) AddString(s string) uint16 {
	return p.add(Constant{Tag: TagString, Index1: p.AddUtf8(s)})
}

// AddNameAndType returns the index of a NameAndType entry.
func (p *Pool) AddNameAndType(name, desc string) uint16 {
	return p.add(Constant{Tag: TagNameAndType, Index1: p.AddUtf8(name), Index2: p.AddUtf8(desc)})
}

// AddMember returns the index of a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) AddMember(tag byte, owner, name, desc string) uint16 {
	return p.add(Constant{Tag: tag, Index1: p.AddClass(owner), Index2: p.AddNameAndType(name, desc)})
}

// AddLoadable returns the index of the pool entry backing an ldc value.
func (p *Pool) AddLoadable(v any) (uint16, error) {
	switch c := v.(type) {
	case int32:
		return p.add(Constant{Tag: TagInteger, Int: c}), nil
	case float32:
		// keyed by bits so NaN payloads and -0 stay distinct
		return p.add(Constant{Tag: TagFloat, Float: c, Index1: uint16(math.Float32bits(c) >> 16), Index2: uint16(math.Float32bits(c))}), nil
	case int64:
		return p.add(Constant{Tag: TagLong, Long: c}), nil
	case float64:
		return p.add(Constant{Tag: TagDouble, Double: c, Long: int64(math.Float64bits(c))}), nil
	case string:
		return p.AddString(c), nil
	case ClassConst:
		return p.AddClass(c.Name), nil
	case MethodTypeConst:
		return p.add(Constant{Tag: TagMethodType, Index1: p.AddUtf8(c.Desc)}), nil
	case PoolConst:
		if _, err := p.Get(c.Index); err != nil {
			return 0, err
		}
		return c.Index, nil
	}
	return 0, fmt.Errorf("unsupported ldc constant %T", v)
}

func readPool(r *binary.Reader) (*Pool, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant pool count is zero")
	}
	p := &Pool{entries: make([]Constant, count)}
	for i := 1; i < int(count); i++ {
		c, err := readConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		p.entries[i] = c
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++
		}
	}
	return p, nil
}

func readConstant(r *binary.Reader) (Constant, error) {
	tag, err := r.ReadU1()
	if err != nil {
		return Constant{}, err
	}
	c := Constant{Tag: tag}
	switch tag {
	case TagUtf8:
		n, err := r.ReadU2()
		if err != nil {
			return c, err
		}
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return c, err
		}
		c.Str = string(b)
	case TagInteger:
		c.Int, err = r.ReadI4()
	case TagFloat:
		var bits uint32
		bits, err = r.ReadU4()
		c.Float = math.Float32frombits(bits)
		c.Index1, c.Index2 = uint16(bits>>16), uint16(bits)
	case TagLong:
		var v uint64
		v, err = r.ReadU8()
		c.Long = int64(v)
	case TagDouble:
		var v uint64
		v, err = r.ReadU8()
		c.Double = math.Float64frombits(v)
		c.Long = int64(v)
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		c.Index1, err = r.ReadU2()
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		if c.Index1, err = r.ReadU2(); err != nil {
			return c, err
		}
		c.Index2, err = r.ReadU2()
	case TagMethodHandle:
		if c.Kind, err = r.ReadU1(); err != nil {
			return c, err
		}
		c.Index1, err = r.ReadU2()
	default:
		return c, fmt.Errorf("unknown constant tag %d", tag)
	}
	return c, err
}

func (p *Pool) write(w *binary.Writer) error {
	if len(p.entries) > math.MaxUint16 {
		return fmt.Errorf("constant pool too large: %d entries", len(p.entries))
	}
	w.U2(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		w.U1(c.Tag)
		switch c.Tag {
		case TagUtf8:
			if len(c.Str) > math.MaxUint16 {
				return fmt.Errorf("constant %d: utf8 too long", i)
			}
			w.U2(uint16(len(c.Str)))
			w.WriteBytes([]byte(c.Str))
		case TagInteger:
			w.I4(c.Int)
		case TagFloat:
			w.U4(math.Float32bits(c.Float))
		case TagLong, TagDouble:
			w.U8(uint64(c.Long))
			i++
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.U2(c.Index1)
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			w.U2(c.Index1)
			w.U2(c.Index2)
		case TagMethodHandle:
			w.U1(c.Kind)
			w.U2(c.Index1)
		default:
			return fmt.Errorf("constant %d: unknown tag %d", i, c.Tag)
		}
	}
	return nil
}

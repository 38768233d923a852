package classfile

import (
	"errors"
	"fmt"

	"github.com/wippyai/jvm-yield/classfile/internal/binary"
)

// Parsing errors returned by ParseClass.
var (
	ErrInvalidMagic   = errors.New("invalid class file magic")
	ErrInvalidVersion = errors.New("unsupported class file version")
)

// Attribute is an attribute kept as raw bytes.
type Attribute struct {
	Name string
	Data []byte
}

// Field is a field_info entry.
type Field struct {
	Name       string
	Desc       string
	Attributes []Attribute
	Access     uint16
}

// Method is a method_info entry. Code is nil for abstract and native methods.
// Exception handlers and local variable entries live in Code as
// OpTryCatch and OpLocalVariable nodes.
type Method struct {
	Code           *InsnList
	Name           string
	Desc           string
	CodeAttributes []Attribute // Code sub-attributes the codec does not interpret
	Attributes     []Attribute
	Access         uint16
	MaxStack       uint16
	MaxLocals      uint16
}

// IsStatic reports whether the method has ACC_STATIC.
func (m *Method) IsStatic() bool { return m.Access&AccStatic != 0 }

// Key returns "name+desc", unique within a class.
func (m *Method) Key() string { return m.Name + m.Desc }

// Class is a decoded class file.
type Class struct {
	Pool       *Pool
	Name       string
	Super      string
	Interfaces []string
	Fields     []*Field
	Methods    []*Method
	Attributes []Attribute
	Minor      uint16
	Major      uint16
	Access     uint16
}

// Method finds a method by name and descriptor. An empty desc matches the
// first method with the name.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && (desc == "" || m.Desc == desc) {
			return m
		}
	}
	return nil
}

// Field finds a field by name.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddField appends a field unless one with the same name exists.
func (c *Class) AddField(access uint16, name, desc string) *Field {
	if f := c.Field(name); f != nil {
		return f
	}
	f := &Field{Access: access, Name: name, Desc: desc}
	c.Fields = append(c.Fields, f)
	return f
}

// ParseClass decodes a class file.
func ParseClass(data []byte) (*Class, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	c := &Class{}
	if c.Minor, err = r.ReadU2(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if c.Major, err = r.ReadU2(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if c.Major < MinMajorVersion || c.Major > MaxMajorVersion {
		return nil, fmt.Errorf("%w: %d.%d", ErrInvalidVersion, c.Major, c.Minor)
	}

	if c.Pool, err = readPool(r); err != nil {
		return nil, fmt.Errorf("constant pool: %w", err)
	}
	p := c.Pool

	if c.Access, err = r.ReadU2(); err != nil {
		return nil, err
	}
	this, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	if c.Name, err = p.ClassName(this); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	super, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if c.Super, err = p.ClassName(super); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := p.ClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	if n, err = r.ReadU2(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		f := &Field{}
		if f.Access, f.Name, f.Desc, err = readMember(r, p); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if f.Attributes, err = readAttributes(r, p); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		c.Fields = append(c.Fields, f)
	}

	if n, err = r.ReadU2(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		m := &Method{}
		if m.Access, m.Name, m.Desc, err = readMember(r, p); err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		attrs, err := readAttributes(r, p)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Key(), err)
		}
		for _, a := range attrs {
			if a.Name != AttrCode {
				m.Attributes = append(m.Attributes, a)
				continue
			}
			if err := decodeCode(m, a.Data, p); err != nil {
				return nil, fmt.Errorf("method %s: %w", m.Key(), err)
			}
		}
		c.Methods = append(c.Methods, m)
	}

	if c.Attributes, err = readAttributes(r, p); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after class", r.Len())
	}
	return c, nil
}

func readMember(r *binary.Reader, p *Pool) (access uint16, name, desc string, err error) {
	if access, err = r.ReadU2(); err != nil {
		return
	}
	ni, err := r.ReadU2()
	if err != nil {
		return
	}
	di, err := r.ReadU2()
	if err != nil {
		return
	}
	if name, err = p.Utf8(ni); err != nil {
		return
	}
	desc, err = p.Utf8(di)
	return
}

func readAttributes(r *binary.Reader, p *Pool) ([]Attribute, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	var out []Attribute
	for i := 0; i < int(n); i++ {
		ni, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := p.Utf8(ni)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		size, err := r.ReadU4()
		if err != nil {
			return nil, err
		}
		data, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		out = append(out, Attribute{Name: name, Data: data})
	}
	return out, nil
}

// Encode serializes the class. Constants the model references but the pool
// lacks are appended; existing indices are preserved.
func (c *Class) Encode() ([]byte, error) {
	if c.Pool == nil {
		c.Pool = NewPool()
	}
	p := c.Pool

	// Method bodies first: they may add constants.
	codes := make([][]byte, len(c.Methods))
	for i, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		data, err := encodeCode(m, p)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Key(), err)
		}
		codes[i] = data
	}

	body := binary.NewWriter()
	body.U2(c.Access)
	body.U2(p.AddClass(c.Name))
	if c.Super == "" {
		body.U2(0)
	} else {
		body.U2(p.AddClass(c.Super))
	}
	body.U2(uint16(len(c.Interfaces)))
	for _, iface := range c.Interfaces {
		body.U2(p.AddClass(iface))
	}

	body.U2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body.U2(f.Access)
		body.U2(p.AddUtf8(f.Name))
		body.U2(p.AddUtf8(f.Desc))
		writeAttributes(body, p, f.Attributes)
	}

	body.U2(uint16(len(c.Methods)))
	for i, m := range c.Methods {
		body.U2(m.Access)
		body.U2(p.AddUtf8(m.Name))
		body.U2(p.AddUtf8(m.Desc))
		attrs := m.Attributes
		if codes[i] != nil {
			attrs = append([]Attribute{{Name: AttrCode, Data: codes[i]}}, attrs...)
		}
		writeAttributes(body, p, attrs)
	}
	writeAttributes(body, p, c.Attributes)

	w := binary.NewWriter()
	w.U4(Magic)
	w.U2(c.Minor)
	w.U2(c.Major)
	if err := p.write(w); err != nil {
		return nil, err
	}
	w.WriteBytes(body.Bytes())
	return w.Bytes(), nil
}

func writeAttributes(w *binary.Writer, p *Pool, attrs []Attribute) {
	w.U2(uint16(len(attrs)))
	for _, a := range attrs {
		w.U2(p.AddUtf8(a.Name))
		w.U4(uint32(len(a.Data)))
		w.WriteBytes(a.Data)
	}
}

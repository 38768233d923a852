package weave

import (
	"strconv"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/enhance"
)

// Defaults applied to zero Config fields.
const (
	DefaultYieldName  = "yieldReturn"
	DefaultBreakName  = "yieldBreak"
	DefaultStateField = "$state"
	DefaultSlotPrefix = "$slot"
)

// CallSite identifies an instance call on the generator, e.g. the yield
// call. Empty Owner or Desc match any owner or descriptor.
type CallSite struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
	Desc  string `yaml:"desc"`
}

// Match reports whether insn is a non-static call to the site.
func (c CallSite) Match(insn classfile.Insn) bool {
	switch insn.Opcode {
	case classfile.OpInvokeVirtual, classfile.OpInvokeSpecial, classfile.OpInvokeInterface:
	default:
		return false
	}
	owner, name, desc, ok := insn.Member()
	if !ok || name != c.Name {
		return false
	}
	return (c.Owner == "" || c.Owner == owner) && (c.Desc == "" || c.Desc == desc)
}

// Config configures the weaving of one method.
type Config struct {
	Yield CallSite
	Break CallSite

	// Enhancers run over the woven code. Nil means enhance.DefaultChain.
	Enhancers enhance.Chain

	// StateField prefixes the int field holding the state to resume at.
	// Each generator gets its own: StateField$<method>.
	StateField string

	// SlotPrefix names the fields that hold captured locals:
	// SlotPrefix$<method>$<index>.
	SlotPrefix string

	// StrictClose makes a region closed at a nonzero height a fault.
	StrictClose bool
}

func (c Config) withDefaults() Config {
	if c.Yield.Name == "" {
		c.Yield.Name = DefaultYieldName
	}
	if c.Break.Name == "" {
		c.Break.Name = DefaultBreakName
	}
	if c.Enhancers == nil {
		c.Enhancers = enhance.DefaultChain()
	}
	if c.StateField == "" {
		c.StateField = DefaultStateField
	}
	if c.SlotPrefix == "" {
		c.SlotPrefix = DefaultSlotPrefix
	}
	return c
}

// StateFieldName returns the state field of the generator method name.
func (c Config) StateFieldName(method string) string {
	c = c.withDefaults()
	return c.StateField + "$" + method
}

// SlotFieldName returns the field holding local index of the generator
// method name.
func (c Config) SlotFieldName(method string, index uint16) string {
	c = c.withDefaults()
	return c.SlotPrefix + "$" + method + "$" + strconv.Itoa(int(index))
}

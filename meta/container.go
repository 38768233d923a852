package meta

import (
	"sort"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/errors"
)

// LabelAllocator hands out fresh labels. *classfile.InsnList implements it.
type LabelAllocator interface {
	NewLabel() classfile.Label
}

var _ LabelAllocator = (*classfile.InsnList)(nil)

// Slot is a local variable captured across suspension points.
type Slot struct {
	Name  string
	Desc  string
	Index uint16
}

// LoadOpcode returns the typed load for the slot's descriptor.
func (s Slot) LoadOpcode() classfile.Opcode { return classfile.LoadOpcode(s.Desc) }

// StoreOpcode returns the typed store for the slot's descriptor.
func (s Slot) StoreOpcode() classfile.Opcode { return classfile.StoreOpcode(s.Desc) }

// Container tracks resume states and captured slots for one method.
//
// State IDs are dense in [1, count] and handed out from count down to 1.
type Container struct {
	labels    LabelAllocator
	slots     map[uint16]Slot
	stateLbls []classfile.Label
	count     int
	remaining int
}

// New creates a container for count resume states. Later slots replace
// earlier ones with the same index.
func New(labels LabelAllocator, count int, slots ...Slot) *Container {
	if count < 0 {
		count = 0
	}
	c := &Container{
		labels:    labels,
		slots:     make(map[uint16]Slot, len(slots)),
		stateLbls: make([]classfile.Label, count),
		count:     count,
		remaining: count,
	}
	for i := range c.stateLbls {
		c.stateLbls[i] = classfile.NoLabel
	}
	for _, s := range slots {
		c.slots[s.Index] = s
	}
	return c
}

// Count returns the total number of states.
func (c *Container) Count() int { return c.count }

// Remaining returns how many states TakeState can still hand out.
func (c *Container) Remaining() int { return c.remaining }

// TakeState returns the next unused state ID. IDs count down from Count to
// 1; taking more than Count states is a usage fault.
func (c *Container) TakeState() (int, error) {
	if c.remaining <= 0 {
		return 0, errors.New(errors.PhaseMetadata, errors.KindUsage).
			Value(c.count).
			Detail("state budget of %d exhausted", c.count).
			Build()
	}
	id := c.remaining
	c.remaining--
	return id, nil
}

func (c *Container) checkState(id int) error {
	if id < 1 || id > c.count {
		return errors.New(errors.PhaseMetadata, errors.KindUsage).
			Value(id).
			Detail("state %d outside [1, %d]", id, c.count).
			Build()
	}
	return nil
}

// StateLabel returns the resume label of state id, allocating it on first
// use. Repeated calls return the same label.
func (c *Container) StateLabel(id int) (classfile.Label, error) {
	if err := c.checkState(id); err != nil {
		return classfile.NoLabel, err
	}
	if c.stateLbls[id-1] == classfile.NoLabel {
		c.stateLbls[id-1] = c.labels.NewLabel()
	}
	return c.stateLbls[id-1], nil
}

// SetStateLabel records an externally allocated resume label for id.
func (c *Container) SetStateLabel(id int, l classfile.Label) error {
	if err := c.checkState(id); err != nil {
		return err
	}
	c.stateLbls[id-1] = l
	return nil
}

// StateLabels returns the labels assigned so far, keyed by state ID.
func (c *Container) StateLabels() map[int]classfile.Label {
	out := make(map[int]classfile.Label)
	for i, l := range c.stateLbls {
		if l != classfile.NoLabel {
			out[i+1] = l
		}
	}
	return out
}

// Slot looks up the captured slot at index.
func (c *Container) Slot(index uint16) (Slot, bool) {
	s, ok := c.slots[index]
	return s, ok
}

// Slots returns the captured slots in ascending index order.
func (c *Container) Slots() []Slot {
	out := make([]Slot, 0, len(c.slots))
	for _, s := range c.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// CheckBound fails unless every assigned state label is placed in list.
func (c *Container) CheckBound(list *classfile.InsnList) error {
	for i, l := range c.stateLbls {
		if l == classfile.NoLabel {
			continue
		}
		if list.Bound(l) == classfile.NoRef {
			return errors.New(errors.PhaseMetadata, errors.KindUsage).
				Value(i + 1).
				Detail("resume label %s of state %d is not placed", l, i+1).
				Build()
		}
	}
	return nil
}

package classfile

import (
	"github.com/wippyai/jvm-yield/errors"
)

// Ref is a stable handle to a node of an InsnList. Refs are never reused:
// a removed node keeps its handle and simply stops being linked.
type Ref int32

// NoRef is the "no node" handle.
const NoRef Ref = -1

// Visitor receives instructions in program order.
type Visitor interface {
	Visit(insn Insn) error
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(insn Insn) error

// Visit calls f(insn).
func (f VisitorFunc) Visit(insn Insn) error { return f(insn) }

type node struct {
	insn   Insn
	prev   Ref
	next   Ref
	linked bool
}

// InsnList is a doubly linked instruction sequence stored in an arena.
// All structural operations are O(1).
type InsnList struct {
	nodes  []node
	bound  []Ref // label -> placement node, NoRef when unbound
	dups   []Label
	first  Ref
	last   Ref
	length int
}

// NewList creates an empty list.
func NewList() *InsnList {
	return &InsnList{first: NoRef, last: NoRef}
}

// NewLabel allocates an unbound label.
func (l *InsnList) NewLabel() Label {
	l.bound = append(l.bound, NoRef)
	return Label(len(l.bound) - 1)
}

// NumLabels returns the number of labels allocated so far.
func (l *InsnList) NumLabels() int {
	return len(l.bound)
}

// Bound returns the placement node of lbl, or NoRef if it is not linked.
func (l *InsnList) Bound(lbl Label) Ref {
	if lbl < 0 || int(lbl) >= len(l.bound) {
		return NoRef
	}
	return l.bound[lbl]
}

// Len returns the number of linked nodes.
func (l *InsnList) Len() int { return l.length }

// First returns the head node.
func (l *InsnList) First() Ref { return l.first }

// Last returns the tail node.
func (l *InsnList) Last() Ref { return l.last }

// At returns the instruction stored at ref.
func (l *InsnList) At(ref Ref) Insn {
	return l.nodes[ref].insn
}

// Set replaces the instruction at ref, keeping label bindings consistent.
func (l *InsnList) Set(ref Ref, insn Insn) {
	n := &l.nodes[ref]
	if n.linked {
		l.unbind(ref)
	}
	n.insn = insn
	if n.linked {
		l.bind(ref)
	}
}

// Next returns the node after ref, or NoRef.
func (l *InsnList) Next(ref Ref) Ref {
	if ref == NoRef {
		return l.first
	}
	return l.nodes[ref].next
}

// Prev returns the node before ref, or NoRef.
func (l *InsnList) Prev(ref Ref) Ref {
	if ref == NoRef {
		return l.last
	}
	return l.nodes[ref].prev
}

// Linked reports whether ref is currently part of the sequence.
func (l *InsnList) Linked(ref Ref) bool {
	return ref >= 0 && int(ref) < len(l.nodes) && l.nodes[ref].linked
}

func (l *InsnList) alloc(insn Insn) Ref {
	l.nodes = append(l.nodes, node{insn: insn, prev: NoRef, next: NoRef})
	return Ref(len(l.nodes) - 1)
}

func (l *InsnList) bind(ref Ref) {
	lbl, ok := l.nodes[ref].insn.LabelOf()
	if !ok || lbl < 0 {
		return
	}
	for int(lbl) >= len(l.bound) {
		l.bound = append(l.bound, NoRef)
	}
	if l.bound[lbl] != NoRef && l.bound[lbl] != ref {
		l.dups = append(l.dups, lbl)
		return
	}
	l.bound[lbl] = ref
}

func (l *InsnList) unbind(ref Ref) {
	lbl, ok := l.nodes[ref].insn.LabelOf()
	if !ok || lbl < 0 || int(lbl) >= len(l.bound) {
		return
	}
	if l.bound[lbl] != ref {
		return
	}
	l.bound[lbl] = NoRef
	for _, d := range l.dups {
		if d != lbl {
			continue
		}
		for r := l.first; r != NoRef; r = l.nodes[r].next {
			if got, ok := l.nodes[r].insn.LabelOf(); ok && got == lbl && r != ref {
				l.bound[lbl] = r
				return
			}
		}
		return
	}
}

// link places an unlinked node between prev and next.
func (l *InsnList) link(ref, prev, next Ref) {
	n := &l.nodes[ref]
	n.prev, n.next, n.linked = prev, next, true
	if prev == NoRef {
		l.first = ref
	} else {
		l.nodes[prev].next = ref
	}
	if next == NoRef {
		l.last = ref
	} else {
		l.nodes[next].prev = ref
	}
	l.length++
	l.bind(ref)
}

// Append adds insn at the tail.
func (l *InsnList) Append(insn Insn) Ref {
	ref := l.alloc(insn)
	l.link(ref, l.last, NoRef)
	return ref
}

// Prepend adds insn at the head.
func (l *InsnList) Prepend(insn Insn) Ref {
	ref := l.alloc(insn)
	l.link(ref, NoRef, l.first)
	return ref
}

// InsertAfter places insn right after at. at == NoRef prepends.
func (l *InsnList) InsertAfter(at Ref, insn Insn) Ref {
	if at == NoRef {
		return l.Prepend(insn)
	}
	ref := l.alloc(insn)
	l.link(ref, at, l.nodes[at].next)
	return ref
}

// InsertBefore places insn right before at. at == NoRef appends.
func (l *InsnList) InsertBefore(at Ref, insn Insn) Ref {
	if at == NoRef {
		return l.Append(insn)
	}
	ref := l.alloc(insn)
	l.link(ref, l.nodes[at].prev, at)
	return ref
}

// InsertListAfter places seq after at in order and returns the ref of the
// last inserted node (at when seq is empty).
func (l *InsnList) InsertListAfter(at Ref, seq ...Insn) Ref {
	for _, insn := range seq {
		at = l.InsertAfter(at, insn)
	}
	return at
}

// InsertListBefore places seq before at in order and returns the ref of the
// first inserted node (at when seq is empty).
func (l *InsnList) InsertListBefore(at Ref, seq ...Insn) Ref {
	first := at
	for n, insn := range seq {
		ref := l.InsertBefore(at, insn)
		if n == 0 {
			first = ref
		}
	}
	return first
}

// Remove unlinks ref. The handle stays valid for At but no longer
// participates in traversal.
func (l *InsnList) Remove(ref Ref) {
	n := &l.nodes[ref]
	if !n.linked {
		return
	}
	l.unbind(ref)
	if n.prev == NoRef {
		l.first = n.next
	} else {
		l.nodes[n.prev].next = n.next
	}
	if n.next == NoRef {
		l.last = n.prev
	} else {
		l.nodes[n.next].prev = n.prev
	}
	n.prev, n.next, n.linked = NoRef, NoRef, false
	l.length--
}

// Refs returns the linked handles in order.
func (l *InsnList) Refs() []Ref {
	out := make([]Ref, 0, l.length)
	for r := l.first; r != NoRef; r = l.nodes[r].next {
		out = append(out, r)
	}
	return out
}

// Insns returns the linked instructions in order.
func (l *InsnList) Insns() []Insn {
	out := make([]Insn, 0, l.length)
	for r := l.first; r != NoRef; r = l.nodes[r].next {
		out = append(out, l.nodes[r].insn)
	}
	return out
}

// Accept streams the list into v.
func (l *InsnList) Accept(v Visitor) error {
	for r := l.first; r != NoRef; r = l.nodes[r].next {
		if err := v.Visit(l.nodes[r].insn); err != nil {
			return err
		}
	}
	return nil
}

// Visit appends insn, making the list a Visitor sink.
func (l *InsnList) Visit(insn Insn) error {
	l.Append(insn)
	return nil
}

// Clone returns a deep copy with identical refs and label numbering.
func (l *InsnList) Clone() *InsnList {
	c := &InsnList{
		nodes:  make([]node, len(l.nodes)),
		bound:  append([]Ref(nil), l.bound...),
		dups:   append([]Label(nil), l.dups...),
		first:  l.first,
		last:   l.last,
		length: l.length,
	}
	copy(c.nodes, l.nodes)
	for i := range c.nodes {
		c.nodes[i].insn = cloneInsn(c.nodes[i].insn)
	}
	return c
}

// Fork returns an empty list that continues this list's label numbering:
// labels allocated here stay meaningful in the fork, all of them unbound.
func (l *InsnList) Fork() *InsnList {
	f := NewList()
	f.bound = make([]Ref, len(l.bound))
	for i := range f.bound {
		f.bound[i] = NoRef
	}
	return f
}

func cloneInsn(insn Insn) Insn {
	switch imm := insn.Imm.(type) {
	case TableSwitchImm:
		imm.Targets = append([]Label(nil), imm.Targets...)
		insn.Imm = imm
	case LookupSwitchImm:
		imm.Keys = append([]int32(nil), imm.Keys...)
		imm.Targets = append([]Label(nil), imm.Targets...)
		insn.Imm = imm
	case FrameImm:
		imm.Raw = append([]byte(nil), imm.Raw...)
		insn.Imm = imm
	}
	return insn
}

// Resolve checks that every label is placed at most once and that every
// label referenced by a linked instruction is bound.
func (l *InsnList) Resolve() error {
	if len(l.dups) > 0 {
		// a duplicate is only fatal while both placements are linked
		for _, lbl := range l.dups {
			placed := 0
			for r := l.first; r != NoRef; r = l.nodes[r].next {
				if got, ok := l.nodes[r].insn.LabelOf(); ok && got == lbl {
					placed++
				}
			}
			if placed > 1 {
				return errors.New(errors.PhaseEncode, errors.KindUsage).
					Value(lbl).
					Detail("label %s placed %d times", lbl, placed).
					Build()
			}
		}
	}
	for r := l.first; r != NoRef; r = l.nodes[r].next {
		insn := l.nodes[r].insn
		for _, lbl := range insn.Labels() {
			if l.Bound(lbl) == NoRef {
				return errors.New(errors.PhaseEncode, errors.KindUsage).
					Insn(insn.String()).
					Value(lbl).
					Detail("label %s is not bound", lbl).
					Build()
			}
		}
	}
	return nil
}

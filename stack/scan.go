package stack

import (
	"github.com/wippyai/jvm-yield/classfile"
)

// BackUntilStackSizedAt walks backwards from start, summing stack deltas
// (start included), and returns the node after which code can be inserted
// so that it runs where the stack held the values consumed by start.
//
// The walk stops when the running total equals target, when the previous
// node is a jump or switch, or when it is one of boundaries. With
// followZeroRun the result keeps moving back over zero-delta nodes under the
// same stop rules. Finally the result moves forward over label nodes that
// directly follow it, so inserted code never lands in front of a label.
//
// NoRef means the walk ran past the head of the list. For an array store
// (delta -3) a target of -1 yields the node that pushed the array reference.
func BackUntilStackSizedAt(list *classfile.InsnList, start classfile.Ref, target int, followZeroRun bool, boundaries map[classfile.Ref]bool) (classfile.Ref, error) {
	stops := func(r classfile.Ref) bool {
		if r == classfile.NoRef || boundaries[r] {
			return true
		}
		op := list.At(r).Opcode
		return op.IsJump() || op.IsSwitch()
	}

	size := 0
	back := start
	for {
		delta, err := Change(list.At(back))
		if err != nil {
			return classfile.NoRef, err
		}
		size += delta
		back = list.Prev(back)
		if stops(back) || size == target {
			break
		}
	}

	if followZeroRun {
		for !stops(back) {
			delta, err := Change(list.At(back))
			if err != nil {
				return classfile.NoRef, err
			}
			if delta != 0 {
				break
			}
			back = list.Prev(back)
		}
	}

	for back != classfile.NoRef {
		next := list.Next(back)
		if next == classfile.NoRef || list.At(next).Opcode != classfile.OpLabel {
			break
		}
		back = next
	}
	return back, nil
}

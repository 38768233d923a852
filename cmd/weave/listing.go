package main

import (
	"fmt"
	"strings"

	"github.com/wippyai/jvm-yield/classfile"
	"github.com/wippyai/jvm-yield/stack"
)

// renderClass lists every method with code, one instruction per line,
// prefixed by the stack height on entry.
func renderClass(c *classfile.Class, styled bool) string {
	var b strings.Builder
	for i, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		renderMethod(&b, c.Name, m, styled)
	}
	return b.String()
}

func renderMethod(b *strings.Builder, owner string, m *classfile.Method, styled bool) {
	header := fmt.Sprintf("%s.%s%s", owner, m.Name, m.Desc)
	stats := fmt.Sprintf("max_stack=%d max_locals=%d", m.MaxStack, m.MaxLocals)
	if styled {
		header = funcStyle.Render(header)
		stats = helpStyle.Render(stats)
	}
	fmt.Fprintf(b, "%s  %s\n", header, stats)

	heights, err := stack.Analyze(m.Code)
	for ref := m.Code.First(); ref != classfile.NoRef; ref = m.Code.Next(ref) {
		insn := m.Code.At(ref)
		col := "    "
		if heights != nil {
			if h, ok := heights.At(ref); ok {
				col = fmt.Sprintf("%4d", h)
			} else if !insn.Opcode.IsPseudo() {
				col = "   -"
			}
		}
		if styled {
			col = typeStyle.Render(col)
		}
		text := insn.String()
		if insn.Opcode == classfile.OpLabel {
			fmt.Fprintf(b, "%s  %s\n", col, text)
			continue
		}
		fmt.Fprintf(b, "%s      %s\n", col, text)
	}
	if err != nil {
		msg := fmt.Sprintf("  stack: %v", err)
		if styled {
			msg = errorStyle.Render(msg)
		}
		b.WriteString(msg + "\n")
	}
}

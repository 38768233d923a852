// Package classfile provides a JVM class file model with decoding and encoding.
//
// Method bodies are decoded into an InsnList: an arena of instruction nodes
// addressed by stable Ref handles and linked in program order. Branch targets,
// exception ranges, line numbers and local variable scopes refer to Label
// handles whose placement nodes (OpLabel) live in the same list, so the list
// can be rewritten freely and offsets are only computed again on encode.
//
// # Parsing
//
//	data, _ := os.ReadFile("Numbers.class")
//	class, err := classfile.ParseClass(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m := class.Method("next", "()Z")
//	for r := m.Code.First(); r != classfile.NoRef; r = m.Code.Next(r) {
//	    fmt.Println(m.Code.At(r))
//	}
//
// # Normalization
//
// The decoder normalizes equivalent encodings so rewriting code sees one
// form per operation:
//
//   - xload_n / xstore_n become the indexed form with a VarImm
//   - ldc_w and ldc2_w become ldc with an LdcImm
//   - goto_w and jsr_w become goto and jsr
//   - wide prefixes fold into the VarImm or IincImm operand
//
// The encoder picks the compact form again, widens goto and jsr when an
// offset does not fit 16 bits and rejects out-of-range conditional branches.
//
// # Limitations
//
// StackMapTable is never recomputed. Decoding keeps it as an opaque code
// attribute, which stays valid only while the code is untouched; weave
// drops it from every method it rewrites and lowers the class to version
// 50 (see Class.Post6Features), where the verifier does not read frames.
package classfile

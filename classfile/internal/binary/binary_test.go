package binary

import (
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderBigEndian(t *testing.T) {
	r := NewReader([]byte{0xCA, 0xFE, 0xBA, 0xBE, 0xFF, 0xFE, 0x00, 0x34})

	magic, err := r.ReadU4()
	if err != nil || magic != 0xCAFEBABE {
		t.Fatalf("ReadU4 = %#x, %v", magic, err)
	}
	neg, err := r.ReadI2()
	if err != nil || neg != -2 {
		t.Fatalf("ReadI2 = %d, %v", neg, err)
	}
	v, err := r.ReadU2()
	if err != nil || v != 0x34 {
		t.Fatalf("ReadU2 = %#x, %v", v, err)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestReaderTruncated(t *testing.T) {
	tests := []struct {
		name string
		read func(r *Reader) error
	}{
		{"u2", func(r *Reader) error { _, err := r.ReadU2(); return err }},
		{"u4", func(r *Reader) error { _, err := r.ReadU4(); return err }},
		{"u8", func(r *Reader) error { _, err := r.ReadU8(); return err }},
		{"bytes", func(r *Reader) error { _, err := r.ReadBytes(5); return err }},
		{"skip", func(r *Reader) error { return r.Skip(2) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader([]byte{0x01})
			if err := tc.read(r); !errors.Is(err, ErrTruncated) {
				t.Errorf("expected ErrTruncated, got %v", err)
			}
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.U1(0x7F)
	w.U2(0xBEEF)
	w.I4(-5)
	w.U8(1 << 40)
	w.U4(0)
	w.PatchU4(w.Len()-4, 0xDEADBEEF)

	r := NewReader(w.Bytes())
	if v, _ := r.ReadU1(); v != 0x7F {
		t.Errorf("U1 = %#x", v)
	}
	if v, _ := r.ReadU2(); v != 0xBEEF {
		t.Errorf("U2 = %#x", v)
	}
	if v, _ := r.ReadI4(); v != -5 {
		t.Errorf("I4 = %d", v)
	}
	if v, _ := r.ReadU8(); v != 1<<40 {
		t.Errorf("U8 = %d", v)
	}
	if v, _ := r.ReadU4(); v != 0xDEADBEEF {
		t.Errorf("patched U4 = %#x", v)
	}
}

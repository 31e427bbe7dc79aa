package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// clefMagic opens every serialized clef file.
var clefMagic = []byte("CLEF")

// Encode serializes c into the flat little-endian layout the driver writes
// to disk: magic, architecture, os, then each section as name, flags,
// optional load address, symbol table, pending-symbol table, and raw
// content.
func (c *Clef) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(clefMagic)
	buf.WriteByte(byte(c.Architecture))
	buf.WriteByte(byte(c.Os))
	writeU32(&buf, uint32(len(c.Sections)))
	for _, s := range c.Sections {
		writeString(&buf, s.Meta.Name)
		var flags byte
		if s.Meta.Linkable {
			flags |= 1
		}
		if s.Meta.Loadable != nil {
			flags |= 2
		}
		buf.WriteByte(flags)
		if s.Meta.Loadable != nil {
			writeU32(&buf, *s.Meta.Loadable)
		}
		writeU32(&buf, uint32(len(s.Meta.Symbols)))
		for _, sym := range s.Meta.Symbols {
			writeString(&buf, sym.Name)
			writeU32(&buf, sym.Offset)
		}
		writeU32(&buf, uint32(len(s.Meta.PendingSymbols)))
		for _, ps := range s.Meta.PendingSymbols {
			writeString(&buf, ps.Name)
			writeU32(&buf, uint32(len(ps.PendingInstructionOffsets)))
			for _, off := range ps.PendingInstructionOffsets {
				writeU32(&buf, off)
			}
		}
		writeU32(&buf, uint32(len(s.Content)))
		buf.Write(s.Content)
	}
	return buf.Bytes()
}

// Decode parses the layout Encode produces.
func Decode(data []byte) (*Clef, error) {
	r := &reader{data: data}
	magic := r.bytes(4)
	if !bytes.Equal(magic, clefMagic) {
		return nil, fmt.Errorf("container: bad magic %q", magic)
	}
	c := &Clef{Architecture: Architecture(r.byte()), Os: Os(r.byte())}
	sectionCount := r.u32()
	for i := uint32(0); i < sectionCount && r.err == nil; i++ {
		s := &Section{}
		s.Meta.Name = r.str()
		flags := r.byte()
		s.Meta.Linkable = flags&1 != 0
		if flags&2 != 0 {
			addr := r.u32()
			s.Meta.Loadable = &addr
		}
		for j, n := uint32(0), r.u32(); j < n && r.err == nil; j++ {
			s.Meta.Symbols = append(s.Meta.Symbols, Symbol{Name: r.str(), Offset: r.u32()})
		}
		for j, n := uint32(0), r.u32(); j < n && r.err == nil; j++ {
			ps := PendingSymbol{Name: r.str()}
			for k, m := uint32(0), r.u32(); k < m && r.err == nil; k++ {
				ps.PendingInstructionOffsets = append(ps.PendingInstructionOffsets, r.u32())
			}
			s.Meta.PendingSymbols = append(s.Meta.PendingSymbols, ps)
		}
		s.Content = append([]byte(nil), r.bytes(int(r.u32()))...)
		c.Sections = append(c.Sections, s)
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || r.pos+n > len(r.data) {
		if r.err == nil {
			r.err = fmt.Errorf("container: truncated clef file at offset %d", r.pos)
		}
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) byte() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) str() string {
	return string(r.bytes(int(r.u32())))
}

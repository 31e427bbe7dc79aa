package container

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesOf(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestMerge_ShiftsSymbolOffsets(t *testing.T) {
	loadable := uint32(0)
	clef1 := NewClef(RiscV, BareMetal)
	clef1.Sections = append(clef1.Sections, &Section{
		Meta: SectionMeta{
			Name:     "text",
			Loadable: &loadable,
			Linkable: true,
			Symbols: []Symbol{
				{Name: "main", Offset: 0},
				{Name: "f", Offset: 4},
			},
			PendingSymbols: []PendingSymbol{
				{Name: "test1", PendingInstructionOffsets: []uint32{0}},
			},
		},
		Content: bytesOf(0x0000006f, 0x00208093),
	})

	clef2 := NewClef(RiscV, BareMetal)
	clef2.Sections = append(clef2.Sections, &Section{
		Meta: SectionMeta{
			Name:     "text",
			Linkable: true,
			Symbols: []Symbol{
				{Name: "dumb", Offset: 0},
				{Name: "test1", Offset: 8},
			},
			PendingSymbols: []PendingSymbol{
				{Name: "f", PendingInstructionOffsets: []uint32{8}},
			},
		},
		Content: bytesOf(0x00208093, 0x00310113, 0xff9ff06f),
	})

	merged, err := clef1.Merge(clef2)
	require.NoError(t, err)
	require.Len(t, merged.Sections, 1, "expected a single merged 'text' section")

	section := merged.Sections[0]
	assert.Len(t, section.Content, 8+12)

	var dumbOffset, testOffset uint32 = 1 << 31, 1 << 31
	for _, s := range section.Meta.Symbols {
		if s.Name == "dumb" {
			dumbOffset = s.Offset
		}
		if s.Name == "test1" {
			testOffset = s.Offset
		}
	}
	assert.Equal(t, uint32(8), dumbOffset, "expected 'dumb' shifted to offset 8")
	assert.Equal(t, uint32(16), testOffset, "expected 'test1' shifted to offset 16")
	assert.Empty(t, section.Meta.PendingSymbols, "expected both pending symbols to resolve across the merge")
}

func TestMerge_KeepsLoadableSectionFirst(t *testing.T) {
	loadable := uint32(0)
	clef1 := NewClef(RiscV, BareMetal)
	clef1.Sections = append(clef1.Sections, &Section{
		Meta:    SectionMeta{Name: "text", Linkable: true},
		Content: bytesOf(0x1),
	})
	clef2 := NewClef(RiscV, BareMetal)
	clef2.Sections = append(clef2.Sections, &Section{
		Meta:    SectionMeta{Name: "text", Linkable: true, Loadable: &loadable},
		Content: bytesOf(0x2),
	})

	merged, err := clef1.Merge(clef2)
	require.NoError(t, err)
	got := binary.LittleEndian.Uint32(merged.Sections[0].Content[0:4])
	assert.Equal(t, uint32(0x2), got, "expected the loadable section's content to be kept first")
}

func TestMerge_RejectsMismatchedArchitecture(t *testing.T) {
	clef1 := NewClef(RiscV, BareMetal)
	clef2 := NewClef(Arm, BareMetal)
	_, err := clef1.Merge(clef2)
	assert.Error(t, err, "expected an error merging mismatched architectures")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	loadable := uint32(0)
	clef := NewClef(RiscV, BareMetal)
	clef.Sections = append(clef.Sections, &Section{
		Meta: SectionMeta{
			Name:     "text",
			Linkable: true,
			Loadable: &loadable,
			Symbols:  []Symbol{{Name: "main", Offset: 0}, {Name: "f", Offset: 4}},
			PendingSymbols: []PendingSymbol{
				{Name: "g", PendingInstructionOffsets: []uint32{0, 4}},
			},
		},
		Content: bytesOf(0x0000006f, 0x00208093),
	})

	decoded, err := Decode(clef.Encode())
	require.NoError(t, err)
	assert.Equal(t, clef, decoded)
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("ELF\x7f...."))
	assert.Error(t, err)
}

func TestMerge_UnresolvedPendingSymbolCarriesOver(t *testing.T) {
	clef1 := NewClef(RiscV, BareMetal)
	clef1.Sections = append(clef1.Sections, &Section{
		Meta: SectionMeta{
			Name:           "text",
			Linkable:       true,
			PendingSymbols: []PendingSymbol{{Name: "never_defined", PendingInstructionOffsets: []uint32{0}}},
		},
		Content: bytesOf(0x0),
	})
	clef2 := NewClef(RiscV, BareMetal)
	clef2.Sections = append(clef2.Sections, &Section{
		Meta:    SectionMeta{Name: "text", Linkable: true, Symbols: []Symbol{{Name: "unrelated", Offset: 0}}},
		Content: bytesOf(0x1),
	})

	merged, err := clef1.Merge(clef2)
	require.NoError(t, err)
	assert.Len(t, merged.Sections[0].Meta.PendingSymbols, 1, "expected the unresolved pending symbol to survive the merge")
}

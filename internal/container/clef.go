// Package container implements the "clef" binary container of spec §6: a
// header naming the target architecture/OS, a list of named sections each
// carrying symbols, pending (unresolved) symbols, and byte content, plus the
// merge operation that links two clefs by concatenating matching-name
// sections and patching relocations. Grounded on
// original_source/src/binary_format/clef.rs; content is modeled as a plain
// byte slice rather than a bit-vector, since every emitted instruction in
// this middle-end's RISC-V backend (out of core scope for this module, per
// SPEC_FULL.md §1) is byte-aligned.
package container

import "fmt"

// Architecture is the target instruction set of a clef file.
type Architecture int

const (
	RiscV Architecture = iota
	Arm
	X86
)

func (a Architecture) String() string {
	switch a {
	case RiscV:
		return "riscv"
	case Arm:
		return "arm"
	case X86:
		return "x86"
	default:
		return "unknown"
	}
}

// Os is the target operating system of a clef file.
type Os int

const (
	BareMetal Os = iota
)

func (o Os) String() string {
	switch o {
	case BareMetal:
		return "bare metal"
	default:
		return "unknown"
	}
}

// Symbol is a named definition at a byte offset into its section's content.
type Symbol struct {
	Name   string
	Offset uint32
}

func (s Symbol) String() string { return fmt.Sprintf("%s: 0x%x", s.Name, s.Offset) }

// PendingSymbol is a name referenced but not yet defined within its section,
// recording every instruction byte offset waiting on its resolution.
type PendingSymbol struct {
	Name                     string
	PendingInstructionOffsets []uint32
}

// SectionMeta is a section's bookkeeping, separate from its raw content.
type SectionMeta struct {
	Name           string
	Linkable       bool
	Loadable       *uint32 // nil when this section has no fixed load address
	Symbols        []Symbol
	PendingSymbols []PendingSymbol
}

// Section is one named region of a clef file: its metadata plus raw bytes.
type Section struct {
	Meta    SectionMeta
	Content []byte
}

// Clef is a whole binary container: architecture, OS, and its sections.
type Clef struct {
	Architecture Architecture
	Os           Os
	Sections     []*Section
}

// NewClef builds an empty clef targeting the given architecture and OS.
func NewClef(arch Architecture, os Os) *Clef {
	return &Clef{Architecture: arch, Os: os}
}

// Merge links other into the receiver: sections with matching names are
// concatenated (Section.merge); sections present only in other are appended
// unchanged. Both clefs must target the same architecture and OS.
func (c *Clef) Merge(other *Clef) (*Clef, error) {
	if c.Architecture != other.Architecture {
		return nil, fmt.Errorf("container: cannot merge clefs for %s and %s", c.Architecture, other.Architecture)
	}
	if c.Os != other.Os {
		return nil, fmt.Errorf("container: cannot merge clefs for %s and %s", c.Os, other.Os)
	}

	result := &Clef{Architecture: c.Architecture, Os: c.Os}
	result.Sections = append(result.Sections, c.Sections...)

	for _, otherSection := range other.Sections {
		merged := false
		for i, existing := range result.Sections {
			if existing.Meta.Name == otherSection.Meta.Name {
				m, err := mergeSections(existing, otherSection, c.Architecture)
				if err != nil {
					return nil, err
				}
				result.Sections[i] = m
				merged = true
				break
			}
		}
		if !merged {
			result.Sections = append(result.Sections, otherSection)
		}
	}
	return result, nil
}

// mergeSections concatenates other's content after self's, shifting other's
// symbol and pending-symbol offsets by self's byte length, then resolves any
// pending symbol on either side that the other side newly defines.
//
// A loadable section is always kept at byte offset 0 under the presumption
// (carried from clef.rs) that every section's entry point is its own offset
// 0 — so if other is loadable and self is not, the two are swapped before
// concatenation.
func mergeSections(self, other *Section, arch Architecture) (*Section, error) {
	if self.Meta.Name != other.Meta.Name {
		return nil, fmt.Errorf("container: mismatched section names %q and %q", self.Meta.Name, other.Meta.Name)
	}
	if other.Meta.Loadable != nil && self.Meta.Loadable == nil {
		self, other = other, self
	}

	selfBytes := uint32(len(self.Content))

	otherSymbols := make([]Symbol, len(other.Meta.Symbols))
	for i, sym := range other.Meta.Symbols {
		otherSymbols[i] = Symbol{Name: sym.Name, Offset: sym.Offset + selfBytes}
	}
	otherPending := make([]PendingSymbol, len(other.Meta.PendingSymbols))
	for i, ps := range other.Meta.PendingSymbols {
		shifted := make([]uint32, len(ps.PendingInstructionOffsets))
		for j, off := range ps.PendingInstructionOffsets {
			shifted[j] = off + selfBytes
		}
		otherPending[i] = PendingSymbol{Name: ps.Name, PendingInstructionOffsets: shifted}
	}

	content := make([]byte, 0, len(self.Content)+len(other.Content))
	content = append(content, self.Content...)
	content = append(content, other.Content...)

	selfPendingLeft, err := resolvePendingSymbols(self.Meta.PendingSymbols, otherSymbols, content, arch)
	if err != nil {
		return nil, err
	}
	otherPendingLeft, err := resolvePendingSymbols(otherPending, self.Meta.Symbols, content, arch)
	if err != nil {
		return nil, err
	}

	merged := &Section{
		Meta: SectionMeta{
			Name:           self.Meta.Name,
			Linkable:       self.Meta.Linkable && other.Meta.Linkable,
			Loadable:       self.Meta.Loadable,
			Symbols:        append(append([]Symbol{}, self.Meta.Symbols...), otherSymbols...),
			PendingSymbols: append(selfPendingLeft, otherPendingLeft...),
		},
		Content: content,
	}
	return merged, nil
}

// resolvePendingSymbols patches content in place wherever a pending symbol's
// name is now defined among symbols, returning the pending symbols that
// remain unresolved.
func resolvePendingSymbols(pending []PendingSymbol, symbols []Symbol, content []byte, arch Architecture) ([]PendingSymbol, error) {
	var remaining []PendingSymbol
	for _, ps := range pending {
		resolved := false
		for _, sym := range symbols {
			if sym.Name == ps.Name {
				for _, instrOffset := range ps.PendingInstructionOffsets {
					if err := patchRelocation(arch, content, instrOffset, sym.Offset); err != nil {
						return nil, err
					}
				}
				resolved = true
				break
			}
		}
		if !resolved {
			remaining = append(remaining, ps)
		}
	}
	return remaining, nil
}

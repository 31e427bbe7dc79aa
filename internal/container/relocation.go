package container

import (
	"encoding/binary"
	"fmt"
)

// patchRelocation resolves the pending reference at instrOffset (a byte
// offset into content) against a newly known symbol at symbolOffset, per
// target's relocation rule. This middle-end does not implement RISC-V
// codegen (out of core scope, per SPEC_FULL.md §1): every architecture here
// uses the same placeholder rule — a little-endian i32 byte displacement
// (symbolOffset - instrOffset) written over the 4 bytes at instrOffset. A
// real RISC-V backend would instead split this into the immediate fields of
// whatever instruction occupies instrOffset, as clef.rs's
// backend::riscv::decide_instruction_symbol does.
func patchRelocation(arch Architecture, content []byte, instrOffset, symbolOffset uint32) error {
	if int(instrOffset)+4 > len(content) {
		return fmt.Errorf("container: relocation at offset %d exceeds section content length %d", instrOffset, len(content))
	}
	displacement := int32(symbolOffset) - int32(instrOffset)
	binary.LittleEndian.PutUint32(content[instrOffset:instrOffset+4], uint32(displacement))
	return nil
}

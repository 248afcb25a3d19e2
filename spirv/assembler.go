package spirv

import "encoding/binary"

// Build assembles the Pool's accumulated sections into a binary SPIR-V
// module, in the section order spec §4.6 mandates: header, capabilities,
// extensions, ext-inst imports, memory model, entry points, execution
// modes, debug strings, debug names, annotations, types/constants/
// globals, then function bodies. Grounded on the teacher's
// ModuleBuilder.Build in spirv/writer.go.
func (p *Pool) Build() []byte {
	bound := p.IDBound()

	totalWords := 5
	totalWords += countWords(p.capabilities)
	totalWords += countWords(p.extensions)
	totalWords += countWords(p.extInstImports)
	if p.memoryModel != nil {
		totalWords += len(p.memoryModel.Encode())
	}
	totalWords += countWords(p.entryPoints)
	totalWords += countWords(p.executionModes)
	totalWords += countWords(p.debugStrings)
	totalWords += countWords(p.debugNames)
	totalWords += countWords(p.annotations)
	totalWords += countWords(p.types)
	totalWords += countWords(p.globalVars)
	totalWords += countWords(p.functions)

	buf := make([]byte, totalWords*4)
	offset := 0

	binary.LittleEndian.PutUint32(buf[offset:], MagicNumber)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], versionToWord(p.version))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], p.generator)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], bound)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], p.schema)
	offset += 4

	offset = writeInstructions(buf, offset, p.capabilities)
	offset = writeInstructions(buf, offset, p.extensions)
	offset = writeInstructions(buf, offset, p.extInstImports)
	if p.memoryModel != nil {
		offset = writeInstruction(buf, offset, *p.memoryModel)
	}
	offset = writeInstructions(buf, offset, p.entryPoints)
	offset = writeInstructions(buf, offset, p.executionModes)
	offset = writeInstructions(buf, offset, p.debugStrings)
	offset = writeInstructions(buf, offset, p.debugNames)
	offset = writeInstructions(buf, offset, p.annotations)
	offset = writeInstructions(buf, offset, p.types)
	offset = writeInstructions(buf, offset, p.globalVars)
	_ = writeInstructions(buf, offset, p.functions)

	return buf
}

func countWords(instructions []Instruction) int {
	count := 0
	for _, inst := range instructions {
		count += len(inst.Encode())
	}
	return count
}

func writeInstructions(buffer []byte, offset int, instructions []Instruction) int {
	for _, inst := range instructions {
		offset = writeInstruction(buffer, offset, inst)
	}
	return offset
}

func writeInstruction(buffer []byte, offset int, inst Instruction) int {
	for _, word := range inst.Encode() {
		binary.LittleEndian.PutUint32(buffer[offset:], word)
		offset += 4
	}
	return offset
}

func versionToWord(v Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}

// Package elfwriter assembles a statically linked, loadable ELF32
// executable image from a finished code section and data section (spec.md
// §6 "ELF writer contract"). No third-party ELF encoder appears anywhere
// in the retrieved corpus, so this package is built on debug/elf's format
// constants and encoding/binary, per DESIGN.md's stdlib-only
// justification: the alternative would be reimplementing the ELF32 header
// layout by hand with magic numbers, which debug/elf already names.
package elfwriter

import (
	"debug/elf"
	"encoding/binary"

	"shecc/internal/compileerr"
)

// LoadAddress is the fixed virtual address the image is linked at
// (spec.md §6 "persisted layout"; original_source/src/defs.h ELF_START).
const LoadAddress = 0x10000

const (
	ehdrSize = 52 // ELF32 file header.
	phdrSize = 32 // One ELF32 program header.
	shdrSize = 40 // One ELF32 section header.
	symSize  = 16 // One ELF32 symbol table entry.
	numPhdrs = 1  // A single PT_LOAD segment covers code+data (spec.md Non-goals: no relocations/PIC).
)

const (
	// Section indices into the section header table Finalize emits.
	shNull = iota
	shText
	shData
	shSymtab
	shStrtab
	shShstrtab
	numShdrs
)

// Symbol is a named, sized entry point recorded by AddSymbol: its code-
// section byte offset and length, carried through into the image's
// .symtab (spec.md §6 "AddSymbol").
type Symbol struct {
	Name   string
	Length int
	Offset int
}

// Writer accumulates a code section and a data section and assembles them
// into one ELF32 executable image. It is the single-threaded, synchronous
// counterpart to the teacher's buffered Writer (spec.md §5): every method
// call append-only mutates Writer state, matching the entity store's
// append-only arena discipline (package entity).
type Writer struct {
	code    []byte
	data    []byte
	symbols []Symbol
}

// New returns an empty Writer.
func New() *Writer { return &Writer{} }

// AddSymbol records a named entry point at the given code-section byte
// offset and length (spec.md §6 "AddSymbol"). Name collisions overwrite
// the previous entry, matching the entity store's find-or-add convention
// elsewhere in this core.
func (w *Writer) AddSymbol(name string, length, offset int) {
	for i := range w.symbols {
		if w.symbols[i].Name == name {
			w.symbols[i].Length = length
			w.symbols[i].Offset = offset
			return
		}
	}
	w.symbols = append(w.symbols, Symbol{Name: name, Length: length, Offset: offset})
}

// WriteCodeInt appends a 32-bit little-endian instruction word to the code
// section (spec.md §6 "WriteCodeInt").
func (w *Writer) WriteCodeInt(word uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], word)
	w.code = append(w.code, b[:]...)
}

// WriteCodeBytes appends raw code-section bytes (e.g. an already-assembled
// buffer from package emit).
func (w *Writer) WriteCodeBytes(b []byte) {
	w.code = append(w.code, b...)
}

// WriteDataInt appends a 32-bit little-endian value to the global data
// section (spec.md §6 "WriteDataInt").
func (w *Writer) WriteDataInt(word uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], word)
	w.data = append(w.data, b[:]...)
}

// Symbol returns the named symbol's recorded code offset, or -1 with
// ok=false.
func (w *Writer) Symbol(name string) (int, bool) {
	for _, s := range w.symbols {
		if s.Name == name {
			return s.Offset, true
		}
	}
	return -1, false
}

// strtab is an append-only ELF string table: index 0 is always the empty
// string, per the format's own convention.
type strtab struct {
	buf []byte
}

func newStrtab() *strtab { return &strtab{buf: []byte{0}} }

func (s *strtab) add(name string) uint32 {
	ofs := uint32(len(s.buf))
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	return ofs
}

// Finalize assembles the accumulated code and data sections into a
// complete ELF32 executable image entered at entry (a byte offset into the
// code section): one ELF header, one PT_LOAD program header spanning
// code+data, the section bytes themselves, a ".symtab"/".strtab" pair
// built from every AddSymbol call, and the section header table
// describing all of it (spec.md §6 "persisted layout"). It returns a
// Shape error if "__start" was never recorded.
func (w *Writer) Finalize(entry uint32) ([]byte, error) {
	if _, ok := w.Symbol("__start"); !ok {
		return nil, compileerr.Newf(compileerr.Shape, "no __start symbol recorded")
	}

	headerLen := ehdrSize + numPhdrs*phdrSize
	codeOff := headerLen
	dataOff := codeOff + len(w.code)

	symStr := newStrtab()
	symtab := make([]byte, symSize) // index 0: the mandatory null symbol.
	for _, s := range w.symbols {
		nameOfs := symStr.add(s.Name)
		var ent [symSize]byte
		binary.LittleEndian.PutUint32(ent[0:4], nameOfs)
		binary.LittleEndian.PutUint32(ent[4:8], uint32(LoadAddress+codeOff+s.Offset))
		binary.LittleEndian.PutUint32(ent[8:12], uint32(s.Length))
		ent[12] = elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC)
		ent[13] = 0
		binary.LittleEndian.PutUint16(ent[14:16], uint16(shText))
		symtab = append(symtab, ent[:]...)
	}
	symtabOff := dataOff + len(w.data)
	strtabOff := symtabOff + len(symtab)

	shstr := newStrtab()
	nameText := shstr.add(".text")
	nameData := shstr.add(".data")
	nameSymtab := shstr.add(".symtab")
	nameStrtab := shstr.add(".strtab")
	nameShstrtab := shstr.add(".shstrtab")
	shstrtabOff := strtabOff + len(symStr.buf)

	total := shstrtabOff + len(shstr.buf)
	shoff := total
	total += numShdrs * shdrSize

	out := make([]byte, total)

	copy(out[0:4], "\x7fELF")
	out[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	out[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	out[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	out[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	le := binary.LittleEndian
	le.PutUint16(out[16:18], uint16(elf.ET_EXEC))
	le.PutUint16(out[18:20], uint16(elf.EM_RISCV))
	le.PutUint32(out[20:24], uint32(elf.EV_CURRENT))
	le.PutUint32(out[24:28], uint32(LoadAddress+codeOff)+entry) // e_entry
	le.PutUint32(out[28:32], uint32(ehdrSize))                  // e_phoff
	le.PutUint32(out[32:36], uint32(shoff))                     // e_shoff
	le.PutUint32(out[36:40], 0)                                 // e_flags
	le.PutUint16(out[40:42], uint16(ehdrSize))
	le.PutUint16(out[42:44], uint16(phdrSize))
	le.PutUint16(out[44:46], uint16(numPhdrs))
	le.PutUint16(out[46:48], uint16(shdrSize))
	le.PutUint16(out[48:50], uint16(numShdrs))
	le.PutUint16(out[50:52], uint16(shShstrtab))

	ph := out[ehdrSize : ehdrSize+phdrSize]
	le.PutUint32(ph[0:4], uint32(elf.PT_LOAD))
	le.PutUint32(ph[4:8], 0) // p_offset
	le.PutUint32(ph[8:12], LoadAddress)
	le.PutUint32(ph[12:16], LoadAddress)
	le.PutUint32(ph[16:20], uint32(dataOff+len(w.data)))
	le.PutUint32(ph[20:24], uint32(dataOff+len(w.data)))
	le.PutUint32(ph[24:28], uint32(elf.PF_R|elf.PF_W|elf.PF_X))
	le.PutUint32(ph[28:32], 0x1000)

	copy(out[codeOff:dataOff], w.code)
	copy(out[dataOff:symtabOff], w.data)
	copy(out[symtabOff:strtabOff], symtab)
	copy(out[strtabOff:shstrtabOff], symStr.buf)
	copy(out[shstrtabOff:shoff], shstr.buf)

	putShdr := func(i int, name uint32, typ elf.SectionType, flags elf.SectionFlag, addr, offset, size, link, info, addralign, entsize uint32) {
		sh := out[shoff+i*shdrSize : shoff+(i+1)*shdrSize]
		le.PutUint32(sh[0:4], name)
		le.PutUint32(sh[4:8], uint32(typ))
		le.PutUint32(sh[8:12], uint32(flags))
		le.PutUint32(sh[12:16], addr)
		le.PutUint32(sh[16:20], offset)
		le.PutUint32(sh[20:24], size)
		le.PutUint32(sh[24:28], link)
		le.PutUint32(sh[28:32], info)
		le.PutUint32(sh[32:36], addralign)
		le.PutUint32(sh[36:40], entsize)
	}

	putShdr(shNull, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	putShdr(shText, nameText, elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR,
		LoadAddress+uint32(codeOff), uint32(codeOff), uint32(len(w.code)), 0, 0, 4, 0)
	putShdr(shData, nameData, elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_WRITE,
		LoadAddress+uint32(dataOff), uint32(dataOff), uint32(len(w.data)), 0, 0, 4, 0)
	putShdr(shSymtab, nameSymtab, elf.SHT_SYMTAB, 0,
		0, uint32(symtabOff), uint32(len(symtab)), shStrtab, 1, 4, symSize)
	putShdr(shStrtab, nameStrtab, elf.SHT_STRTAB, 0,
		0, uint32(strtabOff), uint32(len(symStr.buf)), 0, 0, 1, 0)
	putShdr(shShstrtab, nameShstrtab, elf.SHT_STRTAB, 0,
		0, uint32(shstrtabOff), uint32(len(shstr.buf)), 0, 0, 1, 0)

	return out, nil
}

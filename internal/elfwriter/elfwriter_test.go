package elfwriter

import (
	"bytes"
	"debug/elf"
	"testing"
)

func TestFinalizeProducesLoadableImage(t *testing.T) {
	w := New()
	w.AddSymbol("__start", 8, 0)
	w.WriteCodeInt(0x00000013) // nop (addi x0, x0, 0)
	w.WriteCodeInt(0x00000013)
	w.WriteDataInt(42)

	img, err := w.Finalize(0)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("elf.NewFile: %v", err)
	}
	if f.Type != elf.ET_EXEC {
		t.Fatalf("Type = %v, want ET_EXEC", f.Type)
	}
	wantEntry := uint64(LoadAddress + ehdrSize + phdrSize*numPhdrs)
	if f.Entry != wantEntry {
		t.Fatalf("Entry = %#x, want %#x", f.Entry, wantEntry)
	}
}

func TestFinalizeHonorsExplicitEntryOffset(t *testing.T) {
	w := New()
	w.AddSymbol("__start", 4, 0)
	w.WriteCodeInt(0x00000013)
	w.WriteCodeInt(0x00000013)

	img, err := w.Finalize(4)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	f, err := elf.NewFile(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("elf.NewFile: %v", err)
	}
	wantEntry := uint64(LoadAddress + ehdrSize + phdrSize*numPhdrs + 4)
	if f.Entry != wantEntry {
		t.Fatalf("Entry = %#x, want %#x", f.Entry, wantEntry)
	}
}

func TestFinalizeRequiresStartSymbol(t *testing.T) {
	w := New()
	if _, err := w.Finalize(0); err == nil {
		t.Fatalf("Finalize: want error when __start is unset, got nil")
	}
}

func TestFinalizeEmitsSymtabAndStrtab(t *testing.T) {
	w := New()
	w.AddSymbol("__start", 8, 0)
	w.AddSymbol("add", 4, 8)
	w.WriteCodeInt(0x00000013)
	w.WriteCodeInt(0x00000013)
	w.WriteCodeInt(0x00000013)

	img, err := w.Finalize(0)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("elf.NewFile: %v", err)
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	got := map[string]elf.Symbol{}
	for _, s := range syms {
		got[s.Name] = s
	}
	start, ok := got["__start"]
	if !ok {
		t.Fatalf("symtab missing __start, got %+v", got)
	}
	if start.Value != LoadAddress+uint64(ehdrSize+phdrSize*numPhdrs) {
		t.Fatalf("__start.Value = %#x, want %#x", start.Value, LoadAddress+ehdrSize+phdrSize*numPhdrs)
	}
	if start.Size != 8 {
		t.Fatalf("__start.Size = %d, want 8", start.Size)
	}
	add, ok := got["add"]
	if !ok {
		t.Fatalf("symtab missing add, got %+v", got)
	}
	if add.Size != 4 {
		t.Fatalf("add.Size = %d, want 4", add.Size)
	}

	for _, name := range []string{".text", ".data", ".symtab", ".strtab", ".shstrtab"} {
		if sec := f.Section(name); sec == nil {
			t.Fatalf("missing section %s", name)
		}
	}
}

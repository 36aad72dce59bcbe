package ir2

import "shecc/internal/entity"

// RegCount is the number of architectural registers the allocator manages
// (spec.md §3 "Register file"; original_source/src/defs.h REG_CNT).
const RegCount = 8

// slot is one register file entry: the variable currently resident, and
// whether it has been written since being loaded (original_source's
// regfile_t{var, polluted}).
type slot struct {
	v     *entity.Variable
	dirty bool
}

// RegisterFile is the explicit, non-global register allocator state
// (spec.md §9 "Register file as explicit state"): unlike
// original_source's file-scope REG[REG_CNT] array, it is passed by the
// caller so the allocator has no hidden state and is trivially testable.
type RegisterFile struct {
	slots [RegCount]slot
}

// NewRegisterFile returns an empty register file.
func NewRegisterFile() *RegisterFile { return &RegisterFile{} }

// Occupant returns the variable resident in slot i, or nil.
func (r *RegisterFile) Occupant(i int) *entity.Variable { return r.slots[i].v }

// Dirty reports whether slot i holds a write that has not been spilled
// back to memory.
func (r *RegisterFile) Dirty(i int) bool { return r.slots[i].dirty }

// Expire clears every slot whose occupant's EOL is before instruction
// index i (spec.md §4.3 "expire"; original_source expire_regs). A variable
// whose EOL equals i is not yet expired: it is still live for instruction
// i itself.
func (r *RegisterFile) Expire(i int) {
	for t := 0; t < RegCount; t++ {
		if r.slots[t].v == nil {
			continue
		}
		if r.slots[t].v.EOL < i {
			r.slots[t] = slot{}
		}
	}
}

// Find returns the slot index holding var, or -1 if var is not resident
// (original_source find_in_regs).
func (r *RegisterFile) Find(v *entity.Variable) int {
	for i := 0; i < RegCount; i++ {
		if r.slots[i].v == v {
			return i
		}
	}
	return -1
}

// TryFree returns the index of the first empty slot, or -1 if the file is
// full (original_source try_avl_reg).
func (r *RegisterFile) TryFree() int {
	for i := 0; i < RegCount; i++ {
		if r.slots[i].v == nil {
			return i
		}
	}
	return -1
}

// SpillVictim picks the occupied slot (other than any index in skip) whose
// occupant has the furthest (largest) EOL — the slot least likely to be
// needed again soon (spec.md §4.4 "spill-victim selection"; original_source
// get_src_reg/get_dest_reg's linear scan for the longest-lived occupant).
// It returns -1 if every slot is in skip or the file is empty.
func (r *RegisterFile) SpillVictim(skip ...int) int {
	victim, furthest := -1, -1
	for i := 0; i < RegCount; i++ {
		if r.slots[i].v == nil {
			continue
		}
		if containsInt(skip, i) {
			continue
		}
		if r.slots[i].v.EOL > furthest {
			furthest = r.slots[i].v.EOL
			victim = i
		}
	}
	return victim
}

// Bind installs var into slot i, marking it clean (a fresh load) or dirty
// (a fresh definition), discarding whatever was previously resident there.
func (r *RegisterFile) Bind(i int, v *entity.Variable, dirty bool) {
	r.slots[i] = slot{v: v, dirty: dirty}
}

// MarkDirty sets slot i's dirty bit, used when get_dest_reg reuses an
// already-resident register for a fresh definition.
func (r *RegisterFile) MarkDirty(i int) { r.slots[i].dirty = true }

// Release empties slot i without spilling (used when a variable's EOL has
// already passed, so there is nothing worth writing back).
func (r *RegisterFile) Release(i int) { r.slots[i] = slot{} }

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

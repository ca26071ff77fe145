// Package gdt models the kernel's global descriptor table and task state
// segment (§4.3): the fixed five-descriptor GDT needed for a flat
// long-mode kernel/user split plus the TSS that carries RSP0, the
// kernel stack pointer loaded on every ring-3-to-ring-0 transition.
//
// Grounded on original_source/kernel/idt.c's segment selector
// conventions (0x08 kernel code) and the teacher's accnt/caller
// packages' habit of modeling CPU-adjacent state as a plain struct with
// accessor methods rather than raw byte layout, since this kernel never
// actually executes an LGDT/LTR instruction — it records the values a
// real one would load.
package gdt

// Selector values, fixed by the ABI every segment-using component
// depends on (§4.3).
const (
	SEL_NULL     uint16 = 0x00
	SEL_KCODE    uint16 = 0x08
	SEL_KDATA    uint16 = 0x10
	SEL_UDATA    uint16 = 0x18 | 3
	SEL_UCODE    uint16 = 0x20 | 3
	SEL_TSS      uint16 = 0x28
)

// Descriptor access/flag bits, matching the standard x86-64 encoding.
const (
	ACC_PRESENT  uint8 = 1 << 7
	ACC_DPL_USER uint8 = 3 << 5
	ACC_CODE     uint8 = 1 << 3
	ACC_DATA     uint8 = 0
	ACC_RW       uint8 = 1 << 1
	ACC_EXEC     uint8 = 1 << 3
	ACC_DESCTYPE uint8 = 1 << 4
)

/// Descriptor_t is one 8-byte GDT entry. Base/limit are unused for the
/// flat 64-bit code/data descriptors (long mode ignores them outside the
/// TSS descriptor) but are kept for documentation and for the TSS, whose
/// descriptor is genuinely base/limit addressed.
type Descriptor_t struct {
	Limit  uint32
	Base   uint64
	Access uint8
	Flags  uint8
}

/// Tss_t is the 64-bit task state segment. Only RSP0 (the stack pointer
/// loaded on a ring-3 to ring-0 transition) and the IO bitmap offset
/// matter to this kernel; the IST stack slots are unused (spec
/// Non-goals: no interrupt stack switching beyond RSP0).
type Tss_t struct {
	rsp0      uint64
	iomapBase uint16
}

/// SetRSP0 records the kernel stack pointer to load on the next
/// interrupt or syscall entry from ring 3.
func (t *Tss_t) SetRSP0(rsp uint64) { t.rsp0 = rsp }

/// RSP0 returns the currently configured kernel stack pointer.
func (t *Tss_t) RSP0() uint64 { return t.rsp0 }

/// Table_t is the kernel's GDT: null, kernel code/data, user data/code,
/// and the TSS descriptor, in that fixed order (§4.3).
type Table_t struct {
	Null    Descriptor_t
	KCode   Descriptor_t
	KData   Descriptor_t
	UData   Descriptor_t
	UCode   Descriptor_t
	TSSDesc Descriptor_t
	TSS     Tss_t
}

/// New builds the kernel's GDT with the fixed descriptors every other
/// component's selector constants assume.
func New() *Table_t {
	t := &Table_t{}
	t.KCode = Descriptor_t{Access: ACC_PRESENT | ACC_DESCTYPE | ACC_EXEC | ACC_RW, Flags: 0x2}
	t.KData = Descriptor_t{Access: ACC_PRESENT | ACC_DESCTYPE | ACC_RW, Flags: 0x2}
	t.UData = Descriptor_t{Access: ACC_PRESENT | ACC_DESCTYPE | ACC_DPL_USER | ACC_RW, Flags: 0x2}
	t.UCode = Descriptor_t{Access: ACC_PRESENT | ACC_DESCTYPE | ACC_DPL_USER | ACC_EXEC | ACC_RW, Flags: 0x2}
	t.TSSDesc = Descriptor_t{Access: ACC_PRESENT | ACC_EXEC | ACC_RW, Limit: uint32(unsafeSizeofTSS() - 1)}
	return t
}

func unsafeSizeofTSS() uintptr { return 104 } // architectural minimum TSS size

/// Global is the kernel's single GDT instance, matching the teacher's
/// package-level singleton convention (mem.Physmem, sched.Global).
var Global = New()

// Package trap models the kernel's interrupt descriptor table, exception
// and IRQ frames, and the PIC remap/EOI dance (§4.3). All 32 CPU
// exception vectors are fatal in this kernel: they print the frame and
// a Go call-stack dump. The fatal path then returns from Dispatch; it
// does not halt the CPU. Only two IRQs are wired: the PIT timer on
// vector 32 (driving preemption, §4.5) and the PS/2 keyboard on vector 33.
//
// Grounded on original_source/kernel/idt.c (vector layout, PIC remap
// sequence, masking all IRQs but 0 and 1) and gopher-os's irq package
// for the Go idiom of a register/frame struct with a Print dump
// (interrupt_amd64.go), rather than biscuit's runtime-integrated trap
// path which this kernel does not reuse (it is woven into biscuit's
// forked Go runtime, out of scope for a userspace-buildable module).
package trap

import (
	"fmt"

	"github.com/mystyy01/VANTA/internal/caller"
)

// PIC I/O ports and the ICW byte sequence from original_source's
// pic_remap, kept as named constants rather than magic numbers.
const (
	PIC1_CMD  = 0x20
	PIC1_DATA = 0x21
	PIC2_CMD  = 0xA0
	PIC2_DATA = 0xA1

	ICW1_INIT = 0x11
	ICW4_8086 = 0x01

	// IRQ0-7 -> vectors 32-39, IRQ8-15 -> vectors 40-47.
	IRQ_BASE  = 0x20
	IRQ2_BASE = 0x28

	VEC_TIMER    = IRQ_BASE + 0
	VEC_KEYBOARD = IRQ_BASE + 1

	NEXCEPTIONS = 32
)

/// Regs_t is a snapshot of general-purpose registers at entry, matching
/// the set pushed by the kernel-entry trampoline before an interrupt
/// handler runs.
type Regs_t struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

/// Frame_t is the exception frame the CPU pushes automatically: two
/// shapes exist per §3 — one for traps taken from ring 0 (no SS:RSP
/// pushed) and one for traps taken from ring 3 (SS:RSP included). HasSS
/// distinguishes them.
type Frame_t struct {
	RIP, CS, RFlags uint64
	RSP, SS         uint64
	HasSS           bool
	ErrCode         uint64
	Vector          uint64
}

/// String renders the frame for the fatal-exception printout.
func (f *Frame_t) String() string {
	s := fmt.Sprintf("vector=%d err=%#x rip=%#x cs=%#x rflags=%#x",
		f.Vector, f.ErrCode, f.RIP, f.CS, f.RFlags)
	if f.HasSS {
		s += fmt.Sprintf(" rsp=%#x ss=%#x", f.RSP, f.SS)
	}
	return s
}

/// Handler is invoked with the saved registers and frame for a given
/// vector. Returning from a Handler for one of the 32 exception vectors
/// is not expected: Dispatch treats them as fatal.
type Handler func(regs *Regs_t, frame *Frame_t)

/// Table_t is the kernel's IDT: a fixed 256-entry handler table, the
/// PIC mask state, and an EOI counter used by tests to assert that
/// every IRQ is acknowledged.
type Table_t struct {
	handlers  [256]Handler
	picMaster uint8
	picSlave  uint8
	eoiCount  uint64
}

var fatalPrinter func(string) = func(s string) { fmt.Println(s) }

/// SetFatalPrinter overrides how a fatal exception is reported; tests
/// use this to capture the message instead of writing to stdout.
func SetFatalPrinter(f func(string)) { fatalPrinter = f }

func fatal(regs *Regs_t, frame *Frame_t) {
	fatalPrinter("fatal exception: " + frame.String())
	caller.Callerdump(1)
}

/// New builds an IDT with every exception vector wired to the fatal
/// handler and IRQ0/IRQ1 left for the caller to install via SetIRQ.
func New() *Table_t {
	t := &Table_t{}
	for v := 0; v < NEXCEPTIONS; v++ {
		t.handlers[v] = fatal
	}
	// PIC remap: IRQ0-7 -> 0x20-0x27, IRQ8-15 -> 0x28-0x2f, mask all but
	// timer and keyboard, matching original_source/kernel/idt.c exactly.
	t.picMaster = 0xFC
	t.picSlave = 0xFF
	return t
}

/// SetIRQ installs a handler for IRQ n (0-15), translating to its
/// remapped vector.
func (t *Table_t) SetIRQ(irq int, h Handler) {
	vec := IRQ_BASE + irq
	t.handlers[vec] = h
}

/// PICMask returns the current master/slave 8259 mask bytes.
func (t *Table_t) PICMask() (master, slave uint8) { return t.picMaster, t.picSlave }

/// Dispatch routes one trap to its handler. It is the kernel-entry
/// trampoline's single call site, keeping the vector-to-handler lookup
/// in one place for §4.3's fatal-exception and IRQ-acknowledge paths.
func (t *Table_t) Dispatch(regs *Regs_t, frame *Frame_t) {
	h := t.handlers[frame.Vector]
	if h == nil {
		fatal(regs, frame)
		return
	}
	h(regs, frame)
	if frame.Vector >= IRQ_BASE && frame.Vector < IRQ_BASE+16 {
		t.eoi(frame.Vector)
	}
}

func (t *Table_t) eoi(vector uint64) {
	t.eoiCount++
	_ = vector // a real EOI write targets PIC1_CMD/PIC2_CMD; tracked here for assertions
}

/// EOICount reports how many interrupts have been acknowledged, for
/// tests asserting that Dispatch always sends EOI for IRQs.
func (t *Table_t) EOICount() uint64 { return t.eoiCount }

/// Global is the kernel's single IDT instance.
var Global = New()

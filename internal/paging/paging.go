// Package paging builds and maintains the kernel's 4-level x86-64 page
// tables (§4.2): a single identity-mapped 16 MiB kernel window, a
// supervisor-only null page and self-protected table pages, and the
// per-task address spaces layered on top of that window.
//
// Grounded on the teacher's biscuit/src/mem/pmap.go PTE-walk idiom,
// specialized to the flat, non-paged-out 16 MiB window described by
// original_source/kernel/paging.c (no demand paging, no COW, no swap —
// spec Non-goals).
package paging

import (
	"fmt"
	"unsafe"

	"github.com/mystyy01/VANTA/internal/mem"
)

// NUM_PT page tables, each covering 2 MiB, together span the kernel's
// fixed 16 MiB identity-mapped window (§3).
const NUM_PT = 8

/// KERNEL_WINDOW is the size in bytes of the identity-mapped low window.
const KERNEL_WINDOW = NUM_PT * 0x200000

/// USER_BOUNDARY is the address at and above which the kernel's static
/// window is user-accessible; below it (the first megabyte, matching
/// original_source/kernel/paging.c) remains supervisor-only.
const USER_BOUNDARY = 0x100000

var (
	kpml4 mem.Pmap_t
	kpdpt mem.Pmap_t
	kpd   mem.Pmap_t
	kpt   [NUM_PT]mem.Pmap_t
)

func addrOf(p *mem.Pmap_t) mem.Pa_t {
	return mem.Pa_t(uintptr(unsafe.Pointer(p)))
}

func pageAlign(a mem.Pa_t) mem.Pa_t  { return a &^ mem.PGOFFSET }
func pageRound(a mem.Pa_t) mem.Pa_t  { return (a + mem.PGOFFSET) &^ mem.PGOFFSET }

var initialized bool

/// Init builds the kernel's static page tables, maps the low 16 MiB
/// window (below §USER_BOUNDARY supervisor-only, above it user and
/// supervisor), traps page zero for null-pointer protection, and
/// protects every page that itself holds a page-table node — the
/// self-protection invariant of §3. Init panics if called twice; the
/// kernel builds its tables exactly once at boot.
func Init() {
	if initialized {
		panic("paging: Init called twice")
	}
	for i := range kpml4 {
		kpml4[i], kpdpt[i], kpd[i] = 0, 0, 0
	}
	for p := 0; p < NUM_PT; p++ {
		for i := range kpt[p] {
			kpt[p][i] = 0
		}
	}

	flagsUser := mem.PTE_P | mem.PTE_W | mem.PTE_U
	flagsSup := mem.PTE_P | mem.PTE_W

	kpml4[0] = addrOf(&kpdpt) | flagsUser
	kpdpt[0] = addrOf(&kpd) | flagsUser
	for p := 0; p < NUM_PT; p++ {
		kpd[p] = addrOf(&kpt[p]) | flagsUser
	}

	for p := 0; p < NUM_PT; p++ {
		for i := 0; i < 512; i++ {
			addr := mem.Pa_t(p)*0x200000 + mem.Pa_t(i)*mem.Pa_t(mem.PGSIZE)
			f := flagsSup
			if addr >= USER_BOUNDARY {
				f = flagsUser
			}
			kpt[p][i] = addr | f
		}
	}

	// Page zero: supervisor-only, so a ring-3 null dereference faults.
	kpt[0][0] = 0 | flagsSup

	protectSelf(&kpml4, &kpdpt, &kpd, kpt[:])

	cr3 = addrOf(&kpml4)
	initialized = true
}

// cr3 records the physical address of the currently-active PML4, mirroring
// the %cr3 register a real boot loader would load.
var cr3 mem.Pa_t

/// CR3 returns the physical address of the active top-level page table.
func CR3() mem.Pa_t { return cr3 }

func protectSelf(pml4, pdpt, pd *mem.Pmap_t, pt []mem.Pmap_t) {
	pages := []mem.Pa_t{addrOf(pml4), addrOf(pdpt), addrOf(pd)}
	for i := range pt {
		pages = append(pages, addrOf(&pt[i]))
	}
	for _, addr := range pages {
		walkRange(pml4, addr, mem.Pa_t(mem.PGSIZE), func(pte *mem.Pa_t) {
			*pte = (*pte &^ mem.PTE_U) | mem.PTE_P | mem.PTE_W
		})
	}
}

// walkRange calls fn on every PTE covering [addr, addr+size) that falls
// within the statically-sized kpt array. Addresses outside the 16 MiB
// window are silently skipped, matching original_source's pd_idx bound
// check.
func walkRange(pml4 *mem.Pmap_t, addr, size mem.Pa_t, fn func(pte *mem.Pa_t)) {
	start := pageAlign(addr)
	end := pageRound(addr + size)
	for a := start; a < end; a += mem.Pa_t(mem.PGSIZE) {
		pdIdx := (a >> 21) & 0x1ff
		ptIdx := (a >> 12) & 0x1ff
		if int(pdIdx) >= NUM_PT {
			continue
		}
		pdpt := mem.AsPmap(pml4[0] & mem.PTE_ADDR)
		pd := mem.AsPmap(pdpt[0] & mem.PTE_ADDR)
		pt := mem.AsPmap(pd[pdIdx] & mem.PTE_ADDR)
		fn(&pt[ptIdx])
	}
}

/// MarkUserRegion grants ring-3 access to every page in [addr, addr+size)
/// of the kernel's static window.
func MarkUserRegion(addr, size mem.Pa_t) {
	walkRange(&kpml4, addr, size, func(pte *mem.Pa_t) {
		*pte |= mem.PTE_U | mem.PTE_P
	})
}

/// MarkSupervisorRegion revokes ring-3 access to every page in
/// [addr, addr+size) of the kernel's static window.
func MarkSupervisorRegion(addr, size mem.Pa_t) {
	walkRange(&kpml4, addr, size, func(pte *mem.Pa_t) {
		*pte = (*pte &^ mem.PTE_U) | mem.PTE_P | mem.PTE_W
	})
}

func allocTable() (*mem.Pmap_t, error) {
	p, ok := mem.Physmem.AllocPage()
	if !ok {
		return nil, fmt.Errorf("paging: out of frames")
	}
	return mem.AsPmap(p), nil
}

/// NewUserSpace allocates a fresh PML4/PDPT/PD and a full complement of
/// NUM_PT page tables replicating the kernel's identity map (so every
/// task can address the kernel window for syscalls and I/O buffers),
/// with every table page itself re-protected from user access. It
/// returns the physical address of the new PML4, suitable for loading
/// into %cr3 on a task switch.
func NewUserSpace() (mem.Pa_t, error) {
	pml4, err := allocTable()
	if err != nil {
		return 0, err
	}
	pdpt, err := allocTable()
	if err != nil {
		return 0, err
	}
	pd, err := allocTable()
	if err != nil {
		return 0, err
	}

	flagsUser := mem.PTE_P | mem.PTE_W | mem.PTE_U
	flagsSup := mem.PTE_P | mem.PTE_W

	pml4[0] = addrOf(pdpt) | flagsUser
	pdpt[0] = addrOf(pd) | flagsUser

	pts := make([]*mem.Pmap_t, NUM_PT)
	for p := 0; p < NUM_PT; p++ {
		pt, err := allocTable()
		if err != nil {
			return 0, err
		}
		pts[p] = pt
		pd[p] = addrOf(pt) | flagsUser
		for i := 0; i < 512; i++ {
			addr := mem.Pa_t(p)*0x200000 + mem.Pa_t(i)*mem.Pa_t(mem.PGSIZE)
			f := flagsSup
			if addr >= USER_BOUNDARY {
				f = flagsUser
			}
			pt[i] = addr | f
		}
	}

	protect := []mem.Pa_t{addrOf(pml4), addrOf(pdpt), addrOf(pd)}
	for _, ptp := range pts {
		protect = append(protect, addrOf(ptp))
	}
	for _, addr := range protect {
		start := pageAlign(addr)
		end := pageRound(addr + mem.Pa_t(mem.PGSIZE))
		for a := start; a < end; a += mem.Pa_t(mem.PGSIZE) {
			pdIdx := (a >> 21) & 0x1ff
			ptIdx := (a >> 12) & 0x1ff
			if int(pdIdx) >= NUM_PT {
				continue
			}
			ptl := pts[pdIdx]
			ptl[ptIdx] = (ptl[ptIdx] &^ mem.PTE_U) | mem.PTE_P | mem.PTE_W
		}
	}

	return addrOf(pml4), nil
}

/// MapPage installs a single PTE mapping addr to itself (the kernel never
/// remaps a physical frame to a different virtual address) with the
/// given flags, within the page table tree rooted at pml4Addr. It
/// returns an error if any intermediate table is missing, matching
/// original_source's paging_map_page -1 return.
func MapPage(pml4Addr mem.Pa_t, addr mem.Pa_t, flags mem.Pa_t) error {
	pml4 := mem.AsPmap(pml4Addr)
	pml4Idx := (addr >> 39) & 0x1ff
	pdptEntry := pml4[pml4Idx] & mem.PTE_ADDR
	if pdptEntry == 0 {
		return fmt.Errorf("paging: missing pdpt for %#x", addr)
	}
	pdpt := mem.AsPmap(pdptEntry)
	pdptIdx := (addr >> 30) & 0x1ff
	pdEntry := pdpt[pdptIdx] & mem.PTE_ADDR
	if pdEntry == 0 {
		return fmt.Errorf("paging: missing pd for %#x", addr)
	}
	pd := mem.AsPmap(pdEntry)
	pdIdx := (addr >> 21) & 0x1ff
	ptEntry := pd[pdIdx] & mem.PTE_ADDR
	if ptEntry == 0 {
		return fmt.Errorf("paging: missing pt for %#x", addr)
	}
	pt := mem.AsPmap(ptEntry)
	ptIdx := (addr >> 12) & 0x1ff
	pt[ptIdx] = pageAlign(addr) | flags | mem.PTE_P
	return nil
}

package paging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mystyy01/VANTA/internal/mem"
)

// Init and its helpers only ever take the address of this package's own
// static arrays (kpml4/kpdpt/kpd/kpt) via addrOf, never dereferencing an
// arbitrary physical address, so it is safe to exercise directly in a
// host test despite there being no real identity-mapped window here.
// Init is a package-level singleton (like the teacher's own boot-time
// page tables), so these two tests share its one-shot state and must
// run in this order: first call succeeds, every later call panics.

func TestInitBuildsIdentityWindow(t *testing.T) {
	Init()

	require.NotZero(t, CR3())
	require.NotZero(t, kpml4[0])
	require.NotZero(t, kpdpt[0])
	for p := 0; p < NUM_PT; p++ {
		require.NotZero(t, kpd[p])
	}

	// Page zero is supervisor-only.
	require.Zero(t, kpt[0][0]&mem.PTE_U)
	require.NotZero(t, kpt[0][0]&mem.PTE_P)

	// A page at/above USER_BOUNDARY in the first table is user-accessible.
	idx := USER_BOUNDARY / mem.PGSIZE
	require.NotZero(t, kpt[0][idx]&mem.PTE_U)
}

func TestInitTwiceStillPanics(t *testing.T) {
	require.Panics(t, func() { Init() })
}

func TestMarkUserAndSupervisorRegion(t *testing.T) {
	idx := (USER_BOUNDARY / mem.PGSIZE) - 1
	addr := mem.Pa_t(idx * mem.PGSIZE)

	MarkUserRegion(addr, mem.Pa_t(mem.PGSIZE))
	require.NotZero(t, kpt[0][idx]&mem.PTE_U)

	MarkSupervisorRegion(addr, mem.Pa_t(mem.PGSIZE))
	require.Zero(t, kpt[0][idx]&mem.PTE_U)
}

func TestMapPageFailsWithoutIntermediateTables(t *testing.T) {
	var emptyPML4 mem.Pmap_t
	err := MapPage(addrOf(&emptyPML4), mem.Pa_t(0x1000), mem.PTE_P|mem.PTE_W)
	require.Error(t, err)
}

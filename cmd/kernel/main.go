// Command kernel is VANTA's entry point: it wires the physical memory
// manager, page tables, segmentation, interrupts, the scheduler, and
// the mounted filesystem into one running system, then hands control
// to the scheduler.
//
// Grounded on original_source/kernel/kernel.c's kernel_main (the same
// init order: keyboard/interrupts, ATA, FAT32 mount, then a run loop)
// translated into the component wiring the rest of this module builds
// out. A real boot still needs the forked Go runtime and assembly
// entry trampoline biscuit uses to run freestanding on bare metal
// (internal/trap's doc comment notes this); this command is the
// host-buildable equivalent, standing in for that trampoline's job of
// calling each subsystem's Init in order.
package main

import (
	"flag"
	"fmt"
	"log"
	"unsafe"

	"github.com/mystyy01/VANTA/cmd/libsys"
	"github.com/mystyy01/VANTA/internal/ata"
	"github.com/mystyy01/VANTA/internal/console"
	"github.com/mystyy01/VANTA/internal/elf"
	"github.com/mystyy01/VANTA/internal/fat32"
	"github.com/mystyy01/VANTA/internal/fd"
	"github.com/mystyy01/VANTA/internal/gdt"
	"github.com/mystyy01/VANTA/internal/kprof"
	"github.com/mystyy01/VANTA/internal/mem"
	"github.com/mystyy01/VANTA/internal/paging"
	"github.com/mystyy01/VANTA/internal/sched"
	"github.com/mystyy01/VANTA/internal/syscall"
	"github.com/mystyy01/VANTA/internal/trap"
	"github.com/mystyy01/VANTA/internal/ustr"
	"github.com/mystyy01/VANTA/internal/vfs"
)

// PHYS_LIMIT bounds the PMM's managed window to the kernel's 16 MiB
// identity-mapped range (§3); frames above it are never handed out
// since nothing maps them.
const PHYS_LIMIT = paging.KERNEL_WINDOW

// maxUserBuf bounds how much of a user pointer's region the identity-map
// accessor exposes per call. There is no MMU fault path in this
// host-buildable build, so bounding the slice length is what stands in
// for the page-table permission check a real trap would enforce.
const maxUserBuf = 4096

/// readUser and writeUser implement SetUserAccessors: because the
/// kernel's low 16 MiB window is identity-mapped (§3), a user virtual
/// address is also a valid kernel pointer, so dereferencing it is a
/// plain unsafe.Slice over that address.
func readUser(p uintptr) []uint8 {
	if p == 0 || p >= uintptr(PHYS_LIMIT) {
		return nil
	}
	n := maxUserBuf
	if rem := uintptr(PHYS_LIMIT) - p; rem < uintptr(n) {
		n = int(rem)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

/// readScancode stands in for the PS/2 controller's data port (0x60),
/// which a pure-Go host build has no instruction to read (IN is not
/// expressible without inline assembly). A real boot trampoline
/// replaces this with an actual port read before wiring IRQ1.
var readScancode = func() uint8 { return 0 }

func writeUser(p uintptr, data []uint8) {
	if p == 0 || p >= uintptr(PHYS_LIMIT) || len(data) == 0 {
		return
	}
	if rem := uintptr(PHYS_LIMIT) - p; rem < uintptr(len(data)) {
		data = data[:rem]
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(p)), len(data))
	copy(dst, data)
}

/// loadInit reads path from fs, validates and places it via
/// internal/elf, and starts it as a user task, matching §4.6's loader
/// bounds and §4.5's task-creation contract.
func loadInit(fs *vfs.FS_t, sch *sched.Sched_t, path string) (*sched.Task_t, error) {
	node, err := fs.ResolvePath(ustr.Ustr(path))
	if err != 0 {
		return nil, fmt.Errorf("kernel: %s not found in image", path)
	}
	raw := make([]uint8, node.Size())
	if _, rerr := fs.Read(node, 0, raw); rerr != 0 {
		return nil, fmt.Errorf("kernel: reading %s: errno %d", path, rerr)
	}
	img, lerr := elf.Load(raw)
	if lerr != 0 {
		return nil, fmt.Errorf("kernel: elf.Load(%s): errno %d", path, lerr)
	}

	cwd := fd.MkRootCwd(fs.Root())
	t, terr := sch.CreateUser(img.Entry, cwd)
	if terr != 0 {
		return nil, fmt.Errorf("kernel: CreateUser: errno %d", terr)
	}

	writeSeg := func(paddr uint64, data []uint8) error {
		writeUser(uintptr(paddr), data)
		return nil
	}
	zeroSeg := func(paddr uint64, n uint64) error {
		z := make([]uint8, n)
		writeUser(uintptr(paddr), z)
		return nil
	}
	if perr := elf.Place(img, writeSeg, zeroSeg); perr != nil {
		return nil, perr
	}
	return t, nil
}

func main() {
	diskPath := flag.String("disk", "", "path to a FAT32 disk image")
	initPath := flag.String("init", "/init", "path of the init binary inside the image")
	flag.Parse()

	if err := mem.Physmem.Init(0, PHYS_LIMIT); err != nil {
		log.Fatalf("kernel: mem.Init: %v", err)
	}
	paging.Init()
	trap.Global.SetIRQ(0, func(r *trap.Regs_t, f *trap.Frame_t) {})
	trap.Global.SetIRQ(1, func(r *trap.Regs_t, f *trap.Frame_t) {
		console.Keyboard.PushScancode(readScancode())
	})
	console.Global.Clear()
	fmt.Fprintf(console.Global, "VANTA OS - Go kernel\n")

	if *diskPath == "" {
		log.Fatal("kernel: -disk is required")
	}
	disk, err := ata.Open(*diskPath)
	if err != nil {
		fmt.Fprintf(console.Global, "ATA open failed\n")
		log.Fatalf("kernel: ata.Open: %v", err)
	}
	defer disk.Close()

	backend, ferr := fat32.Mount(disk, 0)
	if ferr != nil {
		fmt.Fprintf(console.Global, "FAT32 mount failed\n")
		log.Fatalf("kernel: fat32.Mount: %v", ferr)
	}
	fmt.Fprintf(console.Global, "FAT32 mounted\n")
	fs := vfs.Mount(backend)

	pipes := fd.NewPool()
	disp := &syscall.Dispatcher_t{Sched: sched.Global, FS: fs, Pipes: pipes}
	syscall.SetUserAccessors(readUser, writeUser)

	if _, ierr := sched.Global.CreateIdle(0); ierr != 0 {
		log.Fatalf("kernel: CreateIdle: errno %d", ierr)
	}

	initTask, lerr := loadInit(fs, sched.Global, *initPath)
	if lerr != nil {
		fmt.Fprintf(console.Global, "init load failed\n")
		log.Fatalf("kernel: %v", lerr)
	}
	initTask.Acct.Finish(initTask.Acct.Now())
	gdt.Global.TSS.SetRSP0(initTask.RSP)
	libsys.Bind(disp, initTask)

	fmt.Fprintf(console.Global, "Shell ready.\n")
	sched.Global.Start()

	samples := []kprof.TaskSample_t{{TaskID: int64(initTask.Id), Name: *initPath, Acct: &initTask.Acct}}
	_, _ = kprof.Bytes(samples)
}

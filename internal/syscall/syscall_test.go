package syscall

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mystyy01/VANTA/internal/ata"
	"github.com/mystyy01/VANTA/internal/console"
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/fat32"
	"github.com/mystyy01/VANTA/internal/fd"
	"github.com/mystyy01/VANTA/internal/sched"
	"github.com/mystyy01/VANTA/internal/vfs"
)

type memDisk struct {
	sectors [][ata.SECTORSZ]byte
}

func newMemDisk(n int) *memDisk { return &memDisk{sectors: make([][ata.SECTORSZ]byte, n)} }

func (d *memDisk) ReadSectors(lba uint32, count int, buf []uint8) error {
	for i := 0; i < count; i++ {
		copy(buf[i*ata.SECTORSZ:(i+1)*ata.SECTORSZ], d.sectors[int(lba)+i][:])
	}
	return nil
}

func (d *memDisk) WriteSectors(lba uint32, count int, buf []uint8) error {
	for i := 0; i < count; i++ {
		copy(d.sectors[int(lba)+i][:], buf[i*ata.SECTORSZ:(i+1)*ata.SECTORSZ])
	}
	return nil
}

func (d *memDisk) Stats() string { return "memDisk" }

const (
	reservedSectors = 32
	numFATs         = 2
	rootCluster     = 2
	totalSectors    = 2048
)

func newTestFS(t *testing.T) *vfs.FS_t {
	t.Helper()
	disk := newMemDisk(totalSectors)

	dataSectors := totalSectors - reservedSectors
	fatEntries := dataSectors + 2
	fatSize := (fatEntries*4 + ata.SECTORSZ - 1) / ata.SECTORSZ

	boot := make([]byte, ata.SECTORSZ)
	binary.LittleEndian.PutUint16(boot[11:13], ata.SECTORSZ)
	boot[13] = 1
	binary.LittleEndian.PutUint16(boot[14:16], reservedSectors)
	boot[16] = numFATs
	binary.LittleEndian.PutUint32(boot[32:36], totalSectors)
	binary.LittleEndian.PutUint32(boot[36:40], uint32(fatSize))
	binary.LittleEndian.PutUint32(boot[44:48], rootCluster)
	require.NoError(t, disk.WriteSectors(0, 1, boot))

	fatTable := make([]byte, fatSize*ata.SECTORSZ)
	binary.LittleEndian.PutUint32(fatTable[0:4], 0x0FFFFFF8)
	binary.LittleEndian.PutUint32(fatTable[4:8], 0x0FFFFFFF)
	binary.LittleEndian.PutUint32(fatTable[rootCluster*4:rootCluster*4+4], 0x0FFFFFFF)
	for i := 0; i < numFATs; i++ {
		lba := reservedSectors + i*fatSize
		require.NoError(t, disk.WriteSectors(uint32(lba), fatSize, fatTable))
	}
	clusterStart := reservedSectors + numFATs*fatSize
	require.NoError(t, disk.WriteSectors(uint32(clusterStart), 1, make([]byte, ata.SECTORSZ)))

	backend, err := fat32.Mount(disk, 0)
	require.NoError(t, err)
	return vfs.Mount(backend)
}

// fakeUserMem backs the kernel's identity-mapped user-pointer accessors
// with a plain Go byte slice; pointers are just offsets into it.
type fakeUserMem struct {
	buf [4096]byte
}

func (m *fakeUserMem) read(p uintptr) []uint8  { return m.buf[p:] }
func (m *fakeUserMem) write(p uintptr, d []uint8) { copy(m.buf[p:], d) }

func (m *fakeUserMem) putString(p uintptr, s string) {
	copy(m.buf[p:], s)
	m.buf[int(p)+len(s)] = 0
}

func newTestDispatcher(t *testing.T) (*Dispatcher_t, *sched.Task_t, *fakeUserMem) {
	t.Helper()
	fs := newTestFS(t)
	s := sched.New()
	mem := &fakeUserMem{}
	SetUserAccessors(mem.read, mem.write)
	t.Cleanup(func() { SetUserAccessors(func(uintptr) []uint8 { return nil }, func(uintptr, []uint8) {}) })

	task := &sched.Task_t{
		Id:    1,
		State: sched.RUNNABLE,
		Role:  sched.ROLE_USER,
		Fds:   fd.NewTable(),
		Cwd:   fd.MkRootCwd(fs.Root()),
	}
	d := &Dispatcher_t{Sched: s, FS: fs, Pipes: &fd.Pool_t{}}
	return d, task, mem
}

func TestDispatchRejectsOutOfRangeNumber(t *testing.T) {
	d, task, _ := newTestDispatcher(t)
	_, err := d.Dispatch(task, Args_t{Num: 999})
	require.Equal(t, defs.ENOSYS, err)
}

func TestSysCreateThenWriteThenSeekThenRead(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/greeting")

	fdnum, err := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	require.Zero(t, err)
	require.EqualValues(t, 0, fdnum)

	mem.putString(100, "hello")
	n, werr := d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(fdnum), Arg2: 100, Arg3: 5})
	require.Zero(t, werr)
	require.EqualValues(t, 5, n)

	seekN, serr := d.Dispatch(task, Args_t{Num: defs.SYS_SEEK, Arg1: uintptr(fdnum), Arg2: 0, Arg3: uintptr(defs.SEEK_SET)})
	require.Zero(t, serr)
	require.EqualValues(t, 0, seekN)

	rn, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(fdnum), Arg2: 200, Arg3: 5})
	require.Zero(t, rerr)
	require.EqualValues(t, 5, rn)
	require.Equal(t, "hello", string(mem.buf[200:205]))
}

func TestSysOpenMissingWithoutCreateIsENOENT(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/nope")
	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: 0})
	require.Equal(t, defs.ENOENT, err)
}

func TestSysOpenWithCreateFlagMakesFile(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/made")
	fdnum, err := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: uintptr(defs.O_CREAT)})
	require.Zero(t, err)
	require.GreaterOrEqual(t, fdnum, int64(0))
}

func TestSysCloseInvalidatesFd(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/f")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	_, cerr := d.Dispatch(task, Args_t{Num: defs.SYS_CLOSE, Arg1: uintptr(fdnum)})
	require.Zero(t, cerr)

	_, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(fdnum), Arg2: 0, Arg3: 1})
	require.Equal(t, defs.EBADF, rerr)
}

func TestSysMkdirRmdir(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/dir")
	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_MKDIR, Arg1: 0})
	require.Zero(t, err)

	_, serr := d.Dispatch(task, Args_t{Num: defs.SYS_STAT, Arg1: 0, Arg2: 300})
	require.Zero(t, serr)

	_, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_RMDIR, Arg1: 0})
	require.Zero(t, rerr)

	_, serr2 := d.Dispatch(task, Args_t{Num: defs.SYS_STAT, Arg1: 0, Arg2: 300})
	require.Equal(t, defs.ENOENT, serr2)
}

func TestSysUnlinkRemovesFile(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/unme")
	d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	_, uerr := d.Dispatch(task, Args_t{Num: defs.SYS_UNLINK, Arg1: 0})
	require.Zero(t, uerr)

	_, oerr := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: 0})
	require.Equal(t, defs.ENOENT, oerr)
}

func TestSysChdirAndGetcwd(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/sub")
	d.Dispatch(task, Args_t{Num: defs.SYS_MKDIR, Arg1: 0})

	_, cerr := d.Dispatch(task, Args_t{Num: defs.SYS_CHDIR, Arg1: 0})
	require.Zero(t, cerr)

	n, gerr := d.Dispatch(task, Args_t{Num: defs.SYS_GETCWD, Arg1: 500, Arg2: 64})
	require.Zero(t, gerr)
	require.Equal(t, "/sub", string(mem.buf[500:500+n]))
}

func TestSysChdirOnFileIsENOTDIR(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/notadir")
	d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_CHDIR, Arg1: 0})
	require.Equal(t, defs.ENOTDIR, err)
}

func TestSysRenameMovesFile(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/old")
	d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	mem.putString(100, "/new")
	_, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_RENAME, Arg1: 0, Arg2: 100})
	require.Zero(t, rerr)

	_, operr := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: 0})
	require.Equal(t, defs.ENOENT, operr)

	_, operr2 := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 100, Arg2: 0})
	require.Zero(t, operr2)
}

func TestSysTruncateShrinksFile(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/trunc")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	mem.putString(100, "0123456789")
	d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(fdnum), Arg2: 100, Arg3: 10})

	_, terr := d.Dispatch(task, Args_t{Num: defs.SYS_TRUNCATE, Arg1: 0, Arg2: 3})
	require.Zero(t, terr)

	_, serr := d.Dispatch(task, Args_t{Num: defs.SYS_FSTAT, Arg1: uintptr(fdnum), Arg2: 300})
	require.Zero(t, serr)
}

func TestSysReaddirWalksEntries(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/a")
	d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	mem.putString(10, "/b")
	d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 10})

	mem.putString(0, "/")
	dirfd, operr := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: 0})
	require.Zero(t, operr)

	_, derr := d.Dispatch(task, Args_t{Num: defs.SYS_READDIR, Arg1: uintptr(dirfd), Arg2: 300, Arg3: 0})
	require.Zero(t, derr)

	_, derr2 := d.Dispatch(task, Args_t{Num: defs.SYS_READDIR, Arg1: uintptr(dirfd), Arg2: 300, Arg3: 2})
	require.Equal(t, defs.ENOENT, derr2)
}

func TestSysReaddirOnFileIsENOTDIR(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/notdir")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_READDIR, Arg1: uintptr(fdnum), Arg2: 300, Arg3: 0})
	require.Equal(t, defs.ENOTDIR, err)
}

func TestSysExitMarksTaskZombie(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	task, _ := d.Sched.CreateKernel(0)
	d.Sched.CreateKernel(0) // give the scheduler another task so runq survives Exit
	d.Sched.Start()         // the exiting task must be the scheduler's current task

	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_EXIT, Arg1: 0})
	require.Zero(t, err)
	require.Equal(t, sched.ZOMBIE, task.State)
}

func TestSeekWhenceVariants(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/seekme")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	mem.putString(100, "0123456789")
	d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(fdnum), Arg2: 100, Arg3: 10})

	cur, err := d.Dispatch(task, Args_t{Num: defs.SYS_SEEK, Arg1: uintptr(fdnum), Arg2: 0, Arg3: uintptr(defs.SEEK_CUR)})
	require.Zero(t, err)
	require.EqualValues(t, 10, cur)

	end, eerr := d.Dispatch(task, Args_t{Num: defs.SYS_SEEK, Arg1: uintptr(fdnum), Arg2: 0, Arg3: uintptr(defs.SEEK_END)})
	require.Zero(t, eerr)
	require.EqualValues(t, 10, end)
}

func TestSysOpenOTruncEmptiesExistingFile(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/trunced")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	mem.putString(100, "0123456789")
	d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(fdnum), Arg2: 100, Arg3: 10})
	d.Dispatch(task, Args_t{Num: defs.SYS_CLOSE, Arg1: uintptr(fdnum)})

	mem.putString(0, "/trunced")
	newFd, err := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: uintptr(defs.O_TRUNC)})
	require.Zero(t, err)

	_, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(newFd), Arg2: 200, Arg3: 10})
	require.Zero(t, rerr)
}

func TestSysOpenOAppendSeeksToEnd(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/appended")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})
	mem.putString(100, "hello")
	d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(fdnum), Arg2: 100, Arg3: 5})
	d.Dispatch(task, Args_t{Num: defs.SYS_CLOSE, Arg1: uintptr(fdnum)})

	mem.putString(0, "/appended")
	newFd, err := d.Dispatch(task, Args_t{Num: defs.SYS_OPEN, Arg1: 0, Arg2: uintptr(defs.O_APPEND)})
	require.Zero(t, err)

	mem.putString(200, "world")
	n, werr := d.Dispatch(task, Args_t{Num: defs.SYS_WRITE, Arg1: uintptr(newFd), Arg2: 200, Arg3: 5})
	require.Zero(t, werr)
	require.EqualValues(t, 5, n)

	d.Dispatch(task, Args_t{Num: defs.SYS_SEEK, Arg1: uintptr(newFd), Arg2: 0, Arg3: uintptr(defs.SEEK_SET)})
	rn, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(newFd), Arg2: 300, Arg3: 10})
	require.Zero(t, rerr)
	require.EqualValues(t, 10, rn, "O_APPEND must seek past the existing 5 bytes before writing")
}

func TestSysMkdirCreatesMissingParents(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/a/b/c")
	_, err := d.Dispatch(task, Args_t{Num: defs.SYS_MKDIR, Arg1: 0})
	require.Zero(t, err, "mkdir must create missing intermediate directories")

	mem.putString(0, "/a/b/c")
	_, serr := d.Dispatch(task, Args_t{Num: defs.SYS_STAT, Arg1: 0, Arg2: 300})
	require.Zero(t, serr)
}

func TestSysReadConsoleDrainsKeyboardQueue(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	consoleFd, aerr := task.Fds.Alloc(fd.Fd_t{Kind: fd.KIND_CONSOLE})
	require.Zero(t, aerr)

	for _, ok := console.Keyboard.PopScancode(); ok; _, ok = console.Keyboard.PopScancode() {
	} // console.Keyboard is a package singleton; start from an empty queue
	console.Keyboard.PushScancode(0x1E) // scancode for 'a'

	n, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(consoleFd), Arg2: 400, Arg3: 1})
	require.Zero(t, rerr)
	require.EqualValues(t, 1, n)
	require.EqualValues(t, 0x1E, mem.buf[400])
}

func TestSysReadConsoleEmptyQueueReturnsZero(t *testing.T) {
	d, task, _ := newTestDispatcher(t)
	consoleFd, aerr := task.Fds.Alloc(fd.Fd_t{Kind: fd.KIND_CONSOLE})
	require.Zero(t, aerr)

	for _, ok := console.Keyboard.PopScancode(); ok; _, ok = console.Keyboard.PopScancode() {
	}

	n, rerr := d.Dispatch(task, Args_t{Num: defs.SYS_READ, Arg1: uintptr(consoleFd), Arg2: 400, Arg3: 1})
	require.Zero(t, rerr)
	require.EqualValues(t, 0, n, "an empty scancode queue returns 0 rather than blocking")
}

func TestSeekNegativeResultClampsToZero(t *testing.T) {
	d, task, mem := newTestDispatcher(t)
	mem.putString(0, "/clamp")
	fdnum, _ := d.Dispatch(task, Args_t{Num: defs.SYS_CREATE, Arg1: 0})

	neg := int32(-5)
	off, err := d.Dispatch(task, Args_t{Num: defs.SYS_SEEK, Arg1: uintptr(fdnum), Arg2: uintptr(neg), Arg3: uintptr(defs.SEEK_SET)})
	require.Zero(t, err)
	require.EqualValues(t, 0, off)
}

// Package libsys is VANTA's userland syscall library: the Go-callable
// wrappers every app in cmd/apps and cmd/shell link against instead of
// issuing the SYSCALL instruction directly.
//
// Grounded on original_source/apps/lib.c and libsys.h (the SYS_* numbers
// and the open/read/write/mkdir/... surface a C app links against) and
// original_source/userland/syscall.c's register convention, adapted to
// this module's host-buildable constraint: rather than trapping through
// a real ring-3-to-ring-0 transition (internal/trap's doc comment notes
// that path needs biscuit's forked runtime, out of scope here), an app
// calls into the kernel's syscall.Dispatcher_t directly once Bind wires
// the per-task binding the scheduler would otherwise install via CR3 and
// a kernel stack switch. Path and buffer arguments are marshaled through
// scratch frames in the kernel's identity-mapped window, the same
// pointer convention internal/syscall's userBytes/userWrite expect.
package libsys

import (
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/mem"
	"github.com/mystyy01/VANTA/internal/sched"
	"github.com/mystyy01/VANTA/internal/stat"
	"github.com/mystyy01/VANTA/internal/syscall"
)

var (
	dispatcher *syscall.Dispatcher_t
	task       *sched.Task_t
)

/// Bind installs the dispatcher and task an app's syscall wrappers call
/// through. The kernel calls this once per task immediately before
/// transferring control to its entry point.
func Bind(d *syscall.Dispatcher_t, t *sched.Task_t) {
	dispatcher = d
	task = t
}

func call(num int, a1, a2, a3, a4, a5 uintptr) (int64, defs.Err_t) {
	return dispatcher.Dispatch(task, syscall.Args_t{
		Num: uintptr(num), Arg1: a1, Arg2: a2, Arg3: a3, Arg4: a4, Arg5: a5,
	})
}

// putPath marshals a Go string into a scratch physical page, NUL
// terminated, and returns its address for use as a syscall's path
// argument. Paths longer than one page minus the terminator are
// truncated — a page is this ABI's only unit of user memory.
func putPath(p string) uintptr {
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return 0
	}
	b := mem.AsBytes(page)
	n := copy(b[:len(b)-1], p)
	b[n] = 0
	return uintptr(page)
}

func freePage(p uintptr) {
	if p != 0 {
		mem.Physmem.FreePage(mem.Pa_t(p))
	}
}

/// Exit terminates the calling task with the given status.
func Exit(code int) {
	call(defs.SYS_EXIT, uintptr(code), 0, 0, 0, 0)
}

/// Yield voluntarily relinquishes the CPU to the next runnable task.
func Yield() {
	call(defs.SYS_YIELD, 0, 0, 0, 0, 0)
}

/// Open resolves path relative to the task's cwd and returns a new
/// file descriptor, or a negative Err_t.
func Open(path string, flags int) (int, defs.Err_t) {
	p := putPath(path)
	defer freePage(p)
	n, err := call(defs.SYS_OPEN, p, uintptr(flags), 0, 0, 0)
	return int(n), err
}

/// Create is the dedicated create-a-new-file syscall (distinct from
/// Open's O_CREAT flag, matching original_source's separate SYS_CREATE).
func Create(path string) (int, defs.Err_t) {
	p := putPath(path)
	defer freePage(p)
	n, err := call(defs.SYS_CREATE, p, 0, 0, 0, 0)
	return int(n), err
}

/// Close releases a file descriptor.
func Close(fd int) defs.Err_t {
	_, err := call(defs.SYS_CLOSE, uintptr(fd), 0, 0, 0, 0)
	return err
}

/// Read fills buf with up to one page's worth of bytes from fd.
func Read(fd int, buf []byte) (int, defs.Err_t) {
	if len(buf) > mem.PGSIZE {
		buf = buf[:mem.PGSIZE]
	}
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return -1, defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	n, err := call(defs.SYS_READ, uintptr(fd), uintptr(page), uintptr(len(buf)), 0, 0)
	if err != 0 {
		return -1, err
	}
	copy(buf, mem.AsBytes(page)[:n])
	return int(n), 0
}

/// Write sends up to one page's worth of buf to fd.
func Write(fd int, buf []byte) (int, defs.Err_t) {
	if len(buf) > mem.PGSIZE {
		buf = buf[:mem.PGSIZE]
	}
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return -1, defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	copy(mem.AsBytes(page)[:], buf)
	n, err := call(defs.SYS_WRITE, uintptr(fd), uintptr(page), uintptr(len(buf)), 0, 0)
	if err != 0 {
		return -1, err
	}
	return int(n), 0
}

/// Stat fills in st for path.
func Stat(path string) (stat.Stat_t, defs.Err_t) {
	p := putPath(path)
	defer freePage(p)
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return stat.Stat_t{}, defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	_, err := call(defs.SYS_STAT, p, uintptr(page), 0, 0, 0)
	if err != 0 {
		return stat.Stat_t{}, err
	}
	return stat.FromBytes(mem.AsBytes(page)[:12]), 0
}

/// Fstat fills in st for an already-open fd.
func Fstat(fd int) (stat.Stat_t, defs.Err_t) {
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return stat.Stat_t{}, defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	_, err := call(defs.SYS_FSTAT, uintptr(fd), uintptr(page), 0, 0, 0)
	if err != 0 {
		return stat.Stat_t{}, err
	}
	return stat.FromBytes(mem.AsBytes(page)[:12]), 0
}

/// Mkdir creates a new directory at path.
func Mkdir(path string) defs.Err_t {
	p := putPath(path)
	defer freePage(p)
	_, err := call(defs.SYS_MKDIR, p, 0, 0, 0, 0)
	return err
}

/// Rmdir removes the empty directory at path.
func Rmdir(path string) defs.Err_t {
	p := putPath(path)
	defer freePage(p)
	_, err := call(defs.SYS_RMDIR, p, 0, 0, 0, 0)
	return err
}

/// Unlink removes the file at path.
func Unlink(path string) defs.Err_t {
	p := putPath(path)
	defer freePage(p)
	_, err := call(defs.SYS_UNLINK, p, 0, 0, 0, 0)
	return err
}

/// Readdir returns the idx'th entry of the directory open on fd, or
/// ENOENT once idx runs past the end.
func Readdir(fd int, idx int) (stat.Dirent_t, defs.Err_t) {
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return stat.Dirent_t{}, defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	_, err := call(defs.SYS_READDIR, uintptr(fd), uintptr(page), uintptr(idx), 0, 0)
	if err != 0 {
		return stat.Dirent_t{}, err
	}
	var d stat.Dirent_t
	copy(d.Name[:], mem.AsBytes(page)[:stat.DirnameLen])
	return d, 0
}

/// Chdir changes the task's current working directory.
func Chdir(path string) defs.Err_t {
	p := putPath(path)
	defer freePage(p)
	_, err := call(defs.SYS_CHDIR, p, 0, 0, 0, 0)
	return err
}

/// Getcwd returns the task's current working directory.
func Getcwd() (string, defs.Err_t) {
	page, ok := mem.Physmem.AllocPage()
	if !ok {
		return "", defs.ENOMEM
	}
	defer mem.Physmem.FreePage(page)
	n, err := call(defs.SYS_GETCWD, uintptr(page), uintptr(mem.PGSIZE), 0, 0, 0)
	if err != 0 {
		return "", err
	}
	return string(mem.AsBytes(page)[:n]), 0
}

/// Rename moves oldPath to newPath.
func Rename(oldPath, newPath string) defs.Err_t {
	op := putPath(oldPath)
	defer freePage(op)
	np := putPath(newPath)
	defer freePage(np)
	_, err := call(defs.SYS_RENAME, op, np, 0, 0, 0)
	return err
}

/// Truncate sets path's size.
func Truncate(path string, size int) defs.Err_t {
	p := putPath(path)
	defer freePage(p)
	_, err := call(defs.SYS_TRUNCATE, p, uintptr(size), 0, 0, 0)
	return err
}

/// Seek repositions fd's offset.
func Seek(fd int, offset int, whence int) (int, defs.Err_t) {
	n, err := call(defs.SYS_SEEK, uintptr(fd), uintptr(offset), uintptr(whence), 0, 0)
	return int(n), err
}

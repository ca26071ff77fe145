// Package syscall implements the fixed 0-17 syscall dispatch table
// (§4.4, §4.8, §6): marshaling the five SysV-register arguments into a
// call against the current task's resources, and the STAR/LSTAR/FMASK
// configuration record a real SYSCALL/SYSRET fast path would program.
//
// Grounded on original_source/userland/syscall.c's register convention
// (rax=num, rdi,rsi,rdx,r10,r8=args) and the teacher's habit of
// centralizing all syscalls behind one Syscall dispatcher indexed by
// number rather than a switch per subsystem.
package syscall

import (
	"github.com/mystyy01/VANTA/internal/bpath"
	"github.com/mystyy01/VANTA/internal/console"
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/fd"
	"github.com/mystyy01/VANTA/internal/sched"
	"github.com/mystyy01/VANTA/internal/ustr"
	"github.com/mystyy01/VANTA/internal/vfs"
)

/// MSRState_t records the values the kernel boots with programmed into
/// the SYSCALL/SYSRET MSRs: STAR (segment selectors), LSTAR (entry
/// point), and FMASK (RFLAGS bits cleared on entry). EFER.SCE is
/// implied true whenever this struct is populated, mirroring the fact
/// that a real kernel never programs these without first setting SCE.
type MSRState_t struct {
	Star  uint64
	Lstar uint64
	Fmask uint64
}

/// Args_t is the marshaled argument set for one syscall, named for the
/// registers original_source's userland wrapper packs them into.
type Args_t struct {
	Num        uintptr
	Arg1, Arg2 uintptr
	Arg3, Arg4 uintptr
	Arg5       uintptr
}

/// Dispatcher_t binds a scheduler, mounted filesystem, and pipe pool
/// into the syscall surface every task shares.
type Dispatcher_t struct {
	Sched *sched.Sched_t
	FS    *vfs.FS_t
	Pipes *fd.Pool_t
}

/// Handler is one syscall's implementation: given the current task and
/// its arguments, return a result (or -1) and an Err_t (0 on success).
type Handler func(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t)

var table [defs.NSYSCALLS]Handler

func register(num int, h Handler) { table[num] = h }

func init() {
	register(defs.SYS_EXIT, sysExit)
	register(defs.SYS_READ, sysRead)
	register(defs.SYS_WRITE, sysWrite)
	register(defs.SYS_OPEN, sysOpen)
	register(defs.SYS_CLOSE, sysClose)
	register(defs.SYS_STAT, sysStat)
	register(defs.SYS_FSTAT, sysFstat)
	register(defs.SYS_MKDIR, sysMkdir)
	register(defs.SYS_RMDIR, sysRmdir)
	register(defs.SYS_UNLINK, sysUnlink)
	register(defs.SYS_READDIR, sysReaddir)
	register(defs.SYS_CHDIR, sysChdir)
	register(defs.SYS_GETCWD, sysGetcwd)
	register(defs.SYS_RENAME, sysRename)
	register(defs.SYS_TRUNCATE, sysTruncate)
	register(defs.SYS_CREATE, sysCreate)
	register(defs.SYS_SEEK, sysSeek)
	register(defs.SYS_YIELD, sysYield)
}

/// Dispatch runs one syscall, marking the task in-syscall for the
/// duration so Tick (§4.5) never preempts mid-call.
func (d *Dispatcher_t) Dispatch(t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	if int(a.Num) < 0 || int(a.Num) >= defs.NSYSCALLS || table[a.Num] == nil {
		return -1, defs.ENOSYS
	}
	d.Sched.SetInSyscall(true)
	defer d.Sched.SetInSyscall(false)
	return table[a.Num](d, t, a)
}

func sysExit(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	d.Sched.Exit(int(a.Arg1))
	return 0, 0
}

func sysYield(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	d.Sched.Yield()
	return 0, 0
}

func copyFromUser(p uintptr) ustr.Ustr {
	// The kernel's identity-mapped window means a user pointer is also
	// directly dereferenceable kernel-side; a real build reads it via a
	// bounded strcpy from physical memory at p.
	return ustr.MkUstrSlice(userBytes(p))
}

// userBytes and userWrite are overridden by the kernel entry point with
// real identity-mapped reads/writes; tests substitute fakes.
var userBytes = func(p uintptr) []uint8 { return nil }
var userWrite = func(p uintptr, data []uint8) {}

/// SetUserAccessors installs the kernel's identity-mapped read/write
/// functions, letting every handler dereference a user pointer as a
/// plain Go byte slice. Called once from the kernel entry point after
/// internal/paging.Init brings the low 16MiB window up.
func SetUserAccessors(read func(uintptr) []uint8, write func(uintptr, []uint8)) {
	userBytes = read
	userWrite = write
}

// resolveParent finds p's parent directory, failing with ENOENT if any
// component of it is missing. Used by operations that act on an
// existing entry (rmdir, unlink, rename) where a missing parent is
// always an error, never something to create.
func resolveParent(d *Dispatcher_t, t *sched.Task_t, p ustr.Ustr) (*vfs.Node_t, ustr.Ustr, defs.Err_t) {
	parentPath, name := bpath.Split(p)
	parent, err := d.FS.ResolvePath(parentPath)
	if err != 0 {
		return nil, nil, err
	}
	return parent, name, 0
}

// resolveParentCreating finds p's parent directory, creating any
// missing directory component along the way. Used by operations that
// bring a new entry into existence (mkdir, create, open with O_CREAT).
func resolveParentCreating(d *Dispatcher_t, t *sched.Task_t, p ustr.Ustr) (*vfs.Node_t, ustr.Ustr, defs.Err_t) {
	parentPath, name := bpath.Split(p)
	parent, err := d.FS.EnsurePathExists(parentPath)
	if err != 0 {
		return nil, nil, err
	}
	return parent, name, 0
}

func sysOpen(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	flags := int(a.Arg2)
	node, err := d.FS.ResolvePath(path)
	if err != 0 {
		if err != defs.ENOENT || flags&defs.O_CREAT == 0 {
			return -1, err
		}
		parent, name, perr := resolveParentCreating(d, t, path)
		if perr != 0 {
			return -1, perr
		}
		node, err = d.FS.Create(parent, name.String())
		if err != 0 {
			return -1, err
		}
	}
	if flags&defs.O_TRUNC != 0 {
		if terr := d.FS.Truncate(node, 0); terr != 0 {
			return -1, terr
		}
	}
	kind := fd.KIND_FILE
	if node.IsDir() {
		kind = fd.KIND_DIR
	}
	n, aerr := t.Fds.Alloc(fd.Fd_t{Kind: kind, Node: node})
	if aerr != 0 {
		return -1, aerr
	}
	if flags&defs.O_APPEND != 0 {
		if f, gerr := t.Fds.Get(n); gerr == 0 {
			f.Offset = int64(node.Size())
		}
	}
	return int64(n), 0
}

func sysClose(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	old, err := t.Fds.Close(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	switch old.Kind {
	case fd.KIND_PIPE_READ:
		d.Pipes.CloseRead(old.Pipe)
	case fd.KIND_PIPE_WRITE:
		d.Pipes.CloseWrite(old.Pipe)
	}
	return 0, 0
}

func sysRead(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	f, err := t.Fds.Get(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	buf := make([]uint8, a.Arg3)
	var n int
	switch f.Kind {
	case fd.KIND_FILE:
		var rerr defs.Err_t
		n, rerr = d.FS.Read(f.Node.(*vfs.Node_t), f.Offset, buf)
		if rerr != 0 {
			return -1, rerr
		}
		f.Offset += int64(n)
	case fd.KIND_PIPE_READ:
		n, _ = f.Pipe.Read(buf)
	case fd.KIND_CONSOLE:
		// An empty scancode queue returns 0 immediately rather than
		// spinning with hlt, the same non-blocking-empty-read policy
		// Pipe_t.Read uses once its write end has closed.
		if len(buf) > 0 {
			if c, ok := console.Keyboard.PopScancode(); ok {
				buf[0] = c
				n = 1
			}
		}
	default:
		return -1, defs.EINVAL
	}
	userWrite(a.Arg2, buf[:n])
	return int64(n), 0
}

func sysWrite(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	f, err := t.Fds.Get(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	buf := userBytes(a.Arg2)
	if uintptr(len(buf)) > a.Arg3 {
		buf = buf[:a.Arg3]
	}
	switch f.Kind {
	case fd.KIND_FILE:
		n, werr := d.FS.Write(f.Node.(*vfs.Node_t), f.Offset, buf)
		if werr != 0 {
			return -1, werr
		}
		f.Offset += int64(n)
		return int64(n), 0
	case fd.KIND_PIPE_WRITE:
		n, werr := f.Pipe.Write(buf)
		return int64(n), werr
	case fd.KIND_CONSOLE:
		n, _ := console.Global.Write(buf)
		return int64(n), 0
	}
	return -1, defs.EINVAL
}

func sysStat(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	node, err := d.FS.ResolvePath(path)
	if err != 0 {
		return -1, err
	}
	st := node.Stat()
	userWrite(a.Arg2, st.Bytes())
	return 0, 0
}

func sysFstat(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	f, err := t.Fds.Get(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	if f.Kind != fd.KIND_FILE && f.Kind != fd.KIND_DIR {
		return -1, defs.EBADF
	}
	st := f.Node.(*vfs.Node_t).Stat()
	userWrite(a.Arg2, st.Bytes())
	return 0, 0
}

func sysMkdir(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	parent, name, perr := resolveParentCreating(d, t, path)
	if perr != 0 {
		return -1, perr
	}
	if _, cerr := d.FS.Mkdir(parent, name.String()); cerr != 0 {
		return -1, cerr
	}
	return 0, 0
}

func sysRmdir(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	parent, name, perr := resolveParent(d, t, path)
	if perr != 0 {
		return -1, perr
	}
	if rerr := d.FS.Rmdir(parent, name.String()); rerr != 0 {
		return -1, rerr
	}
	return 0, 0
}

func sysUnlink(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	parent, name, perr := resolveParent(d, t, path)
	if perr != 0 {
		return -1, perr
	}
	if uerr := d.FS.Unlink(parent, name.String()); uerr != 0 {
		return -1, uerr
	}
	return 0, 0
}

func sysReaddir(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	f, err := t.Fds.Get(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	if f.Kind != fd.KIND_DIR {
		return -1, defs.ENOTDIR
	}
	entries, derr := d.FS.ReadDir(f.Node.(*vfs.Node_t))
	if derr != 0 {
		return -1, derr
	}
	idx := int(a.Arg3)
	if idx < 0 || idx >= len(entries) {
		return -1, defs.ENOENT
	}
	userWrite(a.Arg2, entries[idx].Name[:])
	return int64(idx + 1), 0
}

func sysChdir(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	node, err := d.FS.ResolvePath(path)
	if err != 0 {
		return -1, err
	}
	if !node.IsDir() {
		return -1, defs.ENOTDIR
	}
	t.Cwd.Lock()
	t.Cwd.Node = node
	t.Cwd.Path = path
	t.Cwd.Unlock()
	return 0, 0
}

func sysGetcwd(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	t.Cwd.Lock()
	path := t.Cwd.Path
	t.Cwd.Unlock()
	if uintptr(len(path)) > a.Arg2 {
		return -1, defs.ENAMETOOLONG
	}
	userWrite(a.Arg1, path)
	return int64(len(path)), 0
}

func sysRename(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	oldPath := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	newPath := t.Cwd.Fullpath(ustr.MkUstrSlice(userBytes(a.Arg2)))
	oldParent, oldName, perr := resolveParent(d, t, oldPath)
	if perr != 0 {
		return -1, perr
	}
	newParent, newName, nerr := resolveParent(d, t, newPath)
	if nerr != 0 {
		return -1, nerr
	}
	if rerr := d.FS.Rename(oldParent, oldName.String(), newParent, newName.String()); rerr != 0 {
		return -1, rerr
	}
	return 0, 0
}

func sysTruncate(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	node, err := d.FS.ResolvePath(path)
	if err != 0 {
		return -1, err
	}
	if terr := d.FS.Truncate(node, uint32(a.Arg2)); terr != 0 {
		return -1, terr
	}
	return 0, 0
}

func sysCreate(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	path := t.Cwd.Fullpath(copyFromUser(a.Arg1))
	parent, name, perr := resolveParentCreating(d, t, path)
	if perr != 0 {
		return -1, perr
	}
	node, cerr := d.FS.Create(parent, name.String())
	if cerr != 0 {
		return -1, cerr
	}
	n, aerr := t.Fds.Alloc(fd.Fd_t{Kind: fd.KIND_FILE, Node: node})
	if aerr != 0 {
		return -1, aerr
	}
	return int64(n), 0
}

func sysSeek(d *Dispatcher_t, t *sched.Task_t, a Args_t) (int64, defs.Err_t) {
	f, err := t.Fds.Get(int(a.Arg1))
	if err != 0 {
		return -1, err
	}
	if f.Kind != fd.KIND_FILE {
		return -1, defs.EBADF
	}
	offset := int64(int32(a.Arg2))
	whence := int(a.Arg3)
	var newOff int64
	switch whence {
	case defs.SEEK_SET:
		newOff = offset
	case defs.SEEK_CUR:
		newOff = f.Offset + offset
	case defs.SEEK_END:
		newOff = int64(f.Node.(*vfs.Node_t).Size()) + offset
	default:
		return -1, defs.EINVAL
	}
	if newOff < 0 {
		// Open Question resolved: clamp a negative result to 0 rather
		// than failing the call.
		newOff = 0
	}
	f.Offset = newOff
	return newOff, 0
}

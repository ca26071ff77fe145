// Package fd implements the per-task file-descriptor table (§3, §4.8):
// a fixed 64-entry array of typed descriptors — unused, file, directory,
// console, and the two ends of a pipe — plus the per-task current
// working directory and the kernel's fixed-size pipe pool.
//
// Grounded on biscuit/src/fd/fd.go's Cwd_t (Fullpath/Canonicalpath) and
// its Fd_t/Fdops_i dispatch idiom, replacing the interface-dispatch
// model (which exists to support biscuit's many device/socket/file
// backends) with the closed, fixed Kind enum this spec's smaller
// surface names explicitly — there are exactly five live kinds, not an
// open set of pluggable backends.
package fd

import (
	"sync"

	"github.com/mystyy01/VANTA/internal/bpath"
	"github.com/mystyy01/VANTA/internal/circbuf"
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/limits"
	"github.com/mystyy01/VANTA/internal/ustr"
)

/// Kind_t enumerates what a file-descriptor slot currently holds.
type Kind_t int

const (
	KIND_UNUSED Kind_t = iota
	KIND_FILE
	KIND_DIR
	KIND_CONSOLE
	KIND_PIPE_READ
	KIND_PIPE_WRITE
)

// NFDS is the fixed number of descriptor slots per task (§3).
const NFDS = 64

// NPIPES is the fixed number of simultaneously live pipes the kernel's
// pool supports.
const NPIPES = 16

// PIPEBUFSZ is a pipe's fixed backing-buffer capacity in bytes.
const PIPEBUFSZ = 4096

/// VNode_i is the minimal surface internal/vfs.Node_t exposes to a file
/// or directory descriptor; fd names it as an interface and does not
/// import internal/vfs.
type VNode_i interface {
	Inode() uint32
}

/// Fd_t is one file-descriptor slot. Which fields are meaningful depends
/// on Kind: File/Dir use Node+Offset, Pipe* use Pipe, Console uses none.
type Fd_t struct {
	Kind   Kind_t
	Node   VNode_i
	Offset int64
	Pipe   *Pipe_t
	Perms  int
}

/// Table_t is a task's fixed 64-entry descriptor table.
type Table_t struct {
	sync.Mutex
	slots [NFDS]Fd_t
}

/// NewTable returns an all-unused descriptor table.
func NewTable() *Table_t {
	return &Table_t{}
}

/// NewConsoleTable returns a descriptor table with 0, 1, and 2 already
/// wired to the console, the fixed stdin/stdout/stderr convention every
/// task boots with.
func NewConsoleTable() *Table_t {
	t := &Table_t{}
	for i := 0; i < 3; i++ {
		t.slots[i] = Fd_t{Kind: KIND_CONSOLE}
	}
	return t
}

/// Alloc finds the lowest-numbered free slot, installs fd there, and
/// returns its index, or -1 and EMFILE if the table is full — matching the
/// "open() returns the lowest available descriptor" convention assumed
/// by the in-tree apps.
func (t *Table_t) Alloc(fd Fd_t) (int, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	for i := 0; i < NFDS; i++ {
		if t.slots[i].Kind == KIND_UNUSED {
			t.slots[i] = fd
			return i, 0
		}
	}
	return -1, defs.EMFILE
}

/// Get returns the descriptor at index n, or EBADF if n is out of range
/// or the slot is unused.
func (t *Table_t) Get(n int) (*Fd_t, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	if n < 0 || n >= NFDS || t.slots[n].Kind == KIND_UNUSED {
		return nil, defs.EBADF
	}
	return &t.slots[n], 0
}

/// Close releases slot n, returning the freed entry so the caller can
/// release any pipe reference; EBADF if the slot is already free.
func (t *Table_t) Close(n int) (Fd_t, defs.Err_t) {
	t.Lock()
	defer t.Unlock()
	if n < 0 || n >= NFDS || t.slots[n].Kind == KIND_UNUSED {
		return Fd_t{}, defs.EBADF
	}
	old := t.slots[n]
	t.slots[n] = Fd_t{}
	return old, 0
}

/// Cwd_t tracks a task's current working directory, matching the
/// teacher's Cwd_t: a directory fd plus the canonical path string used
/// to resolve relative paths.
type Cwd_t struct {
	sync.Mutex
	Node VNode_i
	Path ustr.Ustr
}

/// MkRootCwd builds a Cwd_t rooted at "/".
func MkRootCwd(root VNode_i) *Cwd_t {
	return &Cwd_t{Node: root, Path: ustr.MkUstrRoot()}
}

/// Fullpath resolves p against cwd: absolute paths pass through
/// unchanged, relative paths are joined with '/'.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	return bpath.Join(cwd.Path, p)
}

/// Pipe_t is one end-to-end pipe: a fixed-size circular byte buffer
/// shared by a read descriptor and a write descriptor, plus one open
/// flag per end so close() on either end can free the slot once both
/// are closed.
type Pipe_t struct {
	sync.Mutex
	buf        *circbuf.Circbuf_t
	readOpen   bool
	writeOpen  bool
}

/// Pool_t is the kernel's fixed NPIPES-slot pipe pool.
type Pool_t struct {
	sync.Mutex
	pipes [NPIPES]Pipe_t
	used  [NPIPES]bool
}

/// NewPool returns an empty pipe pool.
func NewPool() *Pool_t { return &Pool_t{} }

/// Alloc reserves an unused pipe slot and returns it with both ends
/// open, or ENOMEM if the pool is exhausted. The system-wide pipe
/// budget (limits.Syslimit.Pipes) is consumed first, so a caller gets
/// ENOMEM from the budget even if a race briefly leaves a slot free.
func (p *Pool_t) Alloc() (*Pipe_t, defs.Err_t) {
	if !limits.Syslimit.Pipes.Take() {
		return nil, defs.ENOMEM
	}
	p.Lock()
	defer p.Unlock()
	for i := range p.used {
		if !p.used[i] {
			p.used[i] = true
			p.pipes[i] = Pipe_t{buf: circbuf.New(PIPEBUFSZ), readOpen: true, writeOpen: true}
			return &p.pipes[i], 0
		}
	}
	limits.Syslimit.Pipes.Give()
	return nil, defs.ENOMEM
}

func (p *Pool_t) indexOf(pipe *Pipe_t) int {
	for i := range p.pipes {
		if &p.pipes[i] == pipe {
			return i
		}
	}
	return -1
}

/// CloseRead releases the read end; once both ends are closed the slot
/// returns to the pool.
func (p *Pool_t) CloseRead(pipe *Pipe_t) {
	pipe.Lock()
	pipe.readOpen = false
	bothClosed := !pipe.readOpen && !pipe.writeOpen
	pipe.Unlock()
	if bothClosed {
		p.release(pipe)
	}
}

/// CloseWrite releases the write end; once both ends are closed the
/// slot returns to the pool.
func (p *Pool_t) CloseWrite(pipe *Pipe_t) {
	pipe.Lock()
	pipe.writeOpen = false
	bothClosed := !pipe.readOpen && !pipe.writeOpen
	pipe.Unlock()
	if bothClosed {
		p.release(pipe)
	}
}

func (p *Pool_t) release(pipe *Pipe_t) {
	p.Lock()
	defer p.Unlock()
	if i := p.indexOf(pipe); i >= 0 {
		p.used[i] = false
		limits.Syslimit.Pipes.Give()
	}
}

/// Write appends up to len(data) bytes to the pipe's buffer, returning
/// the number actually accepted. Writing to a pipe whose read end has
/// already closed returns EBADF (there is no SIGPIPE in this kernel).
func (pipe *Pipe_t) Write(data []uint8) (int, defs.Err_t) {
	pipe.Lock()
	defer pipe.Unlock()
	if !pipe.readOpen {
		return 0, defs.EBADF
	}
	return pipe.buf.Write(data), 0
}

/// Read copies up to len(dst) buffered bytes into dst, returning the
/// number actually read. Reading an empty pipe whose write end has
/// closed returns (0, 0): end of stream, not an error.
func (pipe *Pipe_t) Read(dst []uint8) (int, defs.Err_t) {
	pipe.Lock()
	defer pipe.Unlock()
	return pipe.buf.Read(dst), 0
}

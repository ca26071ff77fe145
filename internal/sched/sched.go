// Package sched implements the fixed 16-task preemptive scheduler
// (§4.5): task creation (kernel and user), a circular run queue, tick
// (timer-driven preemption), yield, and exit.
//
// Grounded on original_source/kernel/sched.c — explicitly an early stub
// per spec.md §9 ("describes the most-featured variant") — generalized
// from its single-linked circular run queue into a complete
// implementation: task creation actually builds a stack and address
// space instead of "TODO: load ELF", and exit correctly unlinks from an
// arbitrary position instead of only the single-task case.
package sched

import (
	"fmt"
	"sync"

	"golang.org/x/arch/x86/x86asm"

	"github.com/mystyy01/VANTA/internal/accnt"
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/fd"
	"github.com/mystyy01/VANTA/internal/mem"
	"github.com/mystyy01/VANTA/internal/paging"
)

// MAX_TASKS is the fixed task table size (§3, §4.5).
const MAX_TASKS = 16

// KSTACK_SIZE and USTACK_SIZE are each task's fixed stack allocations,
// matching original_source/kernel/sched.c.
const (
	KSTACK_SIZE = 16 * 1024
	USTACK_SIZE = 16 * 1024
)

/// State_t enumerates a task's lifecycle state.
type State_t int

const (
	UNUSED State_t = iota
	RUNNABLE
	ZOMBIE
)

/// Role_t distinguishes a kernel task (runs at ring 0, shares the
/// kernel's own address space) from a user task (ring 3, its own CR3)
/// and the idle task that runs when the queue would otherwise be empty.
type Role_t int

const (
	ROLE_KERNEL Role_t = iota
	ROLE_USER
	ROLE_IDLE
)

/// exitStub is the fixed 10-byte machine code sequence placed at the
/// top of every user stack: it loads SYS_EXIT into RAX, zeroes RDI,
/// executes SYSCALL, and halts should SYSCALL ever return, so a user
/// task that returns from main() exits cleanly instead of running off
/// the end of its stack.
//
//   b8 00 00 00 00       mov eax, 0        ; SYS_EXIT
//   31 ff                xor edi, edi      ; status
//   0f 05                syscall
//   f4                   hlt
var exitStub = [10]byte{
	0xb8, 0x00, 0x00, 0x00, 0x00,
	0x31, 0xff,
	0x0f, 0x05,
	0xf4,
}

func init() {
	// Self-check: confirm the hand-assembled stub actually decodes to
	// MOV, XOR, SYSCALL and HLT, catching an encoding slip at package
	// init instead of at the first task exit.
	wantOps := []x86asm.Op{x86asm.MOV, x86asm.XOR, x86asm.SYSCALL, x86asm.HLT}
	off := 0
	for _, want := range wantOps {
		inst, err := x86asm.Decode(exitStub[off:], 32)
		if err != nil {
			panic(fmt.Sprintf("sched: exit stub self-check failed at byte %d: %v", off, err))
		}
		if inst.Op != want {
			panic(fmt.Sprintf("sched: exit stub self-check: expected %v at byte %d, got %v", want, off, inst.Op))
		}
		off += inst.Len
	}
}

/// Task_t is one scheduler slot (§3): identity, lifecycle state, role,
/// the saved register/stack state needed to resume it, its resources
/// (FD table, CWD), and its run-queue link.
type Task_t struct {
	Id     defs.Tid_t
	State  State_t
	Role   Role_t
	CR3    mem.Pa_t
	RSP    uint64
	Entry  uint64
	KStack []uint8
	UStack []uint8
	Fds    *fd.Table_t
	Cwd    *fd.Cwd_t
	Acct   accnt.Accnt_t

	next *Task_t
}

/// Sched_t is the kernel's single scheduler instance: the fixed task
/// table, the circular run queue, and the currently running task.
type Sched_t struct {
	sync.Mutex
	tasks     [MAX_TASKS]Task_t
	runq      *Task_t
	current   *Task_t
	nextId    defs.Tid_t
	inSyscall bool
}

/// New returns an initialized, empty scheduler.
func New() *Sched_t {
	s := &Sched_t{nextId: 1}
	return s
}

func (s *Sched_t) allocTask() (*Task_t, defs.Err_t) {
	for i := range s.tasks {
		if s.tasks[i].State == UNUSED {
			t := &s.tasks[i]
			*t = Task_t{State: RUNNABLE, Id: s.nextId, Role: ROLE_KERNEL}
			s.nextId++
			return t, 0
		}
	}
	return nil, defs.ENOMEM
}

func (s *Sched_t) enqueue(t *Task_t) {
	if s.runq == nil {
		s.runq = t
		t.next = t
		return
	}
	tail := s.runq
	for tail.next != s.runq {
		tail = tail.next
	}
	tail.next = t
	t.next = s.runq
}

/// CreateKernel allocates a task that runs at ring 0 sharing the
/// kernel's own page tables, with entry as its starting instruction
/// pointer and a freshly allocated kernel stack.
func (s *Sched_t) CreateKernel(entry uint64) (*Task_t, defs.Err_t) {
	s.Lock()
	defer s.Unlock()
	t, err := s.allocTask()
	if err != 0 {
		return nil, err
	}
	t.Role = ROLE_KERNEL
	t.Entry = entry
	t.KStack = make([]uint8, KSTACK_SIZE)
	t.RSP = uint64(len(t.KStack))
	t.CR3 = paging.CR3()
	t.Fds = fd.NewConsoleTable()
	s.enqueue(t)
	return t, 0
}

/// CreateIdle allocates the scheduler's idle task: a ring-0 task Tick
/// falls back to only once every other task in the queue is
/// non-runnable, so the run queue is never truly empty while the
/// scheduler is live.
func (s *Sched_t) CreateIdle(entry uint64) (*Task_t, defs.Err_t) {
	t, err := s.CreateKernel(entry)
	if err != 0 {
		return nil, err
	}
	s.Lock()
	t.Role = ROLE_IDLE
	s.Unlock()
	return t, 0
}

/// CreateUser allocates a user task with its own address space (via
/// internal/paging.NewUserSpace), a stack carrying the fixed exit stub
/// at its top, and entry as the ELF image's e_entry.
func (s *Sched_t) CreateUser(entry uint64, cwd *fd.Cwd_t) (*Task_t, defs.Err_t) {
	s.Lock()
	defer s.Unlock()
	t, err := s.allocTask()
	if err != 0 {
		return nil, err
	}
	cr3, merr := paging.NewUserSpace()
	if merr != nil {
		t.State = UNUSED
		return nil, defs.ENOMEM
	}
	t.Role = ROLE_USER
	t.CR3 = cr3
	t.Entry = entry
	t.UStack = make([]uint8, USTACK_SIZE)
	copy(t.UStack[len(t.UStack)-len(exitStub):], exitStub[:])
	t.RSP = uint64(len(t.UStack) - len(exitStub))
	t.Fds = fd.NewConsoleTable()
	t.Cwd = cwd
	s.enqueue(t)
	return t, 0
}

/// Current returns the currently running task, or nil if none.
func (s *Sched_t) Current() *Task_t {
	s.Lock()
	defer s.Unlock()
	return s.current
}

/// SetInSyscall marks whether the current task is inside a syscall;
/// Tick refuses to preempt while true, matching §4.5's rule that a
/// task completes its syscall before being switched out.
func (s *Sched_t) SetInSyscall(v bool) {
	s.Lock()
	defer s.Unlock()
	s.inSyscall = v
}

/// Tick selects the next task to run, the scheduler's response to the
/// timer IRQ: it walks the run queue starting at current.next, skipping
/// any task that isn't RUNNABLE, and picks the first RUNNABLE non-idle
/// task it finds. If none exists, it falls back to the first RUNNABLE
/// idle task seen along the way. If nothing in the whole queue is
/// runnable, current is left unchanged — there is nothing to switch to.
/// It is also a no-op if the queue is empty or the running task is
/// mid-syscall.
func (s *Sched_t) Tick() (prev, next *Task_t) {
	s.Lock()
	defer s.Unlock()
	if s.runq == nil || s.current == nil || s.inSyscall {
		return s.current, s.current
	}
	prev = s.current
	var idle *Task_t
	for cand := s.current.next; cand != s.current; cand = cand.next {
		if cand.Role == ROLE_IDLE {
			if idle == nil && cand.State == RUNNABLE {
				idle = cand
			}
			continue
		}
		if cand.State == RUNNABLE {
			s.current = cand
			return prev, s.current
		}
	}
	if idle != nil {
		s.current = idle
	}
	return prev, s.current
}

/// Yield is a voluntary Tick, used by SYS_YIELD.
func (s *Sched_t) Yield() (prev, next *Task_t) {
	return s.Tick()
}

/// Start selects the first runnable task as current, for the kernel's
/// initial scheduler handoff.
func (s *Sched_t) Start() *Task_t {
	s.Lock()
	defer s.Unlock()
	s.current = s.runq
	return s.current
}

/// Exit marks the current task zombie and unlinks it from the run
/// queue, returning the task that should run next (nil if none
/// remain). Unlike original_source's single-task-only unlink, this
/// walks the circular list to find the predecessor regardless of queue
/// position.
func (s *Sched_t) Exit(code int) *Task_t {
	s.Lock()
	defer s.Unlock()
	cur := s.current
	if cur == nil {
		return nil
	}
	cur.State = ZOMBIE
	if cur.next == cur {
		s.runq = nil
		s.current = nil
		return nil
	}
	p := cur
	for p.next != cur {
		p = p.next
	}
	p.next = cur.next
	if s.runq == cur {
		s.runq = cur.next
	}
	s.current = cur.next
	return s.current
}

/// Len returns the number of runnable tasks currently queued.
func (s *Sched_t) Len() int {
	s.Lock()
	defer s.Unlock()
	if s.runq == nil {
		return 0
	}
	n := 1
	for p := s.runq.next; p != s.runq; p = p.next {
		n++
	}
	return n
}

/// Global is the kernel's single scheduler instance.
var Global = New()

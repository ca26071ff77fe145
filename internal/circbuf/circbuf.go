// Package circbuf implements a fixed-capacity circular byte buffer, the
// backing store for a pipe's in-flight bytes (§3: "Pipe: fixed-size
// byte buffer with read/write indices, byte count").
//
// Grounded on the teacher's biscuit/src/circbuf/circbuf.go head/tail
// wraparound algorithm, stripped of its physical-page-backed lazy
// allocation (mem.Page_i, Refup/Refdown) since a pipe here is backed by
// a plain Go byte slice rather than a COW-mapped page shared with user
// space (spec Non-goals: no shared-memory mappings).
package circbuf

import "fmt"

/// Circbuf_t is a single-producer/single-consumer ring buffer over a
/// fixed-size byte slice.
type Circbuf_t struct {
	buf  []uint8
	head int
	tail int
}

/// New allocates a Circbuf_t with the given capacity in bytes.
func New(capacity int) *Circbuf_t {
	if capacity <= 0 {
		panic("circbuf: bad capacity")
	}
	return &Circbuf_t{buf: make([]uint8, capacity)}
}

/// Cap returns the buffer's fixed capacity.
func (cb *Circbuf_t) Cap() int { return len(cb.buf) }

/// Full reports whether the buffer can accept no more bytes.
func (cb *Circbuf_t) Full() bool { return cb.head-cb.tail == len(cb.buf) }

/// Empty reports whether the buffer holds no bytes.
func (cb *Circbuf_t) Empty() bool { return cb.head == cb.tail }

/// Used returns the number of bytes currently buffered.
func (cb *Circbuf_t) Used() int { return cb.head - cb.tail }

/// Left returns the remaining free capacity in bytes.
func (cb *Circbuf_t) Left() int { return len(cb.buf) - cb.Used() }

/// Write copies as much of src into the buffer as fits, returning the
/// number of bytes actually written (short write, never an error: a
/// full pipe simply accepts nothing until drained).
func (cb *Circbuf_t) Write(src []uint8) int {
	n := len(src)
	if room := cb.Left(); n > room {
		n = room
	}
	bufsz := len(cb.buf)
	for i := 0; i < n; i++ {
		cb.buf[(cb.head+i)%bufsz] = src[i]
	}
	cb.head += n
	return n
}

/// Read copies as much buffered data into dst as fits, returning the
/// number of bytes actually read.
func (cb *Circbuf_t) Read(dst []uint8) int {
	n := cb.Used()
	if n > len(dst) {
		n = len(dst)
	}
	bufsz := len(cb.buf)
	for i := 0; i < n; i++ {
		dst[i] = cb.buf[(cb.tail+i)%bufsz]
	}
	cb.tail += n
	return n
}

func (cb *Circbuf_t) String() string {
	return fmt.Sprintf("circbuf(used=%d/%d)", cb.Used(), len(cb.buf))
}

// Command tickb is ticka's counterpart: it pokes 'B' markers across
// the right half of the same console row forever, so the two tasks'
// markers interleave under the scheduler's round-robin.
//
// Grounded on original_source/apps/tickb/tickb.c: same row, columns
// 40-79, cyan-on-black attribute, same delay-then-yield loop.
package main

import (
	"github.com/mystyy01/VANTA/cmd/libsys"
	"github.com/mystyy01/VANTA/internal/console"
)

const (
	row      = 10
	color    = 0x0B // cyan on black
	delayLen = 500000
)

func delay(n int) {
	for i := 0; i < n; i++ {
	}
}

func main() {
	pos := 40
	for {
		console.Global.PutCellAt(row, pos, 'B', color)
		pos = 40 + ((pos-40+1)%40)
		delay(delayLen)
		libsys.Yield()
	}
}

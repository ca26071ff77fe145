// Command ticka is a multitasking demo task: it pokes 'A' markers
// across the left half of one console row forever, yielding between
// each poke so the scheduler's round-robin behavior is visible.
//
// Grounded on original_source/apps/ticka/ticka.c: same row, same
// column range (0-39), same green-on-black attribute, same
// delay-then-yield loop, adapted from a direct 0xB8000 pointer poke to
// console.Global.PutCellAt since this build has no mapped VGA segment
// of its own.
package main

import (
	"github.com/mystyy01/VANTA/cmd/libsys"
	"github.com/mystyy01/VANTA/internal/console"
)

const (
	row      = 10
	color    = 0x0A // green on black
	delayLen = 500000
)

func delay(n int) {
	for i := 0; i < n; i++ {
	}
}

func main() {
	pos := 0
	for {
		console.Global.PutCellAt(row, pos, 'A', color)
		pos = (pos + 1) % 40
		delay(delayLen)
		libsys.Yield()
	}
}

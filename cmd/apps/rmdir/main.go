// Command rmdir removes one or more empty directories.
//
// Grounded on original_source/apps/rmdir/rmdir.c: each argument is
// removed independently, success and failure are both reported, and
// the process exit code is the failure count.
package main

import (
	"fmt"
	"os"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: rmdir <directory> [directory2 ...]")
		libsys.Exit(1)
		return
	}

	errors := 0
	for _, path := range os.Args[1:] {
		if path == "" {
			fmt.Println("rmdir: empty path")
			errors++
			continue
		}
		if err := libsys.Rmdir(path); err != 0 {
			fmt.Printf("rmdir: failed to remove '%s'\n", path)
			errors++
		} else {
			fmt.Printf("rmdir: removed '%s'\n", path)
		}
	}
	libsys.Exit(errors)
}

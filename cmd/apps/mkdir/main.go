// Command mkdir creates one or more directories.
//
// Grounded on original_source/apps/mkdir/mkdir.c: each argument is
// created independently, failures are reported without aborting the
// remaining arguments, and the process exit code is the failure count.
package main

import (
	"fmt"
	"os"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mkdir <directory> [directory2 ...]")
		libsys.Exit(1)
		return
	}

	errors := 0
	for _, path := range os.Args[1:] {
		if path == "" {
			fmt.Println("mkdir: empty path")
			errors++
			continue
		}
		if err := libsys.Mkdir(path); err != 0 {
			fmt.Printf("mkdir: failed to create '%s'\n", path)
			errors++
		}
	}
	libsys.Exit(errors)
}

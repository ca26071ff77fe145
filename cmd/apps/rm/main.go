// Command rm removes one or more files.
//
// Grounded on original_source/apps/rm/rm.c: each argument is unlinked
// independently, success and failure are both reported, and the
// process exit code is the failure count.
package main

import (
	"fmt"
	"os"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: rm <file> [file2 ...]")
		libsys.Exit(1)
		return
	}

	errors := 0
	for _, path := range os.Args[1:] {
		if path == "" {
			fmt.Println("rm: empty path")
			errors++
			continue
		}
		if err := libsys.Unlink(path); err != 0 {
			fmt.Printf("rm: failed to remove '%s'\n", path)
			errors++
		} else {
			fmt.Printf("rm: removed '%s'\n", path)
		}
	}
	libsys.Exit(errors)
}

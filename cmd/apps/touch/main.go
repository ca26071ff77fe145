// Command touch creates one or more empty files.
//
// Grounded on original_source/apps/touch/touch.c: each argument is
// created via the dedicated create syscall (not open's O_CREAT flag),
// failures are reported without aborting the remaining arguments, and
// the process exit code is the failure count.
package main

import (
	"fmt"
	"os"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: touch <file> [file2 ...]")
		libsys.Exit(1)
		return
	}

	errors := 0
	for _, path := range os.Args[1:] {
		if path == "" {
			fmt.Println("touch: empty path")
			errors++
			continue
		}
		fd, err := libsys.Create(path)
		if err != 0 {
			fmt.Printf("touch: failed to create '%s'\n", path)
			errors++
			continue
		}
		libsys.Close(fd)
	}
	libsys.Exit(errors)
}

// Command cat writes its file arguments, or stdin if none are given, to
// stdout.
//
// Grounded on original_source/apps/cat/cat.c: no arguments reads stdin
// until a zero-length read, otherwise each argument is opened, streamed
// to stdout in fixed-size chunks, and closed; a file that fails to open
// is reported but does not stop the remaining arguments.
package main

import (
	"fmt"
	"os"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

const (
	stdin  = 0
	stdout = 1
)

func main() {
	buf := make([]byte, 512)

	if len(os.Args) < 2 {
		for {
			n, err := libsys.Read(stdin, buf)
			if err != 0 || n <= 0 {
				break
			}
			libsys.Write(stdout, buf[:n])
		}
		libsys.Exit(0)
		return
	}

	for _, path := range os.Args[1:] {
		fd, err := libsys.Open(path, 0)
		if err != 0 {
			fmt.Fprintf(os.Stderr, "cat: %s: No such file\n", path)
			continue
		}
		for {
			n, rerr := libsys.Read(fd, buf)
			if rerr != 0 || n <= 0 {
				break
			}
			libsys.Write(stdout, buf[:n])
		}
		libsys.Close(fd)
	}
	libsys.Exit(0)
}

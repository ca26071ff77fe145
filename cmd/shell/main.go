// Command shell is VANTA's interactive command interpreter: a
// read-eval-print loop over the keyboard/console pair that dispatches
// builtin commands (cd, pwd, ls, mkdir, rmdir, rm, touch, cat) through
// cmd/libsys.
//
// original_source/mt-shell/shell.c and lib.c are both empty stubs (a
// comment header noting mt-lang's shell was being replaced by a pure C
// one, with no body ever committed), so there is no line-editing or
// command-dispatch logic to port directly. The loop shape below instead
// follows original_source/apps/*.c's own convention for a program
// built against cmd/libsys: parse argv-style tokens, call the matching
// libsys wrapper per argument, and report per-argument failures without
// aborting the whole line, exactly as mkdir.c/touch.c/rm.c/rmdir.c do.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mystyy01/VANTA/cmd/libsys"
)

const stdout = 1

func cmdCd(args []string) {
	if len(args) < 1 {
		fmt.Println("cd: missing operand")
		return
	}
	if err := libsys.Chdir(args[0]); err != 0 {
		fmt.Printf("cd: %s: no such directory\n", args[0])
	}
}

func cmdPwd() {
	cwd, err := libsys.Getcwd()
	if err != 0 {
		fmt.Println("pwd: failed to read working directory")
		return
	}
	fmt.Println(cwd)
}

func cmdLs(args []string) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	fd, err := libsys.Open(path, 0)
	if err != 0 {
		fmt.Printf("ls: %s: No such file or directory\n", path)
		return
	}
	defer libsys.Close(fd)
	for idx := 0; ; idx++ {
		ent, derr := libsys.Readdir(fd, idx)
		if derr != 0 {
			break
		}
		fmt.Println(ent.NameString())
	}
}

func cmdMkdir(args []string) {
	for _, path := range args {
		if err := libsys.Mkdir(path); err != 0 {
			fmt.Printf("mkdir: failed to create '%s'\n", path)
		}
	}
}

func cmdRmdir(args []string) {
	for _, path := range args {
		if err := libsys.Rmdir(path); err != 0 {
			fmt.Printf("rmdir: failed to remove '%s'\n", path)
		}
	}
}

func cmdRm(args []string) {
	for _, path := range args {
		if err := libsys.Unlink(path); err != 0 {
			fmt.Printf("rm: failed to remove '%s'\n", path)
		}
	}
}

func cmdTouch(args []string) {
	for _, path := range args {
		fd, err := libsys.Create(path)
		if err != 0 {
			fmt.Printf("touch: failed to create '%s'\n", path)
			continue
		}
		libsys.Close(fd)
	}
}

func cmdCat(args []string) {
	buf := make([]byte, 512)
	for _, path := range args {
		fd, err := libsys.Open(path, 0)
		if err != 0 {
			fmt.Printf("cat: %s: No such file\n", path)
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
}

func dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "exit", "quit":
		return false
	case "cd":
		cmdCd(args)
	case "pwd":
		cmdPwd()
	case "ls":
		cmdLs(args)
	case "mkdir":
		cmdMkdir(args)
	case "rmdir":
		cmdRmdir(args)
	case "rm":
		cmdRm(args)
	case "touch":
		cmdTouch(args)
	case "cat":
		cmdCat(args)
	default:
		fmt.Printf("%s: command not found\n", cmd)
	}
	return true
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("$ ")
		if !scanner.Scan() {
			break
		}
		if !dispatch(scanner.Text()) {
			break
		}
	}
	libsys.Exit(0)
}

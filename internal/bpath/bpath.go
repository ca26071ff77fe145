// Package bpath implements the pure path-resolution rules of §4.8: joining
// a relative path with a current working directory and splitting a path
// into its parent directory and final component. Neither operation
// normalises "." or ".." — the core deliberately leaves that to user
// space (see spec §9, Open Questions).
package bpath

import "github.com/mystyy01/VANTA/internal/ustr"

/// Join returns p unchanged if it is absolute; otherwise it joins cwd and
/// p with exactly one '/' separator.
func Join(cwd, p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	if len(cwd) == 0 {
		return p
	}
	if cwd[len(cwd)-1] == '/' {
		tmp := make(ustr.Ustr, len(cwd))
		copy(tmp, cwd)
		return append(tmp, p...)
	}
	return cwd.Extend(p)
}

/// Split divides an absolute or already-joined path into its parent
/// directory and final component. Split("/a/b/c") is ("/a/b", "c").
/// Split("/a") is ("/", "a"). The root itself splits to ("/", "").
func Split(p ustr.Ustr) (parent, name ustr.Ustr) {
	if len(p) == 0 {
		return ustr.MkUstrRoot(), ustr.MkUstr()
	}
	last := p.IndexByteReverse('/')
	if last < 0 {
		return ustr.MkUstrRoot(), p
	}
	if last == 0 {
		if len(p) == 1 {
			return ustr.MkUstrRoot(), ustr.MkUstr()
		}
		return ustr.MkUstrRoot(), p[1:]
	}
	return p[:last], p[last+1:]
}

/// Components splits an absolute path into its non-empty slash-separated
/// parts, in on-disk-traversal order.
func Components(p ustr.Ustr) []ustr.Ustr {
	var ret []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				ret = append(ret, p[start:i])
			}
			start = i + 1
		}
	}
	return ret
}

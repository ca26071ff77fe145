// Package elf implements the ELF64 static-executable loader (§4.6): a
// fixed 512 KiB staging buffer, ET_EXEC-only validation, and PT_LOAD
// segment placement at each header's physical address.
//
// Grounded on original_source/kernel/elf_loader.c's validate_header and
// load_segments, translated from raw pointer arithmetic into Go's
// debug/elf parsing idiom (also used by other_examples'
// xyproto-flapc__elf_complete.go.go) while preserving the exact
// negative error codes the original returns.
package elf

import (
	"debug/elf"
	"fmt"

	"github.com/mystyy01/VANTA/internal/defs"
)

// ELF_MAX_SIZE is the loader's fixed staging buffer size; binaries
// larger than this cannot be loaded (§4.6).
const ELF_MAX_SIZE = 512 * 1024

// Negative error codes returned by Load, matching
// original_source/kernel/elf_loader.c's validate_header/elf_execute
// exactly so the in-tree shell's error reporting stays meaningful.
const (
	ErrBadMagic    defs.Err_t = -1
	ErrNot64Bit    defs.Err_t = -2
	ErrNotLSB      defs.Err_t = -3
	ErrNotExec     defs.Err_t = -4
	ErrWrongArch   defs.Err_t = -5
	ErrNotFile     defs.Err_t = -10
	ErrTooLarge    defs.Err_t = -11
	ErrReadFailed  defs.Err_t = -12
)

/// Segment_t is one PT_LOAD segment's destination and contents, ready
/// to be copied to its physical address and the remainder zeroed.
type Segment_t struct {
	Paddr  uint64
	Data   []uint8 // file-backed bytes, length == Filesz
	Memsz  uint64
}

/// Image_t is a validated, parsed ET_EXEC binary ready for placement.
type Image_t struct {
	Entry    uint64
	Segments []Segment_t
}

/// Load validates raw as an ELF64 little-endian x86-64 ET_EXEC image
/// and returns its loadable segments. raw must already have been read
/// from the filesystem into the loader's staging buffer by the caller
/// (§4.6 bounds the whole read, not just the parse, to ELF_MAX_SIZE).
func Load(raw []uint8) (*Image_t, defs.Err_t) {
	if len(raw) > ELF_MAX_SIZE {
		return nil, ErrTooLarge
	}
	if len(raw) < 16 || raw[0] != 0x7f || raw[1] != 'E' || raw[2] != 'L' || raw[3] != 'F' {
		return nil, ErrBadMagic
	}
	if raw[4] != byte(elf.ELFCLASS64) {
		return nil, ErrNot64Bit
	}
	if raw[5] != byte(elf.ELFDATA2LSB) {
		return nil, ErrNotLSB
	}

	f, err := elf.NewFile(byteReaderAt(raw))
	if err != nil {
		return nil, ErrReadFailed
	}
	if f.Type != elf.ET_EXEC {
		return nil, ErrNotExec
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, ErrWrongArch
	}

	img := &Image_t{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]uint8, prog.Filesz)
		if prog.Filesz > 0 {
			n, rerr := prog.ReadAt(data, 0)
			if rerr != nil || uint64(n) != prog.Filesz {
				return nil, ErrReadFailed
			}
		}
		img.Segments = append(img.Segments, Segment_t{
			Paddr: prog.Paddr,
			Data:  data,
			Memsz: prog.Memsz,
		})
	}
	return img, 0
}

// byteReaderAt adapts a byte slice to io.ReaderAt for debug/elf.NewFile.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, fmt.Errorf("elf: offset %d out of range", off)
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, fmt.Errorf("elf: short read at offset %d", off)
	}
	return n, nil
}

/// Place copies each segment's file-backed bytes to its physical
/// address and zeroes the remainder (memsz - filesz), via the supplied
/// writer — cmd/kernel's loadInit supplies one that writes through the
/// identity-mapped window.
func Place(img *Image_t, write func(paddr uint64, data []uint8) error, zero func(paddr uint64, n uint64) error) error {
	for _, seg := range img.Segments {
		if len(seg.Data) > 0 {
			if err := write(seg.Paddr, seg.Data); err != nil {
				return err
			}
		}
		if seg.Memsz > uint64(len(seg.Data)) {
			diff := seg.Memsz - uint64(len(seg.Data))
			if err := zero(seg.Paddr+uint64(len(seg.Data)), diff); err != nil {
				return err
			}
		}
	}
	return nil
}

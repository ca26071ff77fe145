// Package ata implements the block-device collaborator contract that
// internal/fat32 reads and writes sectors through, plus a file-backed
// implementation (a flat disk image on the host filesystem standing in
// for a real ATA/IDE controller).
//
// Grounded on the teacher's biscuit/src/fs/blk.go Disk_i interface
// (Start/Stats), simplified to the synchronous Pread/Pwrite shape
// original_source/kernel/fs/fat32.c's ata_read_sectors/ata_write_sectors
// calls assume — this kernel has no async block request queue (spec
// Non-goals: no NCQ/async DMA queueing, no block cache).
package ata

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SECTORSZ is the fixed sector size this kernel's disks are formatted
// with, matching the FAT32 BPB's bytes_per_sector in the common case.
const SECTORSZ = 512

/// Disk_i is the contract internal/fat32 and internal/vfs depend on: a
/// sector-addressed, synchronous block device.
type Disk_i interface {
	ReadSectors(lba uint32, count int, buf []uint8) error
	WriteSectors(lba uint32, count int, buf []uint8) error
	Stats() string
}

/// FileDisk_t backs Disk_i with a flat file on the host filesystem,
/// using pread/pwrite so reads and writes never perturb a shared file
/// offset — the kernel issues sector reads from several call sites
/// (boot sector probe, FAT walk, cluster read) with no serialization
/// guarantee otherwise.
type FileDisk_t struct {
	fd      int
	path    string
	reads   uint64
	writes  uint64
}

/// Open opens path (which must already exist — mkfs creates it) for
/// reading and writing sectors.
func Open(path string) (*FileDisk_t, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("ata: open %s: %w", path, err)
	}
	return &FileDisk_t{fd: fd, path: path}, nil
}

/// ReadSectors reads count sectors starting at lba into buf, which must
/// be at least count*SECTORSZ bytes.
func (d *FileDisk_t) ReadSectors(lba uint32, count int, buf []uint8) error {
	need := count * SECTORSZ
	if len(buf) < need {
		return fmt.Errorf("ata: read buffer too small: have %d need %d", len(buf), need)
	}
	off := int64(lba) * SECTORSZ
	n, err := unix.Pread(d.fd, buf[:need], off)
	if err != nil {
		return fmt.Errorf("ata: pread lba=%d: %w", lba, err)
	}
	if n != need {
		return fmt.Errorf("ata: short read at lba=%d: got %d want %d", lba, n, need)
	}
	d.reads++
	return nil
}

/// WriteSectors writes count sectors starting at lba from buf.
func (d *FileDisk_t) WriteSectors(lba uint32, count int, buf []uint8) error {
	need := count * SECTORSZ
	if len(buf) < need {
		return fmt.Errorf("ata: write buffer too small: have %d need %d", len(buf), need)
	}
	off := int64(lba) * SECTORSZ
	n, err := unix.Pwrite(d.fd, buf[:need], off)
	if err != nil {
		return fmt.Errorf("ata: pwrite lba=%d: %w", lba, err)
	}
	if n != need {
		return fmt.Errorf("ata: short write at lba=%d: got %d want %d", lba, n, need)
	}
	d.writes++
	return nil
}

/// Stats reports basic I/O counters, matching Disk_i.Stats in the
/// teacher's fs/blk.go.
func (d *FileDisk_t) Stats() string {
	return fmt.Sprintf("ata(%s): reads=%d writes=%d", d.path, d.reads, d.writes)
}

/// Close releases the underlying file descriptor.
func (d *FileDisk_t) Close() error {
	return unix.Close(d.fd)
}

// Command mkfs builds a bootable FAT32 disk image from a skeleton
// directory tree, the host-side counterpart to the kernel's read/write
// FAT32 backend (internal/fat32).
//
// Grounded on biscuit/src/mkfs/mkfs.go's addfiles/copydata walk-and-copy
// shape (filepath.WalkDir over a skeleton directory, MkDir/MkFile/Append
// calls against the mounted filesystem) adapted from biscuit's ufs.Ufs_t
// target to a FAT32 image: mkfs here first lays down a minimal FAT32
// volume (boot sector, two FAT copies, an empty root directory) since,
// unlike biscuit's mkdisk, there is no existing image-layout tool in
// this pack to shell out to.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mystyy01/VANTA/internal/ata"
	"github.com/mystyy01/VANTA/internal/fat32"
)

const (
	sectorSize        = 512
	sectorsPerCluster = 1
	reservedSectors   = 32
	numFATs           = 2
	rootCluster       = 2
)

// writeBootSector lays down the minimal FAT32 BPB fields
// internal/fat32.parseBPB reads: bytes-per-sector, sectors-per-cluster,
// reserved sector count, FAT count, 32-bit FAT size, and the root
// directory's starting cluster.
func writeBootSector(totalSectors, fatSize uint32) []uint8 {
	b := make([]uint8, sectorSize)
	b[0] = 0xEB
	b[1] = 0x58
	b[2] = 0x90
	copy(b[3:11], "VANTAFS ")
	binary.LittleEndian.PutUint16(b[11:13], sectorSize)
	b[13] = sectorsPerCluster
	binary.LittleEndian.PutUint16(b[14:16], reservedSectors)
	b[16] = numFATs
	binary.LittleEndian.PutUint16(b[17:19], 0) // root entry count: 0 for FAT32
	binary.LittleEndian.PutUint16(b[19:21], 0) // total sectors (16-bit): 0, use 32-bit field
	b[21] = 0xF8                               // media descriptor: fixed disk
	binary.LittleEndian.PutUint16(b[22:24], 0) // FAT size (16-bit): 0 for FAT32
	binary.LittleEndian.PutUint32(b[32:36], totalSectors)
	binary.LittleEndian.PutUint32(b[36:40], fatSize)
	binary.LittleEndian.PutUint32(b[44:48], rootCluster)
	b[510] = 0x55
	b[511] = 0xAA
	return b
}

// mkimage creates a zeroed disk image of size bytes at path, formats it
// with a fresh FAT32 volume, and returns an opened fat32.FS_t mounted
// on it.
func mkimage(path string, sizeBytes int64) (*ata.FileDisk_t, *fat32.FS_t) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatalf("mkfs: create %s: %v", path, err)
	}
	if err := f.Truncate(sizeBytes); err != nil {
		log.Fatalf("mkfs: truncate: %v", err)
	}
	f.Close()

	totalSectors := uint32(sizeBytes / sectorSize)
	dataSectors := totalSectors - reservedSectors
	fatEntries := dataSectors/sectorsPerCluster + 2
	fatSize := (fatEntries*4 + sectorSize - 1) / sectorSize

	disk, err := ata.Open(path)
	if err != nil {
		log.Fatalf("mkfs: open %s: %v", path, err)
	}

	boot := writeBootSector(totalSectors, fatSize)
	if err := disk.WriteSectors(0, 1, boot); err != nil {
		log.Fatalf("mkfs: write boot sector: %v", err)
	}

	// Both FAT copies start zeroed except cluster 0/1 (reserved media
	// descriptor markers) and the root directory's end-of-chain marker.
	fat := make([]uint8, fatSize*sectorSize)
	binary.LittleEndian.PutUint32(fat[0:4], 0x0FFFFFF8)
	binary.LittleEndian.PutUint32(fat[4:8], 0x0FFFFFFF)
	binary.LittleEndian.PutUint32(fat[rootCluster*4:rootCluster*4+4], 0x0FFFFFFF)
	for i := 0; i < numFATs; i++ {
		lba := reservedSectors + i*int(fatSize)
		if err := disk.WriteSectors(uint32(lba), int(fatSize), fat); err != nil {
			log.Fatalf("mkfs: write FAT %d: %v", i, err)
		}
	}

	// Zero the root directory's single initial cluster.
	clusterStart := reservedSectors + numFATs*int(fatSize)
	zero := make([]uint8, sectorSize*sectorsPerCluster)
	if err := disk.WriteSectors(uint32(clusterStart), sectorsPerCluster, zero); err != nil {
		log.Fatalf("mkfs: zero root dir: %v", err)
	}

	backend, merr := fat32.Mount(disk, 0)
	if merr != nil {
		log.Fatalf("mkfs: mount freshly-formatted image: %v", merr)
	}
	return disk, backend
}

// copydata streams src's contents into the image file rooted at
// cluster, matching mkfs.go's copydata buffered-read loop (one
// cluster-sized chunk at a time, appended via repeated WriteFile
// calls rather than biscuit's ufs.Append).
func copydata(src string, backend *fat32.FS_t, cluster uint32) {
	srcFile, err := os.Open(src)
	if err != nil {
		log.Fatalf("mkfs: open %s: %v", src, err)
	}
	defer srcFile.Close()

	buf := make([]byte, backend.BytesPerCluster())
	var offset uint32
	for {
		n, readErr := srcFile.Read(buf)
		if readErr != nil && readErr != io.EOF {
			log.Fatalf("mkfs: read %s: %v", src, readErr)
		}
		if n == 0 {
			break
		}
		if _, werr := backend.WriteFile(cluster, offset, buf[:n]); werr != nil {
			log.Fatalf("mkfs: write %s: %v", src, werr)
		}
		offset += uint32(n)
		if readErr == io.EOF {
			break
		}
	}
}

// addfiles walks skeldir on the host and replicates its contents into
// the image, matching mkfs.go's addfiles/filepath.WalkDir shape.
func addfiles(backend *fat32.FS_t, skeldir string) {
	dirClusters := map[string]uint32{".": backend.RootCluster()}

	err := filepath.WalkDir(skeldir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			fmt.Printf("failed to access %q: %v\n", path, err)
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, skeldir), "/")
		if rel == "" {
			return nil
		}

		parentRel := filepath.Dir(rel)
		if parentRel == "." {
			parentRel = "."
		}
		parentCluster, ok := dirClusters[parentRel]
		if !ok {
			fmt.Printf("no known parent directory for %v\n", rel)
			return nil
		}
		name := filepath.Base(rel)

		if d.IsDir() {
			cluster, aerr := backend.AllocCluster()
			if aerr != nil {
				fmt.Printf("failed to allocate dir %v: %v\n", rel, aerr)
				return nil
			}
			if werr := backend.WriteDirEntry(parentCluster, name, cluster, 0, true); werr != nil {
				fmt.Printf("failed to create dir %v: %v\n", rel, werr)
				return nil
			}
			dirClusters[rel] = cluster
			return nil
		}

		info, serr := d.Info()
		if serr != nil {
			fmt.Printf("failed to stat %v: %v\n", rel, serr)
			return nil
		}
		cluster, aerr := backend.AllocCluster()
		if aerr != nil {
			fmt.Printf("failed to allocate file %v: %v\n", rel, aerr)
			return nil
		}
		if werr := backend.WriteDirEntry(parentCluster, name, cluster, uint32(info.Size()), false); werr != nil {
			fmt.Printf("failed to create file %v: %v\n", rel, werr)
			return nil
		}
		copydata(path, backend, cluster)
		return nil
	})
	if err != nil {
		fmt.Printf("error walking the path %q: %v\n", skeldir, err)
		os.Exit(1)
	}
}

func main() {
	size := flag.Int64("size", 16*1024*1024, "image size in bytes")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Printf("Usage: mkfs [-size bytes] <output image> <skel dir>\n")
		os.Exit(1)
	}
	image := flag.Arg(0)
	skeldir := flag.Arg(1)

	disk, backend := mkimage(image, *size)
	defer disk.Close()

	addfiles(backend, skeldir)
}

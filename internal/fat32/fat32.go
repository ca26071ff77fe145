// Package fat32 implements the on-disk FAT32 filesystem backend for
// internal/vfs (§3, §4.7): BPB geometry parsing, cluster-to-LBA
// translation, FAT chain walking, 8.3 name conversion, directory entry
// enumeration, and both the read path (grounded on an existing C
// implementation) and the write path (file growth, new directory
// entries — no original implementation exists to defer to, so this
// follows spec.md §4.7's documented semantics directly).
//
// Grounded on original_source/kernel/fs/fat32.c for every read-path
// algorithm: cluster_to_lba, get_next_cluster's 0x0FFFFFF8 end-of-chain
// test, the directory-entry skip rules (0x00 end, 0xE5 deleted, LFN
// attribute 0x0F, volume-label, dot-entries), and fat32_init's BPB
// field layout.
package fat32

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mystyy01/VANTA/internal/ata"
)

const (
	attrDirectory = 0x10
	attrVolumeID  = 0x08
	attrLFN       = 0x0F

	dirEntrySize = 32
	endOfChain   = 0x0FFFFFF8
	freeCluster  = 0x00000000
	deletedMark  = 0xE5
)

/// BPB_t mirrors the fields of the FAT32 BIOS Parameter Block this
/// kernel actually consumes, matching the layout read by
/// original_source's fat32_init.
type BPB_t struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize16         uint16
	FATSize32         uint32
	RootCluster       uint32
}

func parseBPB(sector []uint8) (BPB_t, error) {
	if len(sector) < 512 {
		return BPB_t{}, fmt.Errorf("fat32: boot sector short read")
	}
	var b BPB_t
	b.BytesPerSector = binary.LittleEndian.Uint16(sector[11:13])
	b.SectorsPerCluster = sector[13]
	b.ReservedSectors = binary.LittleEndian.Uint16(sector[14:16])
	b.NumFATs = sector[16]
	b.FATSize16 = binary.LittleEndian.Uint16(sector[22:24])
	b.FATSize32 = binary.LittleEndian.Uint32(sector[36:40])
	b.RootCluster = binary.LittleEndian.Uint32(sector[44:48])
	if b.FATSize16 != 0 || b.FATSize32 == 0 {
		return BPB_t{}, fmt.Errorf("fat32: not a FAT32 volume")
	}
	return b, nil
}

/// FS_t is the mounted filesystem's state (§3: "FAT32 filesystem state"):
/// disk geometry derived from the BPB plus the partition's starting LBA.
type FS_t struct {
	disk             ata.Disk_i
	partitionLBA     uint32
	bpb              BPB_t
	bytesPerCluster  uint32
	fatStartLBA      uint32
	clusterStartLBA  uint32
}

/// Mount reads the boot sector at partitionLBA and validates it as
/// FAT32, matching fat32_init's -1 "not FAT32" failure mode.
func Mount(disk ata.Disk_i, partitionLBA uint32) (*FS_t, error) {
	sector := make([]uint8, ata.SECTORSZ)
	if err := disk.ReadSectors(partitionLBA, 1, sector); err != nil {
		return nil, err
	}
	bpb, err := parseBPB(sector)
	if err != nil {
		return nil, err
	}
	fs := &FS_t{
		disk:         disk,
		partitionLBA: partitionLBA,
		bpb:          bpb,
	}
	fs.bytesPerCluster = uint32(bpb.BytesPerSector) * uint32(bpb.SectorsPerCluster)
	fs.fatStartLBA = partitionLBA + uint32(bpb.ReservedSectors)
	fs.clusterStartLBA = fs.fatStartLBA + uint32(bpb.NumFATs)*bpb.FATSize32
	return fs, nil
}

/// RootCluster returns the first cluster of the root directory.
func (fs *FS_t) RootCluster() uint32 { return fs.bpb.RootCluster }

/// BytesPerCluster returns the filesystem's cluster size in bytes.
func (fs *FS_t) BytesPerCluster() uint32 { return fs.bytesPerCluster }

func (fs *FS_t) clusterToLBA(cluster uint32) uint32 {
	return fs.clusterStartLBA + (cluster-2)*uint32(fs.bpb.SectorsPerCluster)
}

/// ReadCluster reads one full cluster into buf, which must be at least
/// BytesPerCluster() long.
func (fs *FS_t) ReadCluster(cluster uint32, buf []uint8) error {
	lba := fs.clusterToLBA(cluster)
	return fs.disk.ReadSectors(lba, int(fs.bpb.SectorsPerCluster), buf)
}

/// WriteCluster writes one full cluster from buf.
func (fs *FS_t) WriteCluster(cluster uint32, buf []uint8) error {
	lba := fs.clusterToLBA(cluster)
	return fs.disk.WriteSectors(lba, int(fs.bpb.SectorsPerCluster), buf)
}

/// NextCluster follows the FAT chain, masking off the reserved high 4
/// bits as original_source's get_next_cluster does.
func (fs *FS_t) NextCluster(cluster uint32) (uint32, error) {
	fatOffset := cluster * 4
	fatSector := fs.fatStartLBA + fatOffset/uint32(fs.bpb.BytesPerSector)
	entryOffset := fatOffset % uint32(fs.bpb.BytesPerSector)

	sector := make([]uint8, ata.SECTORSZ)
	if err := fs.disk.ReadSectors(fatSector, 1, sector); err != nil {
		return 0, err
	}
	next := binary.LittleEndian.Uint32(sector[entryOffset:]) & 0x0FFFFFFF
	return next, nil
}

/// SetNextCluster writes a FAT chain link, the write-path counterpart
/// NextCluster lacks in the original read-only implementation.
func (fs *FS_t) SetNextCluster(cluster, next uint32) error {
	fatOffset := cluster * 4
	fatSector := fs.fatStartLBA + fatOffset/uint32(fs.bpb.BytesPerSector)
	entryOffset := fatOffset % uint32(fs.bpb.BytesPerSector)

	sector := make([]uint8, ata.SECTORSZ)
	if err := fs.disk.ReadSectors(fatSector, 1, sector); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sector[entryOffset:], next&0x0FFFFFFF)
	return fs.disk.WriteSectors(fatSector, 1, sector)
}

/// AllocCluster scans the FAT for a free (zero) entry, marks it
/// end-of-chain, and returns its number. There is no free-cluster
/// cache (spec Non-goals: no fast allocation bitmap) — a linear scan
/// matches the fixed-size, low-capacity images this kernel targets.
func (fs *FS_t) AllocCluster() (uint32, error) {
	// Cluster 0 and 1 are reserved; start the scan at 2.
	for c := uint32(2); ; c++ {
		next, err := fs.NextCluster(c)
		if err != nil {
			return 0, err
		}
		if next == freeCluster {
			if err := fs.SetNextCluster(c, endOfChain); err != nil {
				return 0, err
			}
			return c, nil
		}
	}
}

/// IsEndOfChain reports whether cluster marks the end of a FAT chain.
func IsEndOfChain(cluster uint32) bool { return cluster >= endOfChain }

/// DirEntry_t is one parsed 32-byte FAT32 directory entry.
type DirEntry_t struct {
	Name      string
	Cluster   uint32
	Size      uint32
	IsDir     bool
	rawOffset int // byte offset of the raw entry within its cluster, for write-back
}

func parseEntry(raw []uint8) (DirEntry_t, bool) {
	if raw[0] == 0x00 {
		return DirEntry_t{}, false // end of directory
	}
	if raw[0] == deletedMark {
		return DirEntry_t{}, false
	}
	attr := raw[11]
	if attr&attrLFN == attrLFN {
		return DirEntry_t{}, false
	}
	if attr&attrVolumeID != 0 {
		return DirEntry_t{}, false
	}
	if raw[0] == '.' {
		return DirEntry_t{}, false
	}
	clusterHigh := uint32(binary.LittleEndian.Uint16(raw[20:22]))
	clusterLow := uint32(binary.LittleEndian.Uint16(raw[26:28]))
	return DirEntry_t{
		Name:    nameFromRaw(raw[0:11]),
		Cluster: clusterHigh<<16 | clusterLow,
		Size:    binary.LittleEndian.Uint32(raw[28:32]),
		IsDir:   attr&attrDirectory != 0,
	}, true
}

var lowerCaser = cases.Lower(language.Und)
var upperCaser = cases.Upper(language.Und)

func nameFromRaw(raw []uint8) string {
	name := ""
	for i := 0; i < 8 && raw[i] != ' '; i++ {
		name += string(raw[i])
	}
	if raw[8] != ' ' {
		name += "."
		for i := 8; i < 11 && raw[i] != ' '; i++ {
			name += string(raw[i])
		}
	}
	return lowerCaser.String(name)
}

/// To83 renders name as an 11-byte, space-padded 8.3 FAT32 name,
/// matching original_source's string_to_fat32_name.
func To83(name string) [11]uint8 {
	var out [11]uint8
	for i := range out {
		out[i] = ' '
	}
	upper := upperCaser.String(name)
	i, j := 0, 0
	for i < len(upper) && upper[i] != '.' && j < 8 {
		out[j] = upper[i]
		i++
		j++
	}
	for i < len(upper) && upper[i] != '.' {
		i++
	}
	if i < len(upper) && upper[i] == '.' {
		i++
	}
	j = 8
	for i < len(upper) && j < 11 {
		out[j] = upper[i]
		i++
		j++
	}
	return out
}

/// WriteDirEntry installs a new 32-byte directory entry for name inside
/// the directory chain rooted at parentCluster, reusing the first free
/// (end-of-directory or deleted) slot and extending the chain by one
/// cluster if none exists. There is no original write path to defer
/// to; the raw layout (name, attribute, cluster high/low, size) matches
/// the fields parseEntry reads.
func (fs *FS_t) WriteDirEntry(parentCluster uint32, name string, cluster uint32, size uint32, isDir bool) error {
	raw83 := To83(name)
	attr := uint8(0)
	if isDir {
		attr = attrDirectory
	}

	cur := parentCluster
	buf := make([]uint8, fs.bytesPerCluster)
	n := int(fs.bytesPerCluster) / dirEntrySize
	for {
		if err := fs.ReadCluster(cur, buf); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			if raw[0] != 0x00 && raw[0] != deletedMark {
				continue
			}
			copy(raw[0:11], raw83[:])
			raw[11] = attr
			binary.LittleEndian.PutUint16(raw[20:22], uint16(cluster>>16))
			binary.LittleEndian.PutUint16(raw[26:28], uint16(cluster))
			binary.LittleEndian.PutUint32(raw[28:32], size)
			return fs.WriteCluster(cur, buf)
		}
		next, err := fs.NextCluster(cur)
		if err != nil {
			return err
		}
		if IsEndOfChain(next) {
			newc, err := fs.AllocCluster()
			if err != nil {
				return err
			}
			if err := fs.SetNextCluster(cur, newc); err != nil {
				return err
			}
			next = newc
		}
		cur = next
	}
}

/// RemoveDirEntry marks name's 32-byte entry inside the directory chain
/// rooted at parentCluster as deleted (0xE5), matching the deletedMark
/// convention parseEntry/FindInDir already skip over, and returns the
/// entry that was removed so the caller can free its cluster chain.
func (fs *FS_t) RemoveDirEntry(parentCluster uint32, name string) (DirEntry_t, error) {
	target := To83(name)
	cur := parentCluster
	buf := make([]uint8, fs.bytesPerCluster)
	n := int(fs.bytesPerCluster) / dirEntrySize
	for !IsEndOfChain(cur) {
		if err := fs.ReadCluster(cur, buf); err != nil {
			return DirEntry_t{}, err
		}
		for i := 0; i < n; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			if raw[0] == 0x00 {
				return DirEntry_t{}, fmt.Errorf("fat32: %q not found", name)
			}
			if raw[0] == deletedMark || raw[11]&attrLFN == attrLFN || raw[11]&attrVolumeID != 0 {
				continue
			}
			if string(raw[0:11]) != string(target[:]) {
				continue
			}
			e, _ := parseEntry(raw)
			raw[0] = deletedMark
			if err := fs.WriteCluster(cur, buf); err != nil {
				return DirEntry_t{}, err
			}
			return e, nil
		}
		next, err := fs.NextCluster(cur)
		if err != nil {
			return DirEntry_t{}, err
		}
		cur = next
	}
	return DirEntry_t{}, fmt.Errorf("fat32: %q not found", name)
}

/// FreeChain walks a cluster chain from start and marks every cluster in
/// it free, the write-path counterpart AllocCluster's scan depends on.
func (fs *FS_t) FreeChain(start uint32) error {
	cluster := start
	for !IsEndOfChain(cluster) {
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return err
		}
		if err := fs.SetNextCluster(cluster, freeCluster); err != nil {
			return err
		}
		cluster = next
	}
	return nil
}

/// ReadDir lists every live entry in the directory rooted at cluster,
/// applying the same skip rules as original_source's fat32_readdir.
func (fs *FS_t) ReadDir(cluster uint32) ([]DirEntry_t, error) {
	var entries []DirEntry_t
	buf := make([]uint8, fs.bytesPerCluster)
	for !IsEndOfChain(cluster) {
		if err := fs.ReadCluster(cluster, buf); err != nil {
			return nil, err
		}
		n := int(fs.bytesPerCluster) / dirEntrySize
		for i := 0; i < n; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			if raw[0] == 0x00 {
				return entries, nil
			}
			if e, ok := parseEntry(raw); ok {
				entries = append(entries, e)
			}
		}
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return nil, err
		}
		cluster = next
	}
	return entries, nil
}

/// FindInDir looks up name (case-insensitively, via the 8.3 folding
/// rule) within the directory at cluster.
func (fs *FS_t) FindInDir(cluster uint32, name string) (DirEntry_t, bool, error) {
	target := To83(name)
	buf := make([]uint8, fs.bytesPerCluster)
	for !IsEndOfChain(cluster) {
		if err := fs.ReadCluster(cluster, buf); err != nil {
			return DirEntry_t{}, false, err
		}
		n := int(fs.bytesPerCluster) / dirEntrySize
		for i := 0; i < n; i++ {
			raw := buf[i*dirEntrySize : (i+1)*dirEntrySize]
			if raw[0] == 0x00 {
				return DirEntry_t{}, false, nil
			}
			if raw[0] == deletedMark || raw[11]&attrLFN == attrLFN || raw[11]&attrVolumeID != 0 {
				continue
			}
			if string(raw[0:11]) == string(target[:]) {
				e, _ := parseEntry(raw)
				return e, true, nil
			}
		}
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return DirEntry_t{}, false, err
		}
		cluster = next
	}
	return DirEntry_t{}, false, nil
}

/// ReadFile reads size bytes starting at offset from the file whose
/// data begins at cluster, matching original_source's fat32_read
/// cluster-stepping loop exactly, generalized to return an error
/// instead of a raw byte count.
func (fs *FS_t) ReadFile(cluster uint32, fileSize uint32, offset uint32, out []uint8) (int, error) {
	size := uint32(len(out))
	bytesRead := uint32(0)
	filePos := uint32(0)
	for filePos+fs.bytesPerCluster <= offset && !IsEndOfChain(cluster) {
		filePos += fs.bytesPerCluster
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return 0, err
		}
		cluster = next
	}
	clusterBuf := make([]uint8, fs.bytesPerCluster)
	for bytesRead < size && !IsEndOfChain(cluster) {
		if err := fs.ReadCluster(cluster, clusterBuf); err != nil {
			return int(bytesRead), err
		}
		clusterOffset := uint32(0)
		if filePos < offset {
			clusterOffset = offset - filePos
		}
		toCopy := fs.bytesPerCluster - clusterOffset
		if toCopy > size-bytesRead {
			toCopy = size - bytesRead
		}
		if filePos+clusterOffset+toCopy > fileSize {
			if filePos+clusterOffset >= fileSize {
				break
			}
			toCopy = fileSize - filePos - clusterOffset
		}
		copy(out[bytesRead:bytesRead+toCopy], clusterBuf[clusterOffset:clusterOffset+toCopy])
		bytesRead += toCopy
		filePos += fs.bytesPerCluster
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return int(bytesRead), err
		}
		cluster = next
	}
	return int(bytesRead), nil
}

/// WriteFile writes data at offset into the file whose chain starts at
/// cluster, extending the chain with AllocCluster as needed. There is
/// no original write path to defer to; this follows §4.7's documented
/// write semantics: writes past the current end of the chain grow it
/// one cluster at a time, never leaving a gap of unallocated clusters.
func (fs *FS_t) WriteFile(startCluster uint32, offset uint32, data []uint8) (uint32, error) {
	cluster := startCluster
	filePos := uint32(0)
	clusterBuf := make([]uint8, fs.bytesPerCluster)

	for filePos+fs.bytesPerCluster <= offset {
		next, err := fs.NextCluster(cluster)
		if err != nil {
			return cluster, err
		}
		if IsEndOfChain(next) {
			newc, err := fs.AllocCluster()
			if err != nil {
				return cluster, err
			}
			if err := fs.SetNextCluster(cluster, newc); err != nil {
				return cluster, err
			}
			next = newc
		}
		cluster = next
		filePos += fs.bytesPerCluster
	}

	written := uint32(0)
	for written < uint32(len(data)) {
		if err := fs.ReadCluster(cluster, clusterBuf); err != nil {
			return cluster, err
		}
		clusterOffset := uint32(0)
		if filePos < offset {
			clusterOffset = offset - filePos
		}
		toCopy := fs.bytesPerCluster - clusterOffset
		if toCopy > uint32(len(data))-written {
			toCopy = uint32(len(data)) - written
		}
		copy(clusterBuf[clusterOffset:clusterOffset+toCopy], data[written:written+toCopy])
		if err := fs.WriteCluster(cluster, clusterBuf); err != nil {
			return cluster, err
		}
		written += toCopy
		filePos += fs.bytesPerCluster
		if written < uint32(len(data)) {
			next, err := fs.NextCluster(cluster)
			if err != nil {
				return cluster, err
			}
			if IsEndOfChain(next) {
				newc, err := fs.AllocCluster()
				if err != nil {
					return cluster, err
				}
				if err := fs.SetNextCluster(cluster, newc); err != nil {
					return cluster, err
				}
				next = newc
			}
			cluster = next
		}
	}
	return cluster, nil
}

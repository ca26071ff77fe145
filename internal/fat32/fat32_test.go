package fat32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mystyy01/VANTA/internal/ata"
)

// memDisk is an in-memory ata.Disk_i backing a formatted FAT32 volume,
// sized and laid out the same way cmd/mkfs formats a fresh image.
type memDisk struct {
	sectors [][ata.SECTORSZ]byte
}

func newMemDisk(nsectors int) *memDisk {
	return &memDisk{sectors: make([][ata.SECTORSZ]byte, nsectors)}
}

func (d *memDisk) ReadSectors(lba uint32, count int, buf []uint8) error {
	for i := 0; i < count; i++ {
		copy(buf[i*ata.SECTORSZ:(i+1)*ata.SECTORSZ], d.sectors[int(lba)+i][:])
	}
	return nil
}

func (d *memDisk) WriteSectors(lba uint32, count int, buf []uint8) error {
	for i := 0; i < count; i++ {
		copy(d.sectors[int(lba)+i][:], buf[i*ata.SECTORSZ:(i+1)*ata.SECTORSZ])
	}
	return nil
}

func (d *memDisk) Stats() string { return "memDisk" }

const (
	testReservedSectors = 32
	testNumFATs         = 2
	testRootCluster     = 2
	testTotalSectors    = 2048
)

// formatTestVolume lays down the same minimal FAT32 layout cmd/mkfs
// writes: a boot sector, two zeroed FAT copies (with cluster 0/1 media
// markers and the root directory pre-terminated), and a zeroed root
// directory cluster.
func formatTestVolume(t *testing.T) (*memDisk, *FS_t) {
	t.Helper()
	disk := newMemDisk(testTotalSectors)

	dataSectors := testTotalSectors - testReservedSectors
	fatEntries := dataSectors + 2
	fatSize := (fatEntries*4 + ata.SECTORSZ - 1) / ata.SECTORSZ

	boot := make([]byte, ata.SECTORSZ)
	binary.LittleEndian.PutUint16(boot[11:13], ata.SECTORSZ)
	boot[13] = 1 // sectors per cluster
	binary.LittleEndian.PutUint16(boot[14:16], testReservedSectors)
	boot[16] = testNumFATs
	binary.LittleEndian.PutUint32(boot[32:36], testTotalSectors)
	binary.LittleEndian.PutUint32(boot[36:40], uint32(fatSize))
	binary.LittleEndian.PutUint32(boot[44:48], testRootCluster)
	require.NoError(t, disk.WriteSectors(0, 1, boot))

	fat := make([]byte, fatSize*ata.SECTORSZ)
	binary.LittleEndian.PutUint32(fat[0:4], 0x0FFFFFF8)
	binary.LittleEndian.PutUint32(fat[4:8], 0x0FFFFFFF)
	binary.LittleEndian.PutUint32(fat[testRootCluster*4:testRootCluster*4+4], 0x0FFFFFFF)
	for i := 0; i < testNumFATs; i++ {
		lba := testReservedSectors + i*fatSize
		require.NoError(t, disk.WriteSectors(uint32(lba), fatSize, fat))
	}

	clusterStart := testReservedSectors + testNumFATs*fatSize
	zero := make([]byte, ata.SECTORSZ)
	require.NoError(t, disk.WriteSectors(uint32(clusterStart), 1, zero))

	fs, err := Mount(disk, 0)
	require.NoError(t, err)
	return disk, fs
}

func TestMountRejectsNonFAT32(t *testing.T) {
	disk := newMemDisk(64)
	_, err := Mount(disk, 0)
	require.Error(t, err)
}

func TestMountReadsGeometry(t *testing.T) {
	_, fs := formatTestVolume(t)
	require.EqualValues(t, testRootCluster, fs.RootCluster())
	require.EqualValues(t, ata.SECTORSZ, fs.BytesPerCluster())
}

func TestAllocSetNextCluster(t *testing.T) {
	_, fs := formatTestVolume(t)
	c, err := fs.AllocCluster()
	require.NoError(t, err)
	require.GreaterOrEqual(t, c, uint32(3))

	next, err := fs.NextCluster(c)
	require.NoError(t, err)
	require.True(t, IsEndOfChain(next))

	require.NoError(t, fs.SetNextCluster(c, 99))
	next, err = fs.NextCluster(c)
	require.NoError(t, err)
	require.EqualValues(t, 99, next)
}

func TestTo83(t *testing.T) {
	type testcase struct {
		name string
		in   string
		exp  [11]byte
	}
	testcases := []testcase{
		{name: "short name no ext", in: "bin", exp: [11]byte{'B', 'I', 'N', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}},
		{name: "name with ext", in: "init.elf", exp: [11]byte{'I', 'N', 'I', 'T', ' ', ' ', ' ', ' ', 'E', 'L', 'F'}},
	}
	for _, tcase := range testcases {
		t.Run(tcase.name, func(t *testing.T) {
			require.Equal(t, tcase.exp, To83(tcase.in))
		})
	}
}

func TestWriteDirEntryThenFindInDir(t *testing.T) {
	_, fs := formatTestVolume(t)
	cluster, err := fs.AllocCluster()
	require.NoError(t, err)
	require.NoError(t, fs.WriteDirEntry(fs.RootCluster(), "hello.txt", cluster, 5, false))

	entry, ok, err := fs.FindInDir(fs.RootCluster(), "hello.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello.txt", entry.Name)
	require.Equal(t, cluster, entry.Cluster)
	require.EqualValues(t, 5, entry.Size)
	require.False(t, entry.IsDir)
}

func TestReadDirListsLiveEntries(t *testing.T) {
	_, fs := formatTestVolume(t)
	c1, _ := fs.AllocCluster()
	c2, _ := fs.AllocCluster()
	require.NoError(t, fs.WriteDirEntry(fs.RootCluster(), "a.txt", c1, 0, false))
	require.NoError(t, fs.WriteDirEntry(fs.RootCluster(), "b", c2, 0, true))

	entries, err := fs.ReadDir(fs.RootCluster())
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRemoveDirEntryThenNotFound(t *testing.T) {
	_, fs := formatTestVolume(t)
	c1, _ := fs.AllocCluster()
	require.NoError(t, fs.WriteDirEntry(fs.RootCluster(), "gone.txt", c1, 0, false))

	removed, err := fs.RemoveDirEntry(fs.RootCluster(), "gone.txt")
	require.NoError(t, err)
	require.Equal(t, c1, removed.Cluster)

	_, ok, err := fs.FindInDir(fs.RootCluster(), "gone.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFreeChainMarksClustersFree(t *testing.T) {
	_, fs := formatTestVolume(t)
	c1, _ := fs.AllocCluster()
	c2, _ := fs.AllocCluster()
	require.NoError(t, fs.SetNextCluster(c1, c2))

	require.NoError(t, fs.FreeChain(c1))

	next, err := fs.NextCluster(c1)
	require.NoError(t, err)
	require.EqualValues(t, 0, next)
}

func TestWriteFileThenReadFile(t *testing.T) {
	_, fs := formatTestVolume(t)
	cluster, err := fs.AllocCluster()
	require.NoError(t, err)

	data := []byte("hello, vanta!")
	_, werr := fs.WriteFile(cluster, 0, data)
	require.NoError(t, werr)

	out := make([]byte, len(data))
	n, rerr := fs.ReadFile(cluster, uint32(len(data)), 0, out)
	require.NoError(t, rerr)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestWriteFileSpanningMultipleClusters(t *testing.T) {
	_, fs := formatTestVolume(t)
	cluster, err := fs.AllocCluster()
	require.NoError(t, err)

	data := make([]byte, int(fs.BytesPerCluster())*3)
	for i := range data {
		data[i] = byte(i % 251)
	}
	_, werr := fs.WriteFile(cluster, 0, data)
	require.NoError(t, werr)

	out := make([]byte, len(data))
	n, rerr := fs.ReadFile(cluster, uint32(len(data)), 0, out)
	require.NoError(t, rerr)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestReadFileRespectsFileSizeBound(t *testing.T) {
	_, fs := formatTestVolume(t)
	cluster, err := fs.AllocCluster()
	require.NoError(t, err)

	data := []byte("0123456789")
	_, werr := fs.WriteFile(cluster, 0, data)
	require.NoError(t, werr)

	out := make([]byte, 10)
	n, rerr := fs.ReadFile(cluster, 4, 0, out)
	require.NoError(t, rerr)
	require.Equal(t, 4, n, "fileSize bounds the read even if more data was physically written")
}

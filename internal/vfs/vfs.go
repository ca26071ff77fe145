// Package vfs implements the filesystem-independent node layer (§3,
// §4.7): path resolution, a node cache keyed by inode number, directory
// listing, and read/write forwarding onto the mounted FAT32 backend.
//
// Grounded on the teacher's ufs/ufs.go node-cache-over-a-backend shape
// and biscuit/src/hashtable/hashtable.go for the cache itself (reused
// here keyed by inode number, enforcing the invariant that no two
// cached nodes share an inode).
package vfs

import (
	"fmt"

	"github.com/mystyy01/VANTA/internal/bpath"
	"github.com/mystyy01/VANTA/internal/defs"
	"github.com/mystyy01/VANTA/internal/fat32"
	"github.com/mystyy01/VANTA/internal/hashtable"
	"github.com/mystyy01/VANTA/internal/stat"
	"github.com/mystyy01/VANTA/internal/ustr"
)

// NODE_CACHE_SIZE is the node cache's bucket count, the same number as
// original_source/kernel/fs/fat32.c's 32-slot node_cache. It does not
// bound the cache: buckets chain, and nodes stay cached until their
// entry is unlinked or removed, with no eviction.
const NODE_CACHE_SIZE = 32

/// Node_t is a filesystem node (§3): an inode number, whether it is a
/// directory, its size, and the FAT32 cluster its data chain starts at.
type Node_t struct {
	inode   uint32
	name    string
	isDir   bool
	size    uint32
	cluster uint32
}

/// Inode returns the node's inode number, satisfying fd.VNode_i.
func (n *Node_t) Inode() uint32 { return n.inode }

/// IsDir reports whether the node is a directory.
func (n *Node_t) IsDir() bool { return n.isDir }

/// Size returns the node's current size in bytes.
func (n *Node_t) Size() uint32 { return n.size }

/// Stat fills in a Stat_t for this node, matching §6's wire format.
func (n *Node_t) Stat() stat.Stat_t {
	var st stat.Stat_t
	st.Wsize(n.size)
	if n.isDir {
		st.Wmode(defs.S_IFDIR)
	} else {
		st.Wmode(defs.S_IFREG)
	}
	st.Wino(n.inode)
	return st
}

/// FS_t is the mounted filesystem: the FAT32 backend plus the node
/// cache that guarantees at most one live Node_t per inode.
type FS_t struct {
	backend *fat32.FS_t
	cache   *hashtable.Hashtable_t
	root    *Node_t
}

/// Mount builds a vfs.FS_t over an already-mounted FAT32 backend.
func Mount(backend *fat32.FS_t) *FS_t {
	fs := &FS_t{
		backend: backend,
		cache:   hashtable.MkHash(NODE_CACHE_SIZE),
	}
	root := &Node_t{inode: backend.RootCluster(), name: "/", isDir: true}
	fs.cache.Set(int(root.inode), root)
	fs.root = root
	return fs
}

/// Root returns the filesystem's root node.
func (fs *FS_t) Root() *Node_t { return fs.root }

func (fs *FS_t) nodeFor(entry fat32.DirEntry_t) *Node_t {
	if v, ok := fs.cache.Get(int(entry.Cluster)); ok {
		return v.(*Node_t)
	}
	n := &Node_t{
		inode:   entry.Cluster,
		name:    entry.Name,
		isDir:   entry.IsDir,
		size:    entry.Size,
		cluster: entry.Cluster,
	}
	fs.cache.Set(int(n.inode), n)
	return n
}

/// ResolvePath walks an absolute path component by component starting
/// at the filesystem root, returning ENOENT if any component is
/// missing or ENOTDIR if a non-final component is not a directory.
func (fs *FS_t) ResolvePath(p ustr.Ustr) (*Node_t, defs.Err_t) {
	cur := fs.root
	for _, comp := range bpath.Components(p) {
		if !cur.isDir {
			return nil, defs.ENOTDIR
		}
		entry, ok, err := fs.backend.FindInDir(cur.cluster, comp.String())
		if err != nil {
			return nil, defs.EFAULT
		}
		if !ok {
			return nil, defs.ENOENT
		}
		cur = fs.nodeFor(entry)
	}
	return cur, 0
}

/// EnsurePathExists walks p component by component from the root,
/// creating any missing directory along the way via Mkdir — it is the
/// shared prefix-walk used by both open(..., O_CREAT) and mkdir to find
/// (or make) the parent directory a new entry belongs in. Idempotent
/// when every component already exists as a directory; a component
/// that exists but is a file fails the walk with ENOTDIR, same as
/// ResolvePath.
func (fs *FS_t) EnsurePathExists(p ustr.Ustr) (*Node_t, defs.Err_t) {
	cur := fs.root
	for _, comp := range bpath.Components(p) {
		if !cur.isDir {
			return nil, defs.ENOTDIR
		}
		name := comp.String()
		entry, ok, err := fs.backend.FindInDir(cur.cluster, name)
		if err != nil {
			return nil, defs.EFAULT
		}
		if !ok {
			n, merr := fs.Mkdir(cur, name)
			if merr != 0 {
				return nil, merr
			}
			cur = n
			continue
		}
		if !entry.IsDir {
			return nil, defs.ENOTDIR
		}
		cur = fs.nodeFor(entry)
	}
	return cur, 0
}

/// ReadDir lists a directory node's live entries as Dirent_t records.
func (fs *FS_t) ReadDir(n *Node_t) ([]stat.Dirent_t, defs.Err_t) {
	if !n.isDir {
		return nil, defs.ENOTDIR
	}
	entries, err := fs.backend.ReadDir(n.cluster)
	if err != nil {
		return nil, defs.EFAULT
	}
	out := make([]stat.Dirent_t, 0, len(entries))
	for _, e := range entries {
		typ := stat.DT_FILE
		if e.IsDir {
			typ = stat.DT_DIR
		}
		out = append(out, stat.MkDirent(e.Name, typ))
	}
	return out, 0
}

/// Read reads up to len(buf) bytes from n starting at offset.
func (fs *FS_t) Read(n *Node_t, offset int64, buf []uint8) (int, defs.Err_t) {
	if n.isDir {
		return 0, defs.EISDIR
	}
	if offset < 0 || offset > int64(n.size) {
		return 0, defs.EINVAL
	}
	cnt, err := fs.backend.ReadFile(n.cluster, n.size, uint32(offset), buf)
	if err != nil {
		return 0, defs.EFAULT
	}
	return cnt, 0
}

/// Write writes len(buf) bytes into n at offset, growing the node's
/// recorded size (and FAT chain, via the backend) as needed.
func (fs *FS_t) Write(n *Node_t, offset int64, buf []uint8) (int, defs.Err_t) {
	if n.isDir {
		return 0, defs.EISDIR
	}
	if offset < 0 {
		return 0, defs.EINVAL
	}
	if _, err := fs.backend.WriteFile(n.cluster, uint32(offset), buf); err != nil {
		return 0, defs.EFAULT
	}
	if end := uint32(offset) + uint32(len(buf)); end > n.size {
		n.size = end
	}
	return len(buf), 0
}

/// Create allocates a new zero-length file node under parent named
/// name. There is no original write-path implementation to follow;
/// this implements §4.7's documented create semantics: allocate one
/// cluster, leave it end-of-chain, and register the node in the cache
/// under its cluster-derived inode.
func (fs *FS_t) Create(parent *Node_t, name string) (*Node_t, defs.Err_t) {
	if !parent.isDir {
		return nil, defs.ENOTDIR
	}
	if _, ok, _ := fs.backend.FindInDir(parent.cluster, name); ok {
		return nil, defs.EEXIST
	}
	cluster, err := fs.backend.AllocCluster()
	if err != nil {
		return nil, defs.ENOSPC
	}
	if err := fs.backend.WriteDirEntry(parent.cluster, name, cluster, 0, false); err != nil {
		return nil, defs.EFAULT
	}
	n := &Node_t{inode: cluster, name: name, isDir: false, cluster: cluster}
	fs.cache.Set(int(n.inode), n)
	return n, 0
}

/// Mkdir allocates a new empty directory node under parent named name
/// and installs it as a directory entry, the write-path counterpart to
/// Create (§4.7, SYS_MKDIR).
func (fs *FS_t) Mkdir(parent *Node_t, name string) (*Node_t, defs.Err_t) {
	if !parent.isDir {
		return nil, defs.ENOTDIR
	}
	if _, ok, _ := fs.backend.FindInDir(parent.cluster, name); ok {
		return nil, defs.EEXIST
	}
	cluster, err := fs.backend.AllocCluster()
	if err != nil {
		return nil, defs.ENOSPC
	}
	if err := fs.backend.WriteDirEntry(parent.cluster, name, cluster, 0, true); err != nil {
		return nil, defs.EFAULT
	}
	n := &Node_t{inode: cluster, name: name, isDir: true, cluster: cluster}
	fs.cache.Set(int(n.inode), n)
	return n, 0
}

/// Unlink removes a file entry named name from parent and frees its
/// cluster chain. Removing a directory this way is rejected with
/// EISDIR — use Rmdir instead.
func (fs *FS_t) Unlink(parent *Node_t, name string) defs.Err_t {
	if !parent.isDir {
		return defs.ENOTDIR
	}
	entry, ok, _ := fs.backend.FindInDir(parent.cluster, name)
	if !ok {
		return defs.ENOENT
	}
	if entry.IsDir {
		return defs.EISDIR
	}
	removed, err := fs.backend.RemoveDirEntry(parent.cluster, name)
	if err != nil {
		return defs.EFAULT
	}
	if removed.Cluster != 0 {
		fs.backend.FreeChain(removed.Cluster)
	}
	if _, cached := fs.cache.Get(int(removed.Cluster)); cached {
		fs.cache.Del(int(removed.Cluster))
	}
	return 0
}

/// Rmdir removes an empty directory entry named name from parent.
func (fs *FS_t) Rmdir(parent *Node_t, name string) defs.Err_t {
	if !parent.isDir {
		return defs.ENOTDIR
	}
	entry, ok, _ := fs.backend.FindInDir(parent.cluster, name)
	if !ok {
		return defs.ENOENT
	}
	if !entry.IsDir {
		return defs.ENOTDIR
	}
	children, derr := fs.backend.ReadDir(entry.Cluster)
	if derr != nil {
		return defs.EFAULT
	}
	if len(children) > 0 {
		return defs.ENOTEMPTY
	}
	removed, err := fs.backend.RemoveDirEntry(parent.cluster, name)
	if err != nil {
		return defs.EFAULT
	}
	fs.backend.FreeChain(removed.Cluster)
	if _, cached := fs.cache.Get(int(removed.Cluster)); cached {
		fs.cache.Del(int(removed.Cluster))
	}
	return 0
}

/// Rename moves the entry named oldName under oldParent to newName
/// under newParent, preserving its cluster chain and size. There is no
/// original rename implementation to defer to; this removes the old
/// directory entry and installs an equivalent new one, matching §4.7's
/// documented semantics.
func (fs *FS_t) Rename(oldParent *Node_t, oldName string, newParent *Node_t, newName string) defs.Err_t {
	if !oldParent.isDir || !newParent.isDir {
		return defs.ENOTDIR
	}
	entry, ok, _ := fs.backend.FindInDir(oldParent.cluster, oldName)
	if !ok {
		return defs.ENOENT
	}
	if _, exists, _ := fs.backend.FindInDir(newParent.cluster, newName); exists {
		return defs.EEXIST
	}
	if _, err := fs.backend.RemoveDirEntry(oldParent.cluster, oldName); err != nil {
		return defs.EFAULT
	}
	if err := fs.backend.WriteDirEntry(newParent.cluster, newName, entry.Cluster, entry.Size, entry.IsDir); err != nil {
		return defs.EFAULT
	}
	if v, ok := fs.cache.Get(int(entry.Cluster)); ok {
		v.(*Node_t).name = newName
	}
	return 0
}

/// Truncate sets a file node's recorded size. Shrinking never reclaims
/// the now-unused tail of its cluster chain (spec Non-goals: no
/// free-space reclamation on shrink) — only growth through Write
/// extends the chain.
func (fs *FS_t) Truncate(n *Node_t, size uint32) defs.Err_t {
	if n.isDir {
		return defs.EISDIR
	}
	n.size = size
	return 0
}

func (fs *FS_t) String() string {
	return fmt.Sprintf("vfs(cache=%d)", fs.cache.Size())
}

// Package fs is a thin, read-only jacobsa/fuse filesystem shim over an
// opened *archive.Archive. It implements only the operations needed to
// browse and read an archive's contents: lookup, attributes, directory
// listing, and file reads. There is no write-back path; mutating an archive
// happens through the archive package directly, then Commit.
package fs

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/xerrors"

	"github.com/tesshu/arhfs/archive"
)

const rootInode = fuseops.RootInodeID

// never is used for attribute/entry expiration: the archive a mounted
// filesystem serves is read-only for the lifetime of the mount, so cached
// values never go stale.
var never = time.Now().Add(365 * 24 * time.Hour)

type node struct {
	path  string
	isDir bool
	id    uint32 // valid only for files
}

// arhFS implements fuseutil.FileSystem over a single opened archive. Inode
// numbers are assigned lazily on first lookup and never reused within a
// mount.
type arhFS struct {
	fuseutil.NotImplementedFileSystem

	a *archive.Archive

	mu       sync.Mutex
	inodeCnt fuseops.InodeID
	nodes    map[fuseops.InodeID]*node
	byPath   map[string]fuseops.InodeID
}

// Mount mounts a as a read-only filesystem at mountpoint, returning a join
// function the caller blocks on until the filesystem is unmounted.
func Mount(ctx context.Context, a *archive.Archive, mountpoint string) (join func(context.Context) error, err error) {
	fs := &arhFS{
		a:        a,
		inodeCnt: rootInode,
		nodes:    make(map[fuseops.InodeID]*node),
		byPath:   make(map[string]fuseops.InodeID),
	}
	fs.nodes[rootInode] = &node{path: "/", isDir: true}
	fs.byPath["/"] = rootInode

	server := fuseutil.NewFileSystemServer(fs)
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:   "arhfs",
		ReadOnly: true,
	})
	if err != nil {
		return nil, xerrors.Errorf("fuse.Mount: %w", err)
	}
	return mfs.Join, nil
}

func (fs *arhFS) childInode(parentPath, name string, isDir bool, id uint32) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	full := joinPath(parentPath, name)
	if inode, ok := fs.byPath[full]; ok {
		return inode
	}
	fs.inodeCnt++
	inode := fs.inodeCnt
	fs.nodes[inode] = &node{path: full, isDir: isDir, id: id}
	fs.byPath[full] = inode
	return inode
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func (fs *arhFS) attributes(n *node) (fuseops.InodeAttributes, error) {
	if n.isDir {
		return fuseops.InodeAttributes{
			Nlink: 1,
			Mode:  os.ModeDir | 0555,
		}, nil
	}
	info, err := fs.a.Stat(n.path)
	if err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return fuseops.InodeAttributes{
		Nlink: 1,
		Mode:  0444,
		Size:  uint64(info.UncompressedSize),
	}, nil
}

func (fs *arhFS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	parent, ok := fs.nodes[op.Parent]
	fs.mu.Unlock()
	if !ok || !parent.isDir {
		return fuse.EIO
	}
	entries, err := fs.a.List(parent.path)
	if err != nil {
		return fuse.EIO
	}
	for _, e := range entries {
		if e.Name != op.Name {
			continue
		}
		inode := fs.childInode(parent.path, e.Name, e.IsDir, e.ID)
		fs.mu.Lock()
		n := fs.nodes[inode]
		fs.mu.Unlock()
		attrs, err := fs.attributes(n)
		if err != nil {
			return fuse.EIO
		}
		op.Entry.Child = inode
		op.Entry.Attributes = attrs
		op.Entry.AttributesExpiration = never
		op.Entry.EntryExpiration = never
		return nil
	}
	return fuse.ENOENT
}

func (fs *arhFS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}
	attrs, err := fs.attributes(n)
	if err != nil {
		return fuse.EIO
	}
	op.Attributes = attrs
	op.AttributesExpiration = never
	return nil
}

func (fs *arhFS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok || !n.isDir {
		return fuse.ENOENT
	}
	return nil
}

func (fs *arhFS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok || !n.isDir {
		return fuse.EIO
	}
	entries, err := fs.a.List(n.path)
	if err != nil {
		return fuse.EIO
	}
	var dirents []fuseutil.Dirent
	for i, e := range entries {
		typ := fuseutil.DT_File
		if e.IsDir {
			typ = fuseutil.DT_Directory
		}
		dirents = append(dirents, fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fs.childInode(n.path, e.Name, e.IsDir, e.ID),
			Name:   e.Name,
			Type:   typ,
		})
	}
	if op.Offset > fuseops.DirOffset(len(dirents)) {
		return fuse.EIO
	}
	for _, d := range dirents[op.Offset:] {
		written := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if written == 0 {
			break
		}
		op.BytesRead += written
	}
	return nil
}

func (fs *arhFS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok || n.isDir {
		return fuse.ENOENT
	}
	return nil
}

func (fs *arhFS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	n, ok := fs.nodes[op.Inode]
	fs.mu.Unlock()
	if !ok || n.isDir {
		return fuse.EIO
	}
	data, err := fs.a.Read(n.id)
	if err != nil {
		return fuse.EIO
	}
	if op.Offset > int64(len(data)) {
		return nil
	}
	op.BytesRead = copy(op.Dst, data[op.Offset:])
	return nil
}

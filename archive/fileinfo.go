package archive

// FileInfo is a read-only view of a file's metadata record, combining the
// trie lookup result with the C4 record. Per §3's ownership rule, a
// FileInfo does not outlive the Archive it came from.
type FileInfo struct {
	Path             string
	ID               uint32
	DataOffset       uint64
	CompressedSize   uint32
	UncompressedSize uint32
	Compressed       bool
}

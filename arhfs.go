// Package arhfs contains process-wide helpers shared by the archive codec
// packages and the CLI: interrupt handling and an at-exit hook list. The
// codec and facade live in internal/arh, internal/ard, internal/arhx and
// archive; this package only holds the glue a command-line front-end needs.
package arhfs

// MaxPathByte is the highest byte value a path component may contain. The
// trie's XOR child-indexing scheme (see internal/arh) requires every
// path byte to be at most 0x7F.
const MaxPathByte = 0x7F

package arh

import (
	"encoding/binary"

	"github.com/tesshu/arhfs/internal/arherr"
	"golang.org/x/xerrors"
)

// pathEndByte is a reserved pseudo-byte outside the 0x00-0x7F range that
// real path bytes may take. It resolves what happens when a traversal
// exhausts the path at an internal node: every internal node may
// additionally have a child at byte 0x80 whose terminal carries an empty
// string-table fragment. Reaching that child means "the path ends exactly
// here." This keeps lookup/insert/remove a single uniform XOR-child walk
// instead of two algorithms, and degrades to NotFound when reading an
// archive that was not built with this convention.
const pathEndByte = 0x80

// childBytes is the size of the child alphabet: 0x00-0x7F real path bytes
// plus the one pathEndByte pseudo-byte.
const childBytes = 0x81

// dictNode is one (next, prev) pair of the packed path dictionary.
//
// A node is the root iff its index is 0. A non-root node with Next >= 0 is
// internal: base = Next, and the child for byte c lives at index
// base ^ int32(c), valid only if that slot's Prev equals this node's index.
// A node with Next < 0 is a terminal: encodeTerminal/decodeTerminalOffset
// convert between Next and the string-table offset it carries. The offset
// is biased by one so that offset 0 (the first table entry) never encodes
// to Next == 0, which would otherwise be indistinguishable from an
// internal node with base 0 or, when Prev is also 0, the unused-slot
// sentinel. A node with Next == 0 and Prev == 0 is unused (free).
type dictNode struct {
	Next int32
	Prev int32
}

// encodeTerminal packs a string-table offset into a terminal node's Next
// field. The +1 bias keeps Next < 0 for every offset, including 0.
func encodeTerminal(off uint32) int32 { return -(int32(off) + 1) }

// decodeTerminalOffset recovers the string-table offset packed by
// encodeTerminal. next must be < 0.
func decodeTerminalOffset(next int32) uint32 { return uint32(-(next + 1)) }

const dictNodeSize = 8 // two little-endian int32s, per §6.

// Trie is the in-memory packed path dictionary (C3).
type Trie struct {
	nodes []dictNode
}

// NewTrie returns an empty trie containing only the root.
func NewTrie() *Trie {
	return &Trie{nodes: []dictNode{{Next: 0, Prev: -1}}}
}

// DecodeTrie parses a trie from its on-disk packed (next, prev) pair array
// (already de-obfuscated).
func DecodeTrie(b []byte) (*Trie, error) {
	if len(b)%dictNodeSize != 0 {
		return nil, arherr.New(arherr.InvalidFormat, "arh.DecodeTrie",
			xerrors.Errorf("dictionary size %d not a multiple of %d", len(b), dictNodeSize))
	}
	n := len(b) / dictNodeSize
	nodes := make([]dictNode, n)
	for i := 0; i < n; i++ {
		off := i * dictNodeSize
		nodes[i] = dictNode{
			Next: int32(binary.LittleEndian.Uint32(b[off:])),
			Prev: int32(binary.LittleEndian.Uint32(b[off+4:])),
		}
	}
	if n == 0 || nodes[0].Next != 0 || nodes[0].Prev >= 0 {
		return nil, arherr.New(arherr.InvalidFormat, "arh.DecodeTrie",
			xerrors.New("root node invariant violated"))
	}
	return &Trie{nodes: nodes}, nil
}

// Encode serializes the trie to its on-disk packed array form.
func (t *Trie) Encode() []byte {
	b := make([]byte, len(t.nodes)*dictNodeSize)
	for i, n := range t.nodes {
		off := i * dictNodeSize
		binary.LittleEndian.PutUint32(b[off:], uint32(n.Next))
		binary.LittleEndian.PutUint32(b[off+4:], uint32(n.Prev))
	}
	return b
}

// EntryCount returns the dictionary entry count field, which the header
// records as dictionary size / 8, i.e. the number of (next, prev) pairs.
func (t *Trie) EntryCount() uint32 { return uint32(len(t.nodes)) }

func (t *Trie) valid(i int32) bool { return i >= 0 && int(i) < len(t.nodes) }

func (t *Trie) free(i int32) bool {
	return t.valid(i) && t.nodes[i].Next == 0 && t.nodes[i].Prev == 0
}

func (t *Trie) grow(upTo int32) {
	for int32(len(t.nodes)) <= upTo {
		t.nodes = append(t.nodes, dictNode{})
	}
}

// childSlot returns the index of i's child for byte c, without validating
// that the slot actually belongs to i.
func childSlot(base int32, c int) int32 { return base ^ int32(c) }

// children enumerates the bytes c for which i currently has a live child.
func (t *Trie) children(i int32) []int {
	base := t.nodes[i].Next
	var cs []int
	for c := 0; c < childBytes; c++ {
		j := childSlot(base, c)
		if j == 0 {
			continue // never points back at the root
		}
		if t.valid(j) && !t.free(j) && t.nodes[j].Prev == i {
			cs = append(cs, c)
		}
	}
	return cs
}

// findBase locates a base b such that, for every byte in need, the slot
// b ^ need[k] is either free or not yet allocated (growable), and never 0
// (the root). It is the node allocator named in §4.3.
func (t *Trie) findBase(need []int) int32 {
	for b := int32(1); ; b++ {
		ok := true
		for _, c := range need {
			j := childSlot(b, c)
			if j == 0 {
				ok = false
				break
			}
			if t.valid(j) && !t.free(j) {
				ok = false
				break
			}
		}
		if ok {
			return b
		}
	}
}

// relocate moves the live children of node i to a freshly chosen base that
// also accommodates a new child byte, newC, fixing up grandchildren's Prev
// backlinks so the invariant D[D[i].Next ^ c].Prev == i keeps holding after
// the move. It returns the slot for newC.
func (t *Trie) relocate(i int32, newC int) int32 {
	existing := t.children(i)
	need := append(append([]int(nil), existing...), newC)
	newBase := t.findBase(need)
	maxIdx := newBase
	for _, c := range need {
		if j := childSlot(newBase, c); j > maxIdx {
			maxIdx = j
		}
	}
	t.grow(maxIdx)

	oldBase := t.nodes[i].Next
	for _, c := range existing {
		oldJ := childSlot(oldBase, c)
		newJ := childSlot(newBase, c)
		node := t.nodes[oldJ]
		t.nodes[newJ] = node
		// Fix up this child's own children (if it is itself internal) so
		// their Prev backlinks point at its new index instead of oldJ.
		if node.Next >= 0 {
			for _, gc := range t.children(oldJ) {
				t.nodes[childSlot(node.Next, gc)].Prev = newJ
			}
		}
		t.nodes[oldJ] = dictNode{}
	}
	t.nodes[i].Next = newBase
	return childSlot(newBase, newC)
}

// ensureChild returns the slot holding i's child for byte c, allocating and
// relocating as necessary. i must already be internal (Next >= 0).
func (t *Trie) ensureChild(i int32, c int) int32 {
	base := t.nodes[i].Next
	j := childSlot(base, c)
	if j != 0 && (t.free(j) || !t.valid(j)) {
		t.grow(j)
		t.nodes[j].Prev = i
		return j
	}
	if t.valid(j) && t.nodes[j].Prev == i {
		return j // already exists
	}
	return t.relocate(i, c)
}

// newInternal turns the unused-or-terminal node at i into a fresh internal
// node whose only children are those in need (bytes 0-0x80), returning the
// slots assigned in the same order as need.
func (t *Trie) newInternal(i int32, parent int32, need []int) []int32 {
	base := t.findBase(need)
	maxIdx := base
	for _, c := range need {
		if j := childSlot(base, c); j > maxIdx {
			maxIdx = j
		}
	}
	t.grow(maxIdx)
	t.nodes[i] = dictNode{Next: base, Prev: parent}
	slots := make([]int32, len(need))
	for k, c := range need {
		j := childSlot(base, c)
		t.nodes[j].Prev = i
		slots[k] = j
	}
	return slots
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Lookup implements §4.3's lookup algorithm, including the pathEndByte
// extension documented above.
func (t *Trie) Lookup(path string, str *StringTable) (id uint32, err error) {
	p := []byte(path)
	i := int32(0)
	k := 0
	for t.nodes[i].Next >= 0 {
		var c int
		if k == len(p) {
			c = pathEndByte
		} else {
			if p[k] > 0x7F {
				return 0, arherr.New(arherr.InvalidFormat, "arh.Trie.Lookup",
					xerrors.New("path byte out of range"))
			}
			c = int(p[k])
		}
		j := childSlot(t.nodes[i].Next, c)
		if j == 0 || !t.valid(j) || t.nodes[j].Prev != i {
			return 0, arherr.New(arherr.NotFound, "arh.Trie.Lookup", nil)
		}
		i = j
		if c != pathEndByte {
			k++
		} else {
			break
		}
	}
	if t.nodes[i].Next >= 0 {
		// Reached the end of the path on an internal node without a
		// pathEndByte child: no match, per the fallback in §9.
		return 0, arherr.New(arherr.NotFound, "arh.Trie.Lookup", nil)
	}
	off := decodeTerminalOffset(t.nodes[i].Next)
	frag, fileID, err := str.ReadFragment(off)
	if err != nil {
		return 0, err
	}
	rest := p[k:]
	if len(frag) != len(rest) {
		return 0, arherr.New(arherr.NotFound, "arh.Trie.Lookup", nil)
	}
	for x := range frag {
		if frag[x] != rest[x] {
			return 0, arherr.New(arherr.NotFound, "arh.Trie.Lookup", nil)
		}
	}
	return fileID, nil
}

// Insert implements §4.3's insertion algorithm: traverse to the first point
// of divergence, then either fail with AlreadyExists, split a terminal into
// a chain of internal nodes plus two terminals, or graft a fresh terminal
// onto an existing internal node.
func (t *Trie) Insert(path string, id uint32, str *StringTable) error {
	p := []byte(path)
	i := int32(0)
	k := 0
	for t.nodes[i].Next >= 0 {
		c := pathEndByte
		if k < len(p) {
			if p[k] > 0x7F {
				return arherr.New(arherr.InvalidFormat, "arh.Trie.Insert", xerrors.New("path byte out of range"))
			}
			c = int(p[k])
		}
		j := childSlot(t.nodes[i].Next, c)
		if j == 0 || !t.valid(j) || t.free(j) || t.nodes[j].Prev != i {
			// The slot is absent, unused, or held by another node's child;
			// ensureChild relocates i's children in the last case.
			slot := t.ensureChild(i, c)
			// The fragment following a real byte starts at k+1 (the byte
			// itself is consumed by the trie step); the fragment following
			// pathEndByte is the empty remainder.
			var off uint32
			if c != pathEndByte {
				off = str.Append(p[k+1:], id)
			} else {
				off = str.Append(nil, id)
			}
			t.nodes[slot] = dictNode{Next: encodeTerminal(off), Prev: i}
			return nil
		}
		i = j
		if c == pathEndByte {
			break
		}
		k++
	}
	if t.nodes[i].Next >= 0 {
		// Path ended on an internal node with no pathEndByte child yet:
		// add one directly.
		slot := t.ensureChild(i, pathEndByte)
		off := str.Append(nil, id)
		t.nodes[slot] = dictNode{Next: encodeTerminal(off), Prev: i}
		return nil
	}
	return t.splitTerminal(i, p, k, id, str)
}

// splitTerminal handles the case where traversal reached an existing
// terminal before the new path was fully consumed (or was fully consumed
// exactly at the terminal, which is the duplicate-insert case). The shared
// prefix between the existing terminal's remaining fragment and the new
// path's remaining suffix is materialized as a chain of single-child
// internal nodes, one per shared byte, so every later trie step keeps
// consuming exactly one path byte; only at the point of actual divergence
// does a node gain two children.
func (t *Trie) splitTerminal(i int32, p []byte, k int, id uint32, str *StringTable) error {
	off := decodeTerminalOffset(t.nodes[i].Next)
	frag, _, err := str.ReadFragment(off)
	if err != nil {
		return err
	}
	u := p[k:]
	lcp := commonPrefixLen(frag, u)
	if lcp == len(frag) && lcp == len(u) {
		return arherr.New(arherr.AlreadyExists, "arh.Trie.Insert", nil)
	}

	// byteAt returns the child byte s contributes at position pos, and the
	// remaining tail fragment to store if it becomes a terminal.
	byteAt := func(s []byte, pos int) (c int, tail []byte) {
		if pos == len(s) {
			return pathEndByte, nil
		}
		return int(s[pos]), s[pos+1:]
	}

	cur := i
	curParent := t.nodes[i].Prev
	for depth := 0; depth < lcp; depth++ {
		slots := t.newInternal(cur, curParent, []int{int(frag[depth])})
		curParent = cur
		cur = slots[0]
	}

	cOld, tailOld := byteAt(frag, lcp)
	cNew, tailNew := byteAt(u, lcp)
	_ = tailOld // tailOld bytes are still present at oldOff in the string table; no need to re-append them.

	slots := t.newInternal(cur, curParent, []int{cOld, cNew})
	oldSlot, newSlot := slots[0], slots[1]

	oldOff := off + uint32(lcp)
	if cOld != pathEndByte {
		oldOff++
	}
	t.nodes[oldSlot] = dictNode{Next: encodeTerminal(oldOff), Prev: cur}

	newOff := str.Append(tailNew, id)
	t.nodes[newSlot] = dictNode{Next: encodeTerminal(newOff), Prev: cur}
	return nil
}

// Remove implements §4.3's removal algorithm: locate the terminal, free it,
// then collapse internal nodes back toward the root whose child set has
// become empty.
func (t *Trie) Remove(path string, str *StringTable) error {
	p := []byte(path)
	i := int32(0)
	k := 0
	for t.nodes[i].Next >= 0 {
		c := pathEndByte
		if k < len(p) {
			c = int(p[k])
		}
		j := childSlot(t.nodes[i].Next, c)
		if j == 0 || !t.valid(j) || t.nodes[j].Prev != i {
			return arherr.New(arherr.NotFound, "arh.Trie.Remove", nil)
		}
		i = j
		if c == pathEndByte {
			break
		}
		k++
	}
	if t.nodes[i].Next >= 0 {
		return arherr.New(arherr.NotFound, "arh.Trie.Remove", nil)
	}
	off := decodeTerminalOffset(t.nodes[i].Next)
	frag, _, err := str.ReadFragment(off)
	if err != nil {
		return err
	}
	rest := p[k:]
	if len(frag) != len(rest) {
		return arherr.New(arherr.NotFound, "arh.Trie.Remove", nil)
	}
	for x := range frag {
		if frag[x] != rest[x] {
			return arherr.New(arherr.NotFound, "arh.Trie.Remove", nil)
		}
	}

	// Free the terminal, then collapse empty internal ancestors.
	cur := i
	for cur != 0 {
		parent := t.nodes[cur].Prev
		t.nodes[cur] = dictNode{}
		if len(t.children(parent)) > 0 {
			break
		}
		cur = parent
	}
	return nil
}

// Walk visits every (path, id) pair reachable from the root in an
// unspecified order, stopping early if visit returns false. It is the
// primitive C9 directory enumeration and the Fsck checker build on.
func (t *Trie) Walk(str *StringTable, visit func(path string, id uint32) bool) error {
	var prefix []byte
	var walk func(i int32) (bool, error)
	walk = func(i int32) (bool, error) {
		n := t.nodes[i]
		if n.Next < 0 {
			frag, id, err := str.ReadFragment(decodeTerminalOffset(n.Next))
			if err != nil {
				return false, err
			}
			full := append(append([]byte(nil), prefix...), frag...)
			return visit(string(full), id), nil
		}
		for c := 0; c < childBytes; c++ {
			j := childSlot(n.Next, c)
			if j == 0 || !t.valid(j) || t.nodes[j].Prev != i {
				continue
			}
			if c != pathEndByte {
				prefix = append(prefix, byte(c))
			}
			cont, err := walk(j)
			if c != pathEndByte {
				prefix = prefix[:len(prefix)-1]
			}
			if err != nil {
				return false, err
			}
			if !cont {
				return false, nil
			}
		}
		return true, nil
	}
	_, err := walk(0)
	return err
}

// Nodes exposes the raw node count.
func (t *Trie) Nodes() int { return len(t.nodes) }

// CheckBackLinks verifies that every node other than the root that is in
// use (i.e. not the Next == 0, Prev == 0 unused sentinel) has a parent that
// is an internal node, and that the child slot the parent would compute for
// some byte actually lands back on this node. A violation means the dictionary was
// corrupted or hand-crafted inconsistently.
func (t *Trie) CheckBackLinks() error {
	for j, n := range t.nodes {
		if j == 0 {
			continue
		}
		if n.Next == 0 && n.Prev == 0 {
			continue // unused slot
		}
		if !t.valid(n.Prev) {
			return arherr.New(arherr.InvalidFormat, "arh.Trie.CheckBackLinks",
				xerrors.Errorf("node %d has out-of-range Prev %d", j, n.Prev))
		}
		parent := t.nodes[n.Prev]
		if parent.Next < 0 {
			return arherr.New(arherr.InvalidFormat, "arh.Trie.CheckBackLinks",
				xerrors.Errorf("node %d claims parent %d, but %d is a terminal", j, n.Prev, n.Prev))
		}
		if t.free(n.Prev) {
			return arherr.New(arherr.InvalidFormat, "arh.Trie.CheckBackLinks",
				xerrors.Errorf("node %d claims parent %d, but %d is unused", j, n.Prev, n.Prev))
		}
		found := false
		for c := 0; c < childBytes; c++ {
			if childSlot(parent.Next, c) == int32(j) {
				found = true
				break
			}
		}
		if !found {
			return arherr.New(arherr.InvalidFormat, "arh.Trie.CheckBackLinks",
				xerrors.Errorf("node %d is not reachable from its claimed parent %d", j, n.Prev))
		}
	}
	return nil
}

package archive

import (
	"fmt"

	"github.com/tesshu/arhfs/internal/arherr"
)

// Finding is one consistency problem reported by Fsck.
type Finding struct {
	Code    Code
	Message string
}

// Fsck checks three consistency invariants: back-link consistency in the
// path trie, every live id resolving to a metadata record reachable from
// exactly one path, and the allocator's occupancy bitmap agreeing with the
// live files it is supposed to be tracking. It never mutates the archive;
// callers decide what, if anything, to repair.
func (a *Archive) Fsck() ([]Finding, error) {
	var findings []Finding

	if err := a.trie.CheckBackLinks(); err != nil {
		findings = append(findings, Finding{Code: arherr.InvalidFormat, Message: err.Error()})
	}

	live := make(map[uint32]string)
	walkErr := a.trie.Walk(a.str, func(path string, id uint32) bool {
		if prior, dup := live[id]; dup {
			findings = append(findings, Finding{
				Code:    arherr.InvalidFormat,
				Message: fmt.Sprintf("file id %d reachable from both %q and %q", id, prior, path),
			})
			return true
		}
		live[id] = path
		if a.recycle.Contains(id) {
			findings = append(findings, Finding{
				Code:    arherr.InvalidFormat,
				Message: fmt.Sprintf("file id %d is live at %q but also present in the recycle bin", id, path),
			})
		}
		if _, ok := a.meta.Get(id); !ok {
			findings = append(findings, Finding{
				Code:    arherr.InvalidFormat,
				Message: fmt.Sprintf("path %q resolves to id %d, which has no metadata record", path, id),
			})
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	for id := 0; id < a.meta.Len(); id++ {
		id := uint32(id)
		if _, reachable := live[id]; reachable {
			continue
		}
		if a.recycle.Contains(id) {
			continue // correctly free
		}
		findings = append(findings, Finding{
			Code:    arherr.InvalidFormat,
			Message: fmt.Sprintf("file id %d is neither reachable from the trie nor in the recycle bin", id),
		})
	}

	bs := uint64(a.alloc.BlockSize())
	for id, path := range live {
		rec, ok := a.meta.Get(id)
		if !ok {
			continue // already reported above
		}
		n := a.alloc.BlocksForBytes(uint64(rec.CompressedSize))
		if n == 0 {
			n = 1
		}
		block := rec.DataOffset / bs
		for b := block; b < block+n; b++ {
			if !a.alloc.Occupied(b) {
				findings = append(findings, Finding{
					Code:    arherr.InvalidFormat,
					Message: fmt.Sprintf("block %d backing %q (id %d) is not marked occupied in the allocator", b, path, id),
				})
			}
		}
	}

	return findings, nil
}

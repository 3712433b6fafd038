package ard

import "sort"

// Recycle is the sorted set of file ids freed by deletion and available for
// reuse on the next insertion (C6).
type Recycle struct {
	ids []uint32 // kept sorted ascending
}

// NewRecycle returns an empty recycle bin.
func NewRecycle() *Recycle { return &Recycle{} }

// DecodeRecycle parses the sorted id list from the extended section.
func DecodeRecycle(ids []uint32) *Recycle {
	r := &Recycle{ids: append([]uint32(nil), ids...)}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r
}

// IDs returns the sorted ids for serialization.
func (r *Recycle) IDs() []uint32 { return r.ids }

// Len reports how many ids are available for reuse.
func (r *Recycle) Len() int { return len(r.ids) }

// Take removes and returns the minimum id in the bin. The caller must check
// Len() > 0 first.
func (r *Recycle) Take() uint32 {
	id := r.ids[0]
	r.ids = r.ids[1:]
	return id
}

// Add inserts id into the bin, keeping it sorted.
func (r *Recycle) Add(id uint32) {
	i := sort.Search(len(r.ids), func(i int) bool { return r.ids[i] >= id })
	if i < len(r.ids) && r.ids[i] == id {
		return // already present; ignore duplicate free
	}
	r.ids = append(r.ids, 0)
	copy(r.ids[i+1:], r.ids[i:])
	r.ids[i] = id
}

// Contains reports whether id is currently recycled.
func (r *Recycle) Contains(id uint32) bool {
	i := sort.Search(len(r.ids), func(i int) bool { return r.ids[i] >= id })
	return i < len(r.ids) && r.ids[i] == id
}

package commitment

// TreeHeight is the height of the fixed-height binary Patricia trie whose
// root Root computes (spec §4.3): leaves are keyed by consecutive integers
// starting at 0, which guarantees the "all leaves share bit 0 at h"
// edge case always has an all-zero prefix (the structural assumption the
// spec licenses implementations to make).
const TreeHeight = 64

// Root computes the Patricia root over leaves[0..len(leaves)), keyed by
// their index. calculate_root([]) == 0; calculate_root([v]) == v (spec
// §8 "Boundary behaviors").
func Root(leaves []FieldElement) FieldElement {
	if len(leaves) == 0 {
		return Zero()
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	return rootAt(leaves, 0)
}

// rootAt implements the recursive rule of §4.3 for the leaf slice whose
// indices, relative to the subtree, start at 0 and are consecutive.
func rootAt(leaves []FieldElement, height uint) FieldElement {
	if height == TreeHeight {
		return leaves[0]
	}

	// p = index of first leaf whose bit `height` (counting from the top,
	// i.e. bit (TreeHeight-1-height) of the absolute 64-bit index) is 1.
	bitPos := TreeHeight - 1 - height
	p := firstSetBitIndex(leaves, bitPos)

	if p < len(leaves) {
		left := rootAt(leaves[:p], height+1)
		right := rootAt(leaves[p:], height+1)
		return Pedersen(left, right)
	}

	// All leaves share bit 0 at this height. Because indices are
	// consecutive starting at 0, this can only happen while the whole
	// remaining leaf set still fits under a longer all-zero prefix; find
	// how many additional levels share bit 0 and recurse past them.
	z := uint(1)
	for height+z < TreeHeight {
		nextBitPos := TreeHeight - 1 - (height + z)
		if firstSetBitIndex(leaves, nextBitPos) < len(leaves) {
			break
		}
		z++
	}
	childRoot := rootAt(leaves, height+z)
	return Add(Pedersen(childRoot, Zero()), FromUint64(uint64(z)))
}

// firstSetBitIndex returns the index of the first leaf (by position in
// the slice, which tracks consecutive integer keys) whose bitPos-th bit
// (0 = LSB) of its absolute index is 1, or len(leaves) if none is.
// Leaves in a recursive call are always a contiguous range
// [base, base+len(leaves)) of the original key space; since the caller
// always starts the top-level call at absolute index 0 and only ever
// splits at a power-of-two boundary, the leaf's position within the
// slice IS its absolute index for the purposes of bit bitPos.
func firstSetBitIndex(leaves []FieldElement, bitPos uint) int {
	mask := uint64(1) << bitPos
	for i := range leaves {
		if uint64(i)&mask != 0 {
			return i
		}
	}
	return len(leaves)
}

// IncrementalBuilder supports appending leaves one at a time and
// recomputing the root lazily, matching the original's per-level node
// cache in crates/libmdbx-rs/src/orm (SPEC_FULL.md "SUPPLEMENTED
// FEATURES"). It trades recompute cost for not needing the whole leaf
// vector materialized up front.
type IncrementalBuilder struct {
	leaves []FieldElement
}

// NewIncrementalBuilder starts an empty incremental tree.
func NewIncrementalBuilder() *IncrementalBuilder {
	return &IncrementalBuilder{}
}

// Append adds the next leaf (at index len(leaves)).
func (b *IncrementalBuilder) Append(v FieldElement) {
	b.leaves = append(b.leaves, v)
}

// Root recomputes and returns the current root.
func (b *IncrementalBuilder) Root() FieldElement {
	return Root(b.leaves)
}

// Len reports how many leaves have been appended.
func (b *IncrementalBuilder) Len() int { return len(b.leaves) }

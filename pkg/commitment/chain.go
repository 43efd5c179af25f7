package commitment

// Chain folds a variable-length sequence of field elements through
// Pedersen, length-augmented so that two sequences differing only in a
// trailing run of zeros still hash differently (spec §4.3):
//
//	chain(v_0..v_{n-1}) = Pedersen(Pedersen(...Pedersen(Pedersen(0, v_0), v_1)..., v_{n-1}), n)
func Chain(values ...FieldElement) FieldElement {
	acc := Zero()
	for _, v := range values {
		acc = Pedersen(acc, v)
	}
	return Pedersen(acc, FromUint64(uint64(len(values))))
}

// ChainBuilder supports the original's incremental fold API: ChainIf is a
// no-op when cond is false, and the final Pedersen(acc, n) augmentation is
// applied by Finish.
type ChainBuilder struct {
	acc FieldElement
	n   uint64
}

// NewChainBuilder starts a fresh fold at the chain's identity state.
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{acc: Zero()}
}

// ChainNext folds v into the accumulator unconditionally.
func (c *ChainBuilder) ChainNext(v FieldElement) *ChainBuilder {
	c.acc = Pedersen(c.acc, v)
	c.n++
	return c
}

// ChainIf folds v into the accumulator only when cond holds.
func (c *ChainBuilder) ChainIf(cond bool, v FieldElement) *ChainBuilder {
	if cond {
		return c.ChainNext(v)
	}
	return c
}

// ChainIter folds every element of vs into the accumulator in order.
func (c *ChainBuilder) ChainIter(vs []FieldElement) *ChainBuilder {
	for _, v := range vs {
		c.ChainNext(v)
	}
	return c
}

// Finish applies the length augmentation and returns the chain's root.
func (c *ChainBuilder) Finish() FieldElement {
	return Pedersen(c.acc, FromUint64(c.n))
}

package commitment

import "math/big"

// basePoints are the four generator points and shift point Pedersen(a, b)
// is built from. They are computed once at package init via hashToCurve
// and are otherwise immutable process-wide state (spec §9).
var (
	shiftPoint = hashToCurve("papyrus-sub004:pedersen:shift_point")
	p0         = hashToCurve("papyrus-sub004:pedersen:p0")
	p1         = hashToCurve("papyrus-sub004:pedersen:p1")
	p2         = hashToCurve("papyrus-sub004:pedersen:p2")
	p3         = hashToCurve("papyrus-sub004:pedersen:p3")
)

const lowBits = 248

func splitLowHigh(v *big.Int) (low, high *big.Int) {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), lowBits), big.NewInt(1))
	low = new(big.Int).And(v, mask)
	high = new(big.Int).Rsh(v, lowBits)
	return
}

// Pedersen computes the two-input Stark-curve Pedersen hash:
//
//	Pedersen(a, b) = shift_point + a_low*P0 + a_high*P1 + b_low*P2 + b_high*P3
//
// where a_low/a_high (resp. b) are the low 248 bits and remaining high
// bits of a (resp. b).
func Pedersen(a, b FieldElement) FieldElement {
	aLow, aHigh := splitLowHigh(a.v)
	bLow, bHigh := splitLowHigh(b.v)

	result := shiftPoint
	result = pointAdd(result, scalarMul(aLow, p0))
	result = pointAdd(result, scalarMul(aHigh, p1))
	result = pointAdd(result, scalarMul(bLow, p2))
	result = pointAdd(result, scalarMul(bHigh, p3))

	x := new(big.Int).Mod(result.x, Prime)
	return FieldElement{v: x}
}

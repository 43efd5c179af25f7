package commitment

import "math/big"

// The Stark-friendly curve: y^2 = x^3 + alpha*x + beta (mod Prime).
// Alpha is 1; Beta is a 76-digit decimal constant whose first 73 digits
// are those of pi, the "nothing-up-my-sleeve" constant the curve is
// defined with.
var (
	alpha = big.NewInt(1)
	beta  = mustBig("3141592653589793238462643383279502884197169399375105820974944592307816406665")
)

func mustBig(dec string) *big.Int {
	v, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		panic("commitment: invalid constant " + dec)
	}
	return v
}

// point is an affine point on the curve. A point with inf set (as built
// by infinity) represents the point at infinity (identity element).
type point struct {
	x, y *big.Int
	inf  bool
}

func infinity() point { return point{inf: true} }

func modInverse(a *big.Int) *big.Int {
	return new(big.Int).ModInverse(a, Prime)
}

func pointAdd(p, q point) point {
	if p.inf {
		return q
	}
	if q.inf {
		return p
	}
	if p.x.Cmp(q.x) == 0 {
		if new(big.Int).Add(p.y, q.y).Mod(new(big.Int).Add(p.y, q.y), Prime).Sign() == 0 {
			return infinity()
		}
		return pointDouble(p)
	}
	// lambda = (q.y - p.y) / (q.x - p.x)
	num := new(big.Int).Sub(q.y, p.y)
	den := new(big.Int).Sub(q.x, p.x)
	den.Mod(den, Prime)
	lambda := new(big.Int).Mul(num, modInverse(den))
	lambda.Mod(lambda, Prime)
	return finishAdd(p, q, lambda)
}

func pointDouble(p point) point {
	if p.inf {
		return p
	}
	// lambda = (3x^2 + alpha) / (2y)
	num := new(big.Int).Mul(p.x, p.x)
	num.Mul(num, big.NewInt(3))
	num.Add(num, alpha)
	den := new(big.Int).Mul(p.y, big.NewInt(2))
	den.Mod(den, Prime)
	lambda := new(big.Int).Mul(num, modInverse(den))
	lambda.Mod(lambda, Prime)
	return finishAdd(p, p, lambda)
}

func finishAdd(p, q point, lambda *big.Int) point {
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.x)
	x3.Sub(x3, q.x)
	x3.Mod(x3, Prime)
	y3 := new(big.Int).Sub(p.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.y)
	y3.Mod(y3, Prime)
	return point{x: x3, y: y3}
}

// scalarMul computes k*p via double-and-add over k's bits, least
// significant first.
func scalarMul(k *big.Int, p point) point {
	result := infinity()
	addend := p
	bits := k.BitLen()
	for i := 0; i < bits; i++ {
		if k.Bit(i) == 1 {
			result = pointAdd(result, addend)
		}
		addend = pointDouble(addend)
	}
	return result
}

// tonelliShanksSqrt returns a square root of a mod Prime, if one exists.
func tonelliShanksSqrt(a *big.Int) (*big.Int, bool) {
	a = new(big.Int).Mod(a, Prime)
	if a.Sign() == 0 {
		return big.NewInt(0), true
	}
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(Prime, one)
	legendre := new(big.Int).Exp(a, new(big.Int).Rsh(pMinus1, 1), Prime)
	if legendre.Cmp(one) != 0 {
		return nil, false
	}

	// factor p-1 = q * 2^s
	q := new(big.Int).Set(pMinus1)
	s := 0
	for new(big.Int).Mod(q, big.NewInt(2)).Sign() == 0 {
		q.Rsh(q, 1)
		s++
	}

	// find a quadratic non-residue z
	z := big.NewInt(2)
	for new(big.Int).Exp(z, new(big.Int).Rsh(pMinus1, 1), Prime).Cmp(pMinus1) != 0 {
		z.Add(z, one)
	}

	m := s
	c := new(big.Int).Exp(z, q, Prime)
	t := new(big.Int).Exp(a, q, Prime)
	qPlus1Half := new(big.Int).Rsh(new(big.Int).Add(q, one), 1)
	r := new(big.Int).Exp(a, qPlus1Half, Prime)

	for t.Cmp(one) != 0 {
		// find least i, 0<i<m, such that t^(2^i) == 1
		i := 0
		tt := new(big.Int).Set(t)
		for tt.Cmp(one) != 0 {
			tt.Mul(tt, tt)
			tt.Mod(tt, Prime)
			i++
			if i == m {
				return nil, false
			}
		}
		b := new(big.Int).Exp(c, new(big.Int).Lsh(one, uint(m-i-1)), Prime)
		m = i
		c = new(big.Int).Mul(b, b)
		c.Mod(c, Prime)
		t.Mul(t, c)
		t.Mod(t, Prime)
		r.Mul(r, b)
		r.Mod(r, Prime)
	}
	return r, true
}

// hashToCurve deterministically derives a curve point from seed using the
// standard try-and-increment construction: hash the seed to a field
// element x, then probe x, x+1, x+2... until x^3+alpha*x+beta has a
// square root. This is the same "nothing up my sleeve" technique the
// curve's own base points are historically generated with.
func hashToCurve(seed string) point {
	x := new(big.Int).SetBytes(sha256Sum([]byte(seed)))
	x.Mod(x, Prime)
	for {
		rhs := new(big.Int).Exp(x, big.NewInt(3), Prime)
		ax := new(big.Int).Mul(alpha, x)
		rhs.Add(rhs, ax)
		rhs.Add(rhs, beta)
		rhs.Mod(rhs, Prime)
		if y, ok := tonelliShanksSqrt(rhs); ok {
			return point{x: x, y: y}
		}
		x.Add(x, big.NewInt(1))
		x.Mod(x, Prime)
	}
}

package seqgan

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// gru is a gated recurrent cell:
//
//	z  = σ(Wz x + Uz h + bz)
//	r  = σ(Wr x + Ur h + br)
//	n  = tanh(Wn x + Un (r ⊙ h) + bn)
//	h' = (1 - z) ⊙ n + z ⊙ h
type gru struct {
	in     int
	hidden int

	wz, uz, bz *param
	wr, ur, br *param
	wn, un, bn *param
}

func newGRU(prefix string, in int, hidden int, rng *rand.Rand) *gru {
	const scale = 0.1

	c := gru{
		in:     in,
		hidden: hidden,
		wz:     newParam(prefix+".wz", hidden, in, scale, rng),
		uz:     newParam(prefix+".uz", hidden, hidden, scale, rng),
		bz:     newParam(prefix+".bz", hidden, 1, 0, rng),
		wr:     newParam(prefix+".wr", hidden, in, scale, rng),
		ur:     newParam(prefix+".ur", hidden, hidden, scale, rng),
		br:     newParam(prefix+".br", hidden, 1, 0, rng),
		wn:     newParam(prefix+".wn", hidden, in, scale, rng),
		un:     newParam(prefix+".un", hidden, hidden, scale, rng),
		bn:     newParam(prefix+".bn", hidden, 1, 0, rng),
	}

	return &c
}

func (c *gru) params() []*param {
	return []*param{c.wz, c.uz, c.bz, c.wr, c.ur, c.br, c.wn, c.un, c.bn}
}

// gruStep keeps what backward needs from one forward step.
type gruStep struct {
	x     *mat.VecDense
	hPrev *mat.VecDense
	z     *mat.VecDense
	r     *mat.VecDense
	rh    *mat.VecDense
	n     *mat.VecDense
	h     *mat.VecDense
}

func (c *gru) affine(w *param, u *param, b *param, x mat.Vector, h mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(c.hidden, nil)
	out.MulVec(w.w, x)

	var uh mat.VecDense
	uh.MulVec(u.w, h)

	out.AddVec(out, &uh)
	out.AddVec(out, b.w.ColView(0))

	return out
}

func (c *gru) forward(x *mat.VecDense, hPrev *mat.VecDense) gruStep {
	z := c.affine(c.wz, c.uz, c.bz, x, hPrev)
	apply(z, sigmoid)

	r := c.affine(c.wr, c.ur, c.br, x, hPrev)
	apply(r, sigmoid)

	rh := mat.NewVecDense(c.hidden, nil)
	rh.MulElemVec(r, hPrev)

	n := c.affine(c.wn, c.un, c.bn, x, rh)
	apply(n, math.Tanh)

	h := mat.NewVecDense(c.hidden, nil)
	hd, zd, nd, hp := h.RawVector().Data, z.RawVector().Data, n.RawVector().Data, hPrev.RawVector().Data
	for i := range hd {
		hd[i] = (1-zd[i])*nd[i] + zd[i]*hp[i]
	}

	return gruStep{x: x, hPrev: hPrev, z: z, r: r, rh: rh, n: n, h: h}
}

// backward accumulates parameter gradients for one step given the gradient
// of the loss with respect to the step output, and returns the gradients
// with respect to the step input and the previous hidden state.
func (c *gru) backward(s gruStep, dh *mat.VecDense) (dx *mat.VecDense, dhPrev *mat.VecDense) {
	zd, rd, nd := s.z.RawVector().Data, s.r.RawVector().Data, s.n.RawVector().Data
	hp, dhd := s.hPrev.RawVector().Data, dh.RawVector().Data

	dan := make([]float64, c.hidden)
	daz := make([]float64, c.hidden)
	dar := make([]float64, c.hidden)

	dhPrev = mat.NewVecDense(c.hidden, nil)
	dhp := dhPrev.RawVector().Data

	for i := range dhd {
		dn := dhd[i] * (1 - zd[i])
		dz := dhd[i] * (hp[i] - nd[i])

		dhp[i] = dhd[i] * zd[i]
		dan[i] = dn * (1 - nd[i]*nd[i])
		daz[i] = dz * zd[i] * (1 - zd[i])
	}

	danV := mat.NewVecDense(c.hidden, dan)

	c.wn.g.RankOne(c.wn.g, 1, danV, s.x)
	c.un.g.RankOne(c.un.g, 1, danV, s.rh)
	floats.Add(c.bn.g.RawMatrix().Data, dan)

	var drh mat.VecDense
	drh.MulVec(c.un.w.T(), danV)

	drhd := drh.RawVector().Data
	for i := range drhd {
		dr := drhd[i] * hp[i]
		dhp[i] += drhd[i] * rd[i]
		dar[i] = dr * rd[i] * (1 - rd[i])
	}

	dazV := mat.NewVecDense(c.hidden, daz)
	darV := mat.NewVecDense(c.hidden, dar)

	c.wz.g.RankOne(c.wz.g, 1, dazV, s.x)
	c.uz.g.RankOne(c.uz.g, 1, dazV, s.hPrev)
	floats.Add(c.bz.g.RawMatrix().Data, daz)

	c.wr.g.RankOne(c.wr.g, 1, darV, s.x)
	c.ur.g.RankOne(c.ur.g, 1, darV, s.hPrev)
	floats.Add(c.br.g.RawMatrix().Data, dar)

	dx = mat.NewVecDense(c.in, nil)
	dx.MulVec(c.wn.w.T(), danV)

	var tmpX mat.VecDense
	tmpX.MulVec(c.wz.w.T(), dazV)
	dx.AddVec(dx, &tmpX)
	tmpX.MulVec(c.wr.w.T(), darV)
	dx.AddVec(dx, &tmpX)

	var tmpH mat.VecDense
	tmpH.MulVec(c.uz.w.T(), dazV)
	dhPrev.AddVec(dhPrev, &tmpH)
	tmpH.MulVec(c.ur.w.T(), darV)
	dhPrev.AddVec(dhPrev, &tmpH)

	return dx, dhPrev
}

// =============================================================================

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// softplus computes log(1 + e^x) without overflow.
func softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

func apply(v *mat.VecDense, f func(float64) float64) {
	data := v.RawVector().Data
	for i := range data {
		data[i] = f(data[i])
	}
}

// logSoftmax returns log probabilities for the logits.
func logSoftmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)

	out := make([]float64, len(logits))
	for i, l := range logits {
		out[i] = l - lse
	}

	return out
}

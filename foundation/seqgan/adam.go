package seqgan

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Adam settings. The model ignores any externally supplied learning rate.
const (
	learningRate = 0.001
	beta1        = 0.9
	beta2        = 0.999
	epsilon      = 1e-8
)

// param is a trainable matrix and its accumulated gradient. Bias vectors
// are stored as single column matrices.
type param struct {
	name string
	w    *mat.Dense
	g    *mat.Dense
}

func newParam(name string, rows int, cols int, scale float64, rng *rand.Rand) *param {
	data := make([]float64, rows*cols)
	if scale > 0 {
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * scale
		}
	}

	p := param{
		name: name,
		w:    mat.NewDense(rows, cols, data),
		g:    mat.NewDense(rows, cols, nil),
	}

	return &p
}

// =============================================================================

type adam struct {
	params []*param
	m      [][]float64
	v      [][]float64
	t      int
}

func newAdam(params []*param) *adam {
	opt := adam{
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}

	for i, p := range params {
		n := len(p.w.RawMatrix().Data)
		opt.m[i] = make([]float64, n)
		opt.v[i] = make([]float64, n)
	}

	return &opt
}

// step applies the accumulated gradients and clears them.
func (opt *adam) step() {
	opt.t++

	c1 := 1 - math.Pow(beta1, float64(opt.t))
	c2 := 1 - math.Pow(beta2, float64(opt.t))

	for i, p := range opt.params {
		w := p.w.RawMatrix().Data
		g := p.g.RawMatrix().Data
		m, v := opt.m[i], opt.v[i]

		for j := range w {
			m[j] = beta1*m[j] + (1-beta1)*g[j]
			v[j] = beta2*v[j] + (1-beta2)*g[j]*g[j]
			w[j] -= learningRate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + epsilon)
		}

		p.g.Zero()
	}
}

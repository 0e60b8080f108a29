// Package seqgan provides a character level GRU generator trained against a
// GRU discriminator. The generator can be trained supervised on target
// sequences or adversarially with policy gradients where the reward is the
// discriminator's per step belief that the sequence is real.
package seqgan

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Set of errors the model can return.
var (
	ErrInvalidSequence = errors.New("invalid sequence")
	ErrDiverged        = errors.New("loss is not finite")
)

// Config holds the hyperparameters fixed at construction.
type Config struct {
	NumEmb      int
	EmbDim      int
	HiddenDim   int
	SeqLength   int
	StartToken  int
	RewardGamma float64
}

func (cfg *Config) validate() error {
	if cfg.RewardGamma == 0 {
		cfg.RewardGamma = 0.95
	}

	switch {
	case cfg.NumEmb <= 0 || cfg.EmbDim <= 0 || cfg.HiddenDim <= 0 || cfg.SeqLength <= 0:
		return fmt.Errorf("dimensions must be positive: %+v", *cfg)
	case cfg.StartToken < 0 || cfg.StartToken >= cfg.NumEmb:
		return fmt.Errorf("start token %d outside vocabulary of %d", cfg.StartToken, cfg.NumEmb)
	case cfg.RewardGamma < 0 || cfg.RewardGamma > 1:
		return fmt.Errorf("reward gamma %v outside [0, 1]", cfg.RewardGamma)
	}

	return nil
}

// =============================================================================

// Model is the generator and discriminator pair with their optimizers.
type Model struct {
	cfg      Config
	gen      *generator
	dis      *discriminator
	gOpt     *adam
	dOpt     *adam
	baseline []float64
	rng      *rand.Rand
}

// New constructs a model with weights drawn from rng.
func New(cfg Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	gen := newGenerator(cfg, rng)
	dis := newDiscriminator(cfg, rng)

	m := Model{
		cfg:      cfg,
		gen:      gen,
		dis:      dis,
		gOpt:     newAdam(gen.params()),
		dOpt:     newAdam(dis.params()),
		baseline: make([]float64, cfg.SeqLength),
		rng:      rng,
	}

	return &m, nil
}

// PretrainStep performs one supervised generator update on seq. It returns
// the mean cross entropy and the generator's most likely token per step.
func (m *Model) PretrainStep(seq []int) (float64, []int, error) {
	if err := m.check(seq); err != nil {
		return 0, nil, err
	}

	tr := m.gen.forward(seq)

	weights := make([]float64, len(seq))
	for i := range weights {
		weights[i] = 1 / float64(len(seq))
	}

	loss := tr.loss(seq, weights)
	if !finite(loss) {
		return 0, nil, fmt.Errorf("pretrain: %w", ErrDiverged)
	}

	m.gen.backward(tr, seq, weights)
	m.gOpt.step()

	return loss, tr.argmax(), nil
}

// TrainGStep samples a sequence and performs one policy gradient update.
// It returns the surrogate loss, the expected reward per position and the
// sampled sequence.
func (m *Model) TrainGStep() (float64, []float64, []int, error) {
	gen := m.gen.sample(m.rng)

	rewards := m.rewards(gen)

	weights := make([]float64, len(gen))
	for t, r := range rewards {
		weights[t] = (r - m.baseline[t]) / float64(len(gen))
		m.baseline[t] = 0.9*m.baseline[t] + 0.1*r
	}

	tr := m.gen.forward(gen)

	loss := tr.loss(gen, weights)
	if !finite(loss) {
		return 0, nil, nil, fmt.Errorf("train generator: %w", ErrDiverged)
	}

	m.gen.backward(tr, gen, weights)
	m.gOpt.step()

	return loss, slices.Clone(m.baseline), gen, nil
}

// TrainDRealStep performs one discriminator update labeling seq as real.
func (m *Model) TrainDRealStep(seq []int) (float64, error) {
	if err := m.check(seq); err != nil {
		return 0, err
	}

	return m.trainD(seq, 1)
}

// TrainDGenStep performs one discriminator update labeling a freshly
// generated sequence as fake.
func (m *Model) TrainDGenStep() (float64, error) {
	return m.trainD(m.gen.sample(m.rng), 0)
}

// Discriminate returns the discriminator's per step probability that seq
// is real.
func (m *Model) Discriminate(seq []int) ([]float64, error) {
	if err := m.check(seq); err != nil {
		return nil, err
	}

	return m.dis.forward(seq).probs(), nil
}

func (m *Model) trainD(seq []int, label float64) (float64, error) {
	tr := m.dis.forward(seq)

	loss := tr.loss(label)
	if !finite(loss) {
		return 0, fmt.Errorf("train discriminator: %w", ErrDiverged)
	}

	m.dis.backward(tr, seq, label)
	m.dOpt.step()

	return loss, nil
}

// rewards returns the discounted sum of future discriminator outputs for
// every position of seq.
func (m *Model) rewards(seq []int) []float64 {
	probs := m.dis.forward(seq).probs()

	out := make([]float64, len(probs))

	var acc float64
	for t := len(probs) - 1; t >= 0; t-- {
		acc = probs[t] + m.cfg.RewardGamma*acc
		out[t] = acc
	}

	return out
}

func (m *Model) check(seq []int) error {
	if len(seq) != m.cfg.SeqLength {
		return fmt.Errorf("length %d, want %d: %w", len(seq), m.cfg.SeqLength, ErrInvalidSequence)
	}

	for i, tok := range seq {
		if tok < 0 || tok >= m.cfg.NumEmb {
			return fmt.Errorf("token %d at %d outside vocabulary: %w", tok, i, ErrInvalidSequence)
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// =============================================================================

type generator struct {
	numEmb int
	length int
	start  int
	emb    *param
	cell   *gru
	wo     *param
	bo     *param
}

func newGenerator(cfg Config, rng *rand.Rand) *generator {
	g := generator{
		numEmb: cfg.NumEmb,
		length: cfg.SeqLength,
		start:  cfg.StartToken,
		emb:    newParam("g.emb", cfg.NumEmb, cfg.EmbDim, 0.1, rng),
		cell:   newGRU("g.gru", cfg.EmbDim, cfg.HiddenDim, rng),
		wo:     newParam("g.wo", cfg.NumEmb, cfg.HiddenDim, 0.1, rng),
		bo:     newParam("g.bo", cfg.NumEmb, 1, 0, rng),
	}

	return &g
}

func (g *generator) params() []*param {
	return append([]*param{g.emb, g.wo, g.bo}, g.cell.params()...)
}

func (g *generator) embed(tok int) *mat.VecDense {
	x := mat.NewVecDense(g.emb.w.RawMatrix().Cols, nil)
	x.CopyVec(g.emb.w.RowView(tok))
	return x
}

func (g *generator) output(h *mat.VecDense) []float64 {
	var logits mat.VecDense
	logits.MulVec(g.wo.w, h)
	logits.AddVec(&logits, g.bo.w.ColView(0))

	return logSoftmax(logits.RawVector().Data)
}

// genTrace is a teacher forced pass: the input at step t is the target at
// step t-1, and the start token at step 0.
type genTrace struct {
	inputs []int
	steps  []gruStep
	logp   [][]float64
}

func (g *generator) forward(seq []int) *genTrace {
	tr := genTrace{
		inputs: make([]int, len(seq)),
		steps:  make([]gruStep, len(seq)),
		logp:   make([][]float64, len(seq)),
	}

	h := mat.NewVecDense(g.cell.hidden, nil)
	prev := g.start

	for t, tok := range seq {
		st := g.cell.forward(g.embed(prev), h)

		tr.inputs[t] = prev
		tr.steps[t] = st
		tr.logp[t] = g.output(st.h)

		h = st.h
		prev = tok
	}

	return &tr
}

// loss is the weighted negative log likelihood of seq.
func (tr *genTrace) loss(seq []int, weights []float64) float64 {
	var loss float64
	for t, tok := range seq {
		loss -= weights[t] * tr.logp[t][tok]
	}

	return loss
}

func (tr *genTrace) argmax() []int {
	out := make([]int, len(tr.logp))
	for t, lp := range tr.logp {
		out[t] = floats.MaxIdx(lp)
	}

	return out
}

func (g *generator) backward(tr *genTrace, seq []int, weights []float64) {
	carry := mat.NewVecDense(g.cell.hidden, nil)

	for t := len(seq) - 1; t >= 0; t-- {
		dl := make([]float64, g.numEmb)
		for i, lp := range tr.logp[t] {
			dl[i] = weights[t] * math.Exp(lp)
		}
		dl[seq[t]] -= weights[t]

		dlV := mat.NewVecDense(g.numEmb, dl)
		st := tr.steps[t]

		g.wo.g.RankOne(g.wo.g, 1, dlV, st.h)
		floats.Add(g.bo.g.RawMatrix().Data, dl)

		dh := mat.NewVecDense(g.cell.hidden, nil)
		dh.MulVec(g.wo.w.T(), dlV)
		dh.AddVec(dh, carry)

		dx, dhPrev := g.cell.backward(st, dh)
		floats.Add(g.emb.g.RawRowView(tr.inputs[t]), dx.RawVector().Data)

		carry = dhPrev
	}
}

func (g *generator) sample(rng *rand.Rand) []int {
	seq := make([]int, 0, g.length)

	h := mat.NewVecDense(g.cell.hidden, nil)
	prev := g.start

	for range g.length {
		st := g.cell.forward(g.embed(prev), h)

		tok := sampleIndex(g.output(st.h), rng)
		seq = append(seq, tok)

		h = st.h
		prev = tok
	}

	return seq
}

func sampleIndex(logp []float64, rng *rand.Rand) int {
	u := rng.Float64()

	var acc float64
	for i, lp := range logp {
		acc += math.Exp(lp)
		if u < acc {
			return i
		}
	}

	return len(logp) - 1
}

// =============================================================================

type discriminator struct {
	emb  *param
	cell *gru
	wd   *param
	bd   *param
}

func newDiscriminator(cfg Config, rng *rand.Rand) *discriminator {
	d := discriminator{
		emb:  newParam("d.emb", cfg.NumEmb, cfg.EmbDim, 0.1, rng),
		cell: newGRU("d.gru", cfg.EmbDim, cfg.HiddenDim, rng),
		wd:   newParam("d.wd", 1, cfg.HiddenDim, 0.1, rng),
		bd:   newParam("d.bd", 1, 1, 0, rng),
	}

	return &d
}

func (d *discriminator) params() []*param {
	return append([]*param{d.emb, d.wd, d.bd}, d.cell.params()...)
}

type disTrace struct {
	steps  []gruStep
	logits []float64
}

func (d *discriminator) forward(seq []int) *disTrace {
	tr := disTrace{
		steps:  make([]gruStep, len(seq)),
		logits: make([]float64, len(seq)),
	}

	h := mat.NewVecDense(d.cell.hidden, nil)

	for t, tok := range seq {
		x := mat.NewVecDense(d.emb.w.RawMatrix().Cols, nil)
		x.CopyVec(d.emb.w.RowView(tok))

		st := d.cell.forward(x, h)

		tr.steps[t] = st
		tr.logits[t] = mat.Dot(d.wd.w.RowView(0), st.h) + d.bd.w.At(0, 0)

		h = st.h
	}

	return &tr
}

func (tr *disTrace) probs() []float64 {
	out := make([]float64, len(tr.logits))
	for i, a := range tr.logits {
		out[i] = sigmoid(a)
	}

	return out
}

// loss is the mean binary cross entropy of every step against label.
func (tr *disTrace) loss(label float64) float64 {
	var loss float64
	for _, a := range tr.logits {
		loss += label*softplus(-a) + (1-label)*softplus(a)
	}

	return loss / float64(len(tr.logits))
}

func (d *discriminator) backward(tr *disTrace, seq []int, label float64) {
	n := float64(len(seq))
	carry := mat.NewVecDense(d.cell.hidden, nil)

	for t := len(seq) - 1; t >= 0; t-- {
		st := tr.steps[t]
		da := (sigmoid(tr.logits[t]) - label) / n

		floats.AddScaled(d.wd.g.RawRowView(0), da, st.h.RawVector().Data)
		d.bd.g.Set(0, 0, d.bd.g.At(0, 0)+da)

		dh := mat.NewVecDense(d.cell.hidden, nil)
		dh.AddScaledVec(carry, da, d.wd.w.RowView(0))

		dx, dhPrev := d.cell.backward(st, dh)
		floats.Add(d.emb.g.RawRowView(seq[t]), dx.RawVector().Data)

		carry = dhPrev
	}
}

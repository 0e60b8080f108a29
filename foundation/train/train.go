// Package train provides the epoch trainer that alternates generator and
// discriminator updates, mixing supervised and adversarial generator steps
// in the proportion the curriculum asks for.
package train

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/Strideradu/sequence-gan/foundation/curriculum"
	"github.com/Strideradu/sequence-gan/foundation/journal"
	"github.com/Strideradu/sequence-gan/foundation/vector"
	"github.com/google/uuid"
)

// Model is the behavior the trainer needs from a generator and
// discriminator pair.
type Model interface {
	PretrainStep(seq []int) (float64, []int, error)
	TrainGStep() (float64, []float64, []int, error)
	TrainDRealStep(seq []int) (float64, error)
	TrainDGenStep() (float64, error)
}

// =============================================================================

// Logger represents a function for emitting key/value log lines.
type Logger func(ctx context.Context, msg string, args ...any)

// NoopLogger discards everything.
var NoopLogger = func(ctx context.Context, msg string, args ...any) {}

var stdout = log.New(os.Stdout, "", log.LstdFlags)

// StdoutLogger writes one timestamped line per call to standard output.
var StdoutLogger = func(ctx context.Context, msg string, args ...any) {
	stdout.Println(format(msg, args))
}

func format(msg string, args []any) string {
	var b strings.Builder
	b.WriteString("msg: ")
	b.WriteString(msg)

	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, ", %s: %v", args[i], args[i+1])
	}

	return b.String()
}

// =============================================================================

// Stats summarizes one epoch.
type Stats struct {
	Epoch                int
	ProportionSupervised float64
	DLoss                float64
	SupervisedGLoss      float64
	UnsupervisedGLoss    float64
	SupervisedCorrect    float64
	UnsupervisedCorrect  float64
	SupervisedSample     string
	UnsupervisedSample   string
	ExpectedRewards      []float64
	SupervisedSteps      int
	UnsupervisedSteps    int
}

// Trainer runs epochs against a model.
type Trainer struct {
	log            Logger
	rng            *rand.Rand
	proportionReal float64
	journal        *journal.Journal
	runID          uuid.UUID
}

// New constructs a trainer. Random decisions are drawn from rng.
func New(log Logger, rng *rand.Rand, options ...func(trn *Trainer)) *Trainer {
	trn := Trainer{
		log:            log,
		rng:            rng,
		proportionReal: 0.5,
	}

	for _, option := range options {
		option(&trn)
	}

	return &trn
}

// WithJournal records the statistics of every epoch under runID.
func WithJournal(j *journal.Journal, runID uuid.UUID) func(trn *Trainer) {
	return func(trn *Trainer) {
		trn.journal = j
		trn.runID = runID
	}
}

// WithProportionReal sets the fraction of discriminator steps that train on
// real sequences rather than generated ones.
func WithProportionReal(p float64) func(trn *Trainer) {
	return func(trn *Trainer) {
		trn.proportionReal = p
	}
}

// TrainEpoch runs one epoch, logs its statistics and records them in the
// journal when one is configured.
func (trn *Trainer) TrainEpoch(ctx context.Context, m Model, ep curriculum.Epoch) error {
	trn.log(ctx, "train epoch", "iterations", ep.Iterations, "g_steps", ep.GSteps, "d_steps", ep.DSteps)
	trn.log(ctx, "train epoch", "proportion_supervised", fmt.Sprintf("%.2f", ep.ProportionSupervised))

	st, err := trn.Epoch(m, ep)
	if err != nil {
		return err
	}

	trn.log(ctx, "epoch statistics",
		"d_loss", st.DLoss,
		"g_loss_supervised", st.SupervisedGLoss,
		"g_loss_unsupervised", st.UnsupervisedGLoss)

	trn.log(ctx, "epoch statistics",
		"correct_supervised", st.SupervisedCorrect,
		"correct_unsupervised", st.UnsupervisedCorrect)

	trn.log(ctx, "epoch statistics",
		"sample_supervised", st.SupervisedSample,
		"sample_unsupervised", st.UnsupervisedSample)

	trn.log(ctx, "epoch statistics", "expected_rewards", st.ExpectedRewards)

	if trn.journal == nil {
		return nil
	}

	rec := journal.EpochRecord{
		RunID:                trn.runID,
		Epoch:                st.Epoch,
		ProportionSupervised: st.ProportionSupervised,
		DLoss:                st.DLoss,
		SupervisedGLoss:      st.SupervisedGLoss,
		UnsupervisedGLoss:    st.UnsupervisedGLoss,
		SupervisedCorrect:    st.SupervisedCorrect,
		UnsupervisedCorrect:  st.UnsupervisedCorrect,
		SupervisedSample:     st.SupervisedSample,
		UnsupervisedSample:   st.UnsupervisedSample,
		ExpectedReward:       vector.Mean(st.ExpectedRewards),
	}

	if err := trn.journal.RecordEpoch(ctx, rec); err != nil {
		return fmt.Errorf("record epoch: %w", err)
	}

	return nil
}

// Epoch runs the updates of one epoch and returns its statistics.
func (trn *Trainer) Epoch(m Model, ep curriculum.Epoch) (Stats, error) {
	var (
		dLosses             []float64
		supervisedLosses    []float64
		unsupervisedLosses  []float64
		supervisedCorrect   []bool
		unsupervisedCorrect []bool
		expectedRewards     [][]float64
		supervisedSample    []int
		unsupervisedSample  []int
	)

	for it := range ep.Iterations {
		for range ep.GSteps {
			if trn.rng.Float64() < ep.ProportionSupervised {
				seq, err := ep.NextSequence()
				if err != nil {
					return Stats{}, fmt.Errorf("iteration %d: next sequence: %w", it, err)
				}

				loss, pred, err := m.PretrainStep(seq)
				if err != nil {
					return Stats{}, fmt.Errorf("iteration %d: pretrain step: %w", it, err)
				}

				supervisedLosses = append(supervisedLosses, loss)
				supervisedCorrect = append(supervisedCorrect, ep.VerifySequence(pred))
				supervisedSample = pred

				continue
			}

			loss, expected, gen, err := m.TrainGStep()
			if err != nil {
				return Stats{}, fmt.Errorf("iteration %d: generator step: %w", it, err)
			}

			unsupervisedLosses = append(unsupervisedLosses, loss)
			unsupervisedCorrect = append(unsupervisedCorrect, ep.VerifySequence(gen))
			expectedRewards = append(expectedRewards, expected)
			unsupervisedSample = gen
		}

		for range ep.DSteps {
			if trn.rng.Float64() < trn.proportionReal {
				seq, err := ep.NextSequence()
				if err != nil {
					return Stats{}, fmt.Errorf("iteration %d: next sequence: %w", it, err)
				}

				loss, err := m.TrainDRealStep(seq)
				if err != nil {
					return Stats{}, fmt.Errorf("iteration %d: discriminator real step: %w", it, err)
				}

				dLosses = append(dLosses, loss)
				continue
			}

			loss, err := m.TrainDGenStep()
			if err != nil {
				return Stats{}, fmt.Errorf("iteration %d: discriminator generated step: %w", it, err)
			}

			dLosses = append(dLosses, loss)
		}
	}

	st := Stats{
		Epoch:                ep.Number,
		ProportionSupervised: ep.ProportionSupervised,
		DLoss:                vector.Mean(dLosses),
		SupervisedGLoss:      vector.Mean(supervisedLosses),
		UnsupervisedGLoss:    vector.Mean(unsupervisedLosses),
		SupervisedCorrect:    vector.MeanBool(supervisedCorrect),
		UnsupervisedCorrect:  vector.MeanBool(unsupervisedCorrect),
		SupervisedSample:     decode(ep.Words, supervisedSample),
		UnsupervisedSample:   decode(ep.Words, unsupervisedSample),
		ExpectedRewards:      vector.MeanColumns(expectedRewards),
		SupervisedSteps:      len(supervisedLosses),
		UnsupervisedSteps:    len(unsupervisedLosses),
	}

	return st, nil
}

// decode renders seq through the word list. Indices without a word are
// rendered as their number.
func decode(words []string, seq []int) string {
	var b strings.Builder

	for _, idx := range seq {
		switch {
		case idx >= 0 && idx < len(words):
			b.WriteString(words[idx])
		default:
			fmt.Fprintf(&b, "<%d>", idx)
		}
	}

	return b.String()
}

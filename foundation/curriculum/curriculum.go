// Package curriculum provides the training loop driver that moves a
// generator from supervised imitation to adversarial training over a
// number of epochs.
package curriculum

import (
	"context"
	"errors"
	"fmt"
)

// NextSequenceFunc returns one supervised target sequence.
type NextSequenceFunc func() ([]int, error)

// VerifySequenceFunc reports whether a sequence is locally plausible.
type VerifySequenceFunc func(seq []int) bool

// Epoch carries everything an epoch trainer needs for one epoch.
type Epoch struct {
	Number               int
	Iterations           int
	ProportionSupervised float64
	GSteps               int
	DSteps               int
	NextSequence         NextSequenceFunc
	VerifySequence       VerifySequenceFunc
	Words                []string
}

// EpochTrainer runs one epoch of alternating generator and discriminator
// updates against the model. It is the only code that mutates the model.
type EpochTrainer[M any] func(ctx context.Context, model M, ep Epoch) error

// Logger represents a function for emitting progress.
type Logger func(ctx context.Context, msg string, args ...any)

// =============================================================================

// Config holds the fixed schedule.
type Config struct {
	TrainIter      int
	EpochIter      int
	CurriculumRate float64
	GSteps         int
	DSteps         int
}

// Epochs returns the number of epochs the schedule runs.
func (cfg Config) Epochs() int {
	return cfg.TrainIter / cfg.EpochIter
}

func (cfg *Config) validate() error {
	if cfg.GSteps == 0 {
		cfg.GSteps = 1
	}

	switch {
	case cfg.EpochIter <= 0:
		return fmt.Errorf("epoch iterations %d must be positive", cfg.EpochIter)
	case cfg.TrainIter < cfg.EpochIter:
		return fmt.Errorf("train iterations %d must cover one epoch of %d", cfg.TrainIter, cfg.EpochIter)
	case cfg.CurriculumRate < 0:
		return fmt.Errorf("curriculum rate %v must not be negative", cfg.CurriculumRate)
	case cfg.GSteps < 0:
		return fmt.Errorf("generator steps %d must be positive", cfg.GSteps)
	case cfg.DSteps <= cfg.GSteps:
		return fmt.Errorf("discriminator steps %d must exceed generator steps %d", cfg.DSteps, cfg.GSteps)
	}

	return nil
}

// ProportionSupervised returns the fraction of generator updates that use
// ground truth targets in the specified epoch. It starts at 1, decays
// linearly at rate per epoch and never drops below 0.
func ProportionSupervised(epoch int, rate float64) float64 {
	p := 1.0 - rate*float64(epoch)

	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}

	return p
}

// =============================================================================

// Driver owns the model handle and runs the schedule.
type Driver[M any] struct {
	cfg     Config
	model   M
	trainer EpochTrainer[M]
	next    NextSequenceFunc
	verify  VerifySequenceFunc
	words   []string
	log     Logger
}

// New constructs a driver for the model.
func New[M any](cfg Config, model M, trainer EpochTrainer[M], next NextSequenceFunc, verify VerifySequenceFunc, words []string, log Logger) (*Driver[M], error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	if trainer == nil || next == nil || verify == nil {
		return nil, errors.New("trainer, next sequence and verify sequence are required")
	}

	if log == nil {
		log = func(context.Context, string, ...any) {}
	}

	d := Driver[M]{
		cfg:     cfg,
		model:   model,
		trainer: trainer,
		next:    next,
		verify:  verify,
		words:   words,
		log:     log,
	}

	return &d, nil
}

// Run executes every epoch in order. The first trainer error stops the run.
func (d *Driver[M]) Run(ctx context.Context) error {
	for epoch := range d.cfg.Epochs() {
		ep := Epoch{
			Number:               epoch,
			Iterations:           d.cfg.EpochIter,
			ProportionSupervised: ProportionSupervised(epoch, d.cfg.CurriculumRate),
			GSteps:               d.cfg.GSteps,
			DSteps:               d.cfg.DSteps,
			NextSequence:         d.next,
			VerifySequence:       d.verify,
			Words:                d.words,
		}

		d.log(ctx, "epoch", "epoch", epoch, "proportion_supervised", ep.ProportionSupervised)

		if err := d.trainer(ctx, d.model, ep); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
	}

	return nil
}

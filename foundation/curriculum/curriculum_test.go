package curriculum

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestProportionSupervised(t *testing.T) {
	const rate = 0.005

	if got := ProportionSupervised(0, rate); got != 1 {
		t.Fatalf("epoch 0: got %v, want 1", got)
	}

	prev := math.Inf(1)
	for epoch := range 400 {
		p := ProportionSupervised(epoch, rate)

		if p > prev {
			t.Fatalf("epoch %d: %v increased from %v", epoch, p, prev)
		}

		if p < 0 || p > 1 {
			t.Fatalf("epoch %d: %v out of range", epoch, p)
		}

		if epoch >= 200 && p != 0 {
			t.Fatalf("epoch %d: got %v, want 0", epoch, p)
		}

		prev = p
	}

	if got := ProportionSupervised(100, rate); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("epoch 100: got %v, want 0.5", got)
	}
}

// =============================================================================

type model struct {
	epochs int
}

func validConfig() Config {
	return Config{
		TrainIter:      200000,
		EpochIter:      1000,
		CurriculumRate: 0.005,
		GSteps:         1,
		DSteps:         3,
	}
}

func TestDriverRun(t *testing.T) {
	var calls []Epoch

	trainer := func(ctx context.Context, m *model, ep Epoch) error {
		m.epochs++
		calls = append(calls, ep)

		seq, err := ep.NextSequence()
		if err != nil {
			return err
		}

		if !ep.VerifySequence(seq) {
			return errors.New("verify failed")
		}

		return nil
	}

	next := func() ([]int, error) { return []int{1, 2, 3}, nil }
	verify := func(seq []int) bool { return len(seq) == 3 }
	words := []string{"_START", "a", "b", "c"}

	m := model{}

	d, err := New(validConfig(), &m, trainer, next, verify, words, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := d.Run(t.Context()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if m.epochs != 200 || len(calls) != 200 {
		t.Fatalf("epochs: got %d, want 200", m.epochs)
	}

	for i, ep := range calls {
		if ep.Number != i {
			t.Fatalf("call %d: epoch %d", i, ep.Number)
		}

		if ep.Iterations != 1000 || ep.GSteps != 1 || ep.DSteps != 3 {
			t.Fatalf("call %d: unexpected budget %+v", i, ep)
		}

		if want := ProportionSupervised(i, 0.005); ep.ProportionSupervised != want {
			t.Fatalf("call %d: proportion %v, want %v", i, ep.ProportionSupervised, want)
		}

		if len(ep.Words) != len(words) {
			t.Fatalf("call %d: words %v", i, ep.Words)
		}
	}
}

func TestDriverTrainerError(t *testing.T) {
	errDiverged := errors.New("diverged")

	var calls int

	trainer := func(ctx context.Context, m *model, ep Epoch) error {
		calls++
		if ep.Number == 2 {
			return errDiverged
		}
		return nil
	}

	next := func() ([]int, error) { return nil, nil }
	verify := func([]int) bool { return true }

	d, err := New(validConfig(), &model{}, trainer, next, verify, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := d.Run(t.Context()); !errors.Is(err, errDiverged) {
		t.Fatalf("expected trainer error, got %v", err)
	}

	if calls != 3 {
		t.Fatalf("calls: got %d, want 3", calls)
	}
}

func TestNewValidation(t *testing.T) {
	trainer := func(context.Context, *model, Epoch) error { return nil }
	next := func() ([]int, error) { return nil, nil }
	verify := func([]int) bool { return true }

	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero epoch iter", func(cfg *Config) { cfg.EpochIter = 0 }},
		{"short train iter", func(cfg *Config) { cfg.TrainIter = 10 }},
		{"negative rate", func(cfg *Config) { cfg.CurriculumRate = -1 }},
		{"d steps not above g steps", func(cfg *Config) { cfg.DSteps = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			if _, err := New(cfg, &model{}, trainer, next, verify, nil, nil); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if _, err := New(validConfig(), &model{}, nil, next, verify, nil, nil); err == nil {
		t.Fatalf("expected error for nil trainer")
	}
}

// This program trains a character level sequence GAN on a corpus of
// classical poetry. Generator updates move from supervised imitation to
// adversarial training on a fixed curriculum.
//
// # Running the program:
//
//	$ go run ./cmd/seqgan
//
// # Environment:
//
//	DATA_FILE       corpus to train on, plain or gzip compressed UTF-8
//	SEQGAN_JOURNAL  SQLite file that records per epoch statistics

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"

	"github.com/Strideradu/sequence-gan/foundation/corpus"
	"github.com/Strideradu/sequence-gan/foundation/curriculum"
	"github.com/Strideradu/sequence-gan/foundation/journal"
	"github.com/Strideradu/sequence-gan/foundation/ngram"
	"github.com/Strideradu/sequence-gan/foundation/sampler"
	"github.com/Strideradu/sequence-gan/foundation/seqgan"
	"github.com/Strideradu/sequence-gan/foundation/train"
	"github.com/Strideradu/sequence-gan/foundation/vocab"
	"github.com/google/uuid"
)

const (
	embDim         = 32
	hiddenDim      = 32
	seqLength      = 12
	startToken     = vocab.StartIndex
	epochIter      = 1000
	curriculumRate = 0.005
	trainIter      = 200000
	dSteps         = 3
	seed           = 88
)

var (
	dataFile    = "wuyan.txt"
	journalFile = ""
)

func init() {
	if v := os.Getenv("DATA_FILE"); v != "" {
		dataFile = v
	}

	if v := os.Getenv("SEQGAN_JOURNAL"); v != "" {
		journalFile = v
	}
}

// =============================================================================

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	rng := rand.New(rand.NewPCG(seed, seed))

	// -------------------------------------------------------------------------

	crp, err := corpus.Load(dataFile, corpus.Config{MaxUnits: 100000 * seqLength})
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	encoding := "plain"
	if crp.Gzip {
		encoding = "gzip"
	}

	fmt.Println("corpus encoding:", encoding)

	if !crp.MarkerFound {
		fmt.Printf("marker %q not found in %s\n", corpus.DefaultMarker, dataFile)
	}

	v := vocab.Build(crp.Stream)

	oracle, err := ngram.New(crp.Stream, v)
	if err != nil {
		return fmt.Errorf("build oracle: %w", err)
	}

	fmt.Println("num words:", v.Len())
	fmt.Println("stream length:", len(crp.Stream))
	fmt.Println("distinct 3-grams:", oracle.Len())

	smp, err := sampler.New(crp.Units, v, seqLength, rng)
	if err != nil {
		return fmt.Errorf("new sampler: %w", err)
	}

	// -------------------------------------------------------------------------

	mcfg := seqgan.Config{
		NumEmb:     v.Len(),
		EmbDim:     embDim,
		HiddenDim:  hiddenDim,
		SeqLength:  seqLength,
		StartToken: startToken,
	}

	model, err := seqgan.New(mcfg, rng)
	if err != nil {
		return fmt.Errorf("new model: %w", err)
	}

	var options []func(*train.Trainer)

	if journalFile != "" {
		j, runID, err := startJournal(ctx, v.Len(), len(crp.Stream), oracle.Len())
		if err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer j.Close()

		fmt.Println("journal run:", runID)

		options = append(options, train.WithJournal(j, runID))
	}

	trn := train.New(train.StdoutLogger, rng, options...)

	// -------------------------------------------------------------------------

	ccfg := curriculum.Config{
		TrainIter:      trainIter,
		EpochIter:      epochIter,
		CurriculumRate: curriculumRate,
		DSteps:         dSteps,
	}

	drv, err := curriculum.New[train.Model](ccfg, model, trn.TrainEpoch, smp.Next, oracle.Verify, v.Words(), train.StdoutLogger)
	if err != nil {
		return fmt.Errorf("new driver: %w", err)
	}

	fmt.Println("training")

	if err := drv.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}

func startJournal(ctx context.Context, numWords int, streamLength int, distinctGrams int) (*journal.Journal, uuid.UUID, error) {
	j, err := journal.Open(ctx, journalFile)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("open: %w", err)
	}

	info := journal.RunInfo{
		CorpusPath:     dataFile,
		NumWords:       numWords,
		StreamLength:   streamLength,
		DistinctGrams:  distinctGrams,
		EmbDim:         embDim,
		HiddenDim:      hiddenDim,
		SeqLength:      seqLength,
		EpochIter:      epochIter,
		TrainIter:      trainIter,
		CurriculumRate: curriculumRate,
		DSteps:         dSteps,
		Seed:           seed,
	}

	runID, err := j.StartRun(ctx, info)
	if err != nil {
		j.Close()
		return nil, uuid.Nil, fmt.Errorf("start run: %w", err)
	}

	return j, runID, nil
}

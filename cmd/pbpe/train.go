package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/agentstation/pbpe"
)

var (
	trainVocabSize      int
	trainMinFrequency   uint64
	trainTau            float64
	trainMaxTokenLength int
	trainLimitAlphabet  int
	trainSpecialTokens  []string
	trainPrefix         string
	trainSuffix         string
	trainUnkToken       string
	trainOut            string
	trainShowProgress   bool
)

// newTrainCmd creates the train subcommand.
func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [corpus-path]",
		Short: "Train a PBPE model from a corpus of text files",
		Long: `Train a PBPE model from a corpus of whitespace-pretokenized text.

corpus-path may name a single file or a directory; every ".txt" file
found (recursively, for a directory) is read and whitespace-split into
words, with word frequencies accumulated across the whole corpus before
the merge/retraction loop begins. In a directory, files that are not
valid UTF-8 are skipped; a single named file is read as is, whatever
its extension. With no corpus-path, reads a single stream from stdin.`,
		Example: `  # Train with a target vocabulary of 5000 tokens
  pbpe train --vocab-size 5000 --out model.json corpus/

  # Train with a custom IoS threshold and a frequency floor
  pbpe train --tau 0.3 --min-frequency 2 --out model.json corpus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTrain,
	}

	cmd.Flags().IntVar(&trainVocabSize, "vocab-size", 30000, "target vocabulary size")
	cmd.Flags().Uint64Var(&trainMinFrequency, "min-frequency", 0, "minimum pair count eligible for a merge")
	cmd.Flags().Float64Var(&trainTau, "tau", 1.0, "IoS retraction threshold")
	cmd.Flags().IntVar(&trainMaxTokenLength, "max-token-length", 0, "cap on merged token byte length (0 means unbounded)")
	cmd.Flags().IntVar(&trainLimitAlphabet, "limit-alphabet", 0, "cap on alphabet size (0 means unbounded)")
	cmd.Flags().StringSliceVar(&trainSpecialTokens, "special-token", nil, "special token to seed into the vocabulary (repeatable)")
	cmd.Flags().StringVar(&trainPrefix, "continuing-subword-prefix", "", "prefix applied to non-initial word pieces")
	cmd.Flags().StringVar(&trainSuffix, "end-of-word-suffix", "", "suffix applied to the final piece of a word")
	cmd.Flags().StringVar(&trainUnkToken, "unk-token", "<unk>", "token substituted for unrepresentable input")
	cmd.Flags().StringVarP(&trainOut, "out", "o", "", "output model file (required)")
	cmd.Flags().BoolVar(&trainShowProgress, "progress", false, "report training progress to stderr")
	cmd.MarkFlagRequired("out")

	return cmd
}

func runTrain(_ *cobra.Command, args []string) error {
	start := time.Now()

	sequences, err := readCorpus(args)
	if err != nil {
		return fmt.Errorf("reading corpus: %w", err)
	}

	trainerBuilder := pbpe.NewTrainerBuilder().
		With(pbpe.WithTrainerVocabSize(trainVocabSize)).
		With(pbpe.WithTrainerMinFrequency(trainMinFrequency)).
		With(pbpe.WithTrainerTau(trainTau)).
		With(pbpe.WithTrainerContinuingSubwordPrefix(trainPrefix)).
		With(pbpe.WithTrainerEndOfWordSuffix(trainSuffix))

	if trainMaxTokenLength > 0 {
		trainerBuilder = trainerBuilder.With(pbpe.WithTrainerMaxTokenLength(trainMaxTokenLength))
	}
	if trainLimitAlphabet > 0 {
		trainerBuilder = trainerBuilder.With(pbpe.WithTrainerLimitAlphabet(trainLimitAlphabet))
	}
	if len(trainSpecialTokens) > 0 {
		specials := make([]pbpe.SpecialToken, len(trainSpecialTokens))
		for i, s := range trainSpecialTokens {
			specials[i] = pbpe.SpecialToken{Content: s}
		}
		trainerBuilder = trainerBuilder.With(pbpe.WithTrainerSpecialTokens(specials))
	}
	if trainShowProgress {
		trainerBuilder = trainerBuilder.With(pbpe.WithTrainerProgressReporter(
			pbpe.NewTextProgressReporter(os.Stderr, "train", 0)))
	}

	trainer, err := trainerBuilder.Build()
	if err != nil {
		return fmt.Errorf("configuring trainer: %w", err)
	}

	if err := trainer.Feed(sequences, func(text string) []string {
		return strings.Fields(text)
	}); err != nil {
		return fmt.Errorf("feeding corpus: %w", err)
	}

	model, err := pbpe.NewBuilder().
		With(pbpe.WithUnkToken(trainUnkToken)).
		Build()
	if err != nil {
		return fmt.Errorf("configuring model: %w", err)
	}

	specials, err := trainer.Train(model)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}
	if err := os.WriteFile(trainOut, data, 0o644); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}

	fmt.Printf("trained vocab of %d tokens (%d special) in %s -> %s\n",
		model.GetVocabSize(), len(specials), time.Since(start).Round(time.Millisecond), trainOut)
	return nil
}

// readCorpus gathers one string per ".txt" file under path when path is
// a directory (recursively, skipping files that are not valid UTF-8), or
// the one file's contents, unchecked, when path names a file. With no
// args, it reads a single sequence from stdin.
func readCorpus(args []string) ([]string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return []string{string(data)}, nil
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return []string{string(data)}, nil
	}

	var sequences []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if !utf8.Valid(data) {
			return nil
		}
		sequences = append(sequences, string(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sequences, nil
}

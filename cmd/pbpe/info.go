package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newInfoCmd creates the info subcommand.
func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [model-file]",
		Short: "Display information about a trained model",
		Long: `Display vocabulary size, event-table counts, and whether a "<unk>"
entry is in the vocabulary of a trained PBPE model. Option flags
(fuse_unk, byte_fallback, ignore_merges, prefix, suffix) are not shown.`,
		Example: `  # Inspect a trained model
  pbpe info model.json`,
		Args: cobra.ExactArgs(1),
		RunE: runInfo,
	}
	return cmd
}

func runInfo(_ *cobra.Command, args []string) error {
	model, err := loadModel(args[0])
	if err != nil {
		return err
	}

	fmt.Println("PBPE Model Information")
	fmt.Println("=======================")
	fmt.Println()
	fmt.Printf("Vocabulary Size:  %d tokens\n", model.GetVocabSize())
	fmt.Printf("Merge Events:     %d\n", model.MergeEventCount())
	fmt.Printf("Split Events:     %d (retractions)\n", model.SplitEventCount())

	if _, ok := model.TokenToID("<unk>"); ok {
		fmt.Println("Unk Token:        present")
	} else {
		fmt.Println("Unk Token:        absent")
	}

	return nil
}

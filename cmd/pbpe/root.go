package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pbpe",
	Short: "A pruning byte-pair encoding (PBPE) tokenizer CLI",
	Long: `pbpe trains and runs a pruning byte-pair encoding subword tokenizer.

Unlike classical BPE, a PBPE trainer may retract a previously adopted
merge once its remaining stand-alone occurrences are dominated by a
single merge that consumes it, expanding every past use back into the
constituent pieces. Training therefore produces an event log of merges
and splits that the encoder replays, in order, to reproduce the
training corpus's exact segmentation.

Available operations:
  train - Train a new model from a corpus of text files
  encode - Tokenize text with a trained model
  info   - Display information about a trained model`,
	Example: `  # Train a model from a corpus of whitespace-separated words
  pbpe train --vocab-size 1000 --out model.json corpus.txt

  # Tokenize text with a trained model
  pbpe encode --model model.json "unrelated"

  # Inspect a trained model
  pbpe info model.json`,
	SilenceUsage: true,
}

// versionCmd prints build version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pbpe version %s\n", version)
		if commit != "none" {
			fmt.Printf("  commit:     %s\n", commit)
		}
		if buildDate != "unknown" {
			fmt.Printf("  built:      %s\n", buildDate)
		}
		if goVersion != "unknown" {
			fmt.Printf("  go version: %s\n", goVersion)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newTrainCmd())
	rootCmd.AddCommand(newEncodeCmd())
	rootCmd.AddCommand(newInfoCmd())
}

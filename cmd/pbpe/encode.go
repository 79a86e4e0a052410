package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/pbpe"
)

var (
	encodeModelPath string
	encodeOutput    string
)

// newEncodeCmd creates the encode subcommand.
func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [text]",
		Short: "Tokenize text with a trained model",
		Long: `Tokenize a word with a trained PBPE model.

If no text is given as an argument, each line of stdin is tokenized in
turn. The input is treated as a single pre-tokenized word — splitting
on whitespace into separate words is the caller's responsibility.`,
		Example: `  # Tokenize a single word
  pbpe encode --model model.json "unrelated"

  # Tokenize one word per line of stdin, as JSON
  printf "unrelated\nroses\n" | pbpe encode --model model.json --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncode,
	}

	cmd.Flags().StringVarP(&encodeModelPath, "model", "m", "", "trained model file (required)")
	cmd.Flags().StringVarP(&encodeOutput, "output", "o", "table", "output format: table, json")
	cmd.MarkFlagRequired("model")

	return cmd
}

func runEncode(_ *cobra.Command, args []string) error {
	model, err := loadModel(encodeModelPath)
	if err != nil {
		return err
	}

	var words []string
	if len(args) == 1 {
		words = []string{args[0]}
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				words = append(words, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	for _, word := range words {
		tokens, err := model.Tokenize(word)
		if err != nil {
			return fmt.Errorf("tokenizing %q: %w", word, err)
		}

		switch encodeOutput {
		case "json":
			if err := printTokensJSON(word, tokens); err != nil {
				return err
			}
		default:
			printTokensTable(word, tokens)
		}
	}
	return nil
}

func printTokensTable(word string, tokens []pbpe.Token) {
	fmt.Printf("%s\n", word)
	for _, t := range tokens {
		fmt.Printf("  %6d  %-20q  [%d,%d)\n", t.ID, t.Value, t.Offset.Start, t.Offset.End)
	}
}

func printTokensJSON(word string, tokens []pbpe.Token) error {
	type jsonToken struct {
		ID    uint32 `json:"id"`
		Value string `json:"value"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}
	out := struct {
		Word   string      `json:"word"`
		Tokens []jsonToken `json:"tokens"`
	}{Word: word}

	for _, t := range tokens {
		out.Tokens = append(out.Tokens, jsonToken{ID: t.ID, Value: t.Value, Start: t.Offset.Start, End: t.Offset.End})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func loadModel(path string) (*pbpe.PBPE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	model, err := pbpe.NewBuilder().Build()
	if err != nil {
		return nil, fmt.Errorf("configuring model: %w", err)
	}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	return model, nil
}

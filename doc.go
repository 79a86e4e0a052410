// Package pbpe implements a pruning byte-pair encoding (PBPE) subword
// tokenizer: a BPE variant whose trainer may retract a previously adopted
// merge once its remaining stand-alone occurrences are dominated by a
// single merge that consumes it. Training produces an ordered event log
// of merges and splits; encoding replays that log against a word's
// symbol chain to reproduce the training corpus's segmentation exactly.
package pbpe

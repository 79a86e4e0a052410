package pbpe

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
)

const (
	defaultVocabSize = 30000
	defaultTau       = 1.0
)

// trainerConfig holds configuration accumulated by TrainerOptions before
// a PbpeTrainer is built.
type trainerConfig struct {
	minFrequency            uint64
	vocabSize               int
	specialTokens           []SpecialToken
	limitAlphabet           int
	hasLimitAlphabet        bool
	initialAlphabet         map[rune]struct{}
	continuingSubwordPrefix string
	endOfWordSuffix         string
	maxTokenLength          int
	tau                     float64
	reporter                ProgressReporter
}

// TrainerOption configures a PbpeTrainer via TrainerBuilder.
type TrainerOption func(*trainerConfig) error

// WithTrainerMinFrequency sets the minimum pair count eligible for a
// merge; pairs below it halt training once they reach the front of the
// queue.
func WithTrainerMinFrequency(n uint64) TrainerOption {
	return func(c *trainerConfig) error {
		c.minFrequency = n
		return nil
	}
}

// WithTrainerVocabSize sets the target vocabulary size, including
// special tokens and the alphabet.
func WithTrainerVocabSize(n int) TrainerOption {
	return func(c *trainerConfig) error {
		if n <= 0 {
			return fmt.Errorf("vocab size: %w", NewUnexpectedTypeError(n, "positive vocab size"))
		}
		c.vocabSize = n
		return nil
	}
}

// WithTrainerProgressReporter attaches a reporter for training progress.
func WithTrainerProgressReporter(r ProgressReporter) TrainerOption {
	return func(c *trainerConfig) error {
		c.reporter = r
		return nil
	}
}

// WithTrainerSpecialTokens seeds the vocabulary with tokens at the
// smallest ids, before the alphabet.
func WithTrainerSpecialTokens(tokens []SpecialToken) TrainerOption {
	return func(c *trainerConfig) error {
		if err := validateSpecialTokens(tokens); err != nil {
			return err
		}
		c.specialTokens = tokens
		return nil
	}
}

// WithTrainerLimitAlphabet caps the alphabet to n characters, dropping
// the least frequent non-initial-alphabet characters first.
func WithTrainerLimitAlphabet(n int) TrainerOption {
	return func(c *trainerConfig) error {
		if n <= 0 {
			return fmt.Errorf("limit alphabet: %w", NewUnexpectedTypeError(n, "positive limit"))
		}
		c.limitAlphabet = n
		c.hasLimitAlphabet = true
		return nil
	}
}

// WithTrainerInitialAlphabet forces these characters into the
// alphabet at effectively infinite weight, so limitAlphabet never
// drops them.
func WithTrainerInitialAlphabet(chars []rune) TrainerOption {
	return func(c *trainerConfig) error {
		if c.initialAlphabet == nil {
			c.initialAlphabet = make(map[rune]struct{}, len(chars))
		}
		for _, r := range chars {
			c.initialAlphabet[r] = struct{}{}
		}
		return nil
	}
}

// WithTrainerContinuingSubwordPrefix applies prefix to every non-first
// character symbol during word tokenization and merge-token naming.
func WithTrainerContinuingSubwordPrefix(prefix string) TrainerOption {
	return func(c *trainerConfig) error {
		c.continuingSubwordPrefix = prefix
		return nil
	}
}

// WithTrainerEndOfWordSuffix appends suffix to the last character
// symbol of every word during tokenization.
func WithTrainerEndOfWordSuffix(suffix string) TrainerOption {
	return func(c *trainerConfig) error {
		c.endOfWordSuffix = suffix
		return nil
	}
}

// WithTrainerMaxTokenLength limits merged token byte length: a pair
// introduced by a merge or retraction is not counted when its combined
// byte length would reach n. Pairs counted in the initial corpus scan
// are not filtered by length.
func WithTrainerMaxTokenLength(n int) TrainerOption {
	return func(c *trainerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max token length: %w", NewUnexpectedTypeError(n, "positive length"))
		}
		c.maxTokenLength = n
		return nil
	}
}

// WithTrainerTau sets the IoS threshold: a merge-produced token is
// retracted once its consumption-by-merge count divided by its total
// remaining occurrence count reaches tau.
func WithTrainerTau(tau float64) TrainerOption {
	return func(c *trainerConfig) error {
		c.tau = tau
		return nil
	}
}

// TrainerBuilder accumulates TrainerOptions and produces a PbpeTrainer.
type TrainerBuilder struct {
	opts []TrainerOption
}

// NewTrainerBuilder returns an empty TrainerBuilder.
func NewTrainerBuilder() *TrainerBuilder {
	return &TrainerBuilder{}
}

// With queues an option for Build.
func (b *TrainerBuilder) With(opt TrainerOption) *TrainerBuilder {
	b.opts = append(b.opts, opt)
	return b
}

// Build applies every queued option and constructs the PbpeTrainer.
func (b *TrainerBuilder) Build() (*PbpeTrainer, error) {
	cfg := &trainerConfig{
		vocabSize:      defaultVocabSize,
		tau:            defaultTau,
		maxTokenLength: math.MaxInt32,
		reporter:       noopReporter{},
	}
	for _, opt := range b.opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &PbpeTrainer{cfg: *cfg, wordCounts: make(map[string]uint64)}, nil
}

// PbpeTrainer accumulates word frequencies from fed corpora and trains
// a PBPE model's vocabulary, merge table, and split table from them.
type PbpeTrainer struct {
	cfg        trainerConfig
	wordCounts map[string]uint64
}

// Feed splits each sequence into words via process and accumulates a
// word-to-count mapping across every call.
func (t *PbpeTrainer) Feed(sequences []string, process func(string) []string) error {
	for _, seq := range sequences {
		for _, w := range process(seq) {
			if w == "" {
				continue
			}
			t.wordCounts[w]++
		}
	}
	return nil
}

// Train runs the main training loop against the accumulated word
// counts, populates model's vocabulary and merge/split tables, and
// returns the configured special-token list.
func (t *PbpeTrainer) Train(model *PBPE) ([]SpecialToken, error) {
	run := newTrainRun(t.cfg, t.wordCounts)
	if err := run.train(); err != nil {
		return nil, err
	}

	model.vocab = run.vocab
	model.vocabR = newVocabR(run.vocab)
	model.merges = run.merges
	model.splits = run.splits
	model.continuingSubwordPrefix = t.cfg.continuingSubwordPrefix
	model.endOfWordSuffix = t.cfg.endOfWordSuffix

	return t.cfg.specialTokens, nil
}

// trainWord pairs a word's current symbol chain with its corpus
// frequency weight.
type trainWord struct {
	word  *Word
	count uint64
}

// trainRun holds all mutable state for a single training pass: the
// growing vocabulary, the flat parents/active-flag arrays standing in
// for a retraction dependency tree, and the event tables being built.
type trainRun struct {
	cfg trainerConfig

	wordCounts map[string]uint64
	words      []*trainWord

	vocab  Vocab
	vocabR VocabR

	atomicCount uint32
	parents     []Pair
	idActive    []bool
	countMerged map[uint32]int64

	merges MergeMap
	splits SplitMap
	rank   uint32
}

func newTrainRun(cfg trainerConfig, wordCounts map[string]uint64) *trainRun {
	return &trainRun{
		cfg:         cfg,
		wordCounts:  wordCounts,
		vocab:       make(Vocab),
		vocabR:      make(VocabR),
		countMerged: make(map[uint32]int64),
		merges:      make(MergeMap),
		splits:      make(SplitMap),
	}
}

func (r *trainRun) addVocab(token string) uint32 {
	if id, ok := r.vocab[token]; ok {
		return id
	}
	id := uint32(len(r.vocab))
	r.vocab[token] = id
	r.vocabR[id] = token
	return id
}

func (r *trainRun) isMergeProduced(id uint32) bool { return id >= r.atomicCount }

func (r *trainRun) isActive(id uint32) bool {
	if id < r.atomicCount {
		return true
	}
	idx := id - r.atomicCount
	return int(idx) < len(r.idActive) && r.idActive[idx]
}

// expand recursively expands a merge-produced id through inactive
// parents only; an active id (merge-produced or atomic) stops the
// recursion and is returned as-is.
func (r *trainRun) expand(id uint32) []uint32 {
	if !r.isMergeProduced(id) || r.isActive(id) {
		return []uint32{id}
	}
	pair := r.parents[id-r.atomicCount]
	out := r.expand(pair.A)
	out = append(out, r.expand(pair.B)...)
	return out
}

func (r *trainRun) seedAlphabet(wordCounts map[string]uint64) {
	freq := make(map[rune]int64)
	for word, count := range wordCounts {
		for _, ch := range word {
			freq[ch] += int64(count)
		}
	}
	for ch := range r.cfg.initialAlphabet {
		freq[ch] = math.MaxInt64
	}

	runes := make([]rune, 0, len(freq))
	for ch := range freq {
		runes = append(runes, ch)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	if r.cfg.hasLimitAlphabet && len(runes) > r.cfg.limitAlphabet {
		type rf struct {
			ch rune
			f  int64
		}
		var candidates []rf
		for _, ch := range runes {
			if freq[ch] != math.MaxInt64 {
				candidates = append(candidates, rf{ch, freq[ch]})
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].f < candidates[j].f })

		drop := make(map[rune]struct{})
		toDrop := len(runes) - r.cfg.limitAlphabet
		for i := 0; i < toDrop && i < len(candidates); i++ {
			drop[candidates[i].ch] = struct{}{}
		}

		kept := runes[:0]
		for _, ch := range runes {
			if _, dropped := drop[ch]; !dropped {
				kept = append(kept, ch)
			}
		}
		runes = kept
	}

	for _, ch := range runes {
		r.addVocab(string(ch))
	}
}

func (r *trainRun) tokenizeWords(wordCounts map[string]uint64) {
	keys := make([]string, 0, len(wordCounts))
	for w := range wordCounts {
		keys = append(keys, w)
	}
	sort.Strings(keys)

	r.words = make([]*trainWord, 0, len(keys))
	for _, w := range keys {
		count := wordCounts[w]
		runes := []rune(w)
		word := NewWordWithCapacity(len(runes))
		for i, ch := range runes {
			s := string(ch)
			piece := s
			if i > 0 && r.cfg.continuingSubwordPrefix != "" {
				piece = r.cfg.continuingSubwordPrefix + s
			}
			if i == len(runes)-1 && r.cfg.endOfWordSuffix != "" {
				piece += r.cfg.endOfWordSuffix
			}
			id := r.addVocab(piece)
			word.Add(id, len(s))
		}
		r.words = append(r.words, &trainWord{word: word, count: count})
	}

	r.atomicCount = uint32(len(r.vocab))
}

// countPairs builds the initial pairIndex by scanning every word's
// adjacent symbols in parallel chunks, then reducing the per-chunk
// results into one index.
func (r *trainRun) countPairs() *pairIndex {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(r.words) {
		workers = len(r.words)
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (len(r.words) + workers - 1) / workers
	partials := make([]*pairIndex, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(r.words) {
			end = len(r.words)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			local := newPairIndex()
			for i := start; i < end; i++ {
				tw := r.words[i]
				syms := tw.word.Symbols
				for j := 0; j+1 < len(syms); j++ {
					local.add(Pair{A: syms[j].C, B: syms[j+1].C}, i, int64(tw.count))
				}
			}
			partials[w] = local
		}(w, start, end)
	}
	wg.Wait()

	idx := newPairIndex()
	for _, p := range partials {
		if p != nil {
			idx.merge(p)
		}
	}
	return idx
}

// applyAcross runs apply (Word.Merge or Word.Remove) for every word
// index in indices concurrently, each call touching a distinct *Word,
// then folds the resulting deltas into idx sequentially and reports
// every pair whose count changed, so the caller can refresh just those
// queue entries.
func (r *trainRun) applyAcross(indices []int, idx *pairIndex, apply func(*Word) []PairDelta, touched map[Pair]struct{}) {
	type result struct {
		widx   int
		deltas []PairDelta
	}
	results := make([]result, len(indices))

	var wg sync.WaitGroup
	for k, widx := range indices {
		wg.Add(1)
		go func(k, widx int) {
			defer wg.Done()
			results[k] = result{widx: widx, deltas: apply(r.words[widx].word)}
		}(k, widx)
	}
	wg.Wait()

	for _, res := range results {
		weight := int64(r.words[res.widx].count)
		for _, d := range res.deltas {
			idx.applyDelta(d.Pair, res.widx, d.Delta, weight)
			touched[d.Pair] = struct{}{}
		}
	}
}

func (r *trainRun) mergeIDActive(id uint32) bool {
	if id < r.atomicCount {
		return true
	}
	idx := id - r.atomicCount
	return int(idx) < len(r.idActive) && r.idActive[idx]
}

func (r *trainRun) nextValidMerge(q *mergeQueue, idx *pairIndex) (Pair, int64, bool) {
	for {
		pair, count, ok := popTop(q, idx)
		if !ok {
			return Pair{}, 0, false
		}
		if !r.mergeIDActive(pair.A) || !r.mergeIDActive(pair.B) {
			continue
		}
		return pair, count, true
	}
}

func (r *trainRun) train() error {
	for _, st := range r.cfg.specialTokens {
		r.addVocab(st.Content)
	}

	r.seedAlphabet(r.wordCounts)
	r.tokenizeWords(r.wordCounts)

	idx := r.countPairs()
	queue := newMergeQueue()
	for pair, count := range idx.counts {
		if count > 0 {
			queue.pushOrUpdate(pair, count)
		}
	}

	reporter := r.cfg.reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	reporter.Start(r.cfg.vocabSize)

	for len(r.vocab) < r.cfg.vocabSize && queue.Len() > 0 {
		pair, count, ok := r.nextValidMerge(queue, idx)
		if !ok {
			break
		}
		if count <= 0 || count < int64(r.cfg.minFrequency) {
			break
		}

		partA := r.vocabR[pair.A]
		partB := r.vocabR[pair.B]
		strippedB := partB
		if r.cfg.continuingSubwordPrefix != "" {
			strippedB = trimPrefixOnce(partB, r.cfg.continuingSubwordPrefix)
		}
		newToken := partA + strippedB

		var newID uint32
		if existing, ok := r.vocab[newToken]; ok {
			newID = existing
			idx2 := newID - r.atomicCount
			for int(idx2) >= len(r.idActive) {
				r.idActive = append(r.idActive, false)
			}
			r.idActive[idx2] = true
		} else {
			newID = uint32(len(r.vocab))
			r.vocab[newToken] = newID
			r.vocabR[newID] = newToken
			r.parents = append(r.parents, pair)
			r.idActive = append(r.idActive, true)
		}

		r.countMerged[newID] += count
		r.merges[pair] = append(r.merges[pair], MergeEntry{Rank: r.rank, NewID: newID})
		r.rank++

		touched := make(map[Pair]struct{})

		positions := idx.positions(pair)
		indices := make([]int, 0, len(positions))
		for widx := range positions {
			indices = append(indices, widx)
		}
		r.applyAcross(indices, idx, func(w *Word) []PairDelta {
			return w.Merge(pair.A, pair.B, newID, r.cfg.maxTokenLength)
		}, touched)

		parentsToCheck := []uint32{pair.A}
		if pair.B != pair.A {
			parentsToCheck = append(parentsToCheck, pair.B)
		}
		for _, p := range parentsToCheck {
			r.countMerged[p] -= count
			if !r.isMergeProduced(p) || !r.isActive(p) {
				continue
			}
			ratio := float64(count) / float64(r.countMerged[p])
			if ratio < r.cfg.tau {
				continue
			}

			pidx := p - r.atomicCount
			r.idActive[pidx] = false
			splitSeq := r.expand(r.parents[pidx].A)
			splitSeq = append(splitSeq, r.expand(r.parents[pidx].B)...)
			r.splits[p] = append(r.splits[p], SplitEntry{Rank: r.rank, Split: splitSeq})
			r.rank++

			allIndices := make([]int, len(r.words))
			for i := range r.words {
				allIndices[i] = i
			}
			r.applyAcross(allIndices, idx, func(w *Word) []PairDelta {
				return w.Remove(p, splitSeq, r.cfg.maxTokenLength)
			}, touched)

			for _, sid := range splitSeq {
				r.countMerged[sid] -= count
			}
		}

		for pr := range touched {
			if c := idx.counts[pr]; c > 0 {
				queue.pushOrUpdate(pr, c)
			}
		}

		reporter.Update(len(r.vocab))
	}
	reporter.Finish()

	return nil
}

func trimPrefixOnce(s, prefix string) string {
	if prefix == "" || len(s) < len(prefix) {
		return s
	}
	if s[:len(prefix)] != prefix {
		return s
	}
	return s[len(prefix):]
}

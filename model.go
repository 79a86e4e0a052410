package pbpe

import (
	"fmt"
	"strings"
)

const defaultCacheCapacity = 10000

// modelConfig holds configuration accumulated by ModelOptions before a
// PBPE is built.
type modelConfig struct {
	vocab                   Vocab
	merges                  MergeMap
	splits                  SplitMap
	unkToken                string
	continuingSubwordPrefix string
	endOfWordSuffix         string
	fuseUnk                 bool
	byteFallback            bool
	ignoreMerges            bool
	cacheCapacity           int
}

// ModelOption configures a PBPE via Builder.
type ModelOption func(*modelConfig) error

// WithUnkToken sets the token substituted for input characters the
// vocabulary cannot represent.
func WithUnkToken(token string) ModelOption {
	return func(c *modelConfig) error {
		c.unkToken = token
		return nil
	}
}

// WithContinuingSubwordPrefix marks non-initial pieces of a
// word, e.g. "##" in WordPiece-flavored vocabularies.
func WithContinuingSubwordPrefix(prefix string) ModelOption {
	return func(c *modelConfig) error {
		c.continuingSubwordPrefix = prefix
		return nil
	}
}

// WithEndOfWordSuffix appends a marker to the final piece of a word,
// e.g. "</w>".
func WithEndOfWordSuffix(suffix string) ModelOption {
	return func(c *modelConfig) error {
		c.endOfWordSuffix = suffix
		return nil
	}
}

// WithFuseUnk makes consecutive unk-producing characters collapse into a
// single widened unk symbol instead of one unk token per character.
func WithFuseUnk(fuse bool) ModelOption {
	return func(c *modelConfig) error {
		c.fuseUnk = fuse
		return nil
	}
}

// WithByteFallback requires every byte of an unrepresentable surface
// to resolve to a "<0xHH>" vocabulary entry instead of unk.
func WithByteFallback(enabled bool) ModelOption {
	return func(c *modelConfig) error {
		c.byteFallback = enabled
		return nil
	}
}

// WithIgnoreMerges short-circuits merge/split replay whenever the
// whole input word is itself a vocabulary entry.
func WithIgnoreMerges(enabled bool) ModelOption {
	return func(c *modelConfig) error {
		c.ignoreMerges = enabled
		return nil
	}
}

// WithCacheCapacity bounds the segmentation cache to size entries.
// Zero means unbounded.
func WithCacheCapacity(size int) ModelOption {
	return func(c *modelConfig) error {
		if size < 0 {
			return fmt.Errorf("cache capacity: %w", NewUnexpectedTypeError(size, "non-negative capacity"))
		}
		c.cacheCapacity = size
		return nil
	}
}

// WithVocabAndMerges seeds the model from a trained vocabulary, merge
// table, and split table — the form a Trainer or a deserialized model
// file supplies.
func WithVocabAndMerges(vocab Vocab, merges MergeMap, splits SplitMap) ModelOption {
	return func(c *modelConfig) error {
		c.vocab = vocab
		c.merges = merges
		c.splits = splits
		return nil
	}
}

// Builder accumulates ModelOptions and produces a PBPE.
type Builder struct {
	opts []ModelOption
	err  error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// With queues an option for Build.
func (b *Builder) With(opt ModelOption) *Builder {
	b.opts = append(b.opts, opt)
	return b
}

// Build applies every queued option and constructs the PBPE.
func (b *Builder) Build() (*PBPE, error) {
	if b.err != nil {
		return nil, b.err
	}

	cfg := &modelConfig{
		vocab:         make(Vocab),
		merges:        make(MergeMap),
		splits:        make(SplitMap),
		unkToken:      "<unk>",
		cacheCapacity: defaultCacheCapacity,
	}
	for _, opt := range b.opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	m := &PBPE{
		vocab:                   cfg.vocab,
		vocabR:                  newVocabR(cfg.vocab),
		merges:                  cfg.merges,
		splits:                  cfg.splits,
		unkToken:                cfg.unkToken,
		continuingSubwordPrefix: cfg.continuingSubwordPrefix,
		endOfWordSuffix:         cfg.endOfWordSuffix,
		fuseUnk:                 cfg.fuseUnk,
		byteFallback:            cfg.byteFallback,
		ignoreMerges:            cfg.ignoreMerges,
		cache:                   newWordCache(cfg.cacheCapacity),
	}
	return m, nil
}

// PBPE is a trained pruning byte-pair encoding model: an immutable
// vocabulary plus the ordered merge/split event tables that replay
// into a word's final segmentation.
type PBPE struct {
	vocab  Vocab
	vocabR VocabR
	merges MergeMap
	splits SplitMap

	unkToken                string
	continuingSubwordPrefix string
	endOfWordSuffix         string
	fuseUnk                 bool
	byteFallback            bool
	ignoreMerges            bool

	cache wordCache
}

// Token is one piece of a tokenized input: its surface string, its
// vocabulary id, and its byte offsets within the original word.
type Token struct {
	ID     uint32
	Value  string
	Offset Offset
}

// GetVocab returns a copy of the model's token-to-id mapping.
func (m *PBPE) GetVocab() Vocab {
	out := make(Vocab, len(m.vocab))
	for k, v := range m.vocab {
		out[k] = v
	}
	return out
}

// GetVocabSize returns the number of entries in the vocabulary.
func (m *PBPE) GetVocabSize() int {
	return len(m.vocab)
}

// MergeEventCount returns the total number of merge events across every
// pair's bucket in the merge table.
func (m *PBPE) MergeEventCount() int {
	n := 0
	for _, entries := range m.merges {
		n += len(entries)
	}
	return n
}

// SplitEventCount returns the total number of split (retraction) events
// across every id's bucket in the split table.
func (m *PBPE) SplitEventCount() int {
	n := 0
	for _, entries := range m.splits {
		n += len(entries)
	}
	return n
}

// TokenToID looks up a token's id.
func (m *PBPE) TokenToID(token string) (uint32, bool) {
	id, ok := m.vocab[token]
	return id, ok
}

// IDToToken looks up an id's surface token.
func (m *PBPE) IDToToken(id uint32) (string, bool) {
	tok, ok := m.vocabR[id]
	return tok, ok
}

// Clone returns an independent copy of the model sharing no mutable
// state (notably, a fresh cache).
func (m *PBPE) Clone() *PBPE {
	clone := &PBPE{
		vocab:                   m.GetVocab(),
		merges:                  m.merges,
		splits:                  m.splits,
		unkToken:                m.unkToken,
		continuingSubwordPrefix: m.continuingSubwordPrefix,
		endOfWordSuffix:         m.endOfWordSuffix,
		fuseUnk:                 m.fuseUnk,
		byteFallback:            m.byteFallback,
		ignoreMerges:            m.ignoreMerges,
		cache:                   newWordCache(defaultCacheCapacity),
	}
	clone.vocabR = newVocabR(clone.vocab)
	return clone
}

// Tokenize segments a single pre-tokenized word (no whitespace
// splitting — that is a pre-tokenizer's job, left to the caller) into
// vocabulary tokens.
func (m *PBPE) Tokenize(sequence string) ([]Token, error) {
	if sequence == "" {
		return nil, nil
	}

	if m.ignoreMerges {
		if id, ok := m.vocab[sequence]; ok {
			return []Token{{ID: id, Value: sequence, Offset: Offset{Start: 0, End: len(sequence)}}}, nil
		}
	}

	word, err := m.mergeWord(sequence)
	if err != nil {
		return nil, err
	}

	offsets := word.GetOffsetsIter()
	tokens := make([]Token, len(word.Symbols))
	for i, sym := range word.Symbols {
		value, ok := m.vocabR[sym.C]
		if !ok {
			return nil, NewUnkTokenOutOfVocabularyError(m.unkToken)
		}
		tokens[i] = Token{ID: sym.C, Value: value, Offset: offsets[i]}
	}
	return tokens, nil
}

// mergeWord builds the symbol chain for sequence, resolving byte
// fallback and unk handling, then replays the trained merge/split
// event log against it. Results are cached by surface string.
func (m *PBPE) mergeWord(sequence string) (*Word, error) {
	if cached, ok := m.cache.get(sequence); ok {
		return cached, nil
	}

	word := NewWordWithCapacity(len(sequence))

	runes := []rune(sequence)
	var unkID uint32
	hasUnk := false
	if m.unkToken != "" {
		if id, ok := m.vocab[m.unkToken]; ok {
			unkID = id
			hasUnk = true
		}
	}

	for i, r := range runes {
		s := string(r)
		piece := s
		if i > 0 && m.continuingSubwordPrefix != "" {
			piece = m.continuingSubwordPrefix + s
		}
		if i == len(runes)-1 && m.endOfWordSuffix != "" {
			piece += m.endOfWordSuffix
		}

		if id, ok := m.vocab[piece]; ok {
			word.Add(id, len(s))
			continue
		}

		if m.byteFallback {
			if m.addByteFallback(word, s) {
				continue
			}
		}

		if !hasUnk {
			return nil, NewUnkTokenOutOfVocabularyError(m.unkToken)
		}
		if m.fuseUnk && len(word.Symbols) > 0 && word.Symbols[len(word.Symbols)-1].C == unkID {
			word.Symbols[len(word.Symbols)-1].Len += len(s)
			continue
		}
		word.Add(unkID, len(s))
	}

	word.MergeSplitAll(m.merges, m.splits)

	m.cache.put(sequence, word)
	return word, nil
}

// addByteFallback appends one "<0xHH>" symbol per byte of s if the
// vocabulary contains entries for every one of them; it reports
// whether it did so.
func (m *PBPE) addByteFallback(word *Word, s string) bool {
	ids := make([]uint32, len(s))
	for i := 0; i < len(s); i++ {
		tok := fmt.Sprintf("<0x%02X>", s[i])
		id, ok := m.vocab[tok]
		if !ok {
			return false
		}
		ids[i] = id
	}
	for _, id := range ids {
		word.Add(id, 1)
	}
	return true
}

// stripAffixes removes the model's configured continuing-subword-prefix
// and end-of-word-suffix from token. Nothing in the package calls it.
func (m *PBPE) stripAffixes(token string) string {
	out := token
	if m.continuingSubwordPrefix != "" {
		out = strings.TrimPrefix(out, m.continuingSubwordPrefix)
	}
	if m.endOfWordSuffix != "" {
		out = strings.TrimSuffix(out, m.endOfWordSuffix)
	}
	return out
}

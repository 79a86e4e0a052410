package pbpe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// modelFile is the on-disk JSON shape for a PBPE model.
type modelFile struct {
	Type                    string                  `json:"type"`
	UnkToken                *string                 `json:"unk_token"`
	ContinuingSubwordPrefix *string                 `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string                 `json:"end_of_word_suffix"`
	FuseUnk                 bool                    `json:"fuse_unk"`
	ByteFallback            bool                    `json:"byte_fallback"`
	IgnoreMerges            bool                    `json:"ignore_merges"`
	Vocab                   *orderedVocabJSON       `json:"vocab"`
	Merges                  map[string][][2]uint32  `json:"merges"`
	Splits                  map[string][]splitEntry `json:"splits"`
}

// splitEntry is one (rank, expansion) event, marshaled as a JSON array
// "[rank, [id, ...]]" where the expansion names ids directly — only the
// outer splits key is resolved to a token string, not the expansion
// members.
type splitEntry struct {
	Rank  uint32
	Split []uint32
}

func (s splitEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Rank, s.Split})
}

func (s *splitEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &s.Rank); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &s.Split)
}

// orderedVocabJSON marshals Vocab as a JSON object with keys emitted
// in ascending id order, which encoding/json's default map marshaling
// (alphabetic key order) cannot produce.
type orderedVocabJSON struct {
	vocab Vocab
}

func (o orderedVocabJSON) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, entry := range orderedVocab(newVocabR(o.vocab)) {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(entry.Token)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(entry.ID), 10))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// MarshalJSON renders the model in its canonical on-disk wire format.
func (m *PBPE) MarshalJSON() ([]byte, error) {
	mf := modelFile{
		Type:         "PBPE",
		FuseUnk:      m.fuseUnk,
		ByteFallback: m.byteFallback,
		IgnoreMerges: m.ignoreMerges,
		Vocab:        &orderedVocabJSON{vocab: m.vocab},
		Merges:       make(map[string][][2]uint32, len(m.merges)),
		Splits:       make(map[string][]splitEntry, len(m.splits)),
	}
	if m.unkToken != "" {
		mf.UnkToken = &m.unkToken
	}
	if m.continuingSubwordPrefix != "" {
		mf.ContinuingSubwordPrefix = &m.continuingSubwordPrefix
	}
	if m.endOfWordSuffix != "" {
		mf.EndOfWordSuffix = &m.endOfWordSuffix
	}

	for pair, entries := range m.merges {
		key := fmt.Sprintf("[%d,%d]", pair.A, pair.B)
		pairs := make([][2]uint32, len(entries))
		for i, e := range entries {
			pairs[i] = [2]uint32{e.Rank, e.NewID}
		}
		mf.Merges[key] = pairs
	}

	for id, entries := range m.splits {
		token, ok := m.vocabR[id]
		if !ok {
			return nil, NewTokenNotInVocabError(strconv.FormatUint(uint64(id), 10))
		}
		out := make([]splitEntry, len(entries))
		for i, e := range entries {
			out[i] = splitEntry{Rank: e.Rank, Split: e.Split}
		}
		mf.Splits[token] = out
	}

	return json.Marshal(mf)
}

// UnmarshalJSON loads a model from its canonical on-disk wire format.
func (m *PBPE) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type                    *string                 `json:"type"`
		UnkToken                *string                 `json:"unk_token"`
		ContinuingSubwordPrefix *string                 `json:"continuing_subword_prefix"`
		EndOfWordSuffix         *string                 `json:"end_of_word_suffix"`
		FuseUnk                 bool                    `json:"fuse_unk"`
		ByteFallback            bool                    `json:"byte_fallback"`
		IgnoreMerges            bool                    `json:"ignore_merges"`
		Vocab                   map[string]uint32       `json:"vocab"`
		Merges                  map[string][][2]uint32  `json:"merges"`
		Splits                  map[string][]splitEntry `json:"splits"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Type == nil {
		return NewMissingFieldError("type")
	}
	if *raw.Type != "PBPE" {
		return NewUnexpectedTypeError(*raw.Type, "PBPE")
	}
	if raw.Vocab == nil {
		return NewMissingFieldError("vocab")
	}
	if raw.Merges == nil {
		return NewMissingFieldError("merges")
	}
	if raw.Splits == nil {
		return NewMissingFieldError("splits")
	}

	vocab := Vocab(raw.Vocab)
	vocabR := newVocabR(vocab)

	merges := make(MergeMap, len(raw.Merges))
	for key, entries := range raw.Merges {
		var a, b uint32
		if _, err := fmt.Sscanf(key, "[%d,%d]", &a, &b); err != nil {
			return fmt.Errorf("merges key %q: %w", key, err)
		}
		pair := Pair{A: a, B: b}
		list := make([]MergeEntry, len(entries))
		for i, e := range entries {
			list[i] = MergeEntry{Rank: e[0], NewID: e[1]}
		}
		merges[pair] = list
	}

	splits := make(SplitMap, len(raw.Splits))
	for token, entries := range raw.Splits {
		id, ok := vocab[token]
		if !ok {
			return NewTokenNotInVocabError(token)
		}
		list := make([]SplitEntry, len(entries))
		for i, e := range entries {
			list[i] = SplitEntry{Rank: e.Rank, Split: e.Split}
		}
		splits[id] = list
	}

	m.vocab = vocab
	m.vocabR = vocabR
	m.merges = merges
	m.splits = splits
	if raw.UnkToken != nil {
		m.unkToken = *raw.UnkToken
	}
	if raw.ContinuingSubwordPrefix != nil {
		m.continuingSubwordPrefix = *raw.ContinuingSubwordPrefix
	}
	if raw.EndOfWordSuffix != nil {
		m.endOfWordSuffix = *raw.EndOfWordSuffix
	}
	m.fuseUnk = raw.FuseUnk
	m.byteFallback = raw.ByteFallback
	m.ignoreMerges = raw.IgnoreMerges
	if m.cache == nil {
		m.cache = newWordCache(defaultCacheCapacity)
	}

	return nil
}

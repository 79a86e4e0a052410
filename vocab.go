package pbpe

import "sort"

// Pair is an ordered pair of token ids.
type Pair struct {
	A, B uint32
}

// Vocab maps a token's surface string to its id. Ids are unique and
// contiguous starting from 0; the first |atomic| ids are atomic
// (special tokens plus the initial alphabet), later ids are
// merge-produced.
type Vocab map[string]uint32

// VocabR is the inverse of Vocab, rebuilt whenever Vocab changes.
type VocabR map[uint32]string

func newVocabR(vocab Vocab) VocabR {
	r := make(VocabR, len(vocab))
	for token, id := range vocab {
		r[id] = token
	}
	return r
}

// MergeEntry is one (rank, new_id) pair produced by merging the pair
// that keys the containing MergeMap bucket.
type MergeEntry struct {
	Rank  uint32
	NewID uint32
}

// MergeMap holds, for every pair ever merged, the ordered list of
// (rank, new_id) events produced for it. A pair may have multiple
// entries if it was merged, later split, and later re-merged into a
// different token.
type MergeMap map[Pair][]MergeEntry

// SplitEntry is one (rank, expansion) retraction event for the id that
// keys the containing SplitMap bucket.
type SplitEntry struct {
	Rank  uint32
	Split []uint32
}

// SplitMap holds, for every id ever retracted, the ordered list of
// (rank, expansion) events produced for it.
type SplitMap map[uint32][]SplitEntry

// orderedVocab produces (token, id) pairs in ascending id order, which
// is how vocab must be emitted on disk.
func orderedVocab(vocabR VocabR) []struct {
	Token string
	ID    uint32
} {
	out := make([]struct {
		Token string
		ID    uint32
	}, 0, len(vocabR))
	for id, token := range vocabR {
		out = append(out, struct {
			Token string
			ID    uint32
		}{Token: token, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package pbpe

import "container/heap"

// PairDelta is a signed change to a pair's occurrence count, produced by
// Word.Merge or Word.Remove and folded into the training-time pair index.
type PairDelta struct {
	Pair  Pair
	Delta int32
}

// Offset is a half-open byte range [Start, End) within the original input.
type Offset struct {
	Start, End int
}

// Symbol is one slot in a Word's doubly linked sequence. Prev/Next hold
// -1 for "no neighbor"; Len == 0 marks a tombstoned slot awaiting
// compaction.
type Symbol struct {
	C    uint32
	Prev int32
	Next int32
	Len  int
}

func (s *Symbol) mergeWith(other Symbol, newC uint32) {
	s.C = newC
	s.Len += other.Len
	s.Next = other.Next
}

// Word is an ordered sequence of symbols representing one input token's
// current segmentation.
type Word struct {
	Symbols []Symbol
}

// NewWord returns an empty Word.
func NewWord() *Word {
	return &Word{}
}

// NewWordWithCapacity returns an empty Word pre-sized for capacity symbols.
func NewWordWithCapacity(capacity int) *Word {
	return &Word{Symbols: make([]Symbol, 0, capacity)}
}

// Add appends a symbol, fixing up the previous tail's Next pointer.
func (w *Word) Add(c uint32, byteLen int) {
	prev := int32(-1)
	if n := len(w.Symbols); n > 0 {
		w.Symbols[n-1].Next = int32(n)
		prev = int32(n - 1)
	}
	w.Symbols = append(w.Symbols, Symbol{C: c, Prev: prev, Next: -1, Len: byteLen})
}

// GetChars returns the current token id sequence.
func (w *Word) GetChars() []uint32 {
	out := make([]uint32, len(w.Symbols))
	for i, s := range w.Symbols {
		out[i] = s.C
	}
	return out
}

// GetOffsetsIter returns byte offsets for each symbol, in order, computed
// by prefix-summing Len.
func (w *Word) GetOffsetsIter() []Offset {
	out := make([]Offset, len(w.Symbols))
	pos := 0
	for i, s := range w.Symbols {
		out[i] = Offset{Start: pos, End: pos + s.Len}
		pos += s.Len
	}
	return out
}

// Merge fuses every adjacent (c1, c2) occurrence into one symbol carrying
// id replacement, scanning left to right and advancing past each fused
// site. It returns the pair-count deltas produced by the fusion,
// suppressing any delta for a neighbor pair whose prospective merged
// byte length would reach or exceed maxLength.
func (w *Word) Merge(c1, c2, replacement uint32, maxLength int) []PairDelta {
	var changes []PairDelta
	changes = append(changes, PairDelta{Pair: Pair{A: c1, B: c2}, Delta: -1})

	i := 0
	for i < len(w.Symbols) {
		if w.Symbols[i].C == c1 && i+1 < len(w.Symbols) && w.Symbols[i+1].C == c2 {
			first := w.Symbols[i]
			second := w.Symbols[i+1]

			newS := Symbol{
				C:    replacement,
				Prev: first.Prev,
				Next: second.Next,
				Len:  first.Len + second.Len,
			}

			if i > 0 {
				changes = append(changes, PairDelta{Pair: Pair{A: w.Symbols[i-1].C, B: first.C}, Delta: -1})
				if w.Symbols[i-1].Len+newS.Len < maxLength {
					changes = append(changes, PairDelta{Pair: Pair{A: w.Symbols[i-1].C, B: replacement}, Delta: 1})
				}
			}

			newSLen := newS.Len
			w.Symbols = append(w.Symbols, Symbol{})
			copy(w.Symbols[i+1:], w.Symbols[i:])
			w.Symbols[i] = newS
			w.Symbols = append(w.Symbols[:i+1], w.Symbols[i+3:]...)

			if i < len(w.Symbols)-1 {
				changes = append(changes, PairDelta{Pair: Pair{A: second.C, B: w.Symbols[i+1].C}, Delta: -1})
				if w.Symbols[i+1].Len+newSLen < maxLength {
					changes = append(changes, PairDelta{Pair: Pair{A: replacement, B: w.Symbols[i+1].C}, Delta: 1})
				}
			}
		}
		i++
	}

	return changes
}

// Remove expands every occurrence of removedID in place into the
// sequence splitIDs, each new symbol inheriting the removed symbol's
// full original byte length (the length is not divided among pieces, so
// the pieces together cover len(splitIDs) times the removed length). It
// returns the pair-count deltas produced by the expansion, under the
// same maxLength gate as Merge.
func (w *Word) Remove(removedID uint32, splitIDs []uint32, maxLength int) []PairDelta {
	var changes []PairDelta
	i := 0
	for i < len(w.Symbols) {
		if w.Symbols[i].C == removedID {
			removedLen := w.Symbols[i].Len
			if i > 0 {
				changes = append(changes, PairDelta{Pair: Pair{A: w.Symbols[i-1].C, B: removedID}, Delta: -1})
			}
			if i < len(w.Symbols)-1 {
				changes = append(changes, PairDelta{Pair: Pair{A: removedID, B: w.Symbols[i+1].C}, Delta: -1})
			}

			prev := w.Symbols[i].Prev

			rest := append([]Symbol{}, w.Symbols[i+1:]...)
			w.Symbols = w.Symbols[:i]

			for j, id := range splitIDs {
				newS := Symbol{
					C:    id,
					Prev: prev,
					Next: int32(i + j + 1),
					Len:  removedLen,
				}
				if i+j-1 >= 0 && i+j-1 < len(w.Symbols) && w.Symbols[i+j-1].Len+newS.Len < maxLength {
					changes = append(changes, PairDelta{Pair: Pair{A: w.Symbols[i+j-1].C, B: id}, Delta: 1})
				}
				w.Symbols = append(w.Symbols, newS)
				prev = int32(i + j)
			}
			w.Symbols = append(w.Symbols, rest...)

			if i+len(splitIDs) < len(w.Symbols) &&
				w.Symbols[i+len(splitIDs)-1].Len+w.Symbols[i+len(splitIDs)].Len < maxLength {
				changes = append(changes, PairDelta{
					Pair:  Pair{A: w.Symbols[i+len(splitIDs)-1].C, B: w.Symbols[i+len(splitIDs)].C},
					Delta: 1,
				})
			}
		}
		i++
	}
	return changes
}

type eventKind uint8

const (
	eventMerge eventKind = iota
	eventSplit
)

type replayEvent struct {
	kind  eventKind
	pos   int
	rank  uint32
	newID uint32
	split []uint32
}

// replayHeap is a min-heap over replayEvent ordered by (rank, pos),
// with merges preceding splits at identical (rank, pos) for a
// deterministic tiebreak.
type replayHeap []replayEvent

func (h replayHeap) Len() int { return len(h) }
func (h replayHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	if a.pos != b.pos {
		return a.pos < b.pos
	}
	return a.kind == eventMerge && b.kind == eventSplit
}
func (h replayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *replayHeap) Push(x any)   { *h = append(*h, x.(replayEvent)) }
func (h *replayHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// lowestMergeAbove returns the lowest-rank merge entry for pair with
// rank greater than afterRank (or equal to it, when strict is false),
// if any. Merge entries for a
// pair are appended in increasing rank order, so the first qualifying
// entry is also the lowest.
func lowestMergeAbove(merges MergeMap, pair Pair, afterRank uint32, strict bool) (MergeEntry, bool) {
	for _, e := range merges[pair] {
		if (strict && e.Rank > afterRank) || (!strict && e.Rank >= afterRank) {
			return e, true
		}
	}
	return MergeEntry{}, false
}

func lowestSplitAbove(splits SplitMap, id uint32, afterRank uint32) (SplitEntry, bool) {
	for _, e := range splits[id] {
		if e.Rank > afterRank {
			return e, true
		}
	}
	return SplitEntry{}, false
}

// MergeSplitAll is the inference replay engine: given the word's current
// atomic-symbol sequence and the trained merges/splits tables, it
// applies every merge and split event in rank order, exactly as they
// fired during training, and compacts tombstoned symbols at the end.
func (w *Word) MergeSplitAll(merges MergeMap, splits SplitMap) {
	h := make(replayHeap, 0, len(w.Symbols))

	for i := 0; i+1 < len(w.Symbols); i++ {
		pair := Pair{A: w.Symbols[i].C, B: w.Symbols[i+1].C}
		if e, ok := lowestMergeAbove(merges, pair, 0, false); ok {
			h = append(h, replayEvent{kind: eventMerge, pos: i, rank: e.Rank, newID: e.NewID})
		}
	}
	heap.Init(&h)

	for h.Len() > 0 {
		top := heap.Pop(&h).(replayEvent)

		switch top.kind {
		case eventMerge:
			if w.Symbols[top.pos].Len == 0 || w.Symbols[top.pos].Next == -1 {
				continue
			}
			nextPos := int(w.Symbols[top.pos].Next)
			right := w.Symbols[nextPos]

			targetPair := Pair{A: w.Symbols[top.pos].C, B: right.C}
			matched := false
			for _, e := range merges[targetPair] {
				if e.Rank == top.rank && e.NewID == top.newID {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}

			w.Symbols[top.pos].mergeWith(right, top.newID)
			w.Symbols[nextPos].Len = 0
			if right.Next > -1 && int(right.Next) < len(w.Symbols) {
				w.Symbols[right.Next].Prev = int32(top.pos)
			}

			cur := w.Symbols[top.pos]
			if cur.Prev >= 0 {
				prevSym := w.Symbols[cur.Prev]
				pair := Pair{A: prevSym.C, B: cur.C}
				if e, ok := lowestMergeAbove(merges, pair, top.rank, true); ok {
					heap.Push(&h, replayEvent{kind: eventMerge, pos: int(cur.Prev), rank: e.Rank, newID: e.NewID})
				}
			}
			if int(cur.Next) < len(w.Symbols) && cur.Next >= 0 {
				nextSym := w.Symbols[cur.Next]
				pair := Pair{A: cur.C, B: nextSym.C}
				if e, ok := lowestMergeAbove(merges, pair, top.rank, true); ok {
					heap.Push(&h, replayEvent{kind: eventMerge, pos: top.pos, rank: e.Rank, newID: e.NewID})
				}
			}
			if e, ok := lowestSplitAbove(splits, cur.C, top.rank); ok {
				heap.Push(&h, replayEvent{kind: eventSplit, pos: top.pos, rank: e.Rank, split: e.Split})
			}

		case eventSplit:
			if w.Symbols[top.pos].Len == 0 || w.Symbols[top.pos].Next == -1 {
				continue
			}
			matched := false
			for _, e := range splits[w.Symbols[top.pos].C] {
				if e.Rank == top.rank && sameIDs(e.Split, top.split) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			if top.pos+len(top.split) > len(w.Symbols) {
				continue
			}

			prev := w.Symbols[top.pos].Prev
			for i, newC := range top.split {
				if top.pos+i >= len(w.Symbols) {
					break
				}
				w.Symbols[top.pos+i].C = newC
				w.Symbols[top.pos+i].Prev = prev
				w.Symbols[top.pos+i].Len = 1
				prev = int32(top.pos + i)
				if top.pos+i < len(w.Symbols)-1 {
					w.Symbols[top.pos+i].Next = int32(top.pos + i + 1)
				} else {
					w.Symbols[top.pos+i].Next = -1
				}
			}

			for i := 0; i+1 < len(top.split); i++ {
				pair := Pair{A: top.split[i], B: top.split[i+1]}
				if e, ok := lowestMergeAbove(merges, pair, top.rank, true); ok {
					heap.Push(&h, replayEvent{kind: eventMerge, pos: top.pos + i, rank: e.Rank, newID: e.NewID})
				}
			}

			if top.pos+len(top.split) < len(w.Symbols) {
				w.Symbols[top.pos+len(top.split)].Prev = int32(top.pos + len(top.split) - 1)
			}
		}
	}

	compacted := w.Symbols[:0]
	for _, s := range w.Symbols {
		if s.Len != 0 {
			compacted = append(compacted, s)
		}
	}
	w.Symbols = compacted
}

func sameIDs(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

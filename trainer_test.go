package pbpe

import (
	"reflect"
	"testing"
)

func TestTrainerFeedAccumulatesWordCounts(t *testing.T) {
	trainer, err := NewTrainerBuilder().Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	process := func(s string) []string {
		return []string{s}
	}
	if err := trainer.Feed([]string{"the", "the", "cat"}, process); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	want := map[string]uint64{"the": 2, "cat": 1}
	if !reflect.DeepEqual(trainer.wordCounts, want) {
		t.Fatalf("wordCounts = %v, want %v", trainer.wordCounts, want)
	}
}

// TestTrainWithRetraction covers a corpus whose most frequent pair
// (r,e) gets merged and then immediately retracted once almost all of
// its occurrences are consumed by a single larger merge (a,re).
func TestTrainWithRetraction(t *testing.T) {
	wordCounts := map[string]uint64{
		"roses":   1,
		"are":     15,
		"red":     1,
		"voilets": 1,
		"blue":    1,
		"BERT":    1,
		"is":      2,
		"big":     1,
		"and":     1,
		"so":      1,
		"GPT-2":   1,
	}

	trainer, err := NewTrainerBuilder().
		With(WithTrainerVocabSize(1000)).
		With(WithTrainerMinFrequency(2)).
		With(WithTrainerTau(0.3)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	trainer.wordCounts = wordCounts

	model, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("model Build() error = %v", err)
	}

	if _, err := trainer.Train(model); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	idOf := func(tok string) uint32 {
		id, ok := model.TokenToID(tok)
		if !ok {
			t.Fatalf("vocab missing token %q", tok)
		}
		return id
	}

	r, e, a, i, s, d := idOf("r"), idOf("e"), idOf("a"), idOf("i"), idOf("s"), idOf("d")

	reID, ok := model.TokenToID("re")
	if !ok {
		t.Fatalf("vocab missing token %q", "re")
	}
	areID := idOf("are")
	isID := idOf("is")

	if reID != 22 || areID != 23 || isID != 24 {
		t.Fatalf("got re=%d are=%d is=%d, want re=22 are=23 is=24", reID, areID, isID)
	}

	wantMerges := MergeMap{
		{A: r, B: e}:    {{Rank: 0, NewID: reID}},
		{A: a, B: reID}: {{Rank: 1, NewID: areID}},
		{A: i, B: s}:    {{Rank: 3, NewID: isID}},
	}
	if !reflect.DeepEqual(model.merges, wantMerges) {
		t.Fatalf("merges = %+v, want %+v", model.merges, wantMerges)
	}

	wantSplits := SplitMap{
		reID: {{Rank: 2, Split: []uint32{r, e}}},
	}
	if !reflect.DeepEqual(model.splits, wantSplits) {
		t.Fatalf("splits = %+v, want %+v", model.splits, wantSplits)
	}

	_ = d // "d" participates in "red"/"and" but is asserted only indirectly via merges/splits above
}

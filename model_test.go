package pbpe

import (
	"reflect"
	"testing"
)

// vocabFromList builds a Vocab from a list of (token, id) pairs, letting
// tests spell out ids explicitly.
func vocabFromList(pairs ...any) Vocab {
	v := make(Vocab, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		v[pairs[i].(string)] = uint32(pairs[i+1].(int))
	}
	return v
}

func TestTokenizeBasicMerge(t *testing.T) {
	vocab := vocabFromList(
		"u", 0, "n", 1, "r", 2, "e", 3, "l", 4, "a", 5, "t", 6, "d", 7,
		"re", 8, "at", 9, "ed", 10, "un", 11, "ated", 12, "rel", 13, "related", 14, "unrelated", 15,
	)
	merges := MergeMap{
		{2, 3}:   {{Rank: 0, NewID: 8}},  // r,e -> re
		{5, 6}:   {{Rank: 1, NewID: 9}},  // a,t -> at
		{3, 7}:   {{Rank: 2, NewID: 10}}, // e,d -> ed
		{0, 1}:   {{Rank: 3, NewID: 11}}, // u,n -> un
		{9, 10}:  {{Rank: 4, NewID: 12}}, // at,ed -> ated
		{8, 4}:   {{Rank: 5, NewID: 13}}, // re,l -> rel
		{13, 12}: {{Rank: 6, NewID: 14}}, // rel,ated -> related
		{11, 14}: {{Rank: 7, NewID: 15}}, // un,related -> unrelated
	}

	m, err := NewBuilder().With(WithVocabAndMerges(vocab, merges, SplitMap{})).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tokens, err := m.Tokenize("unrelated")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("Tokenize() = %+v, want single token", tokens)
	}
	want := Token{ID: 15, Value: "unrelated", Offset: Offset{0, 9}}
	if tokens[0] != want {
		t.Fatalf("Tokenize() = %+v, want %+v", tokens[0], want)
	}
}

func TestTokenizeUnkFusionOff(t *testing.T) {
	vocab := vocabFromList("<unk>", 0, "a", 1, "b", 2)
	m, err := NewBuilder().
		With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).
		With(WithUnkToken("<unk>")).
		With(WithFuseUnk(false)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tokens, err := m.Tokenize("accb")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []Token{
		{ID: 1, Value: "a", Offset: Offset{0, 1}},
		{ID: 0, Value: "<unk>", Offset: Offset{1, 2}},
		{ID: 0, Value: "<unk>", Offset: Offset{2, 3}},
		{ID: 2, Value: "b", Offset: Offset{3, 4}},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize() = %+v, want %+v", tokens, want)
	}
}

func TestTokenizeUnkFusionOn(t *testing.T) {
	vocab := vocabFromList("<unk>", 0, "a", 1, "b", 2)
	m, err := NewBuilder().
		With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).
		With(WithUnkToken("<unk>")).
		With(WithFuseUnk(true)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tokens, err := m.Tokenize("accb")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []Token{
		{ID: 1, Value: "a", Offset: Offset{0, 1}},
		{ID: 0, Value: "<unk>", Offset: Offset{1, 3}},
		{ID: 2, Value: "b", Offset: Offset{3, 4}},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize() = %+v, want %+v", tokens, want)
	}
}

func TestTokenizeByteFallback(t *testing.T) {
	vocab := vocabFromList("<unk>", 0, "<0x61>", 1)
	m, err := NewBuilder().
		With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).
		With(WithUnkToken("<unk>")).
		With(WithByteFallback(true)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tokens, err := m.Tokenize("a")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []Token{{ID: 1, Value: "<0x61>", Offset: Offset{0, 1}}}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize(%q) = %+v, want %+v", "a", tokens, want)
	}

	tokens, err = m.Tokenize("c")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want = []Token{{ID: 0, Value: "<unk>", Offset: Offset{0, 1}}}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize(%q) = %+v, want %+v", "c", tokens, want)
	}
}

func TestTokenizeIgnoreMerges(t *testing.T) {
	vocab := vocabFromList(".:.:", 0)
	m, err := NewBuilder().
		With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).
		With(WithIgnoreMerges(true)).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tokens, err := m.Tokenize(".:.:")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []Token{{ID: 0, Value: ".:.:", Offset: Offset{0, 4}}}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("Tokenize() = %+v, want %+v", tokens, want)
	}
}

func TestTokenizeUnkOutOfVocabularyError(t *testing.T) {
	vocab := vocabFromList("a", 0)
	m, err := NewBuilder().
		With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).
		With(WithUnkToken("<unk>")).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := m.Tokenize("z"); err == nil {
		t.Fatal("Tokenize() expected UnkTokenOutOfVocabulary error, got nil")
	}
}

func TestGetVocabIsACopy(t *testing.T) {
	vocab := vocabFromList("a", 0)
	m, err := NewBuilder().With(WithVocabAndMerges(vocab, MergeMap{}, SplitMap{})).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := m.GetVocab()
	got["b"] = 99
	if _, ok := m.TokenToID("b"); ok {
		t.Fatal("GetVocab() copy mutation leaked into model")
	}
}

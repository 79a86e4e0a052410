package pbpe

import (
	"reflect"
	"testing"
)

func buildHello() *Word {
	w := NewWord()
	w.Add(0, 1) // 'h'
	w.Add(1, 1) // 'e'
	w.Add(2, 1) // 'l'
	w.Add(2, 1) // 'l'
	w.Add(3, 1) // 'o'
	return w
}

func TestWordMerge(t *testing.T) {
	w := buildHello()

	changes := w.Merge(2, 2, 4, 1<<30)

	want := []uint32{0, 1, 4, 3}
	if got := w.GetChars(); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetChars() = %v, want %v", got, want)
	}

	wantChanges := []PairDelta{
		{Pair{2, 2}, -1},
		{Pair{1, 2}, -1},
		{Pair{1, 4}, 1},
		{Pair{2, 3}, -1},
		{Pair{4, 3}, 1},
	}
	if !reflect.DeepEqual(changes, wantChanges) {
		t.Fatalf("Merge() changes = %+v, want %+v", changes, wantChanges)
	}
}

func TestWordRemove(t *testing.T) {
	w := buildHello()
	w.Merge(2, 2, 4, 1<<30)

	changes := w.Remove(4, []uint32{2, 2}, 1<<30)

	want := []uint32{0, 1, 2, 2, 3}
	if got := w.GetChars(); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetChars() after Remove = %v, want %v", got, want)
	}

	wantChanges := []PairDelta{
		{Pair{1, 4}, -1},
		{Pair{4, 3}, -1},
		{Pair{1, 2}, 1},
		{Pair{2, 2}, 1},
		{Pair{2, 3}, 1},
	}
	if !reflect.DeepEqual(changes, wantChanges) {
		t.Fatalf("Remove() changes = %+v, want %+v", changes, wantChanges)
	}
}

func TestWordMergeSplitAll(t *testing.T) {
	merges := MergeMap{
		{2, 2}: {{Rank: 0, NewID: 4}}, // 'll' rank 0, id 4
		{1, 4}: {{Rank: 1, NewID: 5}}, // 'ell' rank 1, id 5
	}
	splits := SplitMap{
		5: {{Rank: 2, Split: []uint32{1, 4}}}, // 'ell' splits back into 'e','ll'
	}

	w := buildHello()
	w.MergeSplitAll(merges, splits)

	want := []uint32{0, 1, 4, 3}
	if got := w.GetChars(); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetChars() = %v, want %v", got, want)
	}

	merges[Pair{1, 4}] = append(merges[Pair{1, 4}], MergeEntry{Rank: 3, NewID: 6})

	w2 := buildHello()
	w2.MergeSplitAll(merges, splits)

	want2 := []uint32{0, 6, 3}
	if got := w2.GetChars(); !reflect.DeepEqual(got, want2) {
		t.Fatalf("GetChars() (second vocab) = %v, want %v", got, want2)
	}
}

func TestWordGetOffsetsIter(t *testing.T) {
	w := buildHello()
	offsets := w.GetOffsetsIter()
	want := []Offset{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}
	if !reflect.DeepEqual(offsets, want) {
		t.Fatalf("GetOffsetsIter() = %+v, want %+v", offsets, want)
	}
}

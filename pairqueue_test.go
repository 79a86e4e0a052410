package pbpe

import "testing"

func TestPairIndexAddAndPositions(t *testing.T) {
	idx := newPairIndex()
	idx.add(Pair{A: 1, B: 2}, 0, 5)
	idx.add(Pair{A: 1, B: 2}, 3, 2)

	if got := idx.counts[Pair{A: 1, B: 2}]; got != 7 {
		t.Fatalf("counts = %d, want 7", got)
	}
	pos := idx.positions(Pair{A: 1, B: 2})
	if _, ok := pos[0]; !ok {
		t.Fatal("positions missing word 0")
	}
	if _, ok := pos[3]; !ok {
		t.Fatal("positions missing word 3")
	}
	if len(pos) != 2 {
		t.Fatalf("len(positions) = %d, want 2", len(pos))
	}
}

func TestPairIndexApplyDelta(t *testing.T) {
	idx := newPairIndex()
	idx.add(Pair{A: 1, B: 2}, 0, 3)

	idx.applyDelta(Pair{A: 1, B: 2}, 0, -1, 3)
	if got := idx.counts[Pair{A: 1, B: 2}]; got != 0 {
		t.Fatalf("counts after negative delta = %d, want 0", got)
	}

	idx.applyDelta(Pair{A: 3, B: 4}, 1, 1, 2)
	if got := idx.counts[Pair{A: 3, B: 4}]; got != 2 {
		t.Fatalf("counts after positive delta = %d, want 2", got)
	}
	if _, ok := idx.positions(Pair{A: 3, B: 4})[1]; !ok {
		t.Fatal("positive delta should register word index 1")
	}
}

func TestPairIndexMerge(t *testing.T) {
	a := newPairIndex()
	a.add(Pair{A: 1, B: 2}, 0, 1)

	b := newPairIndex()
	b.add(Pair{A: 1, B: 2}, 1, 4)
	b.add(Pair{A: 5, B: 6}, 2, 1)

	a.merge(b)

	if got := a.counts[Pair{A: 1, B: 2}]; got != 5 {
		t.Fatalf("merged counts = %d, want 5", got)
	}
	if len(a.positions(Pair{A: 1, B: 2})) != 2 {
		t.Fatalf("merged positions = %v, want 2 entries", a.positions(Pair{A: 1, B: 2}))
	}
	if got := a.counts[Pair{A: 5, B: 6}]; got != 1 {
		t.Fatalf("merged counts for new pair = %d, want 1", got)
	}
}

func TestMergeQueueOrdersByCountThenPair(t *testing.T) {
	q := newMergeQueue()
	idx := newPairIndex()

	idx.add(Pair{A: 9, B: 9}, 0, 3)
	idx.add(Pair{A: 1, B: 1}, 0, 10)
	idx.add(Pair{A: 2, B: 1}, 0, 10)

	q.pushOrUpdate(Pair{A: 9, B: 9}, 3)
	q.pushOrUpdate(Pair{A: 1, B: 1}, 10)
	q.pushOrUpdate(Pair{A: 2, B: 1}, 10)

	pair, count, ok := popTop(q, idx)
	if !ok || pair != (Pair{A: 1, B: 1}) || count != 10 {
		t.Fatalf("popTop() = (%+v,%d,%v), want ({1,1},10,true) (tie broken toward lesser pair)", pair, count, ok)
	}

	pair, count, ok = popTop(q, idx)
	if !ok || pair != (Pair{A: 2, B: 1}) || count != 10 {
		t.Fatalf("popTop() = (%+v,%d,%v), want ({2,1},10,true)", pair, count, ok)
	}

	pair, count, ok = popTop(q, idx)
	if !ok || pair != (Pair{A: 9, B: 9}) || count != 3 {
		t.Fatalf("popTop() = (%+v,%d,%v), want ({9,9},3,true)", pair, count, ok)
	}
}

func TestPopTopSkipsStaleAndNonPositiveEntries(t *testing.T) {
	q := newMergeQueue()
	idx := newPairIndex()

	idx.add(Pair{A: 1, B: 2}, 0, 5)
	q.pushOrUpdate(Pair{A: 1, B: 2}, 5)

	// Stale: pushed at 5 but the live count has since grown to 8.
	idx.applyDelta(Pair{A: 1, B: 2}, 1, 1, 3)

	pair, count, ok := popTop(q, idx)
	if !ok || pair != (Pair{A: 1, B: 2}) || count != 8 {
		t.Fatalf("popTop() = (%+v,%d,%v), want ({1,2},8,true) after stale requeue", pair, count, ok)
	}

	idx2 := newPairIndex()
	idx2.add(Pair{A: 3, B: 4}, 0, 5)
	q2 := newMergeQueue()
	q2.pushOrUpdate(Pair{A: 3, B: 4}, 5)
	idx2.applyDelta(Pair{A: 3, B: 4}, 0, -1, 5)

	if _, _, ok := popTop(q2, idx2); ok {
		t.Fatal("popTop() = ok after count dropped to zero, want false")
	}
}

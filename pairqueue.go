package pbpe

import "container/heap"

// pairIndex is the training-time bookkeeping pairing every pair's total
// weighted count with the set of word indices that must be revisited
// when it is merged. Word.Merge/Word.Remove each rescan their whole
// word for every occurrence of a pair in one call, so where_to_update
// only needs to name words, not positions within them.
type pairIndex struct {
	counts map[Pair]int64
	where  map[Pair]map[int]struct{}
}

func newPairIndex() *pairIndex {
	return &pairIndex{
		counts: make(map[Pair]int64),
		where:  make(map[Pair]map[int]struct{}),
	}
}

func (p *pairIndex) add(pair Pair, wordIdx int, weight int64) {
	p.counts[pair] += weight
	set, ok := p.where[pair]
	if !ok {
		set = make(map[int]struct{})
		p.where[pair] = set
	}
	set[wordIdx] = struct{}{}
}

func (p *pairIndex) applyDelta(pair Pair, wordIdx int, delta int32, weight int64) {
	p.counts[pair] += int64(delta) * weight
	if delta > 0 {
		set, ok := p.where[pair]
		if !ok {
			set = make(map[int]struct{})
			p.where[pair] = set
		}
		set[wordIdx] = struct{}{}
	}
}

func (p *pairIndex) positions(pair Pair) map[int]struct{} {
	return p.where[pair]
}

// merge folds src into p, summing counts and unioning word-index sets
// — the reduce step after parallel per-chunk pair counting.
func (p *pairIndex) merge(src *pairIndex) {
	for pair, c := range src.counts {
		p.counts[pair] += c
	}
	for pair, set := range src.where {
		dst, ok := p.where[pair]
		if !ok {
			dst = make(map[int]struct{}, len(set))
			p.where[pair] = dst
		}
		for idx := range set {
			dst[idx] = struct{}{}
		}
	}
}

// mergeJob is one candidate merge sitting in the training priority
// queue, tracking the pair, its current aggregate count, and the count
// value the entry was pushed with (for stale-entry detection at pop
// time — the queue never decrease-keys, it tolerates staleness).
type mergeJob struct {
	pair   Pair
	count  int64
	pushed int64
}

// mergeQueue is a max-priority queue over pairs ordered by descending
// count, with ties broken in favor of the numerically lesser pair so
// that training is fully deterministic regardless of map iteration
// order.
type mergeQueue []*mergeJob

func (q mergeQueue) Len() int { return len(q) }

func (q mergeQueue) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count > q[j].count
	}
	if q[i].pair.A != q[j].pair.A {
		return q[i].pair.A < q[j].pair.A
	}
	return q[i].pair.B < q[j].pair.B
}

func (q mergeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *mergeQueue) Push(x any) {
	*q = append(*q, x.(*mergeJob))
}

func (q *mergeQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

func newMergeQueue() *mergeQueue {
	q := &mergeQueue{}
	heap.Init(q)
	return q
}

// pushOrUpdate enqueues pair at its current count. Stale duplicates are
// expected and resolved lazily: popTop revalidates against the live
// pairIndex count and requeues under the corrected value rather than
// trusting the value it was pushed with.
func (q *mergeQueue) pushOrUpdate(pair Pair, count int64) {
	heap.Push(q, &mergeJob{pair: pair, count: count, pushed: count})
}

// popTop pops entries until it finds one whose pushed count still
// matches the live index (or re-pushes the corrected one), returning
// the pair to merge next and its true count, or ok=false if the queue
// is exhausted or no positive-count pair remains.
func popTop(q *mergeQueue, idx *pairIndex) (Pair, int64, bool) {
	for q.Len() > 0 {
		job := heap.Pop(q).(*mergeJob)
		live := idx.counts[job.pair]
		if live <= 0 {
			continue
		}
		if live != job.pushed {
			heap.Push(q, &mergeJob{pair: job.pair, count: live, pushed: live})
			continue
		}
		return job.pair, live, true
	}
	return Pair{}, 0, false
}

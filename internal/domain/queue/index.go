package queue

import (
	"container/heap"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Entry is one (patient, score) pair in the ordering index. EnteredAt is the
// queue-entry timestamp used as the deterministic secondary sort key.
type Entry struct {
	PatientID uuid.UUID
	Score     float64
	EnteredAt time.Time
}

// Index is the in-memory priority ranking over active patients. It is a
// disposable cache over durable patient records: Rebuild replaces the whole
// snapshot, and readers always observe either the previous or the next
// snapshot, never a partial one. The engine rebuilds it after every mutating
// operation.
type Index struct {
	snap atomic.Pointer[indexSnapshot]
}

type indexSnapshot struct {
	order []Entry
	rank  map[uuid.UUID]int // patient id -> 1-based rank
}

// NewIndex returns an empty index. Each engine owns its own instance; there
// is no package-level state.
func NewIndex() *Index {
	ix := &Index{}
	ix.snap.Store(&indexSnapshot{rank: map[uuid.UUID]int{}})
	return ix
}

// entryHeap is a max-heap: highest score first, ties broken by earlier
// queue-entry time, then by patient id so the order is fully deterministic.
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	if !h[i].EnteredAt.Equal(h[j].EnteredAt) {
		return h[i].EnteredAt.Before(h[j].EnteredAt)
	}
	return h[i].PatientID.String() < h[j].PatientID.String()
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Rebuild replaces the index contents with the given entries, O(n log n).
// The new snapshot is constructed off to the side and swapped in atomically.
func (ix *Index) Rebuild(entries []Entry) {
	h := make(entryHeap, len(entries))
	copy(h, entries)
	heap.Init(&h)

	snap := &indexSnapshot{
		order: make([]Entry, 0, len(entries)),
		rank:  make(map[uuid.UUID]int, len(entries)),
	}
	for h.Len() > 0 {
		e := heap.Pop(&h).(Entry)
		snap.order = append(snap.order, e)
		snap.rank[e.PatientID] = len(snap.order)
	}
	ix.snap.Store(snap)
}

// Position returns the patient's 1-based rank; rank 1 is served first.
func (ix *Index) Position(id uuid.UUID) (int, bool) {
	r, ok := ix.snap.Load().rank[id]
	return r, ok
}

// Size returns the number of indexed patients.
func (ix *Index) Size() int {
	return len(ix.snap.Load().order)
}

// Entries returns the current snapshot's ranking, best first. The returned
// slice is a copy and safe to hold across rebuilds.
func (ix *Index) Entries() []Entry {
	order := ix.snap.Load().order
	out := make([]Entry, len(order))
	copy(out, order)
	return out
}

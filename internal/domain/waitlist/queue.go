// Package waitlist holds the in-memory waiting queues. One queue per
// hospital, rebuilt from persisted rows on startup; callers pair every
// queue mutation with the matching persisted-field write.
package waitlist

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one queued patient.
type Entry struct {
	PatientID uuid.UUID `json:"patient_id"`
	Score     float64   `json:"score"`
	EnteredAt time.Time `json:"entered_at"`
}

// Position is an Entry with its 1-based queue position.
type Position struct {
	Entry
	Position int `json:"position"`
}

// Queue is a max-priority queue keyed by patient id. Ordering is score
// descending, entry time ascending on ties. Safe for concurrent use.
type Queue struct {
	mu    sync.RWMutex
	items entryHeap
	index map[uuid.UUID]int
}

func NewQueue() *Queue {
	return &Queue{index: make(map[uuid.UUID]int)}
}

// Add inserts the patient or, if already queued, re-scores it in place.
// The original entry time is kept on re-insertion.
func (q *Queue) Add(patientID uuid.UUID, score float64, enteredAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i, ok := q.index[patientID]; ok {
		q.items[i].Score = score
		heap.Fix(&q.items, i)
		return
	}
	heap.Push(&q.items, &item{
		Entry: Entry{PatientID: patientID, Score: score, EnteredAt: enteredAt},
		queue: q,
	})
}

// Remove drops the patient; no-op when absent.
func (q *Queue) Remove(patientID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i, ok := q.index[patientID]; ok {
		heap.Remove(&q.items, i)
	}
}

// Contains reports queue membership.
func (q *Queue) Contains(patientID uuid.UUID) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.index[patientID]
	return ok
}

// Len returns the queue size.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Peek returns the highest-priority entry without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.items) == 0 {
		return Entry{}, false
	}
	return q.items[0].Entry, true
}

// Ordered returns every entry with its position, highest priority
// first.
func (q *Queue) Ordered() []Position {
	q.mu.RLock()
	snapshot := make([]Entry, len(q.items))
	for i, it := range q.items {
		snapshot[i] = it.Entry
	}
	q.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return entryLess(snapshot[i], snapshot[j]) })
	out := make([]Position, len(snapshot))
	for i, e := range snapshot {
		out[i] = Position{Entry: e, Position: i + 1}
	}
	return out
}

func entryLess(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.EnteredAt.Before(b.EnteredAt)
}

// item is an Entry with its heap bookkeeping.
type item struct {
	Entry
	queue *Queue
}

type entryHeap []*item

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool { return entryLess(h[i].Entry, h[j].Entry) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].queue.index[h[i].PatientID] = i
	h[j].queue.index[h[j].PatientID] = j
}

func (h *entryHeap) Push(x any) {
	it := x.(*item)
	it.queue.index[it.PatientID] = len(*h)
	*h = append(*h, it)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	delete(it.queue.index, it.PatientID)
	return it
}

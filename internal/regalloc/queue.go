package regalloc

import "container/heap"

// queueItem is one entry in the allocation priority queue: a bundle
// waiting to be processed, its priority, an advisory register hint, and
// the sequence number it was inserted with (used only to break ties in
// FIFO order, matching spec.md §4.1 "ties broken by insertion order").
type queueItem struct {
	bundle LiveBundleIndex
	prio   int
	hint   PReg
	seq    uint64
}

// bundleHeap is the container/heap.Interface backing the allocation
// queue: a max-heap on priority, following the same pattern as the Go
// compiler's own SSA scheduler (cmd/compile/internal/ssa/schedule.go),
// which also drives instruction ordering from a container/heap priority
// queue.
type bundleHeap []queueItem

func (h bundleHeap) Len() int { return len(h) }

func (h bundleHeap) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio > h[j].prio // higher priority pops first.
	}

	return h[i].seq < h[j].seq // earlier insertion pops first on a tie.
}

func (h bundleHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *bundleHeap) Push(x any) {
	*h = append(*h, x.(queueItem))
}

func (h *bundleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// AllocationQueue is the max-heap of (bundle, priority, register hint)
// that drives process order (spec.md §4.1). The hint is advisory only:
// it informs the first probe in process_bundle but never affects
// correctness.
type AllocationQueue struct {
	heap    bundleHeap
	nextSeq uint64
}

// NewAllocationQueue returns an empty queue.
func NewAllocationQueue() *AllocationQueue {
	return &AllocationQueue{}
}

// Insert adds bundle to the queue with the given priority and hint.
func (q *AllocationQueue) Insert(bundle LiveBundleIndex, prio int, hint PReg) {
	heap.Push(&q.heap, queueItem{bundle: bundle, prio: prio, hint: hint, seq: q.nextSeq})
	q.nextSeq++
}

// Pop removes and returns the highest-priority bundle along with its
// hint, or ok=false if the queue is empty.
func (q *AllocationQueue) Pop() (bundle LiveBundleIndex, hint PReg, ok bool) {
	if len(q.heap) == 0 {
		return InvalidLiveBundleIndex, InvalidPReg, false
	}

	item := heap.Pop(&q.heap).(queueItem)

	return item.bundle, item.hint, true
}

// Len returns the number of bundles currently queued.
func (q *AllocationQueue) Len() int { return len(q.heap) }

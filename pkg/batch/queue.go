package batch

import (
	"container/heap"
	"sync"
)

type job struct {
	img   Image
	seq   int
	index int // used by heap
}

// JobQueue orders pending images for dispatch. In arrival order by
// default; largest-area-first when byArea is set, so in pipelined mode
// the longest transfers start early and the tail of the batch overlaps
// with small images.
type JobQueue struct {
	mu     sync.Mutex
	byArea bool
	items  []*job
	seq    int
}

func NewJobQueue(byArea bool) *JobQueue {
	q := &JobQueue{byArea: byArea, items: make([]*job, 0, 64)}
	heap.Init(q)
	return q
}

// Enqueue adds an image to the queue (thread-safe).
func (q *JobQueue) Enqueue(img Image) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(q, &job{img: img, seq: q.seq})
	q.seq++
}

// Dequeue removes the next image to process (thread-safe).
func (q *JobQueue) Dequeue() (Image, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Image{}, false
	}
	j := heap.Pop(q).(*job)
	return j.img, true
}

// Depth returns the current queue depth (thread-safe).
func (q *JobQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// --- heap.Interface implementation (not thread-safe, use Enqueue/Dequeue) ---

func (q *JobQueue) Len() int { return len(q.items) }

func (q *JobQueue) Less(i, j int) bool {
	if q.byArea {
		ai := q.items[i].img.Width * q.items[i].img.Height
		aj := q.items[j].img.Width * q.items[j].img.Height
		if ai != aj {
			return ai > aj
		}
	}
	// Same area (or FIFO mode): earlier arrival first
	return q.items[i].seq < q.items[j].seq
}

func (q *JobQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *JobQueue) Push(x interface{}) {
	item := x.(*job)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *JobQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

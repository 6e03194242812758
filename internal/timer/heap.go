package timer

import "container/heap"

// entry is a pending wake-up plus its position in the heap.
type entry struct {
	wake  Wake
	index int
}

// wakeHeap orders entries by trigger instant, earliest first.
type wakeHeap []*entry

func (h wakeHeap) Len() int { return len(h) }

func (h wakeHeap) Less(i, j int) bool {
	if h[i].wake.TriggerAt.Equal(h[j].wake.TriggerAt) {
		return h[i].wake.ID < h[j].wake.ID
	}

	return h[i].wake.TriggerAt.Before(h[j].wake.TriggerAt)
}

func (h wakeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *wakeHeap) Push(x any) {
	e := x.(*entry) //nolint:forcetypeassert // Only *entry is ever pushed.
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}

// peek returns the earliest entry without removing it.
func (h wakeHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}

	return h[0]
}

// upsert inserts e or, when an entry with the same ID is indexed, updates it in place.
func (h *wakeHeap) upsert(index map[int]*entry, w Wake) {
	if existing, ok := index[w.ID]; ok {
		existing.wake = w
		heap.Fix(h, existing.index)

		return
	}

	e := &entry{wake: w}
	heap.Push(h, e)
	index[w.ID] = e
}

// remove drops the entry with the given ID; reports whether one existed.
func (h *wakeHeap) remove(index map[int]*entry, id int) bool {
	existing, ok := index[id]
	if !ok {
		return false
	}

	heap.Remove(h, existing.index)
	delete(index, id)

	return true
}

// popDue removes and returns every entry due at or before the given check.
func (h *wakeHeap) popDue(index map[int]*entry, due func(Wake) bool) []Wake {
	var result []Wake

	for {
		next := h.peek()
		if next == nil || !due(next.wake) {
			return result
		}

		heap.Pop(h)
		delete(index, next.wake.ID)
		result = append(result, next.wake)
	}
}

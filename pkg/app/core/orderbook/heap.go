package orderbook

// sideQueue is the view the matching loop needs of either side.
// Use container/heap to manipulate it (Init, Push, Pop).
type sideQueue interface {
	Len() int
	Less(i, j int) bool
	Swap(i, j int)
	Push(x any)
	Pop() any
	peek() *Order
	at(i int) *Order
}

// bidQueue implements heap.Interface for bids (highest price on top, then lowest id).
// It only ever holds buy orders, so its comparator never sees an ask.
type bidQueue []*Order

func (q bidQueue) Len() int           { return len(q) }
func (q bidQueue) Less(i, j int) bool { return bidBefore(q[i], q[j]) }
func (q bidQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *bidQueue) Push(x any) {
	*q = append(*q, x.(*Order))
}

func (q *bidQueue) Pop() any {
	old := *q
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return o
}

// peek returns the top element without removing it (nil when empty).
// The top may be a tombstone.
func (q *bidQueue) peek() *Order {
	if len(*q) == 0 {
		return nil
	}
	return (*q)[0]
}

func (q *bidQueue) at(i int) *Order { return (*q)[i] }

// askQueue implements heap.Interface for asks (lowest price on top, then lowest id).
type askQueue []*Order

func (q askQueue) Len() int           { return len(q) }
func (q askQueue) Less(i, j int) bool { return askBefore(q[i], q[j]) }
func (q askQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *askQueue) Push(x any) {
	*q = append(*q, x.(*Order))
}

func (q *askQueue) Pop() any {
	old := *q
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return o
}

func (q *askQueue) peek() *Order {
	if len(*q) == 0 {
		return nil
	}
	return (*q)[0]
}

func (q *askQueue) at(i int) *Order { return (*q)[i] }

package transport

// WorkerLink is the coordinator's handle to one worker's mailbox pair.
// ToWorker carries Assign/Slice/Sentinel/RepeatWithCutoff/JoinList
// messages; FromWorker carries Done/FinalCount/MergeSet replies. Both are
// unbuffered by default — an unbuffered channel already gives ordered,
// reliable, blocking delivery per spec.md §5's "workers block on
// assignment receipt" suspension points, so no extra synchronization is
// needed beyond the channel send/receive itself.
type WorkerLink struct {
	ToWorker   chan any
	FromWorker chan any
}

// NewWorkerLink creates a worker link with the given mailbox capacity.
// Capacity 0 gives the synchronous, maximally-ordered behavior; a small
// positive capacity lets the coordinator pipeline the next assignment's
// Slice messages without waiting on the worker to drain its inbox, which
// is a throughput optimization only.
func NewWorkerLink(capacity int) *WorkerLink {
	return &WorkerLink{
		ToWorker:   make(chan any, capacity),
		FromWorker: make(chan any, capacity),
	}
}

// Close closes both directions of the link. Callers must ensure no
// in-flight sends race the close.
func (l *WorkerLink) Close() {
	close(l.ToWorker)
	close(l.FromWorker)
}

// Fleet is the full set of worker links the coordinator drives, indexed
// by worker ordinal starting at 1 (ordinal 0 is reserved, matching the
// local-id encoding in pkg/model.NewLocalClusterID where worker 0 would
// mint unassigned-looking ids).
type Fleet struct {
	links map[int]*WorkerLink
}

// NewFleet creates a fleet of workerCount links, ordinals 1..workerCount.
func NewFleet(workerCount int, capacity int) *Fleet {
	f := &Fleet{links: make(map[int]*WorkerLink, workerCount)}
	for w := 1; w <= workerCount; w++ {
		f.links[w] = NewWorkerLink(capacity)
	}
	return f
}

// Link returns the link for a worker ordinal.
func (f *Fleet) Link(worker int) *WorkerLink {
	return f.links[worker]
}

// Count returns the number of workers in the fleet.
func (f *Fleet) Count() int {
	return len(f.links)
}

// CloseAll closes every worker's link.
func (f *Fleet) CloseAll() {
	for _, l := range f.links {
		l.Close()
	}
}

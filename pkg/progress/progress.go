// Package progress implements per-job progress broadcasting: a process-wide
// registry of jobs, each with its own set of subscribers. Publishers and
// subscribers may run on any goroutine.
//
// Every subscriber owns an explicit event queue drained by a dedicated
// goroutine, so a slow consumer never blocks publishers and cleanup is
// guaranteed on unsubscribe and on job termination.
package progress

import "sync"

// Kind enumerates progress event kinds.
type Kind string

const (
	KindInit     Kind = "init"
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Status is the lifecycle state of a job. Transitions are one-directional:
// Pending -> Running -> Completed or Failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is one immutable progress notification.
type Event struct {
	Kind     Kind   `json:"kind"`
	Current  int    `json:"current"`
	Total    int    `json:"total"`
	FileName string `json:"fileName,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Hub is the process-wide job registry. Jobs are created on first reference
// and forgotten once terminal; no state survives the process.
type Hub struct {
	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	current int
	total   int
	status  Status
	subs    map[*subscriber]struct{}
}

// NewHub creates an empty registry.
func NewHub() *Hub {
	return &Hub{jobs: make(map[string]*job)}
}

func (h *Hub) get(jobID string) *job {
	j, ok := h.jobs[jobID]
	if !ok {
		j = &job{status: StatusPending, subs: make(map[*subscriber]struct{})}
		h.jobs[jobID] = j
	}
	return j
}

// Open idempotently creates the job and returns its current snapshot.
func (h *Hub) Open(jobID string) (current, total int, status Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j := h.get(jobID)
	return j.current, j.total, j.status
}

// Subscribe registers a new sink for the job and immediately replays the
// current snapshot as an init event. The returned channel is closed when the
// job terminates or the unsubscribe function is called.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	h.mu.Lock()
	j := h.get(jobID)
	s := newSubscriber()
	j.subs[s] = struct{}{}
	s.enqueue(Event{Kind: KindInit, Current: j.current, Total: j.total})
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(j.subs, s)
		// The registry slot may have been reused by a fresh job under the
		// same id; only remove it if it still holds this job.
		if cur, ok := h.jobs[jobID]; ok && cur == j && terminal(j.status) && len(j.subs) == 0 {
			delete(h.jobs, jobID)
		}
		h.mu.Unlock()
		s.cancel()
	}
	return s.ch, unsubscribe
}

// Start marks the job running with a fresh counter and broadcasts init.
func (h *Hub) Start(jobID string, total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j := h.get(jobID)
	j.current = 0
	j.total = total
	j.status = StatusRunning
	j.broadcast(Event{Kind: KindInit, Current: 0, Total: total})
}

// Report updates the job counters and broadcasts a progress event. The
// current counter never moves backwards.
func (h *Hub) Report(jobID string, current, total int, fileName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j := h.get(jobID)
	if current > j.current {
		j.current = current
	}
	j.total = total
	j.broadcast(Event{Kind: KindProgress, Current: j.current, Total: total, FileName: fileName})
}

// Complete marks the job completed, broadcasts the terminal event, closes
// every sink and forgets the job.
func (h *Hub) Complete(jobID string) {
	h.terminate(jobID, StatusCompleted, Event{Kind: KindComplete})
}

// Fail marks the job failed, broadcasts the terminal error event, closes
// every sink and forgets the job.
func (h *Hub) Fail(jobID string, message string) {
	h.terminate(jobID, StatusFailed, Event{Kind: KindError, Message: message})
}

func (h *Hub) terminate(jobID string, status Status, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	j, ok := h.jobs[jobID]
	if !ok || terminal(j.status) {
		return
	}
	j.status = status
	ev.Current = j.current
	ev.Total = j.total
	j.broadcast(ev)
	for s := range j.subs {
		s.finish()
	}
	delete(h.jobs, jobID)
}

// broadcast enqueues ev for every subscriber. Caller holds the hub lock, so
// each subscriber sees events in generation order.
func (j *job) broadcast(ev Event) {
	for s := range j.subs {
		s.enqueue(ev)
	}
}

func terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// subscriber pumps queued events into its channel from a dedicated
// goroutine. finish lets the queue drain then closes the channel; cancel
// stops delivery immediately.
type subscriber struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Event
	finishing bool
	cancelled bool

	ch   chan Event
	done chan struct{}
}

func newSubscriber() *subscriber {
	s := &subscriber{
		ch:   make(chan Event),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.finishing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.done:
			close(s.ch)
			return
		}
	}
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if !s.finishing {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// finish stops accepting events and closes the channel once the queue has
// drained.
func (s *subscriber) finish() {
	s.mu.Lock()
	s.finishing = true
	s.cond.Signal()
	s.mu.Unlock()
}

// cancel stops delivery immediately, even mid-send.
func (s *subscriber) cancel() {
	s.mu.Lock()
	s.finishing = true
	if !s.cancelled {
		s.cancelled = true
		close(s.done)
	}
	s.cond.Signal()
	s.mu.Unlock()
}

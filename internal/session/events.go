package session

import (
	"sync"

	"mediafetch/internal/entity"
	"mediafetch/internal/observability"
)

// eventQueue hands events from session jobs to a single consumer.
// push never blocks; once limit events are pending further throttleable progress events are dropped.
type eventQueue struct {
	metrics *observability.Metrics
	limit   int

	mu      sync.Mutex
	pending []entity.Event

	notify chan struct{}
	out    chan entity.Event
	done   chan struct{}
	exited chan struct{}
}

func newEventQueue(limit int, metrics *observability.Metrics) *eventQueue {
	q := &eventQueue{
		metrics: metrics,
		limit:   max(limit, 1),
		notify:  make(chan struct{}, 1),
		out:     make(chan entity.Event),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}

	go q.pump()

	return q
}

// push enqueues e. Droppable progress events are discarded when the consumer is behind.
func (q *eventQueue) push(e entity.Event, droppable bool) bool {
	q.mu.Lock()

	if droppable && len(q.pending) >= q.limit {
		q.mu.Unlock()
		q.metrics.RecordEventDropped()

		return false
	}

	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return true
}

func (q *eventQueue) pop() (entity.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return entity.Event{}, false
	}

	e := q.pending[0]
	q.pending[0] = entity.Event{}
	q.pending = q.pending[1:]

	return e, true
}

func (q *eventQueue) pump() {
	defer close(q.exited)
	defer close(q.out)

	for {
		e, ok := q.pop()
		if !ok {
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}

		select {
		case q.out <- e:
		case <-q.done:
			return
		}
	}
}

// close stops delivery. Events still pending are discarded.
func (q *eventQueue) close() {
	close(q.done)
	<-q.exited
}

// Package queue implements the per-descriptor outbound queue engine
// (spec.md §4.2): a FIFO of pending bytes with nested "splitter"
// sub-queues fed by streamed file descriptors, so a RETR body can be
// interleaved into a client's outbound stream without buffering it
// whole. The original's C union of node variants is modeled here as a
// tagged struct (spec.md §9's "Queue nesting" design note) walking a
// container/list doubly linked list rather than a raw union-with-tag.
package queue

import (
	"container/list"
	"sync"
)

// Result is returned by Dequeue to tell the caller (the reactor) what
// happened to the connection as a result of one write attempt.
type Result int

const (
	// Pending means the write step made whatever progress it could; the
	// connection stays open and the caller should re-poll for
	// writability as needed.
	Pending Result = iota
	// CloseConnection means an Esc marker was reached: close gracefully.
	CloseConnection
	// ConnectionError means the underlying write returned an error.
	ConnectionError
)

type nodeKind int

const (
	kindRaw nodeKind = iota
	kindSplitter
	kindEsc
)

type rawNode struct {
	data   []byte
	offset int
}

// splitterNode is a queue entry whose bytes are produced lazily by a
// reactor-registered file source (spec.md §3 "Splitter").
type splitterNode struct {
	sourceFD int
	sub      *list.List // of *rawNode
	drained  bool
	drainErr error
	onDrain  func(error)
	notified bool
}

type node struct {
	kind     nodeKind
	raw      *rawNode
	splitter *splitterNode
}

// Queue is one client descriptor's outbound queue: a top-level FIFO of
// Raw, Splitter, and Esc nodes (spec.md §3 "Outbound queue").
type Queue struct {
	mu       sync.Mutex
	nodes    *list.List // of *node
	bySource map[int]*splitterNode
	frozen   bool
}

// New creates an empty Queue, as happens on accept (spec.md §3
// "Lifecycles: Queue").
func New() *Queue {
	return &Queue{
		nodes:    list.New(),
		bySource: make(map[int]*splitterNode),
	}
}

// Enqueue copies data into a new Raw node appended to the queue. It
// returns wasEmpty, true if the queue had nothing pending before this
// call — the signal the caller uses to start watching the descriptor for
// writability (spec.md §4.2 "If the queue was previously empty, the
// reactor is told to watch fd for writability"). Enqueue on a frozen
// (post-Esc) queue is a no-op, per the "frozen" invariant in spec.md §3.
func (q *Queue) Enqueue(data []byte) (wasEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return false
	}

	wasEmpty = q.nodes.Len() == 0
	owned := make([]byte, len(data))
	copy(owned, data)
	q.nodes.PushBack(&node{kind: kindRaw, raw: &rawNode{data: owned}})
	return wasEmpty
}

// AttachFile appends a Splitter node fed by sourceFD and registers it so
// FeedSplitterSource/MarkSplitterDrained can find it by descriptor. It
// returns wasEmpty the same way Enqueue does. onDrain is invoked exactly
// once, by MarkSplitterDrained, once the source is known to have
// finished (EOF or error) — even if the client disconnected first
// (spec.md §4.2 "the read-complete callback is still invoked exactly
// once").
func (q *Queue) AttachFile(sourceFD int, onDrain func(error)) (wasEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.frozen {
		return false
	}

	wasEmpty = q.nodes.Len() == 0
	sp := &splitterNode{sourceFD: sourceFD, sub: list.New(), onDrain: onDrain}
	q.nodes.PushBack(&node{kind: kindSplitter, splitter: sp})
	q.bySource[sourceFD] = sp
	return wasEmpty
}

// FeedSplitterSource appends bytes read from sourceFD into the matching
// splitter's sub-queue. It reports ok=false if no splitter is currently
// registered for sourceFD (the client may have disconnected and the
// splitter already been torn down).
func (q *Queue) FeedSplitterSource(sourceFD int, data []byte) (ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sp, found := q.bySource[sourceFD]
	if !found {
		return false
	}

	owned := make([]byte, len(data))
	copy(owned, data)
	sp.sub.PushBack(&rawNode{data: owned})
	return true
}

// MarkSplitterDrained records that sourceFD has reached EOF or hit err,
// unregisters it from lookup-by-source, and invokes the splitter's
// onDrain callback exactly once.
func (q *Queue) MarkSplitterDrained(sourceFD int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sp, found := q.bySource[sourceFD]
	if !found {
		return
	}
	delete(q.bySource, sourceFD)

	sp.drained = true
	sp.drainErr = err
	if !sp.notified {
		sp.notified = true
		if sp.onDrain != nil {
			sp.onDrain(err)
		}
	}
}

// PushGracefulClose disables further appends (the queue is "frozen") and
// appends a terminal Esc marker. It returns immediate=true if the queue
// was already empty, meaning the caller may close the descriptor right
// away instead of waiting on a drain (spec.md §4.2).
func (q *Queue) PushGracefulClose() (immediate bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	immediate = q.nodes.Len() == 0
	q.nodes.PushBack(&node{kind: kindEsc})
	q.frozen = true
	return immediate
}

// Empty reports whether the top-level queue currently has no nodes.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nodes.Len() == 0
}

// Dequeue performs one write step, called when the descriptor is
// writable (spec.md §4.2 "Dequeue semantics"). It walks past any
// splitters that have fully drained and emptied before attempting a
// single nonblocking write so pure bookkeeping nodes don't consume a
// write opportunity, but performs at most one actual write per call.
func (q *Queue) Dequeue(write func([]byte) (int, error)) Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		front := q.nodes.Front()
		if front == nil {
			return Pending
		}
		n := front.Value.(*node)

		switch n.kind {
		case kindRaw:
			res, done := writeRaw(n.raw, write)
			if done {
				q.nodes.Remove(front)
			}
			return res

		case kindSplitter:
			sp := n.splitter
			subFront := sp.sub.Front()
			if subFront == nil {
				if sp.drained {
					q.nodes.Remove(front)
					continue
				}
				return Pending
			}
			rn := subFront.Value.(*rawNode)
			res, done := writeRaw(rn, write)
			if done {
				sp.sub.Remove(subFront)
			}
			return res

		case kindEsc:
			return CloseConnection
		}
	}
}

// writeRaw issues a single nonblocking write of rn's unsent bytes,
// advancing its offset. done reports whether rn is now fully sent.
func writeRaw(rn *rawNode, write func([]byte) (int, error)) (res Result, done bool) {
	n, err := write(rn.data[rn.offset:])
	if err != nil {
		return ConnectionError, false
	}
	rn.offset += n
	if rn.offset >= len(rn.data) {
		return Pending, true
	}
	return Pending, false
}

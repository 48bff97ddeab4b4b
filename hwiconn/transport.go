package hwiconn

import (
	"context"

	"github.com/arloliu/go-homeworks/hwi"
	"github.com/arloliu/go-homeworks/internal/queue"
)

// Transport holds the two queues between the domain layer and a session.
//
// The request queue is ordered by priority and arrival; the response queue is FIFO.
// Neither queue inspects message contents and both are goroutine-safe.
type Transport struct {
	requests  *queue.PriorityQueue[hwi.RequestMessage]
	responses *queue.FIFOQueue[hwi.ResponseMessage]
}

// NewTransport creates a Transport with empty queues.
func NewTransport() *Transport {
	return &Transport{
		requests:  queue.NewPriorityQueue[hwi.RequestMessage](),
		responses: queue.NewFIFOQueue[hwi.ResponseMessage](64),
	}
}

// EnqueueRequest adds a request. Requests with a lower priority value are dequeued first,
// equal priorities in arrival order.
func (t *Transport) EnqueueRequest(req hwi.RequestMessage) {
	t.requests.Push(req, req.Priority)
}

// DequeueRequest removes the next request without blocking.
// It returns false when the queue is empty.
func (t *Transport) DequeueRequest() (hwi.RequestMessage, bool) {
	entry, ok := t.requests.TryPop()
	return entry.Value, ok
}

func (t *Transport) dequeueEntry() (queue.Entry[hwi.RequestMessage], bool) {
	return t.requests.TryPop()
}

// requeue puts back a request whose write failed, in its original position.
func (t *Transport) requeue(entry queue.Entry[hwi.RequestMessage]) {
	t.requests.Restore(entry)
}

// RemoveRequests removes every pending request matched by pred and returns how many were removed.
func (t *Transport) RemoveRequests(pred func(hwi.RequestMessage) bool) int {
	return t.requests.RemoveFunc(pred)
}

// PendingRequests returns the number of requests not written yet.
func (t *Transport) PendingRequests() int {
	return t.requests.Len()
}

// PushResponse appends a response.
func (t *Transport) PushResponse(msg hwi.ResponseMessage) {
	t.responses.Push(msg)
}

// PopResponse removes the oldest response, blocking until one is available or ctx is done.
func (t *Transport) PopResponse(ctx context.Context) (hwi.ResponseMessage, error) {
	return t.responses.Pop(ctx)
}

// PendingResponses returns the number of responses not dispatched yet.
func (t *Transport) PendingResponses() int {
	return t.responses.Len()
}

// DropStaleData removes every undispatched server response line and returns how many were removed.
// State updates stay queued.
func (t *Transport) DropStaleData() int {
	return t.responses.RemoveFunc(hwi.ResponseMessage.IsData)
}

// ResetResponses drops every undispatched response.
func (t *Transport) ResetResponses() {
	t.responses.Reset()
}

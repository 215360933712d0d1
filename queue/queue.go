// Package queue implements the cross-thread hand-off between the IPC
// goroutine and the render-thread frame hook: a request queue flowing one
// way and a response queue flowing back, guarded by a single lock.
package queue

import (
	"sync"
	"time"

	"github.com/nathoo/wowbridge/types"
)

// Pair is the two FIFO queues of the bridge. The IPC goroutine pushes
// requests and polls responses; the frame hook drains requests and pushes
// responses. One mutex guards both directions, and drains swap slices out
// so the render-thread critical section stays tiny.
type Pair struct {
	mu        sync.Mutex
	requests  []types.Request
	responses []string
}

// NewPair returns empty queues.
func NewPair() *Pair {
	return &Pair{}
}

// PushRequest appends one parsed command for the frame hook.
func (p *Pair) PushRequest(req types.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
}

// DrainRequests removes and returns every pending request in submission
// order. Returns nil when empty.
func (p *Pair) DrainRequests() []types.Request {
	p.mu.Lock()
	reqs := p.requests
	p.requests = nil
	p.mu.Unlock()
	return reqs
}

// PushResponses appends responses in order.
func (p *Pair) PushResponses(responses ...string) {
	if len(responses) == 0 {
		return
	}
	p.mu.Lock()
	p.responses = append(p.responses, responses...)
	p.mu.Unlock()
}

// PopResponse removes and returns the oldest response, if any.
func (p *Pair) PopResponse() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		return "", false
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, true
}

// PollResponse polls for a response up to attempts times, sleeping
// interval between checks. The first check happens immediately, so a
// response that is already queued costs no sleep.
func (p *Pair) PollResponse(interval time.Duration, attempts int) (string, bool) {
	for i := 0; i < attempts; i++ {
		if resp, ok := p.PopResponse(); ok {
			return resp, true
		}
		time.Sleep(interval)
	}
	return p.PopResponse()
}

// Pending reports the queue depths, for diagnostics and tests.
func (p *Pair) Pending() (requests, responses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests), len(p.responses)
}

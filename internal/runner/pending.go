package runner

import (
	"fmt"
	"sort"
	"sync"

	"dailycast/internal/services"
)

// PendingRequest records an unanswered quality question for one item.
// It lives in process memory only: a restart simply re-asks on the next
// attempt.
type PendingRequest struct {
	ItemID  int64
	Title   string
	Offered []int
	Chosen  int
}

type pendingRequests struct {
	mu       sync.Mutex
	requests map[int64]*PendingRequest
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{requests: make(map[int64]*PendingRequest)}
}

// create records a fresh question, replacing any stale one for the item.
func (p *pendingRequests) create(itemID int64, title string, offered []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests[itemID] = &PendingRequest{
		ItemID:  itemID,
		Title:   title,
		Offered: append([]int(nil), offered...),
	}
}

// answer stores the operator's pick after checking it was actually offered.
func (p *pendingRequests) answer(itemID int64, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.requests[itemID]
	if !ok {
		return fmt.Errorf("%w: no pending quality question for item %d", services.ErrNotFound, itemID)
	}
	for _, offered := range req.Offered {
		if offered == height {
			req.Chosen = height
			return nil
		}
	}
	return fmt.Errorf("%w: %d is not one of the offered heights %v", services.ErrValidation, height, req.Offered)
}

// take consumes the request for an item, answered or not.
func (p *pendingRequests) take(itemID int64) (PendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req, ok := p.requests[itemID]
	if !ok {
		return PendingRequest{}, false
	}
	delete(p.requests, itemID)
	return *req, true
}

// snapshot lists the open questions ordered by item id.
func (p *pendingRequests) snapshot() []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingRequest, 0, len(p.requests))
	for _, req := range p.requests {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

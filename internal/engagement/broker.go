package engagement

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Broker pairs a pending Show with the confirmation the Mini App (or the ad network
// reward callback) posts once the ad finishes. A confirmation that arrives before the
// matching Show is kept for Grace.
//
// Waiters are keyed by gate, so two gates sharing one ad placement never resolve
// each other. A confirmation that names only the placement goes to the oldest
// waiter on that placement.
type Broker struct {
	Grace time.Duration

	mu      sync.Mutex
	waiters map[int64][]*waiter
	early   map[string]earlyResult
	now     func() time.Time
}

type waiter struct {
	gate      string
	placement string
	ch        chan Result
}

type earlyResult struct {
	res Result
	at  time.Time
}

// Target names what a confirmation is for. Gate wins when set.
type Target struct {
	Gate      string
	Placement string
}

func NewBroker(grace time.Duration) *Broker {
	return &Broker{
		Grace:   grace,
		waiters: make(map[int64][]*waiter),
		early:   make(map[string]earlyResult),
		now:     time.Now,
	}
}

func gateKey(userID int64, gate string) string {
	return strconv.FormatInt(userID, 10) + "|g|" + gate
}

func placementKey(userID int64, placement string) string {
	return strconv.FormatInt(userID, 10) + "|p|" + placement
}

// gateOf falls back to the placement for requests that carry no gate
func gateOf(req Request) string {
	if req.Gate != "" {
		return req.Gate
	}
	return req.Placement
}

// Show blocks until a confirmation for the request's gate arrives or ctx ends
func (b *Broker) Show(ctx context.Context, req Request) (Result, error) {
	gate := gateOf(req)

	b.mu.Lock()
	if res, ok := b.takeEarly(gateKey(req.UserID, gate)); ok {
		b.mu.Unlock()
		return res, nil
	}
	if res, ok := b.takeEarly(placementKey(req.UserID, req.Placement)); ok {
		b.mu.Unlock()
		return res, nil
	}
	if prev := b.remove(req.UserID, func(w *waiter) bool { return w.gate == gate }); prev != nil {
		// a newer Show on the same gate replaces the old one; the old waiter resolves as declined
		prev.ch <- Result{}
	}
	w := &waiter{gate: gate, placement: req.Placement, ch: make(chan Result, 1)}
	b.waiters[req.UserID] = append(b.waiters[req.UserID], w)
	b.mu.Unlock()

	select {
	case res := <-w.ch:
		return res, nil
	case <-ctx.Done():
		b.mu.Lock()
		b.remove(req.UserID, func(x *waiter) bool { return x == w })
		b.mu.Unlock()
		return Result{}, ctx.Err()
	}
}

// Confirm resolves the pending Show the target points at. It reports whether a waiter was resolved;
// otherwise the result is kept for Grace.
func (b *Broker) Confirm(userID int64, t Target, res Result) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var w *waiter
	if t.Gate != "" {
		w = b.remove(userID, func(x *waiter) bool { return x.gate == t.Gate })
	} else {
		w = b.remove(userID, func(x *waiter) bool { return x.placement == t.Placement })
	}
	if w != nil {
		w.ch <- res
		return true
	}

	key := placementKey(userID, t.Placement)
	if t.Gate != "" {
		key = gateKey(userID, t.Gate)
	}
	b.early[key] = earlyResult{res: res, at: b.now()}
	return false
}

// Pending reports whether a Show is waiting on the user's placement
func (b *Broker) Pending(userID int64, placement string) bool {
	return b.pending(userID, func(w *waiter) bool { return w.placement == placement })
}

// PendingGate reports whether a Show is waiting on the user's gate
func (b *Broker) PendingGate(userID int64, gate string) bool {
	return b.pending(userID, func(w *waiter) bool { return w.gate == gate })
}

func (b *Broker) pending(userID int64, match func(*waiter) bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.waiters[userID] {
		if match(w) {
			return true
		}
	}
	return false
}

// Sweep drops early confirmations older than Grace
func (b *Broker) Sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-b.Grace)
	for k, e := range b.early {
		if e.at.Before(cutoff) {
			delete(b.early, k)
		}
	}
}

// takeEarly consumes a stored confirmation still within Grace; b.mu must be held
func (b *Broker) takeEarly(key string) (Result, bool) {
	e, ok := b.early[key]
	if !ok {
		return Result{}, false
	}
	delete(b.early, key)
	if b.now().Sub(e.at) > b.Grace {
		return Result{}, false
	}
	return e.res, true
}

// remove detaches the oldest waiter of userID matching fn; b.mu must be held
func (b *Broker) remove(userID int64, fn func(*waiter) bool) *waiter {
	list := b.waiters[userID]
	for i, w := range list {
		if !fn(w) {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(b.waiters, userID)
		} else {
			b.waiters[userID] = list
		}
		return w
	}
	return nil
}

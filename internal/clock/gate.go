// Package clock schedules betting window closures. The gate keeps every
// tracked match in a min-heap keyed by its close instant and runs a single
// scheduler goroutine that sleeps until the earliest deadline, so a large
// fixture list costs one timer, not one goroutine per match.
package clock

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CloseFunc is invoked once per match when its window closes. The callback
// owns the durable closure claim; the gate only decides when to fire.
type CloseFunc func(ctx context.Context, matchID uuid.UUID, closesAt time.Time)

type entry struct {
	matchID  uuid.UUID
	closesAt time.Time
	index    int
}

// closureHeap orders entries by close instant, earliest on top.
type closureHeap []*entry

func (h closureHeap) Len() int            { return len(h) }
func (h closureHeap) Less(i, j int) bool  { return h[i].closesAt.Before(h[j].closesAt) }
func (h closureHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *closureHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }

func (h *closureHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Gate is the in-process deadline scheduler.
type Gate struct {
	mu      sync.Mutex
	heap    closureHeap
	tracked map[uuid.UUID]*entry

	onClose CloseFunc
	logger  *slog.Logger
	now     func() time.Time
	wake    chan struct{}
}

// Option customizes gate construction.
type Option func(*Gate)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate that calls onClose when a tracked window closes.
func NewGate(onClose CloseFunc, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		tracked: make(map[uuid.UUID]*entry),
		onClose: onClose,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Upsert tracks a match's close instant, replacing any earlier schedule.
// Moving a deadline re-sorts the heap in place and reawakens the scheduler
// in case the new top is earlier than the one it is sleeping on.
func (g *Gate) Upsert(matchID uuid.UUID, closesAt time.Time) {
	g.mu.Lock()
	if e, ok := g.tracked[matchID]; ok {
		e.closesAt = closesAt
		heap.Fix(&g.heap, e.index)
	} else {
		e := &entry{matchID: matchID, closesAt: closesAt}
		g.tracked[matchID] = e
		heap.Push(&g.heap, e)
	}
	g.mu.Unlock()
	g.signal()
}

// Remove stops tracking a match (postponement, cancellation).
func (g *Gate) Remove(matchID uuid.UUID) {
	g.mu.Lock()
	if e, ok := g.tracked[matchID]; ok {
		delete(g.tracked, matchID)
		heap.Remove(&g.heap, e.index)
	}
	g.mu.Unlock()
	g.signal()
}

// IsOpen reports whether the match's window is open at the given instant.
// known is false for untracked matches; callers fall back to the database
// predicate, which is authoritative either way.
func (g *Gate) IsOpen(matchID uuid.UUID, at time.Time) (open, known bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.tracked[matchID]
	if !ok {
		return false, false
	}
	return at.Before(e.closesAt), true
}

// Tracked returns the number of matches currently scheduled.
func (g *Gate) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tracked)
}

// Run drives the scheduler until the context is cancelled. It must be called
// exactly once.
func (g *Gate) Run(ctx context.Context) error {
	g.logger.Info("deadline gate started")
	for {
		next, ok := g.peek()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.wake:
			}
			continue
		}

		delay := next.Sub(g.now())
		if delay <= 0 {
			g.fireDue(ctx)
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-g.wake:
			timer.Stop()
		case <-timer.C:
			g.fireDue(ctx)
		}
	}
}

func (g *Gate) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Gate) peek() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.heap) == 0 {
		return time.Time{}, false
	}
	return g.heap[0].closesAt, true
}

// fireDue pops every entry whose deadline has passed and invokes the close
// callback outside the lock.
func (g *Gate) fireDue(ctx context.Context) {
	now := g.now()

	g.mu.Lock()
	var due []*entry
	for len(g.heap) > 0 && !g.heap[0].closesAt.After(now) {
		e := heap.Pop(&g.heap).(*entry)
		delete(g.tracked, e.matchID)
		due = append(due, e)
	}
	g.mu.Unlock()

	for _, e := range due {
		g.logger.Debug("betting window closed",
			slog.String("match_id", e.matchID.String()),
			slog.Time("closes_at", e.closesAt))
		g.onClose(ctx, e.matchID, e.closesAt)
	}
}

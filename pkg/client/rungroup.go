package client

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// RunGroupConcurrencyLimit is the default limit of requests in flight in one RunGroup.
const RunGroupConcurrencyLimit = 32

// SendFunc is a Sendable defined by a function, for example a webservice call.
type SendFunc func(ctx context.Context, sender Sender) error

func (fn SendFunc) SendOrErr(ctx context.Context, sender Sender) error {
	return fn(ctx, sender)
}

// RunGroup collects requests and sends them together, at most limit of them at once.
//
// Nothing is sent before RunAndWait. A request callback may Add more requests while the group runs.
// The first failure cancels the context of the group, RunAndWait returns that failure.
type RunGroup struct {
	ctx     context.Context
	sender  Sender
	group   *errgroup.Group
	slots   *semaphore.Weighted
	started chan struct{}
}

// NewRunGroup creates a RunGroup with the default limit.
func NewRunGroup(ctx context.Context, sender Sender) *RunGroup {
	return RunGroupWithLimit(ctx, sender, RunGroupConcurrencyLimit)
}

// RunGroupWithLimit creates a RunGroup sending at most limit requests at once.
func RunGroupWithLimit(ctx context.Context, sender Sender, limit int64) *RunGroup {
	g := &RunGroup{sender: sender, slots: semaphore.NewWeighted(limit), started: make(chan struct{})}
	g.group, g.ctx = errgroup.WithContext(ctx)
	return g
}

// Add schedules the request.
func (g *RunGroup) Add(request Sendable) {
	g.group.Go(func() error {
		if err := g.waitForSlot(); err != nil {
			return err
		}
		defer g.slots.Release(1)
		return request.SendOrErr(g.ctx, g.sender)
	})
}

// RunAndWait sends all scheduled requests and blocks until they, and the requests added meanwhile, are done.
func (g *RunGroup) RunAndWait() error {
	close(g.started)
	return g.group.Wait()
}

// waitForSlot blocks until the group is started and fewer than limit requests are in flight.
func (g *RunGroup) waitForSlot() error {
	select {
	case <-g.started:
	case <-g.ctx.Done():
		return g.ctx.Err()
	}
	return g.slots.Acquire(g.ctx, 1)
}

package tracker

import (
	"context"
	"errors"
	"fmt"
)

// EventKind identifies a queued coordinator command.
type EventKind int

const (
	EventIntervalAssigned EventKind = iota + 1
	EventLiveActivation
	EventStart
	EventStop
	EventDisableLiveView
)

func (k EventKind) String() string {
	switch k {
	case EventIntervalAssigned:
		return "interval-assigned"
	case EventLiveActivation:
		return "live-activation"
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventDisableLiveView:
		return "disable-live-view"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a command delivered to the coordinator from the push channel or
// the local UI. Events are applied one at a time, in arrival order, by Run.
type Event struct {
	Kind            EventKind
	IntervalSeconds int  // EventIntervalAssigned
	Active          bool // EventLiveActivation
}

// ErrQueueFull is returned by Enqueue when the event buffer is exhausted.
var ErrQueueFull = errors.New("event queue full")

// Enqueue hands ev to Run without blocking.
func (c *Coordinator) Enqueue(ev Event) error {
	select {
	case c.events <- ev:
		return nil
	default:
		log.Warningf("event %s dropped: %v", ev.Kind, ErrQueueFull)
		return ErrQueueFull
	}
}

// Run applies queued events until ctx is cancelled, then shuts the session
// down. ctx also bounds the lifetime of loops started by those events.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.Shutdown(context.WithoutCancel(ctx))
			return nil
		case ev := <-c.events:
			if err := c.Apply(ctx, ev); err != nil {
				log.Debugf("event %s: %v", ev.Kind, err)
			}
		}
	}
}

// Apply performs one event synchronously.
func (c *Coordinator) Apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventIntervalAssigned:
		return c.OnIntervalAssigned(ctx, ev.IntervalSeconds)
	case EventLiveActivation:
		return c.OnLiveActivationChanged(ctx, ev.Active)
	case EventStart:
		return c.Start(ctx)
	case EventStop:
		c.Stop(ctx)
		return nil
	case EventDisableLiveView:
		c.ManualDisableLiveView(ctx)
		return nil
	}
	return fmt.Errorf("unknown event %s", ev.Kind)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/clock"
	"github.com/bureau-foundation/inspect/transport"
)

// unsendableWarnInterval spaces warnings about dropped unsendable
// events. With log forwarding on, every warning is itself queued for
// the console.
const unsendableWarnInterval = time.Minute

// dropReporter logs events the drain loop gives up on: the first at
// warning level, later ones at debug level until the interval has
// passed. Only the outbound goroutine uses it.
type dropReporter struct {
	clock      clock.Clock
	logger     *slog.Logger
	lastWarn   time.Time
	suppressed int
}

func (r *dropReporter) report(e event.Event, err error) {
	now := r.clock.Now()
	if !r.lastWarn.IsZero() && now.Sub(r.lastWarn) < unsendableWarnInterval {
		r.suppressed++
		r.logger.Debug("dropping unsendable event", "event_id", e.ID, "vendor", e.Vendor, "error", err)
		return
	}
	r.logger.Warn("dropping unsendable event",
		"event_id", e.ID,
		"vendor", e.Vendor,
		"error", err,
		"suppressed", r.suppressed,
	)
	r.lastWarn = now
	r.suppressed = 0
}

// runOutbound drains the outbound queue onto the transport whenever it
// is signalled.
func (c *Controller) runOutbound() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.outbound.Notify():
		}
		c.drainOutbound()
	}
}

// drainOutbound sends queued events until the queue is empty or
// forwarding stops. An event stays queued if the channel is down, so
// it goes out after the next startForwarding.
func (c *Controller) drainOutbound() {
	for {
		c.mutex.Lock()
		forwarding := c.state.forwardingEnabled
		c.mutex.Unlock()
		if !forwarding {
			return
		}

		next, ok := c.outbound.Peek()
		if !ok {
			return
		}
		if err := c.transport.Send(next); err != nil {
			if errors.Is(err, transport.ErrNotConnected) || c.transport.State() != transport.StateOpen {
				return
			}
			c.drops.report(next, err)
		}
		c.outbound.Dequeue()
	}
}

// runInbound hands inbound events to plugins.
func (c *Controller) runInbound() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.inbound.Notify():
		}
		for {
			next, ok := c.inbound.Dequeue()
			if !ok {
				break
			}
			c.handleInbound(next)
		}
	}
}

func (c *Controller) handleInbound(e event.Event) {
	if e.IsStartForwarding() {
		c.mutex.Lock()
		c.state.forwardingEnabled = true
		c.mutex.Unlock()
		c.logger.Info("console enabled forwarding", "queued", c.outbound.Len())
		c.outbound.Signal()
	}
	c.registry.Dispatch(e)
}

// runUI executes presenter calls in order.
func (c *Controller) runUI() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case call := <-c.ui:
			call()
		}
	}
}

// postUI schedules call on the UI goroutine. Before Start nothing
// drains the backlog, so a call that does not fit is dropped; after
// Start it waits for room. It gives up once the controller is closed.
func (c *Controller) postUI(call func()) {
	select {
	case c.ui <- call:
		return
	case <-c.ctx.Done():
		return
	default:
	}

	c.mutex.Lock()
	started := c.started
	c.mutex.Unlock()
	if !started {
		c.logger.Debug("presenter backlog full before start, dropping update")
		return
	}
	select {
	case c.ui <- call:
	case <-c.ctx.Done():
	}
}

// transportDelegate receives transport callbacks on behalf of the
// controller, keeping those methods off the controller's public API.
type transportDelegate struct {
	controller *Controller
}

func (d *transportDelegate) Connected() {
	c := d.controller
	c.mutex.Lock()
	c.state.awaitingPIN = false
	resync := c.state.bootEventsCleared
	c.state.bootEventsCleared = false
	c.mutex.Unlock()

	c.sendClientInfo()
	if resync {
		c.resync()
	}
	c.registry.NotifyConnected()
}

func (d *transportDelegate) Disconnected(code int, reason string, wasClean bool) {
	c := d.controller
	c.mutex.Lock()
	c.state.forwardingEnabled = false
	awaitingPIN := c.state.awaitingPIN
	c.state.awaitingPIN = false
	c.mutex.Unlock()

	c.logger.Info("session disconnected", "code", code, "reason", reason, "clean", wasClean)
	c.registry.NotifyDisconnected(code)
	if connectionError := transport.ClassifyClose(code, awaitingPIN); connectionError != nil {
		c.handleConnectionError(connectionError)
	}
}

func (d *transportDelegate) Error(err error) {
	d.controller.logger.Debug("transport error", "error", err)
}

func (d *transportDelegate) MessageReceived(e event.Event) {
	d.controller.inbound.Enqueue(e)
}

func (d *transportDelegate) StateChanged(state transport.State) {
	c := d.controller
	c.postUI(func() { c.presenter.StatusChanged(state) })
}

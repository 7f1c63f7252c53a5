package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"logistics-backend/internal/core"

	"go.uber.org/zap"
)

// Sender delivers one notification over its channel.
type Sender interface {
	Send(ctx context.Context, n *core.Notification) error
}

// LogSender records deliveries in the log. EMAIL and PUSH transports are not wired.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, n *core.Notification) error {
	s.Log.Info("notification delivered",
		zap.Int64("notification_id", n.ID),
		zap.String("channel", string(n.Channel)),
		zap.String("recipient", n.RecipientEmail),
		zap.String("title", n.Title),
	)
	return nil
}

const popTimeout = 5 * time.Second

// Dispatcher stores notifications and delivers them. With a queue, delivery happens
// in Run on a worker goroutine; without one, Notify delivers inline.
type Dispatcher struct {
	store  core.NotificationService
	queue  Queue
	sender Sender
	log    *zap.Logger
}

// NewDispatcher wires a dispatcher. queue may be nil.
func NewDispatcher(store core.NotificationService, queue Queue, sender Sender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if sender == nil {
		sender = LogSender{Log: log}
	}
	return &Dispatcher{store: store, queue: queue, sender: sender, log: log}
}

// Notify implements core.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, input core.NotificationInput) error {
	n, err := d.store.Create(ctx, input)
	if err != nil {
		return err
	}
	if d.queue == nil {
		return d.deliver(ctx, n.ID)
	}
	if err := d.queue.Push(ctx, n.ID); err != nil {
		// The row stays PENDING; fall back to inline delivery.
		d.log.Warn("notification queue unavailable, delivering inline", zap.Int64("notification_id", n.ID), zap.Error(err))
		return d.deliver(ctx, n.ID)
	}
	return nil
}

// Run pops queued ids until ctx is cancelled. It returns nil on cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.queue == nil {
		<-ctx.Done()
		return nil
	}
	d.log.Info("notification dispatcher started")
	for {
		if ctx.Err() != nil {
			d.log.Info("notification dispatcher stopped")
			return nil
		}
		id, ok, err := d.queue.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			d.log.Warn("notification dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		if err := d.deliver(ctx, id); err != nil {
			d.log.Warn("notification delivery failed", zap.Int64("notification_id", id), zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int64) error {
	n, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Status != core.NotificationPending {
		return nil
	}

	sendErr := d.sender.Send(ctx, n)
	if _, err := d.store.MarkDelivered(ctx, id, sendErr == nil); err != nil {
		return err
	}
	if sendErr != nil {
		return fmt.Errorf("send notification %d via %s: %w", id, n.Channel, sendErr)
	}
	return nil
}

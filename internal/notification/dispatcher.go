package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher is the asynchronous Hook. Notify enqueues without blocking; worker
// goroutines resolve recipients and hand the message to every sender.
type Dispatcher struct {
	queue    chan Event
	resolver RecipientResolver
	senders  []Sender
	workers  int
	log      *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(resolver RecipientResolver, queueSize, workers int, log *zap.Logger, senders ...Sender) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:    make(chan Event, queueSize),
		resolver: resolver,
		senders:  senders,
		workers:  workers,
		log:      log.Named("notification"),
	}
}

// Start launches the workers
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	names := make([]string, 0, len(d.senders))
	for _, s := range d.senders {
		names = append(names, s.Name())
	}
	d.log.Info("notification dispatcher started", zap.Int("workers", d.workers), zap.Strings("senders", names))
}

// Notify never blocks. Events arriving while the queue is full or after Close are dropped.
func (d *Dispatcher) Notify(_ context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping event", zap.String("type", string(event.Type)), zap.String("bill_id", event.BillID.String()))
		return
	}
	select {
	case d.queue <- event:
	default:
		d.log.Warn("notification queue full, dropping event", zap.String("type", string(event.Type)), zap.String("bill_id", event.BillID.String()))
	}
}

// Close stops intake and waits for queued events to drain or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification drain interrupted: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	log := d.log.With(zap.String("type", string(event.Type)), zap.String("bill_id", event.BillID.String()))

	msg := Message{Event: event}
	if d.resolver != nil {
		recipients, err := d.resolver.Resolve(ctx, event.SocietyID)
		if err != nil {
			log.Warn("failed to resolve recipients", zap.Error(err))
		} else {
			msg.SocietyName = recipients.SocietyName
			msg.Recipients = recipients.Emails
		}
	}
	if direct := event.directRecipients(); direct != nil {
		msg.Recipients = direct
	}

	for _, sender := range d.senders {
		d.send(ctx, log, sender, msg)
	}
}

func (d *Dispatcher) send(ctx context.Context, log *zap.Logger, sender Sender, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("notification sender panicked", zap.String("sender", sender.Name()), zap.Any("panic", r))
		}
	}()
	if err := sender.Send(ctx, msg); err != nil {
		log.Warn("notification delivery failed", zap.String("sender", sender.Name()), zap.Error(err))
		return
	}
	log.Debug("notification delivered", zap.String("sender", sender.Name()), zap.Int("recipients", len(msg.Recipients)))
}

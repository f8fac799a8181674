package notify

import (
	"context"
	"log/slog"
	"sync"

	"hireline/internal/domain"
)

type delivery struct {
	action Action
	jo     domain.JobOrder
}

// Dispatcher delivers notifications on background workers. Failures and
// overflow are logged; Dispatch never blocks and never fails.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	queue  chan delivery

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, queueSize, workers int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan delivery, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) Dispatch(action Action, jo domain.JobOrder) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after shutdown", slog.String("action", string(action)), slog.String("job_order_id", jo.ID))
		return
	}
	select {
	case d.queue <- delivery{action: action, jo: jo}:
	default:
		d.logger.Warn("notification queue full, dropping", slog.String("action", string(action)), slog.String("job_order_id", jo.ID))
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for item := range d.queue {
		d.deliver(item)
	}
}

func (d *Dispatcher) deliver(item delivery) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification sender panicked", slog.Any("panic", r), slog.String("job_order_id", item.jo.ID))
		}
	}()
	if err := d.sender.Send(context.Background(), item.action, item.jo); err != nil {
		d.logger.Warn("job order notification failed",
			slog.String("action", string(item.action)),
			slog.String("job_order_id", item.jo.ID),
			slog.String("error", err.Error()))
		return
	}
	d.logger.Debug("job order notification sent", slog.String("action", string(item.action)), slog.String("job_order_id", item.jo.ID))
}

// Close stops accepting work and waits for queued deliveries or ctx.
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
		return ctx.Err()
	}
}

package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eris-support/triage-service/internal/events"
	"github.com/eris-support/triage-service/internal/service"
)

type job struct {
	event   events.Event
	handler events.EventHandler
}

// Pool runs event handlers on a fixed set of goroutines so that slow
// deliveries never hold up the request that published the event.
type Pool struct {
	queue   chan job
	workers int
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool builds a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:   make(chan job, queueSize),
		workers: workers,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.queue {
		if err := j.handler(p.ctx, j.event); err != nil {
			p.logger.Warn("async event handler failed",
				zap.String("event", string(j.event.Type)),
				zap.String("ticket_id", j.event.TicketID),
				zap.Error(err))
		}
	}
}

// Wrap returns a handler that enqueues the event for handler. When the
// queue is full the event is dropped and logged.
func (p *Pool) Wrap(handler events.EventHandler) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.closed {
			return nil
		}
		select {
		case p.queue <- job{event: event, handler: handler}:
		default:
			p.logger.Warn("event queue full; dropping event",
				zap.String("event", string(event.Type)),
				zap.String("ticket_id", event.TicketID))
		}
		return nil
	}
}

// Stop drains the queue and waits for the workers, or gives up when ctx
// ends first.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	p.cancel()
}

// StartNotificationWorker registers notification handlers behind pool.
func StartNotificationWorker(notificationService *service.NotificationService, pool *Pool) {
	if notificationService == nil {
		return
	}
	var wrap func(events.EventHandler) events.EventHandler
	if pool != nil {
		wrap = pool.Wrap
	}
	notificationService.RegisterHandlers(wrap)
}

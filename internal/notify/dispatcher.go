package notify

import (
	"context"
	"log"
	"time"

	"github.com/tevino/abool/v2"
	"go.uber.org/ratelimit"
)

// Dispatcher defaults.
const (
	DefaultPerMinute    = 30
	DefaultBacklog      = 64
	DefaultSinkTimeout  = 10 * time.Second
	DefaultDrainTimeout = 5 * time.Second
)

// Dispatcher fans alerts out to every sink from a single background
// goroutine, throttled to a fixed rate. Enqueue never blocks; when the
// backlog is full the alert is dropped and logged.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Alert
	done    chan struct{}
	closed  *abool.AtomicBool
	limiter ratelimit.Limiter
	timeout time.Duration
	grace   time.Duration // bound on draining after Close
}

// NewDispatcher creates a dispatcher delivering at most perMinute alerts
// per minute. perMinute <= 0 disables throttling.
func NewDispatcher(perMinute int, sinks ...Sink) *Dispatcher {
	limiter := ratelimit.NewUnlimited()
	if perMinute > 0 {
		limiter = ratelimit.New(perMinute, ratelimit.Per(time.Minute))
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Alert, DefaultBacklog),
		done:    make(chan struct{}),
		closed:  abool.New(),
		limiter: limiter,
		timeout: DefaultSinkTimeout,
		grace:   DefaultDrainTimeout,
	}
}

// Enqueue schedules a for delivery. It reports false if the dispatcher is
// closed, has no sinks, or the backlog is full.
func (d *Dispatcher) Enqueue(a Alert) bool {
	if d.closed.IsSet() || len(d.sinks) == 0 {
		return false
	}
	select {
	case d.queue <- a:
		return true
	default:
		log.Printf("notify: backlog full, dropping alert for sensor %d", a.SensorID)
		return false
	}
}

// Run delivers alerts until ctx is cancelled or Close is called. Alerts
// still queued at Close are delivered unthrottled before Run returns;
// whatever is left after DefaultDrainTimeout is dropped and logged.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			d.drain(ctx)
			return
		case a := <-d.queue:
			d.deliver(ctx, a)
		}
	}
}

// Close stops accepting alerts. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d.closed.SetToIf(false, true) {
		close(d.done)
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, d.grace)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				log.Printf("notify: shutdown deadline reached, dropping %d alerts", n)
			}
			return
		case a := <-d.queue:
			d.send(ctx, a)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, a Alert) {
	d.limiter.Take()
	d.send(ctx, a)
}

func (d *Dispatcher) send(ctx context.Context, a Alert) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := s.Notify(sctx, a); err != nil {
			log.Printf("notify: sensor %d alert: %v", a.SensorID, err)
		}
		cancel()
	}
}

package analytics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// HitRecorder performs one hit write.
type HitRecorder interface {
	RecordHit(ctx context.Context, productID string) error
}

// HitError is a failed detached hit.
type HitError struct {
	ProductID string
	Err       error
}

func (e *HitError) Error() string {
	return fmt.Sprintf("analytics: detached hit for %s: %v", e.ProductID, e.Err)
}

func (e *HitError) Unwrap() error { return e.Err }

// Options sizes a Dispatcher.
type Options struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// Stats counts what happened to dispatched hits.
type Stats struct {
	Recorded int64
	Failed   int64
	Dropped  int64
}

// Dispatcher records hits in the background so readers never wait on them.
// Dispatch never blocks: when the queue is full or the dispatcher has stopped
// the hit is dropped. Failures go to an error channel drained by a logger and
// never reach the caller.
type Dispatcher struct {
	recorder HitRecorder
	opts     Options
	log      *logrus.Logger

	queue    chan string
	errs     chan *HitError
	done     chan struct{}
	finished chan struct{}

	// mu orders sends against Stop: once stopped is set no hit enters the queue.
	mu      sync.RWMutex
	stopped bool

	workers  sync.WaitGroup
	reporter sync.WaitGroup
	start    sync.Once
	stop     sync.Once

	recorded atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewDispatcher creates a Dispatcher that is not yet started. Non-positive options fall back to
// one worker, a queue of one and a five second write timeout.
func NewDispatcher(recorder HitRecorder, opts Options, logger *logrus.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Dispatcher{
		recorder: recorder,
		opts:     opts,
		log:      logger,
		queue:    make(chan string, opts.QueueSize),
		errs:     make(chan *HitError, opts.Workers),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start launches the workers and the error reporter.
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.stopped {
			return
		}
		d.reporter.Add(1)
		go d.report()
		for i := 0; i < d.opts.Workers; i++ {
			d.workers.Add(1)
			go d.work()
		}
		d.log.WithFields(logrus.Fields{"workers": d.opts.Workers, "queue_size": d.opts.QueueSize}).Info("Analytics dispatcher started")
	})
}

// Dispatch enqueues a hit for productID and reports whether it was accepted.
func (d *Dispatcher) Dispatch(productID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(productID, "dispatcher stopped")
		return false
	}
	select {
	case d.queue <- productID:
		return true
	default:
		d.drop(productID, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(productID, reason string) {
	d.dropped.Add(1)
	d.log.WithFields(logrus.Fields{"product_id": productID, "reason": reason}).Warn("Dropped detached hit")
}

func (d *Dispatcher) work() {
	defer d.workers.Done()
	for {
		select {
		case id := <-d.queue:
			d.record(id)
		case <-d.done:
			// Finish what was already accepted.
			for {
				select {
				case id := <-d.queue:
					d.record(id)
				default:
					return
				}
			}
		}
	}
}

// record runs one write detached from any request context.
func (d *Dispatcher) record(productID string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.WriteTimeout)
	defer cancel()

	if err := d.recorder.RecordHit(ctx, productID); err != nil {
		d.failed.Add(1)
		d.errs <- &HitError{ProductID: productID, Err: err}
		return
	}
	d.recorded.Add(1)
}

func (d *Dispatcher) report() {
	defer d.reporter.Done()
	for e := range d.errs {
		d.log.WithFields(logrus.Fields{"product_id": e.ProductID, "error": e.Err}).Warn("Detached hit recording failed")
	}
}

// Stop refuses new hits, lets the workers drain the queue and waits for them
// until ctx is done. Hits still queued once the workers are gone (the
// dispatcher was never started) are counted as dropped. It is safe to call
// more than once.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stop.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.done)
		d.mu.Unlock()
		go func() {
			d.workers.Wait()
			d.dropQueued()
			close(d.errs)
			d.reporter.Wait()
			close(d.finished)
		}()
	})

	select {
	case <-d.finished:
		d.log.WithFields(logrus.Fields{
			"recorded": d.recorded.Load(),
			"failed":   d.failed.Load(),
			"dropped":  d.dropped.Load(),
		}).Info("Analytics dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("analytics: dispatcher stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) dropQueued() {
	for {
		select {
		case id := <-d.queue:
			d.drop(id, "dispatcher stopped before recording")
		default:
			return
		}
	}
}

// Stats returns a snapshot of the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Recorded: d.recorded.Load(),
		Failed:   d.failed.Load(),
		Dropped:  d.dropped.Load(),
	}
}

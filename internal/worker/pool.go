// Package worker runs recurrence detection off the caller's goroutine and
// consumes detection requests from AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bankcal/internal/core"
	applog "bankcal/internal/log"
	"bankcal/internal/recurrence"
)

var (
	ErrPoolStopped     = errors.New("detection pool stopped")
	ErrDetectionFailed = errors.New("detection failed")
)

// Response is the reply to one submitted detection request.
type Response struct {
	RequestID string
	Result    recurrence.Result
	Err       error
	Duration  time.Duration
}

type request struct {
	id           string
	transactions []core.Transaction
	options      recurrence.Options
	// Buffered so a worker never blocks on a caller that gave up.
	reply chan Response
}

// Pool runs detection requests on a fixed number of goroutines.
type Pool struct {
	workers int
	queue   chan request
	logger  *applog.Logger
	detect  func([]core.Transaction, recurrence.Options) (recurrence.Result, error)

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
	group     *errgroup.Group
}

func NewPool(workers, queueSize int, logger *applog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Pool{
		workers: workers,
		queue:   make(chan request, queueSize),
		logger:  logger.WithComponent(applog.ComponentWorker),
		detect:  recurrence.Detect,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < p.workers; i++ {
			g.Go(func() error { return p.work(gctx, i) })
		}
		p.group = g
		p.logger.Info("Detection pool started", "workers", p.workers, "queue_size", cap(p.queue))
	})
}

// Submit queues a detection and waits for its response. If ctx ends first
// the caller gets ctx.Err() and the late response is discarded. A detection
// error is returned both in the Response and as the error.
func (p *Pool) Submit(ctx context.Context, transactions []core.Transaction, opts recurrence.Options) (Response, error) {
	select {
	case <-p.quit:
		return Response{}, ErrPoolStopped
	default:
	}

	req := request{
		id:           uuid.NewString(),
		transactions: transactions,
		options:      opts,
		reply:        make(chan Response, 1),
	}

	select {
	case p.queue <- req:
	case <-ctx.Done():
		return Response{RequestID: req.id}, ctx.Err()
	case <-p.quit:
		return Response{RequestID: req.id}, ErrPoolStopped
	}

	select {
	case resp := <-req.reply:
		return resp, resp.Err
	case <-ctx.Done():
		p.logger.DebugContext(ctx, "Caller left before detection finished", applog.FieldRequestID, req.id)
		return Response{RequestID: req.id}, ctx.Err()
	case <-p.done:
		select {
		case resp := <-req.reply:
			return resp, resp.Err
		default:
			return Response{RequestID: req.id}, ErrPoolStopped
		}
	}
}

// Stop signals the workers, waits for in-flight detections, then fails any
// request still queued with ErrPoolStopped.
func (p *Pool) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.quit)
		if p.group != nil {
			err = p.group.Wait()
		}
		drained := 0
	drain:
		for {
			select {
			case req := <-p.queue:
				req.reply <- Response{RequestID: req.id, Err: ErrPoolStopped}
				drained++
			default:
				break drain
			}
		}
		close(p.done)
		p.logger.Info("Detection pool stopped", "drained", drained)
	})
	return err
}

func (p *Pool) work(ctx context.Context, n int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.quit:
			return nil
		case req := <-p.queue:
			req.reply <- p.run(ctx, n, req)
		}
	}
}

func (p *Pool) run(ctx context.Context, n int, req request) (resp Response) {
	start := time.Now()
	resp.RequestID = req.id
	defer func() {
		if r := recover(); r != nil {
			resp.Result = recurrence.Result{}
			resp.Err = fmt.Errorf("%w: request %s: %v", ErrDetectionFailed, req.id, r)
			p.logger.ErrorContext(ctx, "Detection panicked", applog.FieldRequestID, req.id, "worker", n, "panic", r)
		}
		resp.Duration = time.Since(start)
	}()

	res, err := p.detect(req.transactions, req.options)
	if err != nil {
		resp.Err = err
		return resp
	}
	resp.Result = res

	p.logger.DebugContext(ctx, "Detection finished",
		applog.NewFields().
			WithRequestID(req.id).
			WithDetection(len(req.transactions), len(res.Series), len(res.OrphanIDs)).
			ToSlice()...)
	return resp
}

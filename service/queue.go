package service

import (
	"errors"
	"sync"

	"dualvote-backend/models"
)

// ErrQueueFull is returned when the cast queue cannot accept more requests.
var ErrQueueFull = errors.New("cast queue is full")

// CastQueue processes cast requests through a bounded queue and a pool of
// workers. Distinct voters proceed in parallel up to the worker count; the
// only per-request serialization is the duplicate guard's reservation step.
type CastQueue struct {
	casting    *CastingService
	requests   chan *queuedCast
	workers    int
	wg         sync.WaitGroup
	shutdownCh chan struct{}
}

type queuedCast struct {
	req      models.CastRequest
	resultCh chan<- CastResult
}

// CastResult carries the outcome of an asynchronous cast.
type CastResult struct {
	Receipt *models.CastReceipt
	Err     error
}

func NewCastQueue(casting *CastingService, queueSize, workers int) *CastQueue {
	if workers < 1 {
		workers = 1
	}
	return &CastQueue{
		casting:    casting,
		requests:   make(chan *queuedCast, queueSize),
		workers:    workers,
		shutdownCh: make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *CastQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	log.Infof("Cast queue started with %d workers, capacity %d", q.workers, cap(q.requests))
}

// Stop drains the workers. Requests already queued are still processed.
func (q *CastQueue) Stop() {
	close(q.shutdownCh)
	q.wg.Wait()
}

// Enqueue submits a cast request and returns a channel delivering exactly
// one result. A full queue fails immediately rather than blocking the
// caller.
func (q *CastQueue) Enqueue(req models.CastRequest) <-chan CastResult {
	resultCh := make(chan CastResult, 1)
	select {
	case q.requests <- &queuedCast{req: req, resultCh: resultCh}:
	default:
		resultCh <- CastResult{Err: ErrQueueFull}
		close(resultCh)
	}
	return resultCh
}

func (q *CastQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.shutdownCh:
			// Drain what is already queued so no caller is left
			// waiting on a result that will never arrive.
			for {
				select {
				case qc := <-q.requests:
					q.process(qc)
				default:
					return
				}
			}
		case qc := <-q.requests:
			q.process(qc)
		}
	}
}

func (q *CastQueue) process(qc *queuedCast) {
	receipt, err := q.casting.CastDualBallot(qc.req)
	qc.resultCh <- CastResult{Receipt: receipt, Err: err}
	close(qc.resultCh)
}

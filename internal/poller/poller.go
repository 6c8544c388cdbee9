package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrTimeout is reported when a job does not finish before the poll deadline
var ErrTimeout = errors.New("detailed data job timed out")

// JobError is a terminal FAILED or NOT_FOUND status from the backend
type JobError struct {
	JobID  string
	Status models.JobStatus
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s finished with status %s", e.JobID, e.Status)
}

// StatusFetcher queries the status of a detailed-data job
type StatusFetcher interface {
	GetDetailedJobResult(ctx context.Context, jobID string) (*models.DetailedJobResult, error)
}

// Callbacks receive the outcome of a poll. Exactly one is invoked per
// handle, from the polling goroutine. Nil callbacks are skipped.
type Callbacks struct {
	OnComplete func(result *models.DetailedJobResult)
	OnFailure  func(err error)
	OnStale    func()
}

// Handle identifies one poll loop and is its cancellation token
type Handle struct {
	jobID     string
	cancel    context.CancelFunc
	abandoned atomic.Bool
	done      chan struct{}
}

// JobID is the job this handle polls
func (h *Handle) JobID() string {
	return h.jobID
}

// Cancel abandons the poll. The loop ends with OnStale.
func (h *Handle) Cancel() {
	h.abandoned.Store(true)
	h.cancel()
}

// Done is closed after the loop has invoked its callback and exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Poller runs at most one poll loop at a time. Starting a new poll
// supersedes the previous one, whose late responses are discarded.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	active *Handle
}

// New creates a poller that queries every interval and gives up after
// timeout (no deadline when timeout is zero)
func New(fetcher StatusFetcher, interval, timeout time.Duration) *Poller {
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		timeout:  timeout,
	}
}

// Poll starts polling jobID and returns its handle
func (p *Poller) Poll(ctx context.Context, jobID string, cb Callbacks) *Handle {
	var pollCtx context.Context
	var cancel context.CancelFunc
	if p.timeout > 0 {
		pollCtx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		pollCtx, cancel = context.WithCancel(ctx)
	}

	h := &Handle{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.active
	p.active = h
	p.mu.Unlock()

	if prev != nil {
		logrus.Debugf("Job %s superseded by %s", prev.jobID, jobID)
		prev.Cancel()
	}

	logrus.Debugf("Polling job %s every %v", jobID, p.interval)
	go p.run(pollCtx, h, cb)
	return h
}

// Active returns the job id of the running poll, if any
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return "", false
	}
	return p.active.jobID, true
}

// Cancel abandons the running poll, if any
func (p *Poller) Cancel() {
	p.mu.Lock()
	h := p.active
	p.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

func (p *Poller) isActive(h *Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active == h && !h.abandoned.Load()
}

func (p *Poller) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == h {
		p.active = nil
	}
}

func (p *Poller) run(ctx context.Context, h *Handle, cb Callbacks) {
	defer close(h.done)
	defer h.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.finishInterrupted(ctx, h, cb)
			return
		case <-ticker.C:
		}

		if !p.isActive(h) {
			p.finishInterrupted(ctx, h, cb)
			return
		}

		result, err := p.fetcher.GetDetailedJobResult(ctx, h.jobID)

		// A response that arrives after the handle was superseded or
		// timed out belongs to nobody.
		if ctx.Err() != nil || !p.isActive(h) {
			p.finishInterrupted(ctx, h, cb)
			return
		}

		if err != nil {
			p.release(h)
			logrus.Warnf("Polling job %s failed: %v", h.jobID, err)
			if cb.OnFailure != nil {
				cb.OnFailure(err)
			}
			return
		}

		switch result.Status {
		case models.JobCompleted:
			p.release(h)
			logrus.Infof("Job %s completed with posts for %d keywords", h.jobID, len(result.RelatedPostsMap))
			if cb.OnComplete != nil {
				cb.OnComplete(result)
			}
			return
		case models.JobFailed, models.JobNotFound:
			p.release(h)
			logrus.Warnf("Job %s finished with status %s", h.jobID, result.Status)
			if cb.OnFailure != nil {
				cb.OnFailure(&JobError{JobID: h.jobID, Status: result.Status})
			}
			return
		default:
			logrus.Debugf("Job %s still %s", h.jobID, result.Status)
		}
	}
}

// finishInterrupted ends a loop that stopped for a reason other than a
// backend answer: abandonment is silent, the deadline is a failure.
func (p *Poller) finishInterrupted(ctx context.Context, h *Handle, cb Callbacks) {
	p.release(h)

	if !h.abandoned.Load() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logrus.Warnf("Job %s timed out", h.jobID)
		if cb.OnFailure != nil {
			cb.OnFailure(ErrTimeout)
		}
		return
	}

	logrus.Debugf("Job %s abandoned", h.jobID)
	if cb.OnStale != nil {
		cb.OnStale()
	}
}

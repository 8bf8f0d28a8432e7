// Package polling follows a remote optimization job until it reaches a terminal state.
//
// A Subscription issues one status request immediately and then one per
// interval, never overlapping: the next wait starts only after the previous
// request returned. On completion it fetches the result exactly once. The
// caller ends it early with Stop or by cancelling the parent context.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// DefaultInterval between status requests.
const DefaultInterval = 3 * time.Second

// ErrStopped is the outcome of a subscription stopped before a terminal state.
var ErrStopped = errors.New("polling stopped")

// Fetcher reads the status and result resources of a job.
type Fetcher interface {
	Status(ctx context.Context, jobID string) (*types.JobStatus, error)
	Result(ctx context.Context, jobID string) (*types.JobResult, error)
}

// JobFailedError is the outcome of a job the backend reported as failed.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// Options configures a subscription.
type Options struct {
	Interval time.Duration

	// OnStatus is called from the polling goroutine after every successful status request.
	OnStatus func(*types.JobStatus)
	// OnError is called for status request failures that polling retries.
	OnError func(error)

	// FetchResultOnFailure also requests the result of a failed job, for partial artifacts.
	FetchResultOnFailure bool
}

// Outcome is how a subscription ended.
type Outcome struct {
	Status    *types.JobStatus // last status seen, nil if none
	Result    *types.JobResult
	ResultErr error // result request failed; retry with FetchResult
	Err       error // nil when the job completed
}

// Completed reports whether the job finished successfully.
func (o Outcome) Completed() bool {
	return o.Err == nil && o.Status != nil && o.Status.Status == types.JobCompleted
}

// Subscription is a running poll loop for one job.
type Subscription struct {
	jobID   string
	fetcher Fetcher
	opts    Options

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome Outcome
}

// Watch starts polling jobID. The subscription ends on a terminal state, on
// Stop, or when ctx is cancelled.
func Watch(ctx context.Context, fetcher Fetcher, jobID string, opts Options) *Subscription {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		jobID:   jobID,
		fetcher: fetcher,
		opts:    opts,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// JobID returns the job being followed.
func (s *Subscription) JobID() string {
	return s.jobID
}

// Stop cancels any in-flight request and waits for the loop to exit. It is safe to call more than once.
func (s *Subscription) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the final outcome once Done is closed.
func (s *Subscription) Outcome() (Outcome, bool) {
	select {
	case <-s.done:
	default:
		return Outcome{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, true
}

// Wait blocks until the subscription ends or ctx is done.
func (s *Subscription) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		o, _ := s.Outcome()
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (s *Subscription) finish(o Outcome) {
	s.mu.Lock()
	s.outcome = o
	s.mu.Unlock()
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	var last *types.JobStatus
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finish(Outcome{Status: last, Err: ErrStopped})
			return
		case <-timer.C:
		}

		status, err := s.fetcher.Status(ctx, s.jobID)
		if err != nil {
			if ctx.Err() != nil {
				s.finish(Outcome{Status: last, Err: ErrStopped})
				return
			}
			if fatal(err) {
				s.finish(Outcome{Status: last, Err: err})
				return
			}
			if s.opts.OnError != nil {
				s.opts.OnError(err)
			}
			timer.Reset(s.opts.Interval)
			continue
		}

		last = status
		if s.opts.OnStatus != nil {
			s.opts.OnStatus(status)
		}

		if !status.Status.IsTerminal() {
			timer.Reset(s.opts.Interval)
			continue
		}

		s.finish(s.settle(ctx, status))
		return
	}
}

// settle builds the outcome for a terminal status.
func (s *Subscription) settle(ctx context.Context, status *types.JobStatus) Outcome {
	o := Outcome{Status: status}

	if status.Status == types.JobFailed {
		o.Err = &JobFailedError{JobID: s.jobID, Message: status.FailureMessage()}
		if !s.opts.FetchResultOnFailure {
			return o
		}
	}

	o.Result, o.ResultErr = s.fetcher.Result(ctx, s.jobID)
	return o
}

// FetchResult requests the result once more, for a manual retry after ResultErr.
func FetchResult(ctx context.Context, fetcher Fetcher, jobID string) (*types.JobResult, error) {
	return fetcher.Result(ctx, jobID)
}

// fatal reports status errors that polling cannot recover from.
func fatal(err error) bool {
	return backend.IsNotFound(err) || backend.IsUnauthorized(err)
}

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/polling"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// recordTimeout bounds state writes made from the polling goroutine, which
// must outlive the request that started the subscription.
const recordTimeout = 5 * time.Second

// Observer receives subscription events. Callbacks run on the polling goroutine.
type Observer struct {
	OnStatus func(*types.JobStatus)
	OnError  func(error)
	// OnDone is called once with the final outcome.
	OnDone func(polling.Outcome)

	FetchResultOnFailure bool
}

// tokenFetcher binds a session credential to the backend for the polling loop.
type tokenFetcher struct {
	backend Backend
	token   string
}

func (f tokenFetcher) Status(ctx context.Context, jobID string) (*types.JobStatus, error) {
	return f.backend.Status(ctx, f.token, jobID)
}

func (f tokenFetcher) Result(ctx context.Context, jobID string) (*types.JobResult, error) {
	return f.backend.Result(ctx, f.token, jobID)
}

// Watch follows a job until it is terminal, ctx is cancelled, or another Watch
// for the same owner and job replaces it. Every status is folded into the
// job record.
func (s *Service) Watch(ctx context.Context, owner, jobID string, obs Observer) (*polling.Subscription, error) {
	token, err := s.token(ctx, owner)
	if err != nil {
		return nil, err
	}

	key := subKey{owner: owner, jobID: jobID}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	previous := s.subs[key]
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	opts := polling.Options{
		Interval:             s.cfg.PollInterval,
		FetchResultOnFailure: obs.FetchResultOnFailure,
		OnStatus: func(st *types.JobStatus) {
			s.metrics.ObservePollTick(string(st.Status))
			wctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			s.applyStatus(wctx, owner, jobID, st)
			cancel()
			if obs.OnStatus != nil {
				obs.OnStatus(st)
			}
		},
		OnError: func(err error) {
			s.metrics.ObservePollTick("error")
			s.logger.Warn("status poll failed", "owner", owner, "job_id", jobID, "error", err)
			if obs.OnError != nil {
				obs.OnError(err)
			}
		},
	}

	sub := polling.Watch(ctx, tokenFetcher{backend: s.backend, token: token}, jobID, opts)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Stop()
		return nil, ErrClosed
	}
	racing := s.subs[key]
	s.subs[key] = sub
	s.wg.Add(1)
	s.mu.Unlock()

	if racing != nil && racing != previous {
		racing.Stop()
	}

	s.metrics.SubscriptionOpened()
	go s.finish(key, sub, obs)
	return sub, nil
}

// finish waits for a subscription to end and records its outcome.
func (s *Service) finish(key subKey, sub *polling.Subscription, obs Observer) {
	defer s.wg.Done()
	<-sub.Done()
	outcome, _ := sub.Outcome()

	s.mu.Lock()
	if s.subs[key] == sub {
		delete(s.subs, key)
	}
	s.mu.Unlock()
	s.metrics.SubscriptionClosed()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var failed *polling.JobFailedError
	switch {
	case outcome.Completed():
		s.rememberResult(ctx, key.owner, key.jobID, outcome.Result)
		var seconds float64
		var cached bool
		if outcome.Result != nil && outcome.Result.ProcessingStats != nil {
			seconds = outcome.Result.ProcessingStats.ProcessingTimeSeconds
			cached = outcome.Result.ProcessingStats.Cached
		}
		analytics.EmitOptimizationCompleted(s.analytics, key.owner, key.jobID, seconds, cached)
		if outcome.ResultErr != nil {
			s.logger.Warn("result fetch failed", "owner", key.owner, "job_id", key.jobID, "error", outcome.ResultErr)
		}
	case errors.As(outcome.Err, &failed):
		analytics.EmitOptimizationFailed(s.analytics, key.owner, key.jobID, failed.Message)
	case errors.Is(outcome.Err, polling.ErrStopped):
	default:
		s.logger.Warn("stopped following job", "owner", key.owner, "job_id", key.jobID, "error", outcome.Err)
	}

	if obs.OnDone != nil {
		obs.OnDone(outcome)
	}
}

func (s *Service) stopSubscription(key subKey) {
	s.mu.Lock()
	sub := s.subs[key]
	s.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}

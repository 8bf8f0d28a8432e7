// Package jobs orchestrates optimization jobs: validated submission, status
// subscriptions that keep the state document current, result retrieval and
// recompilation.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/analytics"
	"github.com/jonathan/resume-optimizer/internal/backend"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/polling"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrProviderNotConfigured is returned when no complete provider configuration is stored.
	ErrProviderNotConfigured = errors.New("connect an AI provider before optimizing")
	// ErrTemplateTooShort is returned for templates that cannot be a resume.
	ErrTemplateTooShort = errors.New("template content is too short")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("job service closed")
)

// MinTemplateChars is the shortest template the backend accepts.
const MinTemplateChars = 10

// Backend is the part of the optimization backend the service uses.
type Backend interface {
	Submit(ctx context.Context, token string, req *types.OptimizeRequest) (*types.SubmitResponse, error)
	Status(ctx context.Context, token, jobID string) (*types.JobStatus, error)
	Result(ctx context.Context, token, jobID string) (*types.JobResult, error)
	Compile(ctx context.Context, token string, req *types.CompileRequest) (*types.CompileResponse, error)
	Delete(ctx context.Context, token, jobID string) error
}

// Metrics receives polling activity.
type Metrics interface {
	ObservePollTick(state string)
	SubscriptionOpened()
	SubscriptionClosed()
}

type noopMetrics struct{}

func (noopMetrics) ObservePollTick(string) {}
func (noopMetrics) SubscriptionOpened()    {}
func (noopMetrics) SubscriptionClosed()    {}

// Config configures a Service.
type Config struct {
	PollInterval time.Duration
	CacheSize    int
	CacheTTL     time.Duration
	Analytics    analytics.Enqueuer
	Metrics      Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service is the entry point for job operations. It is safe for concurrent use.
type Service struct {
	backend   Backend
	store     *state.Store
	cfg       Config
	logger    *slog.Logger
	analytics analytics.Enqueuer
	metrics   Metrics

	results otter.Cache[string, *types.JobResult]
	group   singleflight.Group

	mu        sync.Mutex
	subs      map[subKey]*polling.Subscription
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type subKey struct {
	owner string
	jobID string
}

// NewService creates a Service.
func NewService(b Backend, store *state.Store, cfg Config) (*Service, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = polling.DefaultInterval
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Analytics == nil {
		cfg.Analytics = analytics.Noop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results, err := otter.MustBuilder[string, *types.JobResult](cfg.CacheSize).
		WithTTL(cfg.CacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build result cache: %w", err)
	}

	return &Service{
		backend:   b,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		analytics: cfg.Analytics,
		metrics:   cfg.Metrics,
		results:   results,
		subs:      make(map[subKey]*polling.Subscription),
	}, nil
}

// Submit validates the input against the owner's state, sends the job to the
// backend and remembers it. Nothing reaches the network when validation fails.
func (s *Service) Submit(ctx context.Context, owner string, in types.SubmitInput) (*types.JobRecord, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	description, err := normalizeDescription(in.JobDescription)
	if err != nil {
		return nil, err
	}
	in.JobDescription = description
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	tmpl, err := pickTemplate(doc, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(tmpl.Content)) < MinTemplateChars {
		return nil, ErrTemplateTooShort
	}
	if !doc.ProviderReady() {
		return nil, ErrProviderNotConfigured
	}

	req := &types.OptimizeRequest{
		TexContent:          tmpl.Content,
		JobDescription:      in.JobDescription,
		CompanyName:         in.CompanyName,
		CustomInstructions:  strings.TrimSpace(in.CustomInstructions),
		LLMConfig:           types.LLMConfigFrom(*doc.Provider),
		GenerateColdEmail:   in.GenerateColdEmail,
		GenerateCoverLetter: in.GenerateCoverLetter,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := s.backend.Submit(ctx, doc.SessionToken(), req)
	if err != nil {
		return nil, err
	}

	rec := types.JobRecord{
		ID:          resp.OptimizationID,
		CompanyName: in.CompanyName,
		Provider:    doc.Provider.Provider,
		Model:       doc.Provider.Model,
		TemplateID:  tmpl.ID,
		State:       resp.Status,
		SubmittedAt: s.cfg.Now().UTC(),
	}
	if rec.State == "" {
		rec.State = types.JobPending
	}

	_, err = s.store.Mutate(ctx, owner, func(d *state.Document) error {
		d.RecordJob(rec)
		d.Draft = state.Draft{
			JobDescription:      in.JobDescription,
			CompanyName:         in.CompanyName,
			CustomInstructions:  in.CustomInstructions,
			GenerateColdEmail:   in.GenerateColdEmail,
			GenerateCoverLetter: in.GenerateCoverLetter,
		}
		return nil
	})
	if err != nil {
		// The job exists remotely; losing the local record only hides it from history.
		s.logger.Error("failed to record submitted job", "owner", owner, "job_id", rec.ID, "error", err)
	}

	analytics.EmitOptimizationSubmitted(s.analytics, owner, rec.ID, string(rec.Provider), rec.Model,
		in.GenerateCoverLetter, in.GenerateColdEmail)
	s.logger.Info("submitted optimization", "owner", owner, "job_id", rec.ID, "provider", rec.Provider, "model", rec.Model)
	return &rec, nil
}

func pickTemplate(doc *state.Document, id uuid.UUID) (*types.Template, error) {
	if id != uuid.Nil {
		t, ok := doc.Template(id)
		if !ok {
			return nil, state.ErrTemplateNotFound
		}
		return t, nil
	}
	t, ok := doc.SelectedTemplate()
	if !ok {
		return nil, state.ErrNoTemplate
	}
	return t, nil
}

// normalizeDescription turns pasted HTML into markdown text.
func normalizeDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !fetch.LooksLikeHTML(s) {
		return s, nil
	}
	md, err := fetch.HTMLToMarkdown(s)
	if err != nil {
		return "", err
	}
	return md, nil
}

// List returns the owner's remembered jobs, most recent first.
func (s *Service) List(ctx context.Context, owner string) ([]types.JobRecord, error) {
	doc, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	return doc.Jobs, nil
}

// Status fetches one status snapshot and folds it into the job record.
func (s *Service) Status(ctx context.Context, owner, jobID string) (*types.JobStatus, error) {
	token, err := s.token(ctx, owner)
	if err != nil {
		return nil, err
	}
	st, err := s.backend.Status(ctx, token, jobID)
	if err != nil {
		return nil, err
	}
	s.applyStatus(ctx, owner, jobID, st)
	return st, nil
}

// Result returns a job's result. Completed results are cached and concurrent
// requests for the same job share one backend call.
func (s *Service) Result(ctx context.Context, owner, jobID string) (*types.JobResult, error) {
	key := cacheKey(owner, jobID)
	if res, ok := s.results.Get(key); ok {
		return res, nil
	}

	token, err := s.token(ctx, owner)
	if err != nil {
		return nil, err
	}

	// The shared call must outlive any one caller, so it drops cancellation
	// and keeps the values of whoever started it.
	v, err, _ := s.group.Do(key, func() (any, error) {
		return polling.FetchResult(context.WithoutCancel(ctx), tokenFetcher{backend: s.backend, token: token}, jobID)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*types.JobResult)
	s.rememberResult(ctx, owner, jobID, res)
	return res, nil
}

func (s *Service) rememberResult(ctx context.Context, owner, jobID string, res *types.JobResult) {
	if res == nil || res.Status != types.JobCompleted {
		return
	}
	s.results.Set(cacheKey(owner, jobID), res)
	if res.PDFDownloadURL == "" {
		return
	}
	err := s.store.UpdateJob(ctx, owner, jobID, func(r *types.JobRecord) {
		if r.PDFURL == "" {
			r.PDFURL = res.PDFDownloadURL
		}
	})
	if err != nil {
		s.logger.Warn("failed to store result link", "owner", owner, "job_id", jobID, "error", err)
	}
}

// Recompile compiles edited LaTeX for a job and stores the new PDF link.
func (s *Service) Recompile(ctx context.Context, owner, jobID, tex string) (*types.CompileResponse, error) {
	req := &types.CompileRequest{TexContent: tex, OptimizationID: jobID}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	token, err := s.token(ctx, owner)
	if err != nil {
		return nil, err
	}

	resp, err := s.backend.Compile(ctx, token, req)
	if err != nil {
		analytics.EmitResumeRecompiled(s.analytics, owner, jobID, false)
		return nil, err
	}
	analytics.EmitResumeRecompiled(s.analytics, owner, jobID, resp.Success)
	if !resp.Success {
		return resp, nil
	}

	key := cacheKey(owner, jobID)
	if cached, ok := s.results.Get(key); ok {
		updated := *cached
		updated.OptimizedTex = tex
		if resp.PDFDownloadURL != "" {
			updated.PDFDownloadURL = resp.PDFDownloadURL
		}
		s.results.Set(key, &updated)
	}
	if resp.PDFDownloadURL != "" {
		err := s.store.UpdateJob(ctx, owner, jobID, func(r *types.JobRecord) {
			r.PDFURL = resp.PDFDownloadURL
		})
		if err != nil {
			s.logger.Warn("failed to store recompiled link", "owner", owner, "job_id", jobID, "error", err)
		}
	}
	return resp, nil
}

// Delete removes a job remotely and locally. A job the backend no longer knows is still forgotten locally.
func (s *Service) Delete(ctx context.Context, owner, jobID string) error {
	s.stopSubscription(subKey{owner: owner, jobID: jobID})
	s.results.Delete(cacheKey(owner, jobID))

	token, err := s.token(ctx, owner)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, token, jobID); err != nil && !backend.IsNotFound(err) {
		return err
	}
	if err := s.store.RemoveJob(ctx, owner, jobID); err != nil && !errors.Is(err, state.ErrJobNotFound) {
		return err
	}
	return nil
}

// Close stops every live subscription and waits for their bookkeeping to finish.
// It is safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Service) close() {
	s.mu.Lock()
	s.closed = true
	subs := make([]*polling.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
	s.wg.Wait()
	s.results.Close()
}

// ActiveSubscriptions returns the number of live subscriptions.
func (s *Service) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) token(ctx context.Context, owner string) (string, error) {
	doc, err := s.store.Get(ctx, owner)
	if err != nil {
		return "", err
	}
	return doc.SessionToken(), nil
}

func (s *Service) applyStatus(ctx context.Context, owner, jobID string, st *types.JobStatus) {
	err := s.store.UpdateJob(ctx, owner, jobID, func(r *types.JobRecord) {
		r.Apply(st, s.cfg.Now().UTC())
	})
	if err != nil {
		s.logger.Warn("failed to update job record", "owner", owner, "job_id", jobID, "error", err)
	}
}

func cacheKey(owner, jobID string) string {
	return owner + "/" + jobID
}

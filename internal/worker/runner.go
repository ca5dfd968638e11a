// Package worker runs the asynchronous generation pipeline: a bounded pool
// of workers pulls submitted jobs from a queue and drives each one through
// topic, template and market resolution, provider generation, and article
// persistence, reporting progress at fixed checkpoints.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coinscribe/coinscribe/internal/cache"
	"github.com/coinscribe/coinscribe/internal/generate"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/coinscribe/coinscribe/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Submission and execution limits. The submission throttle protects
// downstream provider quotas; it is separate from any user-facing limiter.
const (
	DefaultConcurrency  = 2
	DefaultSubmitLimit  = 5
	DefaultSubmitWindow = time.Minute

	// RecentArticlesLimit bounds the "articles:recent" cached list.
	RecentArticlesLimit = 50

	submitIdentifier = "worker:submissions"
)

// Errors returned by Submit.
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrThrottled    = errors.New("submission limit reached, try again shortly")
	ErrQueueFull    = errors.New("job queue is full")
	ErrMissingTopic = errors.New("topic id is required")
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetTopic(ctx context.Context, topicID string) (*models.Topic, error)
	GetTemplate(ctx context.Context, templateID string) (*models.Template, error)
	SaveArticle(ctx context.Context, article *models.Article) error
}

// MarketSource resolves market context for a set of symbols.
type MarketSource interface {
	FetchBatch(ctx context.Context, symbols []string) ([]models.MarketDataPoint, error)
	FetchGlobalIndicators(ctx context.Context) (*models.GlobalIndicators, error)
}

// Generator produces a draft; the provider chain satisfies this.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*generate.Draft, error)
}

// Config holds runner tunables.
type Config struct {
	Concurrency  int
	SubmitLimit  int
	SubmitWindow time.Duration
	QueueSize    int
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  DefaultConcurrency,
		SubmitLimit:  DefaultSubmitLimit,
		SubmitWindow: DefaultSubmitWindow,
		QueueSize:    64,
	}
}

// Runner owns the job queue and worker pool. Each job is processed by
// exactly one worker; terminal jobs are never mutated again, and a job's
// progress only moves forward. Jobs are not retried: a retry would
// double-charge paid provider calls, so retry is the caller's decision.
type Runner struct {
	store     Store
	market    MarketSource
	generator Generator
	cache     *cache.Service
	limiter   ratelimit.Limiter
	config    Config

	jobsMu sync.RWMutex
	jobs   map[string]*models.Job
	queue  chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewRunner creates a runner. limiter guards the queue boundary; pass a
// MemoryLimiter when no shared backend is configured.
func NewRunner(store Store, market MarketSource, generator Generator, cacheSvc *cache.Service, limiter ratelimit.Limiter, config Config) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.SubmitLimit <= 0 {
		config.SubmitLimit = DefaultSubmitLimit
	}
	if config.SubmitWindow <= 0 {
		config.SubmitWindow = DefaultSubmitWindow
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:     store,
		market:    market,
		generator: generator,
		cache:     cacheSvc,
		limiter:   limiter,
		config:    config,
		jobs:      make(map[string]*models.Job),
		queue:     make(chan string, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	log.Info().Int("concurrency", r.config.Concurrency).Msg("Starting job runner")

	for i := 0; i < r.config.Concurrency; i++ {
		r.wg.Add(1)
		go r.workLoop(i)
	}
}

// Stop stops accepting work and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	log.Info().Msg("Stopping job runner")
	r.cancel()
	r.wg.Wait()
}

// Submit validates and enqueues a generation job, returning its ID. The
// queue boundary is throttled; when the budget is spent Submit returns
// ErrThrottled without creating a job.
func (r *Runner) Submit(ctx context.Context, topicID, userID, templateID string, options models.GenerationSettings) (string, error) {
	if topicID == "" {
		return "", ErrMissingTopic
	}

	result := r.limiter.Check(ctx, submitIdentifier, r.config.SubmitLimit, r.config.SubmitWindow)
	if !result.Allowed {
		return "", ErrThrottled
	}

	if options.Style == "" {
		options = models.DefaultSettings()
	}

	job := &models.Job{
		ID:         uuid.NewString(),
		TopicID:    topicID,
		UserID:     userID,
		TemplateID: templateID,
		Options:    options,
		Status:     models.JobPending,
		Stage:      "queued",
	}

	r.jobsMu.Lock()
	r.jobs[job.ID] = job
	r.jobsMu.Unlock()

	select {
	case r.queue <- job.ID:
	default:
		r.jobsMu.Lock()
		delete(r.jobs, job.ID)
		r.jobsMu.Unlock()
		return "", ErrQueueFull
	}

	log.Info().Str("job", job.ID).Str("topic", topicID).Msg("Job submitted")
	return job.ID, nil
}

// Status returns a snapshot of a job.
func (r *Runner) Status(jobID string) (*models.Job, error) {
	r.jobsMu.RLock()
	defer r.jobsMu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	snapshot := *job
	return &snapshot, nil
}

func (r *Runner) workLoop(id int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case jobID := <-r.queue:
			r.runJob(jobID)
		}
	}
}

// runJob executes the staged pipeline for one job. Any failure is caught at
// this boundary and recorded as a terminal failed result.
func (r *Runner) runJob(jobID string) {
	start := r.now()
	r.update(jobID, func(job *models.Job) {
		job.Status = models.JobRunning
		job.StartedAt = start
	})
	r.checkpoint(jobID, 0, "initializing")

	article, err := r.execute(r.ctx, jobID)
	duration := r.now().Sub(start)

	if err != nil {
		log.Error().Err(err).Str("job", jobID).Dur("duration", duration).Msg("Job failed")
		r.update(jobID, func(job *models.Job) {
			job.Status = models.JobFailed
			job.Error = err.Error()
			job.Duration = duration
		})
		return
	}

	r.update(jobID, func(job *models.Job) {
		job.Status = models.JobCompleted
		job.Result = article
		job.Progress = 100
		job.Stage = "complete"
		job.Duration = duration
	})

	log.Info().
		Str("job", jobID).
		Str("article", article.ArticleID).
		Str("generated_by", article.GeneratedBy).
		Dur("duration", duration).
		Msg("Job completed")
}

func (r *Runner) execute(ctx context.Context, jobID string) (*models.Article, error) {
	job, err := r.Status(jobID)
	if err != nil {
		return nil, err
	}

	// Stage 1: topic, cache-aside with a one hour TTL.
	topic, err := r.resolveTopic(ctx, job.TopicID)
	if err != nil {
		return nil, err
	}
	r.checkpoint(jobID, 20, "topic")

	// Stage 2: template, same pattern, only when requested.
	var tmpl *models.Template
	if job.TemplateID != "" {
		tmpl, err = r.resolveTemplate(ctx, job.TemplateID)
		if err != nil {
			return nil, err
		}
	}
	r.checkpoint(jobID, 30, "template")

	// Stage 3: market context. Price data is required; global indicators
	// (and their sentiment reading) are optional extras.
	var points []models.MarketDataPoint
	if len(topic.Symbols) > 0 {
		points, err = r.market.FetchBatch(ctx, topic.Symbols)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch market data: %w", err)
		}
	}
	global, err := r.market.FetchGlobalIndicators(ctx)
	if err != nil {
		log.Warn().Err(err).Str("job", jobID).Msg("Global indicators unavailable, continuing without them")
		global = nil
	}
	r.checkpoint(jobID, 50, "market")

	// Stage 4: generation. The chain guarantees a draft.
	draft, err := r.generator.Generate(ctx, generate.Request{
		Topic:    topic,
		Template: tmpl,
		Market:   points,
		Global:   global,
		Settings: job.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	r.checkpoint(jobID, 80, "generate")

	// Stage 5: persist.
	article := &models.Article{
		ArticleID:   uuid.NewString(),
		TopicID:     topic.TopicID,
		UserID:      job.UserID,
		Title:       draft.Title,
		Content:     draft.Content,
		Summary:     draft.Summary,
		Sections:    draft.Sections,
		WordCount:   draft.WordCount,
		Settings:    job.Options,
		GeneratedBy: draft.GeneratedBy,
	}
	if err := r.store.SaveArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}
	r.checkpoint(jobID, 90, "persist")

	r.updateRecentList(ctx, article)
	return article, nil
}

func (r *Runner) resolveTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	key := cache.TopicKeyPrefix + topicID

	var topic models.Topic
	if r.cache.Get(ctx, key, &topic) {
		return &topic, nil
	}

	fetched, err := r.store.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, fetched, cache.TopicTTL); err != nil {
		log.Warn().Err(err).Str("topic", topicID).Msg("Failed to cache topic")
	}
	return fetched, nil
}

func (r *Runner) resolveTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	key := cache.TemplateKeyPrefix + templateID

	var tmpl models.Template
	if r.cache.Get(ctx, key, &tmpl) {
		return &tmpl, nil
	}

	fetched, err := r.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, fetched, cache.TemplateTTL); err != nil {
		log.Warn().Err(err).Str("template", templateID).Msg("Failed to cache template")
	}
	return fetched, nil
}

// updateRecentList prepends the article to the cached recent list, keeping
// the newest RecentArticlesLimit entries. The article is already persisted;
// a cache failure here is logged, not fatal.
func (r *Runner) updateRecentList(ctx context.Context, article *models.Article) {
	var recent []models.ArticleRef
	r.cache.Get(ctx, cache.RecentArticlesKey, &recent)

	recent = append([]models.ArticleRef{{
		ArticleID: article.ArticleID,
		Title:     article.Title,
		TopicID:   article.TopicID,
		CreatedAt: article.CreatedAt,
	}}, recent...)

	if len(recent) > RecentArticlesLimit {
		recent = recent[:RecentArticlesLimit]
	}

	if err := r.cache.Set(ctx, cache.RecentArticlesKey, recent, 0); err != nil {
		log.Warn().Err(err).Msg("Failed to update recent articles cache")
	}
}

// checkpoint advances a job's progress. Progress never moves backwards.
func (r *Runner) checkpoint(jobID string, progress int, stage string) {
	r.update(jobID, func(job *models.Job) {
		if progress > job.Progress {
			job.Progress = progress
		}
		job.Stage = stage
	})
}

func (r *Runner) update(jobID string, fn func(*models.Job)) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	if job.Status.Terminal() {
		// Terminal jobs never change again.
		return
	}
	fn(job)
}

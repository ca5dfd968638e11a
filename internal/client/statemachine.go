// Package client drives a generation run from the consumer's side: submit a
// job, poll its status on a fixed interval with a bounded attempt budget,
// and guarantee a terminal article or error. If submission itself fails the
// client generates locally instead of surfacing an error; the user always
// ends up with an article, even fully offline.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coinscribe/coinscribe/internal/generate"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/rs/zerolog/log"
)

// Stage is the client-visible phase of a generation run.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageAnalyzing  Stage = "analyzing"
	StageWriting    Stage = "writing"
	StageOptimizing Stage = "optimizing"
	StageFinalizing Stage = "finalizing"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// State is the observable state of the machine. It is reset between runs
// and mutated only by the run driving it.
type State struct {
	Stage         Stage          `json:"stage"`
	Progress      int            `json:"progress"`
	StartedAt     time.Time      `json:"started_at"`
	Error         string         `json:"error,omitempty"`
	EstimatedTime time.Duration  `json:"estimated_time"`
	Article       *models.Article `json:"article,omitempty"`
}

// RetryPolicy bounds the polling loop.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy polls every 10 seconds for up to 30 attempts, five
// minutes in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Interval:    10 * time.Second,
		MaxAttempts: 30,
	}
}

// JobService is the narrow submission/polling contract the machine consumes.
type JobService interface {
	Submit(ctx context.Context, topicID, userID, templateID string, options models.GenerationSettings) (string, error)
	Status(jobID string) (*models.Job, error)
}

// Request describes one generation run. TopicTitle lets the offline
// fallback synthesize content without reaching any backend.
type Request struct {
	TopicID    string
	TopicTitle string
	UserID     string
	TemplateID string
	Options    models.GenerationSettings
}

// StateMachine drives one generation at a time.
type StateMachine struct {
	service  JobService
	fallback generate.Provider
	policy   RetryPolicy

	mu    sync.Mutex
	state State

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a state machine. fallback is the offline generator used when
// submission itself fails.
func New(service JobService, fallback generate.Provider, policy RetryPolicy) *StateMachine {
	if policy.Interval <= 0 || policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	return &StateMachine{
		service:  service,
		fallback: fallback,
		policy:   policy,
		state:    State{Stage: StageIdle},
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns a snapshot of the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run executes one generation end to end and returns the terminal state.
// The run blocks; polling sleeps cooperatively and honors ctx cancellation.
func (m *StateMachine) Run(ctx context.Context, req Request) State {
	m.reset()
	m.transition(StageAnalyzing, 5, nil, "")

	jobID, err := m.service.Submit(ctx, req.TopicID, req.UserID, req.TemplateID, req.Options)
	if err != nil {
		// Submission never surfaces an error to the user: generate locally.
		log.Warn().Err(err).Str("topic", req.TopicID).Msg("Submission failed, generating offline")
		return m.generateLocally(ctx, req)
	}

	return m.poll(ctx, jobID)
}

// poll drives the bounded polling loop. The in-flight job is not cancelled
// when the budget runs out; an abandoned job still completes server-side.
func (m *StateMachine) poll(ctx context.Context, jobID string) State {
	for attempt := 0; attempt < m.policy.MaxAttempts; attempt++ {
		if err := m.sleep(ctx, m.policy.Interval); err != nil {
			m.transition(StageError, 0, nil, "generation cancelled")
			return m.State()
		}

		job, err := m.service.Status(jobID)
		if err != nil {
			log.Warn().Err(err).Str("job", jobID).Int("attempt", attempt+1).Msg("Poll failed")
			continue
		}

		switch {
		case job.Status == models.JobCompleted:
			m.transition(StageCompleted, 100, job.Result, "")
			return m.State()

		case job.Status == models.JobFailed:
			m.transition(StageError, job.Progress, nil, "generation failed: "+job.Error)
			return m.State()

		default:
			m.transition(stageForProgress(job.Progress), job.Progress, nil, "")
		}
	}

	m.transition(StageError, 0, nil, fmt.Sprintf(
		"generation timed out after %s", time.Duration(m.policy.MaxAttempts)*m.policy.Interval))
	return m.State()
}

// generateLocally is the fallback-first path for failed submissions.
func (m *StateMachine) generateLocally(ctx context.Context, req Request) State {
	title := req.TopicTitle
	if title == "" {
		title = req.TopicID
	}

	options := req.Options
	if options.Style == "" {
		options = models.DefaultSettings()
	}

	m.transition(StageWriting, 50, nil, "")

	draft, err := m.fallback.Generate(ctx, generate.Request{
		Topic:    &models.Topic{TopicID: req.TopicID, Title: title},
		Settings: options,
	})
	if err != nil {
		// The offline generator has no failure modes in practice; if it
		// does fail, this is the one place a run ends in error without a
		// server-side job.
		m.transition(StageError, 0, nil, "generation failed: "+err.Error())
		return m.State()
	}

	article := &models.Article{
		TopicID:     req.TopicID,
		UserID:      req.UserID,
		Title:       draft.Title,
		Content:     draft.Content,
		Summary:     draft.Summary,
		Sections:    draft.Sections,
		WordCount:   draft.WordCount,
		Settings:    options,
		GeneratedBy: draft.GeneratedBy,
		CreatedAt:   time.Now(),
	}

	m.transition(StageCompleted, 100, article, "")
	return m.State()
}

// stageForProgress maps job progress onto client stages.
func stageForProgress(progress int) Stage {
	switch {
	case progress < 40:
		return StageAnalyzing
	case progress < 80:
		return StageWriting
	case progress < 90:
		return StageOptimizing
	default:
		return StageFinalizing
	}
}

func (m *StateMachine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = State{
		Stage:         StageAnalyzing,
		StartedAt:     time.Now(),
		EstimatedTime: 90 * time.Second,
	}
}

// transition applies a state change. Once a run reaches a terminal stage no
// further transition is applied, so completed and error each fire exactly
// once per run.
func (m *StateMachine) transition(stage Stage, progress int, article *models.Article, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Stage.Terminal() {
		return
	}

	m.state.Stage = stage
	if progress > m.state.Progress {
		m.state.Progress = progress
	}
	if article != nil {
		m.state.Article = article
	}
	m.state.Error = errMsg
}

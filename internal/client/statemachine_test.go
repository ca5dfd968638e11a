package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coinscribe/coinscribe/internal/generate"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedService returns one job snapshot per Status call, in order,
// repeating the last one once the script runs out.
type scriptedService struct {
	submitErr   error
	jobID       string
	script      []*models.Job
	statusErr   error
	statusCalls int
}

func (s *scriptedService) Submit(ctx context.Context, topicID, userID, templateID string, options models.GenerationSettings) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return s.jobID, nil
}

func (s *scriptedService) Status(jobID string) (*models.Job, error) {
	s.statusCalls++
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	i := s.statusCalls - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

func instantPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{Interval: time.Nanosecond, MaxAttempts: maxAttempts}
}

func newTestMachine(service JobService, policy RetryPolicy) *StateMachine {
	m := New(service, generate.NewOfflineProvider(), policy)
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return m
}

func testClientRequest() Request {
	return Request{
		TopicID:    "t1",
		TopicTitle: "Ethereum Upgrade",
		UserID:     "u1",
	}
}

func TestRunCompletes(t *testing.T) {
	service := &scriptedService{
		jobID: "j1",
		script: []*models.Job{
			{ID: "j1", Status: models.JobRunning, Progress: 20, Stage: "topic"},
			{ID: "j1", Status: models.JobRunning, Progress: 50, Stage: "market"},
			{ID: "j1", Status: models.JobCompleted, Progress: 100, Result: &models.Article{
				ArticleID: "a1", Title: "Ethereum Upgrade", GeneratedBy: "openai",
			}},
		},
	}

	m := newTestMachine(service, instantPolicy(30))
	state := m.Run(context.Background(), testClientRequest())

	assert.Equal(t, StageCompleted, state.Stage)
	assert.Equal(t, 100, state.Progress)
	require.NotNil(t, state.Article)
	assert.Equal(t, "a1", state.Article.ArticleID)
	assert.Equal(t, 3, service.statusCalls)
}

func TestRunFailedJob(t *testing.T) {
	service := &scriptedService{
		jobID: "j1",
		script: []*models.Job{
			{ID: "j1", Status: models.JobFailed, Progress: 20, Error: "topic not found"},
		},
	}

	m := newTestMachine(service, instantPolicy(30))
	state := m.Run(context.Background(), testClientRequest())

	assert.Equal(t, StageError, state.Stage)
	assert.Contains(t, state.Error, "topic not found")
	assert.Nil(t, state.Article)
}

func TestRunTimesOutAfterMaxAttempts(t *testing.T) {
	service := &scriptedService{
		jobID:  "j1",
		script: []*models.Job{{ID: "j1", Status: models.JobRunning, Progress: 50}},
	}

	m := newTestMachine(service, instantPolicy(5))
	state := m.Run(context.Background(), testClientRequest())

	assert.Equal(t, StageError, state.Stage)
	assert.Contains(t, state.Error, "timed out")
	assert.Equal(t, 5, service.statusCalls, "polling stops at the attempt budget")
}

func TestRunSubmissionFailureGeneratesOffline(t *testing.T) {
	service := &scriptedService{submitErr: errors.New("server unreachable")}

	m := newTestMachine(service, instantPolicy(30))
	state := m.Run(context.Background(), testClientRequest())

	assert.Equal(t, StageCompleted, state.Stage, "submission failure must not surface as an error")
	require.NotNil(t, state.Article)
	assert.Equal(t, generate.FallbackName, state.Article.GeneratedBy)
	assert.Contains(t, state.Article.Title, "Ethereum Upgrade")
	assert.Zero(t, service.statusCalls)
}

func TestRunPollErrorsAreRetried(t *testing.T) {
	service := &scriptedService{
		jobID:     "j1",
		statusErr: errors.New("connection reset"),
	}

	m := newTestMachine(service, instantPolicy(3))
	state := m.Run(context.Background(), testClientRequest())

	assert.Equal(t, StageError, state.Stage)
	assert.Equal(t, 3, service.statusCalls, "poll transport errors consume attempts, not the run")
}

func TestRunStageMapping(t *testing.T) {
	cases := []struct {
		progress int
		want     Stage
	}{
		{0, StageAnalyzing},
		{30, StageAnalyzing},
		{50, StageWriting},
		{80, StageOptimizing},
		{90, StageFinalizing},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, stageForProgress(tc.progress), "progress %d", tc.progress)
	}
}

func TestRunProgressMonotonicAcrossPolls(t *testing.T) {
	service := &scriptedService{
		jobID: "j1",
		script: []*models.Job{
			{ID: "j1", Status: models.JobRunning, Progress: 50},
			{ID: "j1", Status: models.JobRunning, Progress: 20},
			{ID: "j1", Status: models.JobCompleted, Progress: 100, Result: &models.Article{ArticleID: "a1"}},
		},
	}

	m := newTestMachine(service, instantPolicy(30))

	var observed []int
	m.sleep = func(ctx context.Context, d time.Duration) error {
		observed = append(observed, m.State().Progress)
		return nil
	}

	state := m.Run(context.Background(), testClientRequest())
	require.Equal(t, StageCompleted, state.Stage)

	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1], "observed progress never regresses")
	}
}

func TestRunTerminalExactlyOnce(t *testing.T) {
	service := &scriptedService{
		jobID: "j1",
		script: []*models.Job{
			{ID: "j1", Status: models.JobCompleted, Progress: 100, Result: &models.Article{ArticleID: "a1"}},
		},
	}

	m := newTestMachine(service, instantPolicy(30))
	state := m.Run(context.Background(), testClientRequest())
	require.Equal(t, StageCompleted, state.Stage)

	// A stray transition after the terminal stage is ignored.
	m.transition(StageError, 0, nil, "late failure")
	assert.Equal(t, StageCompleted, m.State().Stage)
	assert.Empty(t, m.State().Error)
}

func TestRunCancellation(t *testing.T) {
	service := &scriptedService{
		jobID:  "j1",
		script: []*models.Job{{ID: "j1", Status: models.JobRunning, Progress: 50}},
	}

	m := New(service, generate.NewOfflineProvider(), RetryPolicy{Interval: time.Hour, MaxAttempts: 30})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := m.Run(ctx, testClientRequest())
	assert.Equal(t, StageError, state.Stage)
	assert.Contains(t, state.Error, "cancelled")
}

func TestDefaultRetryPolicyApplied(t *testing.T) {
	m := New(&scriptedService{}, generate.NewOfflineProvider(), RetryPolicy{})
	assert.Equal(t, 10*time.Second, m.policy.Interval)
	assert.Equal(t, 30, m.policy.MaxAttempts)
}

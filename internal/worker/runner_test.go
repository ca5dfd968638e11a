package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coinscribe/coinscribe/internal/cache"
	"github.com/coinscribe/coinscribe/internal/generate"
	"github.com/coinscribe/coinscribe/internal/models"
	"github.com/coinscribe/coinscribe/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	topics    map[string]*models.Topic
	templates map[string]*models.Template
	saved     []*models.Article
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		topics: map[string]*models.Topic{
			"t1": {TopicID: "t1", Title: "Bitcoin Rally", Symbols: []string{"bitcoin"}},
		},
		templates: map[string]*models.Template{
			"market-analysis": {TemplateID: "market-analysis", Sections: []models.TemplateSection{
				{Type: models.SectionIntroduction, MinWords: 60},
				{Type: models.SectionMarketData, MinWords: 80},
				{Type: models.SectionConclusion, MinWords: 60},
			}},
		},
	}
}

func (f *fakeStore) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	t, ok := f.topics[topicID]
	if !ok {
		return nil, errors.New("topic not found")
	}
	return t, nil
}

func (f *fakeStore) GetTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	t, ok := f.templates[templateID]
	if !ok {
		return nil, errors.New("template not found")
	}
	return t, nil
}

func (f *fakeStore) SaveArticle(ctx context.Context, article *models.Article) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, article)
	return nil
}

type fakeMarket struct {
	batchErr  error
	globalErr error
}

func (f *fakeMarket) FetchBatch(ctx context.Context, symbols []string) ([]models.MarketDataPoint, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	points := make([]models.MarketDataPoint, len(symbols))
	for i, s := range symbols {
		points[i] = models.MarketDataPoint{Symbol: s, Price: 97500, Change24h: 2.1}
	}
	return points, nil
}

func (f *fakeMarket) FetchGlobalIndicators(ctx context.Context) (*models.GlobalIndicators, error) {
	if f.globalErr != nil {
		return nil, f.globalErr
	}
	return &models.GlobalIndicators{TotalMarketCap: 3.2e12, BTCDominance: 52}, nil
}

// failingPrimary always errors; the chain should absorb it.
type failingPrimary struct{}

func (failingPrimary) Name() string                       { return "openai" }
func (failingPrimary) Available(ctx context.Context) bool { return true }
func (failingPrimary) Generate(ctx context.Context, req generate.Request) (*generate.Draft, error) {
	return nil, errors.New("provider unavailable")
}

func newTestRunner(store *fakeStore, market *fakeMarket, cfg Config) *Runner {
	registry := generate.NewRegistry()
	registry.Register(failingPrimary{})
	chain := generate.NewChain(registry, "openai", generate.NewOfflineProvider())

	return NewRunner(store, market, chain, cache.NewService(cache.NewMemory()), ratelimit.NewMemoryLimiter(), cfg)
}

func TestSubmitRequiresTopic(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())

	_, err := r.Submit(context.Background(), "", "u1", "", models.GenerationSettings{})
	assert.ErrorIs(t, err, ErrMissingTopic)
}

func TestSubmitThrottled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 16
	r := newTestRunner(newFakeStore(), &fakeMarket{}, cfg)
	ctx := context.Background()

	for i := 0; i < DefaultSubmitLimit; i++ {
		_, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
		require.NoError(t, err, "submission %d", i+1)
	}

	_, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	assert.ErrorIs(t, err, ErrThrottled)
}

func TestSubmitQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	r := newTestRunner(newFakeStore(), &fakeMarket{}, cfg)
	ctx := context.Background()

	_, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	assert.ErrorIs(t, err, ErrQueueFull)

	// The rejected submission leaves no orphan job behind.
	_, err = r.Status(jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunJobCompletes(t *testing.T) {
	store := newFakeStore()
	r := newTestRunner(store, &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "market-analysis", models.GenerationSettings{})
	require.NoError(t, err)

	r.runJob(jobID)

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "complete", job.Stage)
	require.NotNil(t, job.Result)
	assert.Equal(t, generate.FallbackName, job.Result.GeneratedBy,
		"failed primary falls through to the offline provider")
	assert.NotEmpty(t, job.Result.Content)

	require.Len(t, store.saved, 1)
	assert.Equal(t, job.Result.ArticleID, store.saved[0].ArticleID)
}

func TestRunJobDefaultsSettings(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings().Style, job.Options.Style)
}

func TestRunJobUnknownTopicFails(t *testing.T) {
	store := newFakeStore()
	r := newTestRunner(store, &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "missing", "u1", "", models.GenerationSettings{})
	require.NoError(t, err, "topic existence is checked during execution, not submission")

	r.runJob(jobID)

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Nil(t, job.Result)
	assert.Empty(t, store.saved)
}

func TestRunJobMarketFailureFails(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{batchErr: errors.New("api down")}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	r.runJob(jobID)

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "market data")
}

func TestRunJobGlobalFailureIsTolerated(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{globalErr: errors.New("endpoint down")}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	r.runJob(jobID)

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)
	r.runJob(jobID)

	r.checkpoint(jobID, 10, "tampered")
	r.update(jobID, func(job *models.Job) { job.Status = models.JobFailed })

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "complete", job.Stage)
}

func TestCheckpointProgressIsMonotonic(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	r.checkpoint(jobID, 50, "market")
	r.checkpoint(jobID, 20, "topic")

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, 50, job.Progress, "progress never moves backwards")
	assert.Equal(t, "topic", job.Stage)
}

func TestStatusReturnsSnapshot(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	snapshot, err := r.Status(jobID)
	require.NoError(t, err)
	snapshot.Progress = 99

	fresh, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Progress, "mutating a snapshot must not touch the job")
}

func TestRecentArticlesListCapped(t *testing.T) {
	cacheSvc := cache.NewService(cache.NewMemory())
	r := NewRunner(newFakeStore(), &fakeMarket{},
		generate.NewChain(generate.NewRegistry(), "openai", generate.NewOfflineProvider()),
		cacheSvc, ratelimit.NewMemoryLimiter(), DefaultConfig())
	ctx := context.Background()

	for i := 0; i < RecentArticlesLimit+5; i++ {
		r.updateRecentList(ctx, &models.Article{
			ArticleID: fmt.Sprintf("a-%02d", i),
			Title:     fmt.Sprintf("Article %d", i),
			TopicID:   "t1",
			CreatedAt: time.Now(),
		})
	}

	var recent []models.ArticleRef
	require.True(t, cacheSvc.Get(ctx, cache.RecentArticlesKey, &recent))
	require.Len(t, recent, RecentArticlesLimit)
	assert.Equal(t, "a-54", recent[0].ArticleID, "newest entry sits at the front")
}

func TestStartStopDrainsCleanly(t *testing.T) {
	r := newTestRunner(newFakeStore(), &fakeMarket{}, DefaultConfig())
	ctx := context.Background()

	jobID, err := r.Submit(ctx, "t1", "u1", "", models.GenerationSettings{})
	require.NoError(t, err)

	r.Start()
	require.Eventually(t, func() bool {
		job, err := r.Status(jobID)
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)
	r.Stop()

	job, err := r.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
}

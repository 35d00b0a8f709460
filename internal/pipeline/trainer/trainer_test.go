package trainer

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/collector"
	"employability-workers/internal/pipeline/features"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/split"
	"employability-workers/internal/store/memory"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Services
// ==========================

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

type failingSource struct{ err error }

func (f failingSource) All(context.Context) ([]models.CanonicalRecord, error) { return nil, f.err }

// ==========================
// Test Helpers
// ==========================

var educationTexts = []string{"Bac", "Bac +2", "Bac +3", "Bac +5", "Doctorat"}
var contracts = []string{"CDI", "CDD", "Stage"}

func createTestSource(t *testing.T, postings int) *memory.Store {
	store := memory.New()
	c := collector.New(store, collector.NewDegrader(42), logger.NewNoOpLogger())
	for i := 0; i < postings; i++ {
		_, err := c.Accept(context.Background(), models.RawPosting{
			DetailURL:      fmt.Sprintf("https://jobs/%03d", i),
			Title:          "Poste",
			Experience:     []string{fmt.Sprintf("%d ans", 2+i%6)},
			SectorActivity: []string{fmt.Sprintf("Secteur %d", i%4)},
			Function:       []string{"Fonction"},
			Education:      educationTexts[i%len(educationTexts)],
			ContractType:   contracts[i%len(contracts)],
		})
		require.NoError(t, err)
	}
	return store
}

func createTestOrchestrator(t *testing.T, source Source, opts ...Option) (*Orchestrator, *artifacts.Store) {
	store := artifacts.NewStore(t.TempDir(), logger.NewTestLogger(t))
	n := 0
	opts = append(opts, WithVersionFunc(func() string {
		n++
		return fmt.Sprintf("run-%02d", n)
	}))
	o := New(source, store, Config{
		TestFraction: 0.2,
		Seed:         42,
		Params:       model.Params{Epochs: 300, LearningRate: 0.5},
	}, logger.NewTestLogger(t), opts...)
	return o, store
}

// ==========================
// Run
// ==========================

func TestRun_PersistsBundle(t *testing.T) {
	source := createTestSource(t, 40)
	o, store := createTestOrchestrator(t, source)
	assert.Equal(t, StageIdle, o.State())

	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StagePersisted, o.State())
	assert.Equal(t, "run-01", result.Version)
	assert.Equal(t, model.KindLogistic, result.Model)
	assert.Equal(t, 64, result.TrainSize)
	assert.Equal(t, 16, result.TestSize)
	assert.GreaterOrEqual(t, result.Evaluation.Accuracy, 0.0)
	assert.LessOrEqual(t, result.Evaluation.Accuracy, 1.0)

	bundle, err := store.LoadCurrent()
	require.NoError(t, err)
	assert.Equal(t, "run-01", bundle.Schema.Version)
	assert.Equal(t, 64, bundle.Manifest.TrainSize)
	assert.Contains(t, bundle.Manifest.Metrics, "f1")
	assert.Equal(t, result.Columns, bundle.Schema.Width())
}

func TestRun_ScalingFittedOnTrainPartitionOnly(t *testing.T) {
	source := createTestSource(t, 30)
	o, store := createTestOrchestrator(t, source)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	bundle, err := store.LoadCurrent()
	require.NoError(t, err)

	records, err := source.All(context.Background())
	require.NoError(t, err)
	labels := make([]int, len(records))
	for i, r := range records {
		labels[i] = r.Label()
	}
	trainIdx, _, err := split.Stratified(labels, 0.2, 42)
	require.NoError(t, err)

	vocab, err := features.BuildVocabulary(records)
	require.NoError(t, err)
	want, err := features.FitScaling(vocab, split.Pick(records, trainIdx))
	require.NoError(t, err)

	assert.Equal(t, want.Numeric, bundle.Schema.Numeric)
	assert.Equal(t, want.Columns, bundle.Schema.Columns)
}

func TestRun_ExplicitModel(t *testing.T) {
	o, store := createTestOrchestrator(t, createTestSource(t, 20))

	result, err := o.RunModel(context.Background(), model.KindMLP)
	require.NoError(t, err)
	assert.Equal(t, model.KindMLP, result.Model)

	bundle, err := store.LoadCurrent()
	require.NoError(t, err)
	c, err := bundle.Classifier()
	require.NoError(t, err)
	assert.IsType(t, &model.MLP{}, c)
}

// ==========================
// Aborts
// ==========================

func TestRun_AbortsOnExtractionFailure(t *testing.T) {
	boom := stderrors.New("connection refused")
	o, store := createTestOrchestrator(t, failingSource{err: boom})

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTrainingAborted)
	assert.ErrorIs(t, err, boom)

	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, string(StageExtracting), stdErr.Metadata["stage"])
	assert.Equal(t, StageIdle, o.State())

	_, err = store.Current()
	assert.ErrorIs(t, err, errors.ErrArtifactNotFound)
}

func TestRun_AbortsOnUnknownModelWithoutArtifacts(t *testing.T) {
	o, store := createTestOrchestrator(t, createTestSource(t, 10))

	_, err := o.RunModel(context.Background(), "xgboost")
	require.Error(t, err)
	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, string(StageFitting), stdErr.Metadata["stage"])

	versions, err := store.Versions()
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestRun_AbortsOnEmptyStore(t *testing.T) {
	o, _ := createTestOrchestrator(t, memory.New())

	_, err := o.Run(context.Background())
	require.Error(t, err)
	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, string(StageSchemaFitting), stdErr.Metadata["stage"])
}

func TestRun_KeepsPreviousBundleOnFailure(t *testing.T) {
	source := createTestSource(t, 10)
	o, store := createTestOrchestrator(t, source)

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Run(ctx)
	require.Error(t, err)

	current, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, "run-01", current)
}

// ==========================
// Notifications
// ==========================

func TestRun_NotifiesOnPersist(t *testing.T) {
	var published *sns.PublishInput
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			published = params
			return &sns.PublishOutput{}, nil
		},
	}
	notifier := NewSNSNotifier(mockSNS, "arn:aws:sns:eu-west-1:123:training")
	o, _ := createTestOrchestrator(t, createTestSource(t, 10), WithNotifier(notifier))

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, published)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:training", *published.TopicArn)
	assert.Contains(t, *published.Message, `"version":"run-01"`)
}

func TestRun_NotificationFailureDoesNotAbort(t *testing.T) {
	mockSNS := &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, stderrors.New("throttled")
		},
	}
	o, _ := createTestOrchestrator(t, createTestSource(t, 10), WithNotifier(NewSNSNotifier(mockSNS, "arn")))

	_, err := o.Run(context.Background())
	assert.NoError(t, err)
}

// ==========================
// Evaluate
// ==========================

func TestEvaluate(t *testing.T) {
	e := Evaluate([]float64{0.9, 0.2, 0.7, 0.4}, []float64{1, 0, 0, 1})

	assert.Equal(t, 0.5, e.Accuracy)
	assert.Equal(t, 0.5, e.Precision)
	assert.Equal(t, 0.5, e.Recall)
	assert.Equal(t, 0.5, e.F1)
	assert.Greater(t, e.LogLoss, 0.0)

	assert.Equal(t, Evaluation{}, Evaluate(nil, nil))
}

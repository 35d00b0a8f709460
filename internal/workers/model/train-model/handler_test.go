package trainmodel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/collector"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/predictor"
	"employability-workers/internal/pipeline/trainer"
	"employability-workers/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Services
// ==========================

type MockTrainer struct {
	mock.Mock
}

func (m *MockTrainer) Run(ctx context.Context) (*trainer.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trainer.Result), args.Error(1)
}

func (m *MockTrainer) RunModel(ctx context.Context, name string) (*trainer.Result, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trainer.Result), args.Error(1)
}

type MockReloader struct {
	mock.Mock
}

func (m *MockReloader) Reload() error {
	return m.Called().Error(0)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, tr Trainer, r Reloader) *Handler {
	return NewHandler(&Config{Timeout: time.Minute}, tr, r, logger.NewTestLogger(t))
}

func createTestResult() *trainer.Result {
	return &trainer.Result{
		Version:   "v1",
		Model:     "logistic",
		TrainSize: 16,
		TestSize:  4,
		Evaluation: trainer.Evaluation{
			Accuracy: 0.75, Precision: 0.8, Recall: 0.7, F1: 0.746, LogLoss: 0.5,
		},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_DefaultModel(t *testing.T) {
	tr := new(MockTrainer)
	tr.On("Run", mock.Anything).Return(createTestResult(), nil)
	r := new(MockReloader)
	r.On("Reload").Return(nil)

	out, err := createTestHandler(t, tr, r).Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, "v1", out.Version)
	assert.Equal(t, 0.75, out.Accuracy)
	assert.Equal(t, 16, out.TrainSize)
	assert.True(t, out.Reloaded)
	tr.AssertExpectations(t)
	r.AssertExpectations(t)
}

func TestHandler_Execute_ExplicitModel(t *testing.T) {
	tr := new(MockTrainer)
	res := createTestResult()
	res.Model = "mlp"
	tr.On("RunModel", mock.Anything, "mlp").Return(res, nil)

	out, err := createTestHandler(t, tr, nil).Execute(context.Background(), &Input{Model: "mlp"})
	require.NoError(t, err)
	assert.Equal(t, "mlp", out.Model)
	assert.False(t, out.Reloaded)
}

func TestHandler_Execute_ReloadFailureStillCompletes(t *testing.T) {
	tr := new(MockTrainer)
	tr.On("Run", mock.Anything).Return(createTestResult(), nil)
	r := new(MockReloader)
	r.On("Reload").Return(errors.NewArtifactNotFoundError("gone"))

	out, err := createTestHandler(t, tr, r).Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.False(t, out.Reloaded)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_TrainingAborted(t *testing.T) {
	tr := new(MockTrainer)
	tr.On("Run", mock.Anything).
		Return(nil, errors.NewTrainingAbortedError("Fitting", assert.AnError))
	r := new(MockReloader)

	_, err := createTestHandler(t, tr, r).Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTrainingAborted)
	r.AssertNotCalled(t, "Reload")

	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, "TRAINING_ABORTED", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)
}

// ==========================
// Integration Tests
// ==========================

func TestHandler_Execute_EndToEnd(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	store := memory.New()
	coll := collector.New(store, collector.NewDegrader(42), log)
	levels := []string{"Bac", "Bac +2", "Bac +3", "Bac +5"}
	for i := 0; i < 24; i++ {
		_, err := coll.Accept(ctx, models.RawPosting{
			DetailURL:      fmt.Sprintf("https://jobs/%02d", i),
			Experience:     []string{fmt.Sprintf("%d ans", 1+i%5)},
			SectorActivity: []string{fmt.Sprintf("S%d", i%3)},
			Education:      levels[i%len(levels)],
			ContractType:   "CDI",
		})
		require.NoError(t, err)
	}

	bundles := artifacts.NewStore(t.TempDir(), log)
	orch := trainer.New(store, bundles, trainer.Config{
		TestFraction: 0.25,
		Seed:         7,
		Params:       model.Params{Epochs: 50, LearningRate: 0.3},
	}, log)
	pred := predictor.New(bundles, log)

	out, err := createTestHandler(t, orch, pred).Execute(ctx, &Input{})
	require.NoError(t, err)
	assert.True(t, out.Reloaded)
	assert.Equal(t, out.Version, pred.Version())
	assert.Equal(t, 48, out.TrainSize+out.TestSize)
}

package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	ip "employability-workers/internal/workers/ingestion/ingest-postings"
	rcu "employability-workers/internal/workers/ingestion/register-crawl-url"
	pe "employability-workers/internal/workers/model/predict-employability"
	tm "employability-workers/internal/workers/model/train-model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedRegistry_CoversEveryWorker(t *testing.T) {
	reg, err := LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{ip.TaskType, rcu.TaskType, tm.TaskType, pe.TaskType} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.Equal(t, StatusCompleted, a.Status)
		assert.NotEmpty(t, a.ErrorCodes)
	}

	a, _ := reg.Find(tm.TaskType)
	d, err := a.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		activities []Activity
	}{
		{name: "missing task type", activities: []Activity{{ID: "a"}}},
		{name: "duplicate id", activities: []Activity{{ID: "a", TaskType: "x"}, {ID: "a", TaskType: "y"}}},
		{name: "duplicate task type", activities: []Activity{{ID: "a", TaskType: "x"}, {ID: "b", TaskType: "x"}}},
		{name: "bad timeout", activities: []Activity{{ID: "a", TaskType: "x", Timeout: "ten seconds"}}},
		{name: "unknown status", activities: []Activity{{ID: "a", TaskType: "x", Status: "shipped"}}},
		{name: "negative retries", activities: []Activity{{ID: "a", TaskType: "x", Retries: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: tt.activities}
			assert.Error(t, reg.Validate())
		})
	}
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	reg, err := LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)

	a, ok := reg.Find(pe.TaskType)
	require.True(t, ok)
	a.Retries = 7
	a.Status = StatusDeprecated

	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())
	got, ok := loaded.Find(pe.TaskType)
	require.True(t, ok)
	assert.Equal(t, 7, got.Retries)
	assert.Equal(t, StatusDeprecated, got.Status)
	assert.Len(t, loaded.Activities, len(reg.Activities))
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"employability-workers/internal/api"
	"employability-workers/internal/common/camunda"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/crawler"
	"employability-workers/internal/pipeline/artifacts"
	"employability-workers/internal/pipeline/collector"
	"employability-workers/internal/pipeline/model"
	"employability-workers/internal/pipeline/predictor"
	"employability-workers/internal/pipeline/trainer"
	"employability-workers/internal/store/memory"
	ip "employability-workers/internal/workers/ingestion/ingest-postings"
	rcu "employability-workers/internal/workers/ingestion/register-crawl-url"
	pe "employability-workers/internal/workers/model/predict-employability"
	tm "employability-workers/internal/workers/model/train-model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pages           = 3
	postingsPerPage = 8
	bpmnProcessID   = "employability-pipeline"
	bpmnFile        = "../../bpmn/employability-pipeline.bpmn"
)

var (
	sectors   = []string{"Informatique", "Banque", "BTP", "Télécom"}
	functions = []string{"Data", "Comptabilité", "Commercial"}
	levels    = []string{"Bac", "Bac +2", "Bac +3", "Bac +5 et plus", "Doctorat"}
	contracts = []string{"CDI", "CDD", "Stage"}
)

// ==========================
// Test Environment
// ==========================

type pipeline struct {
	store     *memory.Store
	urls      *memory.URLRepository
	predictor *predictor.Predictor

	register *rcu.Handler
	ingest   *ip.Handler
	train    *tm.Handler
	predict  *pe.Handler

	api *httptest.Server
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

// listingPage renders one result page in the job board's markup.
func listingPage(page int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul id="post-data">`)
	for i := 0; i < postingsPerPage; i++ {
		n := page*postingsPerPage + i
		fmt.Fprintf(&b, `
<li class="post-id">
  <h2><a class="titreJob" href="/fr/offre-emploi-poste-%d.html">Poste %d | Casablanca</a></h2>
  <div class="info"><span>Entreprise %d</span></div>
  <em class="date"><span>01/09/2024</span> - <span>01/10/2024</span></em>
  <em>Postes proposés: <span>%d</span></em>
  <ul>
    <li>Secteur d'activité : <a href="#">%s</a></li>
    <li>Fonction : <a href="#">%s</a></li>
    <li>Expérience requise : <a href="#">De %d à %d ans</a></li>
    <li>Niveau d'étude demandé : <a href="#">%s</a></li>
    <li>Type de contrat proposé : <a href="#">%s</a></li>
  </ul>
</li>`,
			n, n, n%5, 1+n%3,
			sectors[n%len(sectors)],
			functions[n%len(functions)],
			1+n%4, 3+n%6,
			levels[n%len(levels)],
			contracts[n%len(contracts)],
		)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func createTestJobBoard(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /emploi/offres", func(w http.ResponseWriter, r *http.Request) {
		p, err := strconv.Atoi(r.URL.Query().Get("p"))
		if err != nil || p < 0 || p >= pages {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingPage(p)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func createTestPipeline(t *testing.T) *pipeline {
	log := logger.NewTestLogger(t)

	store := memory.New()
	urls := memory.NewURLRepository()
	coll := collector.New(store, collector.NewDegrader(42), log)
	fetcher := crawler.NewFetcher(5*time.Second, "e2e-agent")
	crawl := crawler.New(fetcher, 2, log)

	bundles := artifacts.NewStore(t.TempDir(), log)
	pred := predictor.New(bundles, log)
	orch := trainer.New(store, bundles, trainer.Config{
		TestFraction: 0.25,
		Seed:         11,
		Params:       model.Params{Epochs: 60, LearningRate: 0.3},
	}, log)

	p := &pipeline{
		store:     store,
		urls:      urls,
		predictor: pred,
		register:  rcu.NewHandler(&rcu.Config{Timeout: 10 * time.Second}, urls, log),
		ingest:    ip.NewHandler(&ip.Config{Timeout: time.Minute}, crawl, fetcher, urls, coll, log),
		train:     tm.NewHandler(&tm.Config{Timeout: time.Minute}, orch, pred, log),
		predict:   pe.NewHandler(&pe.Config{Timeout: 5 * time.Second}, pred, log),
	}

	server := api.NewServer(pred, urls, map[string]api.Pinger{"store": store}, log)
	p.api = httptest.NewServer(server.Routes())
	t.Cleanup(p.api.Close)
	return p
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res, out
}

// ==========================
// In-Process Pipeline
// ==========================

func TestPipeline_CrawlTrainPredict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	ctx := context.Background()
	board := createTestJobBoard(t)
	p := createTestPipeline(t)

	t.Run("register crawl urls", func(t *testing.T) {
		for i := 0; i < pages; i++ {
			out, err := p.register.Execute(ctx, &rcu.Input{URL: fmt.Sprintf("%s/emploi/offres?p=%d", board.URL, i)})
			require.NoError(t, err)
			assert.True(t, out.Added)
		}
		// one dead page and one duplicate registration
		out, err := p.register.Execute(ctx, &rcu.Input{URL: board.URL + "/emploi/offres?p=99"})
		require.NoError(t, err)
		assert.True(t, out.Added)
		out, err = p.register.Execute(ctx, &rcu.Input{URL: board.URL + "/emploi/offres?p=0"})
		require.NoError(t, err)
		assert.False(t, out.Added)

		listed, err := p.urls.List(ctx)
		require.NoError(t, err)
		assert.Len(t, listed, pages+1)
	})

	t.Run("ingest registered pages", func(t *testing.T) {
		out, err := p.ingest.Execute(ctx, &ip.Input{})
		require.NoError(t, err)
		assert.Equal(t, pages+1, out.Pages)
		assert.Equal(t, 1, out.FailedPages)
		assert.Equal(t, pages*postingsPerPage, out.Postings)
		assert.Equal(t, pages*postingsPerPage, out.Accepted)
		assert.Equal(t, 2*pages*postingsPerPage, out.RecordsWritten)

		again, err := p.ingest.Execute(ctx, &ip.Input{})
		require.NoError(t, err)
		assert.Equal(t, 0, again.Accepted)
		assert.Equal(t, pages*postingsPerPage, again.Duplicates)

		records, err := p.store.All(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2*pages*postingsPerPage)
	})

	t.Run("api not ready before training", func(t *testing.T) {
		res, err := http.Get(p.api.URL + "/ready")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	})

	t.Run("train model", func(t *testing.T) {
		out, err := p.train.Execute(ctx, &tm.Input{})
		require.NoError(t, err)
		assert.True(t, out.Reloaded)
		assert.Equal(t, model.KindLogistic, out.Model)
		assert.Equal(t, 2*pages*postingsPerPage, out.TrainSize+out.TestSize)
		assert.Equal(t, out.Version, p.predictor.Version())
		assert.GreaterOrEqual(t, out.Accuracy, 0.0)
		assert.LessOrEqual(t, out.Accuracy, 1.0)
	})

	features := map[string]interface{}{
		"experience_required":  []interface{}{[]interface{}{2.0, 5.0}},
		"study_level_required": "Bac +5 et plus",
		"sector_activity":      []interface{}{"Informatique"},
		"function":             "Data",
		"contract_type":        "CDI",
	}

	t.Run("predict through worker", func(t *testing.T) {
		out, err := p.predict.Execute(ctx, &pe.Input{Features: features})
		require.NoError(t, err)
		assert.Contains(t, []int{0, 1}, out.Prediction)
		assert.Equal(t, p.predictor.Version(), out.ModelVersion)
	})

	t.Run("predict through api", func(t *testing.T) {
		res, err := http.Get(p.api.URL + "/ready")
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)

		res, out := postJSON(t, p.api.URL+"/predict", features)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, []interface{}{float64(0), float64(1)}, out["prediction"])

		res, out = postJSON(t, p.api.URL+"/predict", map[string]interface{}{"experience_required": true})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "experience_required", out["field"])
	})
}

// ==========================
// Zeebe Round Trip
// ==========================

// TestZeebe_PredictProcess needs a running broker, e.g.
// ZEEBE_ADDRESS=localhost:26500 go test ./test/e2e/...
func TestZeebe_PredictProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	address := os.Getenv("ZEEBE_ADDRESS")
	if address == "" {
		t.Skip("ZEEBE_ADDRESS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	board := createTestJobBoard(t)
	p := createTestPipeline(t)

	client, err := camunda.NewClient(address, 10*time.Second)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.HealthCheck(ctx), "broker not reachable")

	err = client.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := client.GetClient().NewDeployResourceCommand().AddResourceFile(bpmnFile).Send(ctx)
		return err
	}, "deploy process")
	require.NoError(t, err)

	zapLog := zap.NewNop()
	handlers := map[string]camunda.JobHandler{
		rcu.TaskType: p.register,
		ip.TaskType:  p.ingest,
		tm.TaskType:  p.train,
		pe.TaskType:  p.predict,
	}
	for taskType, h := range handlers {
		w := camunda.NewWorker(client.GetClient(), taskType, 1, time.Minute, h, zapLog)
		defer w.Stop(context.Background())
	}

	result, err := client.GetClient().NewCreateInstanceCommand().
		BPMNProcessId(bpmnProcessID).
		LatestVersion().
		VariablesFromMap(map[string]interface{}{
			"url": board.URL + "/emploi/offres?p=0",
			"features": map[string]interface{}{
				"experience_required":  []interface{}{[]interface{}{1.0, 3.0}},
				"study_level_required": "Bac +2",
				"contract_type":        "CDD",
			},
		})
	require.NoError(t, err)

	res, err := result.WithResult().Send(ctx)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.GetVariables()), &vars))
	assert.Contains(t, []interface{}{float64(0), float64(1)}, vars["prediction"])
	assert.NotEmpty(t, vars["modelVersion"])
}

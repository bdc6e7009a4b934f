package pollination

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/observability"
)

const (
	testKey           = "pk-test"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testRecipe = domain.RecipeRef{Owner: "ladybug-tools", Name: "direct-sun-hours", Tag: "0.5.3"}

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     testKey,
		owner:      "ladybug-tools",
		project:    "demo",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListProjectArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/ladybug-tools/demo/artifacts", r.URL.Path)
		assert.Equal(t, "weather.wea", r.URL.Query().Get("key"))
		assert.Equal(t, testKey, r.Header.Get(AuthHeader))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"key":"weather.wea","file_type":"file"}]`))
	}))
	defer srv.Close()

	listing, err := testClient(srv.URL).ListProjectArtifacts(context.Background(), "weather.wea")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"key":"weather.wea","file_type":"file"}]`, string(listing))
}

func TestClient_GetRecipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/registries/ladybug-tools/recipe/direct-sun-hours/0.5.3/json", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{
			"metadata": {"name": "direct-sun-hours", "tag": "0.5.3", "description": "Direct sun hours"},
			"inputs": [
				{"name": "model", "type": "DAGFileInput", "required": true},
				{"name": "cpu-count", "type": "DAGIntegerInput", "default": 50}
			]
		}`))
	}))
	defer srv.Close()

	recipe, err := testClient(srv.URL).GetRecipe(context.Background(), testRecipe)
	require.NoError(t, err)
	assert.Equal(t, testRecipe, recipe.Ref)
	assert.Equal(t, "Direct sun hours", recipe.Description)
	require.Len(t, recipe.Inputs, 2)
	assert.True(t, recipe.Inputs[0].Required)
	assert.InDelta(t, 50, recipe.Inputs[1].Default, 0)
}

func TestClient_CreateStudy(t *testing.T) {
	var got createJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projects/ladybug-tools/demo/jobs", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, createdResponse{ID: "job-42"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	study, err := c.CreateStudy(context.Background(), testRecipe, "roof study", domain.StudyInputs{"timestep": 1, "north": 0})
	require.NoError(t, err)

	assert.Equal(t, "job-42", study.ID)
	assert.Equal(t, "roof study", study.Name)
	assert.Equal(t, &testRecipe, study.Recipe)

	assert.Equal(t, srv.URL+"/registries/ladybug-tools/recipe/direct-sun-hours/0.5.3", got.Source)
	require.Len(t, got.Arguments, 1)
	require.Len(t, got.Arguments[0], 2)
	assert.Equal(t, "north", got.Arguments[0][0].Name)
	assert.Equal(t, "timestep", got.Arguments[0][1].Name)
}

func TestClient_CreateStudy_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]string{})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateStudy(context.Background(), testRecipe, "", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestClient_ListAndGetStudies(t *testing.T) {
	const jobJSON = `{
		"id": "job-1",
		"spec": {"name": "daylight"},
		"status": {"status": "Running", "runs_pending": 1, "runs_running": 2, "runs_completed": 3, "runs_failed": 0},
		"recipe": {"metadata": {"name": "direct-sun-hours", "tag": "0.5.3"}, "owner": {"name": "ladybug-tools"}}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		switch r.URL.Path {
		case "/projects/ladybug-tools/demo/jobs":
			assert.Equal(t, "25", r.URL.Query().Get("per-page"))
			_, _ = w.Write([]byte(`{"resources": [` + jobJSON + `], "page": 1, "total_count": 1}`))
		case "/projects/ladybug-tools/demo/jobs/job-1":
			_, _ = w.Write([]byte(jobJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	studies, err := c.ListStudies(context.Background())
	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, "daylight", studies[0].Name)

	study, err := c.GetStudy(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "Running", study.Status.Status)
	assert.Equal(t, 3, study.Status.RunsCompleted)
	assert.Equal(t, &testRecipe, study.Recipe)

	_, err = c.GetStudy(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClient_ListRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/ladybug-tools/demo/runs", r.URL.Path)
		assert.Equal(t, "job-1", r.URL.Query().Get("job_id"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"resources": [
			{"id": "run-1", "status": {"status": "Succeeded", "job_id": "job-1"}},
			{"id": "run-2", "status": {"status": "Running"}}
		]}`))
	}))
	defer srv.Close()

	runs, err := testClient(srv.URL).ListRuns(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Run{
		{ID: "run-1", JobID: "job-1", Status: "Succeeded"},
		{ID: "run-2", JobID: "job-1", Status: "Running"},
	}, runs)
}

func TestClient_ListStudyArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/ladybug-tools/demo/jobs/job-1/artifacts", r.URL.Path)
		assert.Equal(t, "runs", r.URL.Query().Get("path"))
		writeJSON(t, w, []domain.Artifact{{Key: "runs/grid.vtkjs", FileName: "grid.vtkjs", FileType: "file", Size: 12}})
	}))
	defer srv.Close()

	artifacts, err := testClient(srv.URL).ListStudyArtifacts(context.Background(), "job-1", "runs")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "vtkjs", artifacts[0].Extension())
}

func TestClient_DownloadAndFetch(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("GET /projects/ladybug-tools/demo/jobs/job-1/artifacts/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "runs/grid.vtkjs", r.URL.Query().Get("path"))
		writeJSON(t, w, srv.URL+"/signed/grid.vtkjs?sig=abc")
	})
	mux.HandleFunc("GET /signed/grid.vtkjs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testKey, r.Header.Get(AuthHeader))
		assert.Equal(t, "abc", r.URL.Query().Get("sig"))
		_, _ = w.Write([]byte("vtk-bytes"))
	})

	c := testClient(srv.URL)
	signed, err := c.DownloadURL(context.Background(), "job-1", "runs/grid.vtkjs")
	require.NoError(t, err)

	data, err := c.Fetch(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "vtk-bytes", string(data))

	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.CloudRequests.WithLabelValues("signed_fetch", "success")), 0)
}

func TestClient_Fetch_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := "0123456789"
		if r.URL.Path == "/signed/big" {
			body += "!"
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.maxArtifact = 10

	data, err := c.Fetch(context.Background(), srv.URL+"/signed/exact")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	data, err = c.Fetch(context.Background(), srv.URL+"/signed/big")
	require.ErrorIs(t, err, ErrArtifactTooLarge)
	assert.Nil(t, data, "a truncated body is never returned")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.CloudRequests.WithLabelValues("signed_fetch", "error")), 0)
}

func TestClient_Fetch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("expired signature"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), srv.URL+"/signed")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Contains(t, err.Error(), "expired signature")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.CloudRequests.WithLabelValues("signed_fetch", "error")), 0)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListStudies(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_RetriesTransientGET(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, jobPage{Resources: []job{{ID: "job-1"}}})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.retries = 2
	c.backoff = time.Millisecond

	studies, err := c.ListStudies(context.Background())
	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.CloudRequests.WithLabelValues("list_studies", "success")), 0)
}

func TestClient_DoesNotRetryClientErrorsOrPOST(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.retries = 3
	c.backoff = time.Millisecond

	_, err := c.GetStudy(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.CreateStudy(context.Background(), testRecipe, "x", domain.StudyInputs{})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte("{invalid"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetStudy(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.ListStudies(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures are not API errors")
}

func TestClient_NoKeyOmitsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[http.CanonicalHeaderKey(AuthHeader)]
		assert.False(t, present)
		writeJSON(t, w, []domain.Artifact{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "ladybug-tools", "demo", time.Second, observability.NewMetricsForTesting(), slog.Default())
	_, err := c.ListStudyArtifacts(context.Background(), "job-1", "")
	require.NoError(t, err)
}

// Package pollination is the REST client for the Pollination cloud API:
// recipes, studies, runs and study artifacts of one project.
package pollination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/observability"
)

// AuthHeader carries the API key on every request, including signed URL fetches.
const AuthHeader = "x-pollination-token"

const (
	// maxArtifactBytes caps a downloaded artifact body.
	maxArtifactBytes = 256 << 20

	defaultRetries = 2
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// APIError is a non-2xx answer from the cloud API.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pollination API error: %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// HTTPStatus is the status code the API answered with.
func (e *APIError) HTTPStatus() int { return e.Status }

// Client talks to the Pollination REST API for one project.
type Client struct {
	baseURL    string
	apiKey     string
	owner      string
	project    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger

	// GET requests failing with a transport error or a 5xx/429 answer are
	// retried up to retries times.
	retries int
	backoff time.Duration

	// maxArtifact caps a downloaded body; zero means maxArtifactBytes.
	maxArtifact int64
}

// ErrArtifactTooLarge is returned by Fetch for bodies over the size cap.
var ErrArtifactTooLarge = errors.New("artifact exceeds size limit")

// NewClient creates a client scoped to owner/project.
func NewClient(baseURL, apiKey, owner, project string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		owner:   owner,
		project: project,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
		retries: defaultRetries,
		backoff: initialBackoff,
	}
}

// ListProjectArtifacts queries the project artifacts stored under key and
// returns the raw response body.
func (c *Client) ListProjectArtifacts(ctx context.Context, key string) (domain.ArtifactListing, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, "project_artifacts", http.MethodGet, c.projectPath("artifacts"), url.Values{"key": {key}}, nil, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// GetRecipe fetches a recipe definition with its input schema.
func (c *Client) GetRecipe(ctx context.Context, ref domain.RecipeRef) (domain.Recipe, error) {
	p := fmt.Sprintf("/registries/%s/recipe/%s/%s/json", url.PathEscape(ref.Owner), url.PathEscape(ref.Name), url.PathEscape(ref.Tag))

	var resp recipeResponse
	if err := c.doJSON(ctx, "recipe", http.MethodGet, p, nil, nil, &resp); err != nil {
		return domain.Recipe{}, err
	}
	return domain.Recipe{
		Ref:         ref,
		Description: resp.Metadata.Description,
		Inputs:      resp.Inputs,
	}, nil
}

// CreateStudy schedules a new study of recipe with the given inputs.
func (c *Client) CreateStudy(ctx context.Context, recipe domain.RecipeRef, name string, inputs domain.StudyInputs) (domain.Study, error) {
	args := make([]jobArgument, 0, len(inputs))
	for k, v := range inputs {
		args = append(args, jobArgument{Type: "JobArgument", Name: k, Value: v})
	}
	sortArguments(args)

	body := createJobRequest{
		Source:    recipe.Source(c.baseURL),
		Name:      name,
		Arguments: [][]jobArgument{args},
	}

	var created createdResponse
	if err := c.doJSON(ctx, "create_study", http.MethodPost, c.projectPath("jobs"), nil, body, &created); err != nil {
		return domain.Study{}, err
	}
	if created.ID == "" {
		return domain.Study{}, &APIError{Endpoint: "create_study", Status: http.StatusOK, Body: "response carries no study id"}
	}
	ref := recipe
	return domain.Study{ID: created.ID, Name: name, Status: domain.StudyStatus{Status: "Created"}, Recipe: &ref}, nil
}

// ListStudies returns the most recent studies of the project.
func (c *Client) ListStudies(ctx context.Context) ([]domain.Study, error) {
	var page jobPage
	if err := c.doJSON(ctx, "list_studies", http.MethodGet, c.projectPath("jobs"), url.Values{"page": {"1"}, "per-page": {"25"}}, nil, &page); err != nil {
		return nil, err
	}
	studies := make([]domain.Study, 0, len(page.Resources))
	for _, j := range page.Resources {
		studies = append(studies, j.toDomain())
	}
	return studies, nil
}

// GetStudy fetches one study by id.
func (c *Client) GetStudy(ctx context.Context, id string) (domain.Study, error) {
	var j job
	if err := c.doJSON(ctx, "get_study", http.MethodGet, c.projectPath("jobs", id), nil, nil, &j); err != nil {
		return domain.Study{}, err
	}
	return j.toDomain(), nil
}

// ListRuns returns the runs of a study.
func (c *Client) ListRuns(ctx context.Context, studyID string) ([]domain.Run, error) {
	var page runPage
	if err := c.doJSON(ctx, "list_runs", http.MethodGet, c.projectPath("runs"), url.Values{"job_id": {studyID}}, nil, &page); err != nil {
		return nil, err
	}
	runs := make([]domain.Run, 0, len(page.Resources))
	for _, r := range page.Resources {
		jobID := r.Status.JobID
		if jobID == "" {
			jobID = studyID
		}
		runs = append(runs, domain.Run{ID: r.ID, JobID: jobID, Status: r.Status.Status})
	}
	return runs, nil
}

// ListStudyArtifacts lists the files of a study under path.
func (c *Client) ListStudyArtifacts(ctx context.Context, studyID, dir string) ([]domain.Artifact, error) {
	q := url.Values{}
	if dir != "" {
		q.Set("path", dir)
	}
	var artifacts []domain.Artifact
	if err := c.doJSON(ctx, "study_artifacts", http.MethodGet, c.projectPath("jobs", studyID, "artifacts"), q, nil, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// DownloadURL asks for a signed URL of one study artifact.
func (c *Client) DownloadURL(ctx context.Context, studyID, key string) (string, error) {
	var signed string
	q := url.Values{"path": {key}}
	if err := c.doJSON(ctx, "artifact_download", http.MethodGet, c.projectPath("jobs", studyID, "artifacts", "download"), q, nil, &signed); err != nil {
		return "", err
	}
	if signed == "" {
		return "", &APIError{Endpoint: "artifact_download", Status: http.StatusOK, Body: "empty signed url"}
	}
	return signed, nil
}

// Fetch downloads the body behind a signed URL, sending the auth headers.
// Any status other than 200 is an error.
func (c *Client) Fetch(ctx context.Context, signedURL string) ([]byte, error) {
	const endpoint = "signed_fetch"
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, start, err)
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := newAPIError(endpoint, resp)
		c.observe(endpoint, start, err)
		return nil, err
	}

	limit := c.maxArtifact
	if limit <= 0 {
		limit = maxArtifactBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err == nil && int64(len(data)) > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrArtifactTooLarge, limit)
	}
	c.observe(endpoint, start, err)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (c *Client) projectPath(parts ...string) string {
	p := "/projects/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.project)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(AuthHeader, c.apiKey)
	}
}

// doJSON sends a request to the API and decodes a 2xx JSON answer into out.
func (c *Client) doJSON(ctx context.Context, endpoint, method, p string, query url.Values, in, out any) error {
	start := time.Now()
	err := c.do(ctx, endpoint, method, p, query, in, out)

	backoff := c.backoff
	for attempt := 1; attempt <= c.retries && method == http.MethodGet && retryable(err); attempt++ {
		c.logger.Debug("retrying cloud request", "endpoint", endpoint, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
		err = c.do(ctx, endpoint, method, p, query, in, out)
	}

	c.observe(endpoint, start, err)
	return err
}

// retryable reports whether err is a transient failure: a transport error or
// a 5xx/429 answer. Cancellation and decode failures are final.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError || apiErr.Status == http.StatusTooManyRequests
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) do(ctx context.Context, endpoint, method, p string, query url.Values, in, out any) error {
	u := c.baseURL + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(endpoint, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Warn("cloud request failed", "endpoint", endpoint, "error", err)
	}
	c.metrics.CloudRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.CloudAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func newAPIError(endpoint string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

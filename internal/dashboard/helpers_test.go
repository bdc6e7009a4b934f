package dashboard_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/early-design-app/internal/dashboard"
	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/observability"
	"github.com/couchcryptid/early-design-app/internal/scratch"
	"github.com/couchcryptid/early-design-app/internal/session"
)

var defaultRecipe = domain.RecipeRef{Owner: "ladybug-tools", Name: "direct-sun-hours", Tag: "latest"}

// --- fakes ---

type apiError struct{ status int }

func (e *apiError) Error() string   { return fmt.Sprintf("status %d", e.status) }
func (e *apiError) HTTPStatus() int { return e.status }

// fakeCloud serves canned answers. Nil funcs fall back to defaults.
type fakeCloud struct {
	mu       sync.Mutex
	studies  map[string]domain.Study
	runs     map[string][]domain.Run
	files    map[string][]domain.Artifact
	bodies   map[string][]byte
	listing  domain.ArtifactListing
	created  []domain.StudyInputs
	fetch    func(ctx context.Context, signedURL string) ([]byte, error)
	signed   func(key string)
	fetches  int
	listErr  error
	recipeOK bool
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		studies:  map[string]domain.Study{},
		runs:     map[string][]domain.Run{},
		files:    map[string][]domain.Artifact{},
		bodies:   map[string][]byte{},
		recipeOK: true,
	}
}

func (f *fakeCloud) ListProjectArtifacts(context.Context, string) (domain.ArtifactListing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

func (f *fakeCloud) GetRecipe(_ context.Context, ref domain.RecipeRef) (domain.Recipe, error) {
	if !f.recipeOK {
		return domain.Recipe{}, &apiError{status: 404}
	}
	return domain.Recipe{Ref: ref, Inputs: []domain.RecipeInput{
		{Name: "model", Type: "DAGFileInput", Required: true},
		{Name: "timestep", Type: "DAGIntegerInput", Default: 4.0},
		{Name: "grid-filter", Type: "DAGStringInput", Default: "room"},
	}}, nil
}

func (f *fakeCloud) CreateStudy(_ context.Context, recipe domain.RecipeRef, name string, inputs domain.StudyInputs) (domain.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("job-%d", len(f.created)+1)
	f.created = append(f.created, inputs)
	s := domain.Study{ID: id, Name: name, Recipe: &recipe, Status: domain.StudyStatus{Status: "Created"}}
	f.studies[id] = s
	return s, nil
}

func (f *fakeCloud) ListStudies(context.Context) ([]domain.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Study, 0, len(f.studies))
	for _, s := range f.studies {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeCloud) GetStudy(_ context.Context, id string) (domain.Study, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.studies[id]
	if !ok {
		return domain.Study{}, &apiError{status: 404}
	}
	return s, nil
}

func (f *fakeCloud) ListRuns(_ context.Context, studyID string) ([]domain.Run, error) {
	return f.runs[studyID], nil
}

func (f *fakeCloud) ListStudyArtifacts(_ context.Context, studyID, _ string) ([]domain.Artifact, error) {
	return f.files[studyID], nil
}

func (f *fakeCloud) DownloadURL(_ context.Context, studyID, key string) (string, error) {
	if f.signed != nil {
		f.signed(key)
	}
	return "https://signed.example/" + studyID + "/" + key, nil
}

func (f *fakeCloud) Fetch(ctx context.Context, signedURL string) ([]byte, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.fetch != nil {
		return f.fetch(ctx, signedURL)
	}
	body, ok := f.bodies[signedURL[strings.LastIndex(signedURL, "/")+1:]]
	if !ok {
		return nil, &apiError{status: 403}
	}
	return body, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- harness ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	svc     *dashboard.Service
	cloud   *fakeCloud
	store   *scratch.MemoryStore
	pub     *recordingPublisher
	metrics *observability.Metrics
	sess    *session.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cloud:   newFakeCloud(),
		store:   scratch.NewMemoryStore(),
		pub:     &recordingPublisher{},
		metrics: observability.NewMetricsForTesting(),
	}
	logger := discardLogger()

	svc, err := dashboard.New(h.cloud, h.store, h.pub, dashboard.Options{
		DefaultRecipe: defaultRecipe,
		DefaultInputs: domain.StudyInputs{"timestep": 1.0, "cpu-count": 50.0},
		EPWCacheSize:  4,
	}, logger, h.metrics)
	require.NoError(t, err)
	h.svc = svc
	t.Cleanup(svc.Close)

	sessions := session.NewStore(0, nil, logger, h.metrics)
	h.sess = sessions.Create()
	return h
}

// withStudy selects a recipe and creates a study with one vtkjs and one csv artifact.
func (h *harness) withStudy(t *testing.T) domain.Study {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.Recipe(ctx, h.sess)
	require.NoError(t, err)
	study, err := h.svc.SubmitStudy(ctx, h.sess, "test study", nil)
	require.NoError(t, err)

	h.cloud.files[study.ID] = []domain.Artifact{
		{Key: "results/grid.vtkjs", FileName: "grid.vtkjs"},
		{Key: "results/summary.csv", FileName: "summary.csv"},
	}
	h.cloud.bodies["grid.vtkjs"] = []byte("vtk-scene")
	h.cloud.bodies["summary.csv"] = []byte("a,b\n1,2\n")
	return study
}

const denverLocation = "LOCATION,Denver Intl Ap,CO,USA,TMY3,725650,39.83,-104.65,-7.0,1650.0"

// buildEPW renders a full non-leap year for the given LOCATION line.
func buildEPW(locationLine string) []byte {
	days := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

	var b strings.Builder
	b.WriteString(locationLine + "\n")
	for _, h := range []string{
		"DESIGN CONDITIONS,0",
		"TYPICAL/EXTREME PERIODS,0",
		"GROUND TEMPERATURES,0",
		"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0",
		"COMMENTS 1,test fixture",
		"COMMENTS 2,",
		"DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31",
	} {
		b.WriteString(h + "\n")
	}
	for m, n := range days {
		for d := 1; d <= n; d++ {
			for h := 1; h <= 24; h++ {
				fmt.Fprintf(&b, "2001,%d,%d,%d,60,A7A7,%.1f,-2.0,50,101325,0,0,300,%d,%d,%d,0,0,0,0,%d,3.5,5,3,16.1,77777,9,999999999,10,0.1,0,88,0.2,0.0,1.0\n",
					m+1, d, h, float64(m*2), h*10, h*5, h*2, h*15)
			}
		}
	}
	return []byte(b.String())
}

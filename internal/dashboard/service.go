// Package dashboard orchestrates the early-design dashboard: weather
// ingestion and derived files, the cloud study wizard, and the artifact
// payload served for download and preview.
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"path"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/early-design-app/internal/assets"
	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/lru"
	"github.com/couchcryptid/early-design-app/internal/observability"
	"github.com/couchcryptid/early-design-app/internal/scratch"
	"github.com/couchcryptid/early-design-app/internal/session"
)

const (
	sunpathRadius  = 100
	publishTimeout = 5 * time.Second
	eventBuffer    = 256

	// shortIDLen hex digits of a weather identity name its scratch directories.
	shortIDLen = 16
)

// Cloud is the subset of the Pollination API the wizard drives.
type Cloud interface {
	ListProjectArtifacts(ctx context.Context, key string) (domain.ArtifactListing, error)
	GetRecipe(ctx context.Context, ref domain.RecipeRef) (domain.Recipe, error)
	CreateStudy(ctx context.Context, recipe domain.RecipeRef, name string, inputs domain.StudyInputs) (domain.Study, error)
	ListStudies(ctx context.Context) ([]domain.Study, error)
	GetStudy(ctx context.Context, id string) (domain.Study, error)
	ListRuns(ctx context.Context, studyID string) ([]domain.Run, error)
	ListStudyArtifacts(ctx context.Context, studyID, dir string) ([]domain.Artifact, error)
	DownloadURL(ctx context.Context, studyID, key string) (string, error)
	Fetch(ctx context.Context, signedURL string) ([]byte, error)
}

// Publisher receives activity events.
type Publisher interface {
	Publish(ctx context.Context, event domain.ActivityEvent) error
}

// Options configures a Service.
type Options struct {
	DefaultRecipe domain.RecipeRef
	DefaultInputs domain.StudyInputs
	ArtifactMatch string // regular expression applied to artifact file names
	EPWCacheSize  int
}

// Service implements every dashboard operation on top of a session.
type Service struct {
	cloud     Cloud
	store     scratch.Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	defaultRecipe domain.RecipeRef
	defaultInputs domain.StudyInputs
	artifactMatch *regexp.Regexp

	sample         []byte
	sampleIdentity string

	parsed *lru.Cache[string, *domain.EPW]
	loads  singleflight.Group

	ready atomic.Bool

	events    chan domain.ActivityEvent
	delivered chan struct{}
	pubMu     sync.Mutex
	closed    bool
}

// New creates a Service.
func New(cloud Cloud, store scratch.Store, publisher Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	pattern := opts.ArtifactMatch
	if pattern == "" {
		pattern = ".*"
	}
	match, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	if !opts.DefaultRecipe.Valid() {
		return nil, errors.Join(ErrInvalidInput, errors.New("default recipe must name owner, name and tag"))
	}
	inputs := opts.DefaultInputs
	if inputs == nil {
		inputs = domain.StudyInputs{}
	}

	sample := assets.SampleEPW()
	s := &Service{
		cloud:          cloud,
		store:          store,
		publisher:      publisher,
		logger:         logger,
		metrics:        metrics,
		defaultRecipe:  opts.DefaultRecipe,
		defaultInputs:  inputs,
		artifactMatch:  match,
		sample:         sample,
		sampleIdentity: identity(sample),
		parsed:         lru.New[string, *domain.EPW](opts.EPWCacheSize),
		events:         make(chan domain.ActivityEvent, eventBuffer),
		delivered:      make(chan struct{}),
	}
	go s.deliver()
	return s, nil
}

// Warm stores the bundled sample in scratch storage and parses it, after
// which the service reports ready.
func (s *Service) Warm(ctx context.Context) error {
	if _, err := scratch.PutBytes(ctx, s.store, assets.SampleEPWName, s.sample, epwContentType); err != nil {
		return err
	}
	s.metrics.ScratchWrites.WithLabelValues("epw").Inc()
	if _, err := s.parse(s.sampleIdentity, s.sample); err != nil {
		return err
	}
	s.ready.Store(true)
	s.logger.Info("sample weather file ready", "key", assets.SampleEPWName)
	return nil
}

// CheckReadiness returns nil once the bundled sample has been parsed.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("sample weather file not loaded yet")
	}
	return nil
}

// Close stops accepting activity events and waits until the queued ones
// have been handed to the publisher. It is safe to call more than once.
func (s *Service) Close() {
	s.pubMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.pubMu.Unlock()
	<-s.delivered
}

// publish queues an activity event without blocking the caller. Events are
// delivered one at a time in the order they were queued.
func (s *Service) publish(eventType, sessionID, subject string, attrs map[string]string) {
	event := domain.NewActivityEvent(eventType, sessionID, subject, attrs)

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if s.closed {
		s.dropEvent(event, "service closed")
		return
	}
	select {
	case s.events <- event:
	default:
		s.dropEvent(event, "event queue full")
	}
}

func (s *Service) dropEvent(event domain.ActivityEvent, reason string) {
	s.logger.Warn("activity event dropped", "reason", reason, "type", event.Type, "session", event.SessionID)
	s.metrics.ActivityEvents.WithLabelValues(event.Type, "dropped").Inc()
}

// deliver drains the event queue until Close.
func (s *Service) deliver() {
	defer close(s.delivered)
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := s.publisher.Publish(ctx, event)
		cancel()
		if err != nil {
			s.logger.Warn("publish activity event failed", "error", err, "type", event.Type, "session", event.SessionID)
			s.metrics.ActivityEvents.WithLabelValues(event.Type, "error").Inc()
			continue
		}
		s.metrics.ActivityEvents.WithLabelValues(event.Type, "published").Inc()
	}
}

// Release deletes the uploaded and derived files of a weather file that no
// session uses anymore. Failures are logged and left for the next release.
func (s *Service) Release(ctx context.Context, id string) {
	if len(id) < shortIDLen {
		return
	}
	for _, prefix := range []string{uploadDir(id), derivedDir(id)} {
		infos, err := s.store.List(ctx, prefix+"/")
		if err != nil {
			s.logger.Warn("list released files failed", "error", err, "prefix", prefix)
			continue
		}
		for _, info := range infos {
			if _, err := s.store.Delete(ctx, info.Key); err != nil {
				s.logger.Warn("delete released file failed", "error", err, "key", info.Key)
				continue
			}
			s.metrics.ScratchDeletes.Inc()
		}
	}
	s.logger.Debug("weather file released", "identity", id[:shortIDLen])
}

// uploadDir holds the uploaded EPW of one weather file.
func uploadDir(id string) string { return path.Join("uploads", id[:shortIDLen]) }

// derivedDir holds the WEA and sun-path files computed from one weather file.
func derivedDir(id string) string { return path.Join("derived", id[:shortIDLen]) }

func identity(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func requireStudy(st session.State) (*domain.Study, error) {
	if st.Study == nil {
		return nil, ErrNoStudy
	}
	return st.Study, nil
}

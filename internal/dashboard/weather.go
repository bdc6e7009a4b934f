package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/early-design-app/internal/assets"
	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/scratch"
	"github.com/couchcryptid/early-design-app/internal/session"
)

const (
	epwContentType  = "text/plain"
	weaContentType  = "text/plain"
	jsonContentType = "application/json"

	// projectWeaKey is the project artifact the WEA step looks up.
	projectWeaKey = "weather.wea"
)

// WeatherSummary describes the active weather file of a session.
type WeatherSummary struct {
	Key      string          `json:"key"`
	Source   session.Source  `json:"source"`
	Location domain.Location `json:"location"`
	Records  int             `json:"records"`
	LeapYear bool            `json:"leap_year"`
}

// Charts is the data behind the weather tab.
type Charts struct {
	City     string              `json:"city"`
	Latitude float64             `json:"latitude"`
	HeatMap  domain.HeatMap      `json:"heat_map"`
	Diurnal  domain.DiurnalChart `json:"diurnal"`
}

// WeaResult reports a written WEA file and the raw project artifact listing.
type WeaResult struct {
	Key     string                 `json:"key"`
	File    scratch.Info           `json:"file"`
	Listing domain.ArtifactListing `json:"listing,omitempty"`
}

// IngestUpload stores an uploaded EPW file and makes it the session's
// active weather file.
func (s *Service) IngestUpload(ctx context.Context, sess *session.Session, name string, data []byte) (WeatherSummary, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if !strings.EqualFold(path.Ext(base), ".epw") {
		s.metrics.Uploads.WithLabelValues("rejected").Inc()
		return WeatherSummary{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, base)
	}

	id := identity(data)
	epw, err := s.parse(id, data)
	if err != nil {
		s.metrics.Uploads.WithLabelValues("rejected").Inc()
		return WeatherSummary{}, err
	}

	// Uploads are namespaced by content so sessions never overwrite each other.
	key := path.Join(uploadDir(id), domain.SafeName(base))
	if _, err := scratch.PutBytes(ctx, s.store, key, data, epwContentType); err != nil {
		return WeatherSummary{}, fmt.Errorf("store upload: %w", err)
	}
	s.metrics.ScratchWrites.WithLabelValues("epw").Inc()
	s.metrics.Uploads.WithLabelValues("accepted").Inc()

	sess.SetWeather(key, id, session.SourceUpload)
	s.logger.Info("weather file uploaded", "session", sess.ID, "key", key, "city", epw.Location.City)
	s.publish(domain.EventWeatherUploaded, sess.ID, key, map[string]string{"city": epw.Location.City})

	return summarize(key, session.SourceUpload, epw), nil
}

// UseSample makes the bundled sample the session's weather file, replacing
// any upload.
func (s *Service) UseSample(ctx context.Context, sess *session.Session) (WeatherSummary, error) {
	sess.SetWeather(assets.SampleEPWName, s.sampleIdentity, session.SourceSample)
	epw, err := s.load(ctx, s.sampleIdentity, assets.SampleEPWName)
	if err != nil {
		return WeatherSummary{}, err
	}
	return summarize(assets.SampleEPWName, session.SourceSample, epw), nil
}

// LoadEPW returns the parsed weather file of the session, falling back to
// the bundled sample.
func (s *Service) LoadEPW(ctx context.Context, sess *session.Session) (*domain.EPW, error) {
	epw, _, err := s.loadActive(ctx, sess)
	return epw, err
}

// loadActive returns the session's parsed weather file with its identity.
func (s *Service) loadActive(ctx context.Context, sess *session.Session) (*domain.EPW, string, error) {
	st := sess.Snapshot()
	if st.WeatherKey == "" {
		sess.SetWeather(assets.SampleEPWName, s.sampleIdentity, session.SourceSample)
		st = sess.Snapshot()
	}
	epw, err := s.load(ctx, st.Identity, st.WeatherKey)
	if err != nil {
		return nil, "", err
	}
	return epw, st.Identity, nil
}

// Charts returns the location header, dry-bulb heat map and diurnal averages.
func (s *Service) Charts(ctx context.Context, sess *session.Session) (Charts, error) {
	epw, err := s.LoadEPW(ctx, sess)
	if err != nil {
		return Charts{}, err
	}
	return Charts{
		City:     epw.Location.City,
		Latitude: epw.Location.Latitude,
		HeatMap:  domain.DryBulbHeatMap(epw),
		Diurnal:  domain.DiurnalAverages(epw),
	}, nil
}

// Sunpath computes the sun-path geometry and stores it as <city>_sunpath.json
// next to the other files derived from the same weather file.
func (s *Service) Sunpath(ctx context.Context, sess *session.Session) (domain.SunPath, error) {
	epw, id, err := s.loadActive(ctx, sess)
	if err != nil {
		return domain.SunPath{}, err
	}
	sp := domain.NewSunPath(epw.Location, sunpathRadius)

	data, err := json.Marshal(sp)
	if err != nil {
		return domain.SunPath{}, fmt.Errorf("encode sun path: %w", err)
	}
	key := path.Join(derivedDir(id), domain.SunpathFileName(epw.Location))
	if _, err := scratch.PutBytes(ctx, s.store, key, data, jsonContentType); err != nil {
		return domain.SunPath{}, fmt.Errorf("store sun path: %w", err)
	}
	s.metrics.ScratchWrites.WithLabelValues("sunpath").Inc()
	if !sess.SetSunpath(id, key) {
		s.logger.Debug("sun path outlived its weather file", "session", sess.ID, "key", key)
	}
	return sp, nil
}

// CreateWea writes <city>.wea and looks up the project's weather artifact.
// The lookup is informational: its failure is logged and never fails the WEA.
func (s *Service) CreateWea(ctx context.Context, sess *session.Session) (WeaResult, error) {
	epw, id, err := s.loadActive(ctx, sess)
	if err != nil {
		return WeaResult{}, err
	}

	var buf bytes.Buffer
	if err := domain.WriteWea(&buf, epw); err != nil {
		return WeaResult{}, err
	}
	key := path.Join(derivedDir(id), domain.WeaFileName(epw.Location))
	info, err := scratch.PutBytes(ctx, s.store, key, buf.Bytes(), weaContentType)
	if err != nil {
		return WeaResult{}, fmt.Errorf("store wea: %w", err)
	}
	s.metrics.ScratchWrites.WithLabelValues("wea").Inc()

	listing, err := s.cloud.ListProjectArtifacts(ctx, projectWeaKey)
	if err != nil {
		s.logger.Warn("project artifact lookup failed", "error", err, "session", sess.ID)
	}
	if !sess.SetWea(id, key, listing) {
		s.logger.Debug("wea outlived its weather file", "session", sess.ID, "key", key)
	}
	s.publish(domain.EventWeaCreated, sess.ID, key, map[string]string{"city": epw.Location.City})

	return WeaResult{Key: key, File: info, Listing: listing}, nil
}

// load returns the parsed file with the given identity, reading it from
// scratch storage on a cache miss.
func (s *Service) load(ctx context.Context, id, key string) (*domain.EPW, error) {
	if epw, ok := s.parsed.Get(id); ok {
		s.metrics.EPWCache.WithLabelValues("hit").Inc()
		return epw, nil
	}

	data, err := scratch.ReadAll(ctx, s.store, key)
	switch {
	case errors.Is(err, scratch.ErrNotFound) && id == s.sampleIdentity:
		data = s.sample
	case err != nil:
		return nil, fmt.Errorf("load weather file %s: %w", key, err)
	case identity(data) != id:
		return nil, fmt.Errorf("load weather file %s: %w: content changed", key, ErrNotFound)
	}
	return s.parse(id, data)
}

// parse parses data once per identity. Concurrent calls for the same
// identity share one parse.
func (s *Service) parse(id string, data []byte) (*domain.EPW, error) {
	if epw, ok := s.parsed.Get(id); ok {
		s.metrics.EPWCache.WithLabelValues("hit").Inc()
		return epw, nil
	}

	v, err, _ := s.loads.Do(id, func() (any, error) {
		if epw, ok := s.parsed.Get(id); ok {
			return epw, nil
		}
		s.metrics.EPWCache.WithLabelValues("miss").Inc()
		start := time.Now()
		epw, err := domain.ParseEPW(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		s.metrics.EPWParseDuration.Observe(time.Since(start).Seconds())
		s.parsed.Put(id, epw)
		return epw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.EPW), nil
}

func summarize(key string, src session.Source, epw *domain.EPW) WeatherSummary {
	return WeatherSummary{
		Key:      key,
		Source:   src,
		Location: epw.Location,
		Records:  len(epw.Records),
		LeapYear: epw.IsLeapYear(),
	}
}

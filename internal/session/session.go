// Package session holds the typed per-visitor dashboard context and the
// in-memory store that expires idle sessions.
package session

import (
	"sync"
	"time"

	"github.com/couchcryptid/early-design-app/internal/domain"
)

// Source records where the active weather file came from.
type Source string

const (
	SourceSample Source = "sample"
	SourceUpload Source = "upload"
)

// Payload is the last fetched artifact body.
type Payload struct {
	ArtifactKey string
	FileName    string
	Bytes       []byte
	Extension   string
}

// State is a snapshot of one session. Pointer fields are replaced, never
// mutated in place, so a snapshot stays valid after the session moves on.
type State struct {
	WeatherKey string
	Identity   string
	Source     Source
	WeaKey     string
	SunpathKey string

	Recipe   *domain.RecipeRef
	Study    *domain.Study
	Run      *domain.Run
	Artifact *domain.Artifact
	Payload  *Payload

	ArtifactListing domain.ArtifactListing
}

// Ticket ties an artifact fetch to the selection it was started for.
type Ticket struct {
	Seq uint64
	Key string
}

// Session is one visitor's dashboard context. All access goes through its
// methods, which serialize on an internal lock.
type Session struct {
	ID string

	mu        sync.Mutex
	state     State
	selection uint64
	lastSeen  time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, lastSeen: now}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetWeather makes key the active weather file. Files derived from the
// previous weather file are forgotten.
func (s *Session) SetWeather(key, identity string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Identity != identity {
		s.state.WeaKey = ""
		s.state.SunpathKey = ""
	}
	s.state.WeatherKey = key
	s.state.Identity = identity
	s.state.Source = src
}

// SetWea records the derived WEA file and the raw artifact listing. It
// reports false, recording nothing, when identity is no longer the active
// weather file.
func (s *Session) SetWea(identity, key string, listing domain.ArtifactListing) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Identity != identity {
		return false
	}
	s.state.WeaKey = key
	s.state.ArtifactListing = listing
	return true
}

// SetSunpath records the derived sun-path geometry file of identity.
func (s *Session) SetSunpath(identity, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Identity != identity {
		return false
	}
	s.state.SunpathKey = key
	return true
}

// AdoptRecipe selects ref only when no recipe is selected yet and returns
// the selected recipe. Later wizard steps are left alone.
func (s *Session) AdoptRecipe(ref domain.RecipeRef) domain.RecipeRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Recipe == nil {
		s.state.Recipe = &ref
	}
	return *s.state.Recipe
}

// SelectRecipe sets the recipe and clears every later wizard step.
func (s *Session) SelectRecipe(ref domain.RecipeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Recipe = &ref
	s.state.Study = nil
	s.clearFromRunLocked()
}

// SelectStudy sets the study and clears the run and artifact steps.
func (s *Session) SelectStudy(study domain.Study) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Study = &study
	s.clearFromRunLocked()
}

// RefreshStudy replaces the selected study with a newer copy of itself.
// It reports false when a different study is selected by now.
func (s *Session) RefreshStudy(study domain.Study) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Study == nil || s.state.Study.ID != study.ID {
		return false
	}
	s.state.Study = &study
	return true
}

// SelectRun sets the run and clears the artifact step.
func (s *Session) SelectRun(run domain.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Run = &run
	s.clearArtifactLocked()
}

// SelectArtifact records the artifact selection and returns the ticket a
// fetch for it must present. A nil artifact clears the selection.
func (s *Session) SelectArtifact(a *domain.Artifact) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearArtifactLocked()
	t := Ticket{Seq: s.selection}
	if a != nil {
		cp := *a
		s.state.Artifact = &cp
		t.Key = cp.Key
	}
	return t
}

// Current reports whether t still names the active selection.
func (s *Session) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked(t)
}

// ApplyPayload stores p if t is still current.
func (s *Session) ApplyPayload(t Ticket, p Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		return false
	}
	s.state.Payload = &p
	return true
}

// ClearPayload drops the payload if t is still current.
func (s *Session) ClearPayload(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		return false
	}
	s.state.Payload = nil
	return true
}

func (s *Session) currentLocked(t Ticket) bool {
	if t.Seq != s.selection {
		return false
	}
	if s.state.Artifact == nil {
		return t.Key == ""
	}
	return s.state.Artifact.Key == t.Key
}

func (s *Session) clearFromRunLocked() {
	s.state.Run = nil
	s.clearArtifactLocked()
}

// clearArtifactLocked drops the artifact selection and payload and
// invalidates every outstanding ticket.
func (s *Session) clearArtifactLocked() {
	s.selection++
	s.state.Artifact = nil
	s.state.Payload = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

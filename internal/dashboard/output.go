package dashboard

import (
	"encoding/json"

	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/session"
)

const (
	previewExtension    = "vtkjs"
	defaultDownloadName = "download.zip"
)

// emptyListing is shown when no artifact listing has been stored.
var emptyListing = json.RawMessage(`{}`)

// WeatherView is the weather part of View.
type WeatherView struct {
	Key        string         `json:"key,omitempty"`
	Source     session.Source `json:"source,omitempty"`
	WeaKey     string         `json:"wea_key,omitempty"`
	SunpathKey string         `json:"sunpath_key,omitempty"`
}

// View is a snapshot of everything the page renders.
type View struct {
	SessionID       string            `json:"session_id"`
	Weather         WeatherView       `json:"weather"`
	Recipe          *domain.RecipeRef `json:"recipe"`
	Study           *domain.Study     `json:"study"`
	Run             *domain.Run       `json:"run"`
	Artifact        *domain.Artifact  `json:"artifact"`
	DownloadEnabled bool              `json:"download_enabled"`
	DownloadName    string            `json:"download_name"`
	PayloadSize     int               `json:"payload_size"`
	Extension       string            `json:"extension,omitempty"`
	PreviewVisible  bool              `json:"preview_visible"`
	ArtifactListing json.RawMessage   `json:"artifact_listing"`
}

// Download returns the payload and the name to save it under. ok is false,
// and the control disabled, when nothing has been fetched.
func (s *Service) Download(sess *session.Session) (name string, data []byte, ok bool) {
	st := sess.Snapshot()
	name = downloadName(st)
	if st.Payload == nil {
		return name, nil, false
	}
	return name, st.Payload.Bytes, true
}

// Preview returns the payload when it is a vtk.js scene.
func (s *Service) Preview(sess *session.Session) ([]byte, error) {
	st := sess.Snapshot()
	if st.Payload == nil || st.Payload.Extension != previewExtension {
		return nil, ErrNoPreview
	}
	return st.Payload.Bytes, nil
}

// ArtifactListing is the raw listing stored by CreateWea, or {} when empty.
func (s *Service) ArtifactListing(sess *session.Session) json.RawMessage {
	return listingOrEmpty(sess.Snapshot().ArtifactListing)
}

// View renders the session state.
func (s *Service) View(sess *session.Session) View {
	st := sess.Snapshot()
	v := View{
		SessionID: sess.ID,
		Weather: WeatherView{
			Key:        st.WeatherKey,
			Source:     st.Source,
			WeaKey:     st.WeaKey,
			SunpathKey: st.SunpathKey,
		},
		Recipe:          st.Recipe,
		Study:           st.Study,
		Run:             st.Run,
		Artifact:        st.Artifact,
		DownloadName:    downloadName(st),
		ArtifactListing: listingOrEmpty(st.ArtifactListing),
	}
	if st.Payload != nil {
		v.DownloadEnabled = true
		v.PayloadSize = len(st.Payload.Bytes)
		v.Extension = st.Payload.Extension
		v.PreviewVisible = st.Payload.Extension == previewExtension
	}
	return v
}

func downloadName(st session.State) string {
	if st.Artifact != nil {
		return st.Artifact.Name()
	}
	return defaultDownloadName
}

func listingOrEmpty(l domain.ArtifactListing) json.RawMessage {
	if len(l) == 0 || string(l) == "null" {
		return emptyListing
	}
	return l
}

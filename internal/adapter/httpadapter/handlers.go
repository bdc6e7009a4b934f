package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/early-design-app/internal/dashboard"
	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/scratch"
	"github.com/couchcryptid/early-design-app/internal/session"
)

const (
	// SessionCookie carries the dashboard session ID.
	SessionCookie = "eda_session"

	maxUploadBytes = 32 << 20
	maxBodyBytes   = 1 << 20
)

// handlerFunc is a dashboard handler bound to the caller's session.
type handlerFunc func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

// handle resolves the session cookie, issuing a new session when it is
// missing or expired, and maps handler errors to responses.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
		sess, created := s.sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if err := fn(w, r, sess); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path, "status", status)
	} else {
		s.logger.Debug("request rejected", "error", err, "method", r.Method, "path", r.URL.Path, "status", status)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dashboard.ErrInvalidInput),
		errors.Is(err, dashboard.ErrUnsupportedFile),
		errors.Is(err, domain.ErrInvalidEPW):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNoRecipe),
		errors.Is(err, dashboard.ErrNoStudy),
		errors.Is(err, dashboard.ErrNoArtifact),
		errors.Is(err, dashboard.ErrNoPreview):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNotFound), errors.Is(err, scratch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if _, ok := dashboard.CloudStatus(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: decode request body: %v", dashboard.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	sharedobs.WriteJSON(w, http.StatusOK, s.svc.View(sess))
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("epw")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: multipart field \"epw\": %v", dashboard.ErrInvalidInput, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	summary, err := s.svc.IngestUpload(r.Context(), sess, header.Filename, data)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusCreated, summary)
	return nil
}

func (s *Server) handleUseSample(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	summary, err := s.svc.UseSample(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
	return nil
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	charts, err := s.svc.Charts(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, charts)
	return nil
}

func (s *Server) handleSunpath(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	sp, err := s.svc.Sunpath(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, sp)
	return nil
}

func (s *Server) handleCreateWea(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	res, err := s.svc.CreateWea(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusCreated, res)
	return nil
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	recipe, err := s.svc.Recipe(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, recipe)
	return nil
}

func (s *Server) handleSelectRecipe(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var ref domain.RecipeRef
	if err := decodeBody(w, r, &ref); err != nil {
		return err
	}
	recipe, err := s.svc.SelectRecipe(r.Context(), sess, ref)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, recipe)
	return nil
}

func (s *Server) handleDefaultInputs(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	inputs, err := s.svc.DefaultInputs(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, inputs)
	return nil
}

type submitStudyRequest struct {
	Name   string             `json:"name"`
	Inputs domain.StudyInputs `json:"inputs"`
}

func (s *Server) handleSubmitStudy(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req submitStudyRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	study, err := s.svc.SubmitStudy(r.Context(), sess, req.Name, req.Inputs)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusCreated, study)
	return nil
}

func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request, _ *session.Session) error {
	studies, err := s.svc.ListStudies(r.Context())
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, studies)
	return nil
}

type selectByIDRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSelectStudy(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req selectByIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	study, err := s.svc.SelectStudy(r.Context(), sess, req.ID)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, study)
	return nil
}

func (s *Server) handleStudyCard(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	card, err := s.svc.StudyCard(r.Context(), sess)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, card)
	return nil
}

func (s *Server) handleSelectRun(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req selectByIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		return err
	}
	run, err := s.svc.SelectRun(r.Context(), sess, req.ID)
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, run)
	return nil
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	artifacts, err := s.svc.ListArtifacts(r.Context(), sess, r.URL.Query().Get("path"))
	if err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, artifacts)
	return nil
}

func (s *Server) handleSelectArtifact(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var a *domain.Artifact
	if err := decodeBody(w, r, &a); err != nil {
		return err
	}
	if err := s.svc.SelectArtifact(r.Context(), sess, a); err != nil {
		return err
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.svc.View(sess))
	return nil
}

func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	name, data, ok := s.svc.Download(sess)
	if !ok {
		return dashboard.ErrNoArtifact
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	data, err := s.svc.Preview(sess)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func (s *Server) handleArtifactListing(w http.ResponseWriter, _ *http.Request, sess *session.Session) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.svc.ArtifactListing(sess))
	return nil
}

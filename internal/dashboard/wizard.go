package dashboard

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/early-design-app/internal/domain"
	"github.com/couchcryptid/early-design-app/internal/session"
)

// StudyCard is a refreshed study together with its runs.
type StudyCard struct {
	Study domain.Study `json:"study"`
	Runs  []domain.Run `json:"runs"`
}

// Recipe returns the selected recipe definition. A session without a
// selection adopts the default recipe.
func (s *Service) Recipe(ctx context.Context, sess *session.Session) (domain.Recipe, error) {
	ref := sess.AdoptRecipe(s.defaultRecipe)
	recipe, err := s.cloud.GetRecipe(ctx, ref)
	if err != nil {
		return domain.Recipe{}, fmt.Errorf("get recipe %s: %w", ref, err)
	}
	return recipe, nil
}

// SelectRecipe switches the recipe. Every later wizard step is cleared.
func (s *Service) SelectRecipe(ctx context.Context, sess *session.Session, ref domain.RecipeRef) (domain.Recipe, error) {
	if !ref.Valid() {
		return domain.Recipe{}, fmt.Errorf("%w: recipe needs owner, name and tag", ErrInvalidInput)
	}
	recipe, err := s.cloud.GetRecipe(ctx, ref)
	if err != nil {
		if isCloudNotFound(err) {
			return domain.Recipe{}, fmt.Errorf("recipe %s: %w", ref, ErrNotFound)
		}
		return domain.Recipe{}, fmt.Errorf("get recipe %s: %w", ref, err)
	}
	sess.SelectRecipe(ref)
	return recipe, nil
}

// DefaultInputs returns the prefilled study inputs: the selected recipe's
// input defaults overlaid with the bundled defaults.
func (s *Service) DefaultInputs(ctx context.Context, sess *session.Session) (domain.StudyInputs, error) {
	inputs := domain.StudyInputs{}
	if st := sess.Snapshot(); st.Recipe != nil {
		recipe, err := s.cloud.GetRecipe(ctx, *st.Recipe)
		if err != nil {
			return nil, fmt.Errorf("get recipe %s: %w", st.Recipe, err)
		}
		for _, in := range recipe.Inputs {
			if in.Default != nil {
				inputs[in.Name] = in.Default
			}
		}
	}
	maps.Copy(inputs, s.defaultInputs)
	return inputs, nil
}

// SubmitStudy creates a study of the selected recipe and selects it.
// Nil inputs use the defaults.
func (s *Service) SubmitStudy(ctx context.Context, sess *session.Session, name string, inputs domain.StudyInputs) (domain.Study, error) {
	st := sess.Snapshot()
	if st.Recipe == nil {
		return domain.Study{}, ErrNoRecipe
	}
	if inputs == nil {
		var err error
		if inputs, err = s.DefaultInputs(ctx, sess); err != nil {
			return domain.Study{}, err
		}
	}

	study, err := s.cloud.CreateStudy(ctx, *st.Recipe, strings.TrimSpace(name), inputs)
	if err != nil {
		return domain.Study{}, fmt.Errorf("create study: %w", err)
	}
	sess.SelectStudy(study)
	s.logger.Info("study created", "session", sess.ID, "study", study.ID, "recipe", st.Recipe.String())
	s.publish(domain.EventStudyCreated, sess.ID, study.ID, map[string]string{"recipe": st.Recipe.String()})
	return study, nil
}

// ListStudies returns the project's studies.
func (s *Service) ListStudies(ctx context.Context) ([]domain.Study, error) {
	studies, err := s.cloud.ListStudies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return studies, nil
}

// SelectStudy selects an existing study and clears the run and artifact steps.
func (s *Service) SelectStudy(ctx context.Context, sess *session.Session, id string) (domain.Study, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Study{}, fmt.Errorf("%w: study id is required", ErrInvalidInput)
	}
	study, err := s.cloud.GetStudy(ctx, id)
	if err != nil {
		if isCloudNotFound(err) {
			return domain.Study{}, fmt.Errorf("study %s: %w", id, ErrNotFound)
		}
		return domain.Study{}, fmt.Errorf("get study %s: %w", id, err)
	}
	sess.SelectStudy(study)
	return study, nil
}

// StudyCard refreshes the selected study and lists its runs. Both calls
// run concurrently.
func (s *Service) StudyCard(ctx context.Context, sess *session.Session) (StudyCard, error) {
	selected, err := requireStudy(sess.Snapshot())
	if err != nil {
		return StudyCard{}, err
	}

	var (
		study domain.Study
		runs  []domain.Run
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if study, err = s.cloud.GetStudy(gctx, selected.ID); err != nil {
			return fmt.Errorf("get study %s: %w", selected.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if runs, err = s.cloud.ListRuns(gctx, selected.ID); err != nil {
			return fmt.Errorf("list runs of %s: %w", selected.ID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return StudyCard{}, err
	}

	sess.RefreshStudy(study)
	return StudyCard{Study: study, Runs: runs}, nil
}

// SelectRun selects one run of the selected study.
func (s *Service) SelectRun(ctx context.Context, sess *session.Session, id string) (domain.Run, error) {
	study, err := requireStudy(sess.Snapshot())
	if err != nil {
		return domain.Run{}, err
	}
	runs, err := s.cloud.ListRuns(ctx, study.ID)
	if err != nil {
		return domain.Run{}, fmt.Errorf("list runs of %s: %w", study.ID, err)
	}
	for _, r := range runs {
		if r.ID == id {
			sess.SelectRun(r)
			return r, nil
		}
	}
	return domain.Run{}, fmt.Errorf("run %s of study %s: %w", id, study.ID, ErrNotFound)
}

// ListArtifacts lists the study's files under dir whose names match the
// configured pattern.
func (s *Service) ListArtifacts(ctx context.Context, sess *session.Session, dir string) ([]domain.Artifact, error) {
	study, err := requireStudy(sess.Snapshot())
	if err != nil {
		return nil, err
	}
	all, err := s.cloud.ListStudyArtifacts(ctx, study.ID, dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts of %s: %w", study.ID, err)
	}
	out := make([]domain.Artifact, 0, len(all))
	for _, a := range all {
		if s.artifactMatch.MatchString(a.Name()) {
			out = append(out, a)
		}
	}
	return out, nil
}

// SelectArtifact is the artifact on-change callback. A nil artifact clears
// the selection and payload. Otherwise the artifact is downloaded through a
// signed URL and becomes the payload, unless another selection was made
// while the download was in flight.
func (s *Service) SelectArtifact(ctx context.Context, sess *session.Session, a *domain.Artifact) error {
	if a == nil {
		sess.SelectArtifact(nil)
		s.metrics.ArtifactFetches.WithLabelValues("cleared").Inc()
		return nil
	}
	if strings.TrimSpace(a.Key) == "" {
		return fmt.Errorf("%w: artifact key is required", ErrInvalidInput)
	}
	study, err := requireStudy(sess.Snapshot())
	if err != nil {
		return err
	}

	ticket := sess.SelectArtifact(a)

	signed, err := s.cloud.DownloadURL(ctx, study.ID, a.Key)
	if err != nil {
		return s.failFetch(sess, ticket, fmt.Errorf("sign artifact %s: %w", a.Key, err))
	}
	if !sess.Current(ticket) {
		s.metrics.StaleFetchesDiscarded.Inc()
		s.logger.Debug("artifact selection changed before download", "session", sess.ID, "key", a.Key)
		return nil
	}
	data, err := s.cloud.Fetch(ctx, signed)
	if err != nil {
		return s.failFetch(sess, ticket, fmt.Errorf("download artifact %s: %w", a.Key, err))
	}

	payload := session.Payload{
		ArtifactKey: a.Key,
		FileName:    a.Name(),
		Bytes:       data,
		Extension:   a.Extension(),
	}
	if !sess.ApplyPayload(ticket, payload) {
		s.metrics.StaleFetchesDiscarded.Inc()
		s.logger.Debug("stale artifact fetch discarded", "session", sess.ID, "key", a.Key)
		return nil
	}
	s.metrics.ArtifactFetches.WithLabelValues("success").Inc()
	s.publish(domain.EventArtifactFetched, sess.ID, a.Key, map[string]string{
		"study":     study.ID,
		"extension": payload.Extension,
	})
	return nil
}

func (s *Service) failFetch(sess *session.Session, ticket session.Ticket, err error) error {
	if !sess.ClearPayload(ticket) {
		s.metrics.StaleFetchesDiscarded.Inc()
	}
	s.metrics.ArtifactFetches.WithLabelValues("error").Inc()
	return err
}

package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// RecipeRef identifies a versioned recipe in a Pollination registry.
type RecipeRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Tag   string `json:"tag"`
}

// Source is the recipe URL form used when creating a study.
func (r RecipeRef) Source(baseURL string) string {
	return fmt.Sprintf("%s/registries/%s/recipe/%s/%s", baseURL, r.Owner, r.Name, r.Tag)
}

func (r RecipeRef) String() string {
	return fmt.Sprintf("%s/%s:%s", r.Owner, r.Name, r.Tag)
}

// Valid reports whether every part of the reference is set.
func (r RecipeRef) Valid() bool {
	return r.Owner != "" && r.Name != "" && r.Tag != ""
}

// RecipeInput describes one input of a recipe.
type RecipeInput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Recipe is a recipe definition with its input schema.
type Recipe struct {
	Ref         RecipeRef     `json:"ref"`
	Description string        `json:"description,omitempty"`
	Inputs      []RecipeInput `json:"inputs"`
}

// StudyInputs maps recipe input names to values.
type StudyInputs map[string]any

// StudyStatus is the progress summary of a study.
type StudyStatus struct {
	Status        string     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	RunsPending   int        `json:"runs_pending"`
	RunsRunning   int        `json:"runs_running"`
	RunsCompleted int        `json:"runs_completed"`
	RunsFailed    int        `json:"runs_failed"`
}

// Study is an instantiated recipe run (a Pollination job).
type Study struct {
	ID     string      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Status StudyStatus `json:"status"`
	Recipe *RecipeRef  `json:"recipe,omitempty"`
}

// Run is one run of a study.
type Run struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Artifact is a file produced by or uploaded to a study.
type Artifact struct {
	Key      string `json:"key"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Name is the display name of the artifact, falling back to the last key segment.
func (a Artifact) Name() string {
	if a.FileName != "" {
		return a.FileName
	}
	return path.Base(a.Key)
}

// Extension is the lower-cased text after the last dot of the file name.
func (a Artifact) Extension() string {
	name := a.Name()
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// ArtifactListing is the raw body of a project artifact query.
type ArtifactListing = json.RawMessage

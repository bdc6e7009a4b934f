package pollination

import (
	"sort"

	"github.com/couchcryptid/early-design-app/internal/domain"
)

// Pollination API payload types.

type recipeResponse struct {
	Metadata struct {
		Name        string `json:"name"`
		Tag         string `json:"tag"`
		Description string `json:"description"`
	} `json:"metadata"`
	Inputs []domain.RecipeInput `json:"inputs"`
}

type jobArgument struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type createJobRequest struct {
	Source    string          `json:"source"`
	Name      string          `json:"name,omitempty"`
	Arguments [][]jobArgument `json:"arguments"`
}

type createdResponse struct {
	ID string `json:"id"`
}

type job struct {
	ID   string `json:"id"`
	Spec struct {
		Name   string `json:"name"`
		Source string `json:"source"`
	} `json:"spec"`
	Status domain.StudyStatus `json:"status"`
	Recipe *struct {
		Metadata struct {
			Name string `json:"name"`
			Tag  string `json:"tag"`
		} `json:"metadata"`
		Owner struct {
			Name string `json:"name"`
		} `json:"owner"`
	} `json:"recipe,omitempty"`
}

func (j job) toDomain() domain.Study {
	s := domain.Study{ID: j.ID, Name: j.Spec.Name, Status: j.Status}
	if j.Recipe != nil {
		s.Recipe = &domain.RecipeRef{
			Owner: j.Recipe.Owner.Name,
			Name:  j.Recipe.Metadata.Name,
			Tag:   j.Recipe.Metadata.Tag,
		}
	}
	return s
}

type jobPage struct {
	Resources  []job `json:"resources"`
	Page       int   `json:"page"`
	TotalCount int   `json:"total_count"`
}

type run struct {
	ID     string `json:"id"`
	Status struct {
		Status string `json:"status"`
		JobID  string `json:"job_id"`
	} `json:"status"`
}

type runPage struct {
	Resources []run `json:"resources"`
}

func sortArguments(args []jobArgument) {
	sort.Slice(args, func(i, j int) bool { return args[i].Name < args[j].Name })
}

// Package assets bundles the sample weather file and the default wizard
// configuration.
package assets

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/couchcryptid/early-design-app/internal/domain"
)

// SampleEPWName is the file name the bundled sample is stored under.
const SampleEPWName = "chicago.epw"

//go:embed chicago.epw
var sampleEPW []byte

//go:embed direct_sunlight_hours.json
var defaultRecipe []byte

//go:embed default_recipe_inputs.json
var defaultInputs []byte

// SampleEPW returns a copy of the bundled sample weather file.
func SampleEPW() []byte {
	out := make([]byte, len(sampleEPW))
	copy(out, sampleEPW)
	return out
}

// DefaultRecipe returns the recipe preselected in the wizard. A non-empty
// path overrides the bundled file.
func DefaultRecipe(path string) (domain.RecipeRef, error) {
	data, err := readOrDefault(path, defaultRecipe)
	if err != nil {
		return domain.RecipeRef{}, err
	}
	var ref domain.RecipeRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return domain.RecipeRef{}, fmt.Errorf("decode default recipe: %w", err)
	}
	if !ref.Valid() {
		return domain.RecipeRef{}, fmt.Errorf("default recipe %q: owner, name and tag are required", ref)
	}
	return ref, nil
}

// DefaultInputs returns the study input values prefilled in the wizard. A
// non-empty path overrides the bundled file.
func DefaultInputs(path string) (domain.StudyInputs, error) {
	data, err := readOrDefault(path, defaultInputs)
	if err != nil {
		return nil, err
	}
	var inputs domain.StudyInputs
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("decode default inputs: %w", err)
	}
	if inputs == nil {
		inputs = domain.StudyInputs{}
	}
	return inputs, nil
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

package dashboard

import (
	"errors"
	"net/http"
)

var (
	// ErrUnsupportedFile is returned for uploads that are not .epw files.
	ErrUnsupportedFile = errors.New("unsupported file type: expected .epw")
	// ErrInvalidInput is returned for malformed selections.
	ErrInvalidInput = errors.New("invalid input")

	// Wizard gating errors: the step needs an earlier selection.
	ErrNoRecipe   = errors.New("no recipe selected")
	ErrNoStudy    = errors.New("no study selected")
	ErrNoArtifact = errors.New("no artifact payload")
	ErrNoPreview  = errors.New("selected artifact has no 3D preview")

	// ErrNotFound is returned when a selected resource does not exist.
	ErrNotFound = errors.New("not found")
)

// CloudStatus reports the HTTP status carried by a cloud API error.
func CloudStatus(err error) (int, bool) {
	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) {
		return se.HTTPStatus(), true
	}
	return 0, false
}

func isCloudNotFound(err error) bool {
	status, ok := CloudStatus(err)
	return ok && status == http.StatusNotFound
}

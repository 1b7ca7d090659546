package apperror

import "github.com/sifan077/linkpulse/internal/app/model"

// ResolutionError is returned for links that exist but must not be followed.
// Link is kept so callers can still show the destination for diagnostics.
type ResolutionError struct {
	Kind error
	Link *model.Link
}

func (e *ResolutionError) Error() string {
	if e.Link == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Link.Slug
}

func (e *ResolutionError) Unwrap() error {
	return e.Kind
}

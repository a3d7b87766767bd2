package recap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/recap/recap/convert"
	"github.com/pithecene-io/recap/recap/infer"
	"github.com/pithecene-io/recap/recap/storage"
)

// ErrNoStorage indicates no storage handle is configured for a URL's scheme.
var ErrNoStorage = errors.New("recap: no storage for scheme")

// NoMatchError reports a URL that no registered template matches.
type NoMatchError struct {
	URL    string
	Action Action
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("recap: no %s route matches %s", e.Action, e.URL)
}

// AmbiguousMatchError reports equally specific templates that all match.
// At registration URL is empty and Templates names the clashing pair.
type AmbiguousMatchError struct {
	URL       string
	Action    Action
	Templates []string
}

func (e *AmbiguousMatchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("recap: ambiguous %s templates: %s", e.Action, strings.Join(e.Templates, ", "))
	}
	return fmt.Sprintf("recap: ambiguous %s match for %s: %s", e.Action, e.URL, strings.Join(e.Templates, ", "))
}

// ConflictError reports a template registered twice for one action.
type ConflictError struct {
	Template string
	Action   Action
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("recap: %s already registered for %s", e.Template, e.Action)
}

// TemplateError reports a malformed URL template.
type TemplateError struct {
	Template string
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("recap: invalid template %q: %s", e.Template, e.Reason)
}

// UnsupportedFormatError reports a file suffix no adapter handles.
type UnsupportedFormatError = infer.UnsupportedFormatError

// UnsupportedSchemaError reports a dialect construct with no canonical form.
type UnsupportedSchemaError = convert.UnsupportedSchemaError

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// ErrorClass names the kind of a failure for callers that map errors to
// exit codes, HTTP statuses or metrics labels.
type ErrorClass string

// Error classes.
const (
	ClassNoMatch           ErrorClass = "no_match"
	ClassAmbiguous         ErrorClass = "ambiguous"
	ClassConflict          ErrorClass = "conflict"
	ClassInvalidTemplate   ErrorClass = "invalid_template"
	ClassUnsupportedFormat ErrorClass = "unsupported_format"
	ClassUnsupportedSchema ErrorClass = "unsupported_schema"
	ClassInvalidFormat     ErrorClass = "invalid_format"
	ClassInvalidPath       ErrorClass = "invalid_path"
	ClassNotFound          ErrorClass = "not_found"
	ClassNoStorage         ErrorClass = "no_storage"
	ClassBackend           ErrorClass = "backend"
)

// Classify returns the class of err, or "" for nil. Errors recap does not
// recognise are backend failures.
func Classify(err error) ErrorClass {
	var (
		noMatch     *NoMatchError
		ambiguous   *AmbiguousMatchError
		conflict    *ConflictError
		template    *TemplateError
		unsupFormat *UnsupportedFormatError
		unsupSchema *UnsupportedSchemaError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &noMatch):
		return ClassNoMatch
	case errors.As(err, &ambiguous):
		return ClassAmbiguous
	case errors.As(err, &conflict):
		return ClassConflict
	case errors.As(err, &template):
		return ClassInvalidTemplate
	case errors.As(err, &unsupFormat):
		return ClassUnsupportedFormat
	case errors.As(err, &unsupSchema):
		return ClassUnsupportedSchema
	case errors.Is(err, infer.ErrInvalidFormat):
		return ClassInvalidFormat
	case errors.Is(err, storage.ErrInvalidPath), errors.Is(err, storage.ErrIsContainer):
		return ClassInvalidPath
	case errors.Is(err, storage.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrNoStorage):
		return ClassNoStorage
	default:
		return ClassBackend
	}
}

package pickup

import "fmt"

// Kind is the stable category of a pickup error. Its string value is what
// clients see in the "category" field of an error response.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindNoFace     Kind = "no_face"
	KindNoGallery  Kind = "no_gallery"
	KindNoMatch    Kind = "no_match"
	KindStore      Kind = "store"
	KindExtraction Kind = "extraction"
)

// Error is returned by every coordinator operation that fails. Message is safe
// to show to clients; Err holds the underlying cause and is never exposed.
type Error struct {
	Kind       Kind
	Message    string
	MissingIDs []string // set for KindNotFound
	State      State    // last verification state reached, empty outside Verify
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string, missing []string) *Error {
	return &Error{Kind: KindNotFound, Message: msg, MissingIDs: missing}
}

func conflictError(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func storeError(msg string, err error) *Error {
	return &Error{Kind: KindStore, Message: msg, Err: err}
}

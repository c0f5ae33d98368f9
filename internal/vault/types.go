package vault

import (
	"errors"
	"fmt"
)

// ErrorKind classifies vault backend failures into a closed enumeration.
// Every error returned by this package carries exactly one kind.
type ErrorKind string

const (
	// KindNotFound means the addressed note or folder does not exist
	KindNotFound ErrorKind = "not_found"

	// KindAccessDenied means the backend rejected the API credentials
	KindAccessDenied ErrorKind = "access_denied"

	// KindTransient covers network failures and backend-side errors that
	// may succeed on retry
	KindTransient ErrorKind = "transient"
)

// Error is the error type for all vault operations.
type Error struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Op is the operation that failed (e.g., "read", "search")
	Op string

	// Path is the note path or prefix involved, if any
	Path string

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vault %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("vault %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a vault error of kind NotFound.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsAccessDenied reports whether err is a vault error of kind AccessDenied.
func IsAccessDenied(err error) bool { return hasKind(err, KindAccessDenied) }

// IsTransient reports whether err is a vault error of kind Transient.
func IsTransient(err error) bool { return hasKind(err, KindTransient) }

func hasKind(err error, kind ErrorKind) bool {
	var vaultErr *Error
	return errors.As(err, &vaultErr) && vaultErr.Kind == kind
}

// Listing is the result of listing a vault folder.
type Listing struct {
	// Entries are the note files directly under the prefix
	Entries []string `json:"entries"`

	// Folders are the sub-folders directly under the prefix
	Folders []string `json:"folders"`

	// Truncated is set when the listing was cut off at the requested limit
	Truncated bool `json:"truncated"`
}

// SearchResult is a single search hit.
type SearchResult struct {
	// Location is the note path the match was found in
	Location string `json:"location"`

	// Excerpt is the matching fragment with surrounding context
	Excerpt string `json:"excerpt"`
}

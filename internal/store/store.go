// Package store defines the document store contract shared by the CMS
// client and the local SQLite store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/offersplice/internal/block"
)

// ErrNotFound means the document does not exist.
var ErrNotFound = errors.New("document not found")

// Record is a fetched document with its revision metadata.
type Record struct {
	Doc       block.Document
	Revision  string
	UpdatedAt time.Time
}

// Head identifies a document in a listing.
type Head struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Category string `json:"category,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// Filter selects documents for a listing. Empty fields match everything.
type Filter struct {
	IDs      []string
	Slug     string
	Category string
	Limit    int
}

// Store fetches and replaces whole documents. ReplaceDocument always
// receives the complete new block sequence.
type Store interface {
	FetchDocument(ctx context.Context, id string) (Record, error)
	ReplaceDocument(ctx context.Context, id string, blocks []block.Block) error
	ListDocuments(ctx context.Context, f Filter) ([]Head, error)
}

// RetryableError is a transient store failure worth retrying, such as a
// rate limit or a server error.
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retryable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err wraps a *RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

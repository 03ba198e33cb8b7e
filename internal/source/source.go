// Package source lists an organization's repositories and fetches raw file
// content. Listing failures are fatal to an analysis run; a fetch that comes
// back with a non-success status is reported as a *StatusError so callers
// can degrade per file.
package source

import (
	"context"
	"fmt"

	"github.com/seanblong/orgsearch/pkg/models"
)

// Lister enumerates repositories and their top-level entries.
type Lister interface {
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	ListContents(ctx context.Context, repository string) ([]models.RawFileEntry, error)
}

// Fetcher retrieves the raw text behind a content URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Source is a complete collaborator for an analysis run.
type Source interface {
	Lister
	Fetcher
}

// StatusError reports a non-success response from the hosting platform.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/seanblong/orgsearch/pkg/models"
)

// Local treats a directory as an organization: each visible sub-directory is
// a repository, and a repository's top-level directory entries are its
// contents.
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Local{Root: abs}, nil
}

func (l *Local) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	dirents, err := readSorted(l.Root)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	var repos []models.Repository
	for _, de := range dirents {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		repos = append(repos, models.Repository{Name: de.Name()})
	}
	return repos, nil
}

func (l *Local) ListContents(ctx context.Context, repository string) ([]models.RawFileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(l.Root, filepath.Base(repository))
	dirents, err := readSorted(dir)
	if err != nil {
		return nil, fmt.Errorf("list contents of %s: %w", repository, err)
	}

	out := make([]models.RawFileEntry, 0, len(dirents))
	for _, de := range dirents {
		e := models.RawFileEntry{Kind: models.EntryOther, Name: de.Name()}
		if de.IsRegular() {
			e.Kind = models.EntryFile
			e.ContentURL = fileURL(filepath.Join(dir, de.Name()))
		}
		out = append(out, e)
	}
	return out, nil
}

// Fetch reads a file:// URL below Root. Missing or out-of-tree files are
// reported the way a hosting platform would, as a 404 StatusError.
func (l *Local) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return "", &StatusError{URL: rawURL, StatusCode: http.StatusBadRequest}
	}
	p := filepath.Clean(filepath.FromSlash(u.Path))
	if rel, err := filepath.Rel(l.Root, p); err != nil || strings.HasPrefix(rel, "..") {
		return "", &StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}

	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readSorted(dir string) (godirwalk.Dirents, error) {
	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}
	sort.Sort(dirents)
	return dirents, nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

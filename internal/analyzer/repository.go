package analyzer

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/pkg/models"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFiles caps how many raw entries of a repository are considered.
const DefaultMaxFiles = 10

// RepositoryAnalyzer analyzes a bounded prefix of a repository's entries.
type RepositoryAnalyzer struct {
	Files    *FileAnalyzer
	MaxFiles int
	// Workers bounds concurrent file analyses; 1 keeps analysis sequential.
	Workers int
}

func NewRepositoryAnalyzer(files *FileAnalyzer, maxFiles, workers int) *RepositoryAnalyzer {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if workers <= 0 {
		workers = 1
	}
	return &RepositoryAnalyzer{Files: files, MaxFiles: maxFiles, Workers: workers}
}

// Analyze considers only the first MaxFiles raw entries; non-file entries in
// that prefix still use up a slot. Files are reported in input order.
func (ra *RepositoryAnalyzer) Analyze(ctx context.Context, repository string, entries []models.RawFileEntry) (models.RepositorySummary, error) {
	prefix := entries
	if len(prefix) > ra.MaxFiles {
		prefix = prefix[:ra.MaxFiles]
	}

	var files []models.RawFileEntry
	for _, e := range prefix {
		if e.IsFile() {
			files = append(files, e)
		}
	}

	results := make([]models.FileAnalysis, len(files))
	if ra.Workers <= 1 {
		for i, e := range files {
			fa, err := ra.Files.Analyze(ctx, repository, e)
			if err != nil {
				return models.RepositorySummary{}, err
			}
			results[i] = fa
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ra.Workers)
		for i, e := range files {
			g.Go(func() error {
				fa, err := ra.Files.Analyze(gctx, repository, e)
				if err != nil {
					return err
				}
				results[i] = fa
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return models.RepositorySummary{}, err
		}
	}

	summary := models.RepositorySummary{RepositoryName: repository, Files: results}
	for _, fa := range results {
		summary.TotalFiles++
		summary.TotalLines += fa.LineCount
	}

	log.Info().Str("repository", repository).
		Int("entries", len(entries)).
		Int("files", summary.TotalFiles).
		Int("lines", summary.TotalLines).
		Msg("repository analyzed")
	return summary, nil
}

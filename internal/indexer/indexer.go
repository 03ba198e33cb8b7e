package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/internal/analyzer"
	"github.com/seanblong/orgsearch/internal/corpus"
	"github.com/seanblong/orgsearch/internal/source"
	"github.com/seanblong/orgsearch/pkg/models"
)

// Options tunes an analysis run. Zero values fall back to the defaults of
// the analyzer and corpus packages.
type Options struct {
	ChunkSize   int
	MaxFiles    int
	Workers     int
	Attribution corpus.Attribution
}

// Indexer runs a full analysis of an organization and builds its index.
type Indexer struct {
	Source  source.Lister
	Repos   *analyzer.RepositoryAnalyzer
	Builder *corpus.Builder
}

// Stats summarizes a completed run.
type Stats struct {
	Repositories int           `json:"repositories"`
	Files        int           `json:"files"`
	Lines        int           `json:"lines"`
	Documents    int           `json:"documents"`
	Duration     time.Duration `json:"duration"`
}

// New creates a new Indexer wiring src and client through every stage.
func New(src source.Source, client ai.Client, backend corpus.Backend, opts Options) *Indexer {
	files := analyzer.NewFileAnalyzer(src, client, opts.ChunkSize)
	return &Indexer{
		Source:  src,
		Repos:   analyzer.NewRepositoryAnalyzer(files, opts.MaxFiles, opts.Workers),
		Builder: corpus.NewBuilder(client, backend, opts.Attribution),
	}
}

// NewWithDependencies creates a new Indexer from prebuilt stages for testing
func NewWithDependencies(lister source.Lister, repos *analyzer.RepositoryAnalyzer, builder *corpus.Builder) *Indexer {
	return &Indexer{
		Source:  lister,
		Repos:   repos,
		Builder: builder,
	}
}

// Run lists every repository, analyzes each one and indexes the results.
// Any listing or model error aborts the run before an index is built.
func (ix *Indexer) Run(ctx context.Context) (*corpus.Index, Stats, error) {
	start := time.Now()
	var stats Stats

	repos, err := ix.Source.ListRepositories(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("list repositories: %w", err)
	}
	log.Info().Int("repositories", len(repos)).Msg("starting analysis")

	summaries := make([]models.RepositorySummary, 0, len(repos))
	for _, repo := range repos {
		entries, err := ix.Source.ListContents(ctx, repo.Name)
		if err != nil {
			return nil, stats, fmt.Errorf("list contents of %s: %w", repo.Name, err)
		}
		summary, err := ix.Repos.Analyze(ctx, repo.Name, entries)
		if err != nil {
			return nil, stats, fmt.Errorf("analyze %s: %w", repo.Name, err)
		}
		summaries = append(summaries, summary)
		stats.Files += summary.TotalFiles
		stats.Lines += summary.TotalLines
	}
	stats.Repositories = len(summaries)

	idx, err := ix.Builder.Build(ctx, summaries)
	if err != nil {
		return nil, stats, fmt.Errorf("build index: %w", err)
	}
	stats.Documents = idx.Len()
	stats.Duration = time.Since(start)

	log.Info().Str("run_id", idx.RunID()).
		Int("repositories", stats.Repositories).
		Int("files", stats.Files).
		Int("lines", stats.Lines).
		Int("documents", stats.Documents).
		Dur("took", stats.Duration).
		Msg("analysis complete")
	return idx, stats, nil
}

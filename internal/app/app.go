// Package app wires configuration into the analysis pipeline and owns the
// session that questions are answered from.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/internal/config"
	"github.com/seanblong/orgsearch/internal/corpus"
	"github.com/seanblong/orgsearch/internal/indexer"
	"github.com/seanblong/orgsearch/internal/search"
	"github.com/seanblong/orgsearch/internal/session"
	"github.com/seanblong/orgsearch/internal/source"
	"github.com/seanblong/orgsearch/internal/store"
	"github.com/seanblong/orgsearch/pkg/models"
)

type App struct {
	Client  ai.Client
	Indexer *indexer.Indexer
	Search  *search.Service
	Session *session.Session

	closers []func()
	// checks report whether backing services are reachable.
	checks  []func(context.Context) error
}

// New builds every collaborator named by cfg. Close releases them.
func New(ctx context.Context, cfg config.Specification) (*App, error) {
	clientConfig, err := ClientConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create AI client: %w", err)
	}
	log.Info().Str("provider", string(clientConfig.Provider)).Int("embedding_dim", client.Dim()).Msg("AI client initialized")

	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{}
	var backend corpus.Backend
	if cfg.IndexBackend == "postgres" {
		st, err := store.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.checks = append(a.checks, st.Ping)
		if err := st.Migrate(ctx, client.Dim()); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		backend = st
	}

	attribution, err := corpus.ParseAttribution(cfg.Attribution)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := indexer.Options{
		ChunkSize:   cfg.ChunkSize,
		MaxFiles:    cfg.MaxFiles,
		Workers:     cfg.Workers,
		Attribution: attribution,
	}
	a.Client = client
	a.Indexer = indexer.New(src, client, backend, opts)
	a.Search = search.NewService(client, cfg.TopK)
	a.Session = session.New()
	return a, nil
}

// NewWith assembles an App from prebuilt parts for testing
func NewWith(client ai.Client, ix *indexer.Indexer, topK int) *App {
	return &App{
		Client:  client,
		Indexer: ix,
		Search:  search.NewService(client, topK),
		Session: session.New(),
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Healthy returns the first failing backing-service check.
func (a *App) Healthy(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Analyze runs one full analysis and installs the new index. The prior index
// stays current if the run fails.
func (a *App) Analyze(ctx context.Context) (indexer.Stats, error) {
	if err := a.Session.TryBeginRun(); err != nil {
		return indexer.Stats{}, err
	}
	defer a.Session.EndRun()

	idx, stats, err := a.Indexer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		return stats, err
	}
	a.Session.Transition(idx)
	return stats, nil
}

// Ask answers q from the current index.
func (a *App) Ask(ctx context.Context, q string) (models.QueryResult, error) {
	idx, err := a.Session.Current()
	if err != nil {
		return models.QueryResult{}, err
	}
	return a.Search.Ask(ctx, idx, q)
}

// ClientConfig maps the provider options of cfg onto an ai.ClientConfig.
func ClientConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	provider, err := ai.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	cc := &ai.ClientConfig{
		Provider: provider,
		Dim:      cfg.Dim,
	}
	switch provider {
	case ai.ProviderOpenAI:
		cc.APIKey = cfg.APIKey
		cc.ChatModel = cfg.ChatModel
		cc.EmbedModel = cfg.EmbedModel
		cc.BaseURL = cfg.BaseURL
	case ai.ProviderVertexAI:
		cc.APIKey = cfg.APIKey
		cc.ChatModel = cfg.ChatModel
		cc.EmbedModel = cfg.EmbedModel
		cc.ProjectID = cfg.ProjectID
		cc.Location = cfg.Location
	case ai.ProviderOllama:
		cc.ChatModel = cfg.ChatModel
		cc.EmbedModel = cfg.EmbedModel
		cc.BaseURL = cfg.BaseURL
	}
	return cc, nil
}

var ErrUnknownSource = errors.New("unknown source")

// NewSource returns the repository source selected by cfg.
func NewSource(cfg config.Specification) (source.Source, error) {
	switch cfg.Source {
	case "github":
		if cfg.GithubToken == "" {
			log.Warn().Msg("no GitHub token configured; API rate limits will be low")
		}
		return source.NewGitHub(cfg.GithubAPI, cfg.Org, cfg.GithubToken), nil
	case "local", "":
		l, err := source.NewLocal(cfg.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("local source: %w", err)
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Source)
}

package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/pkg/models"
)

// DefaultTopK is how many documents back an answer.
const DefaultTopK = 4

const snippetRunes = 200

const systemPrompt = "Use the following pieces of context to answer the user's question. \n" +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n" +
	"----------------\n%s"

var ErrEmptyQuery = errors.New("query is empty")

// Retriever returns the documents most similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchResult, error)
}

type Service struct {
	Client ai.Client
	TopK   int
}

// NewService creates a new search service answering with the provided AI client
func NewService(client ai.Client, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		Client: client,
		TopK:   topK,
	}
}

// Query returns the raw nearest documents for q.
func (s *Service) Query(ctx context.Context, r Retriever, q string, k int) ([]models.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.TopK
	}
	return r.Search(ctx, q, k)
}

// Ask answers q from the TopK documents r retrieves, in a single completion.
func (s *Service) Ask(ctx context.Context, r Retriever, q string) (models.QueryResult, error) {
	q = strings.TrimSpace(q)
	res, err := s.Query(ctx, r, q, s.TopK)
	if err != nil {
		return models.QueryResult{}, err
	}

	contents := make([]string, 0, len(res))
	sources := make([]models.Source, 0, len(res))
	for _, sr := range res {
		contents = append(contents, sr.Document.Content)
		sources = append(sources, models.Source{
			Repo:    sr.Document.Metadata.Repo,
			Snippet: Snippet(sr.Document.Content),
		})
	}

	answer, err := s.Client.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: fmt.Sprintf(systemPrompt, strings.Join(contents, "\n\n"))},
		{Role: ai.RoleUser, Content: q},
	})
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("answer: %w", err)
	}

	log.Debug().Str("query", q).Int("sources", len(sources)).Msg("question answered")
	return models.QueryResult{Answer: answer, Sources: sources, AnsweredAt: time.Now()}, nil
}

// Snippet returns the first 200 characters of content with newlines
// flattened to spaces.
func Snippet(content string) string {
	r := []rune(content)
	if len(r) > snippetRunes {
		r = r[:snippetRunes]
	}
	return strings.ReplaceAll(string(r), "\n", " ")
}

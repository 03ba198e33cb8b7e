// Package corpus turns analyzed repositories into a searchable vector index.
package corpus

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/pkg/models"
)

// Attribution selects what a document's Repo metadata names.
type Attribution string

const (
	AttributeRepository Attribution = "repository"
	AttributeFile       Attribution = "file"
)

// DefaultEmbedBatch is how many documents are embedded per request.
const DefaultEmbedBatch = 64

var ErrUnknownAttribution = errors.New("unknown attribution mode")

func ParseAttribution(s string) (Attribution, error) {
	switch Attribution(strings.ToLower(strings.TrimSpace(s))) {
	case "", AttributeRepository:
		return AttributeRepository, nil
	case AttributeFile:
		return AttributeFile, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAttribution, s)
}

// Backend stores embedded documents and answers nearest-neighbour queries.
// Replace swaps the whole content in one step.
type Backend interface {
	Replace(ctx context.Context, docs []models.Document, vecs [][]float32) error
	Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error)
}

// Index is a built corpus bound to the client that embeds its queries.
type Index struct {
	backend Backend
	client  ai.Client
	runID   string
	builtAt time.Time
	size    int
}

// Search embeds the query and returns up to k documents, most similar first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	vecs, err := ix.client.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return ix.backend.Search(ctx, vecs[0], k)
}

func (ix *Index) Len() int           { return ix.size }
func (ix *Index) RunID() string      { return ix.runID }
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Builder embeds documents and loads them into a backend. A nil Backend
// gives every build its own Memory.
type Builder struct {
	Client      ai.Client
	Backend     Backend
	Attribution Attribution
	BatchSize   int
}

func NewBuilder(client ai.Client, backend Backend, attribution Attribution) *Builder {
	if attribution == "" {
		attribution = AttributeRepository
	}
	return &Builder{Client: client, Backend: backend, Attribution: attribution, BatchSize: DefaultEmbedBatch}
}

// Build creates one document per analyzed file of every summary. With
// AttributeFile, Repo is derived from the block exactly as BuildFromBlocks
// derives it.
func (b *Builder) Build(ctx context.Context, summaries []models.RepositorySummary) (*Index, error) {
	var docs []models.Document
	for _, s := range summaries {
		for _, f := range s.Files {
			meta := models.DocumentMetadata{
				Repository: s.RepositoryName,
				File:       f.FileName,
				Lines:      f.LineCount,
			}
			block := f.Block()
			if b.Attribution == AttributeFile {
				meta.Repo = DeriveRepo(block)
			} else {
				meta.Repo = s.RepositoryName
			}
			docs = append(docs, newDocument(len(docs), block, meta))
		}
	}
	return b.load(ctx, docs)
}

// BuildFromBlocks is the legacy text path: it indexes pre-rendered per-file
// blocks, attributing each to the text after the first ": " of its first
// line. Build with AttributeFile produces the same attribution from
// structured summaries.
func (b *Builder) BuildFromBlocks(ctx context.Context, blocks []string) (*Index, error) {
	docs := make([]models.Document, 0, len(blocks))
	for _, block := range blocks {
		docs = append(docs, newDocument(len(docs), block, models.DocumentMetadata{Repo: DeriveRepo(block)}))
	}
	return b.load(ctx, docs)
}

// DeriveRepo returns the remainder of the first line after its first ": ",
// or the whole first line when there is no such separator.
func DeriveRepo(block string) string {
	first, _, _ := strings.Cut(block, "\n")
	if _, rest, ok := strings.Cut(first, ": "); ok {
		return rest
	}
	return first
}

func (b *Builder) load(ctx context.Context, docs []models.Document) (*Index, error) {
	start := time.Now()
	vecs, err := b.embed(ctx, docs)
	if err != nil {
		return nil, err
	}
	backend := b.Backend
	if backend == nil {
		backend = NewMemory()
	}
	if err := backend.Replace(ctx, docs, vecs); err != nil {
		return nil, fmt.Errorf("replace index: %w", err)
	}

	ix := &Index{
		backend: backend,
		client:  b.Client,
		runID:   uuid.NewString(),
		builtAt: time.Now(),
		size:    len(docs),
	}
	log.Info().Str("run_id", ix.runID).Int("documents", len(docs)).
		Dur("took", time.Since(start)).Msg("index built")
	return ix, nil
}

func (b *Builder) embed(ctx context.Context, docs []models.Document) ([][]float32, error) {
	size := b.BatchSize
	if size <= 0 {
		size = DefaultEmbedBatch
	}
	vecs := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		texts := make([]string, 0, end-start)
		for _, d := range docs[start:end] {
			texts = append(texts, d.Content)
		}
		out, err := b.Client.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embed documents %d-%d: got %d vectors", start, end-1, len(out))
		}
		vecs = append(vecs, out...)
	}
	return vecs, nil
}

func newDocument(pos int, content string, meta models.DocumentMetadata) models.Document {
	return models.Document{ID: docID(pos, meta, content), Content: content, Metadata: meta}
}

// docID is stable for a document's position and content; identical blocks
// still get distinct ids.
func docID(pos int, meta models.DocumentMetadata, content string) string {
	h := sha1.New()
	h.Write([]byte(strconv.Itoa(pos)))
	h.Write([]byte{0})
	h.Write([]byte(meta.Repository))
	h.Write([]byte{0})
	h.Write([]byte(meta.File))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

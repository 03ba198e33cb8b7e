package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/internal/source"
	"github.com/seanblong/orgsearch/pkg/models"
)

// FetchFailedAnalysis stands in for the analysis of a file whose content
// could not be fetched.
const FetchFailedAnalysis = "Failed to fetch file content."

const chunkSystemPrompt = "You are a helpful assistant summarizing file content and structure."

const chunkUserPrompt = `Analyze the following code file chunk and extract:
- Key functions and methods.
- Main purpose of this chunk.
- Any comments or inline documentation.
- Dependencies or imports used.
Content: %s`

// FileAnalyzer summarizes one file with one model call per chunk.
type FileAnalyzer struct {
	Fetcher   source.Fetcher
	Client    ai.Client
	ChunkSize int
}

func NewFileAnalyzer(f source.Fetcher, c ai.Client, chunkSize int) *FileAnalyzer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FileAnalyzer{Fetcher: f, Client: c, ChunkSize: chunkSize}
}

// Analyze fetches the entry's content and analyzes it chunk by chunk, in
// order. A non-success fetch status is absorbed into a zero-line analysis
// holding FetchFailedAnalysis; model and transport errors are returned.
func (fa *FileAnalyzer) Analyze(ctx context.Context, repository string, entry models.RawFileEntry) (models.FileAnalysis, error) {
	out := models.FileAnalysis{Repository: repository, FileName: entry.Name}

	content, err := fa.Fetcher.Fetch(ctx, entry.ContentURL)
	var se *source.StatusError
	if errors.As(err, &se) {
		log.Warn().Str("repository", repository).Str("file", entry.Name).Int("status", se.StatusCode).Msg("fetch failed, recording sentinel")
		out.CombinedAnalysis = FetchFailedAnalysis
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("fetch %s/%s: %w", repository, entry.Name, err)
	}

	lines := SplitLines(content)
	out.LineCount = len(lines)

	chunks, err := Split(lines, fa.ChunkSize)
	if err != nil {
		return out, err
	}

	analyses := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		text, err := fa.Client.Complete(ctx, chunkMessages(ch))
		if err != nil {
			return out, fmt.Errorf("analyze %s/%s chunk %d: %w", repository, entry.Name, ch.Index, err)
		}
		log.Debug().Str("repository", repository).Str("file", entry.Name).
			Int("chunk", ch.Index).Int("lines", len(ch.Lines)).Msg("chunk analyzed")
		analyses = append(analyses, text)
	}
	out.CombinedAnalysis = strings.Join(analyses, "\n")
	return out, nil
}

func chunkMessages(ch Chunk) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: chunkSystemPrompt},
		{Role: ai.RoleUser, Content: fmt.Sprintf(chunkUserPrompt, ch.Text())},
	}
}

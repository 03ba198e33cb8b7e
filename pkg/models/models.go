package models

import (
	"fmt"
	"time"
)

type EntryKind string

const (
	EntryFile  EntryKind = "file"
	EntryOther EntryKind = "other"
)

// RawFileEntry is one top-level entry of a repository listing.
type RawFileEntry struct {
	Kind       EntryKind `json:"kind"`
	Name       string    `json:"name"`
	ContentURL string    `json:"content_url"`
}

func (e RawFileEntry) IsFile() bool { return e.Kind == EntryFile }

type Repository struct {
	Name string `json:"name"`
}

// FileAnalysis is the aggregated model output for one file.
type FileAnalysis struct {
	Repository       string `json:"repository"`
	FileName         string `json:"file_name"`
	LineCount        int    `json:"line_count"`
	CombinedAnalysis string `json:"combined_analysis"`
}

// Block renders the analysis as the per-file text block that gets indexed.
func (f FileAnalysis) Block() string {
	return fmt.Sprintf("File: %s\nLines: %d\nAnalysis:\n%s\n", f.FileName, f.LineCount, f.CombinedAnalysis)
}

type RepositorySummary struct {
	RepositoryName string         `json:"repository_name"`
	TotalFiles     int            `json:"total_files"`
	TotalLines     int            `json:"total_lines"`
	Files          []FileAnalysis `json:"files"`
}

// PerFileText returns the formatted block of every analyzed file in input order.
func (s RepositorySummary) PerFileText() []string {
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Block())
	}
	return out
}

type DocumentMetadata struct {
	Repo       string `json:"repo"`
	Repository string `json:"repository,omitempty"`
	File       string `json:"file,omitempty"`
	Lines      int    `json:"lines"`
}

type Document struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

type Source struct {
	Repo    string `json:"repo"`
	Snippet string `json:"snippet"`
}

type QueryResult struct {
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	AnsweredAt time.Time `json:"answered_at"`
}

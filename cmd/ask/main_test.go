package main

import (
	"bytes"
	"testing"

	"github.com/seanblong/orgsearch/pkg/models"
)

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, models.QueryResult{
		Answer:  "Invoices are generated in billing.",
		Sources: []models.Source{{Repo: "billing", Snippet: "File: invoice.py Lines: 2"}},
	})
	want := "Invoices are generated in billing.\n\nSources:\n  [billing] File: invoice.py Lines: 2\n\n"
	if buf.String() != want {
		t.Errorf("printResult() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printResult(&buf, models.QueryResult{Answer: "I don't know."})
	if buf.String() != "I don't know.\n" {
		t.Errorf("printResult() without sources = %q", buf.String())
	}
}

package source

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/seanblong/orgsearch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newLocalOrg(t *testing.T) *Local {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "beta", "README.md"), "# beta\n")
	writeFile(t, filepath.Join(root, "alpha", "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "alpha", "cmd", "tool.go"), "package cmd\n")
	writeFile(t, filepath.Join(root, "alpha", "a.txt"), "a\n")
	writeFile(t, filepath.Join(root, ".hidden", "x"), "x")
	writeFile(t, filepath.Join(root, "loose.txt"), "not a repo")

	l, err := NewLocal(root)
	require.NoError(t, err)
	return l
}

func TestLocal_ListRepositories(t *testing.T) {
	l := newLocalOrg(t)

	repos, err := l.ListRepositories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Repository{{Name: "alpha"}, {Name: "beta"}}, repos)
}

func TestLocal_ListContentsSortedWithKinds(t *testing.T) {
	l := newLocalOrg(t)

	entries, err := l.ListContents(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, models.EntryFile, entries[0].Kind)
	assert.Equal(t, "cmd", entries[1].Name)
	assert.Equal(t, models.EntryOther, entries[1].Kind)
	assert.Empty(t, entries[1].ContentURL)
	assert.Equal(t, "main.go", entries[2].Name)

	body, err := l.Fetch(context.Background(), entries[2].ContentURL)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", body)
}

func TestLocal_ListContentsMissingRepository(t *testing.T) {
	l := newLocalOrg(t)
	_, err := l.ListContents(context.Background(), "nope")
	assert.Error(t, err)
}

func TestLocal_FetchFailuresAreStatusErrors(t *testing.T) {
	l := newLocalOrg(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"missing file", fileURL(filepath.Join(l.Root, "alpha", "gone.go")), http.StatusNotFound},
		{"outside root", fileURL(filepath.Join(filepath.Dir(l.Root), "etc", "passwd")), http.StatusNotFound},
		{"wrong scheme", "https://example.com/x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Fetch(ctx, tt.url)
			var se *StatusError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.status, se.StatusCode)
		})
	}
}

func TestNewLocalRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "f")
	writeFile(t, f, "x")
	_, err := NewLocal(f)
	assert.Error(t, err)
}

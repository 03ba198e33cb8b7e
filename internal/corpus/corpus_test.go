package corpus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/seanblong/orgsearch/internal/ai"
	"github.com/seanblong/orgsearch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// countingClient wraps the stub client and records embed batch sizes.
type countingClient struct {
	*ai.StubClient
	batches []int
	err     error
}

func (c *countingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, len(texts))
	if c.err != nil {
		return nil, c.err
	}
	return c.StubClient.Embed(ctx, texts)
}

// failingBackend rejects every Replace.
type failingBackend struct{ Memory }

func (f *failingBackend) Replace(ctx context.Context, docs []models.Document, vecs [][]float32) error {
	return errors.New("disk full")
}

func summaries() []models.RepositorySummary {
	return []models.RepositorySummary{
		{
			RepositoryName: "payments",
			Files: []models.FileAnalysis{
				{Repository: "payments", FileName: "auth.py", LineCount: 42, CombinedAnalysis: "Token validation and login helpers."},
				{Repository: "payments", FileName: "ledger.go", LineCount: 300, CombinedAnalysis: "Double entry ledger balances."},
			},
		},
		{
			RepositoryName: "infra",
			Files: []models.FileAnalysis{
				{Repository: "infra", FileName: "deploy.sh", LineCount: 0, CombinedAnalysis: "Failed to fetch file content."},
			},
		},
	}
}

func TestDeriveRepo(t *testing.T) {
	tests := []struct {
		block string
		want  string
	}{
		{"File: auth.py\nLines: 42\nAnalysis:\n...", "auth.py"},
		{"File: a: b.txt\nLines: 1", "a: b.txt"},
		{"no separator here\nLines: 1", "no separator here"},
		{"File:auth.py\n", "File:auth.py"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveRepo(tt.block), "%q", tt.block)
	}
}

func TestParseAttribution(t *testing.T) {
	for in, want := range map[string]Attribution{"": AttributeRepository, "repository": AttributeRepository, " File ": AttributeFile} {
		got, err := ParseAttribution(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAttribution("owner")
	assert.ErrorIs(t, err, ErrUnknownAttribution)
}

func TestBuildFromBlocks_AttributesFileName(t *testing.T) {
	block := "File: auth.py\nLines: 42\nAnalysis:\nValidates session tokens.\n"
	ix, err := NewBuilder(ai.NewStubClient(64), nil, "").BuildFromBlocks(context.Background(), []string{block})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
	assert.NotEmpty(t, ix.RunID())
	assert.False(t, ix.BuiltAt().IsZero())

	res, err := ix.Search(context.Background(), "how are tokens validated?", 4)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "auth.py", res[0].Document.Metadata.Repo)
	assert.Equal(t, block, res[0].Document.Content)
}

func TestBuild_Attribution(t *testing.T) {
	tests := []struct {
		mode  Attribution
		repos []string
	}{
		{AttributeRepository, []string{"payments", "payments", "infra"}},
		{AttributeFile, []string{"auth.py", "ledger.go", "deploy.sh"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			mem := NewMemory()
			ix, err := NewBuilder(ai.NewStubClient(64), mem, tt.mode).Build(context.Background(), summaries())
			require.NoError(t, err)
			assert.Equal(t, 3, ix.Len())

			res, err := mem.Search(context.Background(), make([]float32, 64), -1)
			require.NoError(t, err)
			require.Len(t, res, 3)
			// Zero query vector scores everything equally, so insertion order holds.
			var repos []string
			for _, r := range res {
				repos = append(repos, r.Document.Metadata.Repo)
			}
			assert.Equal(t, tt.repos, repos)
			assert.Equal(t, "payments", res[0].Document.Metadata.Repository)
			assert.Equal(t, "auth.py", res[0].Document.Metadata.File)
			assert.Equal(t, 42, res[0].Document.Metadata.Lines)
			assert.Equal(t, summaries()[0].Files[0].Block(), res[0].Document.Content)
		})
	}
}

func TestBuild_FileAttributionMatchesBlocks(t *testing.T) {
	ctx := context.Background()
	var blocks []string
	for _, s := range summaries() {
		blocks = append(blocks, s.PerFileText()...)
	}

	structured := NewMemory()
	_, err := NewBuilder(ai.NewStubClient(32), structured, AttributeFile).Build(ctx, summaries())
	require.NoError(t, err)
	legacy := NewMemory()
	_, err = NewBuilder(ai.NewStubClient(32), legacy, "").BuildFromBlocks(ctx, blocks)
	require.NoError(t, err)

	a, err := structured.Search(ctx, make([]float32, 32), -1)
	require.NoError(t, err)
	b, err := legacy.Search(ctx, make([]float32, 32), -1)
	require.NoError(t, err)
	require.Len(t, a, len(blocks))
	require.Len(t, b, len(blocks))
	for i := range a {
		assert.Equal(t, b[i].Document.Metadata.Repo, a[i].Document.Metadata.Repo)
		assert.Equal(t, b[i].Document.Content, a[i].Document.Content)
	}
}

func TestBuild_NoDedupAndDistinctIDs(t *testing.T) {
	block := "File: same.txt\nLines: 1\nAnalysis:\nx\n"
	mem := NewMemory()
	ix, err := NewBuilder(ai.NewStubClient(16), mem, "").BuildFromBlocks(context.Background(), []string{block, block})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	res, err := mem.Search(context.Background(), make([]float32, 16), 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.NotEqual(t, res[0].Document.ID, res[1].Document.ID)
}

func TestBuild_EmbedsInBatches(t *testing.T) {
	client := &countingClient{StubClient: ai.NewStubClient(8)}
	b := NewBuilder(client, nil, "")
	b.BatchSize = 2

	blocks := []string{"File: a\n", "File: b\n", "File: c\n", "File: d\n", "File: e\n"}
	ix, err := b.BuildFromBlocks(context.Background(), blocks)
	require.NoError(t, err)
	assert.Equal(t, 5, ix.Len())
	assert.Equal(t, []int{2, 2, 1}, client.batches)
}

func TestBuild_FailureLeavesBackendUntouched(t *testing.T) {
	mem := NewMemory()
	_, err := NewBuilder(ai.NewStubClient(8), mem, "").BuildFromBlocks(context.Background(), []string{"File: keep\n"})
	require.NoError(t, err)

	client := &countingClient{StubClient: ai.NewStubClient(8), err: errors.New("rate limited")}
	_, err = NewBuilder(client, mem, "").BuildFromBlocks(context.Background(), []string{"File: new\n"})
	assert.ErrorContains(t, err, "rate limited")

	res, err := mem.Search(context.Background(), make([]float32, 8), 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "keep", res[0].Document.Metadata.Repo)

	_, err = NewBuilder(ai.NewStubClient(8), &failingBackend{}, "").BuildFromBlocks(context.Background(), []string{"File: x\n"})
	assert.ErrorContains(t, err, "disk full")
}

func TestBuild_EmptyCorpus(t *testing.T) {
	ix, err := NewBuilder(ai.NewStubClient(8), nil, "").Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())

	res, err := ix.Search(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndexSearch_RanksBySimilarity(t *testing.T) {
	blocks := []string{
		"File: deploy.sh\nLines: 10\nAnalysis:\nkubernetes rollout helm chart deploy\n",
		"File: auth.py\nLines: 42\nAnalysis:\npassword hashing token login session\n",
		"File: ledger.go\nLines: 300\nAnalysis:\ndouble entry accounting balances\n",
	}
	ix, err := NewBuilder(ai.NewStubClient(256), nil, "").BuildFromBlocks(context.Background(), blocks)
	require.NoError(t, err)

	res, err := ix.Search(context.Background(), "login token session password", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "auth.py", res[0].Document.Metadata.Repo)
	assert.GreaterOrEqual(t, res[0].Score, res[1].Score)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.Error(t, m.Replace(ctx, []models.Document{{ID: "a"}}, nil))

	docs := []models.Document{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	require.NoError(t, m.Replace(ctx, docs, vecs))

	res, err := m.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].Document.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "z", res[1].Document.ID)
	assert.InDelta(t, 0.7071, res[1].Score, 1e-3)

	res, err = m.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"y", "z", "x"}, []string{res[0].Document.ID, res[1].Document.ID, res[2].Document.ID})
	assert.InDelta(t, 0.0, res[2].Score, 1e-6)

	res, err = m.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Search(cctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_Dimensions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Replace(ctx, []models.Document{{ID: "a"}}, [][]float32{{1, 0}}))

	err := m.Replace(ctx, []models.Document{{ID: "b"}, {ID: "c"}}, [][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorContains(t, err, "vector 1 has dimension 3, want 2")

	_, err = m.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorContains(t, err, "query has dimension 3, index has 2")

	// The rejected Replace kept the previous contents.
	res, err := m.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].Document.ID)
}

func TestMemory_NearestOnArc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const n = 50
	docs := make([]models.Document, n)
	vecs := make([][]float32, n)
	for i := range n {
		theta := float64(i) * math.Pi / (2 * n)
		docs[i] = models.Document{ID: fmt.Sprint(i)}
		vecs[i] = []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
	}
	require.NoError(t, m.Replace(ctx, docs, vecs))

	res, err := m.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"0", "1", "2"}, []string{res[0].Document.ID, res[1].Document.ID, res[2].Document.ID})
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

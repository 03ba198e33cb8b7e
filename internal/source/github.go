package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/orgsearch/pkg/models"
)

const DefaultGitHubAPI = "https://api.github.com"

// GitHub talks to the GitHub REST API on behalf of one organization.
type GitHub struct {
	BaseURL string
	Org     string
	Token   string
	HTTP    *http.Client
}

// NewGitHub creates a GitHub source. An empty baseURL selects api.github.com.
func NewGitHub(baseURL, org, token string) *GitHub {
	if baseURL == "" {
		baseURL = DefaultGitHubAPI
	}
	return &GitHub{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Org:     org,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type githubRepo struct {
	Name string `json:"name"`
}

type githubEntry struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// ListRepositories returns every repository of the organization in API order,
// following pagination links.
func (g *GitHub) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	next := fmt.Sprintf("%s/orgs/%s/repos?per_page=100", g.BaseURL, url.PathEscape(g.Org))
	var repos []models.Repository
	for next != "" {
		var page []githubRepo
		link, err := g.getJSON(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}
		for _, r := range page {
			repos = append(repos, models.Repository{Name: r.Name})
		}
		next = nextLink(link)
	}
	return repos, nil
}

// ListContents returns the top-level entries of one repository.
func (g *GitHub) ListContents(ctx context.Context, repository string) ([]models.RawFileEntry, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents", g.BaseURL, url.PathEscape(g.Org), url.PathEscape(repository))
	var entries []githubEntry
	if _, err := g.getJSON(ctx, u, &entries); err != nil {
		return nil, fmt.Errorf("list contents of %s: %w", repository, err)
	}

	out := make([]models.RawFileEntry, 0, len(entries))
	for _, e := range entries {
		kind := models.EntryOther
		if e.Type == "file" {
			kind = models.EntryFile
		}
		out = append(out, models.RawFileEntry{Kind: kind, Name: e.Name, ContentURL: e.DownloadURL})
	}
	return out, nil
}

// Fetch downloads raw file content.
func (g *GitHub) Fetch(ctx context.Context, rawURL string) (string, error) {
	resp, err := g.do(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (g *GitHub) getJSON(ctx context.Context, u string, into any) (string, error) {
	resp, err := g.do(ctx, u)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return "", fmt.Errorf("decode %s: %w", u, err)
	}
	return resp.Header.Get("Link"), nil
}

func (g *GitHub) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	return g.HTTP.Do(req)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close response body")
	}
}

var linkNextRE = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// nextLink extracts the rel="next" target of a Link header.
func nextLink(header string) string {
	m := linkNextRE.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return m[1]
}

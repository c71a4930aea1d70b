package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// repoSearcher is the subset of the GitHub search API used here.
type repoSearcher interface {
	Repositories(ctx context.Context, query string, opts *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error)
}

// GitHubOpts configures a GitHub source.
type GitHubOpts struct {
	Token      string
	MaxResults int
	Now        func() time.Time
	Logger     *zap.Logger
}

// GitHub surfaces recently active repositories matching the query.
type GitHub struct {
	token      string
	search     repoSearcher
	maxResults int
	now        func() time.Time
	log        *zap.Logger
}

// NewGitHub creates a code-hosting source authenticated with opts.Token.
func NewGitHub(opts GitHubOpts) *GitHub {
	var httpClient *http.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return newGitHub(opts, github.NewClient(httpClient).Search)
}

func newGitHub(opts GitHubOpts, search repoSearcher) *GitHub {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GitHub{
		token:      opts.Token,
		search:     search,
		maxResults: opts.MaxResults,
		now:        opts.Now,
		log:        logging.OrNop(opts.Logger),
	}
}

// Name implements Source.
func (g *GitHub) Name() string { return models.SourceCodeHosting }

// Configured implements Source.
func (g *GitHub) Configured() bool { return g.token != "" }

// Fetch implements Source.
func (g *GitHub) Fetch(ctx context.Context, query string, scope models.Scope, platforms []string) ([]models.Candidate, error) {
	if !g.Configured() {
		return []models.Candidate{g.simulated(query)}, nil
	}

	since := g.now().Add(-windowDuration(scope.TimeWindow))
	q := fmt.Sprintf("%s pushed:>%s", strings.Join(strings.Fields(query), " "), since.Format("2006-01-02"))
	result, _, err := g.search.Repositories(ctx, q, &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: g.maxResults},
	})
	if err != nil {
		return nil, fmt.Errorf("source: github: search: %w", err)
	}

	out := make([]models.Candidate, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		if len(out) == g.maxResults {
			break
		}
		title := r.GetFullName()
		if d := r.GetDescription(); d != "" {
			title += ": " + d
		}
		out = append(out, models.Candidate{
			Title:         title,
			Content:       r.GetDescription(),
			URL:           r.GetHTMLURL(),
			PublishedDate: r.GetPushedAt().UTC().Format(time.RFC3339),
			Source:        models.SourceCodeHosting,
			Score:         r.GetStargazersCount(),
			RawData: map[string]any{
				"language": r.GetLanguage(),
				"forks":    r.GetForksCount(),
			},
		})
	}
	g.log.Debug("github search complete", zap.String("query", q), zap.Int("results", len(out)))
	return out, nil
}

func (g *GitHub) simulated(query string) models.Candidate {
	return models.Candidate{
		Title:         fmt.Sprintf("example/%s: open-source project", strings.ReplaceAll(strings.ToLower(strings.Join(strings.Fields(query), "-")), "/", "-")),
		Content:       fmt.Sprintf("Repository activity related to %s.", query),
		URL:           "https://github.com/example/example",
		PublishedDate: g.now().UTC().Format(time.RFC3339),
		Source:        models.SourceCodeHosting,
		Score:         50,
		RawData:       map[string]any{"simulated": true},
	}
}

// windowDuration maps a scope time window to a look-back duration.
func windowDuration(window string) time.Duration {
	w := strings.ToLower(window)
	switch {
	case strings.Contains(w, "7 days") || strings.Contains(w, "week"):
		return 7 * 24 * time.Hour
	case strings.Contains(w, "3 months") || strings.Contains(w, "quarter") || strings.Contains(w, "90 days"):
		return 90 * 24 * time.Hour
	case strings.Contains(w, "year") || strings.Contains(w, "12 months"):
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

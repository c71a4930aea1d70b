package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"go.uber.org/zap"
)

// WebSearchOpts configures a WebSearch source.
type WebSearchOpts struct {
	APIKey       string
	Endpoint     string
	MaxResults   int
	TrendDomains map[string][]string
	HTTPClient   *http.Client
	Now          func() time.Time
	Logger       *zap.Logger
}

// WebSearch queries a Tavily-compatible search API.
type WebSearch struct {
	apiKey     string
	endpoint   string
	maxResults int
	domains    map[string][]string
	client     *http.Client
	now        func() time.Time
	log        *zap.Logger
}

// NewWebSearch creates a web-search source.
func NewWebSearch(opts WebSearchOpts) *WebSearch {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://api.tavily.com/search"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WebSearch{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		maxResults: opts.MaxResults,
		domains:    opts.TrendDomains,
		client:     opts.HTTPClient,
		now:        opts.Now,
		log:        logging.OrNop(opts.Logger),
	}
}

// Name implements Source.
func (w *WebSearch) Name() string { return models.SourceWebSearch }

// Configured implements Source.
func (w *WebSearch) Configured() bool { return w.apiKey != "" }

type searchRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type searchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Fetch implements Source.
func (w *WebSearch) Fetch(ctx context.Context, query string, scope models.Scope, platforms []string) ([]models.Candidate, error) {
	if !w.Configured() {
		return []models.Candidate{w.simulated(query, scope)}, nil
	}

	req := searchRequest{
		Query:          strings.Join(strings.Fields(fmt.Sprintf("%s %s trends %s", query, scope.Domain, scope.TimeWindow)), " "),
		SearchDepth:    "advanced",
		MaxResults:     w.maxResults,
		IncludeDomains: DomainsFor(w.domains, platforms),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("source: web-search: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source: web-search: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("source: web-search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: web-search: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("source: web-search: decode response: %w", err)
	}

	out := make([]models.Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, models.Candidate{
			Title:         r.Title,
			Content:       r.Content,
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Source:        models.SourceWebSearch,
			RawData:       map[string]any{"relevance": r.Score},
		})
	}
	w.log.Debug("web search complete",
		zap.Int("results", len(out)),
		zap.Int("domains", len(req.IncludeDomains)),
	)
	return out, nil
}

func (w *WebSearch) simulated(query string, scope models.Scope) models.Candidate {
	domain := scope.Domain
	if domain == "" {
		domain = "technology"
	}
	return models.Candidate{
		Title:         fmt.Sprintf("Trending: %s in %s", query, domain),
		Content:       fmt.Sprintf("Recent developments in %s show significant growth and adoption.", query),
		URL:           "https://example.com/trend1",
		PublishedDate: w.now().UTC().Format(time.RFC3339),
		Source:        models.SourceWebSearch,
		RawData:       map[string]any{"simulated": true},
	}
}

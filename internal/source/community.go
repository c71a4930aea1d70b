package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zulandar/trendyard/internal/logging"
	"github.com/zulandar/trendyard/internal/models"
	"go.uber.org/zap"
)

const (
	maxSubreddits     = 3
	postsPerSubreddit = 5
)

// CommunityOpts configures a Community source.
type CommunityOpts struct {
	APIKey     string
	UserID     string
	Endpoint   string
	Subreddits []string
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

// Community searches discussion threads through an MCP tool server.
type Community struct {
	apiKey     string
	userID     string
	endpoint   string
	subreddits []string
	client     *http.Client
	now        func() time.Time
	log        *zap.Logger
}

// NewCommunity creates a community-discussion source.
func NewCommunity(opts CommunityOpts) *Community {
	if opts.Endpoint == "" {
		opts.Endpoint = "https://backend.composio.dev/v3/mcp"
	}
	if len(opts.Subreddits) == 0 {
		opts.Subreddits = []string{"technology", "marketing", "entrepreneur"}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Community{
		apiKey:     opts.APIKey,
		userID:     opts.UserID,
		endpoint:   opts.Endpoint,
		subreddits: opts.Subreddits,
		client:     opts.HTTPClient,
		now:        opts.Now,
		log:        logging.OrNop(opts.Logger),
	}
}

// Name implements Source.
func (c *Community) Name() string { return models.SourceCommunity }

// Configured implements Source. Both the API key and the user id are needed.
func (c *Community) Configured() bool {
	return c.apiKey != "" && c.userID != ""
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcResponse struct {
	Result *struct {
		Content json.RawMessage `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Body        string  `json:"body"`
	URL         string  `json:"url"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Author      string  `json:"author"`
}

// Fetch implements Source. A failure in one subreddit is logged and skipped.
func (c *Community) Fetch(ctx context.Context, query string, scope models.Scope, platforms []string) ([]models.Candidate, error) {
	if !c.Configured() {
		return []models.Candidate{c.simulated(query)}, nil
	}

	searchQuery := strings.TrimSpace(query + " " + scope.Domain)
	var out []models.Candidate
	var lastErr error
	subs := c.subreddits
	if len(subs) > maxSubreddits {
		subs = subs[:maxSubreddits]
	}
	for _, sub := range subs {
		posts, err := c.search(ctx, searchQuery, sub)
		if err != nil {
			lastErr = err
			c.log.Warn("community search failed",
				zap.String("subreddit", sub),
				zap.Error(err),
			)
			continue
		}
		if len(posts) > postsPerSubreddit {
			posts = posts[:postsPerSubreddit]
		}
		for _, p := range posts {
			out = append(out, c.candidate(sub, p))
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (c *Community) search(ctx context.Context, query, subreddit string) ([]post, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params: rpcParams{
			Name: "search_reddit",
			Arguments: map[string]any{
				"query":       query,
				"subreddit":   subreddit,
				"sort":        "hot",
				"limit":       postsPerSubreddit,
				"time_filter": "month",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("source: community: marshal request: %w", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("source: community: endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("user_id", c.userID)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source: community: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: community: r/%s: %w", subreddit, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: community: r/%s: unexpected status %d", subreddit, resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return nil, fmt.Errorf("source: community: r/%s: decode: %w", subreddit, err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("source: community: r/%s: rpc error %d: %s", subreddit, rpc.Error.Code, rpc.Error.Message)
	}
	if rpc.Result == nil {
		return nil, nil
	}
	return decodePosts(rpc.Result.Content), nil
}

// decodePosts accepts the content shapes MCP servers return: a list of
// posts, an object with a posts field, a JSON string of either, or a list of
// text parts holding any of those.
func decodePosts(raw json.RawMessage) []post {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return decodePosts(json.RawMessage(text))
	}

	var wrapped struct {
		Posts []post `json:"posts"`
	}
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &wrapped); err == nil {
			return wrapped.Posts
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []post
	for _, item := range items {
		var part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &part); err == nil && part.Type == "text" {
			out = append(out, decodePosts(json.RawMessage(part.Text))...)
			continue
		}
		var p post
		if err := json.Unmarshal(item, &p); err == nil && p.Title != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Community) candidate(subreddit string, p post) models.Candidate {
	content := p.Selftext
	if content == "" {
		content = p.Body
	}
	if len(content) > 500 {
		content = content[:500]
	}
	link := p.URL
	if link == "" {
		link = "https://reddit.com/r/" + subreddit
	}
	created := c.now()
	if p.CreatedUTC > 0 {
		created = time.Unix(int64(p.CreatedUTC), 0)
	}
	author := p.Author
	if author == "" {
		author = "unknown"
	}
	return models.Candidate{
		Title:         p.Title,
		Content:       content,
		URL:           link,
		PublishedDate: created.UTC().Format(time.RFC3339),
		Source:        models.SourceCommunity,
		Score:         p.Score,
		Comments:      p.NumComments,
		Subreddit:     subreddit,
		RawData:       map[string]any{"id": p.ID, "author": author},
	}
}

func (c *Community) simulated(query string) models.Candidate {
	return models.Candidate{
		Title:         fmt.Sprintf("Discussion: %s is gaining traction", query),
		Content:       fmt.Sprintf("Community discussion about %s shows increasing interest.", query),
		URL:           "https://reddit.com/r/technology/example",
		PublishedDate: c.now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
		Source:        models.SourceCommunity,
		Score:         150,
		Comments:      45,
		Subreddit:     "technology",
		RawData:       map[string]any{"simulated": true},
	}
}

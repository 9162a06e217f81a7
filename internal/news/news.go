package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/model"
)

// ErrQuotaExceeded is returned when the provider answers 429.
var ErrQuotaExceeded = errors.New("news API quota exceeded")

// removedTitle marks articles the provider has taken down.
const removedTitle = "[Removed]"

// APIError is a non-2xx answer other than 429
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("news API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("news API returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Options configures a Client
type Options struct {
	APIKey   string
	Endpoint string
	Language string
	PageSize int
	// Delay is the pause between two keyword requests.
	Delay time.Duration
}

// Client queries a NewsAPI compatible /v2/everything endpoint
type Client struct {
	apiKey     string
	endpoint   string
	language   string
	pageSize   int
	delay      time.Duration
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewClient creates a new news search client
func NewClient(opts Options, logger *zap.Logger) *Client {
	return &Client{
		apiKey:   opts.APIKey,
		endpoint: opts.Endpoint,
		language: opts.Language,
		pageSize: opts.PageSize,
		delay:    opts.Delay,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: "econ-news-digest/1.0",
		logger:    logger,
	}
}

type searchResponse struct {
	Status   string          `json:"status"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Articles []searchArticle `json:"articles"`
}

type searchArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Search issues one request for a keyword
func (c *Client) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	params := url.Values{}
	params.Set("q", keyword)
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var parsed searchResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: parsed.Code, Message: parsed.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}

	articles := make([]model.Article, 0, len(parsed.Articles))
	for _, item := range parsed.Articles {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.URL)
		if title == "" || link == "" || title == removedTitle {
			continue
		}

		source := strings.TrimSpace(item.Source.Name)
		if source == "" {
			source = "Unknown"
		}

		article := model.Article{
			Title:   title,
			URL:     link,
			Source:  source,
			Keyword: keyword,
		}
		if published, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			article.PublishedAt = published
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// FetchAll searches every keyword in order and returns the deduplicated hits.
// It never fails: a quota answer stops the loop and keeps what was collected
// before it, any other failure is logged and the next keyword is tried.
func (c *Client) FetchAll(ctx context.Context, keywords []string) []model.Article {
	c.logger.Info("Fetching news", zap.Int("keywords", len(keywords)))

	var collected []model.Article
	for i, keyword := range keywords {
		if i > 0 && !c.wait(ctx) {
			c.logger.Warn("Fetch interrupted", zap.Error(ctx.Err()))
			break
		}

		articles, err := c.Search(ctx, keyword)
		if errors.Is(err, ErrQuotaExceeded) {
			c.logger.Error("News API quota exhausted, stopping early",
				zap.String("keyword", keyword),
				zap.Int("completed_keywords", i),
				zap.Int("collected", len(collected)))
			break
		}
		if err != nil {
			c.logger.Warn("News search failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}

		collected = append(collected, articles...)
	}

	unique := Deduplicate(collected)
	c.logger.Info("Fetched unique articles", zap.Int("count", len(unique)), zap.Int("raw", len(collected)))
	return unique
}

func (c *Client) wait(ctx context.Context) bool {
	if c.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

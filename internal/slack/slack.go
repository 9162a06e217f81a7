package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pep299/econ-news-digest/internal/model"
)

const defaultBaseURL = "https://slack.com/api"

// Client posts delivery notifications to a Slack channel
type Client struct {
	botToken   string
	channel    string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Slack client
func NewClient(botToken, channel string) *Client {
	return &Client{
		botToken: botToken,
		channel:  channel,
		baseURL:  defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL points the client at another Web API root
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// ChatPostMessageRequest represents a Slack chat.postMessage request
type ChatPostMessageRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// Notify announces a delivered report with every receipt reference.
func (c *Client) Notify(ctx context.Context, report model.Report, receipts []model.Receipt) error {
	return c.sendMessage(ctx, FormatMessage(report, receipts), c.channel)
}

// FormatMessage builds the notification text
func FormatMessage(report model.Report, receipts []model.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":newspaper: *Economic report %s*\n", report.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Articles analyzed: %d\n", report.ArticleCount)
	for _, receipt := range receipts {
		fmt.Fprintf(&b, "• %s: %s\n", receipt.Target, receipt.Reference)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// sendMessage sends a message to the specified Slack channel
func (c *Client) sendMessage(ctx context.Context, text string, channel string) error {
	req := ChatPostMessageRequest{
		Channel:   channel,
		Text:      text,
		Username:  "Economic Digest",
		IconEmoji: ":chart_with_upwards_trend:",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.botToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&slackResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !slackResp.OK {
		return fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return nil
}

package model

import "time"

// Article is one search hit. It lives only for the duration of a run.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Keyword     string    `json:"keyword"`
}

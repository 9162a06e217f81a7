package model

import "time"

// Report is a rendered document waiting for delivery
type Report struct {
	Path         string
	Filename     string
	Date         time.Time
	Subject      string
	Body         string
	ArticleCount int
}

// Receipt is returned by a delivery transport on success
type Receipt struct {
	Target    string `json:"target"`
	Reference string `json:"reference"`
}

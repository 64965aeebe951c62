package model

import "time"

// NewsKind はホーム画面のカード種別を表す。
type NewsKind string

const (
	NewsKindNews  NewsKind = "news"
	NewsKindEvent NewsKind = "event"
)

// NewsItem はホーム画面に表示するお知らせを表す。
type NewsItem struct {
	Kind        NewsKind   `json:"kind"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Link        string     `json:"link,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

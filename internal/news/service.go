// Package news はホーム画面に表示するお知らせとイベントを提供する。
// お知らせは設定されたRSS/Atomフィードから取得し、取得できない場合は固定の内容を返す。
package news

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/campus/internal/metrics"
	"github.com/hitoshi/campus/internal/model"
)

// ホーム画面の見出し
const (
	HomeTitle    = "Instituto del Milagro"
	HomeSubtitle = "Bienvenido a la aplicación institucional"
)

const (
	defaultMaxItems = 5
	summaryMaxRunes = 280
)

// fallbackNews はフィード未設定時または取得失敗時のお知らせ。
var fallbackNews = []model.NewsItem{
	{
		Kind:    model.NewsKindNews,
		Title:   "Inscripciones 2025",
		Summary: "Ya se encuentran abiertas las inscripciones para el ciclo lectivo 2025.",
	},
}

// upcomingEvents はホーム画面のイベント欄。
var upcomingEvents = []model.NewsItem{
	{
		Kind:    model.NewsKindEvent,
		Title:   "Acto de fin de curso",
		Summary: "Fecha: 20 de diciembre - 18:00 hs",
	},
}

// SafeFetcher はSSRF対策済みのHTTPクライアントを払い出す。security.SSRFGuardServiceが実装する。
type SafeFetcher interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Config はお知らせ取得の設定。
type Config struct {
	FeedURL  string
	Timeout  time.Duration
	MaxSize  int64
	CacheTTL time.Duration
	MaxItems int
}

// Home はホーム画面の内容。
type Home struct {
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle"`
	Greeting string           `json:"greeting,omitempty"`
	News     []model.NewsItem `json:"news"`
	Events   []model.NewsItem `json:"events"`
}

// Service はお知らせの取得とキャッシュを行う。
type Service struct {
	config    Config
	guard     SafeFetcher
	collector metrics.MetricsCollector
	now       func() time.Time

	mu      sync.Mutex
	cached  []model.NewsItem
	expires time.Time
}

// NewService はServiceを生成する。
func NewService(config Config, guard SafeFetcher, collector metrics.MetricsCollector) *Service {
	if config.MaxItems <= 0 {
		config.MaxItems = defaultMaxItems
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		config:    config,
		guard:     guard,
		collector: collector,
		now:       time.Now,
	}
}

// Home はホーム画面の内容を返す。displayNameが空の場合は挨拶を省略する。
func (s *Service) Home(ctx context.Context, displayName string) *Home {
	h := &Home{
		Title:    HomeTitle,
		Subtitle: HomeSubtitle,
		News:     s.Items(ctx),
		Events:   cloneItems(upcomingEvents),
	}
	if name := strings.TrimSpace(displayName); name != "" {
		h.Greeting = fmt.Sprintf("Hola, %s", name)
	}
	return h
}

// Items はお知らせを返す。取得に失敗した場合はログに記録して固定の内容を返す。
func (s *Service) Items(ctx context.Context) []model.NewsItem {
	if s.config.FeedURL == "" {
		return cloneItems(fallbackNews)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Before(s.expires) {
		return cloneItems(s.cached)
	}

	start := time.Now()
	items, err := s.fetch(ctx)
	s.collector.RecordNewsFetch(time.Since(start), err)
	if err != nil {
		slog.Warn("failed to fetch news feed",
			slog.String("feed_url", s.config.FeedURL),
			slog.String("error", err.Error()),
		)
		if s.cached != nil {
			return cloneItems(s.cached)
		}
		return cloneItems(fallbackNews)
	}
	if len(items) == 0 {
		return cloneItems(fallbackNews)
	}

	s.cached = items
	s.expires = s.now().Add(s.config.CacheTTL)
	return cloneItems(items)
}

// fetch はフィードを取得してお知らせに変換する。
func (s *Service) fetch(ctx context.Context) ([]model.NewsItem, error) {
	if err := s.guard.ValidateURL(s.config.FeedURL); err != nil {
		return nil, fmt.Errorf("feed URL rejected: %w", err)
	}

	client := s.guard.NewSafeClient(s.config.Timeout, s.config.MaxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "Campus/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return convertItems(feed.Items, s.config.MaxItems), nil
}

// convertItems はgofeedの記事をお知らせに変換する。タイトルのない記事は除外する。
func convertItems(items []*gofeed.Item, limit int) []model.NewsItem {
	out := make([]model.NewsItem, 0, limit)
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		if item == nil {
			continue
		}
		title := PlainText(item.Title)
		if title == "" {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		n := model.NewsItem{
			Kind:    model.NewsKindNews,
			Title:   title,
			Summary: truncate(PlainText(summary), summaryMaxRunes),
			Link:    item.Link,
		}
		switch {
		case item.PublishedParsed != nil:
			t := *item.PublishedParsed
			n.PublishedAt = &t
		case item.UpdatedParsed != nil:
			t := *item.UpdatedParsed
			n.PublishedAt = &t
		}
		out = append(out, n)
	}
	return out
}

// PlainText はHTML断片からテキストのみを取り出し、空白を1つにまとめる。
// scriptとstyleの中身は除外する。
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}

	var b strings.Builder
	skip := 0
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if tt == html.StartTagToken && isSkippedTag(string(name)) {
				skip++
			}
			if isBlockTag(string(name)) {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) && skip > 0 {
				skip--
			}
			if isBlockTag(string(name)) {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style"
}

// isBlockTag は前後を空白で区切るタグかを返す。
func isBlockTag(name string) bool {
	switch name {
	case "p", "div", "br", "li", "ul", "ol", "tr", "td", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// truncate はrune単位でmaxを超える文字列を切り詰めて省略記号を付ける。
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}

func cloneItems(items []model.NewsItem) []model.NewsItem {
	out := make([]model.NewsItem, len(items))
	copy(out, items)
	return out
}

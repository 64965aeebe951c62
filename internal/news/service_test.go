package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/campus/internal/metrics"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Instituto</title>
  <item>
    <title>Mesas de examen</title>
    <link>https://instituto.example.com/mesas</link>
    <description>&lt;p&gt;Se publicó el &lt;b&gt;cronograma&lt;/b&gt; de mesas.&lt;/p&gt;&lt;script&gt;alert(1)&lt;/script&gt;</description>
    <pubDate>Mon, 03 Nov 2025 10:00:00 -0300</pubDate>
  </item>
  <item>
    <title></title>
    <description>sin título</description>
  </item>
  <item>
    <title>Charla abierta</title>
    <description>Jueves 18 hs</description>
  </item>
</channel>
</rss>`

// stubGuard はテスト用のSafeFetcher。httptestのサーバーへの接続を許可する。
type stubGuard struct {
	validateErr error
}

func (g *stubGuard) ValidateURL(string) error { return g.validateErr }

func (g *stubGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

// recordingCollector はRecordNewsFetchの呼び出しを数える。
type recordingCollector struct {
	metrics.Nop
	fetches  int
	failures int
}

func (c *recordingCollector) RecordNewsFetch(_ time.Duration, err error) {
	c.fetches++
	if err != nil {
		c.failures++
	}
}

func newFeedServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestService(feedURL string, guard SafeFetcher, collector *recordingCollector) *Service {
	return NewService(Config{
		FeedURL:  feedURL,
		Timeout:  time.Second,
		MaxSize:  1 << 20,
		CacheTTL: time.Minute,
	}, guard, collector)
}

func TestService_Items_FromFeed(t *testing.T) {
	srv, _ := newFeedServer(t, http.StatusOK, testFeed)
	collector := &recordingCollector{}
	svc := newTestService(srv.URL, &stubGuard{}, collector)

	items := svc.Items(context.Background())
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2: %+v", len(items), items)
	}
	if items[0].Title != "Mesas de examen" {
		t.Errorf("Title = %q", items[0].Title)
	}
	if items[0].Summary != "Se publicó el cronograma de mesas." {
		t.Errorf("Summary = %q", items[0].Summary)
	}
	if items[0].PublishedAt == nil {
		t.Error("PublishedAt should be parsed")
	}
	if items[1].Title != "Charla abierta" {
		t.Errorf("items[1].Title = %q", items[1].Title)
	}
	if collector.fetches != 1 || collector.failures != 0 {
		t.Errorf("collector = %+v", collector)
	}
}

func TestService_Items_CachedWithinTTL(t *testing.T) {
	srv, hits := newFeedServer(t, http.StatusOK, testFeed)
	svc := newTestService(srv.URL, &stubGuard{}, &recordingCollector{})

	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Items(context.Background())
	svc.Items(context.Background())
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}

	now = now.Add(2 * time.Minute)
	svc.Items(context.Background())
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Errorf("hits after expiry = %d, want 2", got)
	}
}

func TestService_Items_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) (string, SafeFetcher)
	}{
		{
			name: "feed URL not configured",
			setup: func(t *testing.T) (string, SafeFetcher) {
				return "", &stubGuard{}
			},
		},
		{
			name: "server error",
			setup: func(t *testing.T) (string, SafeFetcher) {
				srv, _ := newFeedServer(t, http.StatusInternalServerError, "")
				return srv.URL, &stubGuard{}
			},
		},
		{
			name: "not a feed",
			setup: func(t *testing.T) (string, SafeFetcher) {
				srv, _ := newFeedServer(t, http.StatusOK, "<html><body>hola</body></html>")
				return srv.URL, &stubGuard{}
			},
		},
		{
			name: "URL rejected by guard",
			setup: func(t *testing.T) (string, SafeFetcher) {
				return "http://169.254.169.254/feed", &stubGuard{validateErr: errors.New("blocked")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, guard := tt.setup(t)
			svc := newTestService(url, guard, &recordingCollector{})

			items := svc.Items(context.Background())
			if len(items) != 1 || items[0].Title != "Inscripciones 2025" {
				t.Errorf("items = %+v, want fallback", items)
			}
		})
	}
}

func TestService_Items_KeepsLastGoodOnFailure(t *testing.T) {
	status := int32(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(atomic.LoadInt32(&status))
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write([]byte(testFeed))
		}
	}))
	defer srv.Close()

	collector := &recordingCollector{}
	svc := newTestService(srv.URL, &stubGuard{}, collector)
	now := time.Now()
	svc.now = func() time.Time { return now }

	svc.Items(context.Background())
	atomic.StoreInt32(&status, http.StatusBadGateway)
	now = now.Add(time.Hour)

	items := svc.Items(context.Background())
	if len(items) != 2 || items[0].Title != "Mesas de examen" {
		t.Errorf("items = %+v, want last fetched items", items)
	}
	if collector.failures != 1 {
		t.Errorf("failures = %d, want 1", collector.failures)
	}
}

func TestService_Home(t *testing.T) {
	svc := newTestService("", &stubGuard{}, &recordingCollector{})

	h := svc.Home(context.Background(), "Ana Pérez")
	if h.Title != HomeTitle || h.Greeting != "Hola, Ana Pérez" {
		t.Errorf("home = %+v", h)
	}
	if len(h.Events) != 1 || h.Events[0].Title != "Acto de fin de curso" {
		t.Errorf("events = %+v", h.Events)
	}

	if h := svc.Home(context.Background(), " "); h.Greeting != "" {
		t.Errorf("Greeting = %q, want empty", h.Greeting)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"texto plano", "texto plano"},
		{"<p>uno</p><p>dos</p>", "uno dos"},
		{"a <b>negrita</b>!", "a negrita!"},
		{"<style>p{}</style>visible", "visible"},
		{"Caf&eacute; &amp; t&eacute;", "Café & té"},
		{"línea<br/>siguiente", "línea siguiente"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("áéíóú", 3); got != "áéí…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("corto", 10); got != "corto" {
		t.Errorf("truncate = %q", got)
	}
}

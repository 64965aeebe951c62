package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/model"
)

// requestFor は端末をコンテキストに載せたリクエストを生成する。
func requestFor(d *device.Device, method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(ContextWithDevice(req.Context(), d))
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		AuthRate:        1,
		AuthBurst:       10,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	d := &device.Device{ID: "device-1"}
	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFor(d, http.MethodGet, "/api/programs"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     0.5, // 2秒に1トークン
		GeneralBurst:    2,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	d := &device.Device{ID: "device-429"}
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFor(d, http.MethodGet, "/api/home"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFor(d, http.MethodGet, "/api/home"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter != 2 {
		t.Errorf("Retry-After = %q, want 2", resp.Header.Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeRateLimitExceeded || body.Dialog == nil {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesDevices(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		AuthRate:        1,
		AuthBurst:       1,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	a := &device.Device{ID: "device-a"}
	b := &device.Device{ID: "device-b"}

	handler.ServeHTTP(httptest.NewRecorder(), requestFor(a, http.MethodGet, "/api/home"))

	wa := httptest.NewRecorder()
	handler.ServeHTTP(wa, requestFor(a, http.MethodGet, "/api/home"))
	if wa.Code != http.StatusTooManyRequests {
		t.Errorf("device-a second request: status = %d, want 429", wa.Code)
	}

	wb := httptest.NewRecorder()
	handler.ServeHTTP(wb, requestFor(b, http.MethodGet, "/api/home"))
	if wb.Code != http.StatusOK {
		t.Errorf("device-b: status = %d, want 200", wb.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoDevice_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/home", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- AuthMiddleware (認証系) のテスト ---

func TestAuthRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		AuthRate:        1,
		AuthBurst:       2,
		CleanupInterval: 1 * time.Minute,
	})
	defer rl.Stop()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	general := rl.GeneralMiddleware()(ok)
	authLimited := rl.AuthMiddleware()(ok)

	d := &device.Device{ID: "device-auth"}

	// API全般を使い切っても認証系は通る
	general.ServeHTTP(httptest.NewRecorder(), requestFor(d, http.MethodGet, "/api/home"))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		authLimited.ServeHTTP(w, requestFor(d, http.MethodPost, "/auth/login"))
		if w.Code != http.StatusOK {
			t.Errorf("auth request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	authLimited.ServeHTTP(w, requestFor(d, http.MethodPost, "/auth/login"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("auth request 3: status = %d, want 429", w.Code)
	}
	if rl.AuthLimiterCount() != 1 {
		t.Errorf("AuthLimiterCount = %d, want 1", rl.AuthLimiterCount())
	}
}

// TestAuthRateLimit_KeyedByClientIP は端末IDを変えても同じIPからの認証系リクエストが制限されることを検証する。
func TestAuthRateLimit_KeyedByClientIP(t *testing.T) {
	rl := NewRateLimiter(NewRateLimiterConfig(1000, 1, 1000))
	defer rl.Stop()

	handler := rl.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for i := 0; i < 3; i++ {
		req := requestFor(&device.Device{ID: "device-" + strconv.Itoa(i)}, http.MethodPost, "/auth/login")
		req.RemoteAddr = "203.0.113.7:" + strconv.Itoa(40000+i)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429 429]", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "198.51.100.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
	if rl.AuthLimiterCount() != 2 {
		t.Errorf("AuthLimiterCount = %d, want 2", rl.AuthLimiterCount())
	}
}

func TestDeviceRegistrationRateLimit(t *testing.T) {
	rl := NewRateLimiter(NewRateLimiterConfig(1000, 1000, 2))
	defer rl.Stop()

	handler := rl.DeviceRegistrationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/devices", nil))
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third registration: status = %d, want 429", last)
	}
	if rl.DeviceLimiterCount() != 1 {
		t.Errorf("DeviceLimiterCount = %d, want 1", rl.DeviceLimiterCount())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"203.0.113.7:443", "203.0.113.7"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		AuthRate:        1,
		AuthBurst:       10,
		CleanupInterval: 50 * time.Millisecond, // テスト用に短く
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), requestFor(&device.Device{ID: "device-cleanup"}, http.MethodGet, "/api/home"))

	if rl.GeneralLimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍。余裕を持って待つ
	time.Sleep(250 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

// --- 設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.AuthRate == 0 {
		t.Error("AuthRate should not be 0")
	}
	if cfg.AuthBurst != 10 {
		t.Errorf("AuthBurst = %d, want 10", cfg.AuthBurst)
	}
	if cfg.DeviceBurst != 30 {
		t.Errorf("DeviceBurst = %d, want 30", cfg.DeviceBurst)
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	cfg := NewRateLimiterConfig(60, 6, 30)
	if cfg.GeneralRate != 1.0 || cfg.GeneralBurst != 60 {
		t.Errorf("general = %v/%d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.AuthRate != 0.1 || cfg.AuthBurst != 6 {
		t.Errorf("auth = %v/%d", cfg.AuthRate, cfg.AuthBurst)
	}
	if cfg.DeviceRate != 0.5 || cfg.DeviceBurst != 30 {
		t.Errorf("devices = %v/%d", cfg.DeviceRate, cfg.DeviceBurst)
	}
}

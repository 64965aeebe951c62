package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// sseHeartbeatInterval はSSE接続を維持するためのコメント送信間隔。
const sseHeartbeatInterval = 15 * time.Second

// sseWriter はServer-Sent Eventsの書き込みを行う。
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE はSSEのレスポンスヘッダーを書き込む。
// ストリーミングに対応しないResponseWriterの場合はfalseを返す。
func startSSE(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	// 長時間接続のためサーバーの書き込みタイムアウトを外す
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, true
}

// send はイベントを1件書き込む。
func (s *sseWriter) send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// heartbeat はコメント行を書き込む。
func (s *sseWriter) heartbeat() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// latest は最新値のみを保持するチャネルに値を送る。未読の古い値は捨てる。
func latest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// streamEvents はチャネルの値をSSEで送り続ける。接続が切れるかチャネルが閉じると戻る。
func streamEvents[T any](w http.ResponseWriter, r *http.Request, event string, ch <-chan T) {
	sse, ok := startSSE(w)
	if !ok {
		slog.Warn("streaming not supported", slog.String("path", r.URL.Path))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sse.heartbeat(); err != nil {
				return
			}
		case v, open := <-ch:
			if !open {
				return
			}
			if err := sse.send(event, v); err != nil {
				slog.Debug("sse write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

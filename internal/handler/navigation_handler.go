package handler

import (
	"errors"
	"net/http"

	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/model"
)

// NavigationHandler は画面セットと現在画面のHTTPハンドラー。
type NavigationHandler struct{}

// NewNavigationHandler はNavigationHandlerを生成する。
func NewNavigationHandler() *NavigationHandler {
	return &NavigationHandler{}
}

// navigationResponse はゲートの状態と表示位置のレスポンス。
type navigationResponse struct {
	Snapshot   gate.Snapshot `json:"snapshot"`
	Navigation gate.Location `json:"navigation"`
}

// navigateRequest は画面遷移リクエストのボディ。
type navigateRequest struct {
	Screen gate.Screen       `json:"screen"`
	Params map[string]string `json:"params"`
}

// GetNavigation はマウントすべき画面セットと現在画面を返す。
// GET /api/navigation
func (h *NavigationHandler) GetNavigation(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, navigationResponse{
		Snapshot:   d.Gate.Snapshot(),
		Navigation: d.Navigator.Current(),
	})
}

// Navigate はマウント中の画面セット内の画面へ遷移する。
// POST /api/navigation
func (h *NavigationHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}

	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Screen == "" {
		middleware.WriteErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := d.Navigator.Navigate(req.Screen, req.Params); err != nil {
		if errors.Is(err, gate.ErrScreenNotMounted) {
			middleware.WriteErrorResponse(w, r, http.StatusConflict, model.NewScreenNotMountedError(string(req.Screen)))
			return
		}
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, d.Navigator.Current())
}

// Events は表示位置の変化をServer-Sent Eventsで配信する。
// 接続直後に現在の表示位置を1件送る。
// GET /api/navigation/events
func (h *NavigationHandler) Events(w http.ResponseWriter, r *http.Request) {
	d, ok := requireDevice(w, r)
	if !ok {
		return
	}

	ch := make(chan gate.Location, 1)
	unsubscribe := d.Navigator.Subscribe(func(loc gate.Location) {
		latest(ch, loc)
	})
	defer unsubscribe()
	latest(ch, d.Navigator.Current())

	streamEvents(w, r, "navigation", ch)
}

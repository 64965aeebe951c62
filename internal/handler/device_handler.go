package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/gate"
)

// DeviceCreator は新しい端末を払い出す。device.Registryが実装する。
type DeviceCreator interface {
	Create(ctx context.Context) *device.Device
}

// DeviceHandler は端末登録のHTTPハンドラー。
type DeviceHandler struct {
	creator DeviceCreator
}

// NewDeviceHandler はDeviceHandlerを生成する。
func NewDeviceHandler(creator DeviceCreator) *DeviceHandler {
	return &DeviceHandler{creator: creator}
}

// deviceResponse は端末登録のレスポンス。
type deviceResponse struct {
	DeviceID   string        `json:"device_id"`
	Snapshot   gate.Snapshot `json:"snapshot"`
	Navigation gate.Location `json:"navigation"`
}

// CreateDevice は端末を登録する。以降のリクエストはX-Device-IDヘッダーで端末を指定する。
// 応答のスナップショットには初回のセッション通知が反映済み。
// POST /api/devices
func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	d := h.creator.Create(r.Context())
	writeJSON(w, http.StatusCreated, deviceResponse{
		DeviceID:   d.ID,
		Snapshot:   d.Gate.Snapshot(),
		Navigation: d.Navigator.Current(),
	})
}

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campus/internal/auth"
	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/model"
)

// --- モック定義 ---

// stubBackend はCurrentIdentityのみ意味を持つauth.Backendのスタブ。
type stubBackend struct {
	identity *model.Identity
}

func (b *stubBackend) SignIn(context.Context, string, string, string) (*model.Identity, error) {
	return b.identity, nil
}
func (b *stubBackend) SignUp(context.Context, string, string, string) (*model.Identity, error) {
	return b.identity, nil
}
func (b *stubBackend) SignOut(context.Context, string) error { return nil }
func (b *stubBackend) CurrentIdentity(context.Context, string) (*model.Identity, error) {
	return b.identity, nil
}
func (b *stubBackend) SendPasswordReset(context.Context, string) error { return nil }
func (b *stubBackend) UpdateDisplayName(context.Context, string, string) (*model.Identity, error) {
	return b.identity, nil
}

type mockAttacher struct {
	attachFn func(id string) (*device.Device, error)
}

func (m *mockAttacher) Attach(_ context.Context, id string) (*device.Device, error) {
	if m.attachFn != nil {
		return m.attachFn(id)
	}
	return nil, device.ErrInvalidDeviceID
}

type statusCounter struct {
	codes []int
}

func (s *statusCounter) RecordHTTPStatus(code int) { s.codes = append(s.codes, code) }

// newTestDevice は初回通知を反映済みの端末を生成する。identityがnilなら未認証になる。
func newTestDevice(t *testing.T, identity *model.Identity) *device.Device {
	t.Helper()
	id := uuid.New().String()
	provider := auth.NewDeviceProvider(id, &stubBackend{identity: identity})
	g := gate.New(provider)
	g.Start()
	t.Cleanup(g.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := provider.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	return &device.Device{ID: id, Provider: provider, Gate: g}
}

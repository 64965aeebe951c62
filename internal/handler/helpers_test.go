package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campus/internal/auth"
	"github.com/hitoshi/campus/internal/device"
	"github.com/hitoshi/campus/internal/flow"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/middleware"
	"github.com/hitoshi/campus/internal/model"
	"github.com/hitoshi/campus/internal/news"
	"github.com/hitoshi/campus/internal/profile"
)

// --- モック定義 ---

// stubBackend はCurrentIdentityが固定のIdentityを返すauth.Backendのスタブ。
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

// fakeRegistry は登録済みの端末だけを解決するDeviceRegistry。
type fakeRegistry struct {
	devices map[string]*device.Device
	created *device.Device
}

func (f *fakeRegistry) Create(context.Context) *device.Device {
	return f.created
}

func (f *fakeRegistry) Attach(_ context.Context, id string) (*device.Device, error) {
	if d, ok := f.devices[id]; ok {
		return d, nil
	}
	return nil, device.ErrUnknownDevice
}

type mockAuthService struct {
	loginFn                func(ctx context.Context, sess flow.Session, in flow.LoginInput) (*model.Dialog, error)
	signUpFn               func(ctx context.Context, sess flow.Session, in flow.SignUpInput) (*model.Dialog, error)
	requestPasswordResetFn func(ctx context.Context, provider flow.IdentityProvider, email string) (*model.Dialog, error)
	confirmPasswordResetFn func(ctx context.Context, in flow.ConfirmPasswordResetInput) (*model.Dialog, error)
	signOutFn              func(ctx context.Context, sess flow.Session, confirmed bool) (*model.Dialog, error)
}

func (m *mockAuthService) Login(ctx context.Context, sess flow.Session, in flow.LoginInput) (*model.Dialog, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, sess, in)
	}
	return model.NewSuccessDialog("Éxito", "Inicio de sesión correcto."), nil
}

func (m *mockAuthService) SignUp(ctx context.Context, sess flow.Session, in flow.SignUpInput) (*model.Dialog, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, sess, in)
	}
	return model.NewSuccessDialog("Éxito", "Usuario registrado correctamente"), nil
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, provider flow.IdentityProvider, email string) (*model.Dialog, error) {
	if m.requestPasswordResetFn != nil {
		return m.requestPasswordResetFn(ctx, provider, email)
	}
	return model.NewSuccessDialog("Correo enviado", "Revisá tu correo."), nil
}

func (m *mockAuthService) ConfirmPasswordReset(ctx context.Context, in flow.ConfirmPasswordResetInput) (*model.Dialog, error) {
	if m.confirmPasswordResetFn != nil {
		return m.confirmPasswordResetFn(ctx, in)
	}
	return model.NewSuccessDialog("Listo", "Tu contraseña fue actualizada."), nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sess flow.Session, confirmed bool) (*model.Dialog, error) {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sess, confirmed)
	}
	if !confirmed {
		return nil, model.NewConfirmationRequiredError("Cerrar sesión", "¿Querés cerrar sesión?", "Cerrar sesión")
	}
	return model.NewInfoDialog("Sesión cerrada", "Cerraste sesión correctamente."), nil
}

type mockProfileService struct {
	loadFn func(ctx context.Context, identity *model.Identity) (*model.Profile, error)
	saveFn func(ctx context.Context, provider profile.DisplayNamer, identity *model.Identity, in profile.SaveInput) (*model.Profile, *model.Dialog, error)
}

func (m *mockProfileService) Load(ctx context.Context, identity *model.Identity) (*model.Profile, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, identity)
	}
	return &model.Profile{Email: identity.Email}, nil
}

func (m *mockProfileService) Save(ctx context.Context, provider profile.DisplayNamer, identity *model.Identity, in profile.SaveInput) (*model.Profile, *model.Dialog, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, provider, identity, in)
	}
	return &model.Profile{FirstName: in.FirstName, LastName: in.LastName, Email: identity.Email},
		model.NewSuccessDialog("Listo", "Datos actualizados correctamente."), nil
}

type mockHomeService struct {
	homeFn func(ctx context.Context, displayName string) *news.Home
}

func (m *mockHomeService) Home(ctx context.Context, displayName string) *news.Home {
	if m.homeFn != nil {
		return m.homeFn(ctx, displayName)
	}
	return &news.Home{Title: news.HomeTitle, Subtitle: news.HomeSubtitle}
}

type mockProgramService struct {
	listFn     func(ctx context.Context) ([]model.Program, error)
	getFn      func(ctx context.Context, id string) (*model.Program, error)
	validateFn func(in model.Program) error
	createFn   func(ctx context.Context, in model.Program) (*model.Program, error)
	updateFn   func(ctx context.Context, id string, in model.Program) (*model.Program, error)
	deleteFn   func(ctx context.Context, id string) error
	watchFn    func(ctx context.Context) (<-chan []model.Program, error)
}

func (m *mockProgramService) List(ctx context.Context) ([]model.Program, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockProgramService) Get(ctx context.Context, id string) (*model.Program, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Program{ID: id, Title: "Tecnicatura", Duration: "3 años"}, nil
}

func (m *mockProgramService) Validate(in model.Program) error {
	if m.validateFn != nil {
		return m.validateFn(in)
	}
	return nil
}

func (m *mockProgramService) Create(ctx context.Context, in model.Program) (*model.Program, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	in.ID = "new-id"
	return &in, nil
}

func (m *mockProgramService) Update(ctx context.Context, id string, in model.Program) (*model.Program, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	in.ID = id
	return &in, nil
}

func (m *mockProgramService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockProgramService) Watch(ctx context.Context) (<-chan []model.Program, error) {
	if m.watchFn != nil {
		return m.watchFn(ctx)
	}
	ch := make(chan []model.Program)
	close(ch)
	return ch, nil
}

// --- ヘルパー ---

var testIdentity = &model.Identity{ID: "user-1", Email: "ana@gmail.com", DisplayName: "Ana Pérez"}

// newTestDevice は初回通知を反映済みの端末を生成する。identityがnilなら未認証になる。
func newTestDevice(t *testing.T, identity *model.Identity) *device.Device {
	t.Helper()
	id := uuid.New().String()
	provider := auth.NewDeviceProvider(id, &stubBackend{identity: identity})
	g := gate.New(provider)
	nav := gate.NewNavigator(g)
	g.Start()
	t.Cleanup(func() {
		nav.Close()
		g.Stop()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := provider.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	return &device.Device{ID: id, Provider: provider, Gate: g, Navigator: nav}
}

// withDevice はリクエストコンテキストに端末を注入する。
func withDevice(r *http.Request, d *device.Device) *http.Request {
	return r.WithContext(middleware.ContextWithDevice(r.Context(), d))
}

func decodeJSON[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	return decodeJSON[middleware.ErrorResponseBody](t, w.Body)
}

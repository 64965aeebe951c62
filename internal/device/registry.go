// Package device は端末ごとのセッションゲートとナビゲーターを管理する。
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campus/internal/auth"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/logger"
	"github.com/hitoshi/campus/internal/metrics"
)

// ErrInvalidDeviceID は端末IDの形式が不正な場合のエラー。
var ErrInvalidDeviceID = errors.New("device: invalid device ID")

// ErrUnknownDevice は未登録かつIDプロバイダーにセッションもない端末IDのエラー。
var ErrUnknownDevice = errors.New("device: unknown device")

// DefaultInitTimeout は初回のセッション通知を待つ既定の上限。
const DefaultInitTimeout = 3 * time.Second

// Config は端末レジストリの設定。
type Config struct {
	SignInGrace     time.Duration // サインイン反映の猶予期間
	IdleTTL         time.Duration // 最終アクセスからこの時間を過ぎた端末を破棄する。0なら破棄しない
	CleanupInterval time.Duration // 破棄判定の間隔。0ならIdleTTLの半分
	InitTimeout     time.Duration // 初回のセッション通知を待つ上限。0ならDefaultInitTimeout
	Clock           gate.Clock    // nilなら実時間
}

// Device は1端末分のIDプロバイダー接続、ゲート、ナビゲーターの束。
type Device struct {
	ID        string
	Provider  *auth.DeviceProvider
	Gate      *gate.Gate
	Navigator *gate.Navigator
	CreatedAt time.Time

	// ready は初回のセッション通知を反映したか、待機が打ち切られたときに閉じる。
	ready chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
}

// LastSeen は最終アクセス時刻を返す。
func (d *Device) LastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

func (d *Device) touch(now time.Time) {
	d.mu.Lock()
	d.lastSeen = now
	d.mu.Unlock()
}

// close はゲートとナビゲーターを停止する。
func (d *Device) close() {
	d.Navigator.Close()
	d.Gate.Stop()
}

// Registry は端末を登録・復元・破棄する。
type Registry struct {
	backend   auth.Backend
	config    Config
	collector metrics.MetricsCollector
	now       func() time.Time

	mu      sync.RWMutex
	devices map[string]*Device

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成する。
// IdleTTLが正の場合、バックグラウンドで放置端末のクリーンアップを開始する。
func NewRegistry(backend auth.Backend, config Config, collector metrics.MetricsCollector) *Registry {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.SignInGrace <= 0 {
		config.SignInGrace = gate.DefaultSignInGrace
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = config.IdleTTL / 2
	}
	if config.InitTimeout <= 0 {
		config.InitTimeout = DefaultInitTimeout
	}

	r := &Registry{
		backend:   backend,
		config:    config,
		collector: collector,
		now:       time.Now,
		devices:   make(map[string]*Device),
		stopCh:    make(chan struct{}),
	}

	if config.IdleTTL > 0 && config.CleanupInterval > 0 {
		go r.cleanupLoop()
	}
	return r
}

// Create は新しい端末IDを払い出して端末を登録する。
// 初回のセッション通知が反映されるまで待ってから返す。
func (r *Registry) Create(ctx context.Context) *Device {
	d := r.register(uuid.New().String())
	r.waitReady(ctx, d)
	return d
}

// Attach は端末IDに対応する端末を返す。
// 未登録のIDはIDプロバイダーにセッションが残っている場合のみ再登録して状態を復元し、
// セッションがなければErrUnknownDeviceを返す。
func (r *Registry) Attach(ctx context.Context, id string) (*Device, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidDeviceID
	}
	id = parsed.String()

	// 1. 登録済みの端末
	if d, ok := r.Get(id); ok {
		r.waitReady(ctx, d)
		return d, nil
	}

	// 2. セッションの残っている端末だけを復元する
	identity, err := r.backend.CurrentIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device session: %w", err)
	}
	if identity == nil {
		return nil, ErrUnknownDevice
	}

	d := r.register(id)
	r.waitReady(ctx, d)
	return d, nil
}

// Get は登録済みの端末を返す。
func (r *Registry) Get(id string) (*Device, bool) {
	r.mu.RLock()
	d, ok := r.devices[id]
	r.mu.RUnlock()
	if ok {
		d.touch(r.now())
	}
	return d, ok
}

// Remove は端末を停止して登録を解除する。
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	d, ok := r.devices[id]
	delete(r.devices, id)
	count := len(r.devices)
	r.mu.Unlock()

	if ok {
		d.close()
		r.collector.SetActiveDevices(count)
	}
}

// Count は登録中の端末数を返す。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stop はクリーンアップを停止し、すべての端末を破棄する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)

		r.mu.Lock()
		devices := r.devices
		r.devices = make(map[string]*Device)
		r.mu.Unlock()

		for _, d := range devices {
			d.close()
		}
		r.collector.SetActiveDevices(0)
	})
}

// register は端末を登録してゲートを開始する。登録済みならその端末を返す。
func (r *Registry) register(id string) *Device {
	now := r.now()

	r.mu.Lock()
	if d, ok := r.devices[id]; ok {
		r.mu.Unlock()
		d.touch(now)
		return d
	}
	d := r.newDevice(id, now)
	r.devices[id] = d
	count := len(r.devices)
	r.mu.Unlock()

	// 購読開始はロック外で行う
	d.Gate.Start()
	go r.awaitFirstNotification(d)
	r.collector.SetActiveDevices(count)

	slog.Info("device attached", logger.DeviceAttr(id))
	return d
}

// awaitFirstNotification は購読開始時の通知が配信されるまで待ち、readyを閉じる。
// 上限までに届かなければゲートは初期化中のまま待機を打ち切る。
func (r *Registry) awaitFirstNotification(d *Device) {
	defer close(d.ready)

	ctx, cancel := context.WithTimeout(context.Background(), r.config.InitTimeout)
	defer cancel()
	if err := d.Provider.Sync(ctx); err != nil {
		slog.Warn("first session notification not delivered",
			logger.DeviceAttr(d.ID),
			slog.String("error", err.Error()),
		)
	}
}

// waitReady は端末の初回通知の反映か、ctxの終了まで待つ。
func (r *Registry) waitReady(ctx context.Context, d *Device) {
	select {
	case <-d.ready:
	case <-ctx.Done():
	}
}

func (r *Registry) newDevice(id string, now time.Time) *Device {
	provider := auth.NewDeviceProvider(id, r.backend)

	opts := []gate.Option{
		gate.WithSignInGrace(r.config.SignInGrace),
		gate.WithRecorder(r.collector),
		gate.WithLogger(slog.Default().With(logger.DeviceAttr(id))),
	}
	if r.config.Clock != nil {
		opts = append(opts, gate.WithClock(r.config.Clock))
	}
	g := gate.New(provider, opts...)

	return &Device{
		ID:        id,
		Provider:  provider,
		Gate:      g,
		Navigator: gate.NewNavigator(g),
		CreatedAt: now,
		ready:     make(chan struct{}),
		lastSeen:  now,
	}
}

// cleanupLoop はバックグラウンドで放置端末を定期的に破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからIdleTTLを超えた端末を破棄する。
// 端末の認証状態はIDプロバイダー側のセッションに残るため、次回アクセス時に復元される。
func (r *Registry) cleanup() {
	if r.config.IdleTTL <= 0 {
		return
	}
	now := r.now()

	r.mu.Lock()
	var expired []*Device
	for id, d := range r.devices {
		if now.Sub(d.LastSeen()) > r.config.IdleTTL {
			expired = append(expired, d)
			delete(r.devices, id)
		}
	}
	count := len(r.devices)
	r.mu.Unlock()

	for _, d := range expired {
		d.close()
	}
	if len(expired) > 0 {
		r.collector.SetActiveDevices(count)
		slog.Info("idle devices released", slog.Int("count", len(expired)))
	}
}

package auth

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/campus/internal/logger"
	"github.com/hitoshi/campus/internal/model"
)

// Backend は端末プロバイダーが利用する認証バックエンド。*Serviceが実装する。
type Backend interface {
	SignIn(ctx context.Context, deviceID, email, password string) (*model.Identity, error)
	SignUp(ctx context.Context, deviceID, email, password string) (*model.Identity, error)
	SignOut(ctx context.Context, deviceID string) error
	CurrentIdentity(ctx context.Context, deviceID string) (*model.Identity, error)
	SendPasswordReset(ctx context.Context, email string) error
	UpdateDisplayName(ctx context.Context, userID, displayName string) (*model.Identity, error)
}

// resolveTimeout は購読開始時に現在のセッションを解決する際のタイムアウト。
const resolveTimeout = 5 * time.Second

// delivery は通知キューの1要素。
type delivery struct {
	listenerID int // 0は全リスナーへの配信
	resolve    bool
	identity   *model.Identity
	done       chan struct{}
}

// DeviceProvider は1端末に束縛されたIDプロバイダーのクライアント。
// セッション変化の通知は専用のgoroutineから登録順に非同期で配信する。
type DeviceProvider struct {
	deviceID string
	backend  Backend

	mu          sync.Mutex
	listeners   map[int]func(*model.Identity)
	nextID      int
	queue       []delivery
	dispatching bool
}

// NewDeviceProvider はDeviceProviderを生成する。
func NewDeviceProvider(deviceID string, backend Backend) *DeviceProvider {
	return &DeviceProvider{
		deviceID:  deviceID,
		backend:   backend,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// DeviceID は束縛された端末IDを返す。
func (p *DeviceProvider) DeviceID() string {
	return p.deviceID
}

// SubscribeToSessionChanges はセッション変化のリスナーを登録する。
// 登録後、現在のセッション状態が非同期で1回通知される。
// 返却される関数で登録を解除する。解除は冪等。
func (p *DeviceProvider) SubscribeToSessionChanges(cb func(*model.Identity)) (unsubscribe func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = cb
	p.mu.Unlock()

	p.enqueue(delivery{listenerID: id, resolve: true})

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// ListenerCount は登録中のリスナー数を返す。
func (p *DeviceProvider) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// SignIn はサインインし、成功時にリスナーへ通知する。
func (p *DeviceProvider) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	identity, err := p.backend.SignIn(ctx, p.deviceID, email, password)
	if err != nil {
		return nil, err
	}
	p.enqueue(delivery{identity: identity})
	return identity, nil
}

// SignUp はアカウントを作成してサインインし、成功時にリスナーへ通知する。
func (p *DeviceProvider) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	identity, err := p.backend.SignUp(ctx, p.deviceID, email, password)
	if err != nil {
		return nil, err
	}
	p.enqueue(delivery{identity: identity})
	return identity, nil
}

// SignOut はサインアウトし、リスナーへ不在を通知する。
func (p *DeviceProvider) SignOut(ctx context.Context) error {
	if err := p.backend.SignOut(ctx, p.deviceID); err != nil {
		return err
	}
	p.enqueue(delivery{})
	return nil
}

// SendPasswordReset はパスワード再設定メールを要求する。
func (p *DeviceProvider) SendPasswordReset(ctx context.Context, email string) error {
	return p.backend.SendPasswordReset(ctx, email)
}

// UpdateDisplayName は表示名を更新する。セッション変化ではないため通知しない。
func (p *DeviceProvider) UpdateDisplayName(ctx context.Context, identity *model.Identity, displayName string) error {
	_, err := p.backend.UpdateDisplayName(ctx, identity.ID, displayName)
	return err
}

// Sync はこれまでにキューへ積まれた通知がすべて配信されるまで待つ。
func (p *DeviceProvider) Sync(ctx context.Context) error {
	done := make(chan struct{})
	p.enqueue(delivery{listenerID: -1, done: done})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue は通知をキューに積み、配信goroutineが停止していれば起動する。
func (p *DeviceProvider) enqueue(d delivery) {
	p.mu.Lock()
	p.queue = append(p.queue, d)
	start := !p.dispatching
	p.dispatching = true
	p.mu.Unlock()

	if start {
		go p.dispatch()
	}
}

// dispatch はキューが空になるまで通知を順に配信する。
func (p *DeviceProvider) dispatch() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.dispatching = false
			p.mu.Unlock()
			return
		}
		d := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if d.done != nil {
			close(d.done)
			continue
		}

		identity := d.identity
		if d.resolve {
			identity = p.resolveCurrent()
		}
		for _, cb := range p.targets(d.listenerID) {
			cb(cloneIdentity(identity))
		}
	}
}

// targets は配信先のリスナーを登録順に返す。
func (p *DeviceProvider) targets(listenerID int) []func(*model.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if listenerID > 0 {
		if cb, ok := p.listeners[listenerID]; ok {
			return []func(*model.Identity){cb}
		}
		return nil
	}

	ids := make([]int, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	cbs := make([]func(*model.Identity), 0, len(ids))
	for _, id := range ids {
		cbs = append(cbs, p.listeners[id])
	}
	return cbs
}

// resolveCurrent はバックエンドから現在のセッションを取得する。
// 取得に失敗した場合は未認証として扱う。
func (p *DeviceProvider) resolveCurrent() *model.Identity {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	identity, err := p.backend.CurrentIdentity(ctx, p.deviceID)
	if err != nil {
		slog.Warn("failed to resolve current session",
			logger.DeviceAttr(p.deviceID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return identity
}

func cloneIdentity(identity *model.Identity) *model.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}

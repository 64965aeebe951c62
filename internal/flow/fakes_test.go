package flow

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/campus/internal/docstore"
	"github.com/hitoshi/campus/internal/gate"
	"github.com/hitoshi/campus/internal/model"
)

// fakeProvider はIdentityProviderとgate.SessionSourceを兼ねるモック。
// サインイン/アップ成功時とサインアウト時にリスナーへ同期的に通知する。
type fakeProvider struct {
	mu        sync.Mutex
	log       *[]string
	listeners map[int]func(*model.Identity)
	nextID    int

	signInFn     func(email, password string) (*model.Identity, error)
	signUpFn     func(email, password string) (*model.Identity, error)
	signOutFn    func() error
	sendResetFn  func(email string) error
	updateNameFn func(identity *model.Identity, name string) error

	displayName string
	syncCalls   int
}

func newFakeProvider(log *[]string) *fakeProvider {
	return &fakeProvider{log: log, listeners: make(map[int]func(*model.Identity))}
}

func (p *fakeProvider) record(call string) {
	if p.log != nil {
		*p.log = append(*p.log, call)
	}
}

func (p *fakeProvider) SubscribeToSessionChanges(cb func(*model.Identity)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = cb
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) emit(identity *model.Identity) {
	p.mu.Lock()
	cbs := make([]func(*model.Identity), 0, len(p.listeners))
	for _, cb := range p.listeners {
		cbs = append(cbs, cb)
	}
	p.mu.Unlock()
	for _, cb := range cbs {
		cb(identity)
	}
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*model.Identity, error) {
	p.record("SignIn")
	identity := &model.Identity{ID: "u1", Email: email}
	if p.signInFn != nil {
		var err error
		if identity, err = p.signInFn(email, password); err != nil {
			return nil, err
		}
	}
	p.emit(identity)
	return identity, nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string) (*model.Identity, error) {
	p.record("SignUp")
	identity := &model.Identity{ID: "u1", Email: email}
	if p.signUpFn != nil {
		var err error
		if identity, err = p.signUpFn(email, password); err != nil {
			return nil, err
		}
	}
	p.emit(identity)
	return identity, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.record("SignOut")
	if p.signOutFn != nil {
		if err := p.signOutFn(); err != nil {
			return err
		}
	}
	p.emit(nil)
	return nil
}

func (p *fakeProvider) SendPasswordReset(_ context.Context, email string) error {
	p.record("SendPasswordReset")
	if p.sendResetFn != nil {
		return p.sendResetFn(email)
	}
	return nil
}

func (p *fakeProvider) UpdateDisplayName(_ context.Context, identity *model.Identity, name string) error {
	p.record("UpdateDisplayName")
	p.displayName = name
	if p.updateNameFn != nil {
		return p.updateNameFn(identity, name)
	}
	return nil
}

func (p *fakeProvider) Sync(context.Context) error {
	p.syncCalls++
	return nil
}

// fakeStore はRecordWriterのモック。
type fakeStore struct {
	log   *[]string
	setFn func(collection, id string, fields docstore.Fields, merge bool) error

	collection string
	id         string
	fields     docstore.Fields
	calls      int
}

func (s *fakeStore) Set(_ context.Context, collection, id string, fields docstore.Fields, merge bool) error {
	if s.log != nil {
		*s.log = append(*s.log, "Set")
	}
	s.calls++
	s.collection, s.id, s.fields = collection, id, fields
	if s.setFn != nil {
		return s.setFn(collection, id, fields, merge)
	}
	return nil
}

// fakeResetter はPasswordResetterのモック。
type fakeResetter struct {
	resetFn func(token, password string) error
}

func (r *fakeResetter) ResetPassword(_ context.Context, token, password string) error {
	if r.resetFn != nil {
		return r.resetFn(token, password)
	}
	return nil
}

// stoppedClock は遅延反映を一切発火させないClock。
type stoppedClock struct{}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return true }

func (stoppedClock) AfterFunc(time.Duration, func()) gate.Timer { return stoppedTimer{} }

// newTestSession は未認証状態まで初期化したゲート付きのSessionを返す。
func newTestSession(provider *fakeProvider) (Session, *gate.Gate, *gate.Navigator) {
	g := gate.New(provider, gate.WithClock(stoppedClock{}))
	g.Start()
	nav := gate.NewNavigator(g)
	provider.emit(nil)
	return Session{Provider: provider, Gate: g, Navigator: nav}, g, nav
}

func newTestService(store RecordWriter) *Service {
	svc := NewService(store, &fakeResetter{}, Config{
		LoginEmailDomains: []string{"gmail.com", "hotmail.com"},
	}, nil)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

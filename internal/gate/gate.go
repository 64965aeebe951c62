package gate

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/campus/internal/model"
)

// DefaultSignInGrace はサインイン検知から画面切り替えまでの既定の猶予期間。
const DefaultSignInGrace = 1500 * time.Millisecond

// SessionSource はセッション変化の通知元。auth.DeviceProviderが実装する。
type SessionSource interface {
	SubscribeToSessionChanges(cb func(*model.Identity)) (unsubscribe func())
}

// Recorder はゲートの遷移を記録する。metrics.Collectorが実装する。
type Recorder interface {
	RecordGateTransition(from, to State)
	RecordIgnoredNotification()
}

type noopRecorder struct{}

func (noopRecorder) RecordGateTransition(State, State) {}
func (noopRecorder) RecordIgnoredNotification()        {}

// Snapshot はオブザーバーに渡すゲート状態の写し。
type Snapshot struct {
	Version      uint64          `json:"version"`
	State        State           `json:"state"`
	Identity     *model.Identity `json:"identity,omitempty"`
	Initializing bool            `json:"initializing"`
	Suppressed   bool            `json:"suppressed"`
	ScreenSet    ScreenSet       `json:"screen_set"`
}

// Option はGateの設定を変更する。
type Option func(*Gate)

// WithClock は遅延反映に使うClockを設定する。
func WithClock(c Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithSignInGrace はサインイン反映の猶予期間を設定する。
func WithSignInGrace(d time.Duration) Option {
	return func(g *Gate) { g.grace = d }
}

// WithRecorder は遷移の記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// Gate は1端末のセッションゲート。状態はTransitionを通してのみ変化する。
type Gate struct {
	source   SessionSource
	clock    Clock
	grace    time.Duration
	recorder Recorder
	logger   *slog.Logger

	mu          sync.Mutex
	view        View
	version     uint64
	seq         uint64
	timer       Timer
	running     bool
	generation  uint64 // StartとStopのたびに進む
	unsubscribe func()
	observers   map[int]func(Snapshot)
	nextObsID   int

	// deliverMu はオブザーバーへの配信順を遷移順に揃える。
	deliverMu sync.Mutex
}

// New はGateを生成する。Startを呼ぶまで通知を購読しない。
func New(source SessionSource, opts ...Option) *Gate {
	g := &Gate{
		source:    source,
		clock:     RealClock(),
		grace:     DefaultSignInGrace,
		recorder:  noopRecorder{},
		logger:    slog.Default(),
		view:      InitialView(),
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start はセッション通知の購読を開始する。購読中に呼んでも何もしない。
func (g *Gate) Start() {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.generation++
	gen := g.generation
	g.mu.Unlock()

	unsubscribe := g.source.SubscribeToSessionChanges(g.onNotification)

	g.mu.Lock()
	if g.generation != gen {
		// 購読中にStop（とその後のStart）が割り込んだ
		g.mu.Unlock()
		unsubscribe()
		return
	}
	g.unsubscribe = unsubscribe
	g.mu.Unlock()
}

// Stop は購読を解除し、予約済みの遅延反映を取り消す。停止中に呼んでも何もしない。
func (g *Gate) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.generation++
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil

	next, _, _ := Transition(g.view, Event{Kind: EventStop})
	g.view = next
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot は現在の状態を返す。
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Render は現在マウントすべき画面セットを返す。
func (g *Gate) Render() ScreenSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Render(g.view)
}

// Subscribe は状態変化のオブザーバーを登録し、解除関数を返す。
// オブザーバーはゲートのロック外で遷移順に呼ばれる。オブザーバー内でSuppressやReleaseを呼んではならない。
func (g *Gate) Subscribe(observer func(Snapshot)) (unsubscribe func()) {
	g.mu.Lock()
	g.nextObsID++
	id := g.nextObsID
	g.observers[id] = observer
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.observers, id)
			g.mu.Unlock()
		})
	}
}

// Hold は取得済みの抑止トークン。
type Hold struct {
	gate *Gate
	once sync.Once
}

// Suppress は抑止トークンを取得する。既に保持されている場合はErrSuppressionHeldを返す。
func (g *Gate) Suppress() (*Hold, error) {
	if err := g.apply(Event{Kind: EventAcquire}); err != nil {
		return nil, err
	}
	return &Hold{gate: g}, nil
}

// Release は抑止トークンを解放する。2回目以降の呼び出しは何もしない。
// 抑止中に無視した最新の通知があれば、解放時に反映する。
func (h *Hold) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.gate.apply(Event{Kind: EventRelease})
	})
}

// onNotification はIDプロバイダーからの通知を受け取る。
func (g *Gate) onNotification(identity *model.Identity) {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.seq++
	seq := g.seq
	g.mu.Unlock()

	g.apply(Event{Kind: EventNotification, Seq: seq, Identity: identity})
}

// apply はイベントを遷移関数に通し、副作用を実行してオブザーバーへ通知する。
func (g *Gate) apply(e Event) error {
	g.mu.Lock()
	before := g.view.State()
	beforeSet := Render(g.view)
	beforeSuppressed := g.view.Suppression == HeldBySignup
	beforeID := identityID(g.view.Identity)

	next, eff, err := Transition(g.view, e)
	if err != nil {
		g.mu.Unlock()
		return err
	}

	if eff.CancelPending && g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if eff.Schedule != 0 {
		seq := eff.Schedule
		g.timer = g.clock.AfterFunc(g.grace, func() {
			g.apply(Event{Kind: EventAdoptionDue, Seq: seq})
		})
	}
	if e.Kind == EventAdoptionDue && !eff.Stale {
		g.timer = nil
	}
	g.view = next

	after := g.view.State()
	changed := before != after ||
		beforeSet != Render(g.view) ||
		beforeSuppressed != (g.view.Suppression == HeldBySignup) ||
		beforeID != identityID(g.view.Identity)

	var snap Snapshot
	var observers []func(Snapshot)
	if changed {
		g.version++
		snap = g.snapshotLocked()
		observers = g.observerListLocked()
	}

	// 配信順を保つためロックを離す前に配信権を取る
	if changed {
		g.deliverMu.Lock()
	}
	g.mu.Unlock()

	if eff.Ignored {
		g.recorder.RecordIgnoredNotification()
	}
	if eff.Stale {
		g.logger.Debug("stale deferred adoption discarded", slog.Uint64("seq", e.Seq))
	}
	if !changed {
		return nil
	}
	defer g.deliverMu.Unlock()

	if before != after {
		g.recorder.RecordGateTransition(before, after)
		g.logger.Debug("gate transition",
			slog.String("from", string(before)),
			slog.String("to", string(after)),
		)
	}
	for _, obs := range observers {
		obs(snap)
	}
	return nil
}

func (g *Gate) snapshotLocked() Snapshot {
	var identity *model.Identity
	if g.view.Identity != nil {
		c := *g.view.Identity
		identity = &c
	}
	return Snapshot{
		Version:      g.version,
		State:        g.view.State(),
		Identity:     identity,
		Initializing: g.view.Initializing,
		Suppressed:   g.view.Suppression == HeldBySignup,
		ScreenSet:    Render(g.view),
	}
}

func (g *Gate) observerListLocked() []func(Snapshot) {
	ids := make([]int, 0, len(g.observers))
	for id := range g.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, g.observers[id])
	}
	return out
}

func identityID(identity *model.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}

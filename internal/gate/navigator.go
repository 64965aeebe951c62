package gate

import (
	"errors"
	"sort"
	"sync"
)

// ErrScreenNotMounted はマウントされていない画面へ遷移しようとした場合のエラー。
var ErrScreenNotMounted = errors.New("gate: screen not mounted")

// Location は現在の表示位置。
type Location struct {
	ScreenSet ScreenSet         `json:"screen_set"`
	Screens   []Screen          `json:"screens"`
	Screen    Screen            `json:"screen,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// Navigator はマウント中の画面セット内での現在画面を管理する。
// 画面セットが切り替わると新しいセットの先頭画面に戻る。
type Navigator struct {
	mu        sync.Mutex
	version   uint64
	set       ScreenSet
	screen    Screen
	params    map[string]string
	observers map[int]func(Location)
	nextID    int

	unsubscribe func()
}

// NewNavigator はゲートに追従するNavigatorを生成する。
func NewNavigator(g *Gate) *Navigator {
	n := &Navigator{
		set:       ScreenSetNone,
		observers: make(map[int]func(Location)),
	}
	n.unsubscribe = g.Subscribe(n.sync)
	n.sync(g.Snapshot())
	return n
}

// Close はゲートへの追従を止める。
func (n *Navigator) Close() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
}

// Current は現在の表示位置を返す。
func (n *Navigator) Current() Location {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.locationLocked()
}

// Navigate はマウント中の画面セット内の画面へ遷移する。
func (n *Navigator) Navigate(screen Screen, params map[string]string) error {
	n.mu.Lock()
	if !n.set.Contains(screen) {
		n.mu.Unlock()
		return ErrScreenNotMounted
	}
	n.screen = screen
	n.params = copyParams(params)
	loc, observers := n.locationLocked(), n.observerListLocked()
	n.mu.Unlock()

	for _, obs := range observers {
		obs(loc)
	}
	return nil
}

// Subscribe は表示位置の変化を購読し、解除関数を返す。
func (n *Navigator) Subscribe(observer func(Location)) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.observers[id] = observer
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.observers, id)
			n.mu.Unlock()
		})
	}
}

// sync はゲートの状態に画面セットを合わせる。古い版の通知は無視する。
func (n *Navigator) sync(s Snapshot) {
	n.mu.Lock()
	if s.Version < n.version || s.ScreenSet == n.set {
		if s.Version > n.version {
			n.version = s.Version
		}
		n.mu.Unlock()
		return
	}
	n.version = s.Version
	n.set = s.ScreenSet
	n.screen = s.ScreenSet.Initial()
	n.params = nil
	loc, observers := n.locationLocked(), n.observerListLocked()
	n.mu.Unlock()

	for _, obs := range observers {
		obs(loc)
	}
}

func (n *Navigator) locationLocked() Location {
	return Location{
		ScreenSet: n.set,
		Screens:   n.set.Screens(),
		Screen:    n.screen,
		Params:    copyParams(n.params),
	}
}

func (n *Navigator) observerListLocked() []func(Location) {
	ids := make([]int, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Location), 0, len(ids))
	for _, id := range ids {
		out = append(out, n.observers[id])
	}
	return out
}

func copyParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

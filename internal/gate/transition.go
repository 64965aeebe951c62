// Package gate は端末ごとのセッションゲートを実装する。
// IDプロバイダーからのセッション通知とサインアップ中の抑止トークンを調停し、
// マウントすべき画面セットを決める。
package gate

import (
	"errors"

	"github.com/hitoshi/campus/internal/model"
)

// ErrSuppressionHeld は抑止トークンが既に保持されている場合のエラー。
var ErrSuppressionHeld = errors.New("gate: suppression already held")

// State はゲートの状態。
type State string

// ゲートの状態
const (
	StateInitializing               State = "initializing"
	StateUnauthenticated            State = "unauthenticated"
	StateAuthenticated              State = "authenticated"
	StateAuthenticatedButSuppressed State = "authenticated_but_suppressed"
)

// Suppression は抑止トークンの状態。
type Suppression int

// 抑止トークンの状態
const (
	Free Suppression = iota
	HeldBySignup
)

func (s Suppression) String() string {
	if s == HeldBySignup {
		return "held_by_signup"
	}
	return "free"
}

// Notification はシーケンス番号付きのセッション通知。Identityがnilなら不在を表す。
type Notification struct {
	Seq      uint64
	Identity *model.Identity
}

// View はゲートの状態を表す値。Transitionでのみ更新する。
type View struct {
	Identity     *model.Identity
	Initializing bool
	Suppression  Suppression

	// Pending は猶予期間後に反映する予定の通知。
	Pending *Notification
	// Ignored は抑止中に無視した最新の通知。解除時に再生する。
	Ignored *Notification
}

// InitialView は初期化中の状態を返す。
func InitialView() View {
	return View{Initializing: true}
}

// State は状態を返す。
func (v View) State() State {
	switch {
	case v.Initializing:
		return StateInitializing
	case v.Identity == nil:
		return StateUnauthenticated
	case v.Suppression == HeldBySignup:
		return StateAuthenticatedButSuppressed
	default:
		return StateAuthenticated
	}
}

// EventKind はイベント種別。
type EventKind int

// イベント種別
const (
	EventNotification EventKind = iota
	EventAcquire
	EventRelease
	EventAdoptionDue
	EventStop
)

// Event はTransitionへの入力。
// EventNotificationではSeqとIdentity、EventAdoptionDueではSeqを使う。
type Event struct {
	Kind     EventKind
	Seq      uint64
	Identity *model.Identity
}

// Effects はTransitionの副作用指示。実行はGateが行う。
type Effects struct {
	CancelPending bool   // 予約済みの遅延反映を取り消す
	Schedule      uint64 // 0以外なら、このシーケンス番号の遅延反映を予約する
	Ignored       bool   // 通知を抑止により無視した
	Stale         bool   // 遅延反映が古く破棄した
}

// Transition は状態遷移関数。副作用を持たない。
func Transition(v View, e Event) (View, Effects, error) {
	var eff Effects

	switch e.Kind {
	case EventNotification:
		n := Notification{Seq: e.Seq, Identity: e.Identity}

		// 1. 初回通知は即時反映
		if v.Initializing {
			v.Initializing = false
			v.Identity = n.Identity
			return v, eff, nil
		}

		// 2. 抑止中は無視し、最新のものだけ覚えておく
		if v.Suppression == HeldBySignup {
			v.Ignored = &n
			eff.Ignored = true
			return v, eff, nil
		}

		// 3. 通常の反映
		v, eff = adopt(v, n, eff)
		return v, eff, nil

	case EventAcquire:
		if v.Suppression == HeldBySignup {
			return v, eff, ErrSuppressionHeld
		}
		v.Suppression = HeldBySignup
		if v.Pending != nil {
			// 予約中の通知は解除時に再生する
			v.Ignored = v.Pending
			v.Pending = nil
			eff.CancelPending = true
		}
		return v, eff, nil

	case EventRelease:
		if v.Suppression == Free {
			return v, eff, nil
		}
		v.Suppression = Free
		if v.Ignored != nil {
			n := *v.Ignored
			v.Ignored = nil
			v, eff = adopt(v, n, eff)
		}
		return v, eff, nil

	case EventAdoptionDue:
		if v.Pending == nil || v.Pending.Seq != e.Seq || v.Suppression != Free {
			eff.Stale = true
			return v, eff, nil
		}
		v.Identity = v.Pending.Identity
		v.Pending = nil
		return v, eff, nil

	case EventStop:
		// 購読解除時は予約済みの遅延反映を破棄する
		if v.Pending != nil {
			v.Pending = nil
			eff.CancelPending = true
		}
		return v, eff, nil
	}

	return v, eff, nil
}

// adopt は抑止されていない状態で通知を反映する。
// 不在から存在への変化は猶予期間後に遅延反映し、それ以外は即時反映する。
// 新しい通知は予約済みの遅延反映を常に置き換える。
func adopt(v View, n Notification, eff Effects) (View, Effects) {
	if v.Pending != nil {
		v.Pending = nil
		eff.CancelPending = true
	}
	if v.Identity == nil && n.Identity != nil {
		v.Pending = &n
		eff.Schedule = n.Seq
		return v, eff
	}
	v.Identity = n.Identity
	return v, eff
}

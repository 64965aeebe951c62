package gate

import (
	"errors"
	"testing"
	"time"
)

func TestNavigator_FollowsScreenSet(t *testing.T) {
	g, source, clock, _ := newTestGate(t)
	nav := NewNavigator(g)
	defer nav.Close()

	if loc := nav.Current(); loc.ScreenSet != ScreenSetNone || loc.Screen != "" {
		t.Fatalf("initial location = %+v", loc)
	}

	source.emit(nil)
	if loc := nav.Current(); loc.Screen != ScreenLogin {
		t.Fatalf("Screen = %s, want Login", loc.Screen)
	}

	if err := nav.Navigate(ScreenSignUp, nil); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}

	source.emit(user("u1"))
	clock.Advance(1500 * time.Millisecond)

	loc := nav.Current()
	if loc.ScreenSet != ScreenSetAuthenticated || loc.Screen != ScreenHome {
		t.Errorf("location = %+v, want authenticated/Home", loc)
	}
}

func TestNavigator_RejectsScreensOutsideSet(t *testing.T) {
	g, source, _, _ := newTestGate(t)
	nav := NewNavigator(g)
	defer nav.Close()

	if err := nav.Navigate(ScreenLogin, nil); !errors.Is(err, ErrScreenNotMounted) {
		t.Errorf("blank: err = %v, want ErrScreenNotMounted", err)
	}

	source.emit(nil)
	if err := nav.Navigate(ScreenHome, nil); !errors.Is(err, ErrScreenNotMounted) {
		t.Errorf("err = %v, want ErrScreenNotMounted", err)
	}
	if loc := nav.Current(); loc.Screen != ScreenLogin {
		t.Errorf("Screen = %s, want Login", loc.Screen)
	}
}

func TestNavigator_ParamsAndObservers(t *testing.T) {
	g, source, _, _ := newTestGate(t)
	source.emit(user("u1"))
	nav := NewNavigator(g)
	defer nav.Close()

	var seen []Location
	unsubscribe := nav.Subscribe(func(l Location) { seen = append(seen, l) })
	defer unsubscribe()

	params := map[string]string{"id": "p1"}
	if err := nav.Navigate(ScreenProgramDetail, params); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	params["id"] = "mutated"

	loc := nav.Current()
	if loc.Screen != ScreenProgramDetail || loc.Params["id"] != "p1" {
		t.Errorf("location = %+v", loc)
	}
	if len(seen) != 1 || seen[0].Screen != ScreenProgramDetail {
		t.Errorf("observed = %+v", seen)
	}

	// 画面セットが変わるとパラメータは破棄される
	source.emit(nil)
	if loc := nav.Current(); loc.Screen != ScreenLogin || loc.Params != nil {
		t.Errorf("location = %+v after sign out", loc)
	}
}

// TestNavigator_SuppressedSignupStaysOnUnauthenticatedSet はサインアップ中に認証済み画面へ切り替わらないことを検証する。
func TestNavigator_SuppressedSignupStaysOnUnauthenticatedSet(t *testing.T) {
	g, source, clock, _ := newTestGate(t)
	source.emit(nil)
	nav := NewNavigator(g)
	defer nav.Close()
	nav.Navigate(ScreenSignUp, nil)

	hold, _ := g.Suppress()
	source.emit(user("u1"))
	clock.Advance(2 * time.Second)
	if loc := nav.Current(); loc.Screen != ScreenSignUp {
		t.Fatalf("Screen = %s, want SignUp while suppressed", loc.Screen)
	}

	source.emit(nil)
	if err := nav.Navigate(ScreenLogin, nil); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	hold.Release()

	if loc := nav.Current(); loc.ScreenSet != ScreenSetUnauthenticated || loc.Screen != ScreenLogin {
		t.Errorf("location = %+v, want Login", loc)
	}
}

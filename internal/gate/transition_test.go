package gate

import (
	"errors"
	"testing"
)

func notify(seq uint64, id string) Event {
	e := Event{Kind: EventNotification, Seq: seq}
	if id != "" {
		e.Identity = user(id)
	}
	return e
}

func mustTransition(t *testing.T, v View, e Event) (View, Effects) {
	t.Helper()
	next, eff, err := Transition(v, e)
	if err != nil {
		t.Fatalf("Transition(%+v) failed: %v", e, err)
	}
	return next, eff
}

func TestTransition_FirstNotificationAdoptsImmediately(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantState State
		wantSet   ScreenSet
	}{
		{"不在", "", StateUnauthenticated, ScreenSetUnauthenticated},
		{"存在", "u1", StateAuthenticated, ScreenSetAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := InitialView()
			if Render(v) != ScreenSetNone {
				t.Fatalf("initial render = %s, want none", Render(v))
			}

			v, eff := mustTransition(t, v, notify(1, tt.id))
			if eff.Schedule != 0 {
				t.Error("initial load must not be deferred")
			}
			if v.Initializing {
				t.Error("initializing should be false after first notification")
			}
			if v.State() != tt.wantState {
				t.Errorf("State = %s, want %s", v.State(), tt.wantState)
			}
			if Render(v) != tt.wantSet {
				t.Errorf("Render = %s, want %s", Render(v), tt.wantSet)
			}
		})
	}
}

func TestTransition_SignInIsDeferred(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, ""))

	v, eff := mustTransition(t, v, notify(2, "u1"))
	if eff.Schedule != 2 {
		t.Fatalf("Schedule = %d, want 2", eff.Schedule)
	}
	if v.Identity != nil {
		t.Fatal("identity must not change before grace period")
	}

	v, eff = mustTransition(t, v, Event{Kind: EventAdoptionDue, Seq: 2})
	if eff.Stale {
		t.Fatal("adoption should not be stale")
	}
	if v.State() != StateAuthenticated {
		t.Errorf("State = %s, want authenticated", v.State())
	}
}

// TestTransition_NewerNotificationCancelsPending は猶予期間中の新しい通知が予約を無効にすることを検証する。
func TestTransition_NewerNotificationCancelsPending(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, ""))
	v, _ = mustTransition(t, v, notify(2, "u1"))

	v, eff := mustTransition(t, v, notify(3, ""))
	if !eff.CancelPending {
		t.Error("expected pending adoption to be cancelled")
	}

	v, eff = mustTransition(t, v, Event{Kind: EventAdoptionDue, Seq: 2})
	if !eff.Stale {
		t.Error("old adoption should be stale")
	}
	if v.Identity != nil {
		t.Errorf("identity = %+v, want absent", v.Identity)
	}
}

func TestTransition_SwitchBetweenIdentitiesIsImmediate(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, "u1"))

	v, eff := mustTransition(t, v, notify(2, "u2"))
	if eff.Schedule != 0 {
		t.Error("present to present should not be deferred")
	}
	if v.Identity.ID != "u2" {
		t.Errorf("identity = %s, want u2", v.Identity.ID)
	}
}

// TestTransition_SuppressedNotificationsAreIgnored は抑止中に状態と画面セットが変化しないことを検証する。
func TestTransition_SuppressedNotificationsAreIgnored(t *testing.T) {
	for _, initial := range []string{"", "u1"} {
		v, _ := mustTransition(t, InitialView(), notify(1, initial))
		v, _ = mustTransition(t, v, Event{Kind: EventAcquire})

		wantSet := ScreenSetUnauthenticated
		wantID := v.Identity

		for i, id := range []string{"u2", "", "u3", ""} {
			var eff Effects
			v, eff = mustTransition(t, v, notify(uint64(i+2), id))
			if !eff.Ignored {
				t.Errorf("notification %d should be ignored", i)
			}
			if v.Identity != wantID {
				t.Errorf("identity changed while suppressed: %+v", v.Identity)
			}
			if Render(v) != wantSet {
				t.Errorf("Render = %s while suppressed, want %s", Render(v), wantSet)
			}
		}
	}
}

func TestTransition_AuthenticatedButSuppressed(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, "u1"))
	v, _ = mustTransition(t, v, Event{Kind: EventAcquire})

	if v.State() != StateAuthenticatedButSuppressed {
		t.Errorf("State = %s", v.State())
	}
	if Render(v) == ScreenSetAuthenticated {
		t.Error("authenticated set must not be rendered while suppressed")
	}
}

func TestTransition_AcquireTwiceFails(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, ""))
	v, _ = mustTransition(t, v, Event{Kind: EventAcquire})

	if _, _, err := Transition(v, Event{Kind: EventAcquire}); !errors.Is(err, ErrSuppressionHeld) {
		t.Errorf("err = %v, want ErrSuppressionHeld", err)
	}
}

func TestTransition_ReleaseReplaysLatestIgnored(t *testing.T) {
	tests := []struct {
		name         string
		ignored      []string
		wantSchedule bool
		wantState    State
	}{
		{"無視なし", nil, false, StateUnauthenticated},
		{"最後がサインアウト", []string{"u1", ""}, false, StateUnauthenticated},
		{"最後がサインイン", []string{"", "u1"}, true, StateUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := mustTransition(t, InitialView(), notify(1, ""))
			v, _ = mustTransition(t, v, Event{Kind: EventAcquire})
			for i, id := range tt.ignored {
				v, _ = mustTransition(t, v, notify(uint64(i+2), id))
			}

			v, eff := mustTransition(t, v, Event{Kind: EventRelease})
			if v.Suppression != Free {
				t.Fatal("suppression should be free after release")
			}
			if v.Ignored != nil {
				t.Error("ignored notification should be consumed")
			}
			if (eff.Schedule != 0) != tt.wantSchedule {
				t.Errorf("Schedule = %d, wantSchedule %v", eff.Schedule, tt.wantSchedule)
			}
			if v.State() != tt.wantState {
				t.Errorf("State = %s, want %s", v.State(), tt.wantState)
			}
		})
	}
}

func TestTransition_ReleaseWhenFreeIsNoop(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, "u1"))

	next, eff := mustTransition(t, v, Event{Kind: EventRelease})
	if next.State() != v.State() || eff != (Effects{}) {
		t.Errorf("release while free changed state: %+v %+v", next, eff)
	}
}

// TestTransition_AcquireKeepsPendingForReplay は抑止取得時に予約中の通知が解放後に再生されることを検証する。
func TestTransition_AcquireKeepsPendingForReplay(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, ""))
	v, _ = mustTransition(t, v, notify(2, "u1"))

	v, eff := mustTransition(t, v, Event{Kind: EventAcquire})
	if !eff.CancelPending {
		t.Error("acquire should cancel pending adoption")
	}

	v, eff = mustTransition(t, v, Event{Kind: EventAdoptionDue, Seq: 2})
	if !eff.Stale || v.Identity != nil {
		t.Fatal("adoption must not apply while suppressed")
	}

	_, eff = mustTransition(t, v, Event{Kind: EventRelease})
	if eff.Schedule != 2 {
		t.Errorf("Schedule = %d, want 2", eff.Schedule)
	}
}

func TestTransition_FirstNotificationWhileSuppressed(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), Event{Kind: EventAcquire})

	v, _ = mustTransition(t, v, notify(1, "u1"))
	if v.Initializing {
		t.Fatal("first notification must end initialization")
	}
	if Render(v) != ScreenSetUnauthenticated {
		t.Errorf("Render = %s, want unauthenticated", Render(v))
	}
}

func TestTransition_StopDropsPending(t *testing.T) {
	v, _ := mustTransition(t, InitialView(), notify(1, ""))
	v, _ = mustTransition(t, v, notify(2, "u1"))

	v, eff := mustTransition(t, v, Event{Kind: EventStop})
	if !eff.CancelPending || v.Pending != nil {
		t.Errorf("stop should drop pending adoption: %+v %+v", v, eff)
	}
	if v.State() != StateUnauthenticated {
		t.Errorf("State = %s, want unauthenticated", v.State())
	}
}

package gate

import "time"

// Timer は遅延実行の取り消しハンドル。
type Timer interface {
	Stop() bool
}

// Clock は遅延実行を提供する。テストでは偽の時計に差し替える。
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// RealClock は標準のtimeパッケージに委譲するClockを返す。
func RealClock() Clock {
	return realClock{}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

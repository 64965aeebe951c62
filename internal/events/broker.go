// Package events はドキュメント変更イベントの配信を提供する。
// 単一プロセスではメモリ内、複数インスタンス構成ではRedis Pub/Subで配信する。
package events

import (
	"context"
	"log/slog"
	"sync"
)

// 変更操作の種別
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event はコレクション内のレコード変更を表す。
type Event struct {
	Topic string `json:"topic"`
	ID    string `json:"id"`
	Op    string `json:"op"`
}

// Subscription はトピック購読を表す。Closeは冪等。
type Subscription interface {
	C() <-chan Event
	Close() error
}

// Broker はイベントの発行と購読のインターフェース。
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// subscriptionBuffer は購読者ごとのバッファ長。溢れたイベントは破棄する。
const subscriptionBuffer = 16

// MemoryBroker はプロセス内でイベントを配信するBroker実装。
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBroker はMemoryBrokerを生成する。
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish はトピックの全購読者にイベントを配信する。
// 受信が追いつかない購読者へのイベントはブロックせずに破棄する。
func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("event dropped for slow subscriber",
				slog.String("topic", ev.Topic),
				slog.String("id", ev.ID),
			)
		}
	}
	return nil
}

// Subscribe はトピックを購読する。
func (b *MemoryBroker) Subscribe(_ context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{
		broker: b,
		topic:  topic,
		ch:     make(chan Event, subscriptionBuffer),
	}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	return sub, nil
}

// SubscriberCount はトピックの購読者数を返す。テスト用。
func (b *MemoryBroker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[sub.topic]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.ch)
		}
		if len(subs) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  string
	ch     chan Event
	once   sync.Once
}

func (s *memorySubscription) C() <-chan Event { return s.ch }

func (s *memorySubscription) Close() error {
	s.once.Do(func() { s.broker.remove(s) })
	return nil
}

// compile-time interface check
var _ Broker = (*MemoryBroker)(nil)

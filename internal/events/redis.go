package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// channelPrefix はRedisチャネル名の接頭辞。
const channelPrefix = "campus:events:"

// NewRedisClient はRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisBroker はRedis Pub/Subでイベントを配信するBroker実装。
// 複数のAPIインスタンス間で一覧のライブ更新を共有するために使用する。
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker はRedisBrokerを生成する。
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish はイベントをJSONにしてトピックのチャネルに発行する。
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+ev.Topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe はトピックのチャネルを購読する。
// 購読が確立するまで待機してから返す。
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &redisSubscription{
		ps: ps,
		ch: make(chan Event, subscriptionBuffer),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Event
	once sync.Once
}

// forward はRedisメッセージをデコードしてEventチャネルに転送する。
// PubSubが閉じられるとチャネルも閉じる。
func (s *redisSubscription) forward() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			slog.Warn("invalid event payload",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}
		select {
		case s.ch <- ev:
		default:
			slog.Warn("event dropped for slow subscriber", slog.String("topic", ev.Topic))
		}
	}
}

func (s *redisSubscription) C() <-chan Event { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

// compile-time interface check
var _ Broker = (*RedisBroker)(nil)

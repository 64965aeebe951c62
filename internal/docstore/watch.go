package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/campus/internal/events"
)

// WatchingStore は書き込みのたびに変更イベントを発行するStoreのデコレータ。
// Watchでコレクションのライブ一覧を購読できる。
type WatchingStore struct {
	Store
	broker events.Broker
}

// NewWatchingStore はWatchingStoreを生成する。
func NewWatchingStore(store Store, broker events.Broker) *WatchingStore {
	return &WatchingStore{Store: store, broker: broker}
}

// Create はレコードを作成し、作成イベントを発行する。
func (s *WatchingStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	id, err := s.Store.Create(ctx, collection, fields)
	if err != nil {
		return "", err
	}
	s.publish(ctx, collection, id, events.OpCreate)
	return id, nil
}

// Update はレコードを更新し、更新イベントを発行する。
func (s *WatchingStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := s.Store.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	s.publish(ctx, collection, id, events.OpUpdate)
	return nil
}

// Set はレコードを書き込み、更新イベントを発行する。
func (s *WatchingStore) Set(ctx context.Context, collection, id string, fields Fields, merge bool) error {
	if err := s.Store.Set(ctx, collection, id, fields, merge); err != nil {
		return err
	}
	s.publish(ctx, collection, id, events.OpUpdate)
	return nil
}

// Insert はレコードを作成し、作成した場合のみ作成イベントを発行する。
func (s *WatchingStore) Insert(ctx context.Context, collection, id string, fields Fields) (bool, error) {
	created, err := s.Store.Insert(ctx, collection, id, fields)
	if err != nil || !created {
		return created, err
	}
	s.publish(ctx, collection, id, events.OpCreate)
	return true, nil
}

// Delete はレコードを削除し、削除イベントを発行する。
func (s *WatchingStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.Store.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.publish(ctx, collection, id, events.OpDelete)
	return nil
}

// Watch はコレクションの一覧を購読する。
// 購読直後に現在の一覧を送り、以降は変更のたびに最新の一覧を送る。
// ctxがキャンセルされるとチャネルを閉じる。
func (s *WatchingStore) Watch(ctx context.Context, collection string) (<-chan []Record, error) {
	sub, err := s.broker.Subscribe(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to watch collection: %w", err)
	}

	out := make(chan []Record, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		send := func() bool {
			records, err := s.Store.List(ctx, collection)
			if err != nil {
				slog.Error("failed to list watched collection",
					slog.String("collection", collection),
					slog.String("error", err.Error()),
				)
				return ctx.Err() == nil
			}
			select {
			case out <- records:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				if !send() {
					return
				}
			}
		}
	}()

	return out, nil
}

// publish は変更イベントを発行する。発行失敗は書き込み結果に影響させずログのみ残す。
func (s *WatchingStore) publish(ctx context.Context, collection, id, op string) {
	err := s.broker.Publish(ctx, events.Event{Topic: collection, ID: id, Op: op})
	if err != nil {
		slog.Warn("failed to publish change event",
			slog.String("collection", collection),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

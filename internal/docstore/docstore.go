// Package docstore はコレクション単位でJSONレコードを保存するドキュメントストアを提供する。
// レコードIDはストアが採番し、更新はトップレベルのフィールド単位でマージする。
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound はレコードが存在しない場合に返される。
var ErrNotFound = errors.New("docstore: record not found")

// Fields はレコードのフィールド集合。値はJSONで表現できる型に限る。
type Fields map[string]any

// Record はコレクション内の1レコードを表す。
type Record struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store はドキュメントストアのインターフェース。
type Store interface {
	// Create はレコードを作成し、採番したIDを返す。
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Get はレコードを取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, collection, id string) (*Record, error)
	// Update は既存レコードにフィールドをマージする。存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Set は指定IDでレコードを書き込む。mergeがtrueの場合は既存フィールドに重ねる。
	Set(ctx context.Context, collection, id string, fields Fields, merge bool) error
	// Insert は指定IDでレコードを作成する。既に存在する場合は何もせずfalseを返す。
	Insert(ctx context.Context, collection, id string, fields Fields) (bool, error)
	// Delete はレコードを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, collection, id string) error
	// List はコレクションの全レコードを作成順に返す。
	List(ctx context.Context, collection string) ([]Record, error)
}

// mergeFields はbaseにpatchのトップレベルキーを上書きした新しいFieldsを返す。
func mergeFields(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

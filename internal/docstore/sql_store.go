package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campus/internal/database"
)

// SQLStore はdocumentsテーブルにJSONレコードを保存するStore実装。
// PostgreSQLではJSONB、SQLiteではTEXTとして保存する。
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
	newID   func() string
}

// NewSQLStore はSQLStoreを生成する。
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// Create はレコードを作成し、採番したIDを返す。
func (s *SQLStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := s.newID()
	now := database.ToMillis(s.now())
	_, err = s.db.ExecContext(ctx,
		s.dialect.Rebind(`INSERT INTO documents (collection, id, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`),
		collection, id, raw, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return id, nil
}

// Get はレコードを取得する。
func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT id, fields, created_at, updated_at
		 FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Update は既存レコードにフィールドをマージする。
// 読み取りと書き込みを同一トランザクションで行い、同時更新ではlast-writer-winsとなる。
func (s *SQLStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lockFields(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotFound
		}
		return s.writeFields(ctx, tx, collection, id, mergeFields(current, fields))
	})
}

// Set は指定IDでレコードを書き込む。存在しない場合は作成する。
// 同時に作成された場合も一意制約で片方だけが作成し、もう片方は既存行への書き込みになる。
func (s *SQLStore) Set(ctx context.Context, collection, id string, fields Fields, merge bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// 1. 未作成なら作成する
		created, err := s.insertIfAbsent(ctx, tx, collection, id, fields)
		if err != nil {
			return err
		}
		if created {
			return nil
		}

		// 2. 既存行をロックして書き込む
		current, err := s.lockFields(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrNotFound
		}
		next := fields
		if merge {
			next = mergeFields(current, fields)
		}
		return s.writeFields(ctx, tx, collection, id, next)
	})
}

// Insert は指定IDでレコードを作成する。既に存在する場合は何もせずfalseを返す。
func (s *SQLStore) Insert(ctx context.Context, collection, id string, fields Fields) (bool, error) {
	return s.insertIfAbsent(ctx, s.db, collection, id, fields)
}

// execer は*sql.DBと*sql.Txの共通インターフェース。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertIfAbsent はON CONFLICT DO NOTHINGで行を作成し、作成したかどうかを返す。
func (s *SQLStore) insertIfAbsent(ctx context.Context, ex execer, collection, id string, fields Fields) (bool, error) {
	raw, err := encodeFields(fields)
	if err != nil {
		return false, err
	}
	now := database.ToMillis(s.now())
	res, err := ex.ExecContext(ctx,
		s.dialect.Rebind(`INSERT INTO documents (collection, id, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO NOTHING`),
		collection, id, raw, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Delete はレコードを削除する。
func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List はコレクションの全レコードを作成順に返す。
func (s *SQLStore) List(ctx context.Context, collection string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.Rebind(`SELECT id, fields, created_at, updated_at
		 FROM documents WHERE collection = ?
		 ORDER BY created_at, id`),
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// lockFields はレコードのフィールドを行ロック付きで読み取る。存在しない場合はnilを返す。
func (s *SQLStore) lockFields(ctx context.Context, tx *sql.Tx, collection, id string) (Fields, error) {
	var raw []byte
	err := tx.QueryRowContext(ctx,
		s.dialect.Rebind(`SELECT fields FROM documents WHERE collection = ? AND id = ?`+s.dialect.ForUpdate()),
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return decodeFields(raw)
}

func (s *SQLStore) writeFields(ctx context.Context, tx *sql.Tx, collection, id string, fields Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		s.dialect.Rebind(`UPDATE documents SET fields = ?, updated_at = ? WHERE collection = ? AND id = ?`),
		raw, database.ToMillis(s.now()), collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		raw       []byte
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&rec.ID, &raw, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	rec.Fields = fields
	rec.CreatedAt = database.FromMillis(createdAt)
	rec.UpdatedAt = database.FromMillis(updatedAt)
	return &rec, nil
}

// encodeFields はフィールドをJSON文字列にする。
// lib/pqに[]byteを渡すとbyteaとして送られるため、JSONBへは文字列で渡す。
func encodeFields(fields Fields) (string, error) {
	if fields == nil {
		fields = Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(raw), nil
}

func decodeFields(raw []byte) (Fields, error) {
	fields := Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

// compile-time interface check
var _ Store = (*SQLStore)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/campus/internal/database"
	"github.com/hitoshi/campus/internal/model"
)

// SQLSessionRepo はPostgreSQLまたはSQLiteを使用したセッションリポジトリ。
type SQLSessionRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSQLSessionRepo はSQLSessionRepoを生成する。
func NewSQLSessionRepo(db *sql.DB, dialect database.Dialect) *SQLSessionRepo {
	return &SQLSessionRepo{db: db, dialect: dialect, now: time.Now}
}

// Create はセッションを作成する。
func (r *SQLSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO sessions (id, user_id, device_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		session.ID, session.UserID, session.DeviceID,
		database.ToMillis(session.ExpiresAt), database.ToMillis(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *SQLSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT id, user_id, device_id, expires_at, created_at
		 FROM sessions
		 WHERE id = ? AND expires_at > ?`),
		id, database.ToMillis(r.now()),
	)
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// FindLatestByDeviceID は端末の最新の有効セッションを取得する。
func (r *SQLSessionRepo) FindLatestByDeviceID(ctx context.Context, deviceID string) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT id, user_id, device_id, expires_at, created_at
		 FROM sessions
		 WHERE device_id = ? AND expires_at > ?
		 ORDER BY created_at DESC
		 LIMIT 1`),
		deviceID, database.ToMillis(r.now()),
	)
	session, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find device session: %w", err)
	}
	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *SQLSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByDeviceID は端末の全セッションを削除する。
func (r *SQLSessionRepo) DeleteByDeviceID(ctx context.Context, deviceID string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE device_id = ?`), deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device sessions: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SQLSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (*model.Session, error) {
	var (
		s         model.Session
		expiresAt int64
		createdAt int64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = database.FromMillis(expiresAt)
	s.CreatedAt = database.FromMillis(createdAt)
	return &s, nil
}

// compile-time interface check
var _ SessionRepository = (*SQLSessionRepo)(nil)

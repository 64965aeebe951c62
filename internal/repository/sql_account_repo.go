package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/campus/internal/database"
	"github.com/hitoshi/campus/internal/model"
)

// SQLAccountRepo はPostgreSQLまたはSQLiteを使用したアカウントリポジトリ。
type SQLAccountRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLAccountRepo はSQLAccountRepoを生成する。
func NewSQLAccountRepo(db *sql.DB, dialect database.Dialect) *SQLAccountRepo {
	return &SQLAccountRepo{db: db, dialect: dialect}
}

const accountColumns = `id, email, password_hash, display_name, photo_url, created_at, updated_at`

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *SQLAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`),
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *SQLAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`),
		strings.ToLower(email),
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// Create はアカウントを作成する。
func (r *SQLAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		account.ID,
		strings.ToLower(account.Email),
		account.PasswordHash,
		account.DisplayName,
		account.PhotoURL,
		database.ToMillis(account.CreatedAt),
		database.ToMillis(account.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// UpdateDisplayName は表示名を更新する。
func (r *SQLAccountRepo) UpdateDisplayName(ctx context.Context, id, displayName string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE accounts SET display_name = ?, updated_at = ? WHERE id = ?`),
		displayName, database.ToMillis(now), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	return nil
}

// UpdatePasswordHash はパスワードハッシュを更新する。
func (r *SQLAccountRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.Rebind(`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, database.ToMillis(now), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// scanAccount は1行をAccountに変換する。行がない場合はnilを返す。
func scanAccount(row *sql.Row) (*model.Account, error) {
	var (
		a         model.Account
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.PhotoURL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = database.FromMillis(createdAt)
	a.UpdatedAt = database.FromMillis(updatedAt)
	return &a, nil
}

// isUniqueViolation は一意制約違反かを判定する。
// PostgreSQLはSQLSTATE 23505、SQLiteはエラーメッセージで判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// compile-time interface check
var _ AccountRepository = (*SQLAccountRepo)(nil)

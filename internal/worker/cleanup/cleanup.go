// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限から猶予期間（デフォルト24時間）を過ぎたセッションを
// 定期バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/campus/internal/database"
)

// DefaultGracePeriod は有効期限切れからセッション行を残しておく期間。
const DefaultGracePeriod = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションの自動削除ジョブ。
// 冪等な削除処理のため、何度実行しても結果は変わらない。
type CleanupJob struct {
	db          Executor
	dialect     database.Dialect
	logger      *slog.Logger
	now         func() time.Time
	GracePeriod time.Duration // 有効期限切れから削除までの猶予（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, dialect database.Dialect, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:          db,
		dialect:     dialect,
		logger:      logger,
		now:         time.Now,
		GracePeriod: DefaultGracePeriod,
	}
}

// Run は猶予期間を過ぎた期限切れセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().Add(-j.GracePeriod)

	query := j.dialect.Rebind(`DELETE FROM sessions WHERE expires_at < ?`)
	result, err := j.db.ExecContext(ctx, query, database.ToMillis(cutoff))
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("grace_period", j.GracePeriod),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("grace_hours", j.GracePeriod.Hours()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunEvery は起動直後に1回実行し、以降intervalごとにRunを繰り返す。ctxが終了すると戻る。
func (j *CleanupJob) RunEvery(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

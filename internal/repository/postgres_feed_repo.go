package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/feedbell/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// Create はフィード購読を作成する。
// created_atとupdated_atは同一のnow()で初期化され、updated_at >= created_atの不変条件を満たす。
func (r *PostgresFeedRepo) Create(ctx context.Context, chatID int64, url, title string) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO feeds (chat_id, url, title, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING id, chat_id, url, title, created_at, updated_at`,
		chatID, url, title,
	).Scan(&feed.ID, &feed.ChatID, &feed.URL, &feed.Title, &feed.CreatedAt, &feed.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}

	return feed, nil
}

// ListByChatID は指定チャットの購読一覧をID昇順で返す。
func (r *PostgresFeedRepo) ListByChatID(ctx context.Context, chatID int64) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, url, title, created_at, updated_at
		 FROM feeds
		 WHERE chat_id = $1
		 ORDER BY id ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// Delete は指定チャットが所有するフィードを削除し、削除行数を返す。
// フィードIDと所有チャットIDの両方で絞り込むため、他チャットのフィードは削除できない。
func (r *PostgresFeedRepo) Delete(ctx context.Context, chatID, feedID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE id = $1 AND chat_id = $2`,
		feedID, chatID,
	)
	if err != nil {
		return 0, fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// ListAll は全フィードをID昇順で返す。ポールスケジューラ専用。
func (r *PostgresFeedRepo) ListAll(ctx context.Context) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, url, title, created_at, updated_at
		 FROM feeds
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("全フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// AdvanceWatermark は高水位マーク（updated_at）をnewWatermarkに設定する。
// 購読解除と競合した場合、対象行が存在しなければ更新は単なるno-opになる。
func (r *PostgresFeedRepo) AdvanceWatermark(ctx context.Context, feedID int64, newWatermark time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET updated_at = $2 WHERE id = $1`,
		feedID, newWatermark,
	)
	if err != nil {
		return fmt.Errorf("高水位マークの更新に失敗しました: %w", err)
	}
	return nil
}

// scanFeeds は結果セットをFeedスライスに変換する。
func scanFeeds(rows *sql.Rows) ([]*model.Feed, error) {
	var feeds []*model.Feed
	for rows.Next() {
		feed := &model.Feed{}
		if err := rows.Scan(
			&feed.ID, &feed.ChatID, &feed.URL, &feed.Title,
			&feed.CreatedAt, &feed.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードの走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)

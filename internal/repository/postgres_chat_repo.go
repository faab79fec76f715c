package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/feedbell/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

// Create は指定IDのチャットを作成する。
// 同一IDが既に存在する場合はmodel.ErrCodeDuplicateChatのBotErrorを返す。
func (r *PostgresChatRepo) Create(ctx context.Context, id int64) (*model.Chat, error) {
	chat := &model.Chat{}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO chats (id) VALUES ($1) RETURNING id, created_at`,
		id,
	).Scan(&chat.ID, &chat.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return nil, model.NewDuplicateChatError(id)
		}
		return nil, fmt.Errorf("チャットの作成に失敗しました: %w", err)
	}

	return chat, nil
}

// Exists は指定IDのチャットが登録済みかを返す。
func (r *PostgresChatRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM chats WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("チャットの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Delete は指定IDのチャットを削除し、削除行数を返す。
// 関連するfeedsはON DELETE CASCADEで同一トランザクション内で削除される。
func (r *PostgresChatRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = $1`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("チャットの削除に失敗しました: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}

	return count, nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)

// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/feedbell/internal/model"
)

// ChatRepository はチャットデータの永続化インターフェース。
type ChatRepository interface {
	// Create は指定IDのチャットを作成する。
	// 同一IDが既に存在する場合はmodel.ErrCodeDuplicateChatのBotErrorを返す。
	Create(ctx context.Context, id int64) (*model.Chat, error)

	// Exists は指定IDのチャットが登録済みかを返す。
	Exists(ctx context.Context, id int64) (bool, error)

	// Delete は指定IDのチャットを削除し、削除行数を返す。
	// 存在しない場合は0を返す（エラーではない）。
	// 関連するfeedsはストアのCASCADEで削除される。
	Delete(ctx context.Context, id int64) (int64, error)
}

// FeedRepository はフィード購読データの永続化インターフェース。
// 読み取り・削除はフィードIDと所有チャットIDの両方でスコープされ、
// 他チャットのフィードが見えることはない。
type FeedRepository interface {
	// Create はフィード購読を作成する。updated_atはcreated_atと同時刻で初期化される。
	Create(ctx context.Context, chatID int64, url, title string) (*model.Feed, error)

	// ListByChatID は指定チャットの購読一覧をID昇順で返す。
	ListByChatID(ctx context.Context, chatID int64) ([]*model.Feed, error)

	// Delete は指定チャットが所有するフィードを削除し、削除行数を返す。
	// 所有者が異なる、またはIDが存在しない場合は0を返す（エラーではない）。
	Delete(ctx context.Context, chatID, feedID int64) (int64, error)

	// ListAll は全フィードを返す。ポールスケジューラ専用（スコープなし）。
	ListAll(ctx context.Context) ([]*model.Feed, error)

	// AdvanceWatermark は高水位マーク（updated_at）をnewWatermarkに設定する。
	// 呼び出し元がnewWatermark > 現在のupdated_atを保証する。
	AdvanceWatermark(ctx context.Context, feedID int64, newWatermark time.Time) error
}

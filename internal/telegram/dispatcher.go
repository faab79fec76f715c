package telegram

import (
	"context"
	"log/slog"
	"time"
)

// MessageHandler は受信メッセージ1件を処理するインターフェース。
// コマンドルーターが実装する。
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
}

// UpdatesSource はUpdate取得のインターフェース。Clientを抽象化する。
type UpdatesSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
}

const (
	// longPollTimeoutSec はgetUpdatesのサーバー側保持秒数。
	longPollTimeoutSec = 30
	// errorBackoff はgetUpdates失敗時の再試行までの待ち時間。
	errorBackoff = 3 * time.Second
)

// Dispatcher はgetUpdatesロングポーリングのループを回し、
// 受信メッセージをメッセージごとに独立したgoroutineでハンドラに引き渡す。
// メッセージ間の処理順序は保証しない（チャット間の順序保証は仕様上不要）。
type Dispatcher struct {
	source  UpdatesSource
	handler MessageHandler
	logger  *slog.Logger
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(source UpdatesSource, handler MessageHandler, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:  source,
		handler: handler,
		logger:  logger,
	}
}

// Run はコンテキストがキャンセルされるまでロングポーリングを継続する。
// getUpdatesの失敗はログに記録してバックオフ後に再試行する（致命的ではない）。
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("updateディスパッチャを開始しました")

	var offset int64

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("updateディスパッチャを停止しました")
			return
		default:
		}

		updates, err := d.source.GetUpdates(ctx, offset, longPollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Info("updateディスパッチャを停止しました")
				return
			}
			d.logger.Error("updatesの取得に失敗しました",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}

			msg := *update.Message
			go d.handler.HandleMessage(ctx, msg)
		}
	}
}

// Package poll はフィード更新検知のバックグラウンドスイープ処理を提供する。
// 固定間隔のスケジューラと、1フィード分のフェッチ→検知→通知→高水位
// マーク更新を行うスイーパーを含む。
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedbell/internal/feed"
	"github.com/hitoshi/feedbell/internal/metrics"
	"github.com/hitoshi/feedbell/internal/model"
	"github.com/hitoshi/feedbell/internal/repository"
)

// FeedFetcher はフィード取得・デコードのインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// Notifier は新着アイテム通知の配信インターフェース。
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TextSanitizer は通知テキストのサニタイズインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Sweeper は1フィード分のスイープ処理を行う。
// フェッチ→新着検知→古い順に通知→高水位マーク更新。
// フェッチ・配信の失敗はこのフィード内で隔離され、他フィードに波及しない。
type Sweeper struct {
	feedRepo  repository.FeedRepository
	fetcher   FeedFetcher
	notifier  Notifier
	sanitizer TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewSweeper はSweeperの新しいインスタンスを生成する。
func NewSweeper(
	feedRepo repository.FeedRepository,
	fetcher FeedFetcher,
	notifier Notifier,
	sanitizer TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		feedRepo:  feedRepo,
		fetcher:   fetcher,
		notifier:  notifier,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
	}
}

// SweepFeed は1フィードをスイープする。
// フェッチ・デコード失敗時はこのティックをスキップし、高水位マークは動かさない。
// 配信は全アイテムを試行するが、高水位マークは先頭から連続して配信に成功した
// アイテムの最大タイムスタンプまでしか進めない。失敗したアイテムは
// マークが追い越さないため、次回スイープで再送される。
func (s *Sweeper) SweepFeed(ctx context.Context, f *model.Feed) error {
	parsed, err := s.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		s.metrics.RecordFetchFailure(fetchFailureReason(err))
		return fmt.Errorf("フィードのフェッチに失敗: %w", err)
	}

	newItems, _ := feed.Detect(f.UpdatedAt, parsed.Items)
	if len(newItems) == 0 {
		return nil
	}

	s.logger.Info("新着アイテムを検知しました",
		slog.Int64("feed_id", f.ID),
		slog.Int64("chat_id", f.ChatID),
		slog.Int("new_items", len(newItems)),
	)

	feedTitle := s.sanitizer.SanitizeText(f.Title)

	// 配信成功した連続プレフィックスの最大タイムスタンプを追跡する
	committed := f.UpdatedAt
	prefixIntact := true

	for _, item := range newItems {
		text := fmt.Sprintf("%s\n%s\n%s", feedTitle, s.sanitizer.SanitizeText(item.Title), item.Link)

		if err := s.notifier.SendMessage(ctx, f.ChatID, text); err != nil {
			s.metrics.RecordNotificationFailure()
			s.logger.Error("通知の配信に失敗しました",
				slog.Int64("feed_id", f.ID),
				slog.Int64("chat_id", f.ChatID),
				slog.String("item_link", item.Link),
				slog.String("error", err.Error()),
			)
			prefixIntact = false
			continue
		}

		s.metrics.RecordNotificationSent()
		if prefixIntact {
			committed = item.PublishedAt
		}
	}

	if !committed.After(f.UpdatedAt) {
		// 全滅: マークを動かさず次回スイープで再送する
		return nil
	}

	if err := s.feedRepo.AdvanceWatermark(ctx, f.ID, committed); err != nil {
		return fmt.Errorf("高水位マークの更新に失敗: %w", err)
	}

	return nil
}

// fetchFailureReason はフェッチ失敗をメトリクスの原因ラベルに分類する。
func fetchFailureReason(err error) string {
	var be *model.BotError
	if !errors.As(err, &be) {
		return "network"
	}
	switch be.Code {
	case model.ErrCodeParseFailed:
		return "decode"
	case model.ErrCodeSSRFBlocked:
		return "ssrf"
	case model.ErrCodeValidationFailed:
		return "validation"
	default:
		return "network"
	}
}

package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/feedbell/internal/metrics"
	"github.com/hitoshi/feedbell/internal/model"
	"github.com/hitoshi/feedbell/internal/repository"
)

// FeedSweeperService は1フィード分のスイープ実行インターフェース。
type FeedSweeperService interface {
	SweepFeed(ctx context.Context, f *model.Feed) error
}

var _ FeedSweeperService = (*Sweeper)(nil)

// Scheduler は固定間隔で全フィードのスイープを起動する。
// 状態はIdle（次のティック待ち）とSweeping（スイープ実行中）の2つ。
// 前回スイープの実行中に到着したティックは落とされ、二重スイープは起きない。
type Scheduler struct {
	feedRepo       repository.FeedRepository
	sweeper        FeedSweeperService
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	sweeping       sync.Mutex
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	sweeper FeedSweeperService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		feedRepo:       feedRepo,
		sweeper:        sweeper,
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は固定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ポールスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ポールスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全フィードを1回スイープする。
// 前回スイープが実行中の場合は何もしない（再入なし）。
// フィードごとにsemaphoreパターンで並列数を制御し、1フィードの失敗は
// ログに記録して他フィードの処理を続行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.sweeping.TryLock() {
		s.metrics.RecordSweepSkipped()
		s.logger.Debug("前回スイープが実行中のためティックをスキップしました")
		return nil
	}
	defer s.sweeping.Unlock()

	sweepID := uuid.NewString()
	start := time.Now()

	feeds, err := s.feedRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	if len(feeds) == 0 {
		s.logger.Debug("スイープ対象のフィードはありません",
			slog.String("sweep_id", sweepID),
		)
		return nil
	}

	s.logger.Info("スイープを開始します",
		slog.String("sweep_id", sweepID),
		slog.Int("feed_count", len(feeds)),
	)

	// シャットダウン時は処理中のフィードを完了させてから止まる。
	// 開始済みのSweepFeedはキャンセルの影響を受けない。
	feedCtx := context.WithoutCancel(ctx)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, f := range feeds {
		// キャンセル後は新しいフィードを開始しない
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(f *model.Feed) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.sweeper.SweepFeed(feedCtx, f); err != nil {
				s.logger.Error("フィードのスイープに失敗しました",
					slog.String("sweep_id", sweepID),
					slog.Int64("feed_id", f.ID),
					slog.String("feed_url", f.URL),
					slog.String("error", err.Error()),
				)
			}
		}(f)
	}

	wg.Wait()

	duration := time.Since(start)
	s.metrics.RecordSweep(duration)
	s.logger.Info("スイープが完了しました",
		slog.String("sweep_id", sweepID),
		slog.Int("feed_count", len(feeds)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Package app はアプリケーションの初期化・起動・シャットダウンを管理する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedbell/internal/bot"
	"github.com/hitoshi/feedbell/internal/config"
	"github.com/hitoshi/feedbell/internal/database"
	"github.com/hitoshi/feedbell/internal/feed"
	"github.com/hitoshi/feedbell/internal/handler"
	"github.com/hitoshi/feedbell/internal/logger"
	"github.com/hitoshi/feedbell/internal/metrics"
	"github.com/hitoshi/feedbell/internal/repository"
	"github.com/hitoshi/feedbell/internal/security"
	"github.com/hitoshi/feedbell/internal/telegram"
	"github.com/hitoshi/feedbell/internal/worker/poll"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runBot(cfg)
	}
}

// runBot はボットモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、updateディスパッチャと
// ポールスケジューラと運用HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runBot(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	chatRepo := repository.NewPostgresChatRepo(db)
	feedRepo := repository.NewPostgresFeedRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. フェッチャーとTelegramクライアントの初期化
	fetcher := feed.NewFetcher(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)

	tgClient := telegram.NewClient(
		&http.Client{Timeout: 60 * time.Second}, // ロングポーリングよりも長く
		slog.Default(),
		cfg.BotToken,
		cfg.SendRatePerSec,
		cfg.SendBurst,
	)
	tgClient.SetBaseURL(cfg.BotAPIBaseURL)

	// 5. コマンドルーターとディスパッチャの初期化
	router := bot.NewRouter(
		chatRepo, feedRepo, fetcher, tgClient,
		collector, slog.Default(), cfg.PromptUnregistered,
	)
	dispatcher := telegram.NewDispatcher(tgClient, router, slog.Default())

	// 6. スイーパーとポールスケジューラの初期化
	sweeper := poll.NewSweeper(
		feedRepo, fetcher, tgClient, sanitizer,
		collector, slog.Default(),
	)
	scheduler := poll.NewScheduler(
		feedRepo, sweeper, collector, slog.Default(), cfg.PollMaxConcurrent,
	)

	// 7. 運用HTTPサーバーの構築
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(db, registry, slog.Default()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx, cfg.PollInterval)
	}()

	go func() {
		slog.Info("ops server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("bot starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Int("max_concurrent", cfg.PollMaxConcurrent),
	)

	// ディスパッチャとスケジューラの停止を待つ
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("bot stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

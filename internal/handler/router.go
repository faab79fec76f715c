package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedbell/internal/metrics"
	"github.com/hitoshi/feedbell/internal/middleware"
)

// NewRouter は運用エンドポイントのルーティングを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(db Pinger, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))

	healthHandler := NewHealthHandler(db, logger)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler(gatherer))

	return r
}

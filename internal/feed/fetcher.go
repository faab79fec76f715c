// Package feed はフィードドキュメントの取得・検証と更新検出を提供する。
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedbell/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は1つのフィードURLのHTTPフェッチとgofeedによるデコードを行う。
// ネットワーク障害とデコード失敗はBotErrorのコードで区別され、
// 呼び出し元（ポールスケジューラ / subscribeハンドラ）がフィード単位で隔離する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch は指定URLのフィードドキュメントを取得してデコードする。
// SSRF検証に失敗した場合、HTTPエラーの場合はFETCH_FAILED系のBotErrorを、
// デコード失敗の場合はPARSE_FAILEDのBotErrorを返す。
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(url); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	req.Header.Set("User-Agent", "Feedbell/1.0 RSS Notifier")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, model.NewParseFailedError()
	}

	return parsed, nil
}

// Validate はデコード済みフィードの構造検証を行う。
// subscribeコマンドの登録前チェックとして使用する。
// チャンネルタイトルが欠けているフィードは購読として登録できない
// （listコマンドやタイトル付き通知が成立しないため）。
func Validate(parsed *gofeed.Feed) error {
	if parsed == nil {
		return model.NewValidationFailedError("フィードが空です")
	}
	if parsed.Title == "" {
		return model.NewValidationFailedError("チャンネルタイトルがありません")
	}
	return nil
}

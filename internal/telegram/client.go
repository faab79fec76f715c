// Package telegram はTelegram Bot APIとの送受信を提供する。
// sendMessageによる配信クライアントとgetUpdatesロングポーリングの
// ディスパッチャを含む。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hitoshi/feedbell/internal/model"
)

// defaultBaseURL はTelegram Bot APIのエンドポイント。
const defaultBaseURL = "https://api.telegram.org"

// Client はTelegram Bot APIのクライアント。
// 送信はグローバルなレートリミッタ（Bot APIの約30通/秒制限に対応）を通る。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	token      string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// sendRatePerSecが0以下の場合はレート制限なしとして扱う。
func NewClient(httpClient *http.Client, logger *slog.Logger, token string, sendRatePerSec float64, sendBurst int) *Client {
	limit := rate.Inf
	if sendRatePerSec > 0 {
		limit = rate.Limit(sendRatePerSec)
	}
	if sendBurst <= 0 {
		sendBurst = 1
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, sendBurst),
		token:      token,
		baseURL:    defaultBaseURL,
	}
}

// SetBaseURL はAPIエンドポイントを差し替える。テストおよびローカルBot APIサーバー用。
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// apiResponse はBot APIの共通レスポンスエンベロープ。
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// SendMessage は指定チャットにテキストメッセージを1通配信する。
// 配信失敗はDELIVERY_FAILEDのBotErrorとして返し、呼び出し元が
// メッセージ単位で隔離する。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewDeliveryFailedError(err.Error())
	}

	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	if _, err := c.call(ctx, "sendMessage", payload); err != nil {
		c.logger.Error("メッセージの配信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return model.NewDeliveryFailedError(err.Error())
	}

	return nil
}

// GetUpdates はロングポーリングで未処理のUpdateを取得する。
// offsetには前回処理した最大update_id+1を渡す。timeoutSecはサーバー側の
// ロングポーリング保持秒数。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload, err := json.Marshal(map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	result, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("updatesのパースに失敗しました: %w", err)
	}

	return updates, nil
}

// call はBot APIのメソッドを1回呼び出し、resultフィールドを返す。
func (c *Client) call(ctx context.Context, method string, payload []byte) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Bot APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if !envelope.OK {
		return nil, fmt.Errorf("Bot APIがエラーを返しました (HTTP %d): %s", resp.StatusCode, envelope.Description)
	}

	return envelope.Result, nil
}

// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// BotError は統一エラーフォーマットを表す。
// チャットに返信する原因カテゴリと対処方法を含む。
type BotError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: registration, validation, feed, delivery, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *BotError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateChat    = "DUPLICATE_CHAT"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeDeliveryFailed   = "DELIVERY_FAILED"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
)

// NewDuplicateChatError は既に登録済みのチャットを再登録しようとした場合のエラーを生成する。
func NewDuplicateChatError(chatID int64) *BotError {
	return &BotError{
		Code:     ErrCodeDuplicateChat,
		Message:  fmt.Sprintf("このチャットは既に登録されています: %d", chatID),
		Category: "registration",
		Action:   "そのまま subscribe コマンドで購読を追加できます。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *BotError {
	return &BotError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフィード取得失敗（ネットワークエラー）を生成する。
func NewFetchFailedError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はフィードのデコード失敗を生成する。
func NewParseFailedError() *BotError {
	return &BotError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewValidationFailedError はフィードの構造検証失敗を生成する。
func NewValidationFailedError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("フィードの検証に失敗しました: %s", reason),
		Category: "feed",
		Action:   "フィードにタイトルとアイテムが含まれているか確認してください。",
	}
}

// NewDeliveryFailedError は通知メッセージの配信失敗を生成する。
func NewDeliveryFailedError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeDeliveryFailed,
		Message:  fmt.Sprintf("メッセージの配信に失敗しました: %s", reason),
		Category: "delivery",
		Action:   "次回スイープで再送されます。",
	}
}

// NewStorageError は予期しない永続化エラーを生成する。
func NewStorageError(reason string) *BotError {
	return &BotError{
		Code:     ErrCodeStorageFailed,
		Message:  fmt.Sprintf("内部エラーが発生しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// IsDuplicateChat はエラーが重複チャット登録によるものかを判定する。
func IsDuplicateChat(err error) bool {
	var be *BotError
	return errors.As(err, &be) && be.Code == ErrCodeDuplicateChat
}

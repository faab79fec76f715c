package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード由来テキストのサニタイズ機能のインターフェースを定義する。
// 通知メッセージに含めるフィードタイトル・アイテムタイトルをプレーンテキストに
// 正規化する。チャットへの送信はプレーンテキストのため、bluemondayの
// StrictPolicyで全タグを除去し、HTMLエンティティを復元する。
type TextSanitizerService interface {
	// SanitizeText はHTMLタグを全て除去したプレーンテキストを返す。
	// エンティティ（&amp;等）は復元し、前後の空白を除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はHTMLタグを全て除去したプレーンテキストを返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

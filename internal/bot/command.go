// Package bot はチャットメッセージのコマンド解釈と二状態ルーティングを提供する。
// 受信テキストは境界で一度だけ閉じたコマンド型にパースされ、以降は
// 網羅的なswitchでディスパッチされる。
package bot

import (
	"strconv"
	"strings"
	"unicode"
)

// CommandKind はコマンドの種別。メトリクスのラベルにもそのまま使う。
type CommandKind string

const (
	KindHelp          CommandKind = "help"
	KindRegister      CommandKind = "register"
	KindSubscribe     CommandKind = "subscribe"
	KindList          CommandKind = "list"
	KindUnsubscribe   CommandKind = "unsubscribe"
	KindDeleteAccount CommandKind = "deleteaccount"
	KindUnknown       CommandKind = "unknown"
)

// Command はパース済みの1コマンド。引数はKindに応じたフィールドに入る。
type Command struct {
	Kind   CommandKind
	URL    string // KindSubscribeのみ
	FeedID int64  // KindUnsubscribeのみ
}

// ParseCommand は受信テキストをCommandにパースする。
// キーワードは大文字小文字を区別せず、先頭の「/」と「@botname」サフィックスを
// 許容する（Telegramのコマンド記法）。引数は空白または「:」区切り。
// 認識できないテキスト・引数不正はKindUnknownになる。
func ParseCommand(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: KindUnknown}
	}

	// キーワードと引数の境界は最初の空白または「:」。
	// URL中の「:」を巻き込まないよう、分割は一度だけ行う。
	sep := strings.IndexFunc(trimmed, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':'
	})
	keyword := trimmed
	args := ""
	if sep >= 0 {
		keyword = trimmed[:sep]
		args = strings.TrimSpace(trimmed[sep+1:])
	}

	keyword = strings.TrimPrefix(keyword, "/")
	if at := strings.Index(keyword, "@"); at >= 0 {
		keyword = keyword[:at]
	}

	switch strings.ToLower(keyword) {
	case "help":
		return Command{Kind: KindHelp}
	case "register", "start":
		return Command{Kind: KindRegister}
	case "subscribe":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindSubscribe, URL: fields[0]}
	case "list":
		return Command{Kind: KindList}
	case "unsubscribe":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return Command{Kind: KindUnknown}
		}
		feedID, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return Command{Kind: KindUnknown}
		}
		return Command{Kind: KindUnsubscribe, FeedID: feedID}
	case "deleteaccount", "delete":
		return Command{Kind: KindDeleteAccount}
	default:
		return Command{Kind: KindUnknown}
	}
}

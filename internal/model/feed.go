package model

import "time"

// Feed は1つのChatが排他的に所有するフィード購読を表す。
// UpdatedAtは高水位マーク: このフィードで通知済みの最新アイテムの公開日時を指す。
// 高水位マークはスイープのコミットステップのみが進め、単調非減少である。
// Chatを削除するとそのChatの全Feedはストア側のCASCADEで削除される。
type Feed struct {
	ID        int64
	ChatID    int64
	URL       string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

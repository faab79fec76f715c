package model

import "time"

// Item はフィードドキュメントから取り出した1アイテムを表す。
// PublishedAtは解決済みの公開日時。公開日時が欠落・解析不能なアイテムは
// ゼロ値（最古の時刻）に解決され、通知対象にならない。
type Item struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

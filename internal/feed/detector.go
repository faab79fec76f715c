package feed

import (
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedbell/internal/model"
)

// ResolveTimestamp はアイテムの公開日時を解決する。
// PublishedParsedを優先し、なければUpdatedParsedを使用する。
// どちらも欠落・解析不能な場合はゼロ値（最古の時刻）を返す。
// ゼロ値のアイテムは通知済み扱いとなり決して通知されない。
// 不正なフィードで通知が溢れるのを防ぐための保守的な方針である。
func ResolveTimestamp(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// Detect は高水位マークとフェッチ済みドキュメントのアイテム列から、
// 「新規」アイテムの集合と新しい高水位マークを計算する純粋関数。
// I/Oは行わない。
//
//   - 新規 = 解決済み公開日時が watermark より厳密に後のアイテム
//   - 戻り値のアイテムは公開日時の昇順（最も古いものから通知するため）
//   - newWatermark = max(新規アイテムの解決済み公開日時, watermark)
//     （高水位マークは後退せず、新規アイテムがあった場合のみ進む）
func Detect(watermark time.Time, items []*gofeed.Item) ([]model.Item, time.Time) {
	var fresh []model.Item

	for _, item := range items {
		if item == nil {
			continue
		}
		ts := ResolveTimestamp(item)
		if ts.After(watermark) {
			fresh = append(fresh, model.Item{
				Title:       item.Title,
				Link:        item.Link,
				PublishedAt: ts,
			})
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.Before(fresh[j].PublishedAt)
	})

	newWatermark := watermark
	if len(fresh) > 0 {
		// 昇順ソート済みのため末尾が最大
		newWatermark = fresh[len(fresh)-1].PublishedAt
	}

	return fresh, newWatermark
}

// Package model はドメインモデルを定義する。
package model

import "time"

// Chat はボットに登録されたチャット（会話）を表す。
// IDはトランスポート層が割り当てる外部IDであり、ストアは生成しない。
// 同一IDのChatは高々1つしか存在しない。
type Chat struct {
	ID        int64
	CreatedAt time.Time
}

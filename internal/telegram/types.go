package telegram

// Update はBot APIのgetUpdatesが返す1イベントを表す。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message は受信したチャットメッセージを表す。
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Chat はメッセージの発生元チャットを表す。
// IDは登録状態のキーとしてそのままChat.IDになる。
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // private, group, supergroup, channel
}

// IsGroup はグループ/スーパーグループチャットかを返す。
// グループでは未認識のメッセージに返信しない。
func (c Chat) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

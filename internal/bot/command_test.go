package bot

import "testing"

// TestParseCommand_Keywords はキーワードの認識と別名を検証する。
func TestParseCommand_Keywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{"help", "help", Command{Kind: KindHelp}},
		{"先頭スラッシュ", "/help", Command{Kind: KindHelp}},
		{"大文字小文字を区別しない", "HeLp", Command{Kind: KindHelp}},
		{"botname付き", "/help@feedbell_bot", Command{Kind: KindHelp}},
		{"register", "register", Command{Kind: KindRegister}},
		{"start別名", "/start", Command{Kind: KindRegister}},
		{"list", "/list", Command{Kind: KindList}},
		{"deleteaccount", "deleteaccount", Command{Kind: KindDeleteAccount}},
		{"delete別名", "/delete", Command{Kind: KindDeleteAccount}},
		{"未認識テキスト", "hello there", Command{Kind: KindUnknown}},
		{"空文字列", "", Command{Kind: KindUnknown}},
		{"空白のみ", "   ", Command{Kind: KindUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.text)
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

// TestParseCommand_Subscribe はsubscribeの引数解釈を検証する。
func TestParseCommand_Subscribe(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{"空白区切り", "subscribe https://example.com/feed.xml",
			Command{Kind: KindSubscribe, URL: "https://example.com/feed.xml"}},
		{"コロン区切り", "subscribe:https://example.com/feed.xml",
			Command{Kind: KindSubscribe, URL: "https://example.com/feed.xml"}},
		{"コロンと空白", "subscribe: https://example.com/feed.xml",
			Command{Kind: KindSubscribe, URL: "https://example.com/feed.xml"}},
		{"スラッシュとbotname", "/subscribe@feedbell_bot https://example.com/rss",
			Command{Kind: KindSubscribe, URL: "https://example.com/rss"}},
		{"引数なしは未認識", "subscribe", Command{Kind: KindUnknown}},
		{"余分な引数は無視", "subscribe https://example.com/a https://example.com/b",
			Command{Kind: KindSubscribe, URL: "https://example.com/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.text)
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

// TestParseCommand_Unsubscribe はunsubscribeの整数引数解釈を検証する。
func TestParseCommand_Unsubscribe(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{"空白区切り", "unsubscribe 42", Command{Kind: KindUnsubscribe, FeedID: 42}},
		{"コロン区切り", "unsubscribe:7", Command{Kind: KindUnsubscribe, FeedID: 7}},
		{"整数でない引数は未認識", "unsubscribe abc", Command{Kind: KindUnknown}},
		{"引数なしは未認識", "unsubscribe", Command{Kind: KindUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCommand(tt.text)
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

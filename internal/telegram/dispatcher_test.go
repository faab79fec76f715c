package telegram

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockUpdatesSource はUpdatesSourceのテスト用モック。
type mockUpdatesSource struct {
	mu      sync.Mutex
	offsets []int64
	batches [][]Update
	err     error
}

func (m *mockUpdatesSource) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.offsets = append(m.offsets, offset)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.batches) == 0 {
		// バッチを使い切ったらロングポーリングのタイムアウトを模擬する
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil, nil
		}
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch, nil
}

// mockMessageHandler はMessageHandlerのテスト用モック。
type mockMessageHandler struct {
	mu       sync.Mutex
	messages []Message
}

func (m *mockMessageHandler) HandleMessage(ctx context.Context, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockMessageHandler) snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

func TestDispatcher_Run_DispatchesMessages(t *testing.T) {
	source := &mockUpdatesSource{
		batches: [][]Update{
			{
				{UpdateID: 10, Message: &Message{MessageID: 1, Chat: Chat{ID: 42, Type: "private"}, Text: "/help"}},
				{UpdateID: 11, Message: nil}, // メッセージ以外のupdateはスキップされる
				{UpdateID: 12, Message: &Message{MessageID: 2, Chat: Chat{ID: 43, Type: "private"}, Text: "/list"}},
			},
		},
	}
	handler := &mockMessageHandler{}

	var buf bytes.Buffer
	d := NewDispatcher(source, handler, newTestLogger(&buf))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	<-done

	msgs := handler.snapshot()
	if len(msgs) != 2 {
		t.Fatalf("ハンドラに渡されたメッセージ数 = %d, want 2", len(msgs))
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.offsets) < 2 {
		t.Fatalf("GetUpdates呼び出し回数 = %d, want >= 2", len(source.offsets))
	}
	if source.offsets[0] != 0 {
		t.Errorf("初回offset = %d, want 0", source.offsets[0])
	}
	// 最大update_id+1まで進んでいること
	if source.offsets[1] != 13 {
		t.Errorf("2回目offset = %d, want 13", source.offsets[1])
	}
}

func TestDispatcher_Run_RetriesAfterError(t *testing.T) {
	source := &mockUpdatesSource{err: errors.New("接続エラー")}
	handler := &mockMessageHandler{}

	var buf bytes.Buffer
	d := NewDispatcher(source, handler, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	// 最初の失敗後、バックオフ中にキャンセルしても停止すること
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にRunが停止しなかった")
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.offsets) == 0 {
		t.Error("GetUpdatesが1回も呼ばれていない")
	}
}

func TestDispatcher_Run_StopsOnCancel(t *testing.T) {
	source := &mockUpdatesSource{}
	handler := &mockMessageHandler{}

	var buf bytes.Buffer
	d := NewDispatcher(source, handler, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル済みコンテキストでRunが即座に停止しなかった")
	}
}

package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/feedbell/internal/model"
)

// mockSweeperService はFeedSweeperServiceのテスト用モック。
type mockSweeperService struct {
	mu       sync.Mutex
	swept    []int64
	errFeeds map[int64]error
	block    chan struct{} // 非nilの場合、クローズされるまでブロックする
}

func (m *mockSweeperService) SweepFeed(ctx context.Context, f *model.Feed) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept = append(m.swept, f.ID)
	if err, ok := m.errFeeds[f.ID]; ok {
		return err
	}
	return nil
}

func (m *mockSweeperService) sweptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.swept)
}

func feedList(ids ...int64) []*model.Feed {
	feeds := make([]*model.Feed, 0, len(ids))
	for _, id := range ids {
		feeds = append(feeds, &model.Feed{ID: id, ChatID: id * 100, URL: "https://example.com/feed"})
	}
	return feeds
}

// TestRunOnce_SweepsAllFeeds は全フィードがスイープされることを検証する。
func TestRunOnce_SweepsAllFeeds(t *testing.T) {
	repo := &mockFeedRepo{feeds: feedList(1, 2, 3)}
	sweeper := &mockSweeperService{}
	m := &recordingMetrics{}

	s := NewScheduler(repo, sweeper, m, testLogger(), 2)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返した: %v", err)
	}

	if sweeper.sweptCount() != 3 {
		t.Errorf("スイープされたフィード数 = %d, want 3", sweeper.sweptCount())
	}
	if m.sweeps != 1 {
		t.Errorf("sweeps = %d, want 1", m.sweeps)
	}
}

// TestRunOnce_FeedFailureIsolated は1フィードの失敗が他フィードの処理を
// 止めないことを検証する。
func TestRunOnce_FeedFailureIsolated(t *testing.T) {
	repo := &mockFeedRepo{feeds: feedList(1, 2, 3)}
	sweeper := &mockSweeperService{
		errFeeds: map[int64]error{2: errors.New("フェッチ失敗")},
	}

	s := NewScheduler(repo, sweeper, &recordingMetrics{}, testLogger(), 1)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("1フィードの失敗でRunOnceがエラーを返した: %v", err)
	}

	if sweeper.sweptCount() != 3 {
		t.Errorf("スイープされたフィード数 = %d, want 3", sweeper.sweptCount())
	}
}

// TestRunOnce_ListAllError はフィード一覧の取得失敗がエラーとして返ることを検証する。
func TestRunOnce_ListAllError(t *testing.T) {
	repo := &mockFeedRepo{listAllErr: errors.New("接続エラー")}

	s := NewScheduler(repo, &mockSweeperService{}, &recordingMetrics{}, testLogger(), 1)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("ListAll失敗時はエラーを返すべき")
	}
}

// TestRunOnce_NotReentrant はスイープ実行中のティックが落とされることを検証する。
func TestRunOnce_NotReentrant(t *testing.T) {
	repo := &mockFeedRepo{feeds: feedList(1)}
	block := make(chan struct{})
	sweeper := &mockSweeperService{block: block}
	m := &recordingMetrics{}

	s := NewScheduler(repo, sweeper, m, testLogger(), 1)

	var firstDone atomic.Bool
	go func() {
		s.RunOnce(context.Background())
		firstDone.Store(true)
	}()

	// 1回目がスイープ中になるまで待つ
	time.Sleep(50 * time.Millisecond)

	// 2回目は即座に戻り、スイープは実行されない
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("再入したRunOnceがエラーを返した: %v", err)
	}
	if firstDone.Load() {
		t.Fatal("1回目のスイープが想定より早く完了した")
	}

	m.mu.Lock()
	skipped := m.sweepsSkipped
	m.mu.Unlock()
	if skipped != 1 {
		t.Errorf("sweepsSkipped = %d, want 1", skipped)
	}

	close(block)

	// 1回目の完了を待つ
	deadline := time.Now().Add(time.Second)
	for !firstDone.Load() {
		if time.Now().After(deadline) {
			t.Fatal("1回目のスイープが完了しなかった")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if sweeper.sweptCount() != 1 {
		t.Errorf("スイープされたフィード数 = %d, want 1", sweeper.sweptCount())
	}
}

// TestRunOnce_StopsBetweenFeedsOnCancel はキャンセル後に新しいフィードを
// 開始しないことを検証する。
func TestRunOnce_StopsBetweenFeedsOnCancel(t *testing.T) {
	repo := &mockFeedRepo{feeds: feedList(1, 2, 3, 4, 5)}
	sweeper := &mockSweeperService{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(repo, sweeper, &recordingMetrics{}, testLogger(), 1)
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce がエラーを返した: %v", err)
	}

	if sweeper.sweptCount() != 0 {
		t.Errorf("キャンセル済みなのに%dフィードがスイープされた", sweeper.sweptCount())
	}
}

// TestStart_StopsOnCancel はStartがコンテキストキャンセルで停止することを検証する。
func TestStart_StopsOnCancel(t *testing.T) {
	repo := &mockFeedRepo{feeds: feedList(1)}
	sweeper := &mockSweeperService{}

	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(repo, sweeper, &recordingMetrics{}, testLogger(), 1)

	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回が走るのを待ってからキャンセル
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にStartが停止しなかった")
	}

	if sweeper.sweptCount() != 1 {
		t.Errorf("起動直後のスイープ数 = %d, want 1", sweeper.sweptCount())
	}
}

// TestNewScheduler_DefaultConcurrency はmaxConcurrencyが0以下のとき
// デフォルト値が使われることを検証する。
func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	s := NewScheduler(&mockFeedRepo{}, &mockSweeperService{}, &recordingMetrics{}, testLogger(), 0)
	if s.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want 10", s.maxConcurrency)
	}
}

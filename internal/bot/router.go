package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedbell/internal/feed"
	"github.com/hitoshi/feedbell/internal/metrics"
	"github.com/hitoshi/feedbell/internal/model"
	"github.com/hitoshi/feedbell/internal/repository"
	"github.com/hitoshi/feedbell/internal/telegram"
)

// MessageSender はコマンドへの返信を配信するインターフェース。
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// FeedFetcher はsubscribe時のフィード取得・デコードのインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*gofeed.Feed, error)
}

// 状態別のヘルプテキスト。
const (
	helpUnregistered = "These commands are supported:\n" +
		"/help - display this text.\n" +
		"/register - register this chat with the bot. (alias: /start)"

	helpRegistered = "These commands are supported:\n" +
		"/help - display this text.\n" +
		"/subscribe <url> - subscribe to an RSS feed.\n" +
		"/list - list your subscribed feeds.\n" +
		"/unsubscribe <feedId> - unsubscribe a feed.\n" +
		"/deleteaccount - delete your account. (alias: /delete)"

	registerPrompt = "You are not registered yet. Send /register to get started."
)

// Router はチャットの登録状態でコマンドを振り分ける二状態ルーター。
// 未登録チャットはhelpとregisterのみ受け付ける。
// telegram.MessageHandlerを実装し、受信メッセージごとに呼ばれる。
type Router struct {
	chats              repository.ChatRepository
	feeds              repository.FeedRepository
	fetcher            FeedFetcher
	sender             MessageSender
	metrics            metrics.MetricsCollector
	logger             *slog.Logger
	promptUnregistered bool
}

var _ telegram.MessageHandler = (*Router)(nil)

// NewRouter はRouterの新しいインスタンスを生成する。
// promptUnregisteredがtrueの場合、未登録の1対1チャットからの未認識メッセージに
// 登録を促す返信をする。falseの場合は無応答。
func NewRouter(
	chats repository.ChatRepository,
	feeds repository.FeedRepository,
	fetcher FeedFetcher,
	sender MessageSender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	promptUnregistered bool,
) *Router {
	return &Router{
		chats:              chats,
		feeds:              feeds,
		fetcher:            fetcher,
		sender:             sender,
		metrics:            collector,
		logger:             logger,
		promptUnregistered: promptUnregistered,
	}
}

// HandleMessage は受信メッセージ1件を処理する。
// コマンド処理中のエラーはすべて返信またはログで処理され、プロセスを止めない。
func (r *Router) HandleMessage(ctx context.Context, msg telegram.Message) {
	cmd := ParseCommand(msg.Text)
	r.metrics.RecordCommand(string(cmd.Kind))

	registered, err := r.chats.Exists(ctx, msg.Chat.ID)
	if err != nil {
		r.logger.Error("チャット登録状態の確認に失敗しました",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", err.Error()),
		)
		r.reply(ctx, msg.Chat.ID, formatError(model.NewStorageError(err.Error())))
		return
	}

	if registered {
		r.handleRegistered(ctx, msg, cmd)
	} else {
		r.handleUnregistered(ctx, msg, cmd)
	}
}

// handleUnregistered は未登録チャットのコマンドを処理する。
// help/register以外はグループでは沈黙し、1対1では登録を促す（設定による）。
func (r *Router) handleUnregistered(ctx context.Context, msg telegram.Message, cmd Command) {
	switch cmd.Kind {
	case KindHelp:
		r.reply(ctx, msg.Chat.ID, helpUnregistered)

	case KindRegister:
		created, err := r.chats.Create(ctx, msg.Chat.ID)
		if err != nil {
			r.logger.Warn("チャット登録に失敗しました",
				slog.Int64("chat_id", msg.Chat.ID),
				slog.String("error", err.Error()),
			)
			r.reply(ctx, msg.Chat.ID, fmt.Sprintf("[%s] Error in registering new chat", err))
			return
		}
		r.logger.Info("チャットを登録しました", slog.Int64("chat_id", msg.Chat.ID))
		r.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"[%s] Registering your chat with the bot...Done.",
			created.CreatedAt.Format(time.RFC3339),
		))

	default:
		// グループチャットでは未認識メッセージに反応しない
		if msg.Chat.IsGroup() {
			return
		}
		if r.promptUnregistered {
			r.reply(ctx, msg.Chat.ID, registerPrompt)
		}
	}
}

// handleRegistered は登録済みチャットのコマンドを処理する。
func (r *Router) handleRegistered(ctx context.Context, msg telegram.Message, cmd Command) {
	switch cmd.Kind {
	case KindHelp, KindRegister:
		// 登録済みチャットのregisterは重複になるだけなのでヘルプを返す
		r.reply(ctx, msg.Chat.ID, helpRegistered)

	case KindSubscribe:
		r.handleSubscribe(ctx, msg.Chat.ID, cmd.URL)

	case KindList:
		r.handleList(ctx, msg.Chat.ID)

	case KindUnsubscribe:
		deleted, err := r.feeds.Delete(ctx, msg.Chat.ID, cmd.FeedID)
		if err != nil {
			r.logger.Error("フィード削除に失敗しました",
				slog.Int64("chat_id", msg.Chat.ID),
				slog.Int64("feed_id", cmd.FeedID),
				slog.String("error", err.Error()),
			)
			r.reply(ctx, msg.Chat.ID, formatError(err))
			return
		}
		// 他チャット所有・存在しないIDは削除0件として返す（エラーではない）
		r.reply(ctx, msg.Chat.ID, fmt.Sprintf("Deleted %d feeds.", deleted))

	case KindDeleteAccount:
		if _, err := r.chats.Delete(ctx, msg.Chat.ID); err != nil {
			r.logger.Error("チャット削除に失敗しました",
				slog.Int64("chat_id", msg.Chat.ID),
				slog.String("error", err.Error()),
			)
			r.reply(ctx, msg.Chat.ID, formatError(err))
			return
		}
		r.logger.Info("チャットを削除しました", slog.Int64("chat_id", msg.Chat.ID))
		r.reply(ctx, msg.Chat.ID, "Your account has been deleted.")

	default:
		if msg.Chat.IsGroup() {
			return
		}
		r.reply(ctx, msg.Chat.ID, helpRegistered)
	}
}

// handleSubscribe はフィードを取得・検証してから購読を作成する。
func (r *Router) handleSubscribe(ctx context.Context, chatID int64, url string) {
	parsed, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		r.reply(ctx, chatID, formatError(err))
		return
	}
	if err := feed.Validate(parsed); err != nil {
		r.reply(ctx, chatID, formatError(err))
		return
	}

	link := parsed.Link
	if link == "" {
		link = url
	}

	created, err := r.feeds.Create(ctx, chatID, url, parsed.Title)
	if err != nil {
		r.logger.Error("フィード購読の作成に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		r.reply(ctx, chatID, formatError(err))
		return
	}

	r.logger.Info("フィードを購読しました",
		slog.Int64("chat_id", chatID),
		slog.Int64("feed_id", created.ID),
		slog.String("url", url),
	)
	r.reply(ctx, chatID, fmt.Sprintf("Feed is valid:\n%s\n%s", parsed.Title, link))
}

// handleList は購読一覧を「id - title」の行で返信する。
func (r *Router) handleList(ctx context.Context, chatID int64) {
	feeds, err := r.feeds.ListByChatID(ctx, chatID)
	if err != nil {
		r.logger.Error("フィード一覧の取得に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		r.reply(ctx, chatID, formatError(err))
		return
	}

	if len(feeds) == 0 {
		r.reply(ctx, chatID, "You have no subscribed feeds.")
		return
	}

	var b strings.Builder
	b.WriteString("Currently registered feeds:")
	for _, f := range feeds {
		fmt.Fprintf(&b, "\n%d - %s", f.ID, f.Title)
	}
	r.reply(ctx, chatID, b.String())
}

// reply は返信を1通配信する。配信失敗はログのみで処理を続行する。
func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.sender.SendMessage(ctx, chatID, text); err != nil {
		r.logger.Error("返信の配信に失敗しました",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// formatError はエラーをユーザー向けの返信テキストに整形する。
// BotErrorの場合はメッセージと対処方法を含める。
func formatError(err error) string {
	var be *model.BotError
	if errors.As(err, &be) {
		if be.Action != "" {
			return fmt.Sprintf("Error: %s\n%s", be.Message, be.Action)
		}
		return fmt.Sprintf("Error: %s", be.Message)
	}
	return fmt.Sprintf("Error: %s", err)
}

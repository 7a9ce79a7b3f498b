package bot

import (
	"context"
	"docdigest/internal/domain"
	"docdigest/internal/ratelimiter"
	"docdigest/internal/refs"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	// Telegram allows about one message per second in a single chat.
	chatMessagesPerSecond = 1
	chatMessagesBurst     = 3
)

const helpText = `📄 *docdigest*

Send one or more document links \(PDF, HTML, plain text or feeds\) and get a summary of each one plus a combined summary\.

/summary shows the latest batch\.`

// Runner runs one batch.
type Runner interface {
	Run(ctx context.Context, refs []domain.DocumentRef, deadline time.Duration) (*domain.AggregateResult, error)
}

// Latest exposes the most recently completed batch.
type Latest interface {
	Latest() (*domain.AggregateResult, bool)
}

// Sender is the part of the Telegram API the bot uses.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
}

// Bot is a Telegram front end for the pipeline: messages with links become
// batches and the report is sent back to the chat.
type Bot struct {
	runner      Runner
	latest      Latest
	rateLimiter *ratelimiter.RateLimiter
	log         *slog.Logger
}

func New(runner Runner, latest Latest, log *slog.Logger) *Bot {
	return &Bot{
		runner:      runner,
		latest:      latest,
		rateLimiter: ratelimiter.New(chatMessagesPerSecond, chatMessagesBurst, log),
		log:         log,
	}
}

// Start long-polls Telegram until ctx is done.
func Start(ctx context.Context, token string, b *Bot) error {
	api, err := tgbot.New(strings.TrimSpace(token), tgbot.WithDefaultHandler(b.Handler()))
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}

	api.Start(ctx)

	return nil
}

func (b *Bot) Handler() tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		b.handleUpdate(ctx, api, update)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, api Sender, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	message := update.Message

	if err := b.handleMessage(ctx, api, message); err != nil {
		b.log.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"chatID", message.Chat.ID,
			"chatType", message.Chat.Type,
			"messageID", message.ID)
	}
}

func (b *Bot) handleMessage(ctx context.Context, api Sender, message *models.Message) error {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		return b.sendMessage(ctx, api, chatID, helpText)
	case strings.HasPrefix(text, "/summary"):
		return b.handleSummaryCommand(ctx, api, chatID)
	default:
		return b.handleDocuments(ctx, api, chatID, text)
	}
}

func (b *Bot) handleSummaryCommand(ctx context.Context, api Sender, chatID int64) error {
	result, ok := b.latest.Latest()
	if !ok {
		return b.sendMessage(ctx, api, chatID, "✖️ No summary available\\.")
	}

	return b.sendMessages(ctx, api, chatID, formatResultAsMessages(result))
}

func (b *Bot) handleDocuments(ctx context.Context, api Sender, chatID int64, text string) error {
	documents, err := refs.FromText(text)
	if err != nil {
		return fmt.Errorf("find document urls: %w", err)
	}

	if len(documents) == 0 {
		return b.sendMessage(ctx, api, chatID, "✖️ Document URLs are not found\\. Send /help for usage\\.")
	}

	var result *domain.AggregateResult
	err = b.withSpinner(ctx, api, chatID, func() error {
		var runErr error
		result, runErr = b.runner.Run(ctx, documents, 0)
		return runErr
	})
	if err != nil {
		var errs []error
		errs = append(errs, fmt.Errorf("run batch: %w", err))

		if sendErr := b.sendMessage(ctx, api, chatID, formatRunError(err)); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	return b.sendMessages(ctx, api, chatID, formatResultAsMessages(result))
}

func (b *Bot) sendMessages(ctx context.Context, api Sender, chatID int64, messages []string) error {
	var errs []error

	for _, message := range messages {
		if err := b.sendMessage(ctx, api, chatID, message); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) sendMessage(ctx context.Context, api Sender, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx, strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	_, err := api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// Package bot is the request orchestrator: it receives Telegram updates,
// runs each one through the activity governor and session lifecycle, makes a
// single model call, and relays the reply.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yetazero/GeminiTelegramBot/internal/clock"
	"github.com/yetazero/GeminiTelegramBot/internal/config"
	"github.com/yetazero/GeminiTelegramBot/internal/gemini"
	"github.com/yetazero/GeminiTelegramBot/internal/guard"
	"github.com/yetazero/GeminiTelegramBot/internal/history"
	"github.com/yetazero/GeminiTelegramBot/internal/session"
	"github.com/yetazero/GeminiTelegramBot/internal/tier"
)

const (
	maxMessageLength = 4096
	longPollTimeout  = 30
)

// Bot wires the Telegram transport to the governor, stores, and model
// backend.
type Bot struct {
	logger    *slog.Logger
	api       *tgbotapi.BotAPI
	clock     clock.Clock
	ledger    *guard.Ledger
	sessions  *session.Store
	histories *history.Store
	tiers     *tier.Registry
	model     *gemini.Client
	cfg       config.Config
}

// New creates the Bot and its Telegram API client.
func New(log *slog.Logger, cfg config.Config, clk clock.Clock, ledger *guard.Ledger, sessions *session.Store, histories *history.Store, tiers *tier.Registry, model *gemini.Client) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		logger:    log.With(slog.String("service", "bot")),
		api:       api,
		clock:     clk,
		ledger:    ledger,
		sessions:  sessions,
		histories: histories,
		tiers:     tiers,
		model:     model,
		cfg:       cfg,
	}, nil
}

// Run long-polls for updates until ctx is canceled. Each update is handled
// on its own goroutine so a slow model call or disk write for one user never
// stalls delivery for others.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = longPollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("bot started", slog.String("username", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit cleanly.
			for range updates {
			}
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return
			}
			if update.Message == nil {
				continue
			}
			go b.handleUpdate(ctx, update.Message)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.Voice != nil:
		b.handleVoice(ctx, msg)
	default:
		b.logger.Info("unhandled message type", slog.Int64("user_id", msg.From.ID))
		b.reply(msg, "Sorry, I can only process text messages, photos, and voice messages.")
	}
}

// tierFor resolves the retention tier for a user at dispatch time, so admin
// tier changes apply to the very next message.
func (b *Bot) tierFor(userID int64) history.Tier {
	if b.tiers.IsExtended(userID) {
		return history.TierExtended
	}
	return history.TierStandard
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("send reply failed",
			slog.Int64("user_id", msg.From.ID),
			slog.Any("error", err),
		)
	}
}

// sendLong delivers text in chunks under the Telegram message limit, with a
// short pause between parts to stay under the send rate.
func (b *Bot) sendLong(msg *tgbotapi.Message, text string) {
	for i, part := range splitMessage(text) {
		if part == "" {
			continue
		}
		if i > 0 {
			time.Sleep(500 * time.Millisecond)
		}
		b.reply(msg, part)
	}
}

func (b *Bot) sendChatAction(chatID int64, action string) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		b.logger.Warn("send chat action failed", slog.Any("error", err))
	}
}

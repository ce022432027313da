package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yetazero/GeminiTelegramBot/internal/gemini"
	"github.com/yetazero/GeminiTelegramBot/internal/guard"
	"github.com/yetazero/GeminiTelegramBot/internal/history"
	"github.com/yetazero/GeminiTelegramBot/internal/session"
	"github.com/yetazero/GeminiTelegramBot/internal/textutil"
)

// admit runs the activity governor for one inbound unit and, when the unit
// is rejected, sends the user-facing notice. It returns true when processing
// may continue. Admitted units also trigger the lazy session sweep.
func (b *Bot) admit(msg *tgbotapi.Message, contentKey string) bool {
	now := b.clock.Now()
	decision := b.ledger.Evaluate(msg.From.ID, contentKey, now)
	if !decision.Allowed {
		switch decision.Reason {
		case guard.ReasonCoolingDown:
			seconds := int(decision.RetryAfter.Seconds())
			b.reply(msg, fmt.Sprintf("Please wait %d seconds before sending a new request.", seconds))
		case guard.ReasonDuplicateContent:
			b.reply(msg, "I have already received this message. Please send something new.")
		case guard.ReasonRateExceeded:
			seconds := int(decision.RetryAfter.Seconds())
			b.reply(msg, fmt.Sprintf("You are sending too many messages. Please wait %d seconds.", seconds))
		}
		return false
	}
	b.sessions.Sweep(now)
	return true
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.logger.Info("text message received", slog.Int64("user_id", userID))

	if !b.admit(msg, msg.Text) {
		return
	}
	b.sendChatAction(msg.Chat.ID, tgbotapi.ChatTyping)

	b.runExchange(ctx, msg, session.CapabilityText, b.cfg.Models.Text,
		[]gemini.Part{gemini.TextPart(msg.Text)},
		msg.Text,
	)
}

// runExchange performs the shared tail of every admitted unit: acquire a
// session, load history for the user's tier, call the model, persist the
// exchange, touch the session, and deliver the cleaned reply. On any backend
// failure the conversation state is left unmodified for this turn.
func (b *Bot) runExchange(ctx context.Context, msg *tgbotapi.Message, capability session.Capability, model string, parts []gemini.Part, userTurnText string) {
	userID := msg.From.ID
	userTier := b.tierFor(userID)

	b.sessions.Acquire(userID, capability, b.clock.Now())
	turns := b.histories.Load(userID, userTier)
	b.logger.Info("loaded chat history",
		slog.Int64("user_id", userID),
		slog.String("tier", string(userTier)),
		slog.Int("turns", len(turns)),
	)

	replyText, err := b.model.Generate(ctx, model, turnsToContents(turns), parts)
	if err != nil {
		if errors.Is(err, gemini.ErrBlocked) {
			b.logger.Warn("blocked content", slog.Int64("user_id", userID), slog.Any("error", err))
			b.reply(msg, "Sorry, your request contains content that was blocked due to safety settings.")
			return
		}
		b.logger.Error("model call failed", slog.Int64("user_id", userID), slog.Any("error", err))
		b.reply(msg, fmt.Sprintf("An error occurred while processing your request: %v", err))
		return
	}

	if _, err := b.histories.Append(userID, userTier,
		history.Turn{Role: history.RoleUser, Parts: []string{userTurnText}},
		history.Turn{Role: history.RoleModel, Parts: []string{replyText}},
	); err != nil {
		// The reply is still delivered; only durability suffered.
		b.logger.Error("persist history failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	b.sessions.Touch(userID, b.clock.Now())

	b.sendLong(msg, textutil.Clean(replyText))
}

// turnsToContents converts stored history turns into model request contents.
func turnsToContents(turns []history.Turn) []gemini.Content {
	contents := make([]gemini.Content, 0, len(turns))
	for _, turn := range turns {
		parts := make([]gemini.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, gemini.TextPart(p))
		}
		contents = append(contents, gemini.Content{Role: turn.Role, Parts: parts})
	}
	return contents
}

func splitMessage(text string) []string {
	parts := textutil.Split(text, maxMessageLength)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

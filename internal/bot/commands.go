package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yetazero/GeminiTelegramBot/internal/tier"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.logger.Info("user started the bot", slog.Int64("user_id", msg.From.ID))
		b.reply(msg, "Hi! I am a Gemini-based bot. Send me a message, photo, or voice message.")
	case "clear":
		b.handleClear(msg)
	case "history":
		b.handleHistoryControl(msg)
	default:
		b.reply(msg, "Sorry, I can only process text messages, photos, and voice messages.")
	}
}

// handleClear is the user-initiated reset: it drops the in-memory session
// and deletes the durable history for both tiers.
func (b *Bot) handleClear(msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.sessions.Release(userID)
	if err := b.histories.Reset(userID); err != nil {
		b.logger.Error("history reset failed", slog.Int64("user_id", userID), slog.Any("error", err))
		b.reply(msg, "An error occurred while clearing your history. Please try again.")
		return
	}
	b.logger.Info("all chat history cleared", slog.Int64("user_id", userID))
	b.reply(msg, "All chat history cleared for you. We can start a new conversation now.")
}

// handleHistoryControl is the admin surface for tier membership:
// /history <on|off> <user_id>.
func (b *Bot) handleHistoryControl(msg *tgbotapi.Message) {
	action, targetID, err := parseHistoryArgs(msg.CommandArguments())
	if err != nil {
		// Authorization is checked before usage hints are revealed.
		if msg.From.ID != b.cfg.AdminUserID {
			b.rejectUnauthorized(msg)
			return
		}
		b.reply(msg, err.Error())
		return
	}

	enable := action == "on"
	switch err := b.tiers.SetExtended(msg.From.ID, targetID, enable); {
	case errors.Is(err, tier.ErrUnauthorized):
		b.rejectUnauthorized(msg)
	case errors.Is(err, tier.ErrNotEnabled):
		b.reply(msg, fmt.Sprintf("Full history logging was not enabled for user %d.", targetID))
	case err != nil:
		b.logger.Error("tier change failed", slog.Int64("user_id", targetID), slog.Any("error", err))
		b.reply(msg, "An error occurred while updating the history setting.")
	case enable:
		b.reply(msg, fmt.Sprintf("Full history logging ENABLED for user %d.", targetID))
	default:
		b.reply(msg, fmt.Sprintf("Full history logging DISABLED for user %d.", targetID))
	}
}

func (b *Bot) rejectUnauthorized(msg *tgbotapi.Message) {
	b.logger.Warn("unauthorized /history command", slog.Int64("user_id", msg.From.ID))
	b.reply(msg, "You are not authorized to use this command.")
}

// parseHistoryArgs validates "<on|off> <user_id>" and rejects non-numeric
// identifiers.
func parseHistoryArgs(raw string) (action string, userID int64, err error) {
	args := strings.Fields(raw)
	if len(args) != 2 {
		return "", 0, errors.New("Usage: /history <on|off> <user_id>")
	}
	action = strings.ToLower(args[0])
	if action != "on" && action != "off" {
		return "", 0, errors.New("Usage: /history <on|off> <user_id>")
	}
	userID, convErr := strconv.ParseInt(args[1], 10, 64)
	if convErr != nil {
		return "", 0, errors.New("Invalid user ID. Please provide a numeric ID.")
	}
	return action, userID, nil
}

package bot

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yetazero/GeminiTelegramBot/internal/gemini"
	"github.com/yetazero/GeminiTelegramBot/internal/session"
)

const voiceTranscribePrompt = "Transcribe the following voice message, and then respond to its content."

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	caption := msg.Caption
	b.logger.Info("photo received", slog.Int64("user_id", userID))

	// The caption is the content key; caption-less photos key on the file
	// identifier so resends of the same image are still detected.
	photo := pickLargestPhoto(msg.Photo)
	contentKey := caption
	if contentKey == "" {
		contentKey = "photo__" + photo.FileID
	}
	if !b.admit(msg, contentKey) {
		return
	}

	b.reply(msg, "Received image, processing...")
	b.sendChatAction(msg.Chat.ID, tgbotapi.ChatUploadPhoto)

	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("photo download failed", slog.Int64("user_id", userID), slog.Any("error", err))
		b.reply(msg, fmt.Sprintf("An error occurred while processing your photo: %v", err))
		return
	}

	parts := []gemini.Part{gemini.MediaPart("image/jpeg", base64.StdEncoding.EncodeToString(data))}
	userTurnText := "User sent an image."
	if caption != "" {
		parts = append(parts, gemini.TextPart(caption))
		userTurnText = caption
	}
	b.runExchange(ctx, msg, session.CapabilityMultimodal, b.cfg.Models.VisionAudio, parts, userTurnText)
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	b.logger.Info("voice message received", slog.Int64("user_id", userID))

	if !b.admit(msg, "voice__"+msg.Voice.FileID) {
		return
	}

	b.reply(msg, "Received voice message, processing...")
	b.sendChatAction(msg.Chat.ID, tgbotapi.ChatUploadVoice)

	data, err := b.downloadFile(ctx, msg.Voice.FileID)
	if err != nil {
		b.logger.Error("voice download failed", slog.Int64("user_id", userID), slog.Any("error", err))
		b.reply(msg, fmt.Sprintf("An error occurred while processing your voice message: %v", err))
		return
	}

	parts := []gemini.Part{
		gemini.MediaPart("audio/ogg", base64.StdEncoding.EncodeToString(data)),
		gemini.TextPart(voiceTranscribePrompt),
	}
	userTurnText := "User sent a voice message. Context prompt: " + voiceTranscribePrompt
	b.runExchange(ctx, msg, session.CapabilityMultimodal, b.cfg.Models.VisionAudio, parts, userTurnText)
}

// downloadFile fetches a Telegram file's bytes by file ID.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download file status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func pickLargestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gacha-bot-backend/internal/common/logger"
	"gacha-bot-backend/internal/engine"
)

// Bot receives Telegram commands over long polling and forwards them to
// the engine.
type Bot struct {
	api       *tgbotapi.BotAPI
	engine    *engine.Engine
	groupOnly bool
}

func New(token string, debug, groupOnly bool, eng *engine.Engine) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = debug

	logger.Info().Str("username", api.Self.UserName).Msg("Bot authorized")

	return &Bot{api: api, engine: eng, groupOnly: groupOnly}, nil
}

// Username returns the bot account name used for invite deep links.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SetEngine wires the engine in after the bot username is known. Must
// be called before Run; the engine needs the username for invite links,
// so the two are constructed in that order.
func (b *Bot) SetEngine(eng *engine.Engine) {
	b.engine = eng
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false}); err != nil {
		logger.Warn().Err(err).Msg("Failed to delete webhook")
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping update loop")
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}

	req, ok := requestFromMessage(msg)
	if !ok {
		return
	}

	if b.groupOnly && req.Action == engine.ActionGacha && msg.Chat.IsPrivate() {
		b.reply(msg.Chat.ID, "⚠️ Gacha pulls only work in the group chat.")
		return
	}

	logger.Debug().
		Str("action", req.Action).
		Int64("user_id", req.Actor).
		Msg("Command received")

	out := b.engine.Execute(ctx, req)

	if req.Action == engine.ActionBackup && out.Status == engine.StatusAllowed {
		b.sendBackup(msg.Chat.ID, out)
		return
	}

	b.reply(msg.Chat.ID, renderOutcome(req, out))
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) sendBackup(chatID int64, out engine.Outcome) {
	res := out.Payload.(engine.BackupResult)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("backup_%s.json", res.ID),
		Bytes: res.Data,
	})
	doc.Caption = fmt.Sprintf("📦 State backup %s", res.ID)
	if _, err := b.api.Send(doc); err != nil {
		logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send backup file")
	}
}

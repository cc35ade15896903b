package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/service"
)

// Bot is the Telegram transport. It pulls updates by long polling and
// hands each text message to the dispatch service, one reply per
// inbound message.
type Bot struct {
	api     *tgbotapi.BotAPI
	service *service.Service
	logger  *zap.Logger
}

func NewBot(token string, svc *service.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create bot")
	}

	return &Bot{api: api, service: svc, logger: logger}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID

	if update.Message.IsCommand() {
		b.handleCommand(ctx, chatID, update.Message)
		return
	}

	// Interpretation takes a while; acknowledge first.
	b.sendPlain(chatID, "⏳ Думаю над запросом...")
	b.sendMessage(chatID, b.service.HandleText(ctx, update.Message.Text))
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.sendMessage(chatID, b.service.StartMessage())
	case "version":
		b.sendMessage(chatID, b.service.VersionMessage())
	case "offers":
		b.sendMessage(chatID, b.service.HandleRecent(ctx, parseLimit(msg.CommandArguments())))
	case "offer":
		b.sendMessage(chatID, b.service.HandleByID(ctx, msg.CommandArguments()))
	default:
		b.sendPlain(chatID, "Неизвестная команда. /help — список команд.")
	}
}

// parseLimit reads an optional count argument; anything unusable falls
// back to the default.
func parseLimit(args string) int {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0
	}
	limit, err := strconv.Atoi(strings.Fields(args)[0])
	if err != nil || limit <= 0 {
		return 0
	}
	return limit
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("markdown send failed, retrying as plain text", zap.Error(err))
		b.sendPlain(chatID, text)
	}
}

// sendPlain sends without a parse mode so that broken markup degrades
// to plain text instead of a rendering error.
func (b *Bot) sendPlain(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send telegram message", zap.Error(err))
	}
}

package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// messageSender - часть *bot.Bot, которой пользуется диспетчер
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramDispatcher доставляет уведомления через Telegram бота.
// Числовой адрес - это chat id; остальные адреса уходят в чат по умолчанию
// с указанием получателя.
type TelegramDispatcher struct {
	sender        messageSender
	defaultChatID int64
	logger        *zap.Logger
}

// NewTelegramDispatcher создаёт бота без запуска long polling: он только отправляет сообщения
func NewTelegramDispatcher(token string, defaultChatID int64, logger *zap.Logger) (*TelegramDispatcher, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramDispatcher(b, defaultChatID, logger), nil
}

func newTelegramDispatcher(sender messageSender, defaultChatID int64, logger *zap.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{
		sender:        sender,
		defaultChatID: defaultChatID,
		logger:        logger,
	}
}

// Send никогда не возвращает ошибку вызывающему: сбой только логируется
func (d *TelegramDispatcher) Send(ctx context.Context, to, subject, body string) bool {
	chatID, text, ok := d.route(to, subject, body)
	if !ok {
		d.logger.Warn("Notification dropped: no chat for recipient", zap.String("to", to))
		return false
	}

	_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		d.logger.Error("Failed to send notification",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return false
	}

	return true
}

func (d *TelegramDispatcher) route(to, subject, body string) (int64, string, bool) {
	text := fmt.Sprintf("%s\n\n%s", subject, body)

	if chatID, err := strconv.ParseInt(strings.TrimSpace(to), 10, 64); err == nil {
		return chatID, text, true
	}
	if d.defaultChatID == 0 {
		return 0, "", false
	}
	return d.defaultChatID, fmt.Sprintf("📨 To: %s\n%s", to, text), true
}

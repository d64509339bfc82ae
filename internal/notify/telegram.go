package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mentor_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть API *bot.Bot, нужная для отправки уведомлений
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram отправляет события бронирований в чат операторов
type Telegram struct {
	sender MessageSender
	chatID int64
	loc    *time.Location
	logger *zap.Logger
}

// NewTelegram создаёт нотификатор. loc — пояс, в котором показывается время (UTC, если nil).
func NewTelegram(sender MessageSender, chatID int64, loc *time.Location, logger *zap.Logger) *Telegram {
	if loc == nil {
		loc = time.UTC
	}
	return &Telegram{
		sender: sender,
		chatID: chatID,
		loc:    loc,
		logger: logger,
	}
}

// NewTelegramBot создаёт клиента Bot API без обработчиков обновлений: бот только пишет
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func (t *Telegram) Publish(ctx context.Context, event Event) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      FormatEvent(event, t.loc),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.logger.Debug("Telegram notification sent",
		zap.String("event", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()),
	)
	return nil
}

// FormatEvent текст уведомления для Telegram (HTML)
func FormatEvent(event Event, loc *time.Location) string {
	var sb strings.Builder

	switch event.Type {
	case EventBookingRequested:
		sb.WriteString("🕐 <b>Новое бронирование</b>, ожидает оплаты\n")
	case EventBookingConfirmed:
		sb.WriteString("✅ <b>Бронирование подтверждено</b>\n")
	case EventBookingCancelled:
		sb.WriteString("❌ <b>Бронирование отменено</b>\n")
	default:
		sb.WriteString(fmt.Sprintf("ℹ️ <b>%s</b>\n", escapeHTML(string(event.Type))))
	}

	start := event.Start.In(loc)
	end := event.End.In(loc)
	minutes := int(event.End.Sub(event.Start) / time.Minute)

	sb.WriteString(fmt.Sprintf("\n👤 Ментор: <code>%s</code>", escapeHTML(event.MentorID)))
	sb.WriteString(fmt.Sprintf("\n🙋 Клиент: <code>%s</code>", escapeHTML(event.RequesterID)))
	sb.WriteString(fmt.Sprintf("\n📅 %s, %s–%s (%s)", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"), formatDuration(minutes)))
	sb.WriteString(fmt.Sprintf("\n🌍 %s", loc.String()))

	if event.Type == EventBookingCancelled && event.Reason != "" {
		sb.WriteString(fmt.Sprintf("\n📝 Причина: %s", cancelReasonText(event.Reason)))
	}

	sb.WriteString(fmt.Sprintf("\n\n🆔 <code>%s</code>", event.BookingID))
	return sb.String()
}

func cancelReasonText(reason model.CancelReason) string {
	switch reason {
	case model.CancelReasonRequested:
		return "отменено по запросу"
	case model.CancelReasonPaymentFailed:
		return "оплата не прошла"
	case model.CancelReasonExpired:
		return "не оплачено вовремя"
	default:
		return string(reason)
	}
}

// formatDuration форматирует длительность в минутах
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

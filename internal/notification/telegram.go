// Package notification dispatches fire-and-forget booking notifications to
// an operations channel.  Delivery is best effort: failures are logged and
// never affect the saga.
package notification

import (
    "context"
    "fmt"
    "log"
    "strings"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

    "github.com/ridehub/bus-booking/internal/model"
)

// TelegramNotifier posts booking outcomes to a Telegram chat.  With an
// empty token the notifier stays disabled and every call is a logged
// no-op, so local setups work without credentials.
type TelegramNotifier struct {
    bot    *tgbotapi.BotAPI
    chatID int64
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
    if token == "" {
        log.Printf("notification: telegram token is empty, notifications disabled")
        return &TelegramNotifier{}, nil
    }
    bot, err := tgbotapi.NewBotAPI(token)
    if err != nil {
        return nil, fmt.Errorf("create telegram bot: %w", err)
    }
    return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// BookingConfirmed announces a paid and confirmed booking.
func (n *TelegramNotifier) BookingConfirmed(ctx context.Context, b *model.Booking) {
    text := fmt.Sprintf(
        "*Booking confirmed*\n\nCode: %s\nSeats: %s\nAmount: %d.%02d",
        b.BookingCode, seatList(b.SeatIDs), b.AmountCents/100, b.AmountCents%100,
    )
    n.send(ctx, text)
}

// BookingCancelled announces a cancelled or refunded booking.
func (n *TelegramNotifier) BookingCancelled(ctx context.Context, b *model.Booking, reason string) {
    text := fmt.Sprintf(
        "*Booking cancelled*\n\nCode: %s\nSeats: %s\nReason: %s",
        b.BookingCode, seatList(b.SeatIDs), reason,
    )
    n.send(ctx, text)
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
    if n.bot == nil {
        return
    }
    if err := ctx.Err(); err != nil {
        return
    }
    msg := tgbotapi.NewMessage(n.chatID, text)
    msg.ParseMode = "Markdown"
    if _, err := n.bot.Send(msg); err != nil {
        log.Printf("notification: telegram send failed: %v", err)
    }
}

func seatList(ids []uint64) string {
    parts := make([]string, 0, len(ids))
    for _, id := range ids {
        parts = append(parts, fmt.Sprintf("%d", id))
    }
    return strings.Join(parts, ", ")
}

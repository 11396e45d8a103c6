package bot

import (
	"context"

	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"
	"github.com/m3rciful/fruitbot/core/telegram/middleware"
	"github.com/m3rciful/fruitbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// messageSender is the part of *tele.Bot the gateway needs.
type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Gateway delivers questionnaire messages through the outbound dispatcher.
// Delivery is asynchronous; failures are logged by the dispatcher.
type Gateway struct {
	bot        messageSender
	dispatcher *sender.Dispatcher
}

// NewGateway returns a gateway sending with bot. A nil dispatcher sends inline.
func NewGateway(bot messageSender, dispatcher *sender.Dispatcher) *Gateway {
	return &Gateway{bot: bot, dispatcher: dispatcher}
}

// Send queues text for chatID as plain text.
func (g *Gateway) Send(ctx context.Context, chatID int64, text string) error {
	middleware.CountMessage(ctx)
	return tghelpers.Enqueue(ctx, g.dispatcher, sender.Job{
		Key:      chatID,
		Action:   "send.text",
		Endpoint: "sendMessage",
		Run: func() error {
			_, err := g.bot.Send(tele.ChatID(chatID), text)
			return err
		},
	})
}

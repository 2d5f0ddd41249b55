// Package notify отправляет оператору уведомления о прогонах в Telegram.
// Это исходящий канал: бот ничего не принимает и не обрабатывает.
package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier отправитель уведомлений в чат оператора.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New создаёт уведомитель для чата chatID.
func New(token string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Notifier{api: api, chatID: chatID}, nil
}

// Send отправляет текстовое сообщение оператору.
// Безопасен на nil-получателе: уведомления тогда просто выключены.
func (n *Notifier) Send(text string) error {
	if n == nil {
		return nil
	}
	_, err := n.api.Send(tgbotapi.NewMessage(n.chatID, text))
	return err
}

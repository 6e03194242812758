package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/oshokin/alarm-scheduler/internal/logger"
)

var errTelegramToken = errors.New("telegram token is empty")

// messenger is the part of *tele.Bot the sink needs.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// TelegramSink posts notifications to a Telegram chat.
// It remembers the last message per identifier and deletes it before posting
// a replacement, so the chat holds at most one message per alarm.
type TelegramSink struct {
	bot  messenger
	chat *tele.Chat

	mu   sync.Mutex
	sent map[int]*tele.Message
}

// NewTelegramSink connects a bot with token that posts into chatID.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errTelegramToken
	}

	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return newTelegramSink(bot, chatID), nil
}

// newTelegramSink builds a sink around any messenger.
func newTelegramSink(bot messenger, chatID int64) *TelegramSink {
	return &TelegramSink{
		bot:  bot,
		chat: &tele.Chat{ID: chatID},
		sent: make(map[int]*tele.Message),
	}
}

// Show posts the notification, replacing the previous message for id.
// The lock covers only the message map, so a slow API call for one identifier
// does not hold up the others.
func (s *TelegramSink) Show(ctx context.Context, id int, title, body string) error {
	if previous := s.take(id); previous != nil {
		s.remove(ctx, id, previous)
	}

	msg, err := s.bot.Send(s.chat, formatTelegram(title, body))
	if err != nil {
		return fmt.Errorf("send telegram notification: %w", err)
	}

	s.mu.Lock()
	stale := s.sent[id]
	s.sent[id] = msg
	s.mu.Unlock()

	// A concurrent Show for the same id finished first.
	if stale != nil {
		s.remove(ctx, id, stale)
	}

	return nil
}

// take detaches the message remembered for id.
func (s *TelegramSink) take(id int) *tele.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.sent[id]
	delete(s.sent, id)

	return msg
}

// remove deletes msg from the chat. The user may already have removed it.
func (s *TelegramSink) remove(ctx context.Context, id int, msg *tele.Message) {
	if err := s.bot.Delete(msg); err != nil {
		logger.DebugKV(ctx, "Previous telegram notification not deleted", "alarm_id", id, "error", err)
	}
}

// formatTelegram renders the message text.
func formatTelegram(title, body string) string {
	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

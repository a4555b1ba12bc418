package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"armada/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestTelegramNotifier(t *testing.T) {
	logger := zerolog.New(io.Discard)
	note := models.Notification{Kind: "late_fee", BookingID: 42, Title: "BK-42", Body: "3 days late"}

	t.Run("SendsToEveryChat", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, []int64{100, 200}, &logger)

		for _, id := range []int64{100, 200} {
			chatID := id
			sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
				msg, ok := c.(tgbotapi.MessageConfig)
				return ok && msg.ChatID == chatID && msg.Text == "BK-42\n\n3 days late"
			})).Return(tgbotapi.Message{}, nil).Once()
		}

		assert.NoError(t, n.Notify(context.Background(), note))
		sender.AssertExpectations(t)
	})

	t.Run("PartialFailure", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, []int64{100, 200}, &logger)

		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			return c.(tgbotapi.MessageConfig).ChatID == 100
		})).Return(tgbotapi.Message{}, errors.New("Forbidden: bot was blocked")).Once()
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			return c.(tgbotapi.MessageConfig).ChatID == 200
		})).Return(tgbotapi.Message{}, nil).Once()

		err := n.Notify(context.Background(), note)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "chat 100")
		sender.AssertExpectations(t)
	})

	t.Run("NoChats", func(t *testing.T) {
		n := NewTelegramNotifier(new(mockTelegramSender), nil, &logger)
		assert.Error(t, n.Notify(context.Background(), note))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		sender := new(mockTelegramSender)
		n := NewTelegramNotifier(sender, []int64{100}, &logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, n.Notify(ctx, note), context.Canceled)
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "only title", Format(models.Notification{Title: "only title"}))
}

func TestLogNotifier(t *testing.T) {
	logger := zerolog.New(io.Discard)
	assert.NoError(t, NewLogNotifier(&logger).Notify(context.Background(), models.Notification{Title: "x"}))
}

package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/handlers"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/config"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/logger"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 100 + len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifier_SendReminder(t *testing.T) {
	api := newFakeAPI()
	n := NewNotifier(api, config.SenderConfig{RatePerSec: 10}, logger.Discard())

	handle, err := n.SendReminder(context.Background(), 7, "aspirin")
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryHandle{ChatID: 7, MessageID: 101}, handle)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "⏰ Time to take aspirin!", msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "ack:done:aspirin", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "ack:skip:aspirin", *kb.InlineKeyboard[0][1].CallbackData)
}

func TestNotifier_SendFailure(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("Forbidden: bot was blocked by the user")
	n := NewNotifier(api, config.SenderConfig{RatePerSec: 10}, logger.Discard())

	_, err := n.SendReminder(context.Background(), 7, "aspirin")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDelivery))
}

func TestNotifier_ThrottleRespectsContext(t *testing.T) {
	api := newFakeAPI()
	n := NewNotifier(api, config.SenderConfig{RatePerSec: 1}, logger.Discard())

	_, err := n.SendReminder(context.Background(), 7, "aspirin")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = n.SendReminder(ctx, 7, "aspirin")
	assert.True(t, errors.Is(err, &apperrors.AppError{Type: apperrors.ErrorTypeTimeout, Code: "TIMEOUT"}))
	assert.Equal(t, 1, api.sentCount())
}

// stalledAPI never answers until release is closed.
type stalledAPI struct {
	*fakeAPI
	release chan struct{}
}

func (s *stalledAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	return s.fakeAPI.Send(c)
}

func (s *stalledAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	<-s.release
	return s.fakeAPI.Request(c)
}

func TestNotifier_StalledTelegramHonoursDeadline(t *testing.T) {
	api := &stalledAPI{fakeAPI: newFakeAPI(), release: make(chan struct{})}
	defer close(api.release)
	n := NewNotifier(api, config.SenderConfig{RatePerSec: 10}, logger.Discard())
	timeoutErr := &apperrors.AppError{Type: apperrors.ErrorTypeTimeout, Code: "TIMEOUT"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := n.SendReminder(ctx, 7, "aspirin")
	assert.True(t, errors.Is(err, timeoutErr))
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = n.ClearReminder(ctx, domain.DeliveryHandle{ChatID: 7, MessageID: 101}, "aspirin", domain.IntakeDone)
	assert.True(t, errors.Is(err, timeoutErr))
}

func TestNotifier_ClearReminder(t *testing.T) {
	api := newFakeAPI()
	n := NewNotifier(api, config.SenderConfig{RatePerSec: 10}, logger.Discard())

	err := n.ClearReminder(context.Background(), domain.DeliveryHandle{ChatID: 7, MessageID: 55}, "aspirin", domain.IntakeSkipped)
	require.NoError(t, err)

	edit, ok := api.requests[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), edit.ChatID)
	assert.Equal(t, 55, edit.MessageID)
	assert.Equal(t, "⏭ aspirin skipped", edit.Text)
	assert.Nil(t, edit.ReplyMarkup)
}

func TestBot_StartHandlesUpdatesUntilCancelled(t *testing.T) {
	api := newFakeAPI()
	b := NewBot(api, handlers.Dependencies{Logger: logger.Discard()}, state.NewManager())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 1},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Length: 5}},
	}}
	require.Eventually(t, func() bool { return api.sentCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	_, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	assert.True(t, ok)
}

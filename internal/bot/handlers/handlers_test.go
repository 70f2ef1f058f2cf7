package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/logger"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	msg, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func (f *fakeAPI) lastToast(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	cb, ok := f.requests[len(f.requests)-1].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	return cb.Text
}

type createCall struct {
	ownerID, chatID int64
	medicine        string
	times           []string
}

type ackCall struct {
	ownerID  int64
	medicine string
	status   domain.IntakeStatus
}

type fakeService struct {
	timezones map[int64]string
	created   []createCall
	deleted   []string
	acks      []ackCall
	ackErr    error
	history   []domain.IntakeRecord
}

func newFakeService() *fakeService {
	return &fakeService{timezones: map[int64]string{}}
}

func (f *fakeService) SetTimezone(_ context.Context, ownerID int64, tz string) error {
	if !strings.Contains(tz, "/") && tz != "UTC" {
		return apperrors.NewInvalidTimezoneError(tz, nil)
	}
	f.timezones[ownerID] = tz
	return nil
}

func (f *fakeService) Timezone(_ context.Context, ownerID int64) (string, error) {
	tz, ok := f.timezones[ownerID]
	if !ok {
		return "", apperrors.NewUserNotFoundError(ownerID)
	}
	return tz, nil
}

func (f *fakeService) CreateSchedule(_ context.Context, ownerID, chatID int64, medicine string, times []string) (*domain.ScheduleEntry, error) {
	f.created = append(f.created, createCall{ownerID, chatID, medicine, times})
	return &domain.ScheduleEntry{MedicineName: medicine, OwnerID: ownerID, ChatID: chatID, LocalTimes: times, Timezone: f.timezones[ownerID]}, nil
}

func (f *fakeService) DeleteSchedule(_ context.Context, medicine string, _ int64) error {
	if medicine == "unknown" {
		return apperrors.NewScheduleNotFoundError(medicine)
	}
	f.deleted = append(f.deleted, medicine)
	return nil
}

func (f *fakeService) Acknowledge(_ context.Context, ownerID int64, medicine string, status domain.IntakeStatus) error {
	f.acks = append(f.acks, ackCall{ownerID, medicine, status})
	return f.ackErr
}

func (f *fakeService) ListSchedules(context.Context, int64) ([]domain.ScheduleEntry, error) {
	return nil, nil
}

func (f *fakeService) IntakeHistory(context.Context, int64, int) ([]domain.IntakeRecord, error) {
	return f.history, nil
}

type fixture struct {
	api     *fakeAPI
	svc     *fakeService
	states  *state.Manager
	handler *UpdateHandler
}

func newFixture() *fixture {
	api := &fakeAPI{}
	svc := newFakeService()
	states := state.NewManager()
	deps := Dependencies{ReminderSvc: svc, Logger: logger.Discard()}
	return &fixture{
		api:     api,
		svc:     svc,
		states:  states,
		handler: NewUpdateHandler(api, deps, states),
	}
}

const userID = 42

func command(text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: s,
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func (f *fixture) handle(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	require.NoError(t, f.handler.Handle(context.Background(), u))
}

func TestAddDialog(t *testing.T) {
	f := newFixture()
	f.svc.timezones[userID] = "Europe/Moscow"
	ctx := context.Background()

	f.handle(t, command("/add"))
	assert.Equal(t, state.WaitingForMedicineName, f.states.GetUserState(ctx, userID))

	f.handle(t, text("aspirin"))
	assert.Equal(t, state.WaitingForDoseCount, f.states.GetUserState(ctx, userID))

	f.handle(t, text("eleven"))
	assert.Contains(t, f.api.lastText(t), "from 1 to 10")
	assert.Equal(t, state.WaitingForDoseCount, f.states.GetUserState(ctx, userID))

	f.handle(t, text("2"))
	assert.Equal(t, state.WaitingForTimes, f.states.GetUserState(ctx, userID))

	f.handle(t, text("08:00"))
	assert.Contains(t, f.api.lastText(t), "Got 1 of 2")

	f.handle(t, text("20:30"))
	require.Len(t, f.svc.created, 1)
	assert.Equal(t, createCall{userID, userID, "aspirin", []string{"08:00", "20:30"}}, f.svc.created[0])
	assert.Contains(t, f.api.lastText(t), "aspirin scheduled daily at 08:00, 20:30 (Europe/Moscow)")
	assert.Equal(t, state.None, f.states.GetUserState(ctx, userID))
}

func TestAddDialog_AllTimesAtOnce(t *testing.T) {
	f := newFixture()

	f.handle(t, callback("menu:add"))
	f.handle(t, text("vitamin D"))
	f.handle(t, text("3"))
	f.handle(t, text("08:00, 14:00 20:00"))

	require.Len(t, f.svc.created, 1)
	assert.Equal(t, []string{"08:00", "14:00", "20:00"}, f.svc.created[0].times)
}

func TestAddDialog_RejectsBadInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.handle(t, command("/add"))
	f.handle(t, text("a:b"))
	assert.Contains(t, f.api.lastText(t), "must not contain ':'")
	assert.Equal(t, state.WaitingForMedicineName, f.states.GetUserState(ctx, userID))

	f.handle(t, text("aspirin"))
	f.handle(t, text("1"))
	f.handle(t, text("9am"))
	assert.Contains(t, f.api.lastText(t), "HH:MM")
	f.handle(t, text("09:00 21:00"))
	assert.Contains(t, f.api.lastText(t), "more than 1")
	assert.Empty(t, f.svc.created)

	f.handle(t, command("/cancel"))
	assert.Equal(t, state.None, f.states.GetUserState(ctx, userID))
}

func TestTimezoneCommand(t *testing.T) {
	f := newFixture()

	f.handle(t, command("/timezone Europe/Moscow"))
	assert.Equal(t, "Europe/Moscow", f.svc.timezones[userID])
	assert.Contains(t, f.api.lastText(t), "Timezone set to Europe/Moscow")

	f.handle(t, command("/timezone Moscow"))
	assert.Contains(t, f.api.lastText(t), `Unknown timezone "Moscow"`)
	assert.Equal(t, "Europe/Moscow", f.svc.timezones[userID])
}

func TestTimezoneDialog(t *testing.T) {
	f := newFixture()

	f.handle(t, command("/timezone"))
	assert.Equal(t, state.WaitingForTimezone, f.states.GetUserState(context.Background(), userID))

	f.handle(t, text("Asia/Tokyo"))
	assert.Equal(t, "Asia/Tokyo", f.svc.timezones[userID])
	assert.Equal(t, state.None, f.states.GetUserState(context.Background(), userID))
}

func TestAckCallback(t *testing.T) {
	f := newFixture()

	f.handle(t, callback("ack:done:aspirin"))
	require.Len(t, f.svc.acks, 1)
	assert.Equal(t, ackCall{userID, "aspirin", domain.IntakeDone}, f.svc.acks[0])
	assert.Equal(t, "Recorded: aspirin taken", f.api.lastToast(t))

	f.svc.ackErr = apperrors.NewAlreadyResolvedError("aspirin")
	f.handle(t, callback("ack:skip:aspirin"))
	assert.Equal(t, domain.IntakeSkipped, f.svc.acks[1].status)
	assert.Equal(t, "Already recorded", f.api.lastToast(t))

	f.svc.ackErr = apperrors.NewDatabaseError(assert.AnError)
	f.handle(t, callback("ack:done:aspirin"))
	assert.Equal(t, "Could not save, please press again", f.api.lastToast(t))
}

func TestDeleteCallbackAndCommand(t *testing.T) {
	f := newFixture()

	f.handle(t, callback("del:aspirin"))
	assert.Equal(t, []string{"aspirin"}, f.svc.deleted)
	assert.Contains(t, f.api.lastText(t), "aspirin deleted")

	f.handle(t, command("/delete unknown"))
	assert.Contains(t, f.api.lastText(t), `Medicine "unknown" is not scheduled`)
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture()
	f.svc.timezones[userID] = "Europe/Moscow"
	f.svc.history = []domain.IntakeRecord{
		{MedicineName: "aspirin", Status: domain.IntakeDone, Timestamp: time.Date(2024, 3, 1, 6, 5, 0, 0, time.UTC)},
		{MedicineName: "iron", Status: domain.IntakeSkipped, Timestamp: time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC)},
	}

	f.handle(t, command("/history"))

	out := f.api.lastText(t)
	assert.Contains(t, out, "✅ aspirin, 09:05 2024-03-01")
	assert.Contains(t, out, "⏭ iron, 21:00 2024-02-29")
}

func TestUnknownInput(t *testing.T) {
	f := newFixture()

	f.handle(t, command("/frobnicate"))
	assert.Contains(t, f.api.lastText(t), "Unknown command")

	f.handle(t, text("hello"))
	assert.Contains(t, f.api.lastText(t), "/help")

	require.NoError(t, f.handler.Handle(context.Background(), tgbotapi.Update{}))
}

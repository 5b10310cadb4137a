package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
)

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu       sync.Mutex
	sent     []sentMsg
	sendErr  error
	failOnce bool
	meErr    error
}

func (m *mockAPI) GetMe() (tgbotapi.User, error) {
	return tgbotapi.User{UserName: "relay_bot"}, m.meErr
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		err := m.sendErr
		if m.failOnce {
			m.sendErr = nil
		}
		return tgbotapi.Message{}, err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) allSent() []sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMsg, len(m.sent))
	copy(cp, m.sent)
	return cp
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestTelegram(api telegramAPI) *Telegram {
	return &Telegram{api: api, log: testLogger()}
}

func TestNewTelegramRequiresToken(t *testing.T) {
	_, err := NewTelegram("", testLogger())
	if !errors.Is(err, ErrNoIdentity) {
		t.Errorf("error = %v, want ErrNoIdentity", err)
	}
}

func TestSendFansOutToAllRecipients(t *testing.T) {
	api := &mockAPI{}
	tg := newTestTelegram(api)

	msg := &Message{
		Subject:    "Incoming SMS from +123",
		Body:       "hello",
		Recipients: []string{"111", "222"},
	}
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := []sentMsg{
		{ChatID: 111, Text: "Incoming SMS from +123\n\nhello"},
		{ChatID: 222, Text: "Incoming SMS from +123\n\nhello"},
	}
	if diff := cmp.Diff(want, api.allSent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSendWithoutSubject(t *testing.T) {
	api := &mockAPI{}
	tg := newTestTelegram(api)

	msg := &Message{Body: "just text", Recipients: []string{"5"}}
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := []sentMsg{{ChatID: 5, Text: "just text"}}
	if diff := cmp.Diff(want, api.allSent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSendRejectsNonNumericRecipient(t *testing.T) {
	api := &mockAPI{}
	tg := newTestTelegram(api)

	msg := &Message{Body: "hi", Recipients: []string{"not-a-chat"}}
	if err := tg.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error for non-numeric recipient")
	}
	if len(api.allSent()) != 0 {
		t.Error("nothing should be sent for an invalid recipient")
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	api := &mockAPI{sendErr: errors.New("http timeout"), failOnce: true}
	tg := newTestTelegram(api)

	msg := &Message{Body: "retry me", Recipients: []string{"7"}}
	if err := tg.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := []sentMsg{{ChatID: 7, Text: "retry me"}}
	if diff := cmp.Diff(want, api.allSent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSendMapsUnauthorizedToAuthRequired(t *testing.T) {
	api := &mockAPI{sendErr: &tgbotapi.Error{Code: 401, Message: "Unauthorized"}}
	tg := newTestTelegram(api)

	msg := &Message{Body: "hi", Recipients: []string{"7"}}
	err := tg.Send(context.Background(), msg)
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("error = %v, want ErrAuthRequired", err)
	}
}

func TestLogin(t *testing.T) {
	tg := newTestTelegram(&mockAPI{})
	if err := tg.Login(context.Background()); err != nil {
		t.Errorf("login: %v", err)
	}

	tg = newTestTelegram(&mockAPI{meErr: errors.New("unauthorized")})
	err := tg.Login(context.Background())
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("error = %v, want ErrAuthRequired", err)
	}
}

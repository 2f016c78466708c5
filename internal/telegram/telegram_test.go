package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"jarqyn_support_bot/internal/broadcast"
	"jarqyn_support_bot/internal/config"
	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/menu"
	"jarqyn_support_bot/internal/session"
	"jarqyn_support_bot/internal/texts"
)

type sentMessage struct {
	chatID int64
	text   string
	params *bot.SendMessageParams
}

type fakeBot struct {
	mu          sync.Mutex
	startedWith context.Context
	messages    []sentMessage
	audios      []*bot.SendAudioParams
	photos      []*bot.SendPhotoParams
	videos      []*bot.SendVideoParams
	sendErr     error
}

func (f *fakeBot) Start(ctx context.Context) {
	f.startedWith = ctx
}

func (f *fakeBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	chat, _ := params.ChatID.(int64)
	f.messages = append(f.messages, sentMessage{chatID: chat, text: params.Text, params: params})
	return &models.Message{}, nil
}

func (f *fakeBot) SendAudio(_ context.Context, params *bot.SendAudioParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audios = append(f.audios, params)
	return &models.Message{}, nil
}

func (f *fakeBot) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, params)
	return &models.Message{}, nil
}

func (f *fakeBot) SendVideo(_ context.Context, params *bot.SendVideoParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, params)
	return &models.Message{}, nil
}

// fakeCatalog satisfies the engine, broadcast and sender catalog slices.
type fakeCatalog struct {
	startText string
	users     []int64
	admins    []int64
	practices []domain.Practice
}

func (f *fakeCatalog) StartText(context.Context) (string, error) { return f.startText, nil }
func (f *fakeCatalog) Universities(context.Context) ([]domain.University, error) {
	return nil, nil
}
func (f *fakeCatalog) EventsFor(context.Context, int) ([]domain.Event, error) { return nil, nil }
func (f *fakeCatalog) Psychologists(context.Context) ([]domain.Psychologist, error) {
	return nil, nil
}
func (f *fakeCatalog) PracticeCategories(context.Context) ([]string, error) {
	var categories []string
	for _, p := range f.practices {
		categories = append(categories, p.Category)
	}
	return categories, nil
}
func (f *fakeCatalog) PracticesByCategory(context.Context, string) ([]domain.Practice, error) {
	return f.practices, nil
}
func (f *fakeCatalog) PracticeByID(context.Context, int) (domain.Practice, error) {
	return domain.Practice{}, domain.ErrEntityNotFound
}
func (f *fakeCatalog) Contacts(context.Context) ([]domain.Contact, error) { return nil, nil }
func (f *fakeCatalog) Partners(context.Context) ([]domain.Partner, error) { return nil, nil }
func (f *fakeCatalog) AddUser(context.Context, int64) error               { return nil }
func (f *fakeCatalog) Users(context.Context) ([]int64, error)             { return f.users, nil }
func (f *fakeCatalog) AdminIDs(context.Context) ([]int64, error)          { return f.admins, nil }
func (f *fakeCatalog) IsAdmin(_ context.Context, chatID int64) (bool, error) {
	for _, id := range f.admins {
		if id == chatID {
			return true, nil
		}
	}
	return false, nil
}

func nullEntry() *logrus.Entry {
	hookLogger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(hookLogger)
}

func newTestClient(t *testing.T, cat *fakeCatalog) (*Client, *fakeBot) {
	t.Helper()

	origCreateBot := createBot
	t.Cleanup(func() { createBot = origCreateBot })

	b := &fakeBot{}
	createBot = func(string, ...bot.Option) (botClient, error) {
		return b, nil
	}

	client, err := NewClient(config.Config{TelegramToken: "token"}, nullEntry(),
		WithAudience(cat),
		WithSessionStore(session.NewMemoryStore()),
		WithEngine(func(admins menu.AdminNotifier) *menu.Engine {
			return menu.NewEngine(cat, texts.Default(), admins, nullEntry())
		}),
		WithDispatcher(func(sender broadcast.Sender) *broadcast.Dispatcher {
			return broadcast.NewDispatcher(cat, sender, nullEntry())
		}),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, b
}

func textMessage(chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			Text: text,
			Chat: models.Chat{ID: chatID},
		},
	}
}

func TestNewClientCreatesBot(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	var gotToken string
	var gotOptions []bot.Option
	b := &fakeBot{}

	createBot = func(token string, options ...bot.Option) (botClient, error) {
		gotToken = token
		gotOptions = options
		return b, nil
	}

	cfg := config.Config{TelegramToken: "token-123"}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client, err := NewClient(cfg, logrus.NewEntry(logger))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client == nil || client.bot == nil || client.sender == nil {
		t.Fatalf("expected client, bot and sender to be initialized")
	}

	if gotToken != cfg.TelegramToken {
		t.Fatalf("expected token %q, got %q", cfg.TelegramToken, gotToken)
	}

	if len(gotOptions) != 3 {
		t.Fatalf("expected 3 bot options (allowed updates, default handler, error handler), got %d", len(gotOptions))
	}
}

func TestNewClientPropagatesBotError(t *testing.T) {
	origCreateBot := createBot
	defer func() { createBot = origCreateBot }()

	expected := errors.New("boom")
	createBot = func(string, ...bot.Option) (botClient, error) {
		return nil, expected
	}

	_, err := NewClient(config.Config{TelegramToken: "token"}, nil)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(config.Config{}, nil); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestClientStartUsesContext(t *testing.T) {
	b := &fakeBot{}
	client := &Client{
		bot:    b,
		sender: NewSender(b, nil, nullEntry()),
		logger: nullEntry(),
	}

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	client.Start(ctx)

	if b.startedWith != ctx {
		t.Fatalf("expected bot to be started with the given context")
	}
}

func TestStartCommandSendsGreetingWithKeyboard(t *testing.T) {
	cat := &fakeCatalog{startText: "Привет!"}
	client, b := newTestClient(t, cat)

	client.handleUpdate(context.Background(), nil, textMessage(7, "/start"))

	if len(b.messages) != 1 || b.messages[0].text != "Привет!" {
		t.Fatalf("expected greeting, got %+v", b.messages)
	}
	if b.messages[0].params.ReplyMarkup == nil {
		t.Fatalf("expected main keyboard, got none")
	}
}

func TestMenuTextRoutedThroughEngine(t *testing.T) {
	cat := &fakeCatalog{practices: []domain.Practice{{ID: 1, Name: "a", Category: "Сон"}}}
	client, b := newTestClient(t, cat)
	ctx := context.Background()

	client.handleUpdate(ctx, nil, textMessage(7, texts.MenuPractices))

	if len(b.messages) != 1 {
		t.Fatalf("expected one reply, got %+v", b.messages)
	}
	if b.messages[0].text != texts.Default().Get(texts.SelectCategory) {
		t.Fatalf("expected category prompt, got %q", b.messages[0].text)
	}

	// The session survives between updates through the store.
	client.handleUpdate(ctx, nil, textMessage(7, "Сон"+texts.CategorySuffix))

	if len(b.messages) != 2 || !strings.Contains(b.messages[1].text, "1. a") {
		t.Fatalf("expected numbered practice list, got %+v", b.messages)
	}
}

func TestAnnounceDeniedForNonAdmin(t *testing.T) {
	cat := &fakeCatalog{users: []int64{1, 2}, admins: []int64{42}}
	client, b := newTestClient(t, cat)

	client.handleUpdate(context.Background(), nil, textMessage(7, "/announce всем привет"))

	if len(b.messages) != 1 || b.messages[0].chatID != 7 {
		t.Fatalf("expected only the denial reply, got %+v", b.messages)
	}
	if b.messages[0].text != texts.Default().Get(texts.AnnounceDenied) {
		t.Fatalf("expected denial text, got %q", b.messages[0].text)
	}
}

func TestAnnounceFansOutToUsers(t *testing.T) {
	cat := &fakeCatalog{users: []int64{1, 2}, admins: []int64{42}}
	client, b := newTestClient(t, cat)

	client.handleUpdate(context.Background(), nil, textMessage(42, "/announce всем привет"))

	var broadcastTexts []string
	var confirmation string
	for _, m := range b.messages {
		if m.chatID == 42 {
			confirmation = m.text
			continue
		}
		broadcastTexts = append(broadcastTexts, m.text)
	}

	if len(broadcastTexts) != 2 {
		t.Fatalf("expected 2 deliveries, got %+v", b.messages)
	}
	for _, text := range broadcastTexts {
		if text != "всем привет" {
			t.Fatalf("expected announcement text, got %q", text)
		}
	}
	if confirmation != texts.Default().Get(texts.AnnounceDone) {
		t.Fatalf("expected confirmation, got %q", confirmation)
	}
}

func TestAnnounceWithoutContentShowsUsage(t *testing.T) {
	cat := &fakeCatalog{admins: []int64{42}}
	client, b := newTestClient(t, cat)

	client.handleUpdate(context.Background(), nil, textMessage(42, "/announce"))

	if len(b.messages) != 1 || b.messages[0].text != texts.Default().Get(texts.AnnounceUsage) {
		t.Fatalf("expected usage hint, got %+v", b.messages)
	}
}

func TestAnnounceContentCarriesPhoto(t *testing.T) {
	msg := &models.Message{
		Caption: "/announce вебинар в пятницу",
		Photo: []models.PhotoSize{
			{FileID: "small"},
			{FileID: "large"},
		},
	}

	content := announceContent(msg)

	if content.Text != "вебинар в пятницу" {
		t.Fatalf("expected caption remainder, got %q", content.Text)
	}
	if content.PhotoID != "large" {
		t.Fatalf("expected largest photo rendition, got %q", content.PhotoID)
	}
}

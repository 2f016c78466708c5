// Package telegram hosts the Telegram client, update routing and outbound
// delivery.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/broadcast"
	"jarqyn_support_bot/internal/config"
	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
	"jarqyn_support_bot/internal/menu"
	"jarqyn_support_bot/internal/session"
	"jarqyn_support_bot/internal/texts"
)

type botRunner interface {
	Start(ctx context.Context)
}

// botAPI is the outbound slice of *bot.Bot the client uses.
type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error)
}

type botClient interface {
	botRunner
	botAPI
}

const announceCommand = "/announce"

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
	}

	createBot = func(token string, options ...bot.Option) (botClient, error) {
		return bot.New(token, options...)
	}
)

// audienceReader lists the recipients the outbound side needs.
type audienceReader interface {
	Users(ctx context.Context) ([]int64, error)
	AdminIDs(ctx context.Context) ([]int64, error)
}

// Client wraps the Telegram bot instance, the menu engine and the broadcast
// dispatcher. Updates for the same chat are serialized so session writes
// never race.
type Client struct {
	bot        botRunner
	sender     *Sender
	engine     *menu.Engine
	sessions   session.Store
	dispatcher *broadcast.Dispatcher
	texts      *texts.Table
	logger     *logrus.Entry

	mu        sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// Option configures optional client collaborators.
type Option func(*clientDeps)

type clientDeps struct {
	engine     func(admins menu.AdminNotifier) *menu.Engine
	sessions   session.Store
	dispatcher func(sender broadcast.Sender) *broadcast.Dispatcher
	audience   audienceReader
	texts      *texts.Table
}

// WithEngine supplies the engine factory. The factory receives the client's
// own sender as the admin notifier.
func WithEngine(factory func(admins menu.AdminNotifier) *menu.Engine) Option {
	return func(d *clientDeps) { d.engine = factory }
}

// WithSessionStore supplies the session store.
func WithSessionStore(store session.Store) Option {
	return func(d *clientDeps) { d.sessions = store }
}

// WithDispatcher supplies the broadcast dispatcher factory. The factory
// receives the client's own sender.
func WithDispatcher(factory func(sender broadcast.Sender) *broadcast.Dispatcher) Option {
	return func(d *clientDeps) { d.dispatcher = factory }
}

// WithAudience supplies the recipient lists for broadcasts and admin
// notifications.
func WithAudience(audience audienceReader) Option {
	return func(d *clientDeps) { d.audience = audience }
}

// WithTexts overrides the message table.
func WithTexts(table *texts.Table) Option {
	return func(d *clientDeps) { d.texts = table }
}

// NewClient initializes the Telegram bot with long polling and the update
// router.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	deps := clientDeps{}
	for _, opt := range opts {
		opt(&deps)
	}
	if deps.sessions == nil {
		deps.sessions = session.NewMemoryStore()
	}
	if deps.texts == nil {
		deps.texts = texts.Default()
	}

	client := &Client{
		sessions:  deps.sessions,
		texts:     deps.texts,
		logger:    logger,
		chatLocks: make(map[int64]*sync.Mutex),
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	client.sender = NewSender(tgBot, deps.audience, logger)

	if deps.engine != nil {
		client.engine = deps.engine(client.sender)
	}
	if deps.dispatcher != nil {
		client.dispatcher = deps.dispatcher(client.sender)
	}

	return client, nil
}

// Sender returns the outbound delivery side, for collaborators that push
// messages outside the request path.
func (c *Client) Sender() *Sender {
	return c.sender
}

// Start begins receiving updates via long polling until the context is
// canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}

	msg := update.Message
	chat := chatID(&msg.Chat)
	if chat == 0 {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logging.Fields{
				"event":   "handler_panic",
				"chat_id": chat,
			}).Errorf("recovered from panic: %v", r)
			c.sender.sendText(ctx, chat, c.texts.Get(texts.Unavailable), nil, false)
		}
	}()

	lock := c.lockFor(chat)
	lock.Lock()
	defer lock.Unlock()

	text := strings.TrimSpace(msg.Text)

	c.logger.WithFields(logging.Fields{
		"event":   "telegram_update",
		"chat_id": chat,
		"text":    text,
	}).Debug("telegram update received")

	switch {
	case text == "/start":
		c.handleStart(ctx, chat)
	case isAnnounce(msg):
		c.handleAnnounce(ctx, chat, msg)
	case c.engine != nil:
		c.handleMenuText(ctx, chat, text)
	}
}

func (c *Client) handleStart(ctx context.Context, chat int64) {
	if c.engine == nil {
		return
	}

	sess := c.loadSession(ctx, chat)
	replies := c.engine.Start(ctx, chat, sess)
	c.storeSession(ctx, chat, sess)
	c.sendReplies(ctx, chat, replies)
}

func (c *Client) handleMenuText(ctx context.Context, chat int64, text string) {
	if text == "" {
		return
	}

	sess := c.loadSession(ctx, chat)
	replies := c.engine.Handle(ctx, chat, sess, text)
	c.storeSession(ctx, chat, sess)
	c.sendReplies(ctx, chat, replies)
}

func (c *Client) handleAnnounce(ctx context.Context, chat int64, msg *models.Message) {
	if c.dispatcher == nil {
		return
	}

	content := announceContent(msg)
	if content.Text == "" && content.PhotoID == "" && content.VideoID == "" {
		c.sender.sendText(ctx, chat, c.texts.Get(texts.AnnounceUsage), nil, false)
		return
	}

	result, err := c.dispatcher.Dispatch(ctx, chat, content)
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		c.sender.sendText(ctx, chat, c.texts.Get(texts.AnnounceDenied), nil, false)
	case err != nil:
		c.logger.WithError(err).Error("broadcast failed")
		c.sender.sendText(ctx, chat, c.texts.Get(texts.Unavailable), nil, false)
	default:
		c.logger.WithFields(logging.Fields{
			"event":     "broadcast_done",
			"delivered": result.Delivered,
			"failed":    result.Failed,
		}).Info("broadcast dispatched")
		c.sender.sendText(ctx, chat, c.texts.Get(texts.AnnounceDone), nil, false)
	}
}

func (c *Client) loadSession(ctx context.Context, chat int64) *session.Session {
	sess, err := c.sessions.Get(ctx, chat)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"chat_id": chat,
		}).WithError(err).Warn("session load failed, starting fresh")
		return session.New()
	}
	return sess
}

func (c *Client) storeSession(ctx context.Context, chat int64, sess *session.Session) {
	if err := c.sessions.Put(ctx, chat, sess); err != nil {
		c.logger.WithFields(logging.Fields{
			"chat_id": chat,
		}).WithError(err).Warn("session save failed")
	}
}

func (c *Client) sendReplies(ctx context.Context, chat int64, replies []menu.Reply) {
	if err := c.sender.SendReplies(ctx, chat, replies); err != nil {
		c.logger.WithFields(logging.Fields{
			"chat_id": chat,
		}).WithError(err).Error("reply delivery failed")
	}
}

func (c *Client) lockFor(chat int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.chatLocks[chat]
	if !ok {
		lock = &sync.Mutex{}
		c.chatLocks[chat] = lock
	}
	return lock
}

func isAnnounce(msg *models.Message) bool {
	return strings.HasPrefix(strings.TrimSpace(msg.Text), announceCommand) ||
		strings.HasPrefix(strings.TrimSpace(msg.Caption), announceCommand)
}

// announceContent pulls the broadcast payload out of an /announce message.
// A photo or video attachment travels as a Telegram file id with the
// command's remainder as caption.
func announceContent(msg *models.Message) broadcast.Content {
	content := broadcast.Content{}

	if text, ok := announceRemainder(msg.Text); ok {
		content.Text = text
	}
	if caption, ok := announceRemainder(msg.Caption); ok {
		content.Text = caption
	}

	if len(msg.Photo) > 0 {
		// The last size is the largest rendition.
		content.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Video != nil {
		content.VideoID = msg.Video.FileID
	}

	return content
}

func announceRemainder(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, announceCommand) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, announceCommand)), true
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

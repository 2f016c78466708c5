package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/broadcast"
	"jarqyn_support_bot/internal/logging"
	"jarqyn_support_bot/internal/menu"
)

// Sender is the outbound delivery side. It satisfies the menu engine's admin
// notifier, the watch job's user notifier and the broadcast sender.
type Sender struct {
	api      botAPI
	audience audienceReader
	logger   *logrus.Entry
}

// NewSender constructs a Sender over the given bot API.
func NewSender(api botAPI, audience audienceReader, logger *logrus.Entry) *Sender {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Sender{
		api:      api,
		audience: audience,
		logger:   logger,
	}
}

// SendReplies delivers the engine's replies in order. Delivery stops on the
// first error so a chat never sees a menu without its preceding text.
func (s *Sender) SendReplies(ctx context.Context, chatID int64, replies []menu.Reply) error {
	for _, reply := range replies {
		if err := s.sendReply(ctx, chatID, reply); err != nil {
			return err
		}
	}
	return nil
}

// NotifyUsers sends text to every known user. Per-chat failures are logged
// and skipped; only a recipient listing failure is returned.
func (s *Sender) NotifyUsers(ctx context.Context, text string) error {
	if s.audience == nil {
		return nil
	}

	users, err := s.audience.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, chatID := range users {
		if err := s.sendText(ctx, chatID, text, nil, false); err != nil {
			s.logger.WithFields(logging.Fields{
				"chat_id": chatID,
			}).WithError(err).Warn("user notification failed")
		}
	}
	return nil
}

// NotifyAdmins sends text to every admin. It fails only when no admin could
// be reached.
func (s *Sender) NotifyAdmins(ctx context.Context, text string) error {
	if s.audience == nil {
		return nil
	}

	admins, err := s.audience.AdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		return nil
	}

	delivered := 0
	for _, chatID := range admins {
		if err := s.sendText(ctx, chatID, text, nil, false); err != nil {
			s.logger.WithFields(logging.Fields{
				"chat_id": chatID,
			}).WithError(err).Warn("admin notification failed")
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("could not reach any of %d admins", len(admins))
	}
	return nil
}

// SendBroadcast delivers one announcement to one chat.
func (s *Sender) SendBroadcast(ctx context.Context, chatID int64, content broadcast.Content) error {
	switch {
	case content.PhotoID != "":
		_, err := s.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID,
			Photo:   &models.InputFileString{Data: content.PhotoID},
			Caption: content.Text,
		})
		return err
	case content.VideoID != "":
		_, err := s.api.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:  chatID,
			Video:   &models.InputFileString{Data: content.VideoID},
			Caption: content.Text,
		})
		return err
	default:
		return s.sendText(ctx, chatID, content.Text, nil, false)
	}
}

func (s *Sender) sendReply(ctx context.Context, chatID int64, reply menu.Reply) error {
	if err := s.sendText(ctx, chatID, reply.Text, reply.Keyboard, reply.HTML); err != nil {
		return err
	}

	if reply.AudioURL != "" {
		if _, err := s.api.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: chatID,
			Audio:  &models.InputFileString{Data: reply.AudioURL},
		}); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
	}
	return nil
}

func (s *Sender) sendText(ctx context.Context, chatID int64, text string, keyboard [][]string, html bool) error {
	if text == "" {
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if html {
		params.ParseMode = models.ParseModeHTML
	}
	if len(keyboard) > 0 {
		params.ReplyMarkup = replyKeyboard(keyboard)
	}

	if _, err := s.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func replyKeyboard(rows [][]string) *models.ReplyKeyboardMarkup {
	keyboard := make([][]models.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]models.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, models.KeyboardButton{Text: label})
		}
		keyboard = append(keyboard, buttons)
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard:       keyboard,
		ResizeKeyboard: true,
	}
}

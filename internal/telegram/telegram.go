// Package telegram connects the bot to the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bcnelson/facepoke-broker/internal/bot"
)

const (
	// pollTimeout is the long-poll timeout in seconds.
	pollTimeout = 60

	// shutdownGrace is how long in-flight handlers may keep running after
	// polling stops.
	shutdownGrace = 30 * time.Second
)

// botAPI is the subset of *tgbotapi.BotAPI the transport uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev bot.Event)
}

// Transport implements bot.Transport on top of the Bot API.
type Transport struct {
	api   botAPI
	log   *slog.Logger
	grace time.Duration
}

// New authenticates with token and returns the transport together with the
// bot's own username.
func New(token string, log *slog.Logger) (*Transport, string, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, "", fmt.Errorf("connecting to telegram: %w", err)
	}
	return &Transport{api: api, log: log, grace: shutdownGrace}, api.Self.UserName, nil
}

func chatID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}
	return id, nil
}

// Send delivers a text message with optional inline keyboard.
func (t *Transport) Send(ctx context.Context, userID string, msg bot.Message) error {
	id, err := chatID(userID)
	if err != nil {
		return err
	}
	if _, err := t.api.Send(messageConfig(id, msg)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendPhoto uploads the image at path.
func (t *Transport) SendPhoto(ctx context.Context, userID, path, caption string) error {
	id, err := chatID(userID)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := t.api.Send(photo); err != nil {
		return fmt.Errorf("sending photo: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// FileURL resolves a file ID into a download URL.
func (t *Transport) FileURL(ctx context.Context, fileID string) (string, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolving file %s: %w", fileID, err)
	}
	return url, nil
}

// Run polls for updates until ctx is cancelled. Each update is handled on
// its own goroutine. Handlers do not see ctx cancellation directly: once
// polling stops they get the grace period to finish and reply, then their
// context is cancelled. Run returns after every handler has returned.
func (t *Transport) Run(ctx context.Context, h Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := t.api.GetUpdatesChan(cfg)

	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHandlers()

	var g errgroup.Group

	t.log.Info("polling telegram for updates")
	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.drain(&g, cancelHandlers)
			return nil
		case u, ok := <-updates:
			if !ok {
				t.drain(&g, cancelHandlers)
				return nil
			}
			ev, ok := toEvent(u)
			if !ok {
				continue
			}
			g.Go(func() error {
				h.Handle(handlerCtx, ev)
				return nil
			})
		}
	}
}

// drain waits for in-flight handlers, cancelling them once the grace period
// has passed.
func (t *Transport) drain(g *errgroup.Group, cancel context.CancelFunc) {
	timer := time.AfterFunc(t.grace, func() {
		t.log.Warn("shutdown grace period elapsed, cancelling handlers", "grace", t.grace)
		cancel()
	})
	defer timer.Stop()
	_ = g.Wait()
}

// toEvent converts an update into a bot event. Updates the bot does not
// react to (edits, channel posts, messages without a sender) yield false.
func toEvent(u tgbotapi.Update) (bot.Event, bool) {
	if q := u.CallbackQuery; q != nil {
		if q.From == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			UserID:       strconv.FormatInt(q.From.ID, 10),
			Username:     q.From.UserName,
			CallbackID:   q.ID,
			CallbackData: q.Data,
		}, true
	}

	m := u.Message
	if m == nil || m.From == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		UserID:   strconv.FormatInt(m.From.ID, 10),
		Username: m.From.UserName,
	}
	switch {
	case m.IsCommand():
		ev.Command = m.Command()
		ev.Args = m.CommandArguments()
	case len(m.Photo) > 0:
		// The last size is the largest.
		ev.PhotoFileID = m.Photo[len(m.Photo)-1].FileID
	default:
		ev.Text = m.Text
	}
	return ev, true
}

func messageConfig(chatID int64, msg bot.Message) tgbotapi.MessageConfig {
	cfg := tgbotapi.NewMessage(chatID, msg.Text)
	cfg.DisableWebPagePreview = true
	if len(msg.Buttons) == 0 {
		return cfg
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action.String()))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	cfg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return cfg
}

// Package bot turns inbound chat events into key-service calls and session
// transitions, and renders the replies.
package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/session"
)

// Bot handles events for every user. It is safe for concurrent use.
type Bot struct {
	keys        *service.KeyService
	policy      *service.AccessPolicy
	sessions    *session.Machine
	transport   Transport
	log         *slog.Logger
	botUsername string
}

// New creates a Bot. botUsername is used to build activation deep links and
// may be empty.
func New(keys *service.KeyService, policy *service.AccessPolicy, sessions *session.Machine, transport Transport, log *slog.Logger, botUsername string) *Bot {
	return &Bot{
		keys:        keys,
		policy:      policy,
		sessions:    sessions,
		transport:   transport,
		log:         log,
		botUsername: strings.TrimPrefix(botUsername, "@"),
	}
}

// Handle processes one event. Failures are logged and reported to the user;
// nothing is returned to the caller.
func (b *Bot) Handle(ctx context.Context, ev Event) {
	switch {
	case ev.Command != "":
		b.handleCommand(ctx, ev)
	case ev.CallbackID != "":
		b.handleCallback(ctx, ev)
	case ev.PhotoFileID != "":
		b.handlePhoto(ctx, ev)
	default:
		b.handleText(ctx, ev)
	}
}

func (b *Bot) handleCommand(ctx context.Context, ev Event) {
	args := strings.TrimSpace(ev.Args)

	switch ev.Command {
	case "start":
		b.sessions.Cancel(ev.UserID)
		if args != "" {
			if err := b.keys.Redeem(ctx, args, ev.UserID, ev.Username); err != nil {
				b.fail(ctx, ev, "activating key", err)
				return
			}
			b.reply(ctx, ev.UserID, textActivated)
		}
		b.showMenu(ctx, ev.UserID)
	case "cancel":
		b.sessions.Cancel(ev.UserID)
		b.reply(ctx, ev.UserID, textCancelled)
		b.showMenu(ctx, ev.UserID)
	case "generate_key":
		b.adminCommand(ctx, ev, b.generateKey)
	case "keys":
		b.adminCommand(ctx, ev, b.listKeys)
	case "revoke":
		b.adminCommand(ctx, ev, b.revokeCommand(args, textUsageRevoke, b.keys.Revoke))
	case "revoke_user":
		b.adminCommand(ctx, ev, b.revokeCommand(args, textUsageRevokeUser, b.keys.RevokeByOwner))
	case "revoke_key":
		b.adminCommand(ctx, ev, b.revokeCommand(args, textUsageRevokeKey, b.keys.RevokeBySecret))
	default:
		b.reply(ctx, ev.UserID, textUnknownCommand)
	}
}

func (b *Bot) handleCallback(ctx context.Context, ev Event) {
	action, err := ParseAction(ev.CallbackData)
	if err != nil {
		b.log.Warn("bad callback data", "user_id", ev.UserID, "data", ev.CallbackData, "error", err)
		b.answer(ctx, ev.CallbackID, "")
		return
	}

	switch action.Kind {
	case ActionMenu, ActionBack:
		b.answer(ctx, ev.CallbackID, "")
		b.sessions.Cancel(ev.UserID)
		b.showMenu(ctx, ev.UserID)
	case ActionStart:
		b.answer(ctx, ev.CallbackID, "")
		b.startFlow(ctx, ev)
	case ActionCancel:
		b.answer(ctx, ev.CallbackID, "")
		b.sessions.Cancel(ev.UserID)
		if b.policy.IsAdmin(ev.UserID) {
			b.showAdminPanel(ctx, ev.UserID)
			return
		}
		b.showMenu(ctx, ev.UserID)
	case ActionAdmin:
		b.adminCallback(ctx, ev, b.showAdminPanel)
	case ActionGenerateKey:
		b.adminCallback(ctx, ev, func(ctx context.Context, userID string) { b.generateKey(ctx, ev) })
	case ActionRevokeMenu:
		b.adminCallback(ctx, ev, b.showRevokeMenu)
	case ActionListKeys:
		b.adminCallback(ctx, ev, func(ctx context.Context, userID string) { b.listKeys(ctx, ev) })
	case ActionRevoke:
		b.revokeByPrefix(ctx, ev, action.Prefix)
	}
}

// fail reports err to the user and logs anything that is not an expected
// domain outcome.
func (b *Bot) fail(ctx context.Context, ev Event, op string, err error) {
	text, expected := userMessage(err)
	if expected {
		b.log.Info(op+" rejected", "user_id", ev.UserID, "reason", err)
	} else {
		b.log.Error(op+" failed", "user_id", ev.UserID, "error", err)
	}
	b.reply(ctx, ev.UserID, text)
}

func (b *Bot) reply(ctx context.Context, userID, text string, rows ...[]Button) {
	if err := b.transport.Send(ctx, userID, Message{Text: text, Buttons: rows}); err != nil {
		b.log.Error("sending message", "user_id", userID, "error", err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.transport.AnswerCallback(ctx, callbackID, text); err != nil {
		b.log.Warn("answering callback", "callback_id", callbackID, "error", err)
	}
}

func (b *Bot) showMenu(ctx context.Context, userID string) {
	row := []Button{{Label: labelGenerate, Action: Action{Kind: ActionStart}}}
	if b.policy.IsAdmin(userID) {
		row = append([]Button{{Label: labelControlPanel, Action: Action{Kind: ActionAdmin}}}, row...)
	}
	b.reply(ctx, userID, textWelcome, row)
}

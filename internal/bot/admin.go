package bot

import (
	"context"
	"errors"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/service"
)

// adminCommand runs fn only for admins. The check happens before any
// storage access.
func (b *Bot) adminCommand(ctx context.Context, ev Event, fn func(context.Context, Event)) {
	if err := b.policy.RequireAdmin(ev.UserID); err != nil {
		b.log.Warn("admin command denied", "user_id", ev.UserID, "command", ev.Command)
		b.reply(ctx, ev.UserID, textAccessDenied)
		return
	}
	fn(ctx, ev)
}

// adminCallback answers a denied button press silently with a toast.
func (b *Bot) adminCallback(ctx context.Context, ev Event, fn func(context.Context, string)) {
	if err := b.policy.RequireAdmin(ev.UserID); err != nil {
		b.log.Warn("admin action denied", "user_id", ev.UserID, "data", ev.CallbackData)
		b.answer(ctx, ev.CallbackID, textAccessDenied)
		return
	}
	b.answer(ctx, ev.CallbackID, "")
	fn(ctx, ev.UserID)
}

func (b *Bot) showAdminPanel(ctx context.Context, userID string) {
	b.reply(ctx, userID, textAdminPanel,
		[]Button{
			{Label: labelCreateKey, Action: Action{Kind: ActionGenerateKey}},
			{Label: labelRemoveAccess, Action: Action{Kind: ActionRevokeMenu}},
		},
		[]Button{{Label: labelKeyList, Action: Action{Kind: ActionListKeys}}},
		[]Button{{Label: labelBack, Action: Action{Kind: ActionBack}}},
	)
}

func (b *Bot) generateKey(ctx context.Context, ev Event) {
	key, err := b.keys.Generate(ctx)
	if err != nil {
		b.fail(ctx, ev, "generating key", err)
		return
	}
	b.reply(ctx, ev.UserID, newKeyText(b.botUsername, key))
}

func (b *Bot) listKeys(ctx context.Context, ev Event) {
	keys, err := b.keys.ListAll(ctx)
	if err != nil {
		b.fail(ctx, ev, "listing keys", err)
		return
	}
	if len(keys) == 0 {
		b.reply(ctx, ev.UserID, textNoKeys)
		return
	}
	b.reply(ctx, ev.UserID, keyListText(keys),
		[]Button{{Label: labelCancel, Action: Action{Kind: ActionCancel}}})
}

func (b *Bot) showRevokeMenu(ctx context.Context, userID string) {
	keys, err := b.keys.ListAll(ctx)
	if err != nil {
		b.fail(ctx, Event{UserID: userID}, "listing keys", err)
		return
	}
	rows := make([][]Button, 0, len(keys)+1)
	for _, k := range keys {
		rows = append(rows, []Button{{
			Label:  revokeButtonLabel(k),
			Action: Action{Kind: ActionRevoke, Prefix: k.ShortHash()},
		}})
	}
	rows = append(rows, []Button{{Label: labelCancel, Action: Action{Kind: ActionCancel}}})
	b.reply(ctx, userID, textRevokeMenu, rows...)
}

// revokeByPrefix deactivates an owned key or deletes a free one, then
// re-renders the revoke menu.
func (b *Bot) revokeByPrefix(ctx context.Context, ev Event, prefix string) {
	if err := b.policy.RequireAdmin(ev.UserID); err != nil {
		b.log.Warn("admin action denied", "user_id", ev.UserID, "data", ev.CallbackData)
		b.answer(ctx, ev.CallbackID, textAccessDenied)
		return
	}

	action, err := b.keys.RevokeByPrefix(ctx, prefix)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
		text, _ := userMessage(domain.ErrNotFound)
		b.answer(ctx, ev.CallbackID, text)
		return
	case err != nil:
		b.answer(ctx, ev.CallbackID, "")
		b.fail(ctx, ev, "revoking key", err)
		return
	}

	switch action {
	case service.RevokeDeactivated:
		b.answer(ctx, ev.CallbackID, textKeyDeactivated)
	case service.RevokeDeleted:
		b.answer(ctx, ev.CallbackID, textKeyDeleted)
	default:
		b.answer(ctx, ev.CallbackID, textNothingToRevoke)
	}
	b.showRevokeMenu(ctx, ev.UserID)
}

type revokeFunc func(ctx context.Context, arg string) (bool, error)

func (b *Bot) revokeCommand(arg, usage string, revoke revokeFunc) func(context.Context, Event) {
	return func(ctx context.Context, ev Event) {
		if arg == "" {
			b.reply(ctx, ev.UserID, usage)
			return
		}
		changed, err := revoke(ctx, arg)
		if err != nil {
			b.fail(ctx, ev, "revoking access", err)
			return
		}
		if !changed {
			b.reply(ctx, ev.UserID, textNothingToRevoke)
			return
		}
		b.reply(ctx, ev.UserID, textRevoked)
	}
}

package bot

import (
	"context"

	"github.com/bcnelson/facepoke-broker/internal/domain"
	"github.com/bcnelson/facepoke-broker/internal/session"
)

var cancelRow = []Button{{Label: labelCancel, Action: Action{Kind: ActionBack}}}

func (b *Bot) startFlow(ctx context.Context, ev Event) {
	res, err := b.sessions.Start(ctx, ev.UserID)
	if err != nil {
		b.fail(ctx, ev, "starting session", err)
		return
	}
	if res.Outcome == session.OutcomeDenied {
		b.log.Info("generate denied", "user_id", ev.UserID)
		b.reply(ctx, ev.UserID, textNoKey)
		return
	}
	b.reply(ctx, ev.UserID, textSendSource, cancelRow)
}

func (b *Bot) handlePhoto(ctx context.Context, ev Event) {
	// Skip the file lookup for users who are not in a flow.
	if !b.sessions.Get(ev.UserID).State.Awaiting() {
		return
	}

	url, err := b.transport.FileURL(ctx, ev.PhotoFileID)
	if err != nil {
		b.fail(ctx, ev, "resolving photo", err)
		return
	}

	res, err := b.sessions.Photo(ctx, ev.UserID, url, func() {
		b.reply(ctx, ev.UserID, textGenerating)
	})
	if err != nil {
		b.fail(ctx, ev, "handling photo", err)
		return
	}

	switch res.Outcome {
	case session.OutcomeDenied:
		b.reply(ctx, ev.UserID, textNoKey)
	case session.OutcomeAwaitingExpression:
		b.reply(ctx, ev.UserID, textSendExpression, cancelRow)
	case session.OutcomeCompleted:
		if err := b.transport.SendPhoto(ctx, ev.UserID, res.Job.ImagePath, textDone); err != nil {
			b.log.Error("sending result", "user_id", ev.UserID, "job_id", res.Job.ID, "error", err)
		}
	case session.OutcomeFailed:
		text, _ := userMessage(domain.ErrRemoteService)
		b.reply(ctx, ev.UserID, text)
	}
}

func (b *Bot) handleText(ctx context.Context, ev Event) {
	if res := b.sessions.Text(ev.UserID); res.Outcome == session.OutcomeStillWaiting {
		b.reply(ctx, ev.UserID, textStillWaiting, cancelRow)
	}
}

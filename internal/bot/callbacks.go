package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/triage"
)

// handleCallback routes inline button presses. Callback data is
// "verb:args...": triage:<action>:<post-id>, vault:<status>:<page>,
// view:<post-id>.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Send(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	parts := strings.SplitN(cb.Data, ":", 3)
	b.log.Debug("callback", "data", cb.Data, "user_id", cb.From.ID)

	switch parts[0] {
	case "triage":
		if len(parts) != 3 {
			return
		}
		b.applyTriage(ctx, cb, model.Action(parts[1]), parts[2])
	case "vault":
		if len(parts) != 3 {
			return
		}
		b.turnVaultPage(ctx, cb, parts[1], parts[2])
	case "view":
		if len(parts) < 2 {
			return
		}
		b.showPost(ctx, chatID, parts[1])
	}
}

// applyTriage feeds a button press through the state machine and edits the
// notification in place to show the outcome. Repeat presses are no-ops and
// still confirm.
func (b *Bot) applyTriage(ctx context.Context, cb *tgbotapi.CallbackQuery, action model.Action, postID string) {
	chatID := cb.Message.Chat.ID

	status, err := b.triage.Apply(ctx, postID, action, cb.From.ID)
	switch {
	case errors.Is(err, triage.ErrUnauthorized):
		b.log.Warn("unauthorized triage", "user_id", cb.From.ID, "post_id", postID)
		return
	case errors.Is(err, triage.ErrNotFound):
		b.editMessage(chatID, cb.Message.MessageID, "Post not found.")
		return
	case errors.Is(err, triage.ErrErasedLocked):
		b.reply(chatID, "That post was erased and cannot be re-triaged.")
		return
	case err != nil:
		b.log.Error("apply triage", "post_id", postID, "action", action, "error", err)
		b.reply(chatID, "Triage failed, press the button again.")
		return
	}

	b.editMessage(chatID, cb.Message.MessageID,
		cb.Message.Text+"\n\n"+statusBadge(status))
}

func (b *Bot) turnVaultPage(ctx context.Context, cb *tgbotapi.CallbackQuery, view, pageArg string) {
	status, err := parseView(view)
	if err != nil {
		return
	}
	page := parsePage(pageArg)

	posts, err := b.vault.ListByStatus(ctx, status, page)
	if err != nil {
		b.log.Error("list vault", "status", status, "error", err)
		return
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(
		cb.Message.Chat.ID, cb.Message.MessageID,
		FormatVaultPage(status, page, posts),
		vaultKeyboard(status, page, posts),
	)
	edit.DisableWebPagePreview = true
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("edit vault page", "error", err)
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("edit message", "error", err)
	}
}

func statusBadge(status model.Status) string {
	switch status {
	case model.StatusApproved:
		return "✅ Approved"
	case model.StatusArchived:
		return "📁 Archived"
	case model.StatusErased:
		return "❌ Erased"
	default:
		return "⏳ Pending"
	}
}

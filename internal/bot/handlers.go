package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, "Watchtower is running.\n"+
		"New posts from your monitored sources arrive here with triage buttons.\n"+
		"Use /help for vault commands.")
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/approved [page] - browse approved posts
/archived [page] - browse archived posts
/pending [page] - posts awaiting triage
/search <keywords> - search the vault
/stats - post counts by status
/sources - monitored sources and their state
/resume <source-id> - resume a paused source`)
}

func (b *Bot) handleVaultList(ctx context.Context, chatID int64, view string, args string) {
	status, err := parseView(view)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	page := parsePage(args)

	posts, err := b.vault.ListByStatus(ctx, status, page)
	if err != nil {
		b.log.Error("list vault", "status", status, "error", err)
		b.reply(chatID, "Could not load the vault, try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatVaultPage(status, page, posts))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = vaultKeyboard(status, page, posts)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send vault page", "error", err)
	}
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /search <keywords>")
		return
	}
	posts, err := b.vault.Search(ctx, args)
	if err != nil {
		b.log.Error("search vault", "error", err)
		b.reply(chatID, "Search failed, try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatSearchResults(args, posts))
	msg.DisableWebPagePreview = true
	if kb, ok := postPickKeyboard(posts); ok {
		msg.ReplyMarkup = kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send search results", "error", err)
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	counts, err := b.vault.Stats(ctx)
	if err != nil {
		b.log.Error("vault stats", "error", err)
		b.reply(chatID, "Could not compute stats, try again later.")
		return
	}
	b.reply(chatID, FormatStats(counts))
}

func (b *Bot) handleSources(ctx context.Context, chatID int64) {
	sources, err := b.reg.List(ctx)
	if err != nil {
		b.log.Error("list sources", "error", err)
		b.reply(chatID, "Could not load sources, try again later.")
		return
	}
	b.reply(chatID, FormatSourceList(sources))
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /resume <source-id> (see /sources)")
		return
	}
	if err := b.reg.Resume(ctx, args); err != nil {
		b.log.Error("resume source", "source_id", args, "error", err)
		b.reply(chatID, "Could not resume "+args+". Check the ID with /sources.")
		return
	}
	b.reply(chatID, "Resumed "+args+". It will be polled on its next tick.")
}

// showPost sends the vault detail card for a post, with triage buttons so a
// filed post can be re-triaged.
func (b *Bot) showPost(ctx context.Context, chatID int64, postID string) {
	post, err := b.vault.Get(ctx, postID)
	if err != nil {
		b.reply(chatID, "Post not found.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, FormatPostDetail(post))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = triageKeyboard(post)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send post detail", "error", err)
	}
}

func vaultKeyboard(status model.Status, page int, posts []model.Post) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	if kb, ok := postPickKeyboard(posts); ok {
		rows = append(rows, kb.InlineKeyboard...)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("◀ Prev", pageCallback(status, page-1)))
	}
	if len(posts) == fullPage {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ▶", pageCallback(status, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	if len(rows) == 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", pageCallback(status, 1))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// postPickKeyboard renders one numbered button per listed post, opening its
// detail card.
func postPickKeyboard(posts []model.Post) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(posts) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, p := range posts {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			itoa(i+1), "view:"+p.ID))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

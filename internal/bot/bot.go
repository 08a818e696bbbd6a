// Package bot is the Telegram adapter: it delivers triage notifications,
// receives triage button presses, and serves vault queries as commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/registry"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/triage"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/vault"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot handles the single configured recipient's commands and button presses.
type Bot struct {
	api         telegramAPI
	vault       *vault.Service
	triage      *triage.Machine
	reg         *registry.Registry
	recipientID int64
	log         *slog.Logger
}

// New creates a Bot with the given Telegram token.
func New(token string, vaultSvc *vault.Service, machine *triage.Machine, reg *registry.Registry, recipientID int64, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Bot{
		api:         api,
		vault:       vaultSvc,
		triage:      machine,
		reg:         reg,
		recipientID: recipientID,
		log:         log,
	}, nil
}

// SetRegistry attaches the source registry after construction. The registry
// alerts through the bot, so the two are wired in two steps.
func (b *Bot) SetRegistry(reg *registry.Registry) {
	b.reg = reg
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.From.ID != b.recipientID {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "approved":
		b.handleVaultList(ctx, chatID, "approved", args)
	case "archived":
		b.handleVaultList(ctx, chatID, "archived", args)
	case "pending":
		b.handleVaultList(ctx, chatID, "pending", args)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "stats":
		b.handleStats(ctx, chatID)
	case "sources":
		b.handleSources(ctx, chatID)
	case "resume":
		b.handleResume(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

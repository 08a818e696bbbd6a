package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
)

// mediaCap limits how many assets are embedded per notification album.
const mediaCap = 4

// DeliveryError classifies a failed notification send. Transient failures
// were already retried with backoff; fatal failures (malformed payload) are
// not retried, and the post stays pending either way.
type DeliveryError struct {
	Fatal bool
	Err   error
}

func (e *DeliveryError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("delivery fatal: %v", e.Err)
	}
	return fmt.Sprintf("delivery transient: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Deliver sends the triage notification for a new post to the recipient:
// caption text, source attribution, link, an album of downloaded media, and
// the three triage buttons keyed by the post's ID.
func (b *Bot) Deliver(ctx context.Context, post *model.Post, sourceName string) error {
	if len(post.Media) > 0 {
		if err := b.sendAlbum(ctx, post); err != nil {
			// The text card still carries the permalink, so a failed
			// album degrades the notification instead of dropping it.
			b.log.Warn("send media album", "post_id", post.ID, "error", err)
		}
	}

	msg := tgbotapi.NewMessage(b.recipientID, FormatNotification(post, sourceName))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = triageKeyboard(post)

	return b.sendRetry(ctx, func() error {
		_, err := b.api.Send(msg)
		return err
	})
}

// Alert delivers an operator alert; failures are logged, never escalated,
// so a broken channel cannot take the pipeline down with it.
func (b *Bot) Alert(ctx context.Context, text string) {
	err := b.sendRetry(ctx, func() error {
		msg := tgbotapi.NewMessage(b.recipientID, "⚠️ "+text)
		_, err := b.api.Send(msg)
		return err
	})
	if err != nil {
		b.log.Error("send alert", "error", err)
	}
}

func (b *Bot) sendAlbum(ctx context.Context, post *model.Post) error {
	media := post.Media
	if len(media) > mediaCap {
		media = media[:mediaCap]
	}

	files := make([]interface{}, 0, len(media))
	for _, m := range media {
		if strings.HasSuffix(m.LocalPath, ".mp4") {
			files = append(files, tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(m.LocalPath)))
		} else {
			files = append(files, tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(m.LocalPath)))
		}
	}

	group := tgbotapi.NewMediaGroup(b.recipientID, files)
	return b.sendRetry(ctx, func() error {
		_, err := b.api.SendMediaGroup(group)
		return err
	})
}

// sendRetry retries transient Telegram failures with exponential backoff and
// classifies the final outcome as a DeliveryError.
func (b *Bot) sendRetry(ctx context.Context, send func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := send(); err != nil {
			if transientSendErr(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return &DeliveryError{Fatal: !transientSendErr(err), Err: err}
	}
	return nil
}

// transientSendErr reports whether a Telegram send failure is worth
// retrying: rate limits, server errors, and plain transport errors are;
// anything the API rejected outright (bad payload) is not.
func transientSendErr(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == 429 || tgErr.Code >= 500
	}
	return true
}

func triageKeyboard(post *model.Post) tgbotapi.InlineKeyboardMarkup {
	actions := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "triage:approve:"+post.ID),
		tgbotapi.NewInlineKeyboardButtonData("📁 Archive", "triage:archive:"+post.ID),
		tgbotapi.NewInlineKeyboardButtonData("❌ Erase", "triage:erase:"+post.ID),
	)
	if post.URL != "" {
		return tgbotapi.NewInlineKeyboardMarkup(
			actions,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("📖 Open", post.URL)),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(actions)
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/reportcloud/relaybot/internal/fileid"
	"github.com/reportcloud/relaybot/internal/telegram/model"
	"github.com/reportcloud/relaybot/library/log"
)

// resolveRecord turns a raw token from any entry channel into the
// recorded artifact. The codec's shape check runs first so junk text
// is rejected before touching the store; the lookup itself uses the
// raw token as key, which also keeps legacy-scheme identifiers
// resolvable.
func (s *Telegram) resolveRecord(ctx context.Context, raw string) (*model.Artifact, error) {
	token := strings.TrimSpace(raw)
	if _, err := fileid.Decode(token); err != nil {
		return nil, errors.WithStack(err)
	}

	art, err := s.store.GetArtifact(ctx, token)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return art, nil
}

// deliverToken resolves raw and sends the artifact (or the matching
// user-facing error) to the requester.
func (s *Telegram) deliverToken(ctx context.Context, c tb.Context, raw string) error {
	art, err := s.resolveRecord(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, fileid.ErrMalformed):
			return s.reply(c, "❌ Invalid file ID.")
		case errors.Is(err, model.ErrNotFound):
			return s.reply(c, "❌ No file found for this ID.")
		default:
			log.Logger.Error("resolve token", zap.Error(err))
			return s.reply(c, "❌ Failed to fetch file.")
		}
	}

	if err = s.deliver(c, art); err != nil {
		log.Logger.Error("deliver artifact",
			zap.Error(err),
			zap.String("file_id", art.FileID))
		return s.reply(c, "❌ Failed to fetch file.")
	}

	return nil
}

// deliver re-serves the artifact. Relay re-delivery is preferred since
// it is lossless for the original media kind; the direct-download URL
// is appended when a local copy exists, and used alone when the relay
// copy is unavailable.
func (s *Telegram) deliver(c tb.Context, art *model.Artifact) error {
	var relayErr error
	if art.HasRelayRef() {
		_, relayErr = s.bot.Copy(c.Sender(), tb.StoredMessage{
			MessageID: strconv.Itoa(art.RelayMessageID),
			ChatID:    s.cfg.ArchiveChatID,
		})
		if relayErr != nil {
			log.Logger.Warn("relay re-delivery failed, trying direct url",
				zap.Error(relayErr),
				zap.String("file_id", art.FileID))
		}
	}

	url := s.directURL(art)
	if relayErr == nil && art.HasRelayRef() {
		if url != "" {
			return s.reply(c, fmt.Sprintf("⬇️ *Direct Download:* %s", url))
		}
		return nil
	}

	if url != "" {
		return s.reply(c, fmt.Sprintf("⬇️ *Direct Download:* %s", url))
	}

	if relayErr != nil {
		return errors.Wrap(relayErr, "relay re-delivery")
	}

	return errors.Errorf("artifact %q has no relay reference and no local copy", art.FileID)
}

// directURL builds the static download URL for the artifact's local
// copy, or "" when direct downloads do not apply.
func (s *Telegram) directURL(art *model.Artifact) string {
	if art.LocalPath == "" || s.cfg.DownloadBaseURL == "" {
		return ""
	}

	return strings.TrimSuffix(s.cfg.DownloadBaseURL, "/") + "/" + art.LocalPath
}

func (s *Telegram) handleGet(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		s.registerUser(ctx, c.Sender().ID)

		token := strings.TrimSpace(c.Message().Payload)
		if token == "" {
			return s.reply(c, "Usage: /get <FileID>")
		}

		return s.deliverToken(ctx, c, token)
	}
}

// handleBareToken serves the third entry channel: a plain text message
// whose entire content is a file id. Unknown slash commands also land
// here and get a hint instead of a token lookup.
func (s *Telegram) handleBareToken(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		m := c.Message()
		if m.Sender == nil || m.Sender.IsBot {
			return nil
		}
		s.registerUser(ctx, m.Sender.ID)

		if strings.HasPrefix(strings.TrimSpace(m.Text), "/") {
			return s.reply(c, "❓ Unknown command. Use /help.")
		}

		return s.deliverToken(ctx, c, m.Text)
	}
}

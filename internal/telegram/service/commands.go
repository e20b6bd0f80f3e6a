package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/reportcloud/relaybot/library/log"
)

const myFilesLimit = 50

func (s *Telegram) handleStart(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		s.registerUser(ctx, c.Sender().ID)

		// deep-link entry: /start <FileID>
		if token := strings.TrimSpace(c.Message().Payload); token != "" {
			return s.deliverToken(ctx, c, token)
		}

		return s.reply(c, "👋 *Welcome to Report Cloud Storage!*\n\n"+
			"📁 Upload any file and receive a unique *File ID*.\n"+
			"🔗 Retrieve files anytime using the File ID or deep link.\n\n"+
			"*Commands:*\n"+
			"• /help – How to use\n"+
			"• /get – Fetch a file by ID\n"+
			"• /myfiles – Your uploads\n"+
			"• /stats – Storage stats\n"+
			"• /announce – (Admin only) Broadcast message")
	}
}

func (s *Telegram) handleHelp(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		s.registerUser(ctx, c.Sender().ID)

		return s.reply(c, fmt.Sprintf("📖 *How to Use:*\n\n"+
			"1️⃣ Send any file (document, photo, video, etc).\n"+
			"2️⃣ Receive a *File ID* and copyable *Deep Link*.\n"+
			"3️⃣ Retrieve your file: `https://t.me/%s?start=<FileID>`,\n"+
			"    or send the File ID as a message, or use /get <FileID>.\n"+
			"4️⃣ Broadcast message (Admin only): Reply to a message and type /announce",
			s.bot.Me.Username))
	}
}

func (s *Telegram) handleStats(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		s.registerUser(ctx, c.Sender().ID)

		// counts are derived from the store, so they survive restarts
		files, err := s.store.CountArtifacts(ctx)
		if err != nil {
			log.Logger.Error("count artifacts", zap.Error(err))
			return s.reply(c, "❌ Stats unavailable, please retry.")
		}
		users, err := s.store.CountUsers(ctx)
		if err != nil {
			log.Logger.Error("count users", zap.Error(err))
			return s.reply(c, "❌ Stats unavailable, please retry.")
		}

		return s.reply(c, fmt.Sprintf(
			"📊 *Total files:* %d\n👥 *Total users:* %d", files, users))
	}
}

func (s *Telegram) handleMyFiles(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		uid := c.Sender().ID
		s.registerUser(ctx, uid)

		arts, err := s.store.ListArtifactsByUploader(ctx, uid)
		if err != nil {
			log.Logger.Error("list artifacts", zap.Error(err), zap.Int64("uid", uid))
			return s.reply(c, "❌ Could not load your files, please retry.")
		}
		if len(arts) == 0 {
			return s.reply(c, "You have not uploaded any files yet.")
		}

		var b strings.Builder
		fmt.Fprintf(&b, "🗂 *Your files* (%d):\n", len(arts))
		shown := arts
		if len(shown) > myFilesLimit {
			shown = shown[len(shown)-myFilesLimit:]
			fmt.Fprintf(&b, "_showing the most recent %d_\n", myFilesLimit)
		}
		for _, a := range shown {
			fmt.Fprintf(&b, "• `%s` - %s, %s\n",
				a.FileID, escapeMsg(a.FileName), FormatFileSize(a.FileSize))
		}

		return s.reply(c, b.String())
	}
}

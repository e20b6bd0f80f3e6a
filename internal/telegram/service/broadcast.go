package service

import (
	"context"
	"fmt"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	tb "gopkg.in/telebot.v3"

	"github.com/reportcloud/relaybot/library/log"
	"github.com/reportcloud/relaybot/library/throttle"
)

func (s *Telegram) handleAnnounce(ctx context.Context) tb.HandlerFunc {
	return func(c tb.Context) error {
		m := c.Message()
		s.registerUser(ctx, m.Sender.ID)

		if m.Sender.ID != s.cfg.AdminUID {
			return s.reply(c, "❌ You are not authorized.")
		}
		if m.ReplyTo == nil {
			return s.reply(c, "❌ Reply to a message to announce it.")
		}

		users, err := s.store.ListUsers(ctx)
		if err != nil {
			log.Logger.Error("list users for announce", zap.Error(err))
			return s.reply(c, "❌ Failed to load recipients, please retry.")
		}
		if len(users) == 0 {
			return s.reply(c, "❌ No users found.")
		}

		jobID := uuid.NewString()
		logger := log.Logger.With(zap.String("announce_job", jobID))
		logger.Info("announce started", zap.Int("recipients", len(users)))

		var lim broadcastLimiter
		if s.limiter != nil {
			lim = s.limiter
		}
		sent, failed := broadcastTally(ctx, users, lim, func(uid int64) error {
			_, err := s.bot.Copy(&tb.User{ID: uid}, m.ReplyTo)
			return errors.Wrapf(err, "copy announcement to %d", uid)
		}, logger)

		logger.Info("announce finished",
			zap.Int("sent", sent), zap.Int("failed", failed))
		return s.reply(c, fmt.Sprintf(
			"✅ Sent to %d users.\n❌ Failed for %d users.", sent, failed))
	}
}

// broadcastLimiter hands out delivery slots; satisfied by
// *throttle.Broadcast.
type broadcastLimiter interface {
	Wait(ctx context.Context) error
}

var _ broadcastLimiter = (*throttle.Broadcast)(nil)

// broadcastTally sends to each recipient in turn through the limiter.
// One recipient failing must not stop the rest; every failure is
// isolated and counted.
func broadcastTally(ctx context.Context, users []int64,
	limiter broadcastLimiter, send func(uid int64) error,
	logger glog.Logger,
) (sent, failed int) {
	for i, uid := range users {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				logger.Warn("broadcast aborted", zap.Error(err))
				failed += len(users) - i
				return sent, failed
			}
		}

		if err := send(uid); err != nil {
			logger.Warn("deliver announcement", zap.Error(err), zap.Int64("uid", uid))
			failed++
			continue
		}
		sent++
	}

	return sent, failed
}

// Package service is the telegram file-relay bot.
package service

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	tb "gopkg.in/telebot.v3"

	"github.com/reportcloud/relaybot/internal/telegram/dao"
	"github.com/reportcloud/relaybot/library/log"
	"github.com/reportcloud/relaybot/library/throttle"
)

// Config wiring for the bot service.
type Config struct {
	Token  string
	APIURL string
	// ArchiveChatID is the relay destination every upload is copied to.
	ArchiveChatID int64
	AdminUID      int64

	DownloadEnabled bool
	DownloadDir     string
	DownloadBaseURL string
}

// Telegram client
type Telegram struct {
	stop chan struct{}
	bot  *tb.Bot

	store   dao.Store
	limiter *throttle.Broadcast
	cfg     Config
}

// New create new telegram client and start polling.
func New(ctx context.Context, store dao.Store, limiter *throttle.Broadcast, cfg Config) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.Errorf("telegram token is required")
	}
	if cfg.ArchiveChatID == 0 {
		return nil, errors.Errorf("archive chat id is required")
	}

	bot, err := tb.NewBot(tb.Settings{
		Token: cfg.Token,
		URL:   cfg.APIURL,
		Poller: &tb.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "new telegram bot")
	}

	tel := &Telegram{
		stop:    make(chan struct{}),
		bot:     bot,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
	}

	tel.registerHandlers(ctx)

	go bot.Start()
	go func() {
		select {
		case <-ctx.Done():
		case <-tel.stop:
		}
		bot.Stop()
	}()

	log.Logger.Info("telegram bot started", zap.String("username", bot.Me.Username))
	return tel, nil
}

func (s *Telegram) registerHandlers(ctx context.Context) {
	s.bot.Handle("/start", s.handleStart(ctx))
	s.bot.Handle("/help", s.handleHelp(ctx))
	s.bot.Handle("/stats", s.handleStats(ctx))
	s.bot.Handle("/myfiles", s.handleMyFiles(ctx))
	s.bot.Handle("/get", s.handleGet(ctx))
	s.bot.Handle("/announce", s.handleAnnounce(ctx))

	for _, endpoint := range []string{
		tb.OnDocument,
		tb.OnPhoto,
		tb.OnVideo,
		tb.OnAudio,
		tb.OnVoice,
		tb.OnVideoNote,
		tb.OnAnimation,
		tb.OnSticker,
	} {
		s.bot.Handle(endpoint, s.handleUpload(ctx))
	}

	s.bot.Handle(tb.OnText, s.handleBareToken(ctx))
}

// Stop stop telegram polling
func (s *Telegram) Stop() {
	s.stop <- struct{}{}
}

// BotUsername the bot's public username, used for deep links.
func (s *Telegram) BotUsername() string {
	return s.bot.Me.Username
}

// registerUser records the sender in the user registry. Every observed
// interaction counts, so failures only get logged.
func (s *Telegram) registerUser(ctx context.Context, uid int64) {
	if err := s.store.SaveUser(ctx, uid); err != nil {
		log.Logger.Error("save user", zap.Error(err), zap.Int64("uid", uid))
	}
}

func (s *Telegram) reply(c tb.Context, msg string) error {
	if err := c.Send(msg, &tb.SendOptions{
		ParseMode:             tb.ModeMarkdown,
		DisableWebPagePreview: true,
	}); err != nil {
		log.Logger.Error("send msg by telegram", zap.Error(err))
		return errors.Wrap(err, "send msg")
	}

	return nil
}

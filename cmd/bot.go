package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reportcloud/relaybot/internal/telegram/dao"
	"github.com/reportcloud/relaybot/internal/telegram/service"
	"github.com/reportcloud/relaybot/internal/web"
	"github.com/reportcloud/relaybot/library/log"
	"github.com/reportcloud/relaybot/library/throttle"
)

var botCMD = &cobra.Command{
	Use:   "bot",
	Short: "bot",
	Long:  `run the telegram file relay bot`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(context.Background(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		runBot()
	},
}

func init() {
	rootCMD.AddCommand(botCMD)
}

func runBot() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// missing credential is the one fatal misconfiguration: refuse to
	// start rather than run degraded
	token := gconfig.Shared.GetString("settings.telegram.token")
	if token == "" {
		log.Logger.Panic("settings.telegram.token is not set")
	}

	store, err := dao.New(ctx)
	if err != nil {
		log.Logger.Panic("open store", zap.Error(err))
	}
	defer store.Close(ctx)

	limiter, err := throttle.NewBroadcast(ctx, broadcastCfg())
	if err != nil {
		log.Logger.Panic("new broadcast throttle", zap.Error(err))
	}

	svcCfg := service.Config{
		Token:           token,
		APIURL:          gconfig.Shared.GetString("settings.telegram.api"),
		ArchiveChatID:   gconfig.Shared.GetInt64("settings.telegram.archive_chat"),
		AdminUID:        gconfig.Shared.GetInt64("settings.telegram.admin_uid"),
		DownloadEnabled: gconfig.Shared.GetBool("settings.download.enabled"),
		DownloadDir:     gconfig.Shared.GetString("settings.download.dir"),
		DownloadBaseURL: gconfig.Shared.GetString("settings.download.base_url"),
	}
	if svcCfg.DownloadEnabled {
		if err = os.MkdirAll(svcCfg.DownloadDir, 0o755); err != nil {
			log.Logger.Panic("create download dir", zap.Error(err),
				zap.String("dir", svcCfg.DownloadDir))
		}
	}

	// the bot stops itself when ctx is cancelled
	if _, err = service.New(ctx, store, limiter, svcCfg); err != nil {
		log.Logger.Panic("new telegram service", zap.Error(err))
	}

	var pool errgroup.Group
	if svcCfg.DownloadEnabled {
		pool.Go(func() error {
			return web.RunServer(ctx,
				gconfig.Shared.GetString("listen"), svcCfg.DownloadDir)
		})
	}
	pool.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err = pool.Wait(); err != nil {
		log.Logger.Panic("serve", zap.Error(err))
	}
}

func broadcastCfg() *throttle.BroadcastCfg {
	cfg := &throttle.BroadcastCfg{
		NPerSec: gconfig.Shared.GetInt("settings.broadcast.per_sec"),
		Burst:   gconfig.Shared.GetInt("settings.broadcast.burst"),
	}
	if cfg.NPerSec <= 0 {
		cfg.NPerSec = 20
	}
	if cfg.Burst < cfg.NPerSec {
		cfg.Burst = cfg.NPerSec
	}

	return cfg
}

// Package web serves direct downloads of locally persisted artifacts.
package web

import (
	"context"
	"net/http"

	ginMw "github.com/Laisky/gin-middlewares/v7"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/reportcloud/relaybot/library/log"
)

// NewServer builds the router serving health checks and the static
// download endpoint backed by downloadDir.
func NewServer(downloadDir string) *gin.Engine {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	server := gin.New()
	server.Use(
		gin.Recovery(),
		ginMw.NewLoggerMiddleware(
			ginMw.WithLoggerMwColored(),
			ginMw.WithLevel(log.Logger.Level().String()),
			ginMw.WithLogger(log.Logger.Named("gin")),
		),
	)

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})
	server.GET("/files/:name", downloadHandler(downloadDir))

	return server
}

// RunServer blocks serving downloads until the listener fails or ctx is
// cancelled.
func RunServer(ctx context.Context, addr, downloadDir string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewServer(downloadDir),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Logger.Info("listening on http", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

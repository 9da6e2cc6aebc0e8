package app

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"logwhisperer/config"
	"logwhisperer/internal/controller"
)

// RegisterStatusServer serves the status API on cfg.Server.Addr for the lifetime of the app.
func RegisterStatusServer(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, reportController *controller.ReportController) {
	controller.RegisterReportRoutes(router, reportController)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", ln.Addr().String()).Msg("Starting status API")
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Status API server error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Shutting down status API...")
			return server.Shutdown(ctx)
		},
	})
}

func statusModule(cfg *config.Config) fx.Option {
	if cfg.Server.Addr == "" {
		return fx.Options()
	}
	return fx.Options(
		fx.Provide(
			controller.NewGinEngine,
			controller.NewReportController,
		),
		fx.Invoke(RegisterStatusServer),
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/romanzh1/course-player/internal/gatewaycache"
	"github.com/romanzh1/course-player/internal/handler"
	"github.com/romanzh1/course-player/internal/models"
	"github.com/romanzh1/course-player/internal/repository"
	"github.com/romanzh1/course-player/internal/service"
	"github.com/romanzh1/course-player/pkg/equal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.EncoderConfig.TimeKey = "timestamp"
	logConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	logger, err := logConfig.Build()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.L().Info("logger initialized")

	if err := godotenv.Load(); err != nil {
		zap.L().Debug("load .env file", zap.Error(err))
	}

	cfg, err := loadConfig()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, closeGateway, err := newGateway(cfg)
	if err != nil {
		zap.L().Error("create gateway", zap.Error(err), zap.String("backend", cfg.backend))
		os.Exit(1)
	}
	defer closeGateway()

	svc := service.NewService(gw, service.Config{
		HostOrigin:     cfg.hostOrigin,
		ContentBaseURL: cfg.contentURL,
	})
	defer svc.Shutdown()

	if cfg.telegramToken != "" {
		bot, err := handler.NewTelegramHandler(cfg.telegramToken, svc)
		if err != nil {
			zap.L().Error("create telegram handler", zap.Error(err))
			os.Exit(1)
		}
		svc.SetNotifier(bot)
		go bot.Start(ctx)
	}

	router := handler.NewRouter(handler.NewHTTPHandler(svc), []string{cfg.hostOrigin})
	server := &http.Server{
		Addr:              cfg.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("http server started", zap.String("addr", cfg.addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("shutdown http server", zap.Error(err))
	}
	zap.L().Info("stopped")
}

// newGateway builds the configured backend and, with REDIS_ADDR set, puts the
// module cache in front of it. The gateway outlives the signal context: open
// sessions still read through it while shutting down.
func newGateway(cfg config) (models.Gateway, func(), error) {
	var (
		gw      models.Gateway
		closers []func() error
	)

	switch cfg.backend {
	case backendPostgres:
		repo, err := repository.NewDB(cfg.postgresDSN, cfg.postgresIdle, cfg.postgresOpen)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Up(); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		gw = repo
		closers = append(closers, repo.Close)
	case backendHTTP:
		client, err := equal.NewClient(context.Background(), equal.Config{
			BaseURL:      cfg.equalBaseURL,
			ClientID:     cfg.equalClientID,
			ClientSecret: cfg.equalClientSecret,
			TokenURL:     cfg.equalTokenURL,
			Scopes:       cfg.equalScopes,
		})
		if err != nil {
			return nil, nil, err
		}
		gw = client
	}

	if cfg.redisAddr != "" {
		store, err := gatewaycache.NewRedisStore(cfg.redisAddr)
		if err != nil {
			zap.L().Warn("module cache disabled", zap.Error(err), zap.String("addr", cfg.redisAddr))
		} else {
			gw = gatewaycache.New(gw, store, cfg.moduleCacheTTL)
			closers = append(closers, store.Close)
		}
	}

	return gw, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				zap.L().Warn("close gateway", zap.Error(err))
			}
		}
	}, nil
}

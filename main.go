package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atg_dispatch/internal/accounts"
	"atg_dispatch/internal/config"
	"atg_dispatch/internal/control"
	"atg_dispatch/internal/logger"
	"atg_dispatch/internal/middleware"
	"atg_dispatch/pkg/dispatch"
	"atg_dispatch/pkg/storage"
	"atg_dispatch/pkg/telegram/messenger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		l := logger.New("info", false)
		l.Fatal().Err(err).Msg("[CONFIG] не удалось загрузить конфигурацию")
	}
	log := logger.New(cfg.LogLevel, cfg.LogJSON)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("[MAIN] сервис остановлен с ошибкой")
	}
	log.Info().Msg("[MAIN] сервис остановлен")
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализация подключения к БД
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	coord := dispatch.New(dispatch.Options{
		Store:     db,
		Messenger: messenger.New(db, log),
		Logger:    log,
		Limits: dispatch.Limits{
			DailyMessageLimit: cfg.Dispatch.DailyMessageLimit,
			DailyImportLimit:  cfg.Dispatch.DailyImportLimit,
			MessagesPerHour:   cfg.Dispatch.MessagesPerHour,
			ImportDelayBefore: config.Range(cfg.Dispatch.ImportDelayBefore),
			ImportDelayAfter:  config.Range(cfg.Dispatch.ImportDelayAfter),
		},
		APIID:    cfg.Telegram.APIID,
		APIHash:  cfg.Telegram.APIHash,
		Location: loc,
	})

	// Аккаунты, работавшие до перезапуска, поднимаются до старта циклов
	if err := coord.Restore(ctx); err != nil {
		log.Error().Err(err).Msg("[RESTORE] не удалось восстановить аккаунты")
	}

	tick := dispatch.NewDispatchLoop(coord, cfg.TickInterval())
	calendar := dispatch.NewCalendarLoop(coord)
	if err := tick.Start(ctx); err != nil {
		return err
	}
	defer tick.Stop()
	if err := calendar.Start(ctx); err != nil {
		return err
	}
	defer calendar.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(ctx, cfg, coord, db, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("[MAIN] HTTP-сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	// Соединения закрываются, но is_running сохраняется, чтобы аккаунты поднялись при следующем запуске
	tick.Stop()
	calendar.Stop()
	coord.Shutdown(context.Background())
	return err
}

// Настройка маршрутов
func setupRouter(ctx context.Context, cfg config.Config, coord *dispatch.Coordinator, db *storage.DB, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": len(coord.Running())})
	})

	api := r.Group("/api", middleware.AuthRequired(cfg.APIToken))
	accounts.SetupRoutes(api.Group("/accounts"), coord, db, log)
	control.SetupRoutes(api, control.NewHandler(ctx, coord, db, config.Range(cfg.Dispatch.StartAllDelay), log))

	if cfg.APIToken == "" {
		log.Warn().Msg("[ROUTER] API_TOKEN не задан, API доступен без авторизации")
	}
	log.Info().Int("routes", len(r.Routes())).Msg("[ROUTER] маршруты зарегистрированы")
	return r
}

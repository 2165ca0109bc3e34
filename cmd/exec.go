package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ticktr/config"
	"ticktr/internal/notify"
	"ticktr/internal/registry"
	"ticktr/internal/registry/pbstore"
	"ticktr/internal/registry/redisstore"
	"ticktr/internal/services"
	"ticktr/internal/status"
	_ "ticktr/migrations"
	"ticktr/models"
	"ticktr/monitoring"
	"ticktr/utils"
)

func Start() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app := pocketbase.New()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: !cfg.IsProduction(),
	})

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(prometheus.DefaultRegisterer)
	}
	publisher := newPublisher(cfg, logger)

	var redisClient *redis.Client
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		ctx := context.Background()

		var store registry.Store
		switch cfg.StoreDriver {
		case config.StoreRedis:
			redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			store = redisstore.New(redisClient)
		case config.StoreMemory:
			store = registry.NewMemoryStore()
		default:
			store = pbstore.New(e.App)
		}
		logger.Info("registry store selected", zap.String("driver", cfg.StoreDriver))

		lifecycle := services.NewLifecycle(store, cfg.MintMaxAttempts, monitor, publisher, logger)

		manager, err := lifecycle.Managers.Ensure(ctx, models.Identity(cfg.ManagerAuthority))
		switch {
		case errors.Is(err, status.ErrManagerNotInitialized):
			logger.Warn("manager not initialized, set MANAGER_AUTHORITY to bootstrap it")
		case err != nil:
			return fmt.Errorf("load manager: %w", err)
		default:
			logger.Info("manager loaded",
				zap.String("address", manager.Address.String()),
				zap.String("authority", manager.Authority.String()),
			)
		}

		e.Router.GET("/health", func(re *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(re.Request.Context(), redisClient); err != nil {
					return re.JSON(http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}

			body := map[string]string{"status": "healthy", "store": cfg.StoreDriver}
			if m, err := lifecycle.Managers.Load(re.Request.Context()); err == nil {
				body["manager"] = m.Address.String()
			}
			return re.JSON(http.StatusOK, body)
		})

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		return e.Next()
	})

	return app.Start()
}

func newPublisher(cfg *config.Config, logger *zap.Logger) notify.Publisher {
	if !cfg.PubNubEnabled() {
		logger.Info("pubnub keys not set, lifecycle notifications disabled")
		return notify.Nop{}
	}

	pn := notify.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey)
	return notify.NewBreakerPublisher(pn, utils.NewCircuitBreaker("pubnub", utils.DefaultBreakerSettings()))
}

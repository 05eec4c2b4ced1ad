package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cryptoalert/internal/cache"
	"cryptoalert/internal/client/coingecko"
	"cryptoalert/internal/config"
	cronrunner "cryptoalert/internal/cron"
	"cryptoalert/internal/db"
	"cryptoalert/internal/handler"
	"cryptoalert/internal/logger"
	"cryptoalert/internal/monitor"
	"cryptoalert/internal/notify"
	"cryptoalert/internal/paas"
	gormrepository "cryptoalert/internal/repository/gorm"
	"cryptoalert/internal/service"
	"cryptoalert/internal/tracing"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CA_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("CA_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, "cryptoalert-monitor")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Warn("tracing init failed", zap.Error(err))
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer func() { _ = db.Close(dbConn) }()
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(ctx); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}

	paasClient := initPaaSClient(cfg.PaaS, log)
	baseCtx := paas.WithClient(ctx, paasClient)

	fetcher := coingecko.NewClient(nil, coingecko.Options{
		Host:       cfg.CoinGecko.BaseURL,
		VsCurrency: cfg.CoinGecko.VsCurrency,
		APIKey:     cfg.CoinGecko.APIKey,
		Timeout:    cfg.CoinGecko.Timeout,
		BatchSize:  cfg.CoinGecko.BatchSize,
	})

	mon := &monitor.Monitor{
		Store:      store,
		Fetcher:    fetcher,
		Notifier:   initNotifier(cfg.Telegram, log),
		Deliveries: store,
		Logger:     log.Named("monitor"),
		Config:     cfg.Monitor,
	}

	var priceReader handler.PriceReader
	if cfg.Redis.Enabled && settingsSvc.IsEnabled(ctx, service.FeaturePriceMirror, true) {
		mirror := cache.NewRedisMirror(cache.NewRedisClient(cfg.Redis), cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := mirror.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn("redis unreachable, price mirror disabled", zap.Error(err))
			_ = mirror.Close()
		} else {
			mon.Mirror = mirror
			priceReader = mirror
			defer func() { _ = mirror.Close() }()
		}
	}

	if cfg.Monitor.AutoStart && settingsSvc.IsEnabled(ctx, service.FeatureMonitor, true) {
		mon.Start(baseCtx)
	} else {
		log.Info("monitor auto-start disabled")
	}

	cronRunner := cronrunner.New(log.Named("cron"), baseCtx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add("retention", cfg.Cron.Retention, func(ctx context.Context) error {
			if !settingsSvc.IsEnabled(ctx, service.FeatureRetention, true) {
				return nil
			}
			_, err := mon.Cleanup(ctx, cfg.Monitor.RetentionWindow)
			return err
		})
		if err != nil {
			log.Warn("cron register retention failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(paas.RequireBearerMiddleware(cfg.PaaS))
	engine.Use(paas.InjectClientMiddleware(paasClient))
	engine.Use(paas.WriteAuditMiddleware(paasClient, log))

	(&handler.HealthHandler{
		Ping:    func(ctx context.Context) error { return db.Ping(ctx, dbConn) },
		Running: mon.IsRunning,
	}).Register(engine)
	paas.RegisterDocs(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	(&handler.MonitorHandler{Monitor: mon, Settings: settingsSvc, Prices: priceReader, BaseCtx: baseCtx}).Register(engine)
	(&handler.AlertsHandler{Repo: store, Alerts: &service.AlertService{Repo: store, Logger: log.Named("alerts")}}).Register(engine)
	(&handler.SettingsHandler{Settings: settingsSvc}).Register(engine)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := mon.Shutdown(shutdownCtx); err != nil {
		log.Warn("monitor shutdown incomplete", zap.Error(err))
	}
	if shutdownTracing != nil {
		_ = shutdownTracing(shutdownCtx)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func initNotifier(cfg config.TelegramConfig, log *zap.Logger) monitor.Notifier {
	if !cfg.Enabled {
		log.Info("telegram disabled, notifications go to the log")
		return notify.LogNotifier{Logger: log.Named("notify")}
	}
	tg, err := notify.NewTelegramNotifier(cfg.Token, cfg.Debug)
	if err != nil {
		log.Warn("telegram init failed, notifications go to the log", zap.Error(err))
		return notify.LogNotifier{Logger: log.Named("notify")}
	}
	return tg
}

func initPaaSClient(cfg config.PaaSConfig, log *zap.Logger) *paas.Client {
	p := paas.NewClient(cfg)
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		log.Warn("paas login failed (audit disabled)", zap.Error(err))
		return nil
	}
	log.Info("paas login ok")
	return p
}

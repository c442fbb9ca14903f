package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"traffic-sensor-stream/analytics"
	"traffic-sensor-stream/config"
	"traffic-sensor-stream/handlers"
	"traffic-sensor-stream/metrics"
	"traffic-sensor-stream/models"
	"traffic-sensor-stream/realtime"
	"traffic-sensor-stream/retention"
	"traffic-sensor-stream/service"
	"traffic-sensor-stream/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.DateTime,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище показаний: memory, postgres или redis
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", "driver", cfg.Store.Driver)

	hub := realtime.NewHub(cfg.AllowedOrigins, logger)
	defer hub.Close()

	publishers := []realtime.Publisher{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := realtime.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		defer kp.Close()
		publishers = append(publishers, kp)
		logger.Info("kafka publisher enabled", "brokers", cfg.Kafka.Brokers)
	}
	if cfg.MQTT.Broker != "" {
		mp, err := realtime.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
		if err != nil {
			return err
		}
		defer mp.Close()
		publishers = append(publishers, mp)
		logger.Info("mqtt publisher enabled", "broker", cfg.MQTT.Broker)
	}
	publisher := realtime.NewMulti(publishers...)

	// Монитор запускается до сервиса; алерты уходят через сервис
	var svc *service.SensorService
	monitor := analytics.NewMonitor(analytics.MonitorConfig{
		Thresholds: cfg.Thresholds,
		Workers:    cfg.Monitor.Workers,
		OnAlert: func(alert models.SensorAlert) {
			svc.PublishAlert(alert)
		},
		OnSpike: func(sensorID int, value, zScore float64) {
			metrics.SensorSpikesTotal.WithLabelValues(strconv.Itoa(sensorID)).Inc()
		},
		OnDrop: metrics.MonitorDroppedTotal.Inc,
	}, logger)
	defer monitor.Close()

	svc = service.NewSensorService(st, logger,
		service.WithPublisher(publisher),
		service.WithMonitor(monitor),
		service.WithThresholds(cfg.Thresholds),
	)

	pruner := retention.NewPruner(st, cfg.Retention.Keep(), cfg.Retention.Interval, logger,
		retention.WithPruneHook(func(n int64) {
			metrics.ReadingsPrunedTotal.Add(float64(n))
		}),
	)
	go pruner.Run(ctx)

	router := handlers.NewRouter(handlers.RouterConfig{
		BasePath:       cfg.BasePath,
		AllowedOrigins: cfg.AllowedOrigins,
		Sensors:        handlers.NewSensorHandler(svc, logger),
		Live:           hub,
		AccessLog:      os.Stdout,
	})

	// Настройка HTTP сервера с оптимизацией для высокой нагрузки
	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "base_path", cfg.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Ожидание сигнала для graceful shutdown
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := store.OpenPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverRedis:
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/annel0/tileworld/internal/compression"
	"github.com/annel0/tileworld/internal/config"
	"github.com/annel0/tileworld/internal/eventbus"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/metrics"
	"github.com/annel0/tileworld/internal/protocol"
	"github.com/annel0/tileworld/internal/undo"
	"github.com/annel0/tileworld/internal/world"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config (default: $TILEWORLD_CONFIG)")
		metricsAddr = flag.String("metrics-addr", "", "Serve /metrics on this address (overrides config)")
		logLevel    = flag.String("log-level", "", "Console log level: TRACE, DEBUG, INFO, WARN, ERROR")
		script      = flag.String("script", "", "Read commands from file instead of stdin")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	rec := metrics.New(cfg.Metrics.Namespace)
	bus := eventbus.New()
	if err := eventbus.RegisterMetrics(rec.Registry(), cfg.Metrics.Namespace, bus); err != nil {
		log.Fatalf("❌ Ошибка регистрации метрик шины: %v", err)
	}
	eventbus.StartLoggingListener(bus, logging.GetComponentLogger("eventbus"))

	coord, err := newCoordinator(cfg, bus, rec)
	if err != nil {
		log.Fatalf("❌ Ошибка создания координатора: %v", err)
	}

	var srv *http.Server
	if addr := cfg.Metrics.GetAddr(); addr != "" {
		srv = serveMetrics(addr, rec)
	}

	in := os.Stdin
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.Fatalf("❌ Не удалось открыть сценарий: %v", err)
		}
		defer f.Close()
		in = f
	}

	sh := newShell(coord, os.Stdout)
	sh.interactive = *script == ""
	if err := sh.Run(in); err != nil {
		logging.Error("Сценарий остановлен: %v", err)
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Ошибка остановки HTTP сервера метрик: %v", err)
		}
	}
}

func initLogging(c config.LoggingConfig) error {
	opts := logging.DefaultOptions()
	level, err := logging.ParseLevel(c.GetLevel())
	if err != nil {
		return err
	}
	opts.ConsoleLevel = level
	if c.FileLevel != "" {
		if opts.FileLevel, err = logging.ParseLevel(c.FileLevel); err != nil {
			return err
		}
	}
	opts.File = c.File
	opts.MaxSizeMB = c.MaxSizeMB
	opts.MaxBackups = c.MaxBackups
	return logging.InitDefaultLogger("tilectl", opts)
}

func newCoordinator(cfg *config.Config, bus eventbus.EventBus, rec *metrics.Recorder) (*undo.Coordinator, error) {
	format, err := protocol.ParseFormat(cfg.Snapshot.Format)
	if err != nil {
		return nil, err
	}
	tr, err := compression.New(cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}

	size := world.ChunkSize{Width: cfg.Tilemap.GetChunkWidth(), Length: cfg.Tilemap.GetChunkLength()}
	store := world.NewTilemap(size, world.WithEventBus(bus), world.WithMetrics(rec))
	logging.Info("Карта создана: чанк %dx%d, снимки %s/%s", size.Width, size.Length, format, tr.Name())

	return undo.NewCoordinator(store,
		undo.WithSerializer(protocol.NewSerializer(format)),
		undo.WithTransformer(tr),
		undo.WithMaxHistory(cfg.Snapshot.GetMaxHistory()),
		undo.WithMetrics(rec),
	)
}

func serveMetrics(addr string, rec *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("📊 Метрики: http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP сервер метрик остановлен: %v", err)
		}
	}()
	return srv
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adventurelime/explorer/internal/achievement"
	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/dispatcher"
	"github.com/adventurelime/explorer/internal/influx"
	"github.com/adventurelime/explorer/internal/logging"
	"github.com/adventurelime/explorer/internal/monitor"
	intOtel "github.com/adventurelime/explorer/internal/otel"
	"github.com/adventurelime/explorer/internal/parser"
	"github.com/adventurelime/explorer/internal/progression"
	"github.com/adventurelime/explorer/internal/render"
	"github.com/adventurelime/explorer/internal/render/websocket"
	"github.com/adventurelime/explorer/internal/session"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/internal/worker"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/adventurelime/explorer/pkg/streaming"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "explorer"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is the zerolog logger used by the dispatcher, database and influx layers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// LogFile is the rotating session log
	LogFile io.WriteCloser

	SessionID        string
	SessionStartTime time.Time = time.Now()
)

const shutdownTimeout = 10 * time.Second

func main() {
	configDir := flag.String("config", ".", "directory holding "+config.ConfigFileName+" and .env")
	input := flag.String("input", "", "read commands from this file instead of stdin")
	flag.Parse()

	if err := run(*configDir, *input, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir, input string, args []string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	SessionID = uuid.NewString()
	if err := setupLogging(); err != nil {
		return err
	}
	defer teardownLogging()

	Logger.Info("Starting explorer", "version", CurrentVersion, "build", BuildDate)

	if len(args) > 0 && args[0] == "migrate" {
		return runMigrate(args[1:])
	}
	return serve(input)
}

// setupLogging switches logging to the rotating session file, optionally adding OTel and Graylog.
func setupLogging() error {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	LogFile = logging.NewRotatingFile(logPath, config.GetInt("logMaxSizeMB"), config.GetInt("logMaxBackups"))
	level := config.GetString("logLevel")

	if config.GetBool("otel.enabled") {
		var err error
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    config.GetString("otel.serviceName"),
			ServiceVersion: CurrentVersion,
			SessionID:      SessionID,
			BatchTimeout:   config.GetDuration("otel.batchTimeout"),
			LogWriter:      LogFile,
			Endpoint:       config.GetString("otel.endpoint"),
			Insecure:       config.GetBool("otel.insecure"),
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		h, err := logging.NewGELFHandler(config.GetString("graylog.address"), level)
		if err != nil {
			Logger.Error("Failed to initialize Graylog sink", "error", err)
		} else {
			extra = append(extra, h)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, level, otelLogProvider, extra...)
	SlogManager.WithContext(logging.SessionContext(SessionID))
	Logger = SlogManager.Logger()
	ZLogger = logging.NewZerolog(LogFile, level).With().Str("session", SessionID).Logger()

	Logger.Info("Logging to file", "path", logPath)
	return nil
}

func teardownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutting down otel: %v\n", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func loadCatalog() ([]core.Achievement, error) {
	path := config.GetString("achievements.catalogFile")
	if path == "" {
		return achievement.DefaultCatalog(), nil
	}
	catalog, err := achievement.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("loading achievement catalog: %w", err)
	}
	Logger.Info("Loaded achievement catalog", "path", path, "achievements", len(catalog))
	return catalog, nil
}

// connectRenderer returns the websocket renderer when a map client is configured, nil otherwise.
func connectRenderer(grid config.GridSettings) *websocket.Renderer {
	rc := config.Render()
	if rc.WebsocketURL == "" {
		return nil
	}
	r := websocket.New(websocket.Config{URL: rc.WebsocketURL, Token: rc.WebsocketToken}, Logger.With("component", "websocket"))
	err := r.Connect(streaming.HelloPayload{
		SessionID: SessionID,
		Region:    grid.Region,
		TileEdge:  grid.TileEdge,
	})
	if err != nil {
		Logger.Warn("Map client unavailable, rendering disabled", "url", rc.WebsocketURL, "error", err)
		_ = r.Close()
		return nil
	}
	Logger.Info("Connected to map client", "url", rc.WebsocketURL)
	return r
}

func connectInflux(ctx context.Context) *influx.Sink {
	backupPath := filepath.Join(config.GetString("logsDir"), fmt.Sprintf("%s.%s.influx.gz", AppName, SessionStartTime.Format("20060102_150405")))
	sink := influx.NewSink(ZLogger, backupPath)
	err := sink.Connect(ctx)
	if errors.Is(err, influx.ErrDisabled) {
		return nil
	}
	if err != nil {
		Logger.Warn("Progress metrics disabled", "error", err)
		_ = sink.Close()
		return nil
	}
	return sink
}

func serve(input string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := createStorageBackend(config.Storage())
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeBackend(backend)

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	pois, err := config.POIs()
	if err != nil {
		return err
	}

	grid := config.Grid()
	wsRenderer := connectRenderer(grid)
	var renderer render.Renderer = render.Nop{}
	if wsRenderer != nil {
		renderer = wsRenderer
		defer wsRenderer.Close()
	}

	pc := config.Progression()
	sess, err := session.New(session.Dependencies{
		SessionID: SessionID,
		Grid:      grid,
		Analyzer:  config.Analyzer(),
		Rewards:   progression.Rewards{Tile: pc.TileReward, POI: pc.POIReward},
		Catalog:   catalog,
		POIs:      pois,
		Backend:   backend,
		Renderer:  renderer,
		Debounce:  config.Render().Debounce,
		Logger:    Logger.With("component", "session"),
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			Logger.Error("Failed to close session cleanly", "error", err)
		}
	}()
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	worker.NewHandlers(worker.Dependencies{
		Session:   sess,
		Parser:    parser.NewParser(Logger.With("component", "parser")),
		Logger:    Logger,
		FixBuffer: config.GetInt("ingest.bufferSize"),
	}).RegisterHandlers(eventDispatcher)
	// drain queued fixes into the session before it closes
	defer eventDispatcher.Close()

	monitorDeps := monitor.Dependencies{
		Source:     sess,
		StatusFile: config.GetString("monitor.statusFile"),
		Interval:   config.GetDuration("monitor.interval"),
		Logger:     Logger.With("component", "monitor"),
	}
	if sink := connectInflux(ctx); sink != nil {
		monitorDeps.Recorder = sink
		defer sink.Close()
	}
	monitorService := monitor.NewService(monitorDeps)

	in, closeInput, err := openInput(input)
	if err != nil {
		return err
	}
	defer closeInput()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return monitorService.Run(gctx)
	})
	g.Go(func() error {
		err := readCommands(gctx, in, eventDispatcher, os.Stdout)
		// end of input ends the session
		stop()
		return err
	})
	if wsRenderer != nil {
		events, unsubscribe := sess.Subscribe(256)
		g.Go(func() error {
			defer unsubscribe()
			return forwardEvents(gctx, events, wsRenderer)
		})
	}

	Logger.Info("Session running", "storage", config.Storage().Type, "pois", len(pois))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		Logger.Error("Session stopped with error", "error", err)
		return err
	}
	Logger.Info("Session stopped", "status", monitor.FormatStatus(sess.Status()))
	return nil
}

// forwardEvents relays session events to the map client until ctx ends or the bus closes.
func forwardEvents(ctx context.Context, events <-chan core.Event, r *websocket.Renderer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Publish(ev)
		}
	}
}

func closeBackend(backend storage.Backend) {
	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
}

// Scancapd is the capture daemon.
//
// It hosts one guided capture session at a time behind an HTTP API,
// validates uploaded recordings, assembles the three angles and stores the
// artifact, optionally announcing it on NATS.
//
// Configuration is loaded from ~/.config/scancap/config.yaml (or the file
// given with -config) and SCANCAP_* environment variables.
//
// Usage:
//
//	# Start with defaults
//	scancapd
//
//	# Override via environment
//	SCANCAP_SERVER_HTTP_PORT=9300 SCANCAP_NATS_ENABLED=true scancapd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scancap/internal/assembler"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/config"
	"github.com/fyrsmithlabs/scancap/internal/delivery"
	"github.com/fyrsmithlabs/scancap/internal/device"
	"github.com/fyrsmithlabs/scancap/internal/events"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/http"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/metrics"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/fyrsmithlabs/scancap/internal/probe"
	"github.com/fyrsmithlabs/scancap/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  scancapd [-config path]   Start the capture daemon\n")
			fmt.Fprintf(os.Stderr, "  scancapd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("scancapd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled or the server
// fails.
//
//  1. Initializes telemetry and the logger
//  2. Connects to NATS when enabled
//  3. Builds the probe chain, delivery chain and metric observers
//  4. Serves HTTP, then shuts down gracefully
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting scancapd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("device", cfg.Device.Kind),
		zap.Duration("min_duration", cfg.Capture.MinDuration.Duration()),
	)

	deps, err := initDependencies(ctx, cfg, logger, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	srv, err := newServer(cfg, deps, logger, tel)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), tel.Shutdown(shutdownCtx))
}

// dependencies holds the long-lived collaborators shared by all sessions.
type dependencies struct {
	natsConn    *nats.Conn
	prober      capture.MetadataProber
	gate        *gate.Gate
	delivery    orchestrator.Delivery
	events      orchestrator.EventRecorder
	promMetrics *metrics.Metrics
	orchMetrics *orchestrator.Metrics
	inbox       *device.InboxDevice
}

// Close releases infrastructure resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger, tel *telemetry.Telemetry) (*dependencies, error) {
	deps := &dependencies{
		events:      events.NopRecorder{},
		promMetrics: metrics.New(),
	}

	g, err := gate.New(cfg.Gate)
	if err != nil {
		return nil, err
	}
	deps.gate = g

	deps.orchMetrics, err = orchestrator.NewMetrics(tel.Meter(orchestrator.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create capture metrics: %w", err)
	}

	deps.prober = probe.NewChain(probe.WithFallback(
		probe.NewFFProbe(cfg.Device.FFProbePath, cfg.Device.ProbeTimeout.Duration()),
	))

	if cfg.NATS.Enabled {
		nc, err := connectNATS(cfg.NATS)
		if err != nil {
			return nil, err
		}
		deps.natsConn = nc
		logger.Info(ctx, "connected to NATS", zap.String("url", cfg.NATS.URL))

		rec, err := events.NewNATSRecorder(nc)
		if err != nil {
			nc.Close()
			return nil, err
		}
		deps.events = rec
	}

	store, err := delivery.NewFileStore(cfg.Delivery.Dir)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	chainOpts := []delivery.ChainOption{
		delivery.WithLogger(logger),
		delivery.WithStrictNotify(cfg.Delivery.StrictNotify),
	}
	if cfg.Delivery.Notify && deps.natsConn != nil {
		notifier, err := delivery.NewNotifier(deps.natsConn)
		if err != nil {
			deps.Close()
			return nil, err
		}
		chainOpts = append(chainOpts, delivery.WithNotifier(notifier))
	}
	deps.delivery = delivery.NewChain(store, chainOpts...)
	logger.Info(ctx, "artifact store ready", zap.String("dir", store.Dir()))

	if cfg.Device.Kind == config.DeviceInbox {
		deps.inbox = device.NewInboxDevice(cfg.Device.InboxDir, deps.prober,
			device.WithSettleDelay(cfg.Device.SettleDelay.Duration()),
			device.WithLogger(logger),
		)
		logger.Info(ctx, "watching inbox for recordings", zap.String("dir", cfg.Device.InboxDir))
	}
	return deps, nil
}

func connectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("scancapd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait.Duration()),
	}
	if cfg.Token.IsSet() {
		opts = append(opts, nats.Token(cfg.Token.Value()))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// sessionFactory builds each session. With an inbox device the daemon
// ignores the remote device and records from the watched directory.
func sessionFactory(cfg *config.Config, deps *dependencies, logger *logging.Logger, tel *telemetry.Telemetry) http.Factory {
	presenter := orchestrator.NewLogPresenter(logger)
	asm := assembler.New()
	tracer := tel.Tracer(orchestrator.InstrumentationName)

	return func(dev orchestrator.Device) (*orchestrator.Orchestrator, error) {
		if deps.inbox != nil {
			dev = deps.inbox
		}
		return orchestrator.New(cfg.Capture.Orchestrator(), orchestrator.Deps{
			Device:    dev,
			Presenter: presenter,
			Gate:      deps.gate,
			Assembler: asm,
			Delivery:  deps.delivery,
			Events:    deps.events,
		},
			orchestrator.WithLogger(logger),
			orchestrator.WithTracer(tracer),
			orchestrator.WithObserver(deps.promMetrics),
			orchestrator.WithObserver(deps.orchMetrics),
		)
	}
}

func newServer(cfg *config.Config, deps *dependencies, logger *logging.Logger, tel *telemetry.Telemetry) (*http.Server, error) {
	sessions := http.NewSessions(sessionFactory(cfg, deps, logger, tel))
	return http.NewServer(sessions, deps.prober, &http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		UploadRate:     cfg.Server.UploadRate,
		UploadBurst:    cfg.Server.UploadBurst,
	},
		http.WithLogger(logger),
		http.WithMetricsHandler(deps.promMetrics.Handler()),
		http.WithHTTPMetrics(http.NewHTTPMetrics(tel.Meter(http.InstrumentationName), logger)),
		http.WithTelemetryHealth(tel.Health),
	)
}

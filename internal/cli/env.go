package cli

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"fieldops/internal/config"
	"fieldops/internal/device"
	"fieldops/internal/fieldapi"
	"fieldops/internal/logging"
	"fieldops/internal/upload"
)

// commonFlags are registered on every subcommand that talks to the backend.
type commonFlags struct {
	config  *string
	server  *string
	verbose *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:  fs.String("config", "", "config file path (default $FIELDOPS_CONFIG or user config dir)"),
		server:  fs.String("server", "", "backend base URL override"),
		verbose: fs.Bool("verbose", false, "debug logging"),
	}
}

type env struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
	client     *fieldapi.Client
	httpClient *http.Client
}

func loadEnv(flags commonFlags) (*env, error) {
	configPath := strings.TrimSpace(*flags.config)
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if s := strings.TrimRight(strings.TrimSpace(*flags.server), "/"); s != "" {
		if cfg.UploadEndpoint == cfg.Server+"/photos" {
			cfg.UploadEndpoint = s + "/photos"
		}
		cfg.Server = s
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Verbose: *flags.verbose})
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client, err := fieldapi.New(cfg.Server, fieldapi.WithHTTPClient(httpClient), fieldapi.WithLogger(logger.Named("api")))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &env{
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		client:     client,
		httpClient: httpClient,
	}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

func (e *env) session() (config.DriverSession, error) {
	return config.ReadSession(e.cfg.SessionPath)
}

// uploader carries no client timeout; the caller's context bounds the batch.
func (e *env) uploader(expected int) *upload.Uploader {
	return upload.New(e.cfg.UploadEndpoint, expected,
		upload.WithHTTPClient(&http.Client{}),
		upload.WithLogger(e.logger.Named("upload")),
	)
}

func (e *env) camera() device.Camera {
	logger := e.logger.Named("camera")
	switch e.cfg.Camera.Mode {
	case config.CameraModeTethered:
		return &device.TetheredCamera{Inbox: e.cfg.Camera.Inbox, Settle: e.cfg.Camera.Settle, Logger: logger}
	default:
		return &device.CommandCamera{Command: e.cfg.Camera.Command, DevicePath: e.cfg.Camera.Device, Logger: logger}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

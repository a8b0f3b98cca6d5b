package cli

import (
	"flag"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"fieldops/internal/checklist"
	"fieldops/internal/devserver"
	"fieldops/internal/logging"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8088", "listen address")
	fixtures := fs.String("fixtures", "", "YAML fixtures file (default: built-in demo data)")
	uploadDir := fs.String("upload-dir", "uploads", "directory for received photo batches")
	expect := fs.Int("expect", len(checklist.Pickup()), "required photos per batch (0 = any)")
	failUploads := fs.Int("fail-uploads", 0, "answer the next n photo uploads with 502")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expect < 0 || *failUploads < 0 {
		return fmt.Errorf("--expect and --fail-uploads must be >= 0")
	}

	logger, err := logging.New(logging.Options{Level: *logLevel, File: logging.Stderr})
	if err != nil {
		return err
	}
	defer logger.Sync()

	fx, err := devserver.LoadFixtures(*fixtures)
	if err != nil {
		return err
	}
	srv, err := devserver.New(devserver.Options{
		Fixtures:      fx,
		UploadDir:     strings.TrimSpace(*uploadDir),
		ExpectedParts: *expect,
		FailUploads:   *failUploads,
		Logger:        logger.Named("devserver"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return srv.ListenAndServe(ctx, *addr, func(a net.Addr) {
		logger.Info("development backend listening",
			zap.String("url", "http://"+a.String()),
			zap.Int("users", len(fx.Users)),
			zap.Int("loads", len(fx.Loads)),
		)
	})
}

// Package doctor runs the preflight checks behind `fieldops doctor` and `fieldops init`.
package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"fieldops/internal/config"
	"fieldops/internal/device"
	"fieldops/internal/fsstore"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config     config.Config
	ConfigPath string
	Camera     device.Camera
	Server     Pinger
}

type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type InitOptions struct {
	ConfigPath string
	Config     config.Config
	Doctor     Options
}

type InitResult struct {
	ConfigPath    string `json:"config_path"`
	CreatedConfig bool   `json:"created_config"`
	Doctor        Result `json:"doctor"`
}

func Run(ctx context.Context, opts Options) Result {
	cfg := opts.Config
	checks := make([]Check, 0, 5)

	if strings.TrimSpace(opts.ConfigPath) != "" {
		cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(opts.ConfigPath))
		checks = append(checks, Check{Name: "directory:config", OK: cfgOK, Message: cfgMessage})
	}

	stagingOK, stagingMessage := ensureWritableDir(cfg.StagingDir)
	checks = append(checks, Check{Name: "directory:staging", OK: stagingOK, Message: stagingMessage})

	sessionOK, sessionMessage := ensureWritableDir(filepath.Dir(cfg.SessionPath))
	checks = append(checks, Check{Name: "directory:session", OK: sessionOK, Message: sessionMessage})

	if opts.Camera != nil {
		checks = append(checks, cameraCheck(ctx, cfg.Camera.Mode, opts.Camera))
	}

	if opts.Server != nil {
		c := Check{Name: "server:" + cfg.Server, OK: true, Message: "reachable"}
		if err := opts.Server.Ping(ctx); err != nil {
			c.OK = false
			c.Message = err.Error()
		}
		checks = append(checks, c)
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return Result{OK: ok, Checks: checks}
}

// Init writes a default config when none exists, then runs the checks.
func Init(ctx context.Context, opts InitOptions) (InitResult, error) {
	created := false
	if _, err := os.Stat(opts.ConfigPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(opts.ConfigPath, opts.Config); err != nil {
			return InitResult{}, err
		}
		created = true
	} else if err != nil {
		return InitResult{}, err
	}

	doc := opts.Doctor
	doc.ConfigPath = opts.ConfigPath
	doc.Config = opts.Config
	return InitResult{
		ConfigPath:    opts.ConfigPath,
		CreatedConfig: created,
		Doctor:        Run(ctx, doc),
	}, nil
}

func cameraCheck(ctx context.Context, mode string, cam device.Camera) Check {
	c := Check{Name: "camera:" + mode}
	state, err := cam.RequestPermission(ctx)
	switch {
	case err != nil:
		c.Message = err.Error()
	case state != device.PermissionGranted:
		c.Message = "permission denied"
	default:
		c.OK = true
		c.Message = "permission granted"
	}
	return c
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := fsstore.Mkdir(path, fsstore.PrivateDirPerm); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "fieldops-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}

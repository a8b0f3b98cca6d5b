// Package config loads the fieldops YAML settings and the persisted driver session.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fieldops/internal/fsstore"
)

const (
	EnvConfigPath = "FIELDOPS_CONFIG"
	EnvServer     = "FIELDOPS_SERVER"

	DefaultServer      = "http://127.0.0.1:8088"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultSettle      = 500 * time.Millisecond
	DefaultDevice      = "/dev/video0"
	DefaultLogLevel    = "info"

	CameraModeCommand  = "command"
	CameraModeTethered = "tethered"

	appDir = "fieldops"
)

var DefaultCameraCommand = []string{"libcamera-still", "-n", "-o", "{output}"}

type CameraConfig struct {
	Mode    string        `yaml:"mode"`
	Command []string      `yaml:"command,omitempty"`
	Device  string        `yaml:"device,omitempty"`
	Inbox   string        `yaml:"inbox,omitempty"`
	Settle  time.Duration `yaml:"settle,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File is the log destination; "-" means stderr.
	File string `yaml:"file,omitempty"`
}

type Config struct {
	Server         string        `yaml:"server"`
	UploadEndpoint string        `yaml:"upload_endpoint,omitempty"`
	StagingDir     string        `yaml:"staging_dir,omitempty"`
	SessionPath    string        `yaml:"session_path,omitempty"`
	HTTPTimeout    time.Duration `yaml:"http_timeout,omitempty"`
	KeepStaged     bool          `yaml:"keep_staged,omitempty"`
	Camera         CameraConfig  `yaml:"camera"`
	Log            LogConfig     `yaml:"log"`
}

func Default() Config {
	return normalize(Config{})
}

// DefaultPath honours FIELDOPS_CONFIG, then the user config dir.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return filepath.Join(userDir(os.UserConfigDir), "config.yaml")
}

// Load reads the config file; a missing file yields defaults. FIELDOPS_SERVER
// overrides the server either way.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	cfg, err := read(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	if server := strings.TrimSpace(os.Getenv(EnvServer)); server != "" {
		cfg.Server = server
	}
	cfg = normalize(cfg)
	if verr := cfg.Validate(); verr != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, verr)
	}
	return cfg, nil
}

func read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	data, err := yaml.Marshal(normalize(cfg))
	if err != nil {
		return err
	}
	if err := fsstore.Mkdir(filepath.Dir(path), fsstore.PrivateDirPerm); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return fsstore.WriteBytes(path, data, fsstore.PrivateFilePerm)
}

func normalize(raw Config) Config {
	norm := raw
	norm.Server = strings.TrimRight(strings.TrimSpace(norm.Server), "/")
	if norm.Server == "" {
		norm.Server = DefaultServer
	}
	norm.UploadEndpoint = strings.TrimSpace(norm.UploadEndpoint)
	if norm.UploadEndpoint == "" {
		norm.UploadEndpoint = norm.Server + "/photos"
	}
	if strings.TrimSpace(norm.StagingDir) == "" {
		norm.StagingDir = filepath.Join(userDir(os.UserCacheDir), "staging")
	}
	if strings.TrimSpace(norm.SessionPath) == "" {
		norm.SessionPath = filepath.Join(userDir(os.UserConfigDir), "session.json")
	}
	if norm.HTTPTimeout <= 0 {
		norm.HTTPTimeout = DefaultHTTPTimeout
	}

	norm.Camera.Mode = strings.ToLower(strings.TrimSpace(norm.Camera.Mode))
	if norm.Camera.Mode == "" {
		norm.Camera.Mode = CameraModeCommand
	}
	if len(norm.Camera.Command) == 0 {
		norm.Camera.Command = append([]string(nil), DefaultCameraCommand...)
	}
	if norm.Camera.Device == "" {
		norm.Camera.Device = DefaultDevice
	}
	if norm.Camera.Settle <= 0 {
		norm.Camera.Settle = DefaultSettle
	}

	norm.Log.Level = strings.ToLower(strings.TrimSpace(norm.Log.Level))
	if norm.Log.Level == "" {
		norm.Log.Level = DefaultLogLevel
	}
	if strings.TrimSpace(norm.Log.File) == "" {
		norm.Log.File = filepath.Join(userDir(os.UserCacheDir), "fieldops.log")
	}
	return norm
}

func (c Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.Server, "http://") && !strings.HasPrefix(c.Server, "https://") {
		errs = append(errs, fmt.Errorf("server %q must be an http(s) url", c.Server))
	}
	if !strings.HasPrefix(c.UploadEndpoint, "http://") && !strings.HasPrefix(c.UploadEndpoint, "https://") {
		errs = append(errs, fmt.Errorf("upload_endpoint %q must be an http(s) url", c.UploadEndpoint))
	}
	switch c.Camera.Mode {
	case CameraModeCommand:
	case CameraModeTethered:
		if strings.TrimSpace(c.Camera.Inbox) == "" {
			errs = append(errs, errors.New("camera.inbox is required in tethered mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("camera.mode %q must be %q or %q", c.Camera.Mode, CameraModeCommand, CameraModeTethered))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// userDir returns {base}/fieldops, falling back to a dot dir in the working directory.
func userDir(base func() (string, error)) string {
	dir, err := base()
	if err != nil || strings.TrimSpace(dir) == "" {
		return "." + appDir
	}
	return filepath.Join(dir, appDir)
}

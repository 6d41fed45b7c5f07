package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ib-77/ropchain/internal/logging"
)

// Config is the ropchain CLI configuration.
//
// Example (YAML):
//
//	log: { level: debug, console: true }
//	paths: { resources: ./res, work: /tmp/ropchain, output: ./out }
//	store: { driver: sqlite, path: ./data/runs.db }
//	client: { max_concurrent: 2, submit_rate: 5, submit_burst: 1 }
type Config struct {
	Log    logging.Config `json:"log"`
	Paths  PathsConfig    `json:"paths"`
	Store  StoreConfig    `json:"store"`
	Client ClientConfig   `json:"client"`
}

type PathsConfig struct {
	// Resources is the directory res:// locators resolve against.
	Resources string `json:"resources"`
	// Work holds per-run transform outputs, pruned by the cleanup stage.
	Work string `json:"work"`
	// Output receives persisted images.
	Output string `json:"output"`
}

// StoreConfig selects the run history backend.
// Driver is "sqlite" or "none".
type StoreConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type ClientConfig struct {
	MaxConcurrent int     `json:"max_concurrent"`
	SubmitRate    float64 `json:"submit_rate"` // submissions per second; 0 disables throttling
	SubmitBurst   int     `json:"submit_burst"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: logging.Config{Level: "info", Console: true},
		Paths: PathsConfig{
			Resources: "./res",
			Work:      filepath.Join(os.TempDir(), "ropchain"),
			Output:    "./out",
		},
		Store:  StoreConfig{Driver: "sqlite", Path: "./data/runs.db"},
		Client: ClientConfig{MaxConcurrent: 4},
	}
}

// Load reads a JSON or YAML (.yaml/.yml) config file on top of Default.
// Unknown fields and trailing data are rejected.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(path, b)
}

// Parse decodes data, using path only to pick the format.
func Parse(path string, data []byte) (Config, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "decode %s config", format)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, errors.New("invalid config: trailing data")
		}
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Client.MaxConcurrent < 0 {
		return errors.Newf("client.max_concurrent must be >= 0, got %d", c.Client.MaxConcurrent)
	}
	if c.Client.SubmitRate < 0 {
		return errors.Newf("client.submit_rate must be >= 0, got %v", c.Client.SubmitRate)
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "none", "sqlite", "sqlite3":
	default:
		return errors.Newf("unknown store driver %q", c.Store.Driver)
	}
	if _, err := c.Store.BusyTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// BusyTimeoutDuration parses BusyTimeout; empty means zero.
func (s StoreConfig) BusyTimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(s.BusyTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.BusyTimeout)
	if err != nil {
		return 0, errors.Wrap(err, "store.busy_timeout")
	}
	return d, nil
}

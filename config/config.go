package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the config file looked up in the data directory.
const FileName = "tagtint.config"

type Config struct {
	DataDir          string            `json:"data_dir" validate:"required"`
	ListenAddr       string            `json:"listen_addr" validate:"required,hostname_port"`
	VaultDir         string            `json:"vault_dir,omitempty"`
	Stylesheets      []string          `json:"stylesheets,omitempty" validate:"omitempty,dive,required"`
	RootSelectors    []string          `json:"root_selectors,omitempty" validate:"omitempty,dive,required"`
	TagSelector      string            `json:"tag_selector,omitempty"`
	PollInterval     string            `json:"poll_interval,omitempty" validate:"omitempty,duration"`
	LogLevel         string            `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	LogHuman         bool              `json:"log_human,omitempty"`
	DefaultTagColors map[string]string `json:"default_tag_colors,omitempty" validate:"omitempty,dive,keys,required,endkeys,hexcolor6"`
}

func Default() Config {
	return Config{
		DataDir:          ".",
		ListenAddr:       ":8787",
		PollInterval:     "2s",
		LogLevel:         "info",
		DefaultTagColors: map[string]string{},
	}
}

// Poll returns the vault polling interval, falling back to two seconds.
func (c Config) Poll() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Path returns the config file location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads the config from dataDir. A missing file yields Default().
func Load(dataDir string) (Config, error) {
	f, err := os.Open(Path(dataDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.DataDir = dataDir
			return cfg, nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", Path(dataDir), err)
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.PollInterval == "" {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.DefaultTagColors == nil {
		cfg.DefaultTagColors = map[string]string{}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg atomically into cfg.DataDir.
func Save(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	return WriteJSON(Path(cfg.DataDir), cfg)
}

// WriteJSON encodes v as indented JSON into path via a temp file and rename.
func WriteJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

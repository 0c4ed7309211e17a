package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const configTOMLFileName = "config.toml"

type ExportDefaults struct {
	Mode           string `json:"mode" toml:"mode"`
	FilenamePrefix string `json:"filename_prefix" toml:"filename_prefix"`
}

type GlobalConfig struct {
	APIBaseURL  string         `json:"api_base_url" toml:"api_base_url"`
	LocalPort   int            `json:"local_port" toml:"local_port"`
	DownloadDir string         `json:"download_dir,omitempty" toml:"download_dir,omitempty"`
	Export      ExportDefaults `json:"export" toml:"export"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://127.0.0.1:8000"
	}
	if cfg.LocalPort <= 0 {
		cfg.LocalPort = 4820
	}
	cfg.DownloadDir = strings.TrimSpace(cfg.DownloadDir)
	cfg.Export.Mode = strings.ToLower(strings.TrimSpace(cfg.Export.Mode))
	if cfg.Export.Mode == "" {
		cfg.Export.Mode = "raw"
	}
	cfg.Export.FilenamePrefix = strings.TrimSpace(cfg.Export.FilenamePrefix)
	if cfg.Export.FilenamePrefix == "" {
		cfg.Export.FilenamePrefix = "tokentrim"
	}
	return cfg
}

func writeTOMLAtomically(path string, cfg GlobalConfig) error {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

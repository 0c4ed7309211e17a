package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxFileSize is the local size guard applied before any upload. The
// service enforces the same 10 MiB limit server-side; rejecting locally means
// oversized files never cost a request.
const DefaultMaxFileSize = 10 * 1024 * 1024

type Config struct {
	APIBaseURL  string
	LogLevel    string
	LocalHost   string
	LocalPort   int
	DownloadDir string
	DataDir     string
	MaxFileSize int64
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	base := os.Getenv("TOKENTRIM_API_BASE_URL")
	if base == "" {
		base = "http://127.0.0.1:8000"
	}

	level := os.Getenv("TOKENTRIM_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	localHost := os.Getenv("TOKENTRIM_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	localPort := 4820
	if p := os.Getenv("TOKENTRIM_LOCAL_PORT"); p != "" {
		if n := atoiOrDefault(p, 4820); n > 0 {
			localPort = n
		}
	}

	downloadDir := os.Getenv("TOKENTRIM_DOWNLOAD_DIR")
	if downloadDir == "" {
		downloadDir = defaultDownloadDir()
	}

	dataDir := os.Getenv("TOKENTRIM_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	maxFileSize := int64(DefaultMaxFileSize)
	if v := os.Getenv("TOKENTRIM_MAX_FILE_SIZE"); v != "" {
		if n := atoiOrDefault(v, 0); n > 0 {
			maxFileSize = int64(n)
		}
	}

	return Config{
		APIBaseURL:  base,
		LogLevel:    level,
		LocalHost:   localHost,
		LocalPort:   localPort,
		DownloadDir: downloadDir,
		DataDir:     dataDir,
		MaxFileSize: maxFileSize,
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Clean(".tokentrim")
	}
	return filepath.Join(dir, "tokentrim")
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}

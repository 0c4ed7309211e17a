package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tokentrim/cli/internal/artifactdb"
	"tokentrim/cli/internal/config"
	"tokentrim/cli/internal/db"
	"tokentrim/cli/internal/global"
	"tokentrim/cli/internal/lifecycle"
	"tokentrim/cli/internal/localapi"
	"tokentrim/cli/internal/session"
	"tokentrim/cli/internal/trimapi"
)

func runServe(ctx context.Context, cfg config.Config) error {
	logger := newRuntimeLogger(os.Stderr, cfg.LogLevel)

	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return err
	}
	cfgStore := global.NewConfigStore(configDir)
	gcfg, err := cfgStore.LoadOrInit()
	if err != nil {
		return err
	}
	cfg = mergeGlobalConfig(cfg, gcfg)

	gdb, err := db.Open(filepath.Join(cfg.DataDir, "tokentrim.db"))
	if err != nil {
		return err
	}
	history, err := artifactdb.NewStore(gdb)
	if err != nil {
		return err
	}

	client := trimapi.NewClient(cfg.APIBaseURL, logger)
	hub := localapi.NewWSHub()
	prefix := "tokentrim"
	if gcfg.Export.FilenamePrefix != "" {
		prefix = gcfg.Export.FilenamePrefix
	}
	sess := session.New(session.Options{
		API:         client,
		Logger:      logger,
		MaxFileSize: cfg.MaxFileSize,
		Sink:        session.NewDirSink(cfg.DownloadDir),
		Recorder:    history,
		Events:      hub.Publish,
		Prefix:      prefix,
	})
	server := localapi.NewServer(localapi.Deps{
		Session:     sess,
		ConfigStore: cfgStore,
		Artifacts:   history,
		Hub:         hub,
	})

	addr := fmt.Sprintf("%s:%d", cfg.LocalHost, cfg.LocalPort)
	fmt.Fprintf(os.Stdout, "tokentrim local server listening at http://%s (version=%s built=%s)\n", addr, version, buildTime)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	runner := lifecycle.NewRunner()
	runner.Go("http-server", func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	runner.OnShutdown("close-db", func(context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return runner.Wait(ctx)
}

// mergeGlobalConfig layers the persisted TOML values under the environment:
// an explicitly set variable always wins over the config file.
func mergeGlobalConfig(cfg config.Config, g global.GlobalConfig) config.Config {
	if os.Getenv("TOKENTRIM_API_BASE_URL") == "" && g.APIBaseURL != "" {
		cfg.APIBaseURL = g.APIBaseURL
	}
	if os.Getenv("TOKENTRIM_LOCAL_PORT") == "" && g.LocalPort > 0 {
		cfg.LocalPort = g.LocalPort
	}
	if os.Getenv("TOKENTRIM_DOWNLOAD_DIR") == "" && g.DownloadDir != "" {
		cfg.DownloadDir = g.DownloadDir
	}
	return cfg
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tokentrim/cli/internal/artifactdb"
	"tokentrim/cli/internal/config"
	"tokentrim/cli/internal/db"
	"tokentrim/cli/internal/session"
	"tokentrim/cli/internal/trimapi"
)

func newAPIClient(cfg config.Config) *trimapi.Client {
	return trimapi.NewClient(cfg.APIBaseURL, newRuntimeLogger(os.Stderr, cfg.LogLevel))
}

func readUploads(paths []string) ([]trimapi.Upload, error) {
	uploads := make([]trimapi.Upload, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, trimapi.Upload{Name: filepath.Base(path), Content: content})
	}
	return uploads, nil
}

func openHistory(cfg config.Config) (*artifactdb.Store, func() error, error) {
	gdb, err := db.Open(filepath.Join(cfg.DataDir, "tokentrim.db"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	store, err := artifactdb.NewStore(gdb)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func saveArtifact(cfg config.Config, mode, name string, data []byte) (string, error) {
	sink := session.NewDirSink(cfg.DownloadDir)
	path, err := sink.Save(name, data)
	if err != nil {
		return "", err
	}
	history, closeFn, err := openHistory(cfg)
	if err != nil {
		return "", err
	}
	defer closeFn()
	if err := history.Record(mode, name, path, int64(len(data))); err != nil {
		return "", err
	}
	return path, nil
}

func runAnalyze(ctx context.Context, cfg config.Config, paths []string) error {
	client := newAPIClient(cfg)
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}
	for _, up := range uploads {
		res, err := client.AnalyzeFile(ctx, up.Name, up.Content)
		if err != nil {
			return errors.New(trimapi.UserMessage(err))
		}
		fmt.Printf("%s\t%s\t%d bytes\t~%d tokens\n", res.FileName, res.Language, res.FileSize, res.TokenEstimate)
	}
	return nil
}

func runCompress(ctx context.Context, cfg config.Config, paths []string) error {
	client := newAPIClient(cfg)
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}
	for _, up := range uploads {
		report, err := client.CompressFile(ctx, up.Name, up.Content)
		if err != nil {
			return errors.New(trimapi.UserMessage(err))
		}
		fmt.Printf("%s: best=%s tokens %d -> %d (%.1f%% reduction)\n",
			report.Filename, report.BestLevel, report.OriginalTokens, report.BestTokens, report.OverallReductionPct)
	}
	return nil
}

func runExport(ctx context.Context, cfg config.Config, mode string, paths []string) error {
	if !session.ValidExportMode(mode) {
		return fmt.Errorf("unknown export mode %q", mode)
	}
	client := newAPIClient(cfg)
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}
	body, err := client.ExportPipeline(ctx, mode, "", uploads)
	if err != nil {
		return errors.New(trimapi.UserMessage(err))
	}
	name := session.ArtifactName("tokentrim", mode, time.Now(), "txt")
	path, err := saveArtifact(cfg, mode, name, []byte(body))
	if err != nil {
		return err
	}
	fmt.Printf("saved %s\n", path)
	return nil
}

func runLosslessEncode(ctx context.Context, cfg config.Config, paths []string) error {
	client := newAPIClient(cfg)
	uploads, err := readUploads(paths)
	if err != nil {
		return err
	}
	bundle, err := client.EncodeLossless(ctx, uploads)
	if err != nil {
		return errors.New(trimapi.UserMessage(err))
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}
	name := session.ArtifactName("tokentrim", "lossless", time.Now(), "json")
	path, err := saveArtifact(cfg, "lossless", name, data)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%d files)\n", path, len(bundle.Files))
	return nil
}

func runLosslessDecode(ctx context.Context, cfg config.Config, path string, embedded bool) error {
	client := newAPIClient(cfg)
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := client.DecodeBundle(ctx, filepath.Base(path), content, embedded)
	if err != nil {
		return errors.New(trimapi.UserMessage(err))
	}
	sink := session.NewDirSink(cfg.DownloadDir)
	for _, file := range res.Files {
		outPath, err := sink.Save(file.Filename, []byte(file.Content))
		if err != nil {
			return err
		}
		status := "ok"
		if !file.Match {
			status = "MISMATCH"
		}
		fmt.Printf("%s\t%d bytes\t%s\n", outPath, file.RecoveredSize, status)
	}
	fmt.Printf("recovered %d files\n", res.TotalFiles)
	return nil
}

func runArtifactsList(_ context.Context, cfg config.Config, limit int) error {
	history, closeFn, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	entries, err := history.List(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no artifacts saved yet")
		return nil
	}
	for _, entry := range entries {
		fmt.Printf("%s\t%s\t%d bytes\t%s\n",
			entry.SavedAt.Format(time.RFC3339), entry.Mode, entry.Size, entry.Path)
	}
	return nil
}

func runArtifactsClear(_ context.Context, cfg config.Config) error {
	history, closeFn, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return history.Clear()
}

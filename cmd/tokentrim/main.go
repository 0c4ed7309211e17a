package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tokentrim/cli/internal/command"
	"tokentrim/cli/internal/config"
	"tokentrim/cli/internal/logging"
)

var version = "dev"
var buildTime = "unknown"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:     config.LoadConfig,
		RunServe:       runServe,
		AnalyzeFiles:   runAnalyze,
		CompressFiles:  runCompress,
		ExportFiles:    runExport,
		LosslessEncode: runLosslessEncode,
		LosslessDecode: runLosslessDecode,
		ListArtifacts:  runArtifactsList,
		ClearArtifacts: runArtifactsClear,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "tokentrim"}).Error("tokentrim failed", "err", err)
		os.Exit(1)
	}
}

func newRuntimeLogger(writer io.Writer, level string) *slog.Logger {
	return logging.NewLogger(logging.Options{
		Level:     level,
		Writer:    writer,
		Component: "tokentrim",
	})
}

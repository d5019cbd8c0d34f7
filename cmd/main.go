package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"motorisk/internal/batch"
	"motorisk/internal/configuration"
	"motorisk/internal/dataset"
	"motorisk/internal/history"
	"motorisk/internal/metrics"
	"motorisk/internal/model"
	"motorisk/internal/risk"
	"motorisk/internal/risk/rule"
	"motorisk/internal/server"

	"github.com/urfave/cli/v3"
)

// prepareLogger configures the global slog logger with JSON output on os.Stdout.
// Unknown levels fall back to Info.
func prepareLogger(level string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	slog.SetDefault(slog.New(handler))
}

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "configuration file",
	Value: "/etc/motorisk/config.yaml",
}

// Any failure while loading the configuration, the model or the rules ends the
// process with exit code 1.
func main() {
	app := &cli.Command{
		Name:           "motorisk",
		Usage:          "used motorcycle price prediction and listing risk scoring",
		Flags:          []cli.Flag{configFlag},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "batch",
				Usage: "score a CSV file of listings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Usage: "CSV file with a header row", Required: true},
					&cli.StringFlag{Name: "output", Usage: "result CSV file, - for stdout", Value: "-"},
					&cli.StringFlag{Name: "claim-column", Usage: "column with the claimed price", Value: batch.DefaultClaimColumn},
				},
				Action: scoreCSV,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

// setup loads the configuration with load and builds the model handle and the scorer.
func setup(ctx context.Context, cmd *cli.Command, load func(string) (*configuration.AppConfig, error)) (*configuration.AppConfig, *model.Handle, *risk.Scorer, error) {
	config, err := load(cmd.String(configFlag.Name))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unable to load configuration: %w", err)
	}
	prepareLogger(config.Logger.Level)

	var loader model.Loader
	switch config.Model.Type {
	case configuration.ModelTypeRemote:
		loader = model.RemoteLoader(config.Model.Url, config.Model.Timeout, config.Model.Metadata)
	default:
		loader = model.BundleLoader(config.Model.Bundle, config.Model.Metadata)
	}

	handle, err := model.NewHandle(ctx, loader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unable to load model: %w", err)
	}

	var opts []risk.Option
	if config.Analysis.Rules != "" {
		rules, err := rule.LoadFromFile(config.Analysis.Rules)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("unable to load rules: %w", err)
		}
		slog.Info("Listing rules loaded", "count", len(rules))
		opts = append(opts, risk.WithRules(rules))
	}

	return config, handle, risk.NewScorer(opts...), nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	appCtx, appCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	config, handle, scorer, err := setup(appCtx, cmd, configuration.LoadConfig)
	if err != nil {
		return err
	}

	historyRepo := history.NewRepository(config.Analysis.HistoryLength, config.Analysis.HistoryTtl)
	go historyRepo.Serve()
	defer historyRepo.Stop()

	var datasetRepo dataset.Repository = dataset.Nop{}
	if config.Dataset.File != "" {
		datasetRepo = dataset.NewJsonRepository(config.Dataset.File, config.Dataset.Size, config.Dataset.Amount)
	}
	defer datasetRepo.Close()

	router := server.NewApiV1Router(
		config.Server.Static,
		config.Analysis.Token,
		config.Analysis.Workers,
		handle,
		scorer,
		historyRepo,
		datasetRepo,
		metrics.New(),
	)
	srv := server.NewServer(config.Server.Address, router)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			appCancel()
		}
	}()
	slog.Info("Server listening " + config.Server.Address)
	<-appCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown", "error", err)
	}
	slog.Info("Server stopped")

	return nil
}

func scoreCSV(ctx context.Context, cmd *cli.Command) error {
	config, handle, scorer, err := setup(ctx, cmd, configuration.LoadBatchConfig)
	if err != nil {
		return err
	}

	in, err := os.Open(cmd.String("input"))
	if err != nil {
		return err
	}
	defer in.Close()

	out := os.Stdout
	if path := cmd.String("output"); path != "-" {
		if out, err = os.Create(path); err != nil {
			return err
		}
		defer out.Close()
	}

	_, err = batch.Run(ctx, in, out, scorer, handle.Current(), batch.Options{
		Workers:     config.Analysis.Workers,
		ClaimColumn: cmd.String("claim-column"),
	})
	return err
}

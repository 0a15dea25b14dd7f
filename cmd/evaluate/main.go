package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/app"
	"github.com/qanoonai/backend/internal/evaluation"
	"github.com/qanoonai/backend/pkg/config"
	appLogger "github.com/qanoonai/backend/pkg/logger"
)

func main() {
	var (
		datasetPath = pflag.StringP("dataset", "d", "", "JSON dataset of queries and expected citations")
		configPath  = pflag.StringP("config", "c", "", "config file (defaults to ./config.yaml)")
		limit       = pflag.IntP("limit", "k", 10, "results evaluated per query")
	)
	pflag.Parse()

	if *datasetPath == "" {
		fmt.Fprintln(os.Stderr, "--dataset is required")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	f, err := os.Open(*datasetPath)
	if err != nil {
		appLogger.Fatal("Failed to open dataset", zap.Error(err))
	}
	dataset, err := evaluation.LoadDataset(f)
	f.Close()
	if err != nil {
		appLogger.Fatal("Failed to load dataset", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close(context.Background())

	report, err := evaluation.NewEvaluator(components.Search, *limit).RunDatasetEvaluation(ctx, dataset)
	if err != nil {
		appLogger.Error("Evaluation aborted", zap.Error(err))
		return
	}

	fmt.Print(evaluation.GenerateReport(report))
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/app"
	"github.com/qanoonai/backend/internal/ingestion"
	"github.com/qanoonai/backend/internal/metrics"
	"github.com/qanoonai/backend/pkg/config"
	appLogger "github.com/qanoonai/backend/pkg/logger"
)

// maxLineBytes bounds a single JSONL record; judgments run to several MB.
const maxLineBytes = 16 << 20

func main() {
	var (
		input       = pflag.StringP("input", "i", "", "JSONL file of judgments, one per line (- for stdin)")
		configPath  = pflag.StringP("config", "c", "", "config file (defaults to ./config.yaml)")
		resolveOnly = pflag.Bool("resolve-only", false, "only resolve pending citation links")
	)
	pflag.Parse()

	if *input == "" && !*resolveOnly {
		fmt.Fprintln(os.Stderr, "either --input or --resolve-only is required")
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

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close(context.Background())

	if *resolveOnly {
		resolved, err := components.Pipeline.ResolvePending(ctx)
		if err != nil {
			appLogger.Error("Citation resolution failed", zap.Error(err))
			return
		}
		appLogger.Info("Citation resolution finished", zap.Int("resolved", resolved))
		return
	}

	raws, err := readJudgments(*input)
	if err != nil {
		appLogger.Fatal("Failed to read input", zap.String("input", *input), zap.Error(err))
	}
	appLogger.Info("Loaded judgments", zap.Int("count", len(raws)))

	job, err := components.Pipeline.Ingest(ctx, raws)
	if err != nil {
		appLogger.Fatal("Ingestion failed to start", zap.Error(err))
	}

	out, _ := json.MarshalIndent(job, "", "  ")
	fmt.Println(string(out))
}

func readJudgments(path string) ([]ingestion.RawJudgment, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeJudgments(r)
}

func decodeJudgments(r io.Reader) ([]ingestion.RawJudgment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var raws []ingestion.RawJudgment
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var raw ingestion.RawJudgment
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}

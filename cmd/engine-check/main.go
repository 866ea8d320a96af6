// Command engine-check sends one sample request through the configured
// classification and handling engines and prints what they return.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/aibymlMelissa/aibyml-business/internal/application/service"
	"github.com/aibymlMelissa/aibyml-business/internal/config"
	"github.com/aibymlMelissa/aibyml-business/internal/container"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	title := flag.String("title", "Printer jam", "Sample request title")
	description := flag.String("description", "The second floor printer jams on every print job and shows error E-42.", "Sample request description")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== AI Engine Check ===")
	fmt.Printf("  Classification engine: %s\n", cfg.AI.ClassificationEngine)
	fmt.Printf("  Handling engine: %s\n", cfg.AI.HandlingEngine)
	fmt.Printf("  Timeout: %v\n\n", *timeout)

	engines, err := container.ProvideEngines(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	req := &entity.ServiceRequest{
		ID:          "engine-check",
		Title:       *title,
		Description: *description,
		Status:      entity.StatusRegistered,
		Priority:    entity.PriorityMedium,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	logs := &logCollector{}
	orchestrator := service.NewAIOrchestrator(
		engines.Classifier,
		engines.Handler,
		logs,
		nil,
		service.WithEngineTimeout(cfg.AI.Timeout),
	)
	fmt.Printf("Sending sample request through %s -> %s\n\n", orchestrator.ClassifierName(), orchestrator.HandlerName())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	result, err := orchestrator.ProcessBoth(ctx, req)
	logs.print()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Processing failed after %v: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}

	fmt.Printf("✓ Processed in %v\n", time.Since(start).Round(time.Millisecond))
	printJSON(result)
}

// logCollector keeps the orchestrator's AI log rows in memory for printing
type logCollector struct {
	entries []*entity.AIProcessingLog
}

func (l *logCollector) Create(_ context.Context, entry *entity.AIProcessingLog) error {
	l.entries = append(l.entries, entry)
	return nil
}

func (l *logCollector) GetByRequestID(_ context.Context, requestID string) ([]*entity.AIProcessingLog, error) {
	var out []*entity.AIProcessingLog
	for _, e := range l.entries {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *logCollector) print() {
	for _, e := range l.entries {
		mark := "✓"
		if !e.Success {
			mark = "✗"
		}
		fmt.Printf("%s %s (%s) %dms", mark, e.EngineName, e.EngineType, e.ProcessingTimeMs)
		if e.ErrorMessage != "" {
			fmt.Printf(": %s", e.ErrorMessage)
		}
		fmt.Println()
	}
	fmt.Println()
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		fmt.Printf("  %+v\n\n", v)
		return
	}
	fmt.Printf("  %s\n\n", out)
}

// Command lark-check sends one text message through the configured Lark
// escalation channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/aibymlMelissa/aibyml-business/internal/config"
	infraLark "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/lark"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	text := flag.String("text", "Escalation channel test from lark-check", "Message text")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Lark Escalation Check ===")
	if !cfg.Lark.Enabled() {
		fmt.Fprintln(os.Stderr, "ERROR: set LARK_APP_ID, LARK_APP_SECRET and LARK_RECEIVE_ID")
		os.Exit(1)
	}
	fmt.Printf("  App ID: %s\n", cfg.Lark.AppID)
	fmt.Printf("  Receive ID type: %s\n", cfg.Lark.ReceiveIDType)
	fmt.Printf("  Receive ID: %s\n\n", cfg.Lark.ReceiveID)

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		Timeout:   cfg.Lark.APITimeout,
	})
	messenger := infraLark.NewMessenger(client, cfg.Lark.ReceiveIDType, cfg.Lark.ReceiveID, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := messenger.SendText(ctx, *text); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Send failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Message sent")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/pevans/newsharvest/app"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/logging"
)

// globalOpts are shared by every command.
var globalOpts config.Config

func main() {
	parser := flags.NewParser(&globalOpts, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "News harvesting CLI"

	parser.AddCommand("scrape", "Scrape sources",
		"Scrape every active source, or a single source with --source.", &scrapeCommand{})
	parser.AddCommand("status", "Show scraping status",
		"List sources with their article counts and the scrape settings.", &statusCommand{})
	parser.AddCommand("articles", "List stored articles",
		"List stored articles, most recently published first.", &articlesCommand{})
	parser.AddCommand("seed", "Install default sources",
		"Create the built-in sources that are not stored yet.", &seedCommand{})
	parser.AddCommand("serve", "Run the HTTP API",
		"Serve the HTTP API until interrupted.", &serveCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(flagsErr.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp resolves the global options and wires the application.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := globalOpts
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

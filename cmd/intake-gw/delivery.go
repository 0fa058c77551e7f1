package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/intake-gw/internal/config"
	"github.com/mattjoyce/intake-gw/internal/inspect"
	"github.com/mattjoyce/intake-gw/internal/ledger"
	"github.com/mattjoyce/intake-gw/internal/storage"
	"github.com/mattjoyce/intake-gw/internal/tui/watch"
)

// openLedger opens the ledger named by cfg for reading. Callers must call
// the returned close func.
func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, func(), error) {
	if cfg.State.Path == "" {
		return nil, nil, errors.New("state.path is not set; no delivery ledger is kept")
	}
	if cfg.State.Path == ":memory:" {
		return nil, nil, errors.New("state.path is :memory:; the ledger is private to the running server")
	}
	// Reading must not create an empty ledger where no server has run.
	if _, err := os.Stat(cfg.State.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("no ledger at %s", cfg.State.Path)
	} else if err != nil {
		return nil, nil, fmt.Errorf("stat ledger: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return ledger.New(db), func() { _ = db.Close() }, nil
}

func runDeliveryList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Maximum number of deliveries")
	jsonOut := fs.Bool("json", false, "Output deliveries in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	l, closeFn, err := openLedger(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer closeFn()

	rows, err := l.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list deliveries: %v\n", err)
		return 1
	}

	if *jsonOut {
		if rows == nil {
			rows = []*ledger.Delivery{}
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode deliveries: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	fmt.Print(inspect.FormatList(rows))
	return 0
}

func runDeliveryShow(args []string) int {
	id, rest := splitPositional(args, "config")

	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output report in JSON")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "Usage: intake-gw delivery show <id> [--config PATH] [--json]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	l, closeFn, err := openLedger(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer closeFn()

	var report string
	if *jsonOut {
		report, err = inspect.BuildJSONReport(ctx, l, id)
	} else {
		report, err = inspect.BuildReport(ctx, l, id)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build report: %v\n", err)
		return 1
	}
	fmt.Println(report)
	return 0
}

func runDeliveryWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	baseURL := fs.String("url", "", "Server base URL for health (default derived from webhook.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	l, closeFn, err := openLedger(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer closeFn()

	url := *baseURL
	if url == "" {
		url = serverURL(cfg.Webhook.Listen)
	}

	p := tea.NewProgram(watch.New(l, url))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

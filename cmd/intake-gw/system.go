package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/intake-gw/internal/ledger"
	"github.com/mattjoyce/intake-gw/internal/lock"
	"github.com/mattjoyce/intake-gw/internal/log"
	"github.com/mattjoyce/intake-gw/internal/notify"
	"github.com/mattjoyce/intake-gw/internal/storage"
	"github.com/mattjoyce/intake-gw/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	source := cfg.SourcePath
	if source == "" {
		source = "environment"
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("intake-gw starting", "version", version, "config", source)

	var store webhook.Ledger
	if cfg.State.Path != "" {
		if cfg.State.Path != ":memory:" {
			pidLock, err := lock.Acquire(lock.PathFor(cfg.State.Path))
			if err != nil {
				logger.Error("failed to acquire PID lock (another instance may be running)", "state", cfg.State.Path, "error", err)
				return 1
			}
			defer pidLock.Release()
			logger.Info("acquired PID lock", "path", pidLock.Path())
		}

		db, err := storage.OpenSQLite(context.Background(), cfg.State.Path)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		store = ledger.New(db)
		logger.Info("delivery ledger opened", "path", cfg.State.Path)
	}

	channel, err := notify.NewChannel(cfg.Notify)
	if err != nil {
		logger.Error("failed to configure notify channel", "error", err)
		return 1
	}
	schema := cfg.Schema()
	renderer, err := notify.NewRenderer(schema)
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		return 1
	}
	notifier := notify.NewNotifier(channel, renderer, notify.Options{
		From:          cfg.Notify.From,
		To:            cfg.Notify.To,
		SubjectPrefix: cfg.Notify.SubjectPrefix,
	}, log.WithComponent("notify"))

	webhookConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("failed to configure webhook", "error", err)
		return 1
	}
	server := webhook.New(webhookConfig, schema, notifier, store, log.WithComponent("webhook"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	logger.Info("intake-gw running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("webhook server failed", "error", err)
			return 1
		}
	}

	logger.Info("intake-gw stopped")
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	baseURL := fs.String("url", "", "Server base URL (default derived from webhook.listen)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	healthy := true

	if cfg.State.Path != "" && cfg.State.Path != ":memory:" {
		lockPath := lock.PathFor(cfg.State.Path)
		pid, err := lock.ReadPID(lockPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Printf("Lock:    not held (%s)\n", lockPath)
		case err != nil:
			fmt.Printf("Lock:    unreadable (%v)\n", err)
		default:
			fmt.Printf("Lock:    held by pid %d (%s)\n", pid, lockPath)
		}
	}

	url := *baseURL
	if url == "" {
		url = serverURL(cfg.Webhook.Listen)
	}
	health, err := getHealth(url)
	if err != nil {
		fmt.Printf("Server:  unreachable at %s (%v)\n", url, err)
		healthy = false
	} else {
		fmt.Printf("Server:  %s at %s\n", health.Status, url)
		fmt.Printf("Uptime:  %s\n", (time.Duration(health.UptimeSeconds) * time.Second).String())
		fmt.Printf("Channel: %s\n", health.Channel)
	}

	if !healthy {
		return 1
	}
	return 0
}

// serverURL turns a listen address into a URL reachable from this host.
func serverURL(listen string) string {
	if strings.HasPrefix(listen, ":") || strings.HasPrefix(listen, "0.0.0.0:") {
		listen = "127.0.0.1" + listen[strings.LastIndex(listen, ":"):]
	}
	return "http://" + listen
}

func getHealth(baseURL string) (*webhook.HealthResponse, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var h webhook.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

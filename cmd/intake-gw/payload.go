package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mattjoyce/intake-gw/internal/config"
	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/webhook"
)

const secretEnv = "ELEVENLABS_WEBHOOK_SECRET"

// readPayload reads a file, or stdin when path is "-".
func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runPayloadExtract(args []string) int {
	file, rest := splitPositional(args, "config")

	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (for intake.questions)")
	jsonOut := fs.Bool("json", false, "Output fields in JSON")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: intake-gw payload extract <file|-> [--config PATH] [--json]")
		return 1
	}

	schema := intake.DefaultSchema()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		schema = cfg.Schema()
	}

	body, err := readPayload(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}
	fields, err := schema.ExtractBytes(body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 1
	}

	if *jsonOut {
		out, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode fields: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	if len(fields) == 0 {
		fmt.Println("No patient data found.")
		return 0
	}
	for _, f := range schema.Fields() {
		v, ok := fields.Lookup(f.Key)
		if !ok {
			continue
		}
		if strings.Contains(v, "\n") {
			fmt.Printf("%s:\n%s\n", f.Label, indent(v, "  "))
			continue
		}
		fmt.Printf("%s: %s\n", f.Label, v)
	}
	return 0
}

func runPayloadSign(args []string) int {
	file, rest := splitPositional(args, "secret")

	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv(secretEnv), "Shared webhook secret")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: intake-gw payload sign <file|-> [--secret S]")
		return 1
	}
	if *secret == "" {
		fmt.Fprintf(os.Stderr, "No secret: pass --secret or set %s\n", secretEnv)
		return 1
	}

	body, err := readPayload(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}
	fmt.Println(webhook.ComputeSignature(body, *secret))
	return 0
}

func runPayloadSend(args []string) int {
	file, rest := splitPositional(args, "url", "secret", "header")

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	url := fs.String("url", "", "Full webhook URL")
	secret := fs.String("secret", os.Getenv(secretEnv), "Shared webhook secret (unsigned when empty)")
	header := fs.String("header", webhook.DefaultSignatureHeader, "Signature header name")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if file == "" || *url == "" {
		fmt.Fprintln(os.Stderr, "Usage: intake-gw payload send <file|-> --url URL [--secret S] [--header NAME]")
		return 1
	}

	body, err := readPayload(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 1
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid URL: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", "application/json")
	if *secret != "" {
		req.Header.Set(*header, webhook.ComputeSignature(body, *secret))
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	fmt.Printf("HTTP %d\n%s\n", resp.StatusCode, strings.TrimSpace(string(respBody)))
	if resp.StatusCode >= 300 {
		return 1
	}
	return 0
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

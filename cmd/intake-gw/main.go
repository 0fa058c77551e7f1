package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattjoyce/intake-gw/internal/config"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		os.Exit(runSystemNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "payload":
		os.Exit(runPayloadNoun(args))
	case "delivery":
		os.Exit(runDeliveryNoun(args))

	// --- ROOT ALIASES ---
	case "start":
		os.Exit(runStart(args))
	case "version":
		fmt.Printf("intake-gw version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`intake-gw - ElevenLabs post-call webhook to patient intake notifications

Usage:
  intake-gw <noun> <action> [flags]

Core Resources (Nouns):
  system    Service lifecycle and health
  config    Configuration validation
  payload   Offline payload tools
  delivery  Delivery ledger

System Commands:
  system start        Start the intake server in foreground
  system status       Show lock holder and server health

Config Commands:
  config check        Validate configuration and deployment settings

Payload Commands:
  payload extract <file>  Show the fields extracted from a payload
  payload sign <file>     Print the signature header value for a payload
  payload send <file>     Post a signed payload to a running server

Delivery Commands:
  delivery list       Show recent deliveries
  delivery show <id>  Show one delivery and its redeliveries
  delivery watch      Live delivery dashboard

General:
  version             Show version information
  help                Show this help message

Without --config, intake-gw looks for $INTAKE_CONFIG, ./config.yaml,
~/.config/intake-gw/config.yaml and /etc/intake-gw/config.yaml, then falls
back to environment variables (and ./.env).

Use 'intake-gw <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "status":
		if hasHelpFlag(actionArgs) {
			printSystemStatusHelp()
			return 0
		}
		return runStatus(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runPayloadNoun(args []string) int {
	if len(args) < 1 {
		printPayloadNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printPayloadNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "extract":
		if hasHelpFlag(actionArgs) {
			printPayloadExtractHelp()
			return 0
		}
		return runPayloadExtract(actionArgs)
	case "sign":
		if hasHelpFlag(actionArgs) {
			printPayloadSignHelp()
			return 0
		}
		return runPayloadSign(actionArgs)
	case "send":
		if hasHelpFlag(actionArgs) {
			printPayloadSendHelp()
			return 0
		}
		return runPayloadSend(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown payload action: %s\n", action)
		return 1
	}
}

func runDeliveryNoun(args []string) int {
	if len(args) < 1 {
		printDeliveryNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printDeliveryNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printDeliveryListHelp()
			return 0
		}
		return runDeliveryList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printDeliveryShowHelp()
			return 0
		}
		return runDeliveryShow(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printDeliveryWatchHelp()
			return 0
		}
		return runDeliveryWatch(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown delivery action: %s\n", action)
		return 1
	}
}

// loadConfig loads configPath, or discovers a file, or falls back to the
// environment when no file exists.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if errors.Is(err, config.ErrNoConfig) {
			return config.FromEnv()
		}
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// splitPositional separates the first non-flag argument so flags may follow
// it, as in 'intake-gw payload extract body.json --json'.
func splitPositional(args []string, valueFlags ...string) (string, []string) {
	takesValue := make(map[string]bool, len(valueFlags))
	for _, f := range valueFlags {
		takesValue["-"+f] = true
		takesValue["--"+f] = true
	}

	var positional string
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if takesValue[arg] && i+1 < len(args) {
			rest = append(rest, arg, args[i+1])
			i++
			continue
		}
		if positional == "" && (arg == "-" || len(arg) == 0 || arg[0] != '-') {
			positional = arg
			continue
		}
		rest = append(rest, arg)
	}
	return positional, rest
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: intake-gw system <action>")
	fmt.Fprintln(w, "Actions: start, status")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: intake-gw config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printPayloadNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: intake-gw payload <action> <file> [flags]")
	fmt.Fprintln(w, "Actions: extract, sign, send")
}

func printDeliveryNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: intake-gw delivery <action> [flags]")
	fmt.Fprintln(w, "Actions: list, show, watch")
}

func printSystemStartHelp() {
	fmt.Println("Usage: intake-gw system start [--config PATH]")
	fmt.Println("Start the intake server in the foreground until SIGINT/SIGTERM.")
}

func printSystemStatusHelp() {
	fmt.Println("Usage: intake-gw system status [--config PATH] [--url URL]")
	fmt.Println("Show the PID holding the ledger lock and the server's /healthz.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: intake-gw config check [--config PATH] [--json] [--strict]")
	fmt.Println("Validate configuration and report deployment warnings.")
}

func printPayloadExtractHelp() {
	fmt.Println("Usage: intake-gw payload extract <file|-> [--config PATH] [--json]")
	fmt.Println("Run the field extractor over a payload file without sending anything.")
}

func printPayloadSignHelp() {
	fmt.Println("Usage: intake-gw payload sign <file|-> [--secret S]")
	fmt.Println("Print the HMAC-SHA256 signature of a payload (defaults to $ELEVENLABS_WEBHOOK_SECRET).")
}

func printPayloadSendHelp() {
	fmt.Println("Usage: intake-gw payload send <file|-> --url URL [--secret S] [--header NAME]")
	fmt.Println("Post a payload, signed when a secret is given, and print the response.")
}

func printDeliveryListHelp() {
	fmt.Println("Usage: intake-gw delivery list [--config PATH] [--limit N] [--json]")
	fmt.Println("Show the most recent deliveries, newest first.")
}

func printDeliveryShowHelp() {
	fmt.Println("Usage: intake-gw delivery show <id> [--config PATH] [--json]")
	fmt.Println("Show one delivery and every delivery of the same payload.")
}

func printDeliveryWatchHelp() {
	fmt.Println("Usage: intake-gw delivery watch [--config PATH] [--url URL]")
	fmt.Println("Live dashboard over the delivery ledger.")
}

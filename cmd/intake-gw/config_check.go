package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/intake-gw/internal/doctor"
)

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output result in JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		if *jsonOut {
			failed := &doctor.Result{Errors: []doctor.Issue{{Category: "load", Message: err.Error()}}}
			if out, ferr := doctor.FormatJSON(failed); ferr == nil {
				fmt.Println(out)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		}
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		if cfg.SourcePath != "" {
			fmt.Printf("Config: %s\n", cfg.SourcePath)
		} else {
			fmt.Println("Config: environment")
		}
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid || (*strict && len(result.Warnings) > 0) {
		return 1
	}
	return 0
}

// Package main provides the taskforms binary: deploy process definitions,
// inspect and render their forms, and submit form data against a SQLite
// backed process store.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goliatone/go-taskforms/pkg/orchestrator"
)

const (
	Version = "0.1.0"
	appName = "taskforms"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		var verr *orchestrator.ValidationError
		if errors.As(err, &verr) {
			for _, violation := range verr.Violations {
				fmt.Fprintf(os.Stderr, "  %s\n", violation)
			}
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

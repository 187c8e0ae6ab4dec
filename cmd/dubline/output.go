package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dubline/internal/services"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError writes err for a terminal. Classified workflow errors get their
// stage, language, and remediation hint on separate lines.
func printError(w io.Writer, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	details := services.Details(err)
	fmt.Fprintf(w, "Error: %s\n", details.Message)
	if details.Stage != "" {
		stage := details.Stage
		if details.Language != "" {
			stage += " (" + details.Language + ")"
		}
		fmt.Fprintf(w, "Stage: %s\n", stage)
	}
	if details.Hint != "" {
		fmt.Fprintf(w, "Hint:  %s\n", details.Hint)
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
)

// printTable renders rows with the first row as header.
func printTable(rows pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// printJSON writes v as indented JSON for scripting.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	pterm.Println(string(b))
	return nil
}

// checkOutput validates an --output value.
func checkOutput(output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output %q (expected json)", output)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

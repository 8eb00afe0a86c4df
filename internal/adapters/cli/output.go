// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/apm/internal/core/confidence"
)

const rule = "────────────────────────────────────────────────────────────────"

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// bandLabel renders a confidence band in its traffic-light colour.
func bandLabel(b confidence.Band) string {
	label := strings.ToUpper(string(b))
	switch b {
	case confidence.BandGreen:
		return color.New(color.FgGreen).Sprint(label)
	case confidence.BandYellow:
		return color.New(color.FgYellow).Sprint(label)
	case confidence.BandRed:
		return color.New(color.FgRed).Sprint(label)
	default:
		return label
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

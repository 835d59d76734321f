package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/internal/resolve"
)

var parseExtractorOnly bool

var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Parse one message and print the extracted fields",
	Long:  "Runs the AI parser with extractor fallback on the given text, or on stdin when no text is given, and prints the result as JSON. Nothing is stored.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("parse"); err != nil {
			return err
		}

		text := strings.Join(args, " ")
		if len(args) == 0 {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			text = string(b)
		}

		var resolver *resolve.Resolver
		if parseExtractorOnly {
			resolver = resolve.New(nil, resolve.Config{})
		} else {
			resolver = initResolver(resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()))
		}

		return runParse(cmd.Context(), cmd.OutOrStdout(), resolver, text)
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseExtractorOnly, "extractor-only", false, "skip the AI parser")
	rootCmd.AddCommand(parseCmd)
}

type parseOutput struct {
	Fields     model.ExtractedFields `json:"fields"`
	Path       model.ParsePath       `json:"path"`
	IsLead     bool                  `json:"is_lead"`
	DurationMs int64                 `json:"duration_ms"`
	AIError    string                `json:"ai_error,omitempty"`
}

func runParse(ctx context.Context, w io.Writer, resolver *resolve.Resolver, text string) error {
	if strings.TrimSpace(text) == "" {
		return eris.New("parse: text is required")
	}

	res := resolver.Resolve(ctx, text)
	out := parseOutput{
		Fields:     res.Fields,
		Path:       res.Path,
		IsLead:     res.Fields.HasName(),
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.AIErr != nil {
		out.AIError = res.AIErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

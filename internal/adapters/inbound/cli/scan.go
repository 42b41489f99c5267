package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/forensor/forensor/internal/adapters/outbound/config"
	"github.com/forensor/forensor/internal/adapters/outbound/corpus"
	"github.com/forensor/forensor/internal/adapters/outbound/gitlog"
	"github.com/forensor/forensor/internal/adapters/outbound/tui"
	"github.com/forensor/forensor/internal/application"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Collect forensic evidence without interpretation",
		Long:  "Run the rot, guilt, exposure, and cost scanners over a repository and print the raw evidence bundle. No model is consulted and nothing is persisted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			svc := application.NewScanService(
				config.New(),
				corpus.New(),
				gitlog.New(),
			)

			bundle, err := svc.Scan(cmd.Context(), absPath)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			if jsonOutput {
				return renderJSON(cmd, bundle)
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderBundle(bundle))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the evidence bundle as JSON")

	return cmd
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forensor/forensor/internal/domain"
	"github.com/spf13/cobra"
)

const configFileName = ".forensor.yaml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Generate a .forensor.yaml configuration file",
		Long:  "Create a .forensor.yaml documenting every tunable threshold with its default value.",
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

			dest := filepath.Join(absPath, configFileName)

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configFileName)
				}
			}

			if err := os.WriteFile(dest, []byte(generateConfig()), 0644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configFileName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing .forensor.yaml")

	return cmd
}

func generateConfig() string {
	cfg := domain.DefaultConfig()

	result := fmt.Sprintf(`# Forensor configuration
# See: https://github.com/forensor/forensor

# Which protocols run. Empty means all four.
# protocols:
#   - rot
#   - guilt
#   - exposure
#   - cost

stale_days: %d
god_class_lines: %d
max_iterations: %d
interpret_timeout_seconds: %d
`, cfg.StaleDays, cfg.GodClassLines, cfg.MaxIterations, cfg.InterpretTimeout)

	result += `
# Globs matched against relative paths and basenames.
# ignore:
#   - "**/generated/**"
#   - "*.min.js"

# max_file_bytes: 1048576
# max_commits: 2000
# evidence_max: 80

# churn_window_days: 30
# churn_threshold: 50
# guilt_scale: 200
# trivial_complexity: 10

# Extra modules flagged when imported by trivial files.
# heavy_imports:
#   airflow: "heavy workflow engine"

# min_findings: 3
# min_recommendations: 2
# base_threshold: 0.70
`

	return result
}

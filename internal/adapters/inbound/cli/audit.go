package cli

import (
	"fmt"
	"path/filepath"

	"github.com/forensor/forensor/internal/adapters/outbound/config"
	"github.com/forensor/forensor/internal/adapters/outbound/corpus"
	"github.com/forensor/forensor/internal/adapters/outbound/gitlog"
	"github.com/forensor/forensor/internal/adapters/outbound/interpreter"
	"github.com/forensor/forensor/internal/adapters/outbound/memory"
	"github.com/forensor/forensor/internal/adapters/outbound/tui"
	"github.com/forensor/forensor/internal/application"
	"github.com/forensor/forensor/internal/domain"
	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var (
		jsonOutput    bool
		ciMode        bool
		maxIterations int
		timeoutSecs   int
		showHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Run the full audit: scan, interpret, validate",
		Long:  "Scan a repository, have the model interpret the evidence, and hold the analysis to the validation gate until it passes or the iteration budget runs out.",
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

			store := memory.New(absPath)

			// History needs no model, so it never requires an API key.
			if showHistory {
				recs, err := store.Records()
				if err != nil {
					return fmt.Errorf("loading audit records: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), tui.RenderRecords(recs))
				return nil
			}

			interp, err := interpreter.New(interpreter.Config{})
			if err != nil {
				return err
			}

			loader := overrideLoader{
				base:          config.New(),
				maxIterations: maxIterations,
				timeoutSecs:   timeoutSecs,
			}

			svc := application.NewAuditService(
				loader,
				application.NewScanService(loader, corpus.New(), gitlog.New()),
				interp,
				store,
			)

			result, err := svc.Audit(cmd.Context(), absPath)
			if err != nil {
				return fmt.Errorf("audit failed: %w", err)
			}

			if jsonOutput {
				return renderJSON(cmd, result)
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderOutcome(result))

			if ciMode && result.State != domain.GatePassed {
				return fmt.Errorf("gate %s: score %.2f against threshold %.2f",
					result.State, result.Outcome.Score, result.Outcome.Threshold)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the audit result as JSON")
	cmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: exit 1 unless the gate passed")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the validation iteration budget")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "Override the interpretation timeout in seconds")
	cmd.Flags().BoolVar(&showHistory, "history", false, "Show past audit records instead of running")

	return cmd
}

// overrideLoader layers command-line overrides on top of the resolved file
// configuration. Zero values leave the file settings untouched.
type overrideLoader struct {
	base          domain.ConfigLoader
	maxIterations int
	timeoutSecs   int
}

func (l overrideLoader) Load(projectPath string) (domain.AuditConfig, error) {
	cfg, err := l.base.Load(projectPath)
	if err != nil {
		return cfg, err
	}
	if l.maxIterations != 0 {
		cfg.MaxIterations = l.maxIterations
	}
	if l.timeoutSecs != 0 {
		cfg.InterpretTimeout = l.timeoutSecs
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
